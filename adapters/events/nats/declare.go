package nats

import (
	"context"
	"errors"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/nats-io/nats.go"
)

// DeclareQueue makes name usable for Publish and Consume. Durable queues
// are backed by a work-queue stream that survives restarts of both sides.
// Declaring an existing queue with the other durability fails.
func (t *Transport) DeclareQueue(ctx context.Context, name string, durable bool) error {
	_, js, err := t.conn()
	if err != nil {
		return err
	}

	t.mu.Lock()
	known, ok := t.declared[name]
	t.mu.Unlock()
	if ok {
		if known != durable {
			return blame.QueueMismatch(name, known)
		}
		return nil
	}

	if durable {
		if err := t.ensureStream(ctx, js, name); err != nil {
			return err
		}
	} else if js != nil {
		if _, err := js.StreamInfo(streamName(name), nats.Context(ctx)); err == nil {
			return blame.QueueMismatch(name, true)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.declared == nil {
		return blame.NotConnected(t.state.String())
	}
	if known, ok := t.declared[name]; ok && known != durable {
		return blame.QueueMismatch(name, known)
	}
	t.declared[name] = durable
	t.logger.Debug(constant.QueueDeclared, log.String("queue", name), log.Bool("durable", durable))
	return nil
}

func (t *Transport) ensureStream(ctx context.Context, js nats.JetStreamContext, name string) error {
	if js == nil {
		return blame.QueueDeclareFailed(name, nats.ErrJetStreamNotEnabled)
	}
	cfg := &nats.StreamConfig{
		Name:      streamName(name),
		Subjects:  []string{name},
		Retention: nats.WorkQueuePolicy,
		Storage:   t.storage,
	}
	_, err := js.AddStream(cfg, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return blame.QueueDeclareFailed(name, err)
	}
	return nil
}

// DeclareReplyQueue returns a fresh inbox subject. Only this connection
// consumes it.
func (t *Transport) DeclareReplyQueue(_ context.Context) (string, error) {
	if _, _, err := t.conn(); err != nil {
		return "", err
	}
	name := nats.NewInbox()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.declared == nil {
		return "", blame.NotConnected(t.state.String())
	}
	t.declared[name] = false
	t.logger.Debug(constant.ReplyQueueDeclared, log.String("queue", name))
	return name, nil
}

func (t *Transport) isDurable(name string) (durable, declared bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	durable, declared = t.declared[name]
	return durable, declared
}
