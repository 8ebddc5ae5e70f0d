package nats

import (
	"context"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/random"
	"github.com/nats-io/nats.go"
)

// Publish sends msg to its queue. Durable queues wait for the stream's
// acknowledgement; a message for a subject nobody listens on is dropped by
// the server.
func (t *Transport) Publish(ctx context.Context, msg *events.Message) error {
	nc, js, err := t.conn()
	if err != nil {
		return err
	}
	out := toNatsMsg(msg)
	messageID := msg.MessageID
	if messageID == "" {
		messageID = random.GenerateUUIDString()
		out.Header.Set(constant.HeaderMessageID, messageID)
	}

	durable, _ := t.isDurable(msg.Queue)
	if durable && js != nil {
		// Nats-Msg-Id lets the stream drop duplicates of a retried publish.
		out.Header.Set(nats.MsgIdHdr, messageID)
		_, err = js.PublishMsg(out, nats.Context(ctx))
	} else {
		err = nc.PublishMsg(out)
	}
	if err != nil {
		t.logger.Warn(constant.EventPublishFailed, log.String("queue", msg.Queue), log.Err(err))
		return blame.PublishFailed(msg.Queue, err)
	}

	t.logger.Debug(constant.EventPublished,
		log.String("queue", msg.Queue),
		log.String(constant.CorrelationID, msg.CorrelationID),
		log.Bool("durable", durable))
	return nil
}
