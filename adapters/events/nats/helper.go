package nats

import (
	"strings"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/nats-io/nats.go"
)

// streamName maps a queue name onto the characters JetStream accepts for
// stream and consumer names.
func streamName(queue string) string {
	return streamPrefix + sanitizeName(queue)
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func toNatsMsg(m *events.Message) *nats.Msg {
	msg := nats.NewMsg(m.Queue)
	for k, v := range m.Headers {
		msg.Header.Set(k, v)
	}
	if m.CorrelationID != "" {
		msg.Header.Set(constant.HeaderCorrelationID, m.CorrelationID)
	}
	if m.ReplyTo != "" {
		msg.Header.Set(constant.HeaderReplyTo, m.ReplyTo)
	}
	if m.MessageID != "" {
		msg.Header.Set(constant.HeaderMessageID, m.MessageID)
	}
	msg.Data = m.Body
	return msg
}

func fromNatsMsg(queue string, msg *nats.Msg) *events.Message {
	m := &events.Message{
		Queue: queue,
		Body:  msg.Data,
	}
	for k, values := range msg.Header {
		if len(values) == 0 {
			continue
		}
		switch k {
		case constant.HeaderCorrelationID:
			m.CorrelationID = values[0]
		case constant.HeaderReplyTo:
			m.ReplyTo = values[0]
		case constant.HeaderMessageID:
			m.MessageID = values[0]
		default:
			m.SetHeader(k, values[0])
		}
	}
	if meta, err := msg.Metadata(); err == nil && meta.NumDelivered > 1 {
		m.Redelivered = true
	}
	return m
}
