package rpc

import (
	"encoding/json"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/codec"
)

// Request is one inbound delivery as seen by a HandlerFunc.
type Request struct {
	Queue         string
	CorrelationID string
	ReplyTo       string
	Headers       map[string]string
	Body          []byte
	Redelivered   bool
}

func newRequest(m *events.Message) *Request {
	return &Request{
		Queue:         m.Queue,
		CorrelationID: m.CorrelationID,
		ReplyTo:       m.ReplyTo,
		Headers:       m.Headers,
		Body:          m.Body,
		Redelivered:   m.Redelivered,
	}
}

// Decode unmarshals the JSON body into v. A body that does not decode is a
// protocol error, so the delivery is rejected rather than answered.
func (r *Request) Decode(v any) error {
	if err := codec.DecodeInto(r.Body, v, codec.JSON); err != nil {
		return blame.MalformedEnvelope(r.Queue, err)
	}
	return nil
}

// Reply is the body published to a caller's reply queue. Exactly one of
// Data and Error is set.
type Reply struct {
	Data  json.RawMessage      `json:"data,omitempty"`
	Error *blame.ErrorResponse `json:"error,omitempty"`
}

// encodePayload JSON encodes v. Byte slices are taken to be encoded already.
func encodePayload(v any) ([]byte, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	}
	body, err := codec.Encode(v, codec.JSON)
	if err != nil {
		return nil, blame.MarshalFailed(err)
	}
	return body, nil
}
