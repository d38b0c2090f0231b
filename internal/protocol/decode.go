package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidEnvelope  = errors.New("invalid frame envelope")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed payload")
)

var validate = validator.New()

// messageFields are the parts of a Message the relay requires.
type messageFields struct {
	ID   string `validate:"required"`
	Text string `validate:"required"`
}

// DecodeFrame parses a raw WebSocket text frame into a typed inbound event.
func DecodeFrame(raw []byte) (Inbound, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if frame.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrInvalidEnvelope)
	}
	return Decode(frame.Event, frame.Data)
}

// Decode parses and validates the payload of the named event.
func Decode(event string, data json.RawMessage) (Inbound, error) {
	switch event {
	case EventJoinConversation:
		var ev JoinConversation
		if err := unmarshalValid(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventLeaveConversation:
		var ev LeaveConversation
		if err := unmarshalValid(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventSendMessage:
		var ev SendMessage
		if err := unmarshalValid(data, &ev); err != nil {
			return nil, err
		}
		fields := messageFields{ID: ev.Message.ID(), Text: ev.Message.Text()}
		if err := validate.Struct(fields); err != nil {
			return nil, fmt.Errorf("%w: message: %v", ErrMalformedPayload, err)
		}
		return ev, nil
	case EventMessageRead:
		var ev MessageRead
		if err := unmarshalValid(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}

func unmarshalValid(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformedPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
