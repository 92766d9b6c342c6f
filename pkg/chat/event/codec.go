package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decoders maps each JSON kind to a function decoding its payload.
var decoders = map[Kind]func([]byte) (Event, error){
	KindOutputTextDelta:      decodeAs[OutputTextDelta],
	KindReasoningTextDelta:   decodeAs[ReasoningTextDelta],
	KindReasoningTextDone:    decodeAs[ReasoningTextDone],
	KindOutputItemAdded:      decodeAs[OutputItemAdded],
	KindMCPCallArgumentsDone: decodeAs[MCPCallArgumentsDone],
	KindOutputItemDone:       decodeAs[OutputItemDone],
	KindError:                decodeAs[Error],
	KindResponseCompleted:    decodeAs[ResponseCompleted],
	KindResponseFailed:       decodeAs[ResponseFailed],
	KindSessionCreated:       decodeAs[SessionCreated],
}

func decodeAs[E Event](data []byte) (Event, error) {
	var ev E
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Decode parses one frame payload.
//
// The "[DONE]" sentinel decodes to Done. Payloads that are not valid JSON
// objects wrap ErrMalformed; valid payloads of an unhandled kind wrap
// ErrUnknownKind.
func Decode(payload []byte) (Event, error) {
	payload = bytes.TrimSpace(payload)
	if string(payload) == DoneSentinel {
		return Done{}, nil
	}

	var envelope struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	decode, ok := decoders[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, envelope.Type)
	}

	ev, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, envelope.Type, err)
	}
	return ev, nil
}

// Encode renders ev as a frame payload, the inverse of Decode.
func Encode(ev Event) ([]byte, error) {
	if _, ok := ev.(Done); ok {
		return []byte(DoneSentinel), nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ev.Kind(), err)
	}

	kind, err := json.Marshal(ev.Kind())
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ev.Kind(), err)
	}

	// Splice the discriminator in front of the struct fields.
	var out bytes.Buffer
	out.Grow(len(body) + len(kind) + 9)
	out.WriteString(`{"type":`)
	out.Write(kind)
	if rest := bytes.TrimSpace(body[1:]); len(rest) > 1 {
		out.WriteByte(',')
	}
	out.Write(body[1:])
	return out.Bytes(), nil
}
