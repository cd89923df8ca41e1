// Package codec frames WireMessage values for the wire. JSON was the
// teacher's own choice for its message format (core.ReliableTransport's
// apply/consume pair does a bare json.Marshal/Unmarshal of types.Message);
// this package keeps that choice but adds the type envelope the teacher
// never needed, because the teacher only ever marshalled one concrete
// struct while WireMessage is a closed interface union (§6.1.1).
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

// Envelope tags a marshalled WireMessage with its concrete type so the
// receiver's type switch (core.Reducer.handleReceive) can reconstruct the
// right Go value from an otherwise-untyped JSON payload.
type Envelope struct {
	Type    types.WireType  `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode marshals msg into its tagged envelope form. A Batch cannot go
// through the generic json.Marshal(msg) path below: its Messages field is
// a WireMessage interface slice, and none of the concrete WireMessage
// types carry a custom MarshalJSON, so a bare marshal would serialize each
// element as an untagged struct Decode could never reconstruct. batchJSON
// gives it the same envelope treatment every other WireMessage gets.
func Encode(msg types.WireMessage) ([]byte, error) {
	var payload []byte
	var err error
	if b, ok := msg.(types.Batch); ok {
		payload, err = batchJSON(b)
	} else {
		payload, err = json.Marshal(msg)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: marshalling %s payload: %w", msg.WireType(), err)
	}
	env := Envelope{Type: msg.WireType(), Payload: payload}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("codec: marshalling envelope for %s: %w", msg.WireType(), err)
	}
	return data, nil
}

// Decode reverses Encode, dispatching on the envelope's Type field to
// reconstruct the correct WireMessage implementation. A Batch's Messages
// field is decoded recursively, since encoding/json cannot unmarshal into
// an interface slice on its own.
func Decode(data []byte) (types.WireMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("codec: unmarshalling envelope: %w", err)
	}
	return decodePayload(env.Type, env.Payload)
}

func decodePayload(t types.WireType, payload json.RawMessage) (types.WireMessage, error) {
	switch t {
	case types.WireEstablishRequest:
		var m types.EstablishRequest
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("codec: unmarshalling establish-request: %w", err)
		}
		return m, nil
	case types.WireEstablishResponse:
		var m types.EstablishResponse
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("codec: unmarshalling establish-response: %w", err)
		}
		return m, nil
	case types.WireSyncRequest:
		var m types.SyncRequest
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("codec: unmarshalling sync-request: %w", err)
		}
		return m, nil
	case types.WireSyncResponse:
		var m types.SyncResponse
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("codec: unmarshalling sync-response: %w", err)
		}
		return m, nil
	case types.WireUpdate:
		var m types.Update
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("codec: unmarshalling update: %w", err)
		}
		return m, nil
	case types.WireEphemeral:
		var m types.Ephemeral
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("codec: unmarshalling ephemeral: %w", err)
		}
		return m, nil
	case types.WireBatch:
		var raw struct {
			Messages []Envelope `json:"messages"`
		}
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("codec: unmarshalling batch: %w", err)
		}
		msgs := make([]types.WireMessage, 0, len(raw.Messages))
		for _, inner := range raw.Messages {
			m, err := decodePayload(inner.Type, inner.Payload)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, m)
		}
		return types.Batch{Messages: msgs}, nil
	default:
		return nil, fmt.Errorf("codec: unknown wire type %q", t)
	}
}

// batchJSON gives types.Batch envelope-aware encoding, used by Encode in
// place of encoding/json's default behavior over the WireMessage interface
// slice, which would drop each element's concrete type.
func batchJSON(b types.Batch) ([]byte, error) {
	envs := make([]Envelope, 0, len(b.Messages))
	for _, m := range b.Messages {
		payload, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("codec: marshalling batch element %s: %w", m.WireType(), err)
		}
		envs = append(envs, Envelope{Type: m.WireType(), Payload: payload})
	}
	return json.Marshal(struct {
		Messages []Envelope `json:"messages"`
	}{Messages: envs})
}
