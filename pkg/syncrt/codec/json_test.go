package codec

import (
	"testing"

	"github.com/nwillc/syncrt/pkg/syncrt/types"
)

func TestEncodeDecode_RoundTripsSyncRequest(t *testing.T) {
	msg := types.SyncRequest{DocID: "doc-1", RequesterVersion: types.VersionVector{1, 2, 3}, Bidirectional: true}

	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("unexpected error encoding: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error decoding: %v", err)
	}

	got, ok := decoded.(types.SyncRequest)
	if !ok {
		t.Fatalf("expected a SyncRequest, got %T", decoded)
	}
	if got.DocID != msg.DocID || !got.Bidirectional {
		t.Errorf("round-tripped message differs: got %#v, want %#v", got, msg)
	}
}

func TestEncodeDecode_RoundTripsBatchPreservingOrder(t *testing.T) {
	batch := types.Batch{Messages: []types.WireMessage{
		types.SyncRequest{DocID: "doc-1"},
		types.Ephemeral{DocID: "doc-2"},
	}}

	data, err := Encode(batch)
	if err != nil {
		t.Fatalf("unexpected error encoding batch: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error decoding batch: %v", err)
	}

	got, ok := decoded.(types.Batch)
	if !ok {
		t.Fatalf("expected a Batch, got %T", decoded)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages in the batch, got %d", len(got.Messages))
	}
	if _, ok := got.Messages[0].(types.SyncRequest); !ok {
		t.Errorf("expected first message to stay a SyncRequest, got %T", got.Messages[0])
	}
	if _, ok := got.Messages[1].(types.Ephemeral); !ok {
		t.Errorf("expected second message to stay an Ephemeral, got %T", got.Messages[1])
	}
}

func TestDecode_UnknownTypeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"type":"not-a-real-type","payload":{}}`))
	if err == nil {
		t.Fatalf("expected an error decoding an unknown wire type")
	}
}
