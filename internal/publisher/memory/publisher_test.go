package memory

import (
	"context"
	"testing"
)

func TestPublishRecordsPayloads(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), map[string]int{"pages": 3})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "memory-1" {
		t.Errorf("id = %q, want memory-1", id)
	}

	if _, err := p.Publish(context.Background(), "second"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	payloads := p.Payloads()
	if len(payloads) != 2 {
		t.Fatalf("payloads = %d, want 2", len(payloads))
	}
	if payloads[1] != "second" {
		t.Errorf("payloads[1] = %v, want second", payloads[1])
	}
}
