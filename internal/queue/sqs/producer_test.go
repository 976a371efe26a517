package sqsqueue

import "testing"

func TestInboundGroupIDStablePerSender(t *testing.T) {
	got1 := inboundGroupID("+5491100000001")
	got2 := inboundGroupID("+5491100000001")
	if got1 != got2 {
		t.Fatalf("expected stable group id, got %q vs %q", got1, got2)
	}
	if got1 == inboundGroupID("+5491100000002") {
		t.Fatalf("different senders must not share a group")
	}
	if inboundGroupID("") == "" {
		t.Fatalf("expected non-empty group id for empty sender")
	}
}
