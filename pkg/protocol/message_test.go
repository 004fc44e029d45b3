package protocol

import "testing"

func TestNewMessageFillsIdentity(t *testing.T) {
	m := NewMessage("task", "learner", "actor-3", []byte("w"))
	if m.MessageID == "" {
		t.Fatalf("MessageID not set")
	}
	if m.SentAt == 0 {
		t.Fatalf("SentAt not set")
	}
	if m.Source != "learner" || m.Destination != "actor-3" || m.Tag != "task" {
		t.Fatalf("fields mismatch: %#v", m)
	}
}

func TestMessageIDsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := NewMessageID()
		if id == "" {
			t.Fatalf("empty id")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}
