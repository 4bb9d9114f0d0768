package email

import (
	"context"
	"testing"
)

// TestNoopSender_RecordsMessages verifies messages are kept in order with distinct ids.
func TestNoopSender_RecordsMessages(t *testing.T) {
	s := NewNoopSender()
	r1, err := s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "one"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	r2, _ := s.Send(context.Background(), Message{To: []string{"b@example.com"}, Subject: "two"})
	if r1.MessageID == r2.MessageID {
		t.Error("message ids are not distinct")
	}
	sent := s.Sent()
	if len(sent) != 2 || sent[0].Subject != "one" || sent[1].To[0] != "b@example.com" {
		t.Errorf("sent = %+v", sent)
	}
}
