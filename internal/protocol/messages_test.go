package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageText(t *testing.T) {
	raw := []byte(`{"type":"client_message","session_id":"s1","text":"What are your pricing plans?","ts_ms":123}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	chat, ok := msg.(ClientMessage)
	if !ok {
		t.Fatalf("message type = %T, want ClientMessage", msg)
	}
	if chat.SessionID != "s1" || chat.Text != "What are your pricing plans?" {
		t.Fatalf("unexpected client message: %+v", chat)
	}
	if chat.TSMs != 123 {
		t.Fatalf("TSMs = %d, want %d", chat.TSMs, 123)
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","session_id":"s1","action":"end"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.SessionID != "s1" || control.Action != "end" {
		t.Fatalf("unexpected client control: %+v", control)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsBlankText(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"client_message","session_id":"s1","text":"   "}`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func BenchmarkParseClientMessageText(b *testing.B) {
	raw := []byte(`{"type":"client_message","session_id":"s1","text":"Tell me about the Pro plan","ts_ms":123456}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg, err := ParseClientMessage(raw)
		if err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
		if _, ok := msg.(ClientMessage); !ok {
			b.Fatalf("message type = %T, want ClientMessage", msg)
		}
	}
}
