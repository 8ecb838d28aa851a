package decode

import (
	"bytes"
	"encoding/base64"
	"math/rand"
	"testing"
	"time"

	"github.com/lu-zhengda/inboxsync/internal/domain"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestParseSender(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantAddr string
	}{
		{"name and address", "John Doe <john@example.com>", "John Doe", "john@example.com"},
		{"quoted name", `"Jane Doe" <jane@example.com>`, "Jane Doe", "jane@example.com"},
		{"padded name", `  "Ops Team"   <ops@example.com>`, "Ops Team", "ops@example.com"},
		{"address only in brackets", "<john@example.com>", "", "john@example.com"},
		{"bare address", "john@example.com", "", "john@example.com"},
		{"free text", "Mailer Daemon", "", "Mailer Daemon"},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, addr := ParseSender(tt.input)
			if name != tt.wantName {
				t.Errorf("ParseSender(%q) name = %q, want %q", tt.input, name, tt.wantName)
			}
			if addr != tt.wantAddr {
				t.Errorf("ParseSender(%q) addr = %q, want %q", tt.input, addr, tt.wantAddr)
			}
		})
	}
}

func TestFindHeader_CaseSensitive(t *testing.T) {
	headers := []domain.Header{
		{Name: "from", Value: "lower@example.com"},
		{Name: "Subject", Value: "Hello"},
	}
	if got := findHeader(headers, "From"); got != "" {
		t.Errorf("findHeader(From) = %q, want empty for lowercase header", got)
	}
	if got := findHeader(headers, "Subject"); got != "Hello" {
		t.Errorf("findHeader(Subject) = %q, want %q", got, "Hello")
	}
}

func TestDecodeBase64URL_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	encodings := []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding}
	for i := 0; i < 200; i++ {
		buf := make([]byte, r.Intn(64))
		r.Read(buf)
		for _, e := range encodings {
			got, err := DecodeBase64URL(e.EncodeToString(buf))
			if err != nil {
				t.Fatalf("DecodeBase64URL() error: %v", err)
			}
			if !bytes.Equal([]byte(got), buf) {
				t.Fatalf("round trip mismatch for %x: got %x", buf, []byte(got))
			}
		}
	}
}

func TestDecodeBase64URL_Invalid(t *testing.T) {
	if _, err := DecodeBase64URL("not base64!!"); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

func TestDecode_InlineBody(t *testing.T) {
	raw := &domain.RawMessage{
		ID:       "m1",
		ThreadID: "t1",
		Headers: []domain.Header{
			{Name: "From", Value: `"Alice" <alice@example.com>`},
			{Name: "To", Value: "bob@example.com"},
			{Name: "Subject", Value: "Hi"},
		},
		Body:         enc("plain body"),
		Parts:        []domain.Part{{MIMEType: "text/html", Data: enc("<p>ignored</p>")}},
		Snippet:      "plain",
		Labels:       []string{"INBOX"},
		InternalDate: 1718445600000,
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.ProviderID != "m1" || got.ThreadID != "t1" {
		t.Errorf("ids = %q/%q, want m1/t1", got.ProviderID, got.ThreadID)
	}
	if got.FromEmail != "alice@example.com" || got.FromDisplayName != "Alice" {
		t.Errorf("from = %q <%q>", got.FromDisplayName, got.FromEmail)
	}
	if got.ToEmail != "bob@example.com" {
		t.Errorf("ToEmail = %q, want %q", got.ToEmail, "bob@example.com")
	}
	if got.BodyText != "plain body" {
		t.Errorf("BodyText = %q, want %q", got.BodyText, "plain body")
	}
	if got.BodyHTML != "" {
		t.Errorf("BodyHTML = %q, want empty when inline body present", got.BodyHTML)
	}
	want := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	if !got.ReceivedAt.Equal(want) {
		t.Errorf("ReceivedAt = %v, want %v", got.ReceivedAt, want)
	}
}

func TestDecode_Parts(t *testing.T) {
	raw := &domain.RawMessage{
		ID: "m2",
		Parts: []domain.Part{
			{MIMEType: "application/pdf", Data: enc("%PDF")},
			{MIMEType: "text/html", Data: enc("<b>first html</b>")},
			{MIMEType: "text/plain", Data: enc("first text")},
			{MIMEType: "text/plain", Data: enc("second text")},
			{MIMEType: "text/html", Data: enc("<b>second html</b>")},
		},
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.BodyText != "first text" {
		t.Errorf("BodyText = %q, want %q", got.BodyText, "first text")
	}
	if got.BodyHTML != "<b>first html</b>" {
		t.Errorf("BodyHTML = %q, want %q", got.BodyHTML, "<b>first html</b>")
	}
}

func TestDecode_MissingHeaders(t *testing.T) {
	got, err := Decode(&domain.RawMessage{ID: "m3"})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.FromEmail != "" || got.ToEmail != "" || got.Subject != "" {
		t.Errorf("expected empty header fields, got from=%q to=%q subject=%q", got.FromEmail, got.ToEmail, got.Subject)
	}
}

func TestDecode_Flags(t *testing.T) {
	tests := []struct {
		name        string
		labels      []string
		wantRead    bool
		wantStarred bool
	}{
		{"inbox only", []string{"INBOX"}, true, false},
		{"unread and starred", []string{"UNREAD", "STARRED"}, false, true},
		{"no labels", nil, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(&domain.RawMessage{ID: "m", Labels: tt.labels})
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got.IsRead != tt.wantRead {
				t.Errorf("IsRead = %v, want %v", got.IsRead, tt.wantRead)
			}
			if got.IsStarred != tt.wantStarred {
				t.Errorf("IsStarred = %v, want %v", got.IsStarred, tt.wantStarred)
			}
		})
	}
}

func TestDecode_InvalidBody(t *testing.T) {
	_, err := Decode(&domain.RawMessage{ID: "bad", Body: "***"})
	if err == nil {
		t.Fatal("expected error for undecodable body")
	}
}
