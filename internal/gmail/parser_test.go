package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func textPart(mimeType, body string) *gmailapi.MessagePart {
	return &gmailapi.MessagePart{
		MimeType: mimeType,
		Body:     &gmailapi.MessagePartBody{Data: b64(body)},
	}
}

func TestParseBodyPlainTextEscaped(t *testing.T) {
	msg := &gmailapi.Message{
		Id:           "m1",
		InternalDate: 1700000000000,
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Parts:    []*gmailapi.MessagePart{textPart("text/plain", "Hello\nWorld")},
		},
	}

	parsed := Parse(msg)
	if parsed.Body != "Hello<br>World" {
		t.Fatalf("body = %q, want %q", parsed.Body, "Hello<br>World")
	}
}

func TestParseBodyPrefersHTML(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m2",
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmailapi.MessagePart{
				textPart("text/plain", "plain version"),
				textPart("text/html", "<p>html version</p>"),
			},
		},
	}

	parsed := Parse(msg)
	if parsed.Body != "<p>html version</p>" {
		t.Fatalf("body = %q, want the html part verbatim", parsed.Body)
	}
}

func TestParseBodyNestedMultipart(t *testing.T) {
	// html buried two levels deep must still win over a shallower
	// plain part.
	msg := &gmailapi.Message{
		Id: "m3",
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmailapi.MessagePart{
				textPart("text/plain", "outer plain"),
				{
					MimeType: "multipart/alternative",
					Parts: []*gmailapi.MessagePart{
						{
							MimeType: "multipart/related",
							Parts:    []*gmailapi.MessagePart{textPart("text/html", "<b>deep</b>")},
						},
					},
				},
			},
		},
	}

	parsed := Parse(msg)
	if parsed.Body != "<b>deep</b>" {
		t.Fatalf("body = %q, want nested html part", parsed.Body)
	}
}

func TestParseBodyFirstMatchWins(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m4",
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmailapi.MessagePart{
				textPart("text/html", "first"),
				textPart("text/html", "second"),
			},
		},
	}

	if got := Parse(msg).Body; got != "first" {
		t.Fatalf("body = %q, want first html part", got)
	}
}

func TestParseBodyEscaping(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m5",
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Body:     &gmailapi.MessagePartBody{Data: b64("a < b & c > d")},
		},
	}

	want := "a &lt; b &amp; c &gt; d"
	if got := Parse(msg).Body; got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
}

func TestParseMalformedBase64YieldsEmptyBody(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m6",
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Body:     &gmailapi.MessagePartBody{Data: "!!!not-base64!!!"},
		},
	}

	if got := Parse(msg).Body; got != "" {
		t.Fatalf("body = %q, want empty body for malformed data", got)
	}
}

func TestParseSender(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantName string
		wantAddr string
	}{
		{
			name:     "display-name",
			header:   `"Jane Doe" <jane@example.com>`,
			wantName: "Jane Doe",
			wantAddr: "jane@example.com",
		},
		{
			name:     "bare-address",
			header:   "bob@example.com",
			wantName: "bob",
			wantAddr: "bob@example.com",
		},
		{
			name:     "unquoted-name",
			header:   "Carlos Romano <carlos@empresa.com>",
			wantName: "Carlos Romano",
			wantAddr: "carlos@empresa.com",
		},
		{
			name:     "angle-brackets-only",
			header:   "<ana@example.com>",
			wantName: "ana",
			wantAddr: "ana@example.com",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			name, addr := ParseSender(tc.header)
			if name != tc.wantName || addr != tc.wantAddr {
				t.Fatalf("ParseSender(%q) = (%q, %q), want (%q, %q)",
					tc.header, name, addr, tc.wantName, tc.wantAddr)
			}
		})
	}
}

func TestParseHeadersAndTimestamp(t *testing.T) {
	msg := &gmailapi.Message{
		Id:           "m7",
		ThreadId:     "t7",
		Snippet:      "snippet text",
		InternalDate: 1700000000000, // ms epoch
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Body:     &gmailapi.MessagePartBody{Data: b64("hi")},
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: `"Jane Doe" <jane@example.com>`},
				{Name: "Subject", Value: "Quarterly review"},
			},
		},
	}

	parsed := Parse(msg)
	if parsed.GmailID != "m7" || parsed.ThreadID != "t7" {
		t.Fatalf("ids = (%q, %q)", parsed.GmailID, parsed.ThreadID)
	}
	if parsed.Subject != "Quarterly review" {
		t.Fatalf("subject = %q", parsed.Subject)
	}
	if parsed.SenderName != "Jane Doe" || parsed.SenderID != "jane@example.com" {
		t.Fatalf("sender = (%q, %q)", parsed.SenderName, parsed.SenderID)
	}
	want := time.UnixMilli(1700000000000)
	if !parsed.ReceivedAt.Equal(want) {
		t.Fatalf("receivedAt = %v, want %v", parsed.ReceivedAt, want)
	}
}

func TestParseAttachmentDetection(t *testing.T) {
	withAttachment := &gmailapi.Message{
		Id: "m8",
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmailapi.MessagePart{
				textPart("text/plain", "see attached"),
				{
					MimeType: "multipart/related",
					Parts: []*gmailapi.MessagePart{
						{MimeType: "application/pdf", Filename: "report.pdf"},
					},
				},
			},
		},
	}
	if !Parse(withAttachment).HasAttachment {
		t.Fatal("expected nested attachment to be detected")
	}

	without := &gmailapi.Message{
		Id:      "m9",
		Payload: textPart("text/plain", "no attachments here"),
	}
	if Parse(without).HasAttachment {
		t.Fatal("expected no attachment")
	}
}

func TestParseNilPayload(t *testing.T) {
	parsed := Parse(&gmailapi.Message{Id: "m10", Snippet: "s"})
	if parsed.Body != "" || parsed.HasAttachment {
		t.Fatalf("nil payload should parse to empty body, got %q", parsed.Body)
	}
	if parsed.Snippet != "s" {
		t.Fatalf("snippet = %q", parsed.Snippet)
	}
}
