package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
)

// ParsedEmail is the normalized form of a provider message. Body is
// always HTML: plain-text-only messages are escaped on the way in so
// downstream rendering never has to branch.
type ParsedEmail struct {
	GmailID       string
	ThreadID      string
	SenderID      string
	SenderName    string
	Subject       string
	Body          string
	Snippet       string
	ReceivedAt    time.Time
	HasAttachment bool
}

/// Parse normalizes a full Gmail message. It is a pure function: no
// network, no storage, and malformed body encodings degrade to an
// empty body instead of failing (the classifier treats empty bodies
// as low-information, not as an error).
func Parse(msg *gmailapi.Message) ParsedEmail {
	parsed := ParsedEmail{
		GmailID:    msg.Id,
		ThreadID:   msg.ThreadId,
		Snippet:    msg.Snippet,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}

	if msg.Payload == nil {
		return parsed
	}

	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "From":
			parsed.SenderName, parsed.SenderID = ParseSender(h.Value)
		case "Subject":
			parsed.Subject = h.Value
		}
	}

	parsed.Body = extractBody(msg.Payload)
	parsed.HasAttachment = hasAttachment(msg.Payload)
	return parsed
}

// extractBody prefers the first text/html part anywhere in the part
// tree; failing that, the first text/plain part escaped into minimal
// HTML.
func extractBody(root *gmailapi.MessagePart) string {
	if html := findPart(root, "text/html"); html != "" {
		return html
	}
	if plain := findPart(root, "text/plain"); plain != "" {
		return escapePlainText(plain)
	}
	return ""
}

// findPart walks the part tree depth-first and returns the decoded
// body of the first part with the wanted MIME type.
func findPart(part *gmailapi.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, p := range part.Parts {
		if body := findPart(p, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// decodeBody decodes Gmail's base64url body encoding. Malformed data
// yields an empty string rather than an error.
func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

// escapePlainText turns a plain-text body into minimal HTML: entity
// escaping plus newline-to-<br> conversion.
func escapePlainText(text string) string {
	escaped := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "<br>")
	return strings.ReplaceAll(escaped, "\n", "<br>")
}

// ParseSender splits a From header into display name and address.
// Accepts `"Name" <addr>` and bare-address forms; when no display
// name is present the local part of the address stands in for it.
func ParseSender(header string) (name, address string) {
	if addr, err := mail.ParseAddress(header); err == nil {
		address = addr.Address
		name = addr.Name
	} else {
		address = strings.TrimSpace(header)
	}
	if name == "" {
		name = localPart(address)
	}
	return name, address
}

func localPart(address string) string {
	if i := strings.Index(address, "@"); i > 0 {
		return address[:i]
	}
	return address
}

// hasAttachment reports whether any part in the tree carries a
// non-empty filename.
func hasAttachment(part *gmailapi.MessagePart) bool {
	if part == nil {
		return false
	}
	if part.Filename != "" {
		return true
	}
	for _, p := range part.Parts {
		if hasAttachment(p) {
			return true
		}
	}
	return false
}
