// Package decode turns provider-shaped raw messages into stored message
// records. Priority and category are left for the classifier.
package decode

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lu-zhengda/inboxsync/internal/domain"
)

var senderPattern = regexp.MustCompile(`^(.*?)\s*<(.+)>$`)

// Decode extracts headers, bodies and flags from raw. It fails only when a
// body payload is not valid base64url.
func Decode(raw *domain.RawMessage) (*domain.Message, error) {
	from := findHeader(raw.Headers, "From")
	name, addr := ParseSender(from)

	text, html, err := extractBody(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode body of message %s: %w", raw.ID, err)
	}

	return &domain.Message{
		ProviderID:      raw.ID,
		ThreadID:        raw.ThreadID,
		FromEmail:       addr,
		FromDisplayName: name,
		ToEmail:         findHeader(raw.Headers, "To"),
		Subject:         findHeader(raw.Headers, "Subject"),
		BodyText:        text,
		BodyHTML:        html,
		Snippet:         raw.Snippet,
		Labels:          raw.Labels,
		IsRead:          !containsLabel(raw.Labels, domain.LabelUnread),
		IsStarred:       containsLabel(raw.Labels, domain.LabelStarred),
		ReceivedAt:      time.UnixMilli(raw.InternalDate).UTC(),
	}, nil
}

// findHeader returns the value of the first header whose name matches
// exactly. Lookup is case-sensitive.
func findHeader(headers []domain.Header, name string) string {
	for _, h := range headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// ParseSender splits a `Display Name <address>` value. Values without that
// shape are returned whole as the address with an empty display name.
func ParseSender(s string) (name, addr string) {
	m := senderPattern.FindStringSubmatch(s)
	if m == nil {
		return "", s
	}
	name = strings.TrimSpace(strings.ReplaceAll(m[1], `"`, ""))
	return name, m[2]
}

func extractBody(raw *domain.RawMessage) (text, html string, err error) {
	if raw.Body != "" {
		text, err = DecodeBase64URL(raw.Body)
		return text, "", err
	}

	var haveText, haveHTML bool
	for _, p := range raw.Parts {
		if p.Data == "" {
			continue
		}
		switch {
		case p.MIMEType == "text/plain" && !haveText:
			if text, err = DecodeBase64URL(p.Data); err != nil {
				return "", "", err
			}
			haveText = true
		case p.MIMEType == "text/html" && !haveHTML:
			if html, err = DecodeBase64URL(p.Data); err != nil {
				return "", "", err
			}
			haveHTML = true
		}
	}
	return text, html, nil
}

// DecodeBase64URL decodes base64 using the URL-safe alphabet. Padding is
// optional.
func DecodeBase64URL(s string) (string, error) {
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	s = strings.TrimRight(s, "=")
	data, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid base64url payload: %w", err)
	}
	return string(data), nil
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
