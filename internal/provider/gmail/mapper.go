package gmail

import (
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/lu-zhengda/inboxsync/internal/domain"
)

// mapMessage converts a Gmail API Message to a domain RawMessage. Body data
// stays base64url encoded; decoding happens later so a bad part fails only
// its own message.
func mapMessage(msg *gmailapi.Message) *domain.RawMessage {
	raw := &domain.RawMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		Snippet:      msg.Snippet,
		Labels:       msg.LabelIds,
		InternalDate: msg.InternalDate,
	}

	payload := msg.Payload
	if payload == nil {
		return raw
	}

	raw.Headers = make([]domain.Header, 0, len(payload.Headers))
	for _, h := range payload.Headers {
		raw.Headers = append(raw.Headers, domain.Header{Name: h.Name, Value: h.Value})
	}

	if len(payload.Parts) == 0 {
		if payload.Body != nil {
			raw.Body = payload.Body.Data
		}
		return raw
	}
	raw.Parts = flattenParts(payload.Parts, nil)
	return raw
}

// flattenParts collects leaf parts depth-first, so nested
// multipart/alternative bodies keep their document order.
func flattenParts(parts []*gmailapi.MessagePart, out []domain.Part) []domain.Part {
	for _, p := range parts {
		if len(p.Parts) > 0 {
			out = flattenParts(p.Parts, out)
			continue
		}
		data := ""
		if p.Body != nil {
			data = p.Body.Data
		}
		out = append(out, domain.Part{MIMEType: p.MimeType, Data: data})
	}
	return out
}
