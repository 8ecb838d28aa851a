package domain

import "time"

const (
	LabelInbox   = "INBOX"
	LabelUnread  = "UNREAD"
	LabelStarred = "STARRED"
)

type Header struct {
	Name  string
	Value string
}

// Part is one typed body part of a provider message. Data is base64url encoded.
type Part struct {
	MIMEType string
	Data     string
}

// RawMessage is the provider-shaped message as fetched, before decoding.
// Body holds a single inline payload; when it is empty the typed Parts apply.
type RawMessage struct {
	ID           string
	ThreadID     string
	Headers      []Header
	Body         string
	Parts        []Part
	Snippet      string
	Labels       []string
	InternalDate int64 // epoch milliseconds
}

// Message is the decoded and classified record persisted per account and
// provider message ID.
type Message struct {
	AccountID       string
	ProviderID      string
	ThreadID        string
	FromEmail       string
	FromDisplayName string
	ToEmail         string
	Subject         string
	BodyText        string
	BodyHTML        string
	Snippet         string
	Labels          []string
	Priority        int
	Category        string
	IsRead          bool
	IsStarred       bool
	ReceivedAt      time.Time
}

func (m *Message) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}
