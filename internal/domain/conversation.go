package domain

// Source is one knowledge source the assistant cited for a reply.
type Source struct {
	Category  string
	Relevance float64
}

// Attachment references the media carried by an image or voice message.
type Attachment struct {
	Kind     string // "image" or "audio"
	Name     string
	MIMEType string
	// Ref is a backend-provided reference (URL or id) when the media lives
	// server-side, e.g. a synthesized audio response.
	Ref string
}

// Message is one exchange unit in a conversation timeline.
//
// ID is a locally unique, monotonically increasing ordinal assigned at
// creation time and never reused. Timeline order is insertion order only;
// Timestamp is display metadata and never used for sorting.
type Message struct {
	ID         MessageID
	Role       Role
	Type       MessageType
	Content    string
	Timestamp  Timestamp
	Status     MessageStatus
	Attachment *Attachment
	Confidence *float64
	Sources    []Source
	// Analysis carries the structured crop-image analysis text when the
	// backend returned one alongside the reply.
	Analysis string
}

// ConversationSummary is one row of the conversation list. Title,
// LastMessage and UpdatedAt are authoritative from the backend only.
type ConversationSummary struct {
	ID          ConversationID
	Title       string
	LastMessage string
	UpdatedAt   Timestamp
}

// Conversation is a named thread of messages as returned by the backend.
type Conversation struct {
	ID          ConversationID
	Title       string
	LastMessage string
	UpdatedAt   Timestamp
	Messages    []*Message
}
