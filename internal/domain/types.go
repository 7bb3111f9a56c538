package domain

import "time"

type ConversationID string
type MessageID uint64

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type MessageType string

const (
	TypeText          MessageType = "text"
	TypeImage         MessageType = "image"
	TypeVoice         MessageType = "voice"
	TypeVoiceResponse MessageType = "voice_response"
	TypeImageAnalysis MessageType = "image_analysis"
)

type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusDelivered MessageStatus = "delivered"
	StatusErrored   MessageStatus = "errored"
)

// LanguageCode is a locale code from the fixed set the app supports
// (en, hi, pa, ur). The enumerated set itself lives in the locale package.
type LanguageCode string

type Timestamp = time.Time
