package state

// ParticipantKindChat marks a first-class chat participant. Anything else
// (SMS, WhatsApp proxy participants) is a channel participant whose
// delivery is tracked through aggregated receipts instead of read cursors.
const ParticipantKindChat = "chat"

// LocalMessageIndex is the index of a locally composed message that the
// server has not acknowledged yet.
const LocalMessageIndex int64 = -1

// ConnectionState describes one endpoint session's connection lifecycle.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDenied       ConnectionState = "denied"
	ConnectionReconnecting ConnectionState = "reconnecting"
)

// Conversation is the stored projection of a remote conversation.
type Conversation struct {
	Sid                  string
	FriendlyName         string
	Status               string // "joined", "left", ...
	LastReadMessageIndex int64
	Attributes           map[string]any
}

// Message is the stored projection of a remote message. Index is the
// server-assigned monotonic position within its conversation, or
// LocalMessageIndex for an optimistic local echo.
type Message struct {
	Sid                string
	ConversationSid    string
	Author             string
	Body               string
	Index              int64
	Timestamp          int64 // unix millis
	AggregatedDelivery bool
	Attributes         map[string]any
}

// Participant is a conversation member with a read cursor. Identity is the
// stable key within a conversation; Kind distinguishes chat users from
// proxy channel participants.
type Participant struct {
	Sid                  string
	ConversationSid      string
	Identity             string
	Kind                 string
	LastReadMessageIndex int64
}

// Attachment is downloaded media pinned to a message being composed or
// displayed. Not persisted, cleared wholesale per message.
type Attachment struct {
	MediaSid string
	Data     []byte
}

// Notification is a user-facing toast queued by the engine.
type Notification struct {
	ID        string
	Message   string
	Variant   string // "success" or "error"
	Timestamp int64
}

// AppState is the full reconciled view. It is owned by the Store; every
// field is replaced, never mutated in place, by reducer application.
type AppState struct {
	Token               string
	ActiveRole          string
	Loading             bool
	CurrentConversation string
	LastReadIndex       int64

	Conversations []Conversation
	Messages      map[string][]Message
	Participants  map[string][]Participant
	UnreadCounts  map[string]int64
	Typing        map[string]map[string]struct{}
	Attachments   map[string]map[string][]Attachment
	Notifications []Notification

	ConnectionStates map[string]ConnectionState // keyed by endpoint ID
}

func initialState() AppState {
	return AppState{
		Loading:          true,
		LastReadIndex:    -1,
		Messages:         map[string][]Message{},
		Participants:     map[string][]Participant{},
		UnreadCounts:     map[string]int64{},
		Typing:           map[string]map[string]struct{}{},
		Attachments:      map[string]map[string][]Attachment{},
		ConnectionStates: map[string]ConnectionState{},
	}
}
