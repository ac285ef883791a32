package chat

import "github.com/RedFoundry/convosync/internal/state"

// Remote event payloads, one struct per kind. Delivery is at-least-once
// and possibly reordered; the sync engine owns deduplication.

type ConversationJoined struct {
	Conversation Conversation
}

type ConversationRemoved struct {
	Conversation Conversation
}

type ConversationUpdated struct {
	Conversation Conversation
}

type MessageAdded struct {
	Message Message
}

type MessageUpdated struct {
	Message Message
}

type MessageRemoved struct {
	Message Message
}

type ParticipantJoined struct {
	Conversation Conversation
	Participant  Participant
}

type ParticipantLeft struct {
	Conversation Conversation
	Participant  Participant
}

type ParticipantUpdated struct {
	Conversation Conversation
	Participant  Participant
}

type TypingStarted struct {
	Conversation Conversation
	Participant  Participant
}

type TypingEnded struct {
	Conversation Conversation
	Participant  Participant
}

// TokenAboutToExpire fires shortly before the session credential lapses.
type TokenAboutToExpire struct{}

// TokenExpired fires once the session credential has lapsed.
type TokenExpired struct{}

type ConnectionStateChanged struct {
	State state.ConnectionState
}
