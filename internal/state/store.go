package state

import (
	"sync"
	"time"

	"github.com/RedFoundry/convosync/internal/bus"
	"github.com/RedFoundry/convosync/internal/metrics"
)

// Store is the single versioned state container. All writes go through
// Dispatch; one reduction runs at a time, so two handlers resolving
// simultaneously can never interleave inside a mutation. Reads always see
// the latest committed state.
//
// The store is created at application start and torn down with the app;
// there is no package-level instance.
type Store struct {
	mu      sync.Mutex
	state   AppState
	version uint64
	bus     *bus.Bus
}

// NewStore creates a store holding the initial empty state. The bus may
// be nil; when present, every committed action is announced under the
// "store." namespace so consumers know to re-read.
func NewStore(b *bus.Bus) *Store {
	return &Store{state: initialState(), bus: b}
}

// Dispatch applies one action synchronously and commits the result.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = reduce(s.state, a)
	s.version++
	s.mu.Unlock()

	metrics.ActionsDispatched.WithLabelValues(a.Kind()).Inc()
	if s.bus != nil {
		s.bus.Publish(bus.Event{
			Kind:      "store." + a.Kind(),
			Timestamp: time.Now(),
		})
	}
}

// Version returns the number of committed actions.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// State returns a snapshot of the whole state. Collections are copied at
// the top level; snapshot slices and maps are safe to iterate while the
// store keeps moving.
func (s *Store) State() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.state)
}

// Token returns the current session access token, empty when logged out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

// ActiveRole returns the authenticated user's active role.
func (s *Store) ActiveRole() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActiveRole
}

// Loading reports whether the initial load is still in progress.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Loading
}

// CurrentConversation returns the sid of the open conversation, or "".
func (s *Store) CurrentConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentConversation
}

// Conversations returns the stored conversations in display order.
func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Conversation(nil), s.state.Conversations...)
}

// ConversationBySid looks a conversation up by sid.
func (s *Store) ConversationBySid(sid string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.state.Conversations {
		if c.Sid == sid {
			return c, true
		}
	}
	return Conversation{}, false
}

// Messages returns a conversation's messages in display order.
func (s *Store) Messages(conversationSid string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.state.Messages[conversationSid]...)
}

// Participants returns a conversation's current participant list.
func (s *Store) Participants(conversationSid string) []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Participant(nil), s.state.Participants[conversationSid]...)
}

// UnreadCount returns a conversation's derived unread counter.
func (s *Store) UnreadCount(conversationSid string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UnreadCounts[conversationSid]
}

// TypingParticipants returns the identities currently typing in a
// conversation.
func (s *Store) TypingParticipants(conversationSid string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.state.Typing[conversationSid]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Attachments returns the media pinned to a message.
func (s *Store) Attachments(conversationSid, messageSid string) []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	byMsg := s.state.Attachments[conversationSid]
	if byMsg == nil {
		return nil
	}
	return append([]Attachment(nil), byMsg[messageSid]...)
}

// Notifications returns the pending notification queue, oldest first.
func (s *Store) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.state.Notifications...)
}

// ConnectionState returns one endpoint session's connection state.
// Endpoints never seen report disconnected.
func (s *Store) ConnectionState(endpointID string) ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.state.ConnectionStates[endpointID]; ok {
		return st
	}
	return ConnectionDisconnected
}

func snapshot(s AppState) AppState {
	out := s
	out.Conversations = append([]Conversation(nil), s.Conversations...)
	out.Notifications = append([]Notification(nil), s.Notifications...)

	out.Messages = make(map[string][]Message, len(s.Messages))
	for k, v := range s.Messages {
		out.Messages[k] = append([]Message(nil), v...)
	}
	out.Participants = make(map[string][]Participant, len(s.Participants))
	for k, v := range s.Participants {
		out.Participants[k] = append([]Participant(nil), v...)
	}
	out.UnreadCounts = make(map[string]int64, len(s.UnreadCounts))
	for k, v := range s.UnreadCounts {
		out.UnreadCounts[k] = v
	}
	out.Typing = make(map[string]map[string]struct{}, len(s.Typing))
	for k, v := range s.Typing {
		set := make(map[string]struct{}, len(v))
		for id := range v {
			set[id] = struct{}{}
		}
		out.Typing[k] = set
	}
	out.Attachments = cloneAttachmentMap(s.Attachments)
	out.ConnectionStates = make(map[string]ConnectionState, len(s.ConnectionStates))
	for k, v := range s.ConnectionStates {
		out.ConnectionStates[k] = v
	}
	return out
}
