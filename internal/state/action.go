package state

// Action is the sole write path into the Store: a closed set of typed
// mutation commands, one constructor per kind. The reducer set matches
// variants exhaustively; anything it does not recognize reduces to a
// no-op, never an error.
type Action interface {
	// Kind returns a stable dotted name for the mutation, used for bus
	// announcements and metrics labels.
	Kind() string

	isAction()
}

type loginAction struct{ token string }
type logoutAction struct{}
type setActiveRoleAction struct{ role string }
type upsertConversationAction struct{ convo Conversation }
type removeConversationAction struct{ sid string }
type setCurrentConversationAction struct{ sid string }
type setLastReadIndexAction struct{ index int64 }
type addMessagesAction struct {
	conversationSid string
	messages        []Message
}
type pushMessagesAction struct {
	conversationSid string
	messages        []Message
}
type removeMessagesAction struct {
	conversationSid string
	messageSids     []string
}
type setLoadingAction struct{ loading bool }
type setParticipantsAction struct {
	conversationSid string
	participants    []Participant
}
type setUnreadCountAction struct {
	conversationSid string
	count           int64
}

// ConversationUpdate carries the mutable fields of an
// update-conversation-fields action. Nil pointers leave the stored value
// untouched.
type ConversationUpdate struct {
	FriendlyName         *string
	Status               *string
	LastReadMessageIndex *int64
	Attributes           map[string]any
}

type updateConversationAction struct {
	conversationSid string
	update          ConversationUpdate
}
type addAttachmentAction struct {
	conversationSid string
	messageSid      string
	attachment      Attachment
}
type clearAttachmentsAction struct {
	conversationSid string
	messageSid      string
}
type typingStartedAction struct {
	conversationSid string
	identity        string
}
type typingEndedAction struct {
	conversationSid string
	identity        string
}
type addNotificationsAction struct{ notifications []Notification }
type removeNotificationsAction struct{ count int }
type setConnectionStateAction struct {
	endpointID string
	state      ConnectionState
}

func (loginAction) Kind() string                  { return "login" }
func (logoutAction) Kind() string                 { return "logout" }
func (setActiveRoleAction) Kind() string          { return "activeRole.set" }
func (upsertConversationAction) Kind() string     { return "conversation.upsert" }
func (removeConversationAction) Kind() string     { return "conversation.remove" }
func (setCurrentConversationAction) Kind() string { return "conversation.setCurrent" }
func (setLastReadIndexAction) Kind() string       { return "lastReadIndex.set" }
func (addMessagesAction) Kind() string            { return "messages.add" }
func (pushMessagesAction) Kind() string           { return "messages.push" }
func (removeMessagesAction) Kind() string         { return "messages.remove" }
func (setLoadingAction) Kind() string             { return "loading.set" }
func (setParticipantsAction) Kind() string        { return "participants.set" }
func (setUnreadCountAction) Kind() string         { return "unread.set" }
func (updateConversationAction) Kind() string     { return "conversation.update" }
func (addAttachmentAction) Kind() string          { return "attachment.add" }
func (clearAttachmentsAction) Kind() string       { return "attachments.clear" }
func (typingStartedAction) Kind() string          { return "typing.started" }
func (typingEndedAction) Kind() string            { return "typing.ended" }
func (addNotificationsAction) Kind() string       { return "notifications.add" }
func (removeNotificationsAction) Kind() string    { return "notifications.remove" }
func (setConnectionStateAction) Kind() string     { return "connection.set" }

func (loginAction) isAction()                  {}
func (logoutAction) isAction()                 {}
func (setActiveRoleAction) isAction()          {}
func (upsertConversationAction) isAction()     {}
func (removeConversationAction) isAction()     {}
func (setCurrentConversationAction) isAction() {}
func (setLastReadIndexAction) isAction()       {}
func (addMessagesAction) isAction()            {}
func (pushMessagesAction) isAction()           {}
func (removeMessagesAction) isAction()         {}
func (setLoadingAction) isAction()             {}
func (setParticipantsAction) isAction()        {}
func (setUnreadCountAction) isAction()         {}
func (updateConversationAction) isAction()     {}
func (addAttachmentAction) isAction()          {}
func (clearAttachmentsAction) isAction()       {}
func (typingStartedAction) isAction()          {}
func (typingEndedAction) isAction()            {}
func (addNotificationsAction) isAction()       {}
func (removeNotificationsAction) isAction()    {}
func (setConnectionStateAction) isAction()     {}

// Login stores the session access token.
func Login(token string) Action { return loginAction{token: token} }

// Logout resets every collection to its initial empty value.
func Logout() Action { return logoutAction{} }

// SetActiveRole records the authenticated user's active role.
func SetActiveRole(role string) Action { return setActiveRoleAction{role: role} }

// UpsertConversation inserts or replaces a conversation by sid.
func UpsertConversation(c Conversation) Action { return upsertConversationAction{convo: c} }

// RemoveConversation deletes a conversation by sid.
func RemoveConversation(sid string) Action { return removeConversationAction{sid: sid} }

// SetCurrentConversation marks the conversation currently open in the UI.
// An empty sid means none is open.
func SetCurrentConversation(sid string) Action { return setCurrentConversationAction{sid: sid} }

// SetLastReadIndex records the read cursor of the currently open
// conversation.
func SetLastReadIndex(index int64) Action { return setLastReadIndexAction{index: index} }

// AddMessages merges messages into a conversation by sid, re-sorting by
// index afterwards. Inserting the same message twice yields one entry.
func AddMessages(conversationSid string, messages []Message) Action {
	return addMessagesAction{conversationSid: conversationSid, messages: messages}
}

// PushMessages appends freshly sent, locally authored messages without
// re-sorting. Only safe for messages known to be newest.
func PushMessages(conversationSid string, messages []Message) Action {
	return pushMessagesAction{conversationSid: conversationSid, messages: messages}
}

// RemoveMessages deletes messages from a conversation by sid list.
func RemoveMessages(conversationSid string, messageSids []string) Action {
	return removeMessagesAction{conversationSid: conversationSid, messageSids: messageSids}
}

// SetLoading toggles the global loading flag.
func SetLoading(loading bool) Action { return setLoadingAction{loading: loading} }

// SetParticipants replaces a conversation's participant list wholesale.
func SetParticipants(conversationSid string, participants []Participant) Action {
	return setParticipantsAction{conversationSid: conversationSid, participants: participants}
}

// SetUnreadCount records a conversation's recomputed unread counter.
// Negative counts are clamped to zero.
func SetUnreadCount(conversationSid string, count int64) Action {
	return setUnreadCountAction{conversationSid: conversationSid, count: count}
}

// UpdateConversation patches individual fields of a stored conversation.
func UpdateConversation(conversationSid string, update ConversationUpdate) Action {
	return updateConversationAction{conversationSid: conversationSid, update: update}
}

// AddAttachment pins downloaded media to a message.
func AddAttachment(conversationSid, messageSid string, attachment Attachment) Action {
	return addAttachmentAction{conversationSid: conversationSid, messageSid: messageSid, attachment: attachment}
}

// ClearAttachments drops all media pinned to a message.
func ClearAttachments(conversationSid, messageSid string) Action {
	return clearAttachmentsAction{conversationSid: conversationSid, messageSid: messageSid}
}

// TypingStarted adds a participant to a conversation's typing set.
func TypingStarted(conversationSid, identity string) Action {
	return typingStartedAction{conversationSid: conversationSid, identity: identity}
}

// TypingEnded removes a participant from a conversation's typing set.
func TypingEnded(conversationSid, identity string) Action {
	return typingEndedAction{conversationSid: conversationSid, identity: identity}
}

// AddNotifications queues user-facing notifications.
func AddNotifications(notifications []Notification) Action {
	return addNotificationsAction{notifications: notifications}
}

// RemoveNotifications drops the oldest count notifications from the queue.
func RemoveNotifications(count int) Action { return removeNotificationsAction{count: count} }

// SetConnectionState records an endpoint session's connection state.
func SetConnectionState(endpointID string, s ConnectionState) Action {
	return setConnectionStateAction{endpointID: endpointID, state: s}
}
