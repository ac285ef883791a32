package state

import "sort"

// reduce applies one action to the whole state, combining the
// per-collection reducers. Logout short-circuits to a full reset; every
// other action flows through each reducer, and reducers that do not
// recognize it return their slice of the state unchanged.
//
// Reducers never mutate their input: collections are cloned before any
// change, so a previously returned snapshot stays valid.
func reduce(s AppState, a Action) AppState {
	if _, ok := a.(logoutAction); ok {
		return initialState()
	}

	s.Token = reduceToken(s.Token, a)
	s.ActiveRole = reduceActiveRole(s.ActiveRole, a)
	s.Loading = reduceLoading(s.Loading, a)
	s.CurrentConversation = reduceCurrentConversation(s.CurrentConversation, a)
	s.LastReadIndex = reduceLastReadIndex(s.LastReadIndex, a)
	s.Conversations = reduceConversations(s.Conversations, a)
	s.Messages = reduceMessages(s.Messages, a)
	s.Participants = reduceParticipants(s.Participants, a)
	s.UnreadCounts = reduceUnreadCounts(s.UnreadCounts, a)
	s.Typing = reduceTyping(s.Typing, a)
	s.Attachments = reduceAttachments(s.Attachments, a)
	s.Notifications = reduceNotifications(s.Notifications, a)
	s.ConnectionStates = reduceConnectionStates(s.ConnectionStates, a)
	return s
}

func reduceToken(token string, a Action) string {
	if act, ok := a.(loginAction); ok {
		return act.token
	}
	return token
}

func reduceActiveRole(role string, a Action) string {
	if act, ok := a.(setActiveRoleAction); ok {
		return act.role
	}
	return role
}

func reduceLoading(loading bool, a Action) bool {
	if act, ok := a.(setLoadingAction); ok {
		return act.loading
	}
	return loading
}

func reduceCurrentConversation(sid string, a Action) string {
	if act, ok := a.(setCurrentConversationAction); ok {
		return act.sid
	}
	return sid
}

func reduceLastReadIndex(index int64, a Action) int64 {
	if act, ok := a.(setLastReadIndexAction); ok {
		return act.index
	}
	return index
}

// reduceConversations keeps at most one entry per sid. Upsert replaces in
// place, preserving the relative order of the rest; an unknown sid
// appends.
func reduceConversations(convos []Conversation, a Action) []Conversation {
	switch act := a.(type) {
	case upsertConversationAction:
		out := make([]Conversation, len(convos))
		copy(out, convos)
		for i := range out {
			if out[i].Sid == act.convo.Sid {
				out[i] = act.convo
				return out
			}
		}
		return append(out, act.convo)

	case removeConversationAction:
		out := make([]Conversation, 0, len(convos))
		for _, c := range convos {
			if c.Sid != act.sid {
				out = append(out, c)
			}
		}
		return out

	case updateConversationAction:
		out := make([]Conversation, len(convos))
		copy(out, convos)
		for i := range out {
			if out[i].Sid != act.conversationSid {
				continue
			}
			if act.update.FriendlyName != nil {
				out[i].FriendlyName = *act.update.FriendlyName
			}
			if act.update.Status != nil {
				out[i].Status = *act.update.Status
			}
			if act.update.LastReadMessageIndex != nil {
				out[i].LastReadMessageIndex = *act.update.LastReadMessageIndex
			}
			if act.update.Attributes != nil {
				out[i].Attributes = act.update.Attributes
			}
		}
		return out
	}
	return convos
}

// reduceMessages owns the per-conversation ordered sequences. The
// conversation key is independent of the Conversations collection:
// messages arriving before their conversation's own upsert are still
// stored, which tolerates a real race in the event stream.
func reduceMessages(msgs map[string][]Message, a Action) map[string][]Message {
	switch act := a.(type) {
	case addMessagesAction:
		out := cloneMessageMap(msgs)
		list := append([]Message(nil), out[act.conversationSid]...)
		for _, m := range act.messages {
			list = upsertMessage(list, m)
		}
		// Display order is governed by index, not arrival order.
		sort.SliceStable(list, func(i, j int) bool { return list[i].Index < list[j].Index })
		out[act.conversationSid] = list
		return out

	case pushMessagesAction:
		out := cloneMessageMap(msgs)
		list := append([]Message(nil), out[act.conversationSid]...)
		for _, m := range act.messages {
			list = upsertMessage(list, m)
		}
		out[act.conversationSid] = list
		return out

	case removeMessagesAction:
		out := cloneMessageMap(msgs)
		list := out[act.conversationSid]
		kept := make([]Message, 0, len(list))
		for _, m := range list {
			if !containsString(act.messageSids, m.Sid) {
				kept = append(kept, m)
			}
		}
		out[act.conversationSid] = kept
		return out

	case removeConversationAction:
		out := cloneMessageMap(msgs)
		delete(out, act.sid)
		return out
	}
	return msgs
}

// upsertMessage replaces by sid or appends. No two entries ever share a
// sid within a conversation.
func upsertMessage(list []Message, m Message) []Message {
	for i := range list {
		if list[i].Sid == m.Sid {
			list[i] = m
			return list
		}
	}
	return append(list, m)
}

// reduceParticipants replaces the per-conversation set atomically on
// every set-participants; lists from fetches of different staleness are
// never merged field by field.
func reduceParticipants(parts map[string][]Participant, a Action) map[string][]Participant {
	act, ok := a.(setParticipantsAction)
	if !ok {
		return parts
	}
	out := make(map[string][]Participant, len(parts)+1)
	for k, v := range parts {
		out[k] = v
	}
	out[act.conversationSid] = append([]Participant(nil), act.participants...)
	return out
}

func reduceUnreadCounts(counts map[string]int64, a Action) map[string]int64 {
	act, ok := a.(setUnreadCountAction)
	if !ok {
		return counts
	}
	out := make(map[string]int64, len(counts)+1)
	for k, v := range counts {
		out[k] = v
	}
	n := act.count
	if n < 0 {
		n = 0
	}
	out[act.conversationSid] = n
	return out
}

func reduceTyping(typing map[string]map[string]struct{}, a Action) map[string]map[string]struct{} {
	var sid, identity string
	var started bool
	switch act := a.(type) {
	case typingStartedAction:
		sid, identity, started = act.conversationSid, act.identity, true
	case typingEndedAction:
		sid, identity, started = act.conversationSid, act.identity, false
	default:
		return typing
	}

	out := make(map[string]map[string]struct{}, len(typing)+1)
	for k, v := range typing {
		set := make(map[string]struct{}, len(v))
		for id := range v {
			set[id] = struct{}{}
		}
		out[k] = set
	}
	if out[sid] == nil {
		out[sid] = map[string]struct{}{}
	}
	if started {
		out[sid][identity] = struct{}{}
	} else {
		delete(out[sid], identity)
	}
	return out
}

func reduceAttachments(att map[string]map[string][]Attachment, a Action) map[string]map[string][]Attachment {
	switch act := a.(type) {
	case addAttachmentAction:
		out := cloneAttachmentMap(att)
		if out[act.conversationSid] == nil {
			out[act.conversationSid] = map[string][]Attachment{}
		}
		byMsg := out[act.conversationSid]
		byMsg[act.messageSid] = append(append([]Attachment(nil), byMsg[act.messageSid]...), act.attachment)
		return out

	case clearAttachmentsAction:
		out := cloneAttachmentMap(att)
		if byMsg, ok := out[act.conversationSid]; ok {
			delete(byMsg, act.messageSid)
		}
		return out
	}
	return att
}

func reduceNotifications(notifs []Notification, a Action) []Notification {
	switch act := a.(type) {
	case addNotificationsAction:
		return append(append([]Notification(nil), notifs...), act.notifications...)
	case removeNotificationsAction:
		n := act.count
		if n < 0 {
			n = 0
		}
		if n > len(notifs) {
			n = len(notifs)
		}
		return append([]Notification(nil), notifs[n:]...)
	}
	return notifs
}

func reduceConnectionStates(states map[string]ConnectionState, a Action) map[string]ConnectionState {
	act, ok := a.(setConnectionStateAction)
	if !ok {
		return states
	}
	out := make(map[string]ConnectionState, len(states)+1)
	for k, v := range states {
		out[k] = v
	}
	out[act.endpointID] = act.state
	return out
}

func cloneMessageMap(m map[string][]Message) map[string][]Message {
	out := make(map[string][]Message, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAttachmentMap(m map[string]map[string][]Attachment) map[string]map[string][]Attachment {
	out := make(map[string]map[string][]Attachment, len(m)+1)
	for k, v := range m {
		byMsg := make(map[string][]Attachment, len(v))
		for msgSid, list := range v {
			byMsg[msgSid] = list
		}
		out[k] = byMsg
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
