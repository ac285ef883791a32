package chat

import "github.com/RedFoundry/convosync/internal/state"

// ConversationRecord projects a remote conversation handle into its
// stored form.
func ConversationRecord(c Conversation) state.Conversation {
	return state.Conversation{
		Sid:                  c.Sid(),
		FriendlyName:         c.FriendlyName(),
		Status:               c.Status(),
		LastReadMessageIndex: c.LastReadMessageIndex(),
		Attributes:           c.Attributes(),
	}
}

// MessageRecord projects a remote message handle into its stored form.
func MessageRecord(m Message) state.Message {
	return state.Message{
		Sid:                m.Sid(),
		ConversationSid:    m.ConversationSid(),
		Author:             m.Author(),
		Body:               m.Body(),
		Index:              m.Index(),
		Timestamp:          m.Timestamp().UnixMilli(),
		AggregatedDelivery: m.HasAggregatedDelivery(),
		Attributes:         m.Attributes(),
	}
}

// ParticipantRecord projects a remote participant handle into its stored
// form, keyed under the given conversation.
func ParticipantRecord(conversationSid string, p Participant) state.Participant {
	return state.Participant{
		Sid:                  p.Sid(),
		ConversationSid:      conversationSid,
		Identity:             p.Identity(),
		Kind:                 p.Kind(),
		LastReadMessageIndex: p.LastReadMessageIndex(),
	}
}

// ParticipantRecords projects a wholesale participant fetch.
func ParticipantRecords(conversationSid string, parts []Participant) []state.Participant {
	out := make([]state.Participant, 0, len(parts))
	for _, p := range parts {
		out = append(out, ParticipantRecord(conversationSid, p))
	}
	return out
}

// MessageRecords projects a message page fetch.
func MessageRecords(msgs []Message) []state.Message {
	out := make([]state.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageRecord(m))
	}
	return out
}
