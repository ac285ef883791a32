package sync

import (
	"time"

	"github.com/RedFoundry/convosync/internal/bus"
	"github.com/RedFoundry/convosync/internal/chat"
	"github.com/RedFoundry/convosync/internal/metrics"
	"github.com/RedFoundry/convosync/internal/state"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// The refreshers recompute derived state on demand after a triggering
// event. Each one is independently wrapped: a failure surfaces as a
// notification and a logged diagnostic, never as an abort of a sibling.
// A fetch that resolves after its conversation was removed (or after
// teardown) is discarded against current store state instead of
// resurrecting removed data.

func (o *Orchestrator) refreshParticipants(c chat.Conversation) {
	sid := c.Sid()
	parts, err := c.GetParticipants(o.ctx)
	if err != nil {
		o.fetchFailed("participants", sid, err)
		return
	}
	if o.stale(sid) {
		return
	}
	o.store.Dispatch(state.SetParticipants(sid, chat.ParticipantRecords(sid, parts)))
}

func (o *Orchestrator) refreshMessages(c chat.Conversation) {
	sid := c.Sid()
	msgs, err := c.GetMessages(o.ctx, o.cfg.PageSize)
	if err != nil {
		o.fetchFailed("messages", sid, err)
		return
	}
	if o.stale(sid) {
		return
	}
	for _, m := range msgs {
		o.rememberMessage(m)
	}
	o.store.Dispatch(state.AddMessages(sid, chat.MessageRecords(msgs)))
}

// refreshUnread recomputes a conversation's unread counter, falling back
// to the full message count when the optimized query is unavailable.
func (o *Orchestrator) refreshUnread(c chat.Conversation) {
	sid := c.Sid()
	count, ok, err := c.GetUnreadMessagesCount(o.ctx)
	if err != nil {
		o.fetchFailed("unread", sid, err)
		return
	}
	if !ok {
		count, err = c.GetMessagesCount(o.ctx)
		if err != nil {
			o.fetchFailed("unread", sid, err)
			return
		}
	}
	if o.stale(sid) {
		return
	}
	o.store.Dispatch(state.SetUnreadCount(sid, count))
}

// stale reports whether a resolved fetch should be discarded: the session
// was torn down, or the conversation is gone from the store. Fetches
// issued for a conversation whose own upsert has not landed yet are kept;
// the sub-maps are keyed independently.
func (o *Orchestrator) stale(conversationSid string) bool {
	select {
	case <-o.ctx.Done():
		return true
	default:
	}
	if _, tracked := o.conversation(conversationSid); !tracked {
		return true
	}
	return false
}

func (o *Orchestrator) fetchFailed(fetch, conversationSid string, err error) {
	metrics.FetchFailures.WithLabelValues(fetch).Inc()
	o.logger.Warn("supplementary fetch failed",
		zap.String("fetch", fetch),
		zap.String("conversation", conversationSid),
		zap.Error(err),
	)
	o.notifyError("Failed to refresh " + fetch + ".")
	o.bus.Publish(bus.Event{
		Kind:      "engine.fetch_failed",
		Timestamp: time.Now(),
		Payload:   fetch + " " + conversationSid + ": " + err.Error(),
	})
}

func (o *Orchestrator) notifyError(message string) {
	o.notify(message, "error")
}

func (o *Orchestrator) notifySuccess(message string) {
	o.notify(message, "success")
}

func (o *Orchestrator) notify(message, variant string) {
	o.store.Dispatch(state.AddNotifications([]state.Notification{{
		ID:        uuid.NewString(),
		Message:   message,
		Variant:   variant,
		Timestamp: time.Now().UnixMilli(),
	}}))
	o.bus.Publish(bus.Event{
		Kind:      "notify." + variant,
		Timestamp: time.Now(),
		Payload:   message,
	})
}
