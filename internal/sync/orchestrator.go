// Package sync owns the session orchestrators: one per remote endpoint,
// each translating that endpoint's event stream into store actions. The
// store is the only thing orchestrators share.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RedFoundry/convosync/internal/bus"
	"github.com/RedFoundry/convosync/internal/chat"
	"github.com/RedFoundry/convosync/internal/delivery"
	"github.com/RedFoundry/convosync/internal/metrics"
	"github.com/RedFoundry/convosync/internal/state"
	"github.com/RedFoundry/convosync/internal/status"
	"go.uber.org/zap"
)

// TokenSource supplies session credentials. Token returns ("", nil) when
// no token is obtainable for the endpoint; it must be safely callable
// repeatedly (open, refresh).
type TokenSource interface {
	Token(ctx context.Context, endpointID string) (string, error)
}

// Config identifies one endpoint session.
type Config struct {
	// EndpointID scopes the session to one logical conversation group.
	EndpointID string

	// DisplayName is announced once per transition into connected.
	DisplayName string

	// Identity is the local user; filtered out of delivery tallies.
	Identity string

	// PageSize bounds the message page fetched on conversation join.
	PageSize int

	// CountCursorless forwards to delivery.Options.
	CountCursorless bool
}

// Deps are the collaborators an orchestrator drives.
type Deps struct {
	Store  *state.Store
	Tokens TokenSource
	Dial   chat.Dialer
	Bus    *bus.Bus
	Logger *zap.Logger
}

// Orchestrator owns one live session: it subscribes to the endpoint's
// event stream, issues the supplementary fetches events imply, and
// dispatches the resulting actions. Handlers never block each other
// through the store; every mutation is one synchronous reduction.
type Orchestrator struct {
	cfg     Config
	client  chat.Client
	store   *state.Store
	machine *status.Machine
	tokens  TokenSource
	bus     *bus.Bus
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// Remote handles by sid, kept so later cursor advances, sends and
	// receipt fetches can reach the SDK object behind a stored record.
	mu     sync.Mutex
	convos map[string]chat.Conversation
	msgs   map[string]chat.Message
}

// Open fetches a token for the endpoint and dials a session. When no
// token is obtainable it logs and returns (nil, nil) without creating a
// session; a dial failure is returned as an error.
func Open(ctx context.Context, cfg Config, deps Deps) (*Orchestrator, error) {
	logger := deps.Logger.With(zap.String("endpoint", cfg.EndpointID))

	token, err := deps.Tokens.Token(ctx, cfg.EndpointID)
	if err != nil {
		logger.Warn("token fetch failed, session not opened", zap.Error(err))
		return nil, nil
	}
	if token == "" {
		logger.Warn("no token for endpoint, session not opened")
		return nil, nil
	}

	client, err := deps.Dial(ctx, token)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:     cfg,
		client:  client,
		store:   deps.Store,
		machine: status.NewMachine(cfg.EndpointID, deps.Bus),
		tokens:  deps.Tokens,
		bus:     deps.Bus,
		logger:  logger,
		ctx:     sctx,
		cancel:  cancel,
		convos:  map[string]chat.Conversation{},
		msgs:    map[string]chat.Message{},
	}

	_ = o.machine.Transition(state.ConnectionConnecting)
	o.store.Dispatch(state.SetConnectionState(cfg.EndpointID, state.ConnectionConnecting))
	client.AddEventHandler(o.handle)

	logger.Info("session opened")
	return o, nil
}

// EndpointID returns the endpoint this orchestrator serves.
func (o *Orchestrator) EndpointID() string { return o.cfg.EndpointID }

// Shutdown tears the session down. Teardown is best-effort: errors are
// logged, never propagated.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.cancel()
	if err := o.client.Shutdown(ctx); err != nil {
		o.logger.Warn("error shutting down session", zap.Error(err))
	}
	o.store.Dispatch(state.SetConnectionState(o.cfg.EndpointID, state.ConnectionDisconnected))
	o.logger.Info("session closed")
}

// handle is the session's event handler. It runs one event at a time and
// must not block; supplementary fetches run on their own goroutines.
func (o *Orchestrator) handle(evt any) {
	var kind string
	switch e := evt.(type) {
	case chat.ConversationJoined:
		kind = "conversationJoined"
		o.handleConversationJoined(e.Conversation)
	case chat.ConversationRemoved:
		kind = "conversationRemoved"
		o.handleConversationRemoved(e.Conversation)
	case chat.ConversationUpdated:
		kind = "conversationUpdated"
		o.handleConversationUpserted(e.Conversation)
	case chat.MessageAdded:
		kind = "messageAdded"
		o.handleMessageUpserted(e.Message)
	case chat.MessageUpdated:
		kind = "messageUpdated"
		o.handleMessageUpserted(e.Message)
	case chat.MessageRemoved:
		kind = "messageRemoved"
		o.handleMessageRemoved(e.Message)
	case chat.ParticipantJoined:
		kind = "participantJoined"
		o.handleParticipantChanged(e.Conversation)
	case chat.ParticipantLeft:
		kind = "participantLeft"
		o.handleParticipantChanged(e.Conversation)
	case chat.ParticipantUpdated:
		kind = "participantUpdated"
		o.handleParticipantChanged(e.Conversation)
	case chat.TypingStarted:
		kind = "typingStarted"
		o.handleTyping(e.Conversation, e.Participant, true)
	case chat.TypingEnded:
		kind = "typingEnded"
		o.handleTyping(e.Conversation, e.Participant, false)
	case chat.TokenAboutToExpire:
		kind = "tokenAboutToExpire"
		go o.refreshToken()
	case chat.TokenExpired:
		kind = "tokenExpired"
		go o.refreshToken()
	case chat.ConnectionStateChanged:
		kind = "connectionStateChanged"
		o.handleConnectionChanged(e.State)
	default:
		o.logger.Debug("unhandled event", zap.Any("event", evt))
		return
	}
	metrics.EventsHandled.WithLabelValues(kind).Inc()
}

func (o *Orchestrator) handleConversationJoined(c chat.Conversation) {
	if c == nil || c.Sid() == "" {
		o.dropEvent("conversationJoined", "missing conversation sid")
		return
	}
	o.rememberConversation(c)
	o.store.Dispatch(state.UpsertConversation(chat.ConversationRecord(c)))

	if c.Status() != "joined" {
		return
	}
	// Three independent fetches: partial failure of one must not block
	// dispatch of the others.
	go o.refreshParticipants(c)
	go o.refreshMessages(c)
	go o.refreshUnread(c)
}

func (o *Orchestrator) handleConversationUpserted(c chat.Conversation) {
	if c == nil || c.Sid() == "" {
		o.dropEvent("conversationUpdated", "missing conversation sid")
		return
	}
	o.rememberConversation(c)
	o.store.Dispatch(state.UpsertConversation(chat.ConversationRecord(c)))
}

func (o *Orchestrator) handleConversationRemoved(c chat.Conversation) {
	if c == nil || c.Sid() == "" {
		o.dropEvent("conversationRemoved", "missing conversation sid")
		return
	}
	sid := c.Sid()
	o.forgetConversation(sid)
	o.store.Dispatch(state.SetCurrentConversation(""))
	o.store.Dispatch(state.RemoveConversation(sid))
	o.store.Dispatch(state.SetParticipants(sid, nil))
}

func (o *Orchestrator) handleMessageUpserted(m chat.Message) {
	if m == nil || m.Sid() == "" || m.ConversationSid() == "" {
		o.dropEvent("messageAdded", "missing message or conversation sid")
		return
	}
	sid := m.ConversationSid()
	o.rememberMessage(m)

	// Advance the read cursor only when the message lands in the
	// conversation currently open.
	if o.store.CurrentConversation() == sid {
		o.store.Dispatch(state.SetLastReadIndex(m.Index()))
		if c, ok := o.conversation(sid); ok {
			index := m.Index()
			go func() {
				if err := c.AdvanceLastReadMessageIndex(o.ctx, index); err != nil {
					o.logger.Warn("advance read cursor failed", zap.Error(err), zap.String("conversation", sid))
				}
			}()
		}
	}

	o.store.Dispatch(state.AddMessages(sid, []state.Message{chat.MessageRecord(m)}))

	// A message authored locally means the composer's pending attachments
	// were delivered.
	if m.Author() == o.cfg.Identity {
		o.store.Dispatch(state.ClearAttachments(sid, "-1"))
	}

	if c, ok := o.conversation(sid); ok {
		go o.refreshUnread(c)
	}
}

func (o *Orchestrator) handleMessageRemoved(m chat.Message) {
	if m == nil || m.Sid() == "" || m.ConversationSid() == "" {
		o.dropEvent("messageRemoved", "missing message or conversation sid")
		return
	}
	o.forgetMessage(m.Sid())
	o.store.Dispatch(state.RemoveMessages(m.ConversationSid(), []string{m.Sid()}))
}

// handleParticipantChanged funnels join/leave/update through one
// wholesale re-fetch: the remote service does not guarantee a stable
// per-participant diff event.
func (o *Orchestrator) handleParticipantChanged(c chat.Conversation) {
	if c == nil || c.Sid() == "" {
		o.dropEvent("participantChanged", "missing conversation sid")
		return
	}
	go o.refreshParticipants(c)
}

func (o *Orchestrator) handleTyping(c chat.Conversation, p chat.Participant, started bool) {
	if c == nil || c.Sid() == "" || p == nil {
		o.dropEvent("typing", "missing conversation or participant")
		return
	}
	identity := p.Identity()
	if identity == o.cfg.EndpointID {
		// The endpoint's own side; not a remote typist.
		return
	}
	if started {
		o.store.Dispatch(state.TypingStarted(c.Sid(), identity))
	} else {
		o.store.Dispatch(state.TypingEnded(c.Sid(), identity))
	}
}

// handleConnectionChanged mirrors the remote connection state into the
// machine and the store. The display-name announcement fires only on a
// successful transition into connected, never on flicker that re-reports
// the same state.
func (o *Orchestrator) handleConnectionChanged(s state.ConnectionState) {
	o.store.Dispatch(state.SetConnectionState(o.cfg.EndpointID, s))

	if err := o.machine.Transition(s); err != nil {
		o.logger.Debug("connection state not an edge", zap.String("reported", string(s)), zap.Error(err))
		return
	}

	switch s {
	case state.ConnectionConnected:
		go o.announceDisplayName()
	case state.ConnectionReconnecting:
		metrics.Reconnects.Inc()
	}
}

func (o *Orchestrator) announceDisplayName() {
	if err := o.client.SetFriendlyName(o.ctx, o.cfg.DisplayName); err != nil {
		o.logger.Warn("display name announce failed", zap.Error(err))
	}
}

// refreshToken re-fetches a token and installs it on the live session
// without tearing it down. When the fetch yields nothing the existing
// (expiring) token stays in place.
func (o *Orchestrator) refreshToken() {
	token, err := o.tokens.Token(o.ctx, o.cfg.EndpointID)
	if err != nil || token == "" {
		o.logger.Warn("token refresh yielded no token, keeping existing token", zap.Error(err))
		metrics.TokenRefreshes.WithLabelValues("unavailable").Inc()
		return
	}
	if err := o.client.UpdateToken(o.ctx, token); err != nil {
		o.logger.Warn("token install failed, keeping existing token", zap.Error(err))
		metrics.TokenRefreshes.WithLabelValues("unavailable").Inc()
		return
	}
	metrics.TokenRefreshes.WithLabelValues("installed").Inc()
	o.bus.Publish(bus.Event{
		Kind:      "session.token_refreshed",
		Timestamp: time.Now(),
		Payload:   o.cfg.EndpointID,
	})
}

// MessageStatus computes the delivery tally for a stored message. The
// receipt fetch, when the message fans out to channel participants,
// re-queries the backend on every call.
func (o *Orchestrator) MessageStatus(ctx context.Context, conversationSid, messageSid string) (delivery.Tally, error) {
	var msg state.Message
	found := false
	for _, m := range o.store.Messages(conversationSid) {
		if m.Sid == messageSid {
			msg, found = m, true
			break
		}
	}
	if !found {
		return delivery.Tally{}, fmt.Errorf("message %s not stored for conversation %s", messageSid, conversationSid)
	}

	var fetch delivery.ReceiptFetcher
	if handle, ok := o.message(messageSid); ok {
		fetch = handle.GetDetailedDeliveryReceipts
	}
	return delivery.Compute(ctx, msg, o.store.Participants(conversationSid), fetch, delivery.Options{
		LocalIdentity:   o.cfg.Identity,
		CountCursorless: o.cfg.CountCursorless,
	})
}

func (o *Orchestrator) rememberConversation(c chat.Conversation) {
	o.mu.Lock()
	o.convos[c.Sid()] = c
	o.mu.Unlock()
}

func (o *Orchestrator) forgetConversation(sid string) {
	o.mu.Lock()
	delete(o.convos, sid)
	o.mu.Unlock()
}

func (o *Orchestrator) conversation(sid string) (chat.Conversation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.convos[sid]
	return c, ok
}

func (o *Orchestrator) rememberMessage(m chat.Message) {
	o.mu.Lock()
	o.msgs[m.Sid()] = m
	o.mu.Unlock()
}

func (o *Orchestrator) forgetMessage(sid string) {
	o.mu.Lock()
	delete(o.msgs, sid)
	o.mu.Unlock()
}

func (o *Orchestrator) message(sid string) (chat.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.msgs[sid]
	return m, ok
}

func (o *Orchestrator) dropEvent(kind, reason string) {
	metrics.EventsDropped.Inc()
	o.logger.Warn("dropped malformed event", zap.String("kind", kind), zap.String("reason", reason))
	o.bus.Publish(bus.Event{
		Kind:      "engine.event_dropped",
		Timestamp: time.Now(),
		Payload:   kind + ": " + reason,
	})
}
