package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/RedFoundry/convosync/internal/chat"
	"github.com/RedFoundry/convosync/internal/state"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outbound operations. Each reports its outcome through the notification
// queue; errors are also returned so callers can disable a spinner or
// retry.

// SendMessage sends a message to a tracked conversation. The message is
// echoed locally first with the sentinel index -1 so it renders as
// "sending"; the acknowledged copy arrives through the messageAdded
// event, at which point the echo is dropped.
func (o *Orchestrator) SendMessage(ctx context.Context, conversationSid, body string) error {
	c, ok := o.conversation(conversationSid)
	if !ok {
		return fmt.Errorf("conversation %s not tracked by endpoint %s", conversationSid, o.cfg.EndpointID)
	}

	echo := state.Message{
		Sid:             uuid.NewString(),
		ConversationSid: conversationSid,
		Author:          o.cfg.Identity,
		Body:            body,
		Index:           state.LocalMessageIndex,
		Timestamp:       time.Now().UnixMilli(),
	}
	o.store.Dispatch(state.PushMessages(conversationSid, []state.Message{echo}))

	if _, err := c.SendText(ctx, body); err != nil {
		o.store.Dispatch(state.RemoveMessages(conversationSid, []string{echo.Sid}))
		o.notifyError("Failed to send message.")
		o.logger.Warn("send failed", zap.String("conversation", conversationSid), zap.Error(err))
		return err
	}

	o.store.Dispatch(state.RemoveMessages(conversationSid, []string{echo.Sid}))
	return nil
}

// CreateConversation creates and joins a conversation on this endpoint,
// then fetches its participant list. Returns the new conversation's sid.
func (o *Orchestrator) CreateConversation(ctx context.Context, friendlyName string) (string, error) {
	if friendlyName == "" {
		return "", fmt.Errorf("conversation name is empty")
	}
	c, err := o.client.CreateConversation(ctx, friendlyName)
	if err != nil {
		o.notifyError("Failed to create conversation.")
		return "", err
	}
	if err := c.Join(ctx); err != nil {
		o.notifyError("Failed to join conversation.")
		return "", err
	}
	o.rememberConversation(c)
	o.store.Dispatch(state.UpsertConversation(chat.ConversationRecord(c)))
	go o.refreshParticipants(c)

	o.notifySuccess("Conversation created.")
	return c.Sid(), nil
}

// AddParticipant adds a chat participant by identity.
func (o *Orchestrator) AddParticipant(ctx context.Context, conversationSid, identity string) error {
	c, ok := o.conversation(conversationSid)
	if !ok {
		return fmt.Errorf("conversation %s not tracked by endpoint %s", conversationSid, o.cfg.EndpointID)
	}
	if err := c.AddParticipant(ctx, identity); err != nil {
		o.notifyError("Failed to add participant.")
		return err
	}
	o.notifySuccess("Participant added.")
	go o.refreshParticipants(c)
	return nil
}

// AddProxyParticipant adds a non-chat channel participant reachable
// through a proxy address (SMS, WhatsApp).
func (o *Orchestrator) AddProxyParticipant(ctx context.Context, conversationSid, proxyAddress, address string) error {
	c, ok := o.conversation(conversationSid)
	if !ok {
		return fmt.Errorf("conversation %s not tracked by endpoint %s", conversationSid, o.cfg.EndpointID)
	}
	if err := c.AddProxyParticipant(ctx, proxyAddress, address); err != nil {
		o.notifyError("Failed to add participant.")
		return err
	}
	o.notifySuccess("Participant added.")
	go o.refreshParticipants(c)
	return nil
}

// RemoveParticipant removes a participant by identity.
func (o *Orchestrator) RemoveParticipant(ctx context.Context, conversationSid, identity string) error {
	c, ok := o.conversation(conversationSid)
	if !ok {
		return fmt.Errorf("conversation %s not tracked by endpoint %s", conversationSid, o.cfg.EndpointID)
	}
	if err := c.RemoveParticipant(ctx, identity); err != nil {
		o.notifyError("Failed to remove participant.")
		return err
	}
	o.notifySuccess("Participant removed.")
	go o.refreshParticipants(c)
	return nil
}
