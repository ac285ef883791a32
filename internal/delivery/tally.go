// Package delivery computes per-message delivery/read tallies from
// participant read cursors and, for channel fan-out messages, detailed
// delivery receipts.
package delivery

import (
	"context"
	"fmt"

	"github.com/RedFoundry/convosync/internal/chat"
	"github.com/RedFoundry/convosync/internal/metrics"
	"github.com/RedFoundry/convosync/internal/state"
)

// Tally is the derived per-message status count. It is computed on
// demand and never stored.
type Tally struct {
	Delivered int
	Read      int
	Failed    int
	Sending   int
}

// Options configure a tally computation.
type Options struct {
	// LocalIdentity is the local user; their own cursor never counts.
	LocalIdentity string

	// CountCursorless counts chat participants whose read cursor is -1
	// (never read anything) toward Delivered. The remote service leaves
	// this ambiguous; off by default.
	CountCursorless bool
}

// ReceiptFetcher fetches the first page of detailed delivery receipts
// for the message under tally. Each call re-queries the backend; the
// tally is never cached, so callers needing stability cache it
// themselves.
type ReceiptFetcher func(ctx context.Context) (chat.ReceiptPage, error)

// Compute tallies one message's delivery status.
//
// A locally composed message (index -1) short-circuits to {Sending: 1}
// without touching the network. Otherwise every chat-kind participant
// other than the local user whose cursor has reached the message counts
// as Read, and when the message carries aggregated delivery receipts the
// paginated per-recipient records are folded in. A receipt fetch error
// propagates; the caller decides whether to retry.
func Compute(ctx context.Context, msg state.Message, participants []state.Participant, fetch ReceiptFetcher, opts Options) (Tally, error) {
	var tally Tally

	if msg.Index == state.LocalMessageIndex {
		tally.Sending = 1
		return tally, nil
	}

	for _, p := range participants {
		if p.Identity == opts.LocalIdentity || p.Kind != state.ParticipantKindChat {
			continue
		}
		switch {
		case p.LastReadMessageIndex >= msg.Index:
			tally.Read++
		case p.LastReadMessageIndex == -1 && opts.CountCursorless:
			tally.Delivered++
		}
	}

	if !msg.AggregatedDelivery || fetch == nil {
		return tally, nil
	}

	page, err := fetch(ctx)
	if err != nil {
		return tally, fmt.Errorf("fetch delivery receipts: %w", err)
	}
	for {
		metrics.ReceiptPages.Inc()
		for _, r := range page.Items() {
			foldReceipt(&tally, r.Status)
		}
		if !page.HasNextPage() {
			break
		}
		page, err = page.NextPage(ctx)
		if err != nil {
			return tally, fmt.Errorf("fetch delivery receipts page: %w", err)
		}
	}
	return tally, nil
}

func foldReceipt(tally *Tally, receiptStatus string) {
	switch receiptStatus {
	case chat.ReceiptRead:
		tally.Read++
	case chat.ReceiptDelivered:
		tally.Delivered++
	case chat.ReceiptFailed, chat.ReceiptUndelivered:
		tally.Failed++
	case chat.ReceiptSent, chat.ReceiptQueued:
		tally.Sending++
	}
}
