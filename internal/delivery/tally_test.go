package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/RedFoundry/convosync/internal/chat"
	"github.com/RedFoundry/convosync/internal/state"
)

type fakePage struct {
	items []chat.Receipt
	next  *fakePage
	err   error
}

func (p *fakePage) Items() []chat.Receipt { return p.items }
func (p *fakePage) HasNextPage() bool     { return p.next != nil || p.err != nil }
func (p *fakePage) NextPage(context.Context) (chat.ReceiptPage, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.next, nil
}

func fetcherFor(p *fakePage) ReceiptFetcher {
	return func(context.Context) (chat.ReceiptPage, error) { return p, nil }
}

func chatParticipant(identity string, cursor int64) state.Participant {
	return state.Participant{Identity: identity, Kind: state.ParticipantKindChat, LastReadMessageIndex: cursor}
}

// Local echoes must never trigger a receipt fetch.
func TestComputeLocalMessageShortCircuits(t *testing.T) {
	fetched := false
	fetch := func(context.Context) (chat.ReceiptPage, error) {
		fetched = true
		return &fakePage{}, nil
	}

	msg := state.Message{Index: state.LocalMessageIndex, AggregatedDelivery: true}
	got, err := Compute(context.Background(), msg, nil, fetch, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (Tally{Sending: 1}) {
		t.Fatalf("expected {Sending:1}, got %+v", got)
	}
	if fetched {
		t.Fatalf("receipt fetch ran for a local message")
	}
}

func TestComputeCursors(t *testing.T) {
	msg := state.Message{Index: 5}
	participants := []state.Participant{
		chatParticipant("me", 10),      // local, skipped
		chatParticipant("reader", 7),   // Read
		chatParticipant("exact", 5),    // Read
		chatParticipant("behind", 3),   // nothing
		chatParticipant("fresh", -1),   // cursorless
		{Identity: "sms", Kind: "sms", LastReadMessageIndex: 9}, // non-chat, skipped
	}

	cases := []struct {
		name string
		opts Options
		want Tally
	}{
		{"default", Options{LocalIdentity: "me"}, Tally{Read: 2}},
		{"count cursorless", Options{LocalIdentity: "me", CountCursorless: true}, Tally{Read: 2, Delivered: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compute(context.Background(), msg, participants, nil, tc.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestComputeFoldsPaginatedReceipts(t *testing.T) {
	page := &fakePage{
		items: []chat.Receipt{
			{Status: chat.ReceiptRead},
			{Status: chat.ReceiptDelivered},
		},
		next: &fakePage{
			items: []chat.Receipt{
				{Status: chat.ReceiptFailed},
				{Status: chat.ReceiptUndelivered},
				{Status: chat.ReceiptQueued},
				{Status: chat.ReceiptSent},
			},
		},
	}

	msg := state.Message{Index: 2, AggregatedDelivery: true}
	got, err := Compute(context.Background(), msg, nil, fetcherFor(page), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Tally{Read: 1, Delivered: 1, Failed: 2, Sending: 2}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestComputeSkipsReceiptsWithoutAggregation(t *testing.T) {
	fetched := false
	fetch := func(context.Context) (chat.ReceiptPage, error) {
		fetched = true
		return &fakePage{}, nil
	}

	msg := state.Message{Index: 2, AggregatedDelivery: false}
	if _, err := Compute(context.Background(), msg, nil, fetch, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetched {
		t.Fatalf("receipt fetch ran for a message without aggregated delivery")
	}
}

func TestComputePropagatesFetchError(t *testing.T) {
	wantErr := errors.New("backend down")
	fetch := func(context.Context) (chat.ReceiptPage, error) { return nil, wantErr }

	msg := state.Message{Index: 2, AggregatedDelivery: true}
	participants := []state.Participant{chatParticipant("reader", 5)}
	got, err := Compute(context.Background(), msg, participants, fetch, Options{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	// Cursor-derived counts survive the failed fetch.
	if got.Read != 1 {
		t.Fatalf("expected partial tally with Read=1, got %+v", got)
	}
}

func TestComputePropagatesPageError(t *testing.T) {
	wantErr := errors.New("page gone")
	page := &fakePage{
		items: []chat.Receipt{{Status: chat.ReceiptRead}},
		err:   wantErr,
	}

	msg := state.Message{Index: 2, AggregatedDelivery: true}
	_, err := Compute(context.Background(), msg, nil, fetcherFor(page), Options{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped page error, got %v", err)
	}
}
