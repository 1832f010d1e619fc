package quest_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"quest-server/internal/narration"
	"quest-server/internal/quest"
	"quest-server/internal/quest/mocks"
	"quest-server/internal/settlement"
	"quest-server/internal/storage"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testWallet  = "0x1111111111111111111111111111111111111111"
	openingText = "The Green Mist curls around the garden gate."
	choicesText = "Walk toward the fountain.\nListen to the humming hedge.\nFollow the silver path."
)

// scriptNarrator детерминированный рассказчик с очередью ответов для сюжета.
type scriptNarrator struct {
	mu           sync.Mutex
	stories      []string
	choices      string
	hint         string
	degradeStory bool
	failChoices  bool
	panicOn      narration.Purpose
	calls        map[narration.Purpose]int

	entered chan struct{}
	release chan struct{}
}

func newScriptNarrator(stories ...string) *scriptNarrator {
	return &scriptNarrator{
		stories: stories,
		choices: choicesText,
		hint:    "Look at the rows first.",
		calls:   make(map[narration.Purpose]int),
	}
}

func (n *scriptNarrator) Complete(ctx context.Context, req narration.Request) (narration.Reply, error) {
	n.mu.Lock()
	n.calls[req.Purpose]++
	panicOn := n.panicOn
	entered, release := n.entered, n.release
	n.mu.Unlock()

	if panicOn == req.Purpose {
		panic("narrator exploded")
	}

	switch req.Purpose {
	case narration.PurposeChoices:
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.failChoices {
			return narration.Reply{}, narration.ErrGenerationFailed
		}
		return narration.Reply{Text: n.choices, Source: narration.SourceLive}, nil
	case narration.PurposeHint:
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.degradeStory {
			return narration.Reply{Text: narration.HoldingLine, Source: narration.SourceFallback, Degraded: true}, nil
		}
		return narration.Reply{Text: n.hint, Source: narration.SourceLive}, nil
	}

	if entered != nil && !strings.Contains(req.UserPrompt, "Begin the story") {
		entered <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return narration.Reply{}, ctx.Err()
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.degradeStory {
		return narration.Reply{Text: narration.HoldingLine, Source: narration.SourceFallback, Degraded: true}, nil
	}
	text := "The mist shifts, revealing another path."
	if len(n.stories) > 0 {
		text, n.stories = n.stories[0], n.stories[1:]
	}
	return narration.Reply{Text: text, Source: narration.SourceLive}, nil
}

func (n *scriptNarrator) count(p narration.Purpose) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[p]
}

func (n *scriptNarrator) set(fn func(n *scriptNarrator)) {
	n.mu.Lock()
	fn(n)
	n.mu.Unlock()
}

// recorder собирает события сессии.
type recorder struct {
	mu     sync.Mutex
	events []quest.Event
}

func (r *recorder) Publish(_ context.Context, ev quest.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recorder) types() []quest.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]quest.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	session  *quest.Session
	store    storage.SessionStore
	ledger   *settlement.Ledger
	referral *mocks.ReferralGate
	narrator *scriptNarrator
	events   *recorder
}

func (f *fixture) chainBalance(t *testing.T) int64 {
	t.Helper()
	bal, err := f.ledger.ForWallet(testWallet).Balance(context.Background())
	require.NoError(t, err)
	return bal
}

func verifiedReferral() *mocks.ReferralGate {
	ref := new(mocks.ReferralGate)
	ref.On("Status", mock.Anything, testWallet).Return(true, nil).Maybe()
	ref.On("Codes", mock.Anything, testWallet).Return([]string{"PEAR-AAAA", "PEAR-BBBB", "PEAR-CCCC"}, nil).Maybe()
	return ref
}

func newFixture(t *testing.T, ref *mocks.ReferralGate, narr *scriptNarrator, store storage.SessionStore) *fixture {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	ledger := settlement.NewLedger(1000, zap.NewNop())
	events := &recorder{}
	s, err := quest.NewSession(testWallet, quest.Deps{
		Store:    store,
		Narrator: narr,
		Referral: ref,
		Settler:  ledger.ForWallet(testWallet),
		Sinks:    []quest.EventSink{events},
		Logger:   zap.NewNop(),
	}, quest.Options{})
	require.NoError(t, err)
	return &fixture{session: s, store: store, ledger: ledger, referral: ref, narrator: narr, events: events}
}

// readyFixture сессия в состоянии Ready после вступления.
func readyFixture(t *testing.T, stories ...string) *fixture {
	t.Helper()
	narr := newScriptNarrator(append([]string{openingText}, stories...)...)
	f := newFixture(t, verifiedReferral(), narr, nil)
	view, err := f.session.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, quest.StateReady, view.State)
	return f
}

// settlerFixture сессия в состоянии Ready с подставным расчетным клиентом.
func settlerFixture(t *testing.T, settler settlement.Settler, stories ...string) *fixture {
	t.Helper()
	narr := newScriptNarrator(append([]string{openingText}, stories...)...)
	events := &recorder{}
	s, err := quest.NewSession(testWallet, quest.Deps{
		Store:    storage.NewMemoryStore(),
		Narrator: narr,
		Referral: verifiedReferral(),
		Settler:  settler,
		Sinks:    []quest.EventSink{events},
		Logger:   zap.NewNop(),
	}, quest.Options{})
	require.NoError(t, err)
	view, err := s.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, quest.StateReady, view.State)
	return &fixture{session: s, narrator: narr, events: events}
}
