package quest_test

import (
	"context"
	"testing"
	"time"

	"quest-server/internal/quest"
	"quest-server/internal/settlement"
	"quest-server/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, store storage.SessionStore, ttl time.Duration) *quest.Manager {
	t.Helper()
	return newNarratedManager(t, store, newScriptNarrator(openingText), ttl)
}

func newNarratedManager(t *testing.T, store storage.SessionStore, narr *scriptNarrator, ttl time.Duration) *quest.Manager {
	t.Helper()
	ledger := settlement.NewLedger(1000, zap.NewNop())
	m, err := quest.NewManager(quest.Environment{
		Store:      store,
		Narrator:   narr,
		Referral:   verifiedReferral(),
		Settlement: ledger.Factory(),
	}, 8, ttl, zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestManager_OneSessionPerWallet(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, storage.NewMemoryStore(), time.Hour)

	s1, view, err := m.Open(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, quest.StateReady, view.State)

	// адрес в другом регистре указывает на тот же кошелек
	s2, _, err := m.Open(ctx, "  0X1111111111111111111111111111111111111111 ")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, m.Len())

	got, ok := m.Get(testWallet)
	require.True(t, ok)
	assert.Same(t, s1, got)
}

func TestManager_OpenRejectsBadWallet(t *testing.T) {
	m := newTestManager(t, storage.NewMemoryStore(), time.Hour)

	_, _, err := m.Open(context.Background(), "0x12")
	require.Error(t, err)
	assert.Equal(t, quest.KindInput, quest.KindOf(err))
}

func TestManager_Close(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestManager(t, store, time.Hour)

	_, _, err := m.Open(ctx, testWallet)
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx, testWallet, false))
	_, ok := m.Get(testWallet)
	assert.False(t, ok)
	_, err = store.Load(ctx, testWallet)
	assert.NoError(t, err, "logout keeps the saved quest")

	_, _, err = m.Open(ctx, testWallet)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, testWallet, true))
	assert.Empty(t, store.Keys())
}

func TestManager_IdleSessionsExpire(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, storage.NewMemoryStore(), 50*time.Millisecond)

	_, _, err := m.Open(ctx, testWallet)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := m.Get(testWallet)
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestManager_CloseWaitsForInFlightChoice(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	narr := newScriptNarrator(openingText)
	m := newNarratedManager(t, store, narr, time.Hour)

	s, view, err := m.Open(ctx, testWallet)
	require.NoError(t, err)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	narr.set(func(n *scriptNarrator) { n.entered, n.release = entered, release })

	done := make(chan error, 1)
	go func() {
		_, err := s.SelectChoice(ctx, view.Choices[0].ID)
		done <- err
	}()
	<-entered

	closed := make(chan error, 1)
	go func() { closed <- m.Close(ctx, testWallet, true) }()
	assert.Never(t, func() bool { return len(closed) > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, <-closed)
	assert.Empty(t, store.Keys(), "in-flight choice does not resurrect the cleared quest")

	_, err = s.SelectChoice(ctx, view.Choices[1].ID)
	assert.ErrorIs(t, err, quest.ErrSessionClosed)

	narr.set(func(n *scriptNarrator) { n.entered, n.release = nil, nil })
	fresh, _, err := m.Open(ctx, testWallet)
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
	assert.Equal(t, 1, m.Len())
}

func TestManager_BusySessionSurvivesEviction(t *testing.T) {
	ctx := context.Background()
	narr := newScriptNarrator(openingText)
	m := newNarratedManager(t, storage.NewMemoryStore(), narr, 50*time.Millisecond)

	s, view, err := m.Open(ctx, testWallet)
	require.NoError(t, err)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	narr.set(func(n *scriptNarrator) { n.entered, n.release = entered, release })

	done := make(chan error, 1)
	go func() {
		_, err := s.SelectChoice(ctx, view.Choices[0].ID)
		done <- err
	}()
	<-entered

	assert.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	// вытесненная занятая сессия возвращается, а не создается вторая
	got, ok := m.Get(testWallet)
	require.True(t, ok)
	assert.Same(t, s, got)

	close(release)
	require.NoError(t, <-done)
}
