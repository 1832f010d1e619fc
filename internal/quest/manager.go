package quest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quest-server/internal/models"
	"quest-server/internal/narration"
	"quest-server/internal/settlement"
	"quest-server/internal/storage"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Environment общие зависимости, из которых Manager собирает сессии.
type Environment struct {
	Store      storage.SessionStore
	Narrator   Narrator
	Referral   ReferralGate
	Settlement settlement.Factory
	Sinks      []EventSink
	Counter    narration.TokenCounter
	Options    Options
}

// Manager реестр живых сессий: не больше одной на кошелек.
// Простаивающие сессии вытесняются по TTL; их состояние уже сохранено.
// Сессия, вытесненная посреди операции, откладывается в draining и
// возвращается в реестр при следующем обращении к кошельку.
type Manager struct {
	env      Environment
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
	logger   *zap.Logger

	drainMu  sync.Mutex
	draining map[string]*Session
}

// NewManager создает реестр. size ограничивает число живых сессий, ttl время простоя.
func NewManager(env Environment, size int, ttl time.Duration, logger *zap.Logger) (*Manager, error) {
	if env.Settlement == nil {
		return nil, errors.New("quest manager requires a settlement factory")
	}
	if size <= 0 {
		size = 1024
	}
	log := logger.Named("QuestManager")
	m := &Manager{env: env, logger: log, draining: make(map[string]*Session)}
	m.sessions = expirable.NewLRU[string, *Session](size, m.evicted, ttl)
	return m, nil
}

func (m *Manager) evicted(wallet string, s *Session) {
	if !s.closed.Load() && s.busy() {
		m.drainMu.Lock()
		m.draining[wallet] = s
		m.drainMu.Unlock()
		m.logger.Debug("Busy quest session evicted; keeping it until the next lookup", zap.String("wallet", wallet))
		return
	}
	liveSessions.Dec()
	m.logger.Debug("Quest session released", zap.String("wallet", wallet))
}

// lookup ищет живую сессию, в том числе вытесненную во время операции.
// Вызывается под m.mu.
func (m *Manager) lookup(wallet string) (*Session, bool) {
	if s, ok := m.sessions.Get(wallet); ok {
		m.sessions.Add(wallet, s)
		return s, true
	}

	m.drainMu.Lock()
	s, ok := m.draining[wallet]
	delete(m.draining, wallet)
	for w, d := range m.draining {
		if !d.busy() {
			delete(m.draining, w)
			liveSessions.Dec()
		}
	}
	m.drainMu.Unlock()

	if !ok {
		return nil, false
	}
	m.sessions.Add(wallet, s)
	return s, true
}

// Open возвращает сессию кошелька, создавая ее при необходимости, и инициализирует.
// Для уже готовой сессии Initialize лишь повторяет транскрипт.
func (m *Manager) Open(ctx context.Context, wallet string) (*Session, View, error) {
	w, err := models.NormalizeWallet(wallet)
	if err != nil {
		return nil, View{}, newError(KindInput, "Invalid wallet address.", err)
	}

	s, err := m.getOrCreate(w)
	if err != nil {
		return nil, View{}, err
	}
	view, err := s.Initialize(ctx)
	if err != nil {
		return nil, View{}, err
	}
	return s, view, nil
}

func (m *Manager) getOrCreate(wallet string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.lookup(wallet); ok {
		return s, nil
	}

	settler, err := m.env.Settlement(wallet)
	if err != nil {
		m.logger.Error("Failed to create settlement client", zap.String("wallet", wallet), zap.Error(err))
		return nil, newError(KindInternal, "Failed to connect your wallet. Please try again.", err)
	}
	s, err := NewSession(wallet, Deps{
		Store:    m.env.Store,
		Narrator: m.env.Narrator,
		Referral: m.env.Referral,
		Settler:  settler,
		Sinks:    m.env.Sinks,
		Counter:  m.env.Counter,
		Logger:   m.logger,
	}, m.env.Options)
	if err != nil {
		return nil, newError(KindInternal, "Failed to start your quest. Please try again.", fmt.Errorf("new session: %w", err))
	}
	m.sessions.Add(wallet, s)
	liveSessions.Inc()
	m.logger.Info("Quest session created", zap.String("wallet", wallet))
	return s, nil
}

// Get возвращает живую сессию без создания.
func (m *Manager) Get(wallet string) (*Session, bool) {
	w, err := models.NormalizeWallet(wallet)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(w)
}

// Close выгружает сессию. При clear сохраненная запись тоже удаляется.
// Текущая операция сессии сначала завершается; последующие получают ErrSessionClosed.
func (m *Manager) Close(ctx context.Context, wallet string, clear bool) error {
	w, err := models.NormalizeWallet(wallet)
	if err != nil {
		return newError(KindInput, "Invalid wallet address.", err)
	}
	m.mu.Lock()
	s, live := m.lookup(w)
	m.mu.Unlock()

	if live {
		if err := s.lock(ctx); err != nil {
			return err
		}
		defer s.release()
		s.closed.Store(true)
	}

	// запись удаляется раньше, чем сессия уходит из реестра:
	// новая сессия кошелька не должна поднять старое состояние
	if clear {
		if err := m.env.Store.Delete(ctx, w); err != nil && !errors.Is(err, models.ErrNotFound) {
			return newError(KindInternal, "Failed to clear your quest.", err)
		}
		m.logger.Info("Quest state cleared", zap.String("wallet", w))
	}

	if live {
		m.mu.Lock()
		if cur, ok := m.sessions.Peek(w); ok && cur == s {
			m.sessions.Remove(w)
		}
		m.mu.Unlock()
	}
	return nil
}

// Len число живых сессий.
func (m *Manager) Len() int {
	return m.sessions.Len()
}
