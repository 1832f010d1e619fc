package quest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"quest-server/internal/models"
	"quest-server/internal/narration"
	"quest-server/internal/referral"
	"quest-server/internal/settlement"
	"quest-server/internal/storage"

	"go.uber.org/zap"
)

// SessionState состояние автомата сессии.
type SessionState string

const (
	StateUninitialized    SessionState = "uninitialized"
	StateAwaitingReferral SessionState = "awaiting_referral"
	StateReady            SessionState = "ready"
)

// Deps зависимости сессии.
type Deps struct {
	Store    storage.SessionStore
	Narrator Narrator
	Referral ReferralGate
	Settler  settlement.Settler
	Sinks    []EventSink
	Counter  narration.TokenCounter
	Logger   *zap.Logger
}

// Options настройки сессии. Нулевые значения берутся из каталога.
type Options struct {
	Catalog            *Catalog
	InteractionCost    int64
	HistoryTokenBudget int
	Now                func() time.Time
}

// View снимок сессии для слоя представления.
type View struct {
	Wallet          string                `json:"walletAddress"`
	State           SessionState          `json:"state"`
	Narration       string                `json:"narration"`
	Choices         []models.Choice       `json:"choices"`
	Balance         int64                 `json:"balance"`
	InviteCodes     []string              `json:"inviteCodes"`
	CurrentPuzzle   string                `json:"currentPuzzle,omitempty"`
	HintsUsed       int                   `json:"hintsUsed"`
	DiscoveredRunes []string              `json:"discoveredRunes"`
	SolvedPuzzles   []string              `json:"solvedPuzzles"`
	UnlockedAreas   []string              `json:"unlockedAreas"`
	Transcript      []models.HistoryEntry `json:"transcript"`
}

// Outcome результат SelectChoice.
type Outcome struct {
	Narration string             `json:"narration"`
	Choices   []models.Choice    `json:"choices"`
	Receipt   settlement.Receipt `json:"receipt"`
	Degraded  bool               `json:"degraded"`
	Warning   string             `json:"warning,omitempty"`
	Notices   []string           `json:"notices,omitempty"`
}

// RedeemResult результат RedeemReferralCode.
type RedeemResult struct {
	AlreadyVerified bool     `json:"alreadyVerified"`
	InviteCodes     []string `json:"inviteCodes"`
	Message         string   `json:"message"`
	View            View     `json:"view"`
}

// PuzzleResult результат SubmitPuzzleSolution.
type PuzzleResult struct {
	PuzzleID      string `json:"puzzleId"`
	Solved        bool   `json:"solved"`
	AlreadySolved bool   `json:"alreadySolved"`
	Bonus         int64  `json:"bonus"`
	Message       string `json:"message"`
	Balance       int64  `json:"balance"`
}

// HintResult результат RequestHint.
type HintResult struct {
	Text      string `json:"text"`
	HintsUsed int    `json:"hintsUsed"`
	Balance   int64  `json:"balance"`
	Degraded  bool   `json:"degraded"`
}

// Session квестовая сессия одного кошелька.
// Изменяющие операции выполняются строго по одной; чтение возможно параллельно.
type Session struct {
	wallet    string
	store     storage.SessionStore
	narrative *narrative
	gate      *gate
	catalog   *Catalog
	sinks     []EventSink
	logger    *zap.Logger
	now       func() time.Time

	// sem сериализует изменяющие операции
	sem chan struct{}
	// closed выставляется Manager.Close под sem
	closed atomic.Bool

	// изменяющие операции работают с копией записи и подменяют ее целиком
	mu        sync.RWMutex
	rec       *models.SessionRecord
	phase     SessionState
	transient string
}

// NewSession создает сессию для кошелька. Запись не читается до Initialize.
func NewSession(wallet string, deps Deps, opts Options) (*Session, error) {
	w, err := models.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	switch {
	case deps.Store == nil:
		return nil, errors.New("quest session requires a store")
	case deps.Narrator == nil:
		return nil, errors.New("quest session requires a narrator")
	case deps.Referral == nil:
		return nil, errors.New("quest session requires a referral gate")
	case deps.Settler == nil:
		return nil, errors.New("quest session requires a settler")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	cost := opts.InteractionCost
	if cost <= 0 {
		cost = catalog.Economy.InteractionCost
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	log := logger.Named("QuestSession").With(zap.String("wallet", w))
	s := &Session{
		wallet: w,
		store:  deps.Store,
		narrative: &narrative{
			narrator:    deps.Narrator,
			catalog:     catalog,
			counter:     deps.Counter,
			tokenBudget: opts.HistoryTokenBudget,
		},
		gate:    newGate(w, deps.Referral, deps.Settler, cost, log),
		catalog: catalog,
		sinks:   deps.Sinks,
		logger:  log,
		now:     now,
		sem:     make(chan struct{}, 1),
		phase:   StateUninitialized,
	}
	s.rec = s.freshRecord()
	return s, nil
}

// Wallet адрес кошелька сессии.
func (s *Session) Wallet() string { return s.wallet }

// AddSink подключает получателя событий.
func (s *Session) AddSink(sink EventSink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

func (s *Session) freshRecord() *models.SessionRecord {
	rec := &models.SessionRecord{
		TokenBalanceShadow: s.catalog.Economy.InitialShadowBalance,
		UpdatedAt:          s.now(),
	}
	if s.catalog.StartArea != "" {
		rec.UnlockArea(s.catalog.StartArea)
	}
	return rec
}

// --- синхронизация ---

func (s *Session) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return newError(KindInternal, "The request was cancelled.", ctx.Err())
	}
}

func (s *Session) acquire(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	if s.closed.Load() {
		s.release()
		return newError(KindPrecondition, "Your quest session has ended. Please reload to continue.", ErrSessionClosed)
	}
	return nil
}

func (s *Session) release() { <-s.sem }

// busy сообщает, что сейчас выполняется изменяющая операция.
func (s *Session) busy() bool { return len(s.sem) > 0 }

// working возвращает копию записи для изменения.
func (s *Session) working() (*models.SessionRecord, SessionState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Clone(), s.phase
}

// commit подменяет запись и сохраняет ее. Ошибка хранилища только логируется:
// состояние в памяти остается главным до перезагрузки.
func (s *Session) commit(ctx context.Context, rec *models.SessionRecord, phase SessionState, transient string) {
	rec.UpdatedAt = s.now()
	s.mu.Lock()
	s.rec = rec
	s.phase = phase
	s.transient = transient
	s.mu.Unlock()

	if err := s.store.Save(ctx, s.wallet, rec.Clone()); err != nil {
		s.logger.Error("Failed to persist quest state", zap.Error(err))
	}
}

func (s *Session) recoverPanic(op string, err *error) {
	if r := recover(); r != nil {
		s.logger.Error("Recovered from panic in quest operation",
			zap.String("operation", op),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()),
		)
		*err = newError(KindInternal, "An error occurred. Please try again.", fmt.Errorf("%w: %v", ErrPanic, r))
	}
}

func (s *Session) emit(ctx context.Context, events []Event) {
	s.mu.RLock()
	sinks := append([]EventSink(nil), s.sinks...)
	s.mu.RUnlock()
	for _, ev := range events {
		ev.Wallet = s.wallet
		if ev.At.IsZero() {
			ev.At = s.now()
		}
		for _, sink := range sinks {
			if err := sink.Publish(ctx, ev); err != nil {
				s.logger.Warn("Event sink failed", zap.String("event", string(ev.Type)), zap.Error(err))
			}
		}
	}
}

// --- операции ---

// Initialize загружает сохраненную запись и приводит сессию в AwaitingReferral или Ready.
func (s *Session) Initialize(ctx context.Context) (view View, err error) {
	defer func() { observe("initialize", err) }()
	defer s.recoverPanic("Initialize", &err)
	if err := s.acquire(ctx); err != nil {
		return View{}, err
	}
	defer s.release()

	rec, phase := s.working()
	var events []Event

	if phase == StateUninitialized {
		loaded, err := s.store.Load(ctx, s.wallet)
		switch {
		case err == nil:
			rec = loaded
			s.logger.Info("Loaded saved quest state")
		case errors.Is(err, models.ErrNotFound):
			rec = s.freshRecord()
		case errors.Is(err, models.ErrCorruptRecord):
			s.logger.Error("Saved quest state is corrupt, starting fresh", zap.Error(err))
			rec = s.freshRecord()
		default:
			return View{}, newError(KindInternal, "Failed to load your quest. Please try again.", err)
		}
	}

	s.gate.syncReferral(ctx, rec)

	if !rec.ReferralVerified {
		s.commit(ctx, rec, StateAwaitingReferral, "")
		s.emit(ctx, []Event{
			{Type: EventStateChanged, State: StateAwaitingReferral},
			{Type: EventNotice, Text: s.catalog.Messages.ReferralRequired},
		})
		return s.View(), nil
	}

	transient, evs := s.enterReady(ctx, rec)
	events = append(events, evs...)
	s.commit(ctx, rec, StateReady, transient)
	s.emit(ctx, events)
	return s.View(), nil
}

// enterReady генерирует вступление или восстанавливает транскрипт.
// Гарантирует непустой набор вариантов.
func (s *Session) enterReady(ctx context.Context, rec *models.SessionRecord) (string, []Event) {
	events := []Event{{Type: EventStateChanged, State: StateReady}}
	transient := ""

	if rec.CurrentPlotPoint == "" {
		st, err := s.narrative.opening(ctx, &rec.QuestState)
		if err != nil {
			s.logger.Warn("Opening narration failed", zap.Error(err))
			st = step{Text: narration.HoldingLine, Degraded: true, Choices: s.narrative.fallbackChoices(), ChoicesWarning: true}
		}
		rec.AvailableChoices = st.Choices
		s.applyTrigger(rec, st)
		if st.Degraded {
			transient = st.Text
			events = append(events, Event{Type: EventWarning, Text: s.catalog.Fallbacks.NarrationWarning})
		}
		events = append(events, s.stepEvents(rec, st)...)
		return transient, events
	}

	events = append(events, Event{Type: EventTranscript, History: cloneHistory(rec.ConversationHistory)})
	if len(rec.AvailableChoices) == 0 {
		choices, warned := s.narrative.choicesFor(ctx, &rec.QuestState, rec.CurrentPlotPoint)
		rec.AvailableChoices = choices
		if warned {
			events = append(events, Event{Type: EventWarning, Text: s.catalog.Fallbacks.ChoicesWarning})
		}
	}
	events = append(events, Event{Type: EventChoices, Choices: cloneChoices(rec.AvailableChoices)})
	return transient, events
}

// applyTrigger делает сработавшую загадку текущей.
func (s *Session) applyTrigger(rec *models.SessionRecord, st step) (string, bool) {
	if st.Triggered == nil {
		return "", false
	}
	rec.CurrentPuzzle = st.Triggered.ID
	rec.HintsUsed = 0
	return st.Triggered.Notice, true
}

func (s *Session) stepEvents(rec *models.SessionRecord, st step) []Event {
	var events []Event
	if !st.Degraded {
		events = append(events, Event{Type: EventNarration, Text: st.Text})
	}
	if st.ChoicesWarning && !st.Degraded {
		events = append(events, Event{Type: EventWarning, Text: s.catalog.Fallbacks.ChoicesWarning})
	}
	if len(st.NewRunes) > 0 {
		events = append(events, Event{Type: EventNotice, Data: map[string]interface{}{"runes": st.NewRunes}})
	}
	events = append(events, Event{Type: EventChoices, Choices: cloneChoices(rec.AvailableChoices)})
	if st.Triggered != nil {
		events = append(events, Event{
			Type: EventPuzzleTriggered,
			Text: st.Triggered.Notice,
			Data: map[string]interface{}{"puzzleId": st.Triggered.ID},
		})
	}
	return events
}

// RedeemReferralCode активирует инвайт-код. Повторный вызов после успеха ничего не делает.
func (s *Session) RedeemReferralCode(ctx context.Context, code string) (res RedeemResult, err error) {
	defer func() { observe("redeem_referral", err) }()
	defer s.recoverPanic("RedeemReferralCode", &err)

	if err := s.acquire(ctx); err != nil {
		return RedeemResult{}, err
	}
	defer s.release()

	rec, phase := s.working()
	if phase == StateUninitialized {
		return RedeemResult{}, newError(KindPrecondition, "Quest is not initialized yet.", ErrNotInitialized)
	}
	if rec.ReferralVerified {
		return RedeemResult{
			AlreadyVerified: true,
			InviteCodes:     append([]string(nil), rec.InviteCodes...),
			Message:         s.catalog.Messages.AlreadyVerified,
			View:            s.View(),
		}, nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return RedeemResult{}, newError(KindInput, models.ErrEmptyInviteCode.Error(), ErrEmptyCode)
	}

	codes, err := s.gate.redeem(ctx, code)
	if err != nil {
		if rej, ok := referral.IsRejection(err); ok {
			s.logger.Info("Invite code rejected", zap.String("reason", rej.Reason))
			return RedeemResult{}, newError(KindInput, rej.Reason, err)
		}
		s.logger.Error("Invite code verification failed", zap.Error(err))
		return RedeemResult{}, newError(KindInternal, "Error verifying code. Please try again.", err)
	}

	rec.ReferralVerified = true
	if len(codes) > 0 {
		rec.InviteCodes = codes
	}
	events := []Event{
		{Type: EventReferralVerified, Data: map[string]interface{}{"inviteCodes": append([]string(nil), rec.InviteCodes...)}},
		{Type: EventNotice, Text: s.catalog.Messages.ReferralAccepted},
	}
	transient, evs := s.enterReady(ctx, rec)
	events = append(events, evs...)
	s.commit(ctx, rec, StateReady, transient)
	s.emit(ctx, events)

	s.logger.Info("Referral verified", zap.Int("inviteCodes", len(rec.InviteCodes)))
	return RedeemResult{
		InviteCodes: append([]string(nil), rec.InviteCodes...),
		Message:     s.catalog.Messages.ReferralAccepted,
		View:        s.View(),
	}, nil
}

// SelectChoice выбирает вариант: списывает токены и продвигает историю.
// Либо все шаги проходят, либо состояние не меняется и токены не списаны.
// Исключение: сбой генерации после списания или неподтвержденная транзакция,
// токены не возвращаются.
func (s *Session) SelectChoice(ctx context.Context, choiceID string) (out Outcome, err error) {
	defer func() { observe("select_choice", err) }()
	defer s.recoverPanic("SelectChoice", &err)

	choiceID = strings.TrimSpace(choiceID)
	if choiceID == "" {
		return Outcome{}, newError(KindInput, "Please pick a choice.", ErrEmptyChoice)
	}
	if !s.gate.begin(choiceID) {
		return Outcome{}, newError(KindInput, s.catalog.Messages.ChoiceInProgress, ErrChoiceInFlight)
	}
	defer s.gate.end(choiceID)

	if err := s.acquire(ctx); err != nil {
		return Outcome{}, err
	}
	defer s.release()

	rec, phase := s.working()
	if err := s.requireReady(phase); err != nil {
		return Outcome{}, err
	}

	choice, found := rec.FindChoice(choiceID)
	if !found || s.gate.isConsumed(choiceID) {
		return Outcome{}, newError(KindInput, s.catalog.Messages.SelectionNotFound, ErrChoiceNotFound)
	}

	// с момента списания запрос доводится до конца даже после отмены клиентом
	ctx = context.WithoutCancel(ctx)

	receipt, err := s.gate.charge(ctx)
	pending := false
	if err != nil {
		if errors.Is(err, ErrWrongNetwork) {
			return Outcome{}, newError(KindPrecondition, s.catalog.Messages.WrongNetwork, err)
		}
		txHash, submitted := settlement.Submitted(err)
		if !submitted {
			s.logger.Warn("Token deduction failed", zap.String("choice", choiceID), zap.Error(err))
			s.emit(ctx, []Event{{Type: EventWarning, Text: UserMessage(err)}})
			return Outcome{}, err
		}
		// транзакция ушла в сеть: выбор считается оплаченным
		if receipt.TxHash == "" {
			receipt.TxHash = txHash
		}
		pending = true
		s.logger.Warn("Deduction submitted but not confirmed; treating choice as charged",
			zap.String("choice", choiceID), zap.String("txHash", receipt.TxHash), zap.Error(err))
	}
	s.gate.consume(choiceID)

	rec.TokenBalanceShadow -= s.gate.cost
	if rec.TokenBalanceShadow < 0 {
		rec.TokenBalanceShadow = 0
	}
	rec.AppendHistory(models.RoleUser, choice.Text)
	events := []Event{{
		Type: EventTokensDeducted,
		Data: map[string]interface{}{"amount": s.gate.cost, "txHash": receipt.TxHash, "remaining": receipt.RemainingBalance, "pending": pending},
	}}

	var st step
	if pending {
		choices, _ := s.narrative.choicesFor(ctx, &rec.QuestState, rec.CurrentPlotPoint)
		st = step{Text: narration.HoldingLine, Degraded: true, Choices: choices}
	} else {
		st, err = s.narrative.continueStory(ctx, &rec.QuestState, choice.Text)
		if err != nil {
			s.logger.Warn("Narration failed after deduction", zap.Error(err))
			choices, _ := s.narrative.choicesFor(ctx, &rec.QuestState, rec.CurrentPlotPoint)
			st = step{Text: narration.HoldingLine, Degraded: true, Choices: choices}
		}
	}
	rec.AvailableChoices = st.Choices

	out = Outcome{
		Narration: st.Text,
		Receipt:   receipt,
		Degraded:  st.Degraded,
	}
	transient := ""
	if st.Degraded {
		// токены уже списаны и не возвращаются
		transient = st.Text
		out.Warning = s.catalog.Fallbacks.NarrationWarning
		events = append(events, Event{Type: EventWarning, Text: out.Warning})
		s.logger.Warn("Narration degraded after deduction; tokens are not refunded",
			zap.String("txHash", receipt.TxHash))
	} else if st.ChoicesWarning {
		out.Warning = s.catalog.Fallbacks.ChoicesWarning
	}
	if pending {
		notice := settlement.Reason(err)
		out.Notices = append(out.Notices, notice)
		events = append(events, Event{Type: EventNotice, Text: notice, Data: map[string]interface{}{"txHash": receipt.TxHash}})
	}
	if notice, ok := s.applyTrigger(rec, st); ok {
		out.Notices = append(out.Notices, notice)
	}
	events = append(events, s.stepEvents(rec, st)...)

	s.commit(ctx, rec, StateReady, transient)
	s.emit(ctx, events)

	out.Choices = cloneChoices(rec.AvailableChoices)
	return out, nil
}

// SubmitPuzzleSolution проверяет ответ. Пустой puzzleID означает текущую загадку.
func (s *Session) SubmitPuzzleSolution(ctx context.Context, puzzleID, answer string) (res PuzzleResult, err error) {
	defer func() { observe("submit_solution", err) }()
	defer s.recoverPanic("SubmitPuzzleSolution", &err)
	if err := s.acquire(ctx); err != nil {
		return PuzzleResult{}, err
	}
	defer s.release()

	rec, phase := s.working()
	if err := s.requireReady(phase); err != nil {
		return PuzzleResult{}, err
	}

	id := strings.TrimSpace(puzzleID)
	if id == "" {
		id = rec.CurrentPuzzle
	}
	if id == "" {
		return PuzzleResult{}, newError(KindInput, s.catalog.Messages.NoActivePuzzle, ErrNoActivePuzzle)
	}
	p, ok := s.catalog.Puzzle(id)
	if !ok {
		return PuzzleResult{}, newError(KindInput, s.catalog.Messages.NoActivePuzzle, ErrPuzzleNotFound)
	}

	res = PuzzleResult{PuzzleID: p.ID, Balance: rec.TokenBalanceShadow}
	if rec.IsPuzzleSolved(p.ID) {
		// повторное решение бонуса не дает
		res.Solved = true
		res.AlreadySolved = true
		res.Message = "You've already solved this puzzle."
		return res, nil
	}
	if normalizeSolution(answer) != p.Solution {
		res.Message = s.catalog.Messages.WrongAnswer
		return res, nil
	}

	rec.AddSolvedPuzzle(p.ID)
	rec.TokenBalanceShadow += p.Bonus
	rec.HintsUsed = 0
	events := []Event{}
	if p.Unlocks != "" && rec.UnlockArea(p.Unlocks) {
		events = append(events, Event{Type: EventNotice, Data: map[string]interface{}{"unlockedArea": p.Unlocks}})
	}
	res.Solved = true
	res.Bonus = p.Bonus
	res.Balance = rec.TokenBalanceShadow
	res.Message = fmt.Sprintf(s.catalog.Messages.CorrectAnswer, p.Bonus)
	events = append([]Event{{
		Type: EventPuzzleSolved,
		Text: res.Message,
		Data: map[string]interface{}{"puzzleId": p.ID, "bonus": p.Bonus},
	}}, events...)

	_, _, transient := s.snapshotTransient()
	s.commit(ctx, rec, phase, transient)
	s.emit(ctx, events)
	puzzlesSolved.WithLabelValues(p.ID).Inc()
	return res, nil
}

// RequestHint выдает подсказку к текущей загадке за счет теневого баланса.
func (s *Session) RequestHint(ctx context.Context) (res HintResult, err error) {
	defer func() { observe("request_hint", err) }()
	defer s.recoverPanic("RequestHint", &err)
	if err := s.acquire(ctx); err != nil {
		return HintResult{}, err
	}
	defer s.release()

	rec, phase := s.working()
	if err := s.requireReady(phase); err != nil {
		return HintResult{}, err
	}
	p, ok := s.catalog.Puzzle(rec.CurrentPuzzle)
	if !ok || rec.IsPuzzleSolved(p.ID) {
		return HintResult{}, newError(KindPrecondition, s.catalog.Messages.NoActivePuzzle, ErrNoActivePuzzle)
	}
	if limit := s.catalog.Economy.MaxHintsPerPuzzle; limit > 0 && rec.HintsUsed >= limit {
		return HintResult{}, newError(KindPrecondition, s.catalog.Messages.HintLimit, ErrHintLimit)
	}
	cost := s.catalog.Economy.HintCost
	if rec.TokenBalanceShadow < cost {
		return HintResult{}, newError(KindPrecondition, s.catalog.Messages.NotEnoughForHint, ErrNotEnoughForHint)
	}

	reply, err := s.narrative.hint(ctx, p, rec.HintsUsed+1)
	if err != nil {
		return HintResult{}, newError(KindNarration, narration.HoldingLine, err)
	}
	if reply.Degraded {
		// дежурная фраза не подсказка, списывать не за что
		return HintResult{Text: reply.Text, HintsUsed: rec.HintsUsed, Balance: rec.TokenBalanceShadow, Degraded: true}, nil
	}

	rec.TokenBalanceShadow -= cost
	rec.HintsUsed++
	_, _, transient := s.snapshotTransient()
	s.commit(ctx, rec, phase, transient)
	s.emit(ctx, []Event{{Type: EventHint, Text: reply.Text, Data: map[string]interface{}{"puzzleId": p.ID, "hintsUsed": rec.HintsUsed}}})

	return HintResult{Text: reply.Text, HintsUsed: rec.HintsUsed, Balance: rec.TokenBalanceShadow}, nil
}

// RefreshBalance читает баланс токенов у расчетного клиента.
func (s *Session) RefreshBalance(ctx context.Context) (balance int64, err error) {
	defer func() { observe("refresh_balance", err) }()
	defer s.recoverPanic("RefreshBalance", &err)
	balance, err = s.gate.settler.Balance(ctx)
	if err != nil {
		return 0, newError(KindSettlement, settlement.Reason(err), err)
	}
	return balance, nil
}

func (s *Session) requireReady(phase SessionState) error {
	switch phase {
	case StateReady:
		return nil
	case StateAwaitingReferral:
		return newError(KindPrecondition, s.catalog.Messages.ReferralRequired, ErrReferralRequired)
	default:
		return newError(KindPrecondition, "Quest is not initialized yet.", ErrNotInitialized)
	}
}

// --- чтение ---

func (s *Session) snapshotTransient() (*models.SessionRecord, SessionState, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec, s.phase, s.transient
}

// State текущее состояние автомата.
func (s *Session) State() SessionState {
	_, phase, _ := s.snapshotTransient()
	return phase
}

// CurrentNarration последний текст рассказчика.
func (s *Session) CurrentNarration() string {
	rec, _, transient := s.snapshotTransient()
	if transient != "" {
		return transient
	}
	return rec.CurrentPlotPoint
}

// Choices варианты, доступные сейчас. До допуска список пуст.
func (s *Session) Choices() []models.Choice {
	rec, phase, _ := s.snapshotTransient()
	if phase != StateReady {
		return []models.Choice{}
	}
	return cloneChoices(rec.AvailableChoices)
}

// Balance теневой баланс $PEAR.
func (s *Session) Balance() int64 {
	rec, _, _ := s.snapshotTransient()
	return rec.TokenBalanceShadow
}

func (s *Session) InviteCodes() []string {
	rec, _, _ := s.snapshotTransient()
	return append([]string{}, rec.InviteCodes...)
}

func (s *Session) Transcript() []models.HistoryEntry {
	rec, _, _ := s.snapshotTransient()
	return cloneHistory(rec.ConversationHistory)
}

func (s *Session) CurrentPuzzle() string {
	rec, _, _ := s.snapshotTransient()
	return rec.CurrentPuzzle
}

// Record копия сохраняемой записи.
func (s *Session) Record() *models.SessionRecord {
	rec, _, _ := s.snapshotTransient()
	return rec.Clone()
}

// View полный снимок для слоя представления.
func (s *Session) View() View {
	rec, phase, transient := s.snapshotTransient()
	narrationText := rec.CurrentPlotPoint
	if transient != "" {
		narrationText = transient
	}
	choices := []models.Choice{}
	if phase == StateReady {
		choices = cloneChoices(rec.AvailableChoices)
	}
	return View{
		Wallet:          s.wallet,
		State:           phase,
		Narration:       narrationText,
		Choices:         choices,
		Balance:         rec.TokenBalanceShadow,
		InviteCodes:     append([]string{}, rec.InviteCodes...),
		CurrentPuzzle:   rec.CurrentPuzzle,
		HintsUsed:       rec.HintsUsed,
		DiscoveredRunes: append([]string{}, rec.DiscoveredRunes...),
		SolvedPuzzles:   append([]string{}, rec.SolvedPuzzles...),
		UnlockedAreas:   append([]string{}, rec.UnlockedAreas...),
		Transcript:      cloneHistory(rec.ConversationHistory),
	}
}

func cloneChoices(in []models.Choice) []models.Choice {
	return append([]models.Choice{}, in...)
}

func cloneHistory(in []models.HistoryEntry) []models.HistoryEntry {
	return append([]models.HistoryEntry{}, in...)
}
