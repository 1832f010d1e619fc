package settlement

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger хранит балансы в памяти. Используется офлайн и в тестах.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]int64
	initial  int64
	onChain  bool
	logger   *zap.Logger
}

func NewLedger(initialBalance int64, logger *zap.Logger) *Ledger {
	return &Ledger{
		balances: make(map[string]int64),
		initial:  initialBalance,
		onChain:  true,
		logger:   logger.Named("Ledger"),
	}
}

// SetNetworkOK переключает результат CheckNetwork.
func (l *Ledger) SetNetworkOK(ok bool) {
	l.mu.Lock()
	l.onChain = ok
	l.mu.Unlock()
}

// Credit начисляет токены кошельку.
func (l *Ledger) Credit(wallet string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[l.ensure(wallet)] += amount
}

// Factory возвращает фабрику Settler поверх общего леджера.
func (l *Ledger) Factory() Factory {
	return func(wallet string) (Settler, error) {
		return l.ForWallet(wallet), nil
	}
}

func (l *Ledger) ForWallet(wallet string) Settler {
	return &ledgerAccount{ledger: l, wallet: strings.ToLower(wallet)}
}

// ensure должен вызываться под l.mu.
func (l *Ledger) ensure(wallet string) string {
	w := strings.ToLower(wallet)
	if _, ok := l.balances[w]; !ok {
		l.balances[w] = l.initial
	}
	return w
}

type ledgerAccount struct {
	ledger *Ledger
	wallet string
}

func (a *ledgerAccount) CheckNetwork(_ context.Context) (bool, error) {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	return a.ledger.onChain, nil
}

func (a *ledgerAccount) Balance(_ context.Context) (int64, error) {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	return a.ledger.balances[a.ledger.ensure(a.wallet)], nil
}

func (a *ledgerAccount) Deduct(ctx context.Context, amount int64) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, &Error{Reason: "Transaction cancelled.", Err: err}
	}
	if amount <= 0 {
		return Receipt{}, &Error{Reason: fmt.Sprintf("Invalid deduction amount %d.", amount)}
	}

	l := a.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.ensure(a.wallet)
	if l.balances[w] < amount {
		deductionsTotal.WithLabelValues("ledger", "insufficient").Inc()
		return Receipt{}, &Error{Reason: fmt.Sprintf("Insufficient balance. You need at least %d PEAR tokens.", amount)}
	}
	l.balances[w] -= amount

	deductionsTotal.WithLabelValues("ledger", "success").Inc()
	deductedTokens.WithLabelValues("ledger").Add(float64(amount))
	receipt := Receipt{TxHash: "ledger-" + uuid.NewString(), RemainingBalance: l.balances[w]}
	l.logger.Debug("Tokens deducted", zap.String("wallet", w), zap.Int64("amount", amount), zap.Int64("remaining", receipt.RemainingBalance))
	return receipt, nil
}
