package quest

import (
	"context"
	"sync"

	"quest-server/internal/models"
	"quest-server/internal/referral"
	"quest-server/internal/settlement"

	"go.uber.org/zap"
)

// ReferralGate бэкенд инвайт-кодов.
type ReferralGate interface {
	Status(ctx context.Context, wallet string) (bool, error)
	Verify(ctx context.Context, wallet, code string) ([]string, error)
	Codes(ctx context.Context, wallet string) ([]string, error)
}

// gate оборачивает платные операции: проверяет реферальный допуск,
// не дает обрабатывать один выбор дважды и списывает токены.
type gate struct {
	wallet   string
	referral ReferralGate
	settler  settlement.Settler
	cost     int64
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	consumed map[string]struct{}
}

func newGate(wallet string, ref ReferralGate, settler settlement.Settler, cost int64, logger *zap.Logger) *gate {
	return &gate{
		wallet:   wallet,
		referral: ref,
		settler:  settler,
		cost:     cost,
		logger:   logger,
		inFlight: make(map[string]struct{}),
		consumed: make(map[string]struct{}),
	}
}

// syncReferral подтягивает статус с бэкенда. Возвращает true, если запись изменилась.
// Ошибки бэкенда не фатальны: кошелек просто остается без допуска.
func (g *gate) syncReferral(ctx context.Context, rec *models.SessionRecord) bool {
	changed := false
	if !rec.ReferralVerified {
		used, err := g.referral.Status(ctx, g.wallet)
		if err != nil {
			g.logger.Warn("Referral status check failed", zap.Error(err))
			return false
		}
		if !used {
			return false
		}
		rec.ReferralVerified = true
		changed = true
	}
	if len(rec.InviteCodes) == 0 {
		codes, err := g.referral.Codes(ctx, g.wallet)
		if err != nil {
			g.logger.Warn("Failed to load invite codes", zap.Error(err))
		} else if len(codes) > 0 {
			rec.InviteCodes = codes
			changed = true
		}
	}
	return changed
}

// redeem активирует код. Отказ бэкенда возвращается как *referral.Rejection.
func (g *gate) redeem(ctx context.Context, code string) ([]string, error) {
	codes, err := g.referral.Verify(ctx, g.wallet, code)
	if err != nil {
		if rej, ok := referral.IsRejection(err); ok && rej.AlreadyRedeemed {
			// код уже был активирован этим кошельком раньше
			codes, cerr := g.referral.Codes(ctx, g.wallet)
			if cerr != nil {
				g.logger.Warn("Failed to load invite codes", zap.Error(cerr))
			}
			return codes, nil
		}
		return nil, err
	}
	return codes, nil
}

// begin помечает выбор как обрабатываемый.
func (g *gate) begin(choiceID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[choiceID]; busy {
		return false
	}
	g.inFlight[choiceID] = struct{}{}
	return true
}

func (g *gate) end(choiceID string) {
	g.mu.Lock()
	delete(g.inFlight, choiceID)
	g.mu.Unlock()
}

func (g *gate) isConsumed(choiceID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.consumed[choiceID]
	return ok
}

func (g *gate) consume(choiceID string) {
	g.mu.Lock()
	g.consumed[choiceID] = struct{}{}
	g.mu.Unlock()
}

// charge проверяет сеть и списывает стоимость взаимодействия.
// При settlement.ErrUnconfirmed квитанция содержит хеш отправленной транзакции.
func (g *gate) charge(ctx context.Context) (settlement.Receipt, error) {
	ok, err := g.settler.CheckNetwork(ctx)
	if err != nil {
		return settlement.Receipt{}, newError(KindSettlement, settlement.Reason(err), err)
	}
	if !ok {
		return settlement.Receipt{}, ErrWrongNetwork
	}

	receipt, err := g.settler.Deduct(ctx, g.cost)
	if err != nil {
		return receipt, newError(KindSettlement, settlement.Reason(err), err)
	}
	return receipt, nil
}
