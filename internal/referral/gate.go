package referral

import (
	"context"
	"errors"

	"quest-server/internal/models"
)

// Rejection отказ реферального бэкенда с текстом для пользователя.
type Rejection struct {
	Reason          string
	AlreadyRedeemed bool
}

func (r *Rejection) Error() string { return r.Reason }

// IsRejection проверяет, что err является отказом бэкенда.
func IsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// LocalGate обращается к Service в том же процессе.
type LocalGate struct {
	svc *Service
}

// NewLocalGate создает шлюз поверх локального сервиса.
func NewLocalGate(svc *Service) *LocalGate {
	return &LocalGate{svc: svc}
}

func (g *LocalGate) Status(ctx context.Context, wallet string) (bool, error) {
	return g.svc.Status(ctx, wallet)
}

func (g *LocalGate) Verify(ctx context.Context, wallet, code string) ([]string, error) {
	codes, err := g.svc.Verify(ctx, code, wallet)
	if err != nil {
		return nil, toRejection(err)
	}
	return codes, nil
}

func (g *LocalGate) Codes(ctx context.Context, wallet string) ([]string, error) {
	rows, err := g.svc.Codes(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return CodeStrings(rows), nil
}

// CodeStrings возвращает только сами коды.
func CodeStrings(rows []InviteCode) []string {
	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.Code)
	}
	return codes
}

func toRejection(err error) error {
	switch {
	case errors.Is(err, models.ErrAlreadyRedeemed):
		return &Rejection{Reason: "You have already used an invite code", AlreadyRedeemed: true}
	case errors.Is(err, models.ErrInvalidInviteCode),
		errors.Is(err, models.ErrEmptyInviteCode),
		errors.Is(err, models.ErrInvalidWallet):
		return &Rejection{Reason: err.Error()}
	default:
		return err
	}
}
