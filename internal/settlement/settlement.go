package settlement

import (
	"context"
	"errors"
)

// Settler списывает токены за действия одного кошелька.
// Реализация может работать долго (подпись, ожидание блока); вызывающий ждет завершения.
type Settler interface {
	// CheckNetwork сообщает, подключен ли клиент к ожидаемой сети.
	CheckNetwork(ctx context.Context) (bool, error)
	// Balance возвращает баланс кошелька в целых токенах.
	Balance(ctx context.Context) (int64, error)
	// Deduct списывает amount токенов. Успех означает подтвержденную транзакцию.
	// Ошибка с ErrUnconfirmed означает, что транзакция отправлена и токены, скорее всего, списаны.
	Deduct(ctx context.Context, amount int64) (Receipt, error)
}

// Factory создает Settler для кошелька.
type Factory func(wallet string) (Settler, error)

// Receipt результат успешного списания.
type Receipt struct {
	TxHash           string `json:"txHash"`
	RemainingBalance int64  `json:"remainingBalance"`
}

// ErrUnconfirmed транзакция отправлена в сеть, но подтверждения не дождались.
// Токены следует считать списанными.
var ErrUnconfirmed = errors.New("transaction submitted but not confirmed")

// Error отказ в списании. Reason показывается пользователю как есть.
type Error struct {
	Reason string
	// TxHash заполнен, если транзакция уже отправлена.
	TxHash string
	Err    error
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Err }

// Reason извлекает текст отказа из ошибки списания.
func Reason(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Reason
	}
	if err == nil {
		return ""
	}
	return "Failed to process token deduction: " + err.Error()
}

// Submitted сообщает, что списание ушло в сеть без подтверждения, и возвращает хеш транзакции.
func Submitted(err error) (string, bool) {
	if !errors.Is(err, ErrUnconfirmed) {
		return "", false
	}
	var se *Error
	if errors.As(err, &se) {
		return se.TxHash, true
	}
	return "", true
}
