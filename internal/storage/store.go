package storage

import (
	"context"

	"quest-server/internal/models"
)

// SessionStore хранит SessionRecord по ключу models.StorageKey(wallet).
// Load возвращает models.ErrNotFound, если записи нет, и models.ErrCorruptRecord,
// если запись не удалось декодировать. Запись работает по принципу last-writer-wins.
type SessionStore interface {
	Load(ctx context.Context, wallet string) (*models.SessionRecord, error)
	Save(ctx context.Context, wallet string, rec *models.SessionRecord) error
	Delete(ctx context.Context, wallet string) error
}
