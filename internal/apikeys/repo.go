package apikeys

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paywallet/paywallet-backend/pkg/db/models"
)

// ErrKeyNotFound signals a missing or foreign api key row.
var ErrKeyNotFound = errors.New("api key not found")

// Repository manages api key persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, key *models.APIKey) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error)
	FindByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error)
	CountLiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	NameInUse(ctx context.Context, userID uuid.UUID, name string, now time.Time) (bool, error)
	Update(ctx context.Context, key *models.APIKey) error
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an api key repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, key *models.APIKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	return r.find(ctx, "id = ?", id)
}

func (r *repository) FindByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	return r.find(ctx, "key_hash = ?", keyHash)
}

func (r *repository) find(ctx context.Context, query string, arg any) (*models.APIKey, error) {
	var key models.APIKey
	if err := r.db.WithContext(ctx).Where(query, arg).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return &key, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	var keys []models.APIKey
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repository) CountLiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("user_id = ? AND is_revoked = ? AND expires_at > ?", userID, false, now).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) NameInUse(ctx context.Context, userID uuid.UUID, name string, now time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("user_id = ? AND name = ? AND is_revoked = ? AND expires_at > ?", userID, name, false, now).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) Update(ctx context.Context, key *models.APIKey) error {
	if key == nil {
		return errors.New("key is required")
	}
	return r.db.WithContext(ctx).Save(key).Error
}

func (r *repository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}
