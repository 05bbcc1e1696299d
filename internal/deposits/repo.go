package deposits

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paywallet/paywallet-backend/pkg/db"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
)

var (
	// ErrIntentNotFound signals an unknown deposit reference.
	ErrIntentNotFound = errors.New("deposit intent not found")
	// ErrDuplicateIntent signals a reference collision on creation.
	ErrDuplicateIntent = errors.New("deposit reference already exists")
)

// Repository manages deposit intent persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.DepositIntent) error
	FindByReference(ctx context.Context, reference string) (*models.DepositIntent, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.DepositIntent, error)
	Update(ctx context.Context, intent *models.DepositIntent) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a deposit intent repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.DepositIntent) error {
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateIntent
		}
		return err
	}
	return nil
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.DepositIntent, error) {
	var intent models.DepositIntent
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DepositIntent, error) {
	var intent models.DepositIntent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repository) Update(ctx context.Context, intent *models.DepositIntent) error {
	if intent == nil {
		return errors.New("intent is required")
	}
	return r.db.WithContext(ctx).Save(intent).Error
}
