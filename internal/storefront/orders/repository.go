package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*Order, error)

	// SoldSeats lists every sold seat of an event
	SoldSeats(ctx context.Context, eventID string) ([]string, error)
	// SoldAmong returns the seats of seatIDs that are already sold
	SoldAmong(ctx context.Context, eventID string, seatIDs []string) ([]string, error)

	GetCatalogEntries(ctx context.Context, refIDs []string) (map[string]CatalogEntry, error)
	UpsertCatalogEntries(ctx context.Context, entries []CatalogEntry) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// CreateOrder writes the order with its items and sold seats in one
// transaction. Unique violations surface as gorm.ErrDuplicatedKey when the
// connection translates errors.
func (r *repository) CreateOrder(ctx context.Context, order *Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Seats").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Seats").
		Where("idempotency_key = ?", key).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) SoldSeats(ctx context.Context, eventID string) ([]string, error) {
	var seatIDs []string
	err := r.db.WithContext(ctx).
		Model(&SoldSeat{}).
		Where("event_id = ?", eventID).
		Order("seat_id ASC").
		Pluck("seat_id", &seatIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sold seats: %w", err)
	}
	return seatIDs, nil
}

func (r *repository) SoldAmong(ctx context.Context, eventID string, seatIDs []string) ([]string, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	var sold []string
	err := r.db.WithContext(ctx).
		Model(&SoldSeat{}).
		Where("event_id = ? AND seat_id IN ?", eventID, seatIDs).
		Order("seat_id ASC").
		Pluck("seat_id", &sold).Error
	return sold, err
}

func (r *repository) GetCatalogEntries(ctx context.Context, refIDs []string) (map[string]CatalogEntry, error) {
	var entries []CatalogEntry
	if err := r.db.WithContext(ctx).Where("ref_id IN ?", refIDs).Find(&entries).Error; err != nil {
		return nil, err
	}

	byRef := make(map[string]CatalogEntry, len(entries))
	for _, e := range entries {
		byRef[e.RefID] = e
	}
	return byRef, nil
}

func (r *repository) UpsertCatalogEntries(ctx context.Context, entries []CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Save(&entries).Error
}
