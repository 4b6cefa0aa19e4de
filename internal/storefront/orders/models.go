package orders

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

const (
	ItemTypeTicket  = "TICKET"
	ItemTypeProduct = "PRODUCT"
)

// Order is one completed checkout. IdempotencyKey is unique so that a
// retried submission finds the order the first one created.
type Order struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string    `gorm:"index;not null" json:"user_id"`
	ClubID         string    `gorm:"index;not null" json:"club_id"`
	Email          string    `gorm:"not null" json:"email"`
	IdempotencyKey string    `gorm:"uniqueIndex;not null" json:"-"`
	RequestHash    string    `gorm:"type:varchar(64);not null" json:"-"`
	HoldToken      string    `json:"hold_token,omitempty"`
	OrderRef       string    `gorm:"unique;not null" json:"order_ref"`
	TotalSeats     int       `gorm:"not null" json:"total_seats"`
	TotalCents     int64     `gorm:"not null" json:"total_cents"`
	Status         Status    `gorm:"type:varchar(20);default:'CONFIRMED'" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE;"`
	Seats []SoldSeat  `json:"seats,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE;"`
}

// OrderItem is one submitted line with its price at the time of sale
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;index;not null" json:"order_id"`
	Type      string    `gorm:"type:varchar(10);not null" json:"type"`
	RefID     string    `gorm:"not null" json:"ref_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	UnitCents int64     `gorm:"not null" json:"unit_cents"`
	LineCents int64     `gorm:"not null" json:"line_cents"`
}

// SoldSeat makes a seat unavailable for good. The (event, seat) pair is
// unique across all orders.
type SoldSeat struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;index;not null" json:"order_id"`
	EventID   string    `gorm:"uniqueIndex:idx_sold_event_seat;not null" json:"event_id"`
	SeatID    string    `gorm:"uniqueIndex:idx_sold_event_seat;not null" json:"seat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CatalogEntry prices a ticket type or a merchandise variant
type CatalogEntry struct {
	RefID      string `gorm:"primaryKey" json:"ref_id"`
	Type       string `gorm:"type:varchar(10);not null" json:"type"`
	Name       string `gorm:"not null" json:"name"`
	PriceCents int64  `gorm:"not null" json:"price_cents"`
	// EventID ties a ticket type to its event; empty for products
	EventID string `json:"event_id,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (SoldSeat) TableName() string {
	return "sold_seats"
}

func (CatalogEntry) TableName() string {
	return "catalog_entries"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (s *SoldSeat) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SeatIDs lists the seats the order sold
func (o *Order) SeatIDs() []string {
	ids := make([]string, 0, len(o.Seats))
	for _, s := range o.Seats {
		ids = append(ids, s.SeatID)
	}
	return ids
}

// CheckoutItem is one line of a checkout request
type CheckoutItem struct {
	Type     string   `json:"type" binding:"required,oneof=TICKET PRODUCT"`
	RefID    string   `json:"refId" binding:"required"`
	Quantity int      `json:"quantity" binding:"min=1"`
	SeatIDs  []string `json:"seatIds,omitempty"`
}

// CheckoutRequest is the body of POST /checkout
type CheckoutRequest struct {
	ClubID    string         `json:"clubId" binding:"required"`
	Email     string         `json:"email" binding:"required"`
	Items     []CheckoutItem `json:"items" binding:"required,min=1,dive"`
	HoldToken string         `json:"holdToken,omitempty"`
}

// CheckoutResponse confirms an order
type CheckoutResponse struct {
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	OrderRef   string `json:"orderRef"`
	TotalCents int64  `json:"totalCents"`
	TotalSeats int    `json:"totalSeats"`
}

func (o *Order) ToResponse() *CheckoutResponse {
	return &CheckoutResponse{
		OrderID:    o.ID.String(),
		Status:     o.Status.String(),
		OrderRef:   o.OrderRef,
		TotalCents: o.TotalCents,
		TotalSeats: o.TotalSeats,
	}
}
