package checkout

import (
	"context"
	"sync"

	"fanclub/internal/seats"

	"github.com/google/uuid"
)

// Item is one entry of the checkout body. SeatIDs is omitted from the wire
// form when empty.
type Item struct {
	Type     string   `json:"type" validate:"required,oneof=TICKET PRODUCT"`
	RefID    string   `json:"refId" validate:"required"`
	Quantity int      `json:"quantity" validate:"min=1"`
	SeatIDs  []string `json:"seatIds,omitempty"`
}

// Request is a checkout submission. The idempotency key travels in a
// header, not in the body.
type Request struct {
	ClubID         string `json:"clubId" validate:"required"`
	Email          string `json:"email" validate:"required"`
	Items          []Item `json:"items" validate:"required,min=1,dive"`
	HoldToken      string `json:"holdToken,omitempty"`
	IdempotencyKey string `json:"-" validate:"required"`
}

// Confirmation is the store's answer to a successful checkout.
type Confirmation struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	// Replayed is set when the store answered from a previous submission
	// with the same idempotency key.
	Replayed bool `json:"-"`
}

// Submitter sends a checkout request to the store
type Submitter interface {
	SubmitCheckout(ctx context.Context, req Request) (Confirmation, error)
}

// HoldHandle is the view of a seat-selection session the coordinator needs.
// *seats.HoldManager satisfies it.
type HoldHandle interface {
	Current() (seats.SeatHold, bool)
	Consume()
}

// Attempt is one user "pay" action. Its idempotency key is reused by every
// automatic or manual retry of that action and never by a later purchase.
//
// Once a request has been sent, the attempt keeps it until the store gives
// a definitive answer. Retrying the attempt resends that request byte for
// byte, so the store sees the same body hash and can replay its outcome
// even after the cart or hold changed locally.
type Attempt struct {
	key string

	mu   sync.Mutex
	sent *Request
}

// NewAttempt starts a purchase attempt with a fresh idempotency key
func NewAttempt() *Attempt {
	return &Attempt{key: uuid.NewString()}
}

// Key returns the idempotency key of the attempt
func (a *Attempt) Key() string {
	return a.key
}

// Sent returns the request this attempt is bound to, if any
func (a *Attempt) Sent() (Request, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sent == nil {
		return Request{}, false
	}
	req := *a.sent
	req.Items = append([]Item(nil), req.Items...)
	return req, true
}

func (a *Attempt) bind(req Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = &req
}

func (a *Attempt) unbind() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = nil
}
