package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"fanclub/internal/cart"
	"fanclub/internal/seats"
	"fanclub/internal/shared/apperr"
	"fanclub/pkg/logger"
	"fanclub/pkg/retry"

	"github.com/go-playground/validator/v10"
)

// ErrSubmitInFlight is returned when Submit is called while a previous
// submission has not finished.
var ErrSubmitInFlight = apperr.ErrInFlight

// Submission is everything one checkout needs.
type Submission struct {
	Cart       *cart.Store
	BuyerEmail string
	ClubID     string
	// Hold is the seat-selection session, nil when the cart has no seats.
	Hold HoldHandle
	// Attempt carries the idempotency key. Pass the same Attempt to retry a
	// failed submission; nil starts a new one.
	Attempt *Attempt
}

// Coordinator turns a cart into an idempotent checkout and reconciles the
// outcome back into the cart and the hold.
type Coordinator struct {
	submitter Submitter
	retry     retry.Policy
	validator *validator.Validate
	log       *logger.Logger
	inFlight  atomic.Bool
}

func NewCoordinator(submitter Submitter, policy retry.Policy, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Coordinator{
		submitter: submitter,
		retry:     policy,
		validator: validator.New(),
		log:       log,
	}
}

// Submit validates the submission locally, then sends it. On success the
// cart is cleared and the hold consumed; on failure both are left as they
// were so the caller can retry with the same Attempt.
//
// An Attempt whose earlier send ended without a definitive answer resends
// the stored request unchanged and skips the local checks: the first send
// may have created the order and consumed the hold, and only the store can
// say so.
func (c *Coordinator) Submit(ctx context.Context, s Submission) (Confirmation, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return Confirmation{}, ErrSubmitInFlight
	}
	defer c.inFlight.Store(false)

	attempt := s.Attempt
	if attempt == nil {
		attempt = NewAttempt()
	}

	req, resend := attempt.Sent()
	if resend {
		c.log.Info("Resending checkout attempt",
			"club_id", req.ClubID,
			"idempotency_key", req.IdempotencyKey,
		)
	} else {
		var err error
		req, err = c.buildRequest(s, attempt.Key())
		if err != nil {
			return Confirmation{}, err
		}
		attempt.bind(req)
	}

	var conf Confirmation
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		conf, err = c.submitter.SubmitCheckout(ctx, req)
		return err
	})
	if err != nil {
		if !outcomeUnknown(err) {
			attempt.unbind()
		}
		c.log.WithError(err).Warn("Checkout failed",
			"club_id", req.ClubID,
			"idempotency_key", req.IdempotencyKey,
			"code", string(apperr.CodeOf(err)),
		)
		return Confirmation{}, err
	}

	if s.Cart != nil {
		s.Cart.Clear()
	}
	if s.Hold != nil {
		s.Hold.Consume()
	}

	c.log.LogOrderCreated(ctx, conf.OrderID, req.ClubID, req.IdempotencyKey, conf.Replayed)
	return conf, nil
}

// outcomeUnknown reports whether err leaves open that the store processed
// the request.
func outcomeUnknown(err error) bool {
	return apperr.IsRetryable(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// buildRequest runs every local check. Nothing here touches the network.
func (c *Coordinator) buildRequest(s Submission, key string) (Request, error) {
	email := strings.TrimSpace(s.BuyerEmail)
	if email == "" {
		return Request{}, apperr.New(apperr.CodeValidation, "buyer email is required")
	}
	if s.ClubID == "" {
		return Request{}, apperr.New(apperr.CodeValidation, "club is required")
	}
	if s.Cart == nil || s.Cart.IsEmpty() {
		return Request{}, apperr.New(apperr.CodeValidation, "cart is empty")
	}

	lines := s.Cart.Lines()
	holdToken, err := checkHold(lines, s.Hold)
	if err != nil {
		return Request{}, err
	}

	items := BuildItems(lines)
	if len(items) == 0 {
		return Request{}, apperr.ErrInvalidCart
	}

	req := Request{
		ClubID:         s.ClubID,
		Email:          email,
		Items:          items,
		HoldToken:      holdToken,
		IdempotencyKey: key,
	}
	if err := c.validator.Struct(&req); err != nil {
		return Request{}, apperr.Wrap(apperr.CodeValidation, "invalid checkout request", err)
	}
	return req, nil
}

// checkHold makes sure every seat in the cart is covered by a live hold and
// returns that hold's token.
func checkHold(lines []cart.LineItem, hold HoldHandle) (string, error) {
	var seatIDs []string
	for _, l := range lines {
		if l.NeedsReselection {
			return "", apperr.New(apperr.CodeHoldExpired,
				fmt.Sprintf("seats for %q must be reselected", l.DisplayName))
		}
		if l.HasSeats() {
			seatIDs = append(seatIDs, l.SeatIDs...)
		}
	}

	var (
		current  seats.SeatHold
		haveHold bool
	)
	if hold != nil {
		current, haveHold = hold.Current()
	}
	if len(seatIDs) == 0 {
		if haveHold {
			return current.Token, nil
		}
		return "", nil
	}
	if !haveHold {
		return "", apperr.ErrHoldExpired
	}

	held := make(map[string]struct{}, len(current.SeatIDs))
	for _, id := range current.SeatIDs {
		held[id] = struct{}{}
	}
	var missing []string
	for _, id := range seatIDs {
		if _, ok := held[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return "", &apperr.Error{
			Code:    apperr.CodeHoldExpired,
			Message: "seats in the cart are not covered by the active hold",
			SeatIDs: missing,
		}
	}
	return current.Token, nil
}

// BuildItems converts cart lines to checkout items. Lines without a
// reference id are dropped, and seat ids are only carried when present.
func BuildItems(lines []cart.LineItem) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l.ReferenceID) == "" || !l.Kind.IsValid() || l.Quantity < 1 {
			continue
		}
		item := Item{
			Type:     l.Kind.String(),
			RefID:    l.ReferenceID,
			Quantity: l.Quantity,
		}
		if l.HasSeats() {
			item.SeatIDs = append([]string(nil), l.SeatIDs...)
		}
		items = append(items, item)
	}
	return items
}
