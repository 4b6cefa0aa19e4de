package orders

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"fanclub/internal/shared/apperr"
	"fanclub/internal/storefront/holds"
	"fanclub/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HoldService is the part of the hold service checkout relies on
type HoldService interface {
	VerifyHold(ctx context.Context, userID, token string, seatIDs []string) (*holds.HoldDetails, error)
	ConsumeHold(ctx context.Context, token string) error
}

// Caller identifies the authenticated fan
type Caller struct {
	UserID string
	ClubID string
}

type Service interface {
	// Checkout places an order once per idempotency key. replayed is true
	// when the key already produced an order.
	Checkout(ctx context.Context, caller Caller, key string, req CheckoutRequest) (order *CheckoutResponse, replayed bool, err error)
	GetOrder(ctx context.Context, caller Caller, orderID string) (*Order, error)
}

type service struct {
	repo      Repository
	holds     HoldService
	publisher OrderEventPublisher
	log       *logger.Logger
}

func NewService(repo Repository, holdService HoldService, publisher OrderEventPublisher, log *logger.Logger) Service {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{
		repo:      repo,
		holds:     holdService,
		publisher: publisher,
		log:       log,
	}
}

func (s *service) Checkout(ctx context.Context, caller Caller, key string, req CheckoutRequest) (*CheckoutResponse, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, apperr.New(apperr.CodeValidation, "Idempotency-Key header is required")
	}
	if req.ClubID != caller.ClubID {
		return nil, false, apperr.New(apperr.CodeValidation, "club id does not match the signed-in club")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, false, apperr.New(apperr.CodeValidation, "email is required")
	}
	hash, err := requestHash(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash request: %w", err)
	}

	// Step 1: replay an order the key already produced
	if existing, err := s.repo.GetOrderByIdempotencyKey(ctx, key); err == nil {
		return s.replay(ctx, caller, key, hash, existing)
	} else if !errors.Is(err, ErrOrderNotFound) {
		return nil, false, fmt.Errorf("failed to look up order: %w", err)
	}

	// Step 2: price the items
	order, seatIDs, err := s.buildOrder(ctx, caller, key, hash, req)
	if err != nil {
		return nil, false, err
	}

	// Step 3: seats need the caller's live hold
	var eventID string
	if len(seatIDs) > 0 {
		if req.HoldToken == "" {
			return nil, false, apperr.New(apperr.CodeHoldExpired, "seated tickets need a live hold")
		}
		details, err := s.holds.VerifyHold(ctx, caller.UserID, req.HoldToken, seatIDs)
		if err != nil {
			return nil, false, err
		}
		eventID = details.EventID
		if err := s.checkTicketEvents(ctx, req.Items, eventID); err != nil {
			return nil, false, err
		}
		for _, id := range seatIDs {
			order.Seats = append(order.Seats, SoldSeat{EventID: eventID, SeatID: id})
		}
	}

	// Step 4: persist
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, fmt.Errorf("failed to create order: %w", err)
		}
		// a concurrent submission with the same key won
		if existing, lookupErr := s.repo.GetOrderByIdempotencyKey(ctx, key); lookupErr == nil {
			return s.replay(ctx, caller, key, hash, existing)
		}
		sold, lookupErr := s.repo.SoldAmong(ctx, eventID, seatIDs)
		if lookupErr == nil && len(sold) > 0 {
			return nil, false, apperr.Conflict("Seats are no longer available", sold)
		}
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	// Step 5: the seats are sold, the hold has done its job
	if len(seatIDs) > 0 {
		if err := s.holds.ConsumeHold(ctx, req.HoldToken); err != nil {
			s.log.WarnContext(ctx, "Failed to consume hold after order", "hold_token", req.HoldToken, "error", err)
		}
	}

	if err := s.publisher.PublishOrderConfirmed(ctx, order); err != nil {
		s.log.WarnContext(ctx, "Failed to publish order event", "order_id", order.ID.String(), "error", err)
	}

	s.log.LogOrderCreated(ctx, order.ID.String(), order.ClubID, key, false)
	return order.ToResponse(), false, nil
}

func (s *service) replay(ctx context.Context, caller Caller, key, hash string, existing *Order) (*CheckoutResponse, bool, error) {
	if existing.UserID != caller.UserID || existing.ClubID != caller.ClubID {
		return nil, false, apperr.New(apperr.CodeInvalidState, "Idempotency-Key belongs to another order")
	}
	if existing.RequestHash != hash {
		return nil, false, apperr.New(apperr.CodeInvalidState, "Idempotency-Key was used with a different request")
	}
	s.log.LogOrderCreated(ctx, existing.ID.String(), existing.ClubID, key, true)
	return existing.ToResponse(), true, nil
}

// buildOrder prices the request and collects its seats. A seat may appear
// in only one item.
func (s *service) buildOrder(ctx context.Context, caller Caller, key, hash string, req CheckoutRequest) (*Order, []string, error) {
	refIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		refIDs = append(refIDs, item.RefID)
	}
	catalog, err := s.repo.GetCatalogEntries(ctx, refIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	ref, err := generateOrderRef()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate order reference: %w", err)
	}

	order := &Order{
		UserID:         caller.UserID,
		ClubID:         caller.ClubID,
		Email:          strings.TrimSpace(req.Email),
		IdempotencyKey: key,
		RequestHash:    hash,
		HoldToken:      req.HoldToken,
		OrderRef:       ref,
		Status:         StatusConfirmed,
	}

	seen := make(map[string]struct{})
	var seatIDs []string
	for _, item := range req.Items {
		entry, ok := catalog[item.RefID]
		if !ok || entry.Type != item.Type {
			return nil, nil, apperr.New(apperr.CodeValidation, fmt.Sprintf("unknown %s %q", strings.ToLower(item.Type), item.RefID))
		}
		if item.Quantity < 1 {
			return nil, nil, apperr.New(apperr.CodeValidation, "quantity must be at least 1")
		}
		if item.Type == ItemTypeProduct && len(item.SeatIDs) > 0 {
			return nil, nil, apperr.New(apperr.CodeValidation, "products cannot carry seats")
		}

		for _, id := range item.SeatIDs {
			if _, dup := seen[id]; dup {
				return nil, nil, apperr.New(apperr.CodeValidation, fmt.Sprintf("seat %s is listed twice", id))
			}
			seen[id] = struct{}{}
			seatIDs = append(seatIDs, id)
		}

		line := entry.PriceCents * int64(item.Quantity)
		order.Items = append(order.Items, OrderItem{
			Type:      item.Type,
			RefID:     item.RefID,
			Quantity:  item.Quantity,
			UnitCents: entry.PriceCents,
			LineCents: line,
		})
		order.TotalCents += line
	}
	order.TotalSeats = len(seatIDs)
	sort.Strings(seatIDs)

	return order, seatIDs, nil
}

// checkTicketEvents rejects seated tickets of another event than the hold
func (s *service) checkTicketEvents(ctx context.Context, items []CheckoutItem, eventID string) error {
	var refIDs []string
	for _, item := range items {
		if item.Type == ItemTypeTicket && len(item.SeatIDs) > 0 {
			refIDs = append(refIDs, item.RefID)
		}
	}
	catalog, err := s.repo.GetCatalogEntries(ctx, refIDs)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	for _, id := range refIDs {
		if e := catalog[id]; e.EventID != "" && e.EventID != eventID {
			return apperr.New(apperr.CodeValidation, fmt.Sprintf("ticket %q is not for the held event", id))
		}
	}
	return nil
}

func (s *service) GetOrder(ctx context.Context, caller Caller, orderID string) (*Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, apperr.New(apperr.CodeValidation, "invalid order id")
	}
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "Order not found")
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order.UserID != caller.UserID || order.ClubID != caller.ClubID {
		return nil, apperr.New(apperr.CodeNotFound, "Order not found")
	}
	return order, nil
}

// requestHash fingerprints a request so a reused key with a different body
// is detected
func requestHash(req CheckoutRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func generateOrderRef() (string, error) {
	timestamp := time.Now().Format("20060102")

	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	randomPart := make([]byte, 8)
	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = letters[num.Int64()]
	}

	return fmt.Sprintf("FAN-%s-%s", timestamp, string(randomPart)), nil
}
