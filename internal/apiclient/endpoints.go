package apiclient

import (
	"context"
	"net/http"

	"fanclub/internal/checkout"
	"fanclub/internal/membership"
	"fanclub/internal/seats"
	"fanclub/internal/shared/apperr"
)

var (
	_ seats.Remote       = (*Client)(nil)
	_ checkout.Submitter = (*Client)(nil)
	_ membership.Applier = (*Client)(nil)
)

type holdBody struct {
	SeatIDs   []string `json:"seatIds"`
	HoldToken string   `json:"holdToken,omitempty"`
}

type tierBody struct {
	Tier membership.Tier `json:"tier"`
}

// GetAvailability fetches the taken and held seats of an event
func (c *Client) GetAvailability(ctx context.Context, eventID string) (seats.Availability, error) {
	var a seats.Availability
	_, err := c.doWithRetry(ctx, call{
		method: http.MethodGet,
		path:   "/events/" + escape(eventID) + "/availability",
		out:    &a,
	})
	if err != nil {
		return seats.Availability{}, err
	}
	a.EventID = eventID
	return a, nil
}

// HoldSeats creates a hold, or extends the hold named by token. A new hold
// is not retried: a lost response would leave the first grant holding the
// seats and the retry would conflict with it. When extending, a missing
// hold reads as an expired one.
func (c *Client) HoldSeats(ctx context.Context, eventID string, seatIDs []string, token string) (seats.HoldGrant, error) {
	var grant seats.HoldGrant
	req := call{
		method: http.MethodPost,
		path:   "/events/" + escape(eventID) + "/holds",
		body:   holdBody{SeatIDs: seatIDs, HoldToken: token},
		out:    &grant,
	}

	var err error
	if token == "" {
		_, err = c.do(ctx, req)
	} else {
		req.notFound = apperr.CodeHoldExpired
		_, err = c.doWithRetry(ctx, req)
	}
	if err != nil {
		return seats.HoldGrant{}, err
	}
	return grant, nil
}

// RefreshHold renews a hold's TTL
func (c *Client) RefreshHold(ctx context.Context, token string) (seats.HoldGrant, error) {
	var grant seats.HoldGrant
	_, err := c.doWithRetry(ctx, call{
		method:   http.MethodPost,
		path:     "/holds/" + escape(token) + "/refresh",
		out:      &grant,
		notFound: apperr.CodeHoldExpired,
	})
	if err != nil {
		return seats.HoldGrant{}, err
	}
	return grant, nil
}

// ReleaseHold gives a hold back
func (c *Client) ReleaseHold(ctx context.Context, token string) error {
	_, err := c.doWithRetry(ctx, call{
		method:   http.MethodDelete,
		path:     "/holds/" + escape(token),
		notFound: apperr.CodeHoldExpired,
	})
	return err
}

// SubmitCheckout sends one checkout attempt. Retries belong to the
// checkout coordinator, which owns the idempotency key.
func (c *Client) SubmitCheckout(ctx context.Context, req checkout.Request) (checkout.Confirmation, error) {
	var conf checkout.Confirmation
	res, err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    "/checkout",
		body:    req,
		headers: map[string]string{HeaderIdempotencyKey: req.IdempotencyKey},
		out:     &conf,
	})
	if err != nil {
		return checkout.Confirmation{}, err
	}
	conf.Replayed = res.headers.Get(HeaderReplayed) == "true"
	return conf, nil
}

// GetTier reads the tier the store has applied for the signed-in user
func (c *Client) GetTier(ctx context.Context) (membership.Tier, error) {
	var body tierBody
	if _, err := c.doWithRetry(ctx, call{method: http.MethodGet, path: "/membership", out: &body}); err != nil {
		return "", err
	}
	return body.Tier, nil
}

// ApplyTier performs the backend subscription change. Setting a tier is
// idempotent, so it goes through the retry policy.
func (c *Client) ApplyTier(ctx context.Context, tier membership.Tier) error {
	_, err := c.doWithRetry(ctx, call{
		method: http.MethodPut,
		path:   "/membership",
		body:   tierBody{Tier: tier},
	})
	return err
}
