package seats

import (
	"context"
	"sync"
	"time"

	"fanclub/internal/shared/apperr"
	"fanclub/pkg/logger"

	"github.com/benbjohnson/clock"
)

// DefaultRefreshFraction is the share of a hold's TTL after which the
// session refreshes it.
const DefaultRefreshFraction = 0.5

const minRefreshDelay = 250 * time.Millisecond

// Options configures a HoldManager. Zero values pick defaults.
type Options struct {
	RefreshFraction float64
	Clock           clock.Clock
	Logger          *logger.Logger
	// OnExpired is called once when the session's hold dies without being
	// released. It may call State or Current but no other method.
	OnExpired func(SeatHold)
}

// HoldManager owns the single hold of one seat-selection session along
// with its refresh timer. It is safe for concurrent use.
type HoldManager struct {
	remote          HoldRemote
	clock           clock.Clock
	log             *logger.Logger
	refreshFraction float64
	onExpired       func(SeatHold)

	// opMu serializes remote calls; mu guards the fields below it
	opMu sync.Mutex

	mu    sync.Mutex
	state HoldState
	hold  SeatHold
	timer *clock.Timer
	gen   uint64
}

// NewHoldManager creates an Idle session
func NewHoldManager(remote HoldRemote, opts Options) *HoldManager {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetDefault()
	}
	if opts.RefreshFraction <= 0 || opts.RefreshFraction >= 1 {
		opts.RefreshFraction = DefaultRefreshFraction
	}
	return &HoldManager{
		remote:          remote,
		clock:           opts.Clock,
		log:             opts.Logger,
		refreshFraction: opts.RefreshFraction,
		onExpired:       opts.OnExpired,
		state:           StateIdle,
	}
}

// State returns the session state. A Held session whose expiry has passed
// is reported, and recorded, as Expired.
func (m *HoldManager) State() HoldState {
	m.mu.Lock()
	expired := m.expireIfDueLocked()
	state, hold := m.state, m.hold
	m.mu.Unlock()

	if expired {
		m.notifyExpired(hold)
	}
	return state
}

// Current returns the live hold, if any
func (m *HoldManager) Current() (SeatHold, bool) {
	m.mu.Lock()
	expired := m.expireIfDueLocked()
	state, hold := m.state, m.hold
	m.mu.Unlock()

	if expired {
		m.notifyExpired(hold)
		return SeatHold{}, false
	}
	if state != StateHeld && state != StateRefreshing {
		return SeatHold{}, false
	}
	return hold.clone(), true
}

// Acquire requests a new hold on seatIDs. It is only valid from Idle. A
// conflict is returned as is; the caller re-fetches availability and
// retries with a reduced selection.
func (m *HoldManager) Acquire(ctx context.Context, eventID string, seatIDs []string) (SeatHold, error) {
	if eventID == "" || len(seatIDs) == 0 {
		return SeatHold{}, apperr.New(apperr.CodeValidation, "event and at least one seat are required")
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.state != StateIdle {
		state := m.state
		m.mu.Unlock()
		return SeatHold{}, stateError("acquire", state)
	}
	m.mu.Unlock()

	grant, err := m.remote.HoldSeats(ctx, eventID, seatIDs, "")
	if err != nil {
		return SeatHold{}, err
	}
	if err := checkGrant(grant); err != nil {
		return SeatHold{}, err
	}

	m.mu.Lock()
	m.hold = newSeatHold(eventID, seatIDs, grant, m.clock.Now())
	m.state = StateHeld
	m.scheduleRefreshLocked()
	hold := m.hold.clone()
	m.mu.Unlock()

	m.log.LogHoldAcquired(ctx, eventID, grant.Token, len(seatIDs), grant.TTL())
	return hold, nil
}

// Extend replaces the seat set of the live hold. The remote call carries
// the current token so the store extends that hold instead of creating a
// second one. On conflict the previous hold stays in force.
func (m *HoldManager) Extend(ctx context.Context, token string, seatIDs []string) (SeatHold, error) {
	if len(seatIDs) == 0 {
		return SeatHold{}, apperr.New(apperr.CodeValidation, "at least one seat is required, release the hold instead")
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	eventID, err := m.begin("extend", token)
	if err != nil {
		return SeatHold{}, err
	}

	grant, err := m.remote.HoldSeats(ctx, eventID, seatIDs, token)
	if err == nil {
		err = checkGrant(grant)
	}
	if err != nil {
		m.fail(err)
		return SeatHold{}, err
	}

	m.mu.Lock()
	if m.state != StateRefreshing {
		// consumed or closed while the call was in flight
		state := m.state
		m.mu.Unlock()
		return SeatHold{}, stateError("extend", state)
	}
	m.hold = newSeatHold(eventID, seatIDs, grant, m.clock.Now())
	m.state = StateHeld
	m.scheduleRefreshLocked()
	hold := m.hold.clone()
	m.mu.Unlock()

	m.log.LogHoldAcquired(ctx, eventID, grant.Token, len(seatIDs), grant.TTL())
	return hold, nil
}

// Refresh renews the TTL of the live hold. The new expiry is always later
// than the previous one; a grant that would not move it is treated as a
// failed refresh.
func (m *HoldManager) Refresh(ctx context.Context, token string) (SeatHold, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if _, err := m.begin("refresh", token); err != nil {
		return SeatHold{}, err
	}

	grant, err := m.remote.RefreshHold(ctx, token)
	if err == nil {
		err = checkGrant(grant)
	}
	if err != nil {
		m.fail(err)
		return SeatHold{}, err
	}

	m.mu.Lock()
	if m.state != StateRefreshing {
		state := m.state
		m.mu.Unlock()
		return SeatHold{}, stateError("refresh", state)
	}
	now := m.clock.Now()
	expiresAt := now.Add(grant.TTL())
	if !expiresAt.After(m.hold.ExpiresAt) {
		m.mu.Unlock()
		err := apperr.New(apperr.CodeServer, "store returned a refresh that does not extend the hold")
		m.fail(err)
		return SeatHold{}, err
	}
	m.hold.Token = grant.Token
	m.hold.TTLSeconds = grant.TTLSeconds
	m.hold.IssuedAt = now
	m.hold.ExpiresAt = expiresAt
	m.state = StateHeld
	m.scheduleRefreshLocked()
	hold := m.hold.clone()
	m.mu.Unlock()

	return hold, nil
}

// Release gives the hold back to the store. Valid from Held or Refreshing;
// a release issued during a refresh waits for it to finish.
func (m *HoldManager) Release(ctx context.Context, token string) error {
	m.opMu.Lock()
	m.mu.Lock()
	expired := m.expireIfDueLocked()
	state, hold := m.state, m.hold
	live := !expired && state == StateHeld && token == hold.Token
	if live {
		m.endLocked(StateReleased)
	}
	m.mu.Unlock()
	m.opMu.Unlock()

	switch {
	case expired:
		m.notifyExpired(hold)
		return apperr.ErrHoldExpired
	case state != StateHeld:
		return stateError("release", state)
	case !live:
		return apperr.New(apperr.CodeHoldExpired, "hold token is not the session's live token")
	}

	if err := m.remote.ReleaseHold(ctx, token); err != nil {
		// Local state is already Released; the store drops the hold at TTL.
		m.log.WithError(err).Warn("Failed to release seat hold", "token", token)
		return err
	}
	m.log.LogHoldReleased(ctx, token, "released")
	return nil
}

// Consume ends the session after a successful checkout. The store voids
// the hold as part of order creation, so no remote call is made.
func (m *HoldManager) Consume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateHeld || m.state == StateRefreshing {
		m.endLocked(StateReleased)
		m.log.LogHoldReleased(context.Background(), m.hold.Token, "consumed")
	}
}

// Close ends the session on any exit path. A live hold is released on a
// best-effort basis; the refresh timer is always stopped.
func (m *HoldManager) Close(ctx context.Context) {
	m.opMu.Lock()
	m.mu.Lock()
	live := m.state == StateHeld && m.hold.ValidAt(m.clock.Now())
	token := m.hold.Token
	if !m.state.IsTerminal() {
		m.endLocked(StateReleased)
	}
	m.stopTimerLocked()
	m.mu.Unlock()
	m.opMu.Unlock()

	if !live {
		return
	}
	if err := m.remote.ReleaseHold(ctx, token); err != nil {
		m.log.WithError(err).Warn("Failed to release seat hold on close", "token", token)
		return
	}
	m.log.LogHoldReleased(ctx, token, "closed")
}

// begin validates token against the live hold and moves to Refreshing.
// The caller holds opMu.
func (m *HoldManager) begin(op, token string) (string, error) {
	m.mu.Lock()
	expired := m.expireIfDueLocked()
	state, hold := m.state, m.hold
	if !expired && state == StateHeld && token == hold.Token {
		m.state = StateRefreshing
	}
	m.mu.Unlock()

	switch {
	case expired:
		m.notifyExpired(hold)
		return "", apperr.ErrHoldExpired
	case state != StateHeld:
		return "", stateError(op, state)
	case token != hold.Token:
		return "", apperr.New(apperr.CodeHoldExpired, "hold token is not the session's live token")
	}
	return hold.EventID, nil
}

// fail restores Held after a failed extend or refresh, or moves to Expired
// if the store no longer knows the hold.
func (m *HoldManager) fail(err error) {
	m.mu.Lock()
	if m.state != StateRefreshing {
		m.mu.Unlock()
		return
	}
	if apperr.CodeOf(err) == apperr.CodeHoldExpired || !m.hold.ValidAt(m.clock.Now()) {
		m.endLocked(StateExpired)
		hold := m.hold
		m.mu.Unlock()
		m.notifyExpired(hold)
		return
	}
	m.state = StateHeld
	m.scheduleRefreshLocked()
	m.mu.Unlock()
}

func (m *HoldManager) expireIfDueLocked() bool {
	if m.state != StateHeld || m.hold.ValidAt(m.clock.Now()) {
		return false
	}
	m.endLocked(StateExpired)
	return true
}

func (m *HoldManager) endLocked(state HoldState) {
	m.state = state
	m.gen++
	m.stopTimerLocked()
}

func (m *HoldManager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// scheduleRefreshLocked arms the refresh timer at a fraction of the time
// left. When that is too short to be worth a round trip, it arms an expiry
// timer instead so the session still notices the loss.
func (m *HoldManager) scheduleRefreshLocked() {
	remaining := m.hold.ExpiresAt.Sub(m.clock.Now())
	delay := time.Duration(float64(remaining) * m.refreshFraction)
	if delay < minRefreshDelay {
		m.scheduleLocked(remaining, m.onExpiryTimer)
		return
	}
	m.scheduleLocked(delay, m.onRefreshTimer)
}

func (m *HoldManager) scheduleLocked(delay time.Duration, fn func(gen uint64)) {
	m.stopTimerLocked()
	m.gen++
	gen := m.gen
	m.timer = m.clock.AfterFunc(delay, func() { fn(gen) })
}

func (m *HoldManager) onRefreshTimer(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateHeld {
		m.mu.Unlock()
		return
	}
	token := m.hold.Token
	m.mu.Unlock()

	if _, err := m.Refresh(context.Background(), token); err != nil && apperr.CodeOf(err) != apperr.CodeInvalidState {
		m.log.WithError(err).Warn("Automatic hold refresh failed", "token", token)
	}
}

func (m *HoldManager) onExpiryTimer(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	expired := m.expireIfDueLocked()
	hold := m.hold
	m.mu.Unlock()

	if expired {
		m.notifyExpired(hold)
	}
}

func (m *HoldManager) notifyExpired(hold SeatHold) {
	m.log.LogHoldReleased(context.Background(), hold.Token, "expired")
	if m.onExpired != nil {
		m.onExpired(hold.clone())
	}
}

func checkGrant(g HoldGrant) error {
	if g.Token == "" || g.TTLSeconds <= 0 {
		return apperr.New(apperr.CodeServer, "store returned an unusable hold grant")
	}
	return nil
}

func stateError(op string, state HoldState) error {
	if state == StateExpired {
		return apperr.ErrHoldExpired
	}
	return apperr.New(apperr.CodeInvalidState, "cannot "+op+" a hold in state "+string(state))
}
