package membership

import (
	"context"
	"fmt"
	"sync"

	"fanclub/internal/shared/apperr"
)

// Step is a state of the tier change workflow.
type Step string

const (
	StepSelecting        Step = "SELECTING"
	StepDowngradeWarning Step = "DOWNGRADE_WARNING"
	StepPaying           Step = "PAYING"
	StepProcessing       Step = "PROCESSING"
	StepApplied          Step = "APPLIED"
	StepFailed           Step = "FAILED"
)

// Applier performs the backend subscription change. It is awaited before
// the local tier commits.
type Applier interface {
	ApplyTier(ctx context.Context, tier Tier) error
}

// Flow drives one tier change:
// Selecting → (DowngradeWarning →)? Paying → Processing → Applied | Failed.
type Flow struct {
	engine  *Engine
	store   *TierStore
	applier Applier

	mu     sync.Mutex
	step   Step
	from   Tier
	target Tier
	lost   []Benefit
	err    error
}

// NewFlow starts a workflow from the store's current tier
func NewFlow(engine *Engine, store *TierStore, applier Applier) *Flow {
	return &Flow{
		engine:  engine,
		store:   store,
		applier: applier,
		step:    StepSelecting,
		from:    store.GetSnapshot(),
	}
}

// Step returns the current workflow step
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Target returns the selected tier ("" while selecting)
func (f *Flow) Target() Tier {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

// LostBenefits returns what a selected downgrade gives up
func (f *Flow) LostBenefits() []Benefit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Benefit(nil), f.lost...)
}

// Err returns the processing failure of a Failed flow
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Select chooses the target tier. Upgrades go straight to Paying;
// downgrades stop at DowngradeWarning until ConfirmDowngrade.
func (f *Flow) Select(to Tier) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepSelecting {
		return f.stateErr("select")
	}
	if !f.engine.Known(to) {
		return apperr.New(apperr.CodeValidation, fmt.Sprintf("unknown tier %q", to))
	}
	if to == f.from {
		return apperr.New(apperr.CodeValidation, "already on this tier")
	}

	f.target = to
	if f.engine.IsDowngrade(f.from, to) {
		f.lost = f.engine.LostBenefits(f.from, to)
		f.step = StepDowngradeWarning
		return nil
	}
	f.lost = nil
	f.step = StepPaying
	return nil
}

// ConfirmDowngrade accepts the benefit loss shown at DowngradeWarning
func (f *Flow) ConfirmDowngrade() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepDowngradeWarning {
		return f.stateErr("confirm downgrade")
	}
	f.step = StepPaying
	return nil
}

// Cancel returns to Selecting. A flow that is processing cannot be cancelled.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step == StepProcessing {
		return f.stateErr("cancel")
	}
	f.step = StepSelecting
	f.target = ""
	f.lost = nil
	f.err = nil
	f.from = f.store.GetSnapshot()
	return nil
}

// Pay runs the backend change and commits the tier on success. On failure
// the flow moves to Failed and the committed tier is unchanged; Pay may be
// called again from Failed.
func (f *Flow) Pay(ctx context.Context) error {
	f.mu.Lock()
	if f.step != StepPaying && f.step != StepFailed {
		err := f.stateErr("pay")
		f.mu.Unlock()
		return err
	}
	target := f.target
	f.step = StepProcessing
	f.err = nil
	f.mu.Unlock()

	err := f.applier.ApplyTier(ctx, target)
	if err == nil {
		err = f.store.Commit(ctx, target)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.step = StepFailed
		f.err = err
		return fmt.Errorf("apply tier %s: %w", target, err)
	}
	f.step = StepApplied
	return nil
}

func (f *Flow) stateErr(op string) error {
	return apperr.Wrap(apperr.CodeInvalidState, fmt.Sprintf("cannot %s while %s", op, f.step), nil)
}
