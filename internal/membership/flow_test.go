package membership

import (
	"context"
	"errors"
	"testing"

	"fanclub/internal/shared/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubApplier struct {
	err     error
	applied []Tier
}

func (a *stubApplier) ApplyTier(ctx context.Context, tier Tier) error {
	a.applied = append(a.applied, tier)
	return a.err
}

func newFlowAt(t *testing.T, current Tier, applier Applier) (*Flow, *TierStore) {
	t.Helper()
	store, err := NewTierStore(context.Background(), MustDefaultEngine(), NewMemoryPersistence(), current)
	require.NoError(t, err)
	return NewFlow(MustDefaultEngine(), store, applier), store
}

func TestUpgradeSkipsWarning(t *testing.T) {
	applier := &stubApplier{}
	flow, store := newFlowAt(t, TierFan, applier)

	require.NoError(t, flow.Select(TierGold))
	assert.Equal(t, StepPaying, flow.Step())
	assert.Empty(t, flow.LostBenefits())

	require.NoError(t, flow.Pay(context.Background()))
	assert.Equal(t, StepApplied, flow.Step())
	assert.Equal(t, TierGold, store.GetSnapshot())
	assert.Equal(t, []Tier{TierGold}, applier.applied)
}

func TestDowngradeRequiresConfirmation(t *testing.T) {
	applier := &stubApplier{}
	flow, store := newFlowAt(t, TierGold, applier)

	require.NoError(t, flow.Select(TierFan))
	assert.Equal(t, StepDowngradeWarning, flow.Step())
	assert.Equal(t, []string{"presale", "store-discount", "magazine", "lounge"}, benefitIDs(flow.LostBenefits()))

	err := flow.Pay(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	assert.Empty(t, applier.applied)

	require.NoError(t, flow.ConfirmDowngrade())
	require.NoError(t, flow.Pay(context.Background()))
	assert.Equal(t, TierFan, store.GetSnapshot())
}

func TestProcessingFailureKeepsCommittedTier(t *testing.T) {
	applier := &stubApplier{err: errors.New("card declined")}
	flow, store := newFlowAt(t, TierSilver, applier)

	var notified bool
	store.Subscribe(func(Change) { notified = true })

	require.NoError(t, flow.Select(TierPlatinum))
	err := flow.Pay(context.Background())

	require.Error(t, err)
	assert.Equal(t, StepFailed, flow.Step())
	assert.EqualError(t, flow.Err(), "card declined")
	assert.Equal(t, TierSilver, store.GetSnapshot())
	assert.False(t, notified)

	applier.err = nil
	require.NoError(t, flow.Pay(context.Background()))
	assert.Equal(t, TierPlatinum, store.GetSnapshot())
	assert.True(t, notified)
}

func TestSelectRejectsCurrentAndUnknownTier(t *testing.T) {
	flow, _ := newFlowAt(t, TierGold, &stubApplier{})

	assert.True(t, errors.Is(flow.Select(TierGold), apperr.ErrValidation))
	assert.True(t, errors.Is(flow.Select("bronze"), apperr.ErrValidation))
	assert.Equal(t, StepSelecting, flow.Step())
}

func TestCancelReturnsToSelecting(t *testing.T) {
	flow, _ := newFlowAt(t, TierGold, &stubApplier{})

	require.NoError(t, flow.Select(TierSilver))
	require.NoError(t, flow.Cancel())

	assert.Equal(t, StepSelecting, flow.Step())
	assert.Equal(t, Tier(""), flow.Target())
	require.NoError(t, flow.Select(TierPlatinum))
	assert.Equal(t, StepPaying, flow.Step())
}
