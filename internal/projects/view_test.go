package projects

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewRedactsCommercialsForOps(t *testing.T) {
	now := time.Now().UTC()
	p := &Project{
		ID:                 uuid.New(),
		CustomerName:       "Sunrise Apartments",
		CapacityKW:         10,
		PlanTier:           TierGold,
		Discount:           2000,
		FinalPrice:         38000,
		BillingAmount:      38000,
		OpsID:              "30",
		Status:             StatusTransferredToOps,
		WorkStatus:         WorkStatusWorking,
		ConversionDeadline: now.Add(time.Hour),
	}

	opsView := NewView(p, opsActor, now)
	assert.Nil(t, opsView.Discount)
	assert.Nil(t, opsView.FinalPrice)
	assert.Nil(t, opsView.BillingAmount)
	assert.Equal(t, StageExecution, opsView.ExecutionStage)

	// Absent from the wire payload entirely, not zeroed.
	raw, err := json.Marshal(opsView)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "final_price")
	assert.NotContains(t, string(raw), "billing_amount")
	assert.NotContains(t, string(raw), "discount")

	salesView := NewView(p, salesActor, now)
	require.NotNil(t, salesView.FinalPrice)
	assert.Equal(t, 38000.0, *salesView.FinalPrice)
}

func TestViewDraftCountdown(t *testing.T) {
	now := time.Now().UTC()
	p := &Project{
		ID:                 uuid.New(),
		CustomerName:       "Blue Hills Villa",
		CapacityKW:         5,
		PlanTier:           TierSilver,
		Status:             StatusDraft,
		OpsID:              OpsPending,
		ConversionDeadline: now.Add(30 * time.Minute),
	}

	v := NewView(p, salesActor, now)
	require.NotNil(t, v.DeadlineSeconds)
	assert.InDelta(t, 1800, *v.DeadlineSeconds, 1)

	// Past deadline the displayed countdown floors at zero even before the
	// sweep persists LOCKED.
	v = NewView(p, salesActor, now.Add(time.Hour))
	require.NotNil(t, v.DeadlineSeconds)
	assert.Zero(t, *v.DeadlineSeconds)

	p.Status = StatusLocked
	v = NewView(p, salesActor, now)
	assert.Nil(t, v.DeadlineSeconds)
}
