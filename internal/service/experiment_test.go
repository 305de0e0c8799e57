package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExperimentService_AssignWithoutABTesting(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	p := f.project(t, owner, "launch")
	v := f.variant(t, p, "control", 100, 0)
	svc := NewExperimentService(f.store, newTestLogger())

	page, err := svc.Assign(context.Background(), "launch", "session-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, page.Project.ID)
	assert.Nil(t, page.Variant)
	assert.Zero(t, f.store.Exposures(v.ID))
}

func TestExperimentService_AssignIsSticky(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	p := f.project(t, owner, "launch")
	f.enableABTesting(t, p)
	a := f.variant(t, p, "a", 50, 0)
	b := f.variant(t, p, "b", 50, 1)
	svc := NewExperimentService(f.store, newTestLogger())

	counts := map[uuid.UUID]int{}
	for i := 0; i < 200; i++ {
		session := fmt.Sprintf("session-%d", i)

		first, err := svc.Assign(context.Background(), "launch", session)
		require.NoError(t, err)
		require.NotNil(t, first.Variant)

		again, err := svc.Assign(context.Background(), "launch", session)
		require.NoError(t, err)
		assert.Equal(t, first.Variant.ID, again.Variant.ID)

		want := a.ID
		if domain.SessionBucket(session) >= 50 {
			want = b.ID
		}
		assert.Equal(t, want, first.Variant.ID)
		counts[first.Variant.ID]++
	}

	// Repeat visits are one exposure each.
	assert.Equal(t, counts[a.ID], f.store.Exposures(a.ID))
	assert.Equal(t, counts[b.ID], f.store.Exposures(b.ID))
}

func TestExperimentService_AssignCountsFirstExposureOnly(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	p := f.project(t, owner, "launch")
	f.enableABTesting(t, p)
	f.variant(t, p, "only", 100, 0)
	svc := NewExperimentService(f.store, newTestLogger())
	assigned := metrics.VariantAssignments.WithLabelValues("false")

	start := testutil.ToFloat64(assigned)
	for i := 0; i < 3; i++ {
		_, err := svc.Assign(context.Background(), "launch", "returning-visitor")
		require.NoError(t, err)
	}
	assert.Equal(t, start+1, testutil.ToFloat64(assigned))

	_, err := svc.Assign(context.Background(), "launch", "new-visitor")
	require.NoError(t, err)
	assert.Equal(t, start+2, testutil.ToFloat64(assigned))

	f.store.Fail("RecordVariantExposure", errors.New("disk full"))
	_, err = svc.Assign(context.Background(), "launch", "third-visitor")
	require.NoError(t, err)
	assert.Equal(t, start+2, testutil.ToFloat64(assigned))
}

func TestExperimentService_AssignFallsBackToFirstVariant(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	p := f.project(t, owner, "launch")
	f.enableABTesting(t, p)
	first := f.variant(t, p, "first", 0, 0)
	f.variant(t, p, "second", 0, 1)
	svc := NewExperimentService(f.store, newTestLogger())

	page, err := svc.Assign(context.Background(), "launch", "anyone")
	require.NoError(t, err)
	require.NotNil(t, page.Variant)
	assert.Equal(t, first.ID, page.Variant.ID)
}

func TestExperimentService_AssignWithNoVariants(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	p := f.project(t, owner, "launch")
	f.enableABTesting(t, p)
	svc := NewExperimentService(f.store, newTestLogger())

	page, err := svc.Assign(context.Background(), "launch", "anyone")
	require.NoError(t, err)
	assert.Nil(t, page.Variant)
}

func TestExperimentService_AssignSurvivesExposureFailure(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	p := f.project(t, owner, "launch")
	f.enableABTesting(t, p)
	f.variant(t, p, "only", 100, 0)
	f.store.Fail("RecordVariantExposure", errors.New("disk full"))
	svc := NewExperimentService(f.store, newTestLogger())

	page, err := svc.Assign(context.Background(), "launch", "anyone")
	require.NoError(t, err)
	assert.NotNil(t, page.Variant)
}

func TestExperimentService_AssignValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewExperimentService(f.store, newTestLogger())

	_, err := svc.Assign(context.Background(), "launch", "   ")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = svc.Assign(context.Background(), "missing", "session")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestExperimentService_Stats(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	p := f.project(t, owner, "launch")
	f.enableABTesting(t, p)
	only := f.variant(t, p, "only", 100, 0)
	experiments := NewExperimentService(f.store, newTestLogger())
	waitlist := f.waitlist()

	for i := 0; i < 4; i++ {
		_, err := experiments.Assign(context.Background(), "launch", fmt.Sprintf("s%d", i))
		require.NoError(t, err)
	}
	_, err := waitlist.Join(context.Background(), domain.JoinParams{ProjectSlug: "launch", Email: "a@example.com", VariantID: &only.ID})
	require.NoError(t, err)

	stats, err := experiments.Stats(context.Background(), p.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(4), stats[0].Views)
	assert.Equal(t, int64(1), stats[0].Conversions)
	assert.InDelta(t, 0.25, stats[0].ConversionRate(), 1e-9)

	_, err = experiments.Stats(context.Background(), p.ID, uuid.New())
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
