package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) projects(t *testing.T) ProjectService {
	return NewProjectService(f.store, f.subscriptions(), f.localStorage(t), NewLogoProcessor(), newTestLogger())
}

func TestProjectService_CreateSlugsAndGate(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanFree, domain.SubscriptionActive, nil)
	svc := f.projects(t)
	ctx := context.Background()

	p1, err := svc.Create(ctx, owner, domain.CreateProjectParams{Name: "My Launch!"})
	require.NoError(t, err)
	assert.Equal(t, "my-launch", p1.Slug)
	assert.Equal(t, domain.DefaultPrimaryColor, p1.PrimaryColor)

	p2, err := svc.Create(ctx, owner, domain.CreateProjectParams{Name: "my launch", PrimaryColor: "#112233"})
	require.NoError(t, err)
	assert.Equal(t, "my-launch-2", p2.Slug)

	_, err = svc.Create(ctx, owner, domain.CreateProjectParams{Name: "Third"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, owner, domain.CreateProjectParams{Name: "Fourth"})
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
}

func TestProjectService_CreateConcurrentAtLimit(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanFree, domain.SubscriptionActive, nil)
	f.project(t, owner, "first")
	f.project(t, owner, "second")
	svc := f.projects(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), owner, domain.CreateProjectParams{Name: fmt.Sprintf("Racer %d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
	}
	assert.Equal(t, 1, created)

	count, err := f.store.CountProjectsByAccountID(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(domain.GetPlanLimits(domain.PlanFree).MaxProjects), count)
}

func TestProjectService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	svc := f.projects(t)

	_, err := svc.Create(context.Background(), owner, domain.CreateProjectParams{Name: "", PrimaryColor: "red"})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "primary_color")

	_, err = svc.Create(context.Background(), owner, domain.CreateProjectParams{Name: strings.Repeat("x", domain.MaxProjectNameLength+1)})
	require.True(t, errors.As(err, &verr))
}

func TestProjectService_OwnershipIsEnforced(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	stranger := f.account(t, "stranger@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	svc := f.projects(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, domain.CreateProjectParams{Name: "Mine"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, p.ID, stranger.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	err = svc.Delete(ctx, p.ID, stranger.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	require.NoError(t, svc.Delete(ctx, p.ID, owner.ID))
	_, err = svc.GetBySlug(ctx, p.Slug)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestProjectService_Update(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	svc := f.projects(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, domain.CreateProjectParams{Name: "Launch"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, domain.UpdateProjectParams{
		ID:               p.ID,
		AccountID:        owner.ID,
		Name:             "Launch v2",
		Description:      "Soon",
		PrimaryColor:     "#000000",
		ABTestingEnabled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", updated.Name)
	assert.True(t, updated.ABTestingEnabled)
	assert.Equal(t, p.Slug, updated.Slug, "slug is stable across renames")
}

func TestProjectService_SetVariants(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	svc := f.projects(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, domain.CreateProjectParams{Name: "Launch"})
	require.NoError(t, err)

	res, err := svc.SetVariants(ctx, p.ID, owner.ID, []domain.VariantInput{
		{Name: "control", Traffic: 50},
		{Name: "bold", Traffic: 50, Headline: "Be first"},
	})
	require.NoError(t, err)
	assert.Equal(t, 100, res.TrafficTotal)
	assert.Empty(t, res.Warning)
	require.Len(t, res.Variants, 2)
	assert.Equal(t, 1, res.Variants[1].Position)

	res, err = svc.SetVariants(ctx, p.ID, owner.ID, []domain.VariantInput{
		{Name: "only", Traffic: 60},
	})
	require.NoError(t, err)
	assert.Equal(t, 60, res.TrafficTotal)
	assert.Contains(t, res.Warning, "60%")

	variants, err := svc.Variants(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "only", variants[0].Name)

	_, err = svc.SetVariants(ctx, p.ID, owner.ID, []domain.VariantInput{{Name: "x", Traffic: 101}})
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestProjectService_SetVariantsRollsBack(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	svc := f.projects(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, domain.CreateProjectParams{Name: "Launch"})
	require.NoError(t, err)
	_, err = svc.SetVariants(ctx, p.ID, owner.ID, []domain.VariantInput{{Name: "keep", Traffic: 100}})
	require.NoError(t, err)

	f.store.Fail("CreateVariant", errors.New("boom"))
	_, err = svc.SetVariants(ctx, p.ID, owner.ID, []domain.VariantInput{{Name: "new", Traffic: 100}})
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))

	f.store.Fail("CreateVariant", nil)
	variants, err := svc.Variants(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "keep", variants[0].Name)
}

func TestProjectService_SetVariantsKeepsResultsOfEditedVariants(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	p := f.project(t, owner, "launch")
	f.enableABTesting(t, p)
	svc := f.projects(t)
	experiments := NewExperimentService(f.store, newTestLogger())
	ctx := context.Background()

	res, err := svc.SetVariants(ctx, p.ID, owner.ID, []domain.VariantInput{
		{Name: "control", Traffic: 50},
		{Name: "bold", Traffic: 50},
	})
	require.NoError(t, err)
	control, bold := res.Variants[0], res.Variants[1]

	for i := 0; i < 20; i++ {
		_, err := experiments.Assign(ctx, "launch", fmt.Sprintf("visitor-%d", i))
		require.NoError(t, err)
	}
	_, err = f.waitlist().Join(ctx, domain.JoinParams{ProjectSlug: "launch", Email: "a@example.com", VariantID: &control.ID})
	require.NoError(t, err)
	_, err = f.waitlist().Join(ctx, domain.JoinParams{ProjectSlug: "launch", Email: "b@example.com", VariantID: &bold.ID})
	require.NoError(t, err)

	before, err := experiments.Stats(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, before, 2)
	require.Equal(t, int64(20), before[0].Views+before[1].Views)

	// Reweight, rename and swap order: ids and results are kept.
	res, err = svc.SetVariants(ctx, p.ID, owner.ID, []domain.VariantInput{
		{ID: &bold.ID, Name: "bold v2", Traffic: 70},
		{ID: &control.ID, Name: "control", Traffic: 30},
	})
	require.NoError(t, err)
	require.Len(t, res.Variants, 2)
	assert.Equal(t, bold.ID, res.Variants[0].ID)
	assert.Equal(t, 0, res.Variants[0].Position)
	assert.Equal(t, "bold v2", res.Variants[0].Name)
	assert.Equal(t, control.ID, res.Variants[1].ID)
	assert.Equal(t, 1, res.Variants[1].Position)

	after, err := experiments.Stats(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, before[1].Views, after[0].Views)
	assert.Equal(t, before[0].Views, after[1].Views)
	assert.Equal(t, int64(1), after[0].Conversions)
	assert.Equal(t, int64(1), after[1].Conversions)

	// Dropping a variant removes its exposures and detaches its signups.
	res, err = svc.SetVariants(ctx, p.ID, owner.ID, []domain.VariantInput{
		{ID: &bold.ID, Name: "bold v2", Traffic: 50},
		{Name: "fresh", Traffic: 50},
	})
	require.NoError(t, err)
	require.Len(t, res.Variants, 2)
	assert.Equal(t, bold.ID, res.Variants[0].ID)
	assert.NotEqual(t, control.ID, res.Variants[1].ID)

	assert.Zero(t, f.store.Exposures(control.ID))
	assert.Equal(t, int(before[1].Views), f.store.Exposures(bold.ID))
	for _, su := range f.store.Signups(p.ID) {
		if su.Email == "a@example.com" {
			assert.False(t, su.VariantID.Valid)
		} else {
			assert.Equal(t, bold.ID, su.VariantID.UUID)
		}
	}
}

func TestProjectService_SetVariantsRejectsForeignIDs(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	p := f.project(t, owner, "launch")
	other := f.project(t, owner, "other")
	foreign := f.variant(t, other, "theirs", 100, 0)
	svc := f.projects(t)
	ctx := context.Background()

	res, err := svc.SetVariants(ctx, p.ID, owner.ID, []domain.VariantInput{{Name: "keep", Traffic: 100}})
	require.NoError(t, err)
	keep := res.Variants[0]

	tests := []struct {
		name   string
		inputs []domain.VariantInput
		field  string
	}{
		{
			name:   "variant of another project",
			inputs: []domain.VariantInput{{ID: &foreign.ID, Name: "stolen", Traffic: 100}},
			field:  "variants[0].id",
		},
		{
			name: "same variant twice",
			inputs: []domain.VariantInput{
				{ID: &keep.ID, Name: "a", Traffic: 50},
				{ID: &keep.ID, Name: "b", Traffic: 50},
			},
			field: "variants[1].id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetVariants(ctx, p.ID, owner.ID, tt.inputs)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)

			variants, err := svc.Variants(ctx, p.ID, owner.ID)
			require.NoError(t, err)
			require.Len(t, variants, 1)
			assert.Equal(t, keep.ID, variants[0].ID)
		})
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: 200, A: 128})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProjectService_UploadLogo(t *testing.T) {
	f := newFixture(t)
	owner := f.account(t, "owner@example.com", domain.PlanPro, domain.SubscriptionActive, nil)
	svc := f.projects(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, domain.CreateProjectParams{Name: "Launch"})
	require.NoError(t, err)

	url, err := svc.UploadLogo(ctx, p.ID, owner.ID, bytes.NewReader(pngBytes(t, 600, 300)), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/files/projects/"+p.ID.String()+"/logo/"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	got, err := svc.Get(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, url, got.LogoURL)

	_, err = svc.UploadLogo(ctx, p.ID, owner.ID, strings.NewReader("%PDF"), "application/pdf")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = svc.UploadLogo(ctx, p.ID, owner.ID, strings.NewReader("not an image"), "image/png")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = svc.UploadLogo(ctx, p.ID, uuid.New(), bytes.NewReader(pngBytes(t, 10, 10)), "image/png")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestLogoProcessor_FitsAndFlattens(t *testing.T) {
	out, err := NewLogoProcessor().Normalize(bytes.NewReader(pngBytes(t, 600, 300)), LogoMaxSize)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, LogoMaxSize, img.Bounds().Dx())
	assert.Equal(t, LogoMaxSize/2, img.Bounds().Dy())

	_, err = NewLogoProcessor().Normalize(io.LimitReader(strings.NewReader("garbage"), 7), LogoMaxSize)
	assert.Error(t, err)
}
