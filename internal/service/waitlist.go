package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strings"

	"github.com/DukeRupert/waitlist/internal/domain"
	"github.com/DukeRupert/waitlist/internal/metrics"
	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/google/uuid"
)

const (
	// maxReferralCodeAttempts bounds retries on referral code collisions.
	maxReferralCodeAttempts = 5

	// DefaultPageSize and MaxPageSize bound signup listings.
	DefaultPageSize = 50
	MaxPageSize     = 200

	// DefaultLeaderboardSize is used when no limit is given.
	DefaultLeaderboardSize = 10
)

// WaitlistService handles public signups and owner views of a waitlist.
type WaitlistService interface {
	// Join adds an email to a project's waitlist, crediting the referrer if
	// a valid referral code is given.
	// Returns domain.ECONFLICT if the email already joined.
	// Returns domain.EFORBIDDEN if the owner's plan cannot take more signups.
	Join(ctx context.Context, params domain.JoinParams) (*domain.JoinResult, error)

	// Status returns a signup's public standing by referral code.
	Status(ctx context.Context, referralCode string) (*domain.SignupStatus, error)

	// List returns a page of a project's signups for its owner.
	List(ctx context.Context, params domain.ListSignupsParams) (*domain.ListSignupsResult, error)

	// Leaderboard returns the top signups by points.
	Leaderboard(ctx context.Context, projectID, accountID uuid.UUID, limit int) ([]domain.Signup, error)

	// RecomputeStandings re-derives every signup's standing from its
	// counters and returns how many rows changed.
	RecomputeStandings(ctx context.Context, projectID, accountID uuid.UUID) (int, error)
}

// WaitlistConfig holds settings for the waitlist service.
type WaitlistConfig struct {
	// BaseURL is used to build shareable referral links.
	BaseURL string
}

type waitlistService struct {
	store         repository.Store
	subscriptions SubscriptionService
	config        WaitlistConfig
	logger        *slog.Logger
}

// NewWaitlistService creates a new WaitlistService instance.
func NewWaitlistService(store repository.Store, subscriptions SubscriptionService, config WaitlistConfig, logger *slog.Logger) WaitlistService {
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return &waitlistService{
		store:         store,
		subscriptions: subscriptions,
		config:        config,
		logger:        logger,
	}
}

// Join runs the whole signup in one transaction holding a lock on the
// project row, so positions are dense and the capacity check cannot race.
func (s *waitlistService) Join(ctx context.Context, params domain.JoinParams) (*domain.JoinResult, error) {
	const op = "WaitlistService.Join"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Name = strings.TrimSpace(params.Name)
	params.ReferralCode = domain.NormalizeReferralCode(params.ReferralCode)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}

	projectRow, err := s.store.GetProjectBySlug(ctx, params.ProjectSlug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "project", params.ProjectSlug)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve project")
	}
	project := projectFromRepo(projectRow)

	var (
		created  repository.Signup
		referrer *repository.Signup
	)
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		if err := q.LockProjectForSignup(ctx, project.ID); err != nil {
			return err
		}

		_, err := q.GetSignupByProjectIDAndEmail(ctx, repository.GetSignupByProjectIDAndEmailParams{
			ProjectID: project.ID,
			Email:     params.Email,
		})
		if err == nil {
			return domain.Conflict(op, "This email is already on the waitlist")
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if err := s.subscriptions.CheckSignupCapacity(ctx, q, project.ID, project.AccountID); err != nil {
			return err
		}

		count, err := q.CountSignupsByProjectID(ctx, project.ID)
		if err != nil {
			return err
		}
		position := int(count) + 1

		referredBy, ref, err := s.resolveReferrer(ctx, q, project.ID, params.ReferralCode)
		if err != nil {
			return err
		}
		referrer = ref

		variantID, err := s.resolveVariant(ctx, q, project.ID, params.VariantID)
		if err != nil {
			return err
		}

		code, err := s.newReferralCode(ctx, q)
		if err != nil {
			return err
		}

		standing := domain.CalculateStanding(0, position)
		created, err = q.CreateSignup(ctx, repository.CreateSignupParams{
			ProjectID:    project.ID,
			Email:        params.Email,
			Name:         domain.ToNullString(params.Name),
			ReferralCode: code,
			ReferredBy:   referredBy,
			Position:     int32(position),
			Tier:         string(standing.Tier),
			Points:       int32(standing.Points),
			Badges:       badgeStrings(standing.Badges),
			VariantID:    variantID,
		})
		if err != nil {
			if repository.IsUniqueViolation(err) {
				return domain.Conflict(op, "This email is already on the waitlist")
			}
			return err
		}

		if referrer != nil {
			updated, err := creditReferral(ctx, q, referrer.ID)
			if err != nil {
				return err
			}
			referrer = &updated
		}
		return nil
	})
	if err != nil {
		return nil, txError(err, op, "Failed to join waitlist")
	}

	metrics.SignupRecorded(referrer != nil)
	if referrer != nil {
		metrics.ReferralCredited(referrer.Tier)
		s.logger.Info("referral credited",
			"project_id", project.ID,
			"referrer_id", referrer.ID,
			"referral_count", referrer.ReferralCount,
			"tier", referrer.Tier,
		)
	}
	s.logger.Info("waitlist signup",
		"project_id", project.ID,
		"signup_id", created.ID,
		"position", created.Position,
		"referred", referrer != nil,
	)

	return &domain.JoinResult{
		Signup:      signupFromRepo(created),
		ReferralURL: s.referralURL(project.Slug, created.ReferralCode),
		Referred:    referrer != nil,
	}, nil
}

// resolveReferrer looks up a referral code within the project. Unknown codes
// and codes from other projects are ignored rather than failing the signup.
func (s *waitlistService) resolveReferrer(ctx context.Context, q repository.Querier, projectID uuid.UUID, code string) (uuid.NullUUID, *repository.Signup, error) {
	if code == "" {
		return uuid.NullUUID{}, nil, nil
	}
	if !domain.ValidReferralCode(code) {
		s.logger.Debug("ignoring malformed referral code", "project_id", projectID)
		return uuid.NullUUID{}, nil, nil
	}

	ref, err := q.GetSignupByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("ignoring unknown referral code", "project_id", projectID)
			return uuid.NullUUID{}, nil, nil
		}
		return uuid.NullUUID{}, nil, err
	}
	if ref.ProjectID != projectID {
		return uuid.NullUUID{}, nil, nil
	}
	return uuid.NullUUID{UUID: ref.ID, Valid: true}, &ref, nil
}

// resolveVariant keeps the variant attribution only if it belongs to the project.
func (s *waitlistService) resolveVariant(ctx context.Context, q repository.Querier, projectID uuid.UUID, variantID *uuid.UUID) (uuid.NullUUID, error) {
	if variantID == nil {
		return uuid.NullUUID{}, nil
	}
	variants, err := q.ListVariantsByProjectID(ctx, projectID)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	for _, v := range variants {
		if v.ID == *variantID {
			return uuid.NullUUID{UUID: v.ID, Valid: true}, nil
		}
	}
	return uuid.NullUUID{}, nil
}

// creditReferral increments the referrer's count and overwrites its standing
// from the new counters.
func creditReferral(ctx context.Context, q repository.Querier, referrerID uuid.UUID) (repository.Signup, error) {
	updated, err := q.IncrementReferralCount(ctx, referrerID)
	if err != nil {
		return repository.Signup{}, err
	}

	standing := domain.CalculateStanding(int(updated.ReferralCount), int(updated.Position))
	if err := q.UpdateSignupStanding(ctx, repository.UpdateSignupStandingParams{
		ID:     updated.ID,
		Tier:   string(standing.Tier),
		Points: int32(standing.Points),
		Badges: badgeStrings(standing.Badges),
	}); err != nil {
		return repository.Signup{}, err
	}

	updated.Tier = string(standing.Tier)
	updated.Points = int32(standing.Points)
	updated.Badges = badgeStrings(standing.Badges)
	return updated, nil
}

func (s *waitlistService) newReferralCode(ctx context.Context, q repository.Querier) (string, error) {
	for i := 0; i < maxReferralCodeAttempts; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return "", err
		}
		exists, err := q.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free referral code after %d attempts", maxReferralCodeAttempts)
}

// generateReferralCode draws ReferralCodeLength characters uniformly from
// ReferralCodeAlphabet.
func generateReferralCode() (string, error) {
	alphabet := domain.ReferralCodeAlphabet
	max := big.NewInt(int64(len(alphabet)))

	var b strings.Builder
	b.Grow(domain.ReferralCodeLength)
	for i := 0; i < domain.ReferralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

func (s *waitlistService) referralURL(slug, code string) string {
	return fmt.Sprintf("%s/p/%s?ref=%s", s.config.BaseURL, url.PathEscape(slug), url.QueryEscape(code))
}

// Status returns the public standing for a referral code.
func (s *waitlistService) Status(ctx context.Context, referralCode string) (*domain.SignupStatus, error) {
	const op = "WaitlistService.Status"

	code := domain.NormalizeReferralCode(referralCode)
	if !domain.ValidReferralCode(code) {
		return nil, domain.NotFound(op, "signup", code)
	}

	row, err := s.store.GetSignupByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "signup", code)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve signup")
	}

	project, err := s.store.GetProjectByID(ctx, row.ProjectID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to retrieve project")
	}

	total, err := s.store.CountSignupsByProjectID(ctx, row.ProjectID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to count signups")
	}

	signup := signupFromRepo(row)
	standing := signup.Standing()
	details := make([]domain.Badge, 0, len(standing.Badges))
	for _, id := range standing.Badges {
		if b, ok := domain.LookupBadge(id); ok {
			details = append(details, b)
		}
	}

	return &domain.SignupStatus{
		ProjectName:   project.Name,
		Position:      signup.Position,
		TotalSignups:  int(total),
		ReferralCount: signup.ReferralCount,
		ReferralCode:  signup.ReferralCode,
		Standing:      standing,
		Badges:        details,
	}, nil
}

func (s *waitlistService) ensureOwner(ctx context.Context, op string, projectID, accountID uuid.UUID) error {
	_, err := s.store.GetProjectByIDAndAccountID(ctx, repository.GetProjectByIDAndAccountIDParams{
		ID:        projectID,
		AccountID: accountID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "project", projectID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve project")
	}
	return nil
}

// List returns a page of signups ordered by position.
func (s *waitlistService) List(ctx context.Context, params domain.ListSignupsParams) (*domain.ListSignupsResult, error) {
	const op = "WaitlistService.List"

	if params.Limit <= 0 {
		params.Limit = DefaultPageSize
	}
	if params.Limit > MaxPageSize {
		params.Limit = MaxPageSize
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	if err := s.ensureOwner(ctx, op, params.ProjectID, params.AccountID); err != nil {
		return nil, err
	}

	rows, err := s.store.ListSignupsByProjectID(ctx, repository.ListSignupsByProjectIDParams{
		ProjectID: params.ProjectID,
		Limit:     params.Limit,
		Offset:    params.Offset,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list signups")
	}

	total, err := s.store.CountSignupsByProjectID(ctx, params.ProjectID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to count signups")
	}

	signups := make([]domain.Signup, 0, len(rows))
	for _, r := range rows {
		signups = append(signups, *signupFromRepo(r))
	}

	return &domain.ListSignupsResult{
		Signups:    signups,
		TotalCount: total,
		Limit:      params.Limit,
		Offset:     params.Offset,
	}, nil
}

// Leaderboard returns signups ordered by points, ties broken by position.
func (s *waitlistService) Leaderboard(ctx context.Context, projectID, accountID uuid.UUID, limit int) ([]domain.Signup, error) {
	const op = "WaitlistService.Leaderboard"

	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if err := s.ensureOwner(ctx, op, projectID, accountID); err != nil {
		return nil, err
	}

	rows, err := s.store.ListLeaderboard(ctx, repository.ListLeaderboardParams{
		ProjectID: projectID,
		Limit:     int32(limit),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load leaderboard")
	}

	out := make([]domain.Signup, 0, len(rows))
	for _, r := range rows {
		out = append(out, *signupFromRepo(r))
	}
	return out, nil
}

// RecomputeStandings overwrites every stored standing that has drifted from
// its counters.
func (s *waitlistService) RecomputeStandings(ctx context.Context, projectID, accountID uuid.UUID) (int, error) {
	const op = "WaitlistService.RecomputeStandings"

	if err := s.ensureOwner(ctx, op, projectID, accountID); err != nil {
		return 0, err
	}

	changed := 0
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		rows, err := q.ListAllSignupsByProjectID(ctx, projectID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			st := domain.CalculateStanding(int(r.ReferralCount), int(r.Position))
			if standingMatches(r, st) {
				continue
			}
			if err := q.UpdateSignupStanding(ctx, repository.UpdateSignupStandingParams{
				ID:     r.ID,
				Tier:   string(st.Tier),
				Points: int32(st.Points),
				Badges: badgeStrings(st.Badges),
			}); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, txError(err, op, "Failed to recompute standings")
	}

	s.logger.Info("standings recomputed", "project_id", projectID, "changed", changed)
	return changed, nil
}

func standingMatches(r repository.Signup, st domain.ReferralStanding) bool {
	if r.Tier != string(st.Tier) || int(r.Points) != st.Points || len(r.Badges) != len(st.Badges) {
		return false
	}
	for i, b := range st.Badges {
		if r.Badges[i] != string(b) {
			return false
		}
	}
	return true
}

// txError passes domain errors raised inside a transaction through and
// wraps anything else as internal.
func txError(err error, op, message string) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return err
	}
	return domain.Internal(err, op, message)
}
