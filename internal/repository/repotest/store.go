// Package repotest provides an in-memory repository.Store for tests.
//
// It mirrors the SQL semantics the services rely on: unique constraints
// surface as PostgreSQL 23505 errors, missing rows as sql.ErrNoRows, and
// ExecTx serializes transactions and rolls back on error.
package repotest

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type exposureKey struct {
	variantID uuid.UUID
	sessionID string
}

type state struct {
	accounts  []repository.Account
	sessions  []repository.Session
	projects  []repository.Project
	variants  []repository.Variant
	exposures map[exposureKey]struct{}
	signups   []repository.Signup
	campaigns []repository.Campaign
	delivered []repository.CampaignDelivery
	exports   []repository.Export
	jobs      []repository.Job
}

func (s state) clone() state {
	c := state{
		accounts:  append([]repository.Account(nil), s.accounts...),
		sessions:  append([]repository.Session(nil), s.sessions...),
		projects:  append([]repository.Project(nil), s.projects...),
		variants:  append([]repository.Variant(nil), s.variants...),
		exposures: make(map[exposureKey]struct{}, len(s.exposures)),
		signups:   append([]repository.Signup(nil), s.signups...),
		campaigns: append([]repository.Campaign(nil), s.campaigns...),
		delivered: append([]repository.CampaignDelivery(nil), s.delivered...),
		exports:   append([]repository.Export(nil), s.exports...),
		jobs:      append([]repository.Job(nil), s.jobs...),
	}
	for k := range s.exposures {
		c.exposures[k] = struct{}{}
	}
	return c
}

// Store is an in-memory repository.Store.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state

	failures map[string]error

	// Now is used for timestamps and expiry checks.
	Now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		st:       state{exposures: make(map[exposureKey]struct{})},
		failures: make(map[string]error),
		Now:      time.Now,
	}
}

// Fail makes every call to method return err until cleared with a nil err.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *Store) fail(method string) error {
	return s.failures[method]
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// ExecTx runs fn with the store itself as the Querier. Transactions are
// serialized and state is restored if fn returns an error.
func (s *Store) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	if err := s.fail("ExecTx"); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// =============================================================================
// Accounts
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, arg repository.CreateAccountParams) (repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateAccount"); err != nil {
		return repository.Account{}, err
	}
	for _, a := range s.st.accounts {
		if strings.EqualFold(a.Email, arg.Email) {
			return repository.Account{}, uniqueViolation("accounts_email_key")
		}
	}
	now := s.Now()
	a := repository.Account{
		ID:                 uuid.New(),
		Email:              arg.Email,
		PasswordHash:       arg.PasswordHash,
		Name:               arg.Name,
		PlanTier:           "free",
		SubscriptionStatus: "active",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.st.accounts = append(s.st.accounts, a)
	return a, nil
}

func (s *Store) findAccount(match func(repository.Account) bool) (int, bool) {
	for i, a := range s.st.accounts {
		if match(a) {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) GetAccountByID(ctx context.Context, id uuid.UUID) (repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetAccountByID"); err != nil {
		return repository.Account{}, err
	}
	i, ok := s.findAccount(func(a repository.Account) bool { return a.ID == id })
	if !ok {
		return repository.Account{}, sql.ErrNoRows
	}
	return s.st.accounts[i], nil
}

// LockAccountForProjectCreation only checks the row exists; ExecTx already
// serializes transactions.
func (s *Store) LockAccountForProjectCreation(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("LockAccountForProjectCreation"); err != nil {
		return err
	}
	if _, ok := s.findAccount(func(a repository.Account) bool { return a.ID == id }); !ok {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetAccountByEmail"); err != nil {
		return repository.Account{}, err
	}
	i, ok := s.findAccount(func(a repository.Account) bool { return strings.EqualFold(a.Email, email) })
	if !ok {
		return repository.Account{}, sql.ErrNoRows
	}
	return s.st.accounts[i], nil
}

func (s *Store) GetAccountByStripeCustomerID(ctx context.Context, stripeCustomerID string) (repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetAccountByStripeCustomerID"); err != nil {
		return repository.Account{}, err
	}
	i, ok := s.findAccount(func(a repository.Account) bool {
		return a.StripeCustomerID.Valid && a.StripeCustomerID.String == stripeCustomerID
	})
	if !ok {
		return repository.Account{}, sql.ErrNoRows
	}
	return s.st.accounts[i], nil
}

func (s *Store) UpdateAccountStripeCustomer(ctx context.Context, arg repository.UpdateAccountStripeCustomerParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateAccountStripeCustomer"); err != nil {
		return err
	}
	if i, ok := s.findAccount(func(a repository.Account) bool { return a.ID == arg.ID }); ok {
		s.st.accounts[i].StripeCustomerID = arg.StripeCustomerID
		s.st.accounts[i].UpdatedAt = s.Now()
	}
	return nil
}

func (s *Store) UpdateAccountSubscription(ctx context.Context, arg repository.UpdateAccountSubscriptionParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateAccountSubscription"); err != nil {
		return err
	}
	if i, ok := s.findAccount(func(a repository.Account) bool { return a.ID == arg.ID }); ok {
		a := &s.st.accounts[i]
		a.PlanTier = arg.PlanTier
		a.SubscriptionStatus = arg.SubscriptionStatus
		a.SubscriptionEndDate = arg.SubscriptionEndDate
		if arg.StripeSubscriptionID.Valid {
			a.StripeSubscriptionID = arg.StripeSubscriptionID
		}
		a.UpdatedAt = s.Now()
	}
	return nil
}

func (s *Store) ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ExpireLapsedSubscriptions"); err != nil {
		return 0, err
	}
	var n int64
	for i := range s.st.accounts {
		a := &s.st.accounts[i]
		if a.SubscriptionStatus == "active" && a.SubscriptionEndDate.Valid && a.SubscriptionEndDate.Time.Before(now) {
			a.SubscriptionStatus = "expired"
			a.UpdatedAt = s.Now()
			n++
		}
	}
	return n, nil
}

// =============================================================================
// Sessions
// =============================================================================

func (s *Store) CreateSession(ctx context.Context, arg repository.CreateSessionParams) (repository.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateSession"); err != nil {
		return repository.Session{}, err
	}
	sess := repository.Session{
		ID:        uuid.New(),
		AccountID: arg.AccountID,
		TokenHash: arg.TokenHash,
		ExpiresAt: arg.ExpiresAt,
		CreatedAt: s.Now(),
	}
	s.st.sessions = append(s.st.sessions, sess)
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (repository.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetSessionByTokenHash"); err != nil {
		return repository.Session{}, err
	}
	now := s.Now()
	for _, sess := range s.st.sessions {
		if sess.TokenHash == tokenHash && sess.ExpiresAt.After(now) {
			return sess, nil
		}
	}
	return repository.Session{}, sql.ErrNoRows
}

func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteSession"); err != nil {
		return err
	}
	kept := s.st.sessions[:0]
	for _, sess := range s.st.sessions {
		if sess.TokenHash != tokenHash {
			kept = append(kept, sess)
		}
	}
	s.st.sessions = kept
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteExpiredSessions"); err != nil {
		return 0, err
	}
	now := s.Now()
	var n int64
	kept := s.st.sessions[:0]
	for _, sess := range s.st.sessions {
		if sess.ExpiresAt.After(now) {
			kept = append(kept, sess)
			continue
		}
		n++
	}
	s.st.sessions = kept
	return n, nil
}

// =============================================================================
// Projects
// =============================================================================

func (s *Store) CreateProject(ctx context.Context, arg repository.CreateProjectParams) (repository.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateProject"); err != nil {
		return repository.Project{}, err
	}
	for _, p := range s.st.projects {
		if p.Slug == arg.Slug {
			return repository.Project{}, uniqueViolation("projects_slug_key")
		}
	}
	now := s.Now()
	p := repository.Project{
		ID:           uuid.New(),
		AccountID:    arg.AccountID,
		Name:         arg.Name,
		Slug:         arg.Slug,
		Description:  arg.Description,
		PrimaryColor: arg.PrimaryColor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.st.projects = append(s.st.projects, p)
	return p, nil
}

func (s *Store) findProject(match func(repository.Project) bool) (int, bool) {
	for i, p := range s.st.projects {
		if match(p) {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) GetProjectByID(ctx context.Context, id uuid.UUID) (repository.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetProjectByID"); err != nil {
		return repository.Project{}, err
	}
	i, ok := s.findProject(func(p repository.Project) bool { return p.ID == id })
	if !ok {
		return repository.Project{}, sql.ErrNoRows
	}
	return s.st.projects[i], nil
}

func (s *Store) GetProjectByIDAndAccountID(ctx context.Context, arg repository.GetProjectByIDAndAccountIDParams) (repository.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetProjectByIDAndAccountID"); err != nil {
		return repository.Project{}, err
	}
	i, ok := s.findProject(func(p repository.Project) bool { return p.ID == arg.ID && p.AccountID == arg.AccountID })
	if !ok {
		return repository.Project{}, sql.ErrNoRows
	}
	return s.st.projects[i], nil
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (repository.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetProjectBySlug"); err != nil {
		return repository.Project{}, err
	}
	i, ok := s.findProject(func(p repository.Project) bool { return p.Slug == slug })
	if !ok {
		return repository.Project{}, sql.ErrNoRows
	}
	return s.st.projects[i], nil
}

func (s *Store) ListProjectsByAccountID(ctx context.Context, accountID uuid.UUID) ([]repository.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListProjectsByAccountID"); err != nil {
		return nil, err
	}
	var out []repository.Project
	for i := len(s.st.projects) - 1; i >= 0; i-- {
		if s.st.projects[i].AccountID == accountID {
			out = append(out, s.st.projects[i])
		}
	}
	return out, nil
}

func (s *Store) CountProjectsByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CountProjectsByAccountID"); err != nil {
		return 0, err
	}
	var n int64
	for _, p := range s.st.projects {
		if p.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ProjectSlugExists(ctx context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ProjectSlugExists"); err != nil {
		return false, err
	}
	_, ok := s.findProject(func(p repository.Project) bool { return p.Slug == slug })
	return ok, nil
}

func (s *Store) UpdateProject(ctx context.Context, arg repository.UpdateProjectParams) (repository.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateProject"); err != nil {
		return repository.Project{}, err
	}
	i, ok := s.findProject(func(p repository.Project) bool { return p.ID == arg.ID && p.AccountID == arg.AccountID })
	if !ok {
		return repository.Project{}, sql.ErrNoRows
	}
	p := &s.st.projects[i]
	p.Name = arg.Name
	p.Description = arg.Description
	p.PrimaryColor = arg.PrimaryColor
	p.AbTestingEnabled = arg.AbTestingEnabled
	p.UpdatedAt = s.Now()
	return *p, nil
}

func (s *Store) UpdateProjectLogo(ctx context.Context, arg repository.UpdateProjectLogoParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateProjectLogo"); err != nil {
		return err
	}
	if i, ok := s.findProject(func(p repository.Project) bool { return p.ID == arg.ID }); ok {
		s.st.projects[i].LogoURL = arg.LogoURL
		s.st.projects[i].UpdatedAt = s.Now()
	}
	return nil
}

func (s *Store) DeleteProjectByIDAndAccountID(ctx context.Context, arg repository.DeleteProjectByIDAndAccountIDParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteProjectByIDAndAccountID"); err != nil {
		return 0, err
	}
	i, ok := s.findProject(func(p repository.Project) bool { return p.ID == arg.ID && p.AccountID == arg.AccountID })
	if !ok {
		return 0, nil
	}
	s.st.projects = append(s.st.projects[:i], s.st.projects[i+1:]...)

	// ON DELETE CASCADE
	variants := s.st.variants[:0]
	for _, v := range s.st.variants {
		if v.ProjectID != arg.ID {
			variants = append(variants, v)
			continue
		}
		s.dropVariantLocked(v.ID)
	}
	s.st.variants = variants
	signups := s.st.signups[:0]
	for _, su := range s.st.signups {
		if su.ProjectID != arg.ID {
			signups = append(signups, su)
		}
	}
	s.st.signups = signups
	return 1, nil
}

// =============================================================================
// Variants
// =============================================================================

func (s *Store) CreateVariant(ctx context.Context, arg repository.CreateVariantParams) (repository.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateVariant"); err != nil {
		return repository.Variant{}, err
	}
	for _, v := range s.st.variants {
		if v.ProjectID == arg.ProjectID && v.Position == arg.Position {
			return repository.Variant{}, uniqueViolation("variants_project_id_position_key")
		}
	}
	v := repository.Variant{
		ID:          uuid.New(),
		ProjectID:   arg.ProjectID,
		Name:        arg.Name,
		Traffic:     arg.Traffic,
		Position:    arg.Position,
		Headline:    arg.Headline,
		Description: arg.Description,
		CtaText:     arg.CtaText,
		Overrides:   arg.Overrides,
		CreatedAt:   s.Now(),
	}
	s.st.variants = append(s.st.variants, v)
	return v, nil
}

func (s *Store) ListVariantsByProjectID(ctx context.Context, projectID uuid.UUID) ([]repository.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListVariantsByProjectID"); err != nil {
		return nil, err
	}
	var out []repository.Variant
	for _, v := range s.st.variants {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) UpdateVariant(ctx context.Context, arg repository.UpdateVariantParams) (repository.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateVariant"); err != nil {
		return repository.Variant{}, err
	}
	for i, v := range s.st.variants {
		if v.ID != arg.ID || v.ProjectID != arg.ProjectID {
			continue
		}
		// The position constraint is deferred, so reorders are not checked here.
		v.Name = arg.Name
		v.Traffic = arg.Traffic
		v.Position = arg.Position
		v.Headline = arg.Headline
		v.Description = arg.Description
		v.CtaText = arg.CtaText
		s.st.variants[i] = v
		return v, nil
	}
	return repository.Variant{}, sql.ErrNoRows
}

func (s *Store) DeleteVariantsExcept(ctx context.Context, arg repository.DeleteVariantsExceptParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteVariantsExcept"); err != nil {
		return 0, err
	}
	keep := make(map[uuid.UUID]bool, len(arg.Keep))
	for _, id := range arg.Keep {
		keep[id] = true
	}

	var deleted int64
	kept := s.st.variants[:0]
	for _, v := range s.st.variants {
		if v.ProjectID != arg.ProjectID || keep[v.ID] {
			kept = append(kept, v)
			continue
		}
		s.dropVariantLocked(v.ID)
		deleted++
	}
	s.st.variants = kept
	return deleted, nil
}

// dropVariantLocked applies the foreign keys that reference a deleted variant:
// exposures cascade and signups are set to NULL.
func (s *Store) dropVariantLocked(id uuid.UUID) {
	for k := range s.st.exposures {
		if k.variantID == id {
			delete(s.st.exposures, k)
		}
	}
	for i, su := range s.st.signups {
		if su.VariantID.Valid && su.VariantID.UUID == id {
			s.st.signups[i].VariantID = uuid.NullUUID{}
		}
	}
}

func (s *Store) RecordVariantExposure(ctx context.Context, arg repository.RecordVariantExposureParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("RecordVariantExposure"); err != nil {
		return 0, err
	}
	key := exposureKey{arg.VariantID, arg.SessionID}
	if _, ok := s.st.exposures[key]; ok {
		return 0, nil
	}
	s.st.exposures[key] = struct{}{}
	return 1, nil
}

func (s *Store) GetVariantStats(ctx context.Context, projectID uuid.UUID) ([]repository.GetVariantStatsRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetVariantStats"); err != nil {
		return nil, err
	}
	var out []repository.GetVariantStatsRow
	var positions []int32
	for _, v := range s.st.variants {
		if v.ProjectID != projectID {
			continue
		}
		row := repository.GetVariantStatsRow{ID: v.ID, Name: v.Name, Traffic: v.Traffic}
		for k := range s.st.exposures {
			if k.variantID == v.ID {
				row.Views++
			}
		}
		for _, su := range s.st.signups {
			if su.VariantID.Valid && su.VariantID.UUID == v.ID {
				row.Conversions++
			}
		}
		out = append(out, row)
		positions = append(positions, v.Position)
	}
	sort.Sort(statsByPosition{out, positions})
	return out, nil
}

type statsByPosition struct {
	rows      []repository.GetVariantStatsRow
	positions []int32
}

func (s statsByPosition) Len() int           { return len(s.rows) }
func (s statsByPosition) Less(i, j int) bool { return s.positions[i] < s.positions[j] }
func (s statsByPosition) Swap(i, j int) {
	s.rows[i], s.rows[j] = s.rows[j], s.rows[i]
	s.positions[i], s.positions[j] = s.positions[j], s.positions[i]
}

// =============================================================================
// Signups
// =============================================================================

func (s *Store) LockProjectForSignup(ctx context.Context, projectID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("LockProjectForSignup"); err != nil {
		return err
	}
	if _, ok := s.findProject(func(p repository.Project) bool { return p.ID == projectID }); !ok {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) CreateSignup(ctx context.Context, arg repository.CreateSignupParams) (repository.Signup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateSignup"); err != nil {
		return repository.Signup{}, err
	}
	for _, su := range s.st.signups {
		if su.ProjectID == arg.ProjectID && strings.EqualFold(su.Email, arg.Email) {
			return repository.Signup{}, uniqueViolation("signups_project_id_email_key")
		}
		if su.ProjectID == arg.ProjectID && su.Position == arg.Position {
			return repository.Signup{}, uniqueViolation("signups_project_id_position_key")
		}
		if su.ReferralCode == arg.ReferralCode {
			return repository.Signup{}, uniqueViolation("signups_referral_code_key")
		}
	}
	su := repository.Signup{
		ID:           uuid.New(),
		ProjectID:    arg.ProjectID,
		Email:        arg.Email,
		Name:         arg.Name,
		ReferralCode: arg.ReferralCode,
		ReferredBy:   arg.ReferredBy,
		Position:     arg.Position,
		Tier:         arg.Tier,
		Points:       arg.Points,
		Badges:       append([]string(nil), arg.Badges...),
		VariantID:    arg.VariantID,
		CreatedAt:    s.Now(),
	}
	s.st.signups = append(s.st.signups, su)
	return su, nil
}

func (s *Store) findSignup(match func(repository.Signup) bool) (int, bool) {
	for i, su := range s.st.signups {
		if match(su) {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) GetSignupByReferralCode(ctx context.Context, referralCode string) (repository.Signup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetSignupByReferralCode"); err != nil {
		return repository.Signup{}, err
	}
	i, ok := s.findSignup(func(su repository.Signup) bool { return su.ReferralCode == referralCode })
	if !ok {
		return repository.Signup{}, sql.ErrNoRows
	}
	return s.st.signups[i], nil
}

func (s *Store) GetSignupByProjectIDAndEmail(ctx context.Context, arg repository.GetSignupByProjectIDAndEmailParams) (repository.Signup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetSignupByProjectIDAndEmail"); err != nil {
		return repository.Signup{}, err
	}
	i, ok := s.findSignup(func(su repository.Signup) bool {
		return su.ProjectID == arg.ProjectID && strings.EqualFold(su.Email, arg.Email)
	})
	if !ok {
		return repository.Signup{}, sql.ErrNoRows
	}
	return s.st.signups[i], nil
}

func (s *Store) ReferralCodeExists(ctx context.Context, referralCode string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ReferralCodeExists"); err != nil {
		return false, err
	}
	_, ok := s.findSignup(func(su repository.Signup) bool { return su.ReferralCode == referralCode })
	return ok, nil
}

func (s *Store) CountSignupsByProjectID(ctx context.Context, projectID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CountSignupsByProjectID"); err != nil {
		return 0, err
	}
	var n int64
	for _, su := range s.st.signups {
		if su.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

func (s *Store) IncrementReferralCount(ctx context.Context, id uuid.UUID) (repository.Signup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("IncrementReferralCount"); err != nil {
		return repository.Signup{}, err
	}
	i, ok := s.findSignup(func(su repository.Signup) bool { return su.ID == id })
	if !ok {
		return repository.Signup{}, sql.ErrNoRows
	}
	s.st.signups[i].ReferralCount++
	return s.st.signups[i], nil
}

func (s *Store) UpdateSignupStanding(ctx context.Context, arg repository.UpdateSignupStandingParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateSignupStanding"); err != nil {
		return err
	}
	if i, ok := s.findSignup(func(su repository.Signup) bool { return su.ID == arg.ID }); ok {
		s.st.signups[i].Tier = arg.Tier
		s.st.signups[i].Points = arg.Points
		s.st.signups[i].Badges = append([]string(nil), arg.Badges...)
	}
	return nil
}

func (s *Store) projectSignups(projectID uuid.UUID) []repository.Signup {
	var out []repository.Signup
	for _, su := range s.st.signups {
		if su.ProjectID == projectID {
			out = append(out, su)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func page(rows []repository.Signup, limit, offset int32) []repository.Signup {
	if int(offset) >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if int(limit) < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func (s *Store) ListSignupsByProjectID(ctx context.Context, arg repository.ListSignupsByProjectIDParams) ([]repository.Signup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListSignupsByProjectID"); err != nil {
		return nil, err
	}
	return page(s.projectSignups(arg.ProjectID), arg.Limit, arg.Offset), nil
}

func (s *Store) ListAllSignupsByProjectID(ctx context.Context, projectID uuid.UUID) ([]repository.Signup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListAllSignupsByProjectID"); err != nil {
		return nil, err
	}
	return s.projectSignups(projectID), nil
}

func (s *Store) ListLeaderboard(ctx context.Context, arg repository.ListLeaderboardParams) ([]repository.Signup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListLeaderboard"); err != nil {
		return nil, err
	}
	rows := s.projectSignups(arg.ProjectID)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Points > rows[j].Points })
	return page(rows, arg.Limit, 0), nil
}

// =============================================================================
// Campaigns
// =============================================================================

func (s *Store) CreateCampaign(ctx context.Context, arg repository.CreateCampaignParams) (repository.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateCampaign"); err != nil {
		return repository.Campaign{}, err
	}
	c := repository.Campaign{
		ID:        uuid.New(),
		ProjectID: arg.ProjectID,
		Subject:   arg.Subject,
		Body:      arg.Body,
		Status:    "draft",
		CreatedAt: s.Now(),
	}
	s.st.campaigns = append(s.st.campaigns, c)
	return c, nil
}

func (s *Store) findCampaign(id uuid.UUID) (int, bool) {
	for i, c := range s.st.campaigns {
		if c.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) GetCampaignByID(ctx context.Context, id uuid.UUID) (repository.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetCampaignByID"); err != nil {
		return repository.Campaign{}, err
	}
	i, ok := s.findCampaign(id)
	if !ok {
		return repository.Campaign{}, sql.ErrNoRows
	}
	return s.st.campaigns[i], nil
}

func (s *Store) ListCampaignsByProjectID(ctx context.Context, projectID uuid.UUID) ([]repository.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListCampaignsByProjectID"); err != nil {
		return nil, err
	}
	var out []repository.Campaign
	for i := len(s.st.campaigns) - 1; i >= 0; i-- {
		if s.st.campaigns[i].ProjectID == projectID {
			out = append(out, s.st.campaigns[i])
		}
	}
	return out, nil
}

func (s *Store) UpdateCampaignStatus(ctx context.Context, arg repository.UpdateCampaignStatusParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateCampaignStatus"); err != nil {
		return err
	}
	if i, ok := s.findCampaign(arg.ID); ok {
		s.st.campaigns[i].Status = arg.Status
	}
	return nil
}

func (s *Store) CompleteCampaign(ctx context.Context, arg repository.CompleteCampaignParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CompleteCampaign"); err != nil {
		return err
	}
	if i, ok := s.findCampaign(arg.ID); ok {
		c := &s.st.campaigns[i]
		c.Status = arg.Status
		c.SentCount = arg.SentCount
		c.FailedCount = arg.FailedCount
		c.SentAt = arg.SentAt
	}
	return nil
}

func (s *Store) RecordCampaignDelivery(ctx context.Context, arg repository.RecordCampaignDeliveryParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("RecordCampaignDelivery"); err != nil {
		return err
	}
	for i, d := range s.st.delivered {
		if d.CampaignID == arg.CampaignID && d.SignupID == arg.SignupID {
			s.st.delivered[i].Status = arg.Status
			return nil
		}
	}
	s.st.delivered = append(s.st.delivered, repository.CampaignDelivery{
		CampaignID: arg.CampaignID,
		SignupID:   arg.SignupID,
		Status:     arg.Status,
		CreatedAt:  s.Now(),
	})
	return nil
}

func (s *Store) ListCampaignDeliveries(ctx context.Context, campaignID uuid.UUID) ([]repository.CampaignDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListCampaignDeliveries"); err != nil {
		return nil, err
	}
	var out []repository.CampaignDelivery
	for _, d := range s.st.delivered {
		if d.CampaignID == campaignID {
			out = append(out, d)
		}
	}
	return out, nil
}

// =============================================================================
// Exports
// =============================================================================

func (s *Store) CreateExport(ctx context.Context, projectID uuid.UUID) (repository.Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateExport"); err != nil {
		return repository.Export{}, err
	}
	e := repository.Export{
		ID:        uuid.New(),
		ProjectID: projectID,
		Status:    "pending",
		CreatedAt: s.Now(),
	}
	s.st.exports = append(s.st.exports, e)
	return e, nil
}

func (s *Store) GetExportByID(ctx context.Context, id uuid.UUID) (repository.Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetExportByID"); err != nil {
		return repository.Export{}, err
	}
	for _, e := range s.st.exports {
		if e.ID == id {
			return e, nil
		}
	}
	return repository.Export{}, sql.ErrNoRows
}

func (s *Store) CompleteExport(ctx context.Context, arg repository.CompleteExportParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CompleteExport"); err != nil {
		return err
	}
	for i := range s.st.exports {
		if s.st.exports[i].ID == arg.ID {
			e := &s.st.exports[i]
			e.Status = arg.Status
			e.StorageKey = arg.StorageKey
			e.RowCount = arg.RowCount
			e.CompletedAt = sql.NullTime{Time: s.Now(), Valid: true}
		}
	}
	return nil
}

// =============================================================================
// Jobs
// =============================================================================

func (s *Store) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("EnqueueJob"); err != nil {
		return repository.Job{}, err
	}
	j := repository.Job{
		ID:          uuid.New(),
		JobType:     arg.JobType,
		Payload:     append([]byte(nil), arg.Payload...),
		Status:      "pending",
		Priority:    arg.Priority,
		MaxAttempts: arg.MaxAttempts,
		ScheduledAt: arg.ScheduledAt,
		CreatedAt:   s.Now(),
	}
	s.st.jobs = append(s.st.jobs, j)
	return j, nil
}

func (s *Store) findJob(id uuid.UUID) (int, bool) {
	for i, j := range s.st.jobs {
		if j.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) DequeueJob(ctx context.Context) (repository.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DequeueJob"); err != nil {
		return repository.Job{}, err
	}
	now := s.Now()
	best := -1
	for i, j := range s.st.jobs {
		if j.Status != "pending" || j.ScheduledAt.After(now) {
			continue
		}
		if best < 0 || j.Priority > s.st.jobs[best].Priority ||
			(j.Priority == s.st.jobs[best].Priority && j.ScheduledAt.Before(s.st.jobs[best].ScheduledAt)) {
			best = i
		}
	}
	if best < 0 {
		return repository.Job{}, sql.ErrNoRows
	}
	return s.st.jobs[best], nil
}

func (s *Store) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateJobStarted"); err != nil {
		return err
	}
	if i, ok := s.findJob(id); ok {
		j := &s.st.jobs[i]
		j.Status = "running"
		j.StartedAt = sql.NullTime{Time: s.Now(), Valid: true}
		j.Attempts++
	}
	return nil
}

func (s *Store) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateJobCompleted"); err != nil {
		return err
	}
	if i, ok := s.findJob(id); ok {
		j := &s.st.jobs[i]
		j.Status = "completed"
		j.CompletedAt = sql.NullTime{Time: s.Now(), Valid: true}
		j.ErrorMessage = sql.NullString{}
	}
	return nil
}

func (s *Store) UpdateJobFailed(ctx context.Context, arg repository.UpdateJobFailedParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateJobFailed"); err != nil {
		return err
	}
	i, ok := s.findJob(arg.ID)
	if !ok {
		return nil
	}
	j := &s.st.jobs[i]
	j.ErrorMessage = arg.ErrorMessage
	if arg.Permanent || j.Attempts >= j.MaxAttempts {
		j.Status = "failed"
		j.CompletedAt = sql.NullTime{Time: s.Now(), Valid: true}
		return nil
	}
	backoff := time.Duration(30*math.Pow(2, float64(max(j.Attempts-1, 0)))) * time.Second
	j.Status = "pending"
	j.ScheduledAt = s.Now().Add(backoff)
	j.CompletedAt = sql.NullTime{}
	return nil
}

func (s *Store) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("RecoverStaleJobs"); err != nil {
		return 0, err
	}
	cutoff := s.Now().Add(-time.Duration(thresholdSeconds * float64(time.Second)))
	var n int64
	for i := range s.st.jobs {
		j := &s.st.jobs[i]
		if j.Status == "running" && j.StartedAt.Valid && j.StartedAt.Time.Before(cutoff) {
			j.Status = "pending"
			n++
		}
	}
	return n, nil
}

// =============================================================================
// Assertions
// =============================================================================

// Jobs returns a copy of every job.
func (s *Store) Jobs() []repository.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.Job(nil), s.st.jobs...)
}

// Signups returns a project's signups ordered by position.
func (s *Store) Signups(projectID uuid.UUID) []repository.Signup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectSignups(projectID)
}

// Exposures returns how many distinct sessions saw a variant.
func (s *Store) Exposures(variantID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.st.exposures {
		if k.variantID == variantID {
			n++
		}
	}
	return n
}

// Sessions returns a copy of every session.
func (s *Store) Sessions() []repository.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.Session(nil), s.st.sessions...)
}
