package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/waitlist/internal/repository"
	"github.com/DukeRupert/waitlist/internal/repository/repotest"
	"github.com/google/uuid"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "concurrency too low",
			config: Config{
				Concurrency:       0,
				PollInterval:      5 * time.Second,
				JobTimeout:        5 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
			},
			wantErr: true,
		},
		{
			name: "concurrency too high",
			config: Config{
				Concurrency:       101,
				PollInterval:      5 * time.Second,
				JobTimeout:        5 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
			},
			wantErr: true,
		},
		{
			name: "poll interval too short",
			config: Config{
				Concurrency:       2,
				PollInterval:      500 * time.Millisecond,
				JobTimeout:        5 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_ReportsAll(t *testing.T) {
	err := Config{}.Validate()
	if err == nil {
		t.Fatal("expected error for zero config")
	}
	for _, want := range []string{"concurrency", "poll interval", "job timeout", "shutdown timeout", "stale job threshold"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "permanent error",
			err:  NewPermanentError(context.Canceled),
			want: true,
		},
		{
			name: "regular error",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "wrapped permanent error",
			err:  fmt.Errorf("job 7: %w", Permanentf("campaign %s missing", "c1")),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Job Processing Tests
// =============================================================================

type recordingHandler struct {
	jobType  string
	err      error
	payloads [][]byte
}

func (h *recordingHandler) Type() string { return h.jobType }

func (h *recordingHandler) Handle(ctx context.Context, payload []byte) error {
	h.payloads = append(h.payloads, payload)
	return h.err
}

func newTestWorker(t *testing.T) (*Worker, *repotest.Store) {
	t.Helper()
	store := repotest.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	w, err := New(store, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return w, store
}

func enqueueNow(t *testing.T, store *repotest.Store, jobType string, payload interface{}, opts ...EnqueueOption) repository.Job {
	t.Helper()
	opts = append(opts, func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = store.Now().Add(-time.Second)
	})
	job, err := EnqueueJob(context.Background(), store, jobType, payload, opts...)
	if err != nil {
		t.Fatalf("EnqueueJob() error = %v", err)
	}
	return job
}

func jobByID(t *testing.T, store *repotest.Store, id uuid.UUID) repository.Job {
	t.Helper()
	for _, j := range store.Jobs() {
		if j.ID == id {
			return j
		}
	}
	t.Fatalf("job %s not found", id)
	return repository.Job{}
}

func TestWorker_ProcessNextJob_Success(t *testing.T) {
	w, store := newTestWorker(t)
	h := &recordingHandler{jobType: JobTypeSendCampaign}
	w.Register(h)

	campaignID := uuid.New()
	job := enqueueNow(t, store, JobTypeSendCampaign, SendCampaignPayload{CampaignID: campaignID})

	if err := w.processNextJob(context.Background(), w.logger); err != nil {
		t.Fatalf("processNextJob() error = %v", err)
	}

	if len(h.payloads) != 1 {
		t.Fatalf("handler called %d times, want 1", len(h.payloads))
	}
	var got SendCampaignPayload
	if err := json.Unmarshal(h.payloads[0], &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got.CampaignID != campaignID {
		t.Errorf("payload campaign = %s, want %s", got.CampaignID, campaignID)
	}

	stored := jobByID(t, store, job.ID)
	if stored.Status != "completed" {
		t.Errorf("status = %q, want completed", stored.Status)
	}
	if stored.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", stored.Attempts)
	}
}

func TestWorker_ProcessNextJob_NoJobs(t *testing.T) {
	w, _ := newTestWorker(t)

	err := w.processNextJob(context.Background(), w.logger)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("processNextJob() error = %v, want sql.ErrNoRows", err)
	}
}

func TestWorker_ProcessNextJob_Failures(t *testing.T) {
	tests := []struct {
		name        string
		handlerErr  error
		register    bool
		maxAttempts int32
		wantStatus  string
	}{
		{"transient error is retried", errors.New("smtp timeout"), true, 3, "pending"},
		{"permanent error is not retried", NewPermanentError(errors.New("bad payload")), true, 3, "failed"},
		{"last attempt fails the job", errors.New("smtp timeout"), true, 1, "failed"},
		{"unknown job type fails permanently", nil, false, 3, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, store := newTestWorker(t)
			if tt.register {
				w.Register(&recordingHandler{jobType: JobTypeExportSignups, err: tt.handlerErr})
			}
			job := enqueueNow(t, store, JobTypeExportSignups, ExportSignupsPayload{}, WithMaxAttempts(tt.maxAttempts))

			if err := w.processNextJob(context.Background(), w.logger); err == nil {
				t.Fatal("processNextJob() error = nil, want failure")
			}

			stored := jobByID(t, store, job.ID)
			if stored.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", stored.Status, tt.wantStatus)
			}
			if !stored.ErrorMessage.Valid {
				t.Error("error message not recorded")
			}
			if tt.wantStatus == "pending" && !stored.ScheduledAt.After(store.Now()) {
				t.Error("retry was not backed off")
			}
		})
	}
}

func TestWorker_DequeueOrder(t *testing.T) {
	w, store := newTestWorker(t)
	h := &recordingHandler{jobType: JobTypeSendCampaign}
	w.Register(h)

	enqueueNow(t, store, JobTypeSendCampaign, SendCampaignPayload{CampaignID: uuid.New()}, WithPriority(PriorityLow))
	high := enqueueNow(t, store, JobTypeSendCampaign, SendCampaignPayload{CampaignID: uuid.New()}, WithPriority(PriorityHigh))
	delayed, err := EnqueueJob(context.Background(), store, JobTypeSendCampaign, SendCampaignPayload{}, WithPriority(PriorityHigh), WithDelay(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if err := w.processNextJob(context.Background(), w.logger); err != nil {
		t.Fatal(err)
	}
	if jobByID(t, store, high.ID).Status != "completed" {
		t.Error("high priority job was not processed first")
	}
	if jobByID(t, store, delayed.ID).Status != "pending" {
		t.Error("delayed job ran early")
	}
}

func TestWorker_StartStop(t *testing.T) {
	w, _ := newTestWorker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Start(ctx)
	w.Stop()
	w.Stop()
}
