package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/songify/reporter/internal/broker"
	"github.com/songify/reporter/internal/db"
	"github.com/songify/reporter/internal/scrub"
	"github.com/songify/reporter/internal/sentry"
)

var (
	ErrReportNotFound = errors.New("report not found")
	ErrInvalidReport  = errors.New("invalid report")
)

// DefaultProject is used when a submission does not name one.
const DefaultProject = "default"

var validLevels = map[string]string{
	"debug":    "debug",
	"info":     "info",
	"warn":     "warning",
	"warning":  "warning",
	"error":    "error",
	"critical": "fatal",
	"fatal":    "fatal",
}

// ReportStore is the persistence surface ReportService needs.
type ReportStore interface {
	ReferenceChecker
	CreateReport(ctx context.Context, arg db.CreateReportParams) (db.Report, error)
	GetReportByID(ctx context.Context, id string) (db.Report, error)
	GetReportByReference(ctx context.Context, reference string) (db.Report, error)
	ListReportsByProject(ctx context.Context, arg db.ListReportsByProjectParams) ([]db.Report, error)
	SetReportSentryEventID(ctx context.Context, arg db.SetReportSentryEventIDParams) error
	DeleteReport(ctx context.Context, id string) (sql.Result, error)
}

// Forwarder sends an already scrubbed report upstream and returns its event ID.
type Forwarder interface {
	Capture(ctx context.Context, c sentry.Capture) string
}

// Publisher notifies listeners that a project's reports changed.
type Publisher interface {
	Publish(project string, ev broker.Event)
}

// Report is a stored error report. Params are always the scrubbed form.
type Report struct {
	ID            string
	Reference     string
	Project       string
	Level         string
	Message       string
	Params        *scrub.Params
	SentryEventID string
	CreatedAt     time.Time
}

// SubmitInput is an incoming report before scrubbing.
type SubmitInput struct {
	Project     string
	Level       string
	Message     string
	Params      any
	ScrubFields []string
}

// ReportService scrubs, stores and forwards error reports.
type ReportService struct {
	store     ReportStore
	scrubber  *scrub.Scrubber
	refs      *ReferenceService
	forwarder Forwarder
	publisher Publisher
	now       func() time.Time
}

// NewReportService wires a ReportService. forwarder and publisher may be nil.
func NewReportService(store ReportStore, scrubber *scrub.Scrubber, forwarder Forwarder, publisher Publisher) *ReportService {
	return &ReportService{
		store:     store,
		scrubber:  scrubber,
		refs:      NewReferenceService(store),
		forwarder: forwarder,
		publisher: publisher,
		now:       time.Now,
	}
}

// Scrub runs the configured scrubber over params without storing anything.
func (s *ReportService) Scrub(params any, extraFields []string) (*scrub.Params, error) {
	scrubbed, err := s.scrubber.Call(params, extraFields...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return scrubbed, nil
}

// Submit scrubs in.Params, persists the report under a fresh reference and
// forwards it to Sentry. Forwarding failures never fail the submission.
func (s *ReportService) Submit(ctx context.Context, in SubmitInput) (*Report, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidReport)
	}

	level := "error"
	if in.Level != "" {
		l, ok := validLevels[strings.ToLower(in.Level)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown level %q", ErrInvalidReport, in.Level)
		}
		level = l
	}

	project := strings.TrimSpace(in.Project)
	if project == "" {
		project = DefaultProject
	}

	scrubbed, err := s.Scrub(in.Params, in.ScrubFields)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(scrubbed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}

	ref, err := s.refs.Generate(ctx)
	if err != nil {
		return nil, err
	}

	row, err := s.store.CreateReport(ctx, db.CreateReportParams{
		ID:        uuid.NewString(),
		Reference: ref,
		Project:   project,
		Level:     level,
		Message:   message,
		Params:    string(encoded),
		CreatedAt: s.now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	report := &Report{
		ID:        row.ID,
		Reference: row.Reference,
		Project:   row.Project,
		Level:     row.Level,
		Message:   row.Message,
		Params:    scrubbed,
		CreatedAt: time.UnixMilli(row.CreatedAt),
	}

	if s.forwarder != nil {
		eventID := s.forwarder.Capture(ctx, sentry.Capture{
			Message:     report.Message,
			Level:       report.Level,
			Project:     report.Project,
			Reference:   report.Reference,
			Params:      scrubbed,
			ExtraFields: in.ScrubFields,
		})
		if eventID != "" {
			report.SentryEventID = eventID
			err := s.store.SetReportSentryEventID(ctx, db.SetReportSentryEventIDParams{
				SentryEventID: sql.NullString{String: eventID, Valid: true},
				ID:            report.ID,
			})
			if err != nil {
				slog.WarnContext(ctx, "failed to record sentry event id",
					"report_id", report.ID,
					"error", err,
				)
			}
		}
	}

	s.publish(report.Project, broker.ActionCreated, report.ID)
	return report, nil
}

// Get returns the report with the given ID.
func (s *ReportService) Get(ctx context.Context, id string) (*Report, error) {
	row, err := s.store.GetReportByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return fromRow(row)
}

// GetByReference returns the report with the given human-readable reference.
func (s *ReportService) GetByReference(ctx context.Context, reference string) (*Report, error) {
	row, err := s.store.GetReportByReference(ctx, strings.ToLower(strings.TrimSpace(reference)))
	if err != nil {
		return nil, notFound(err)
	}
	return fromRow(row)
}

// List returns up to limit reports for project, newest first.
func (s *ReportService) List(ctx context.Context, project string, limit int) ([]*Report, error) {
	rows, err := s.store.ListReportsByProject(ctx, db.ListReportsByProjectParams{
		Project: project,
		Limit:   int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]*Report, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Delete removes a report and notifies the project's listeners.
func (s *ReportService) Delete(ctx context.Context, id string) error {
	row, err := s.store.GetReportByID(ctx, id)
	if err != nil {
		return notFound(err)
	}

	result, err := s.store.DeleteReport(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrReportNotFound
	}

	s.publish(row.Project, broker.ActionDeleted, id)
	return nil
}

func (s *ReportService) publish(project string, action broker.Action, id string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(project, broker.Event{Action: action, ReportID: id})
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrReportNotFound
	}
	return fmt.Errorf("failed to load report: %w", err)
}

func fromRow(row db.Report) (*Report, error) {
	params, err := scrub.ParseJSON([]byte(row.Params))
	if err != nil {
		return nil, fmt.Errorf("stored params for report %s are corrupt: %w", row.ID, err)
	}
	return &Report{
		ID:            row.ID,
		Reference:     row.Reference,
		Project:       row.Project,
		Level:         row.Level,
		Message:       row.Message,
		Params:        params,
		SentryEventID: row.SentryEventID.String,
		CreatedAt:     time.UnixMilli(row.CreatedAt),
	}, nil
}
