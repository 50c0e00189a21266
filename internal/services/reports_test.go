package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/songify/reporter/internal/broker"
	"github.com/songify/reporter/internal/database"
	"github.com/songify/reporter/internal/db"
	"github.com/songify/reporter/internal/scrub"
	"github.com/songify/reporter/internal/sentry"
)

type fakeForwarder struct {
	mu       sync.Mutex
	captures []sentry.Capture
	eventID  string
}

func (f *fakeForwarder) Capture(_ context.Context, c sentry.Capture) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, c)
	return f.eventID
}

func newTestReportService(t *testing.T, fwd Forwarder, pub Publisher) *ReportService {
	t.Helper()
	sqlDB, err := database.New(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.RunMigrations(sqlDB); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	scrubber := scrub.New([]string{"password", "secret"})
	return NewReportService(db.New(sqlDB), scrubber, fwd, pub)
}

func paramsJSON(t *testing.T, p *scrub.Params) string {
	t.Helper()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return string(b)
}

func TestReportService_SubmitScrubsAndStores(t *testing.T) {
	ctx := context.Background()
	fwd := &fakeForwarder{eventID: "abc123"}
	svc := newTestReportService(t, fwd, nil)

	report, err := svc.Submit(ctx, SubmitInput{
		Project: "checkout",
		Level:   "WARN",
		Message: "payment failed",
		Params: map[string]any{
			"user":     "alice",
			"password": "hunter2",
			"card":     map[string]any{"number": "4111", "cvv": "123"},
		},
		ScrubFields: []string{"cvv"},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if report.Level != "warning" {
		t.Errorf("Level = %q, want warning", report.Level)
	}
	if report.SentryEventID != "abc123" {
		t.Errorf("SentryEventID = %q, want abc123", report.SentryEventID)
	}

	want := `{"card":{"cvv":"FILTERED","number":"4111"},"password":"FILTERED","user":"alice"}`
	if got := paramsJSON(t, report.Params); got != want {
		t.Errorf("params = %s, want %s", got, want)
	}

	// What was persisted and forwarded must be the scrubbed form
	stored, err := svc.Get(ctx, report.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := paramsJSON(t, stored.Params); got != want {
		t.Errorf("stored params = %s, want %s", got, want)
	}
	if stored.SentryEventID != "abc123" {
		t.Errorf("stored SentryEventID = %q, want abc123", stored.SentryEventID)
	}

	if len(fwd.captures) != 1 {
		t.Fatalf("forwarded %d captures, want 1", len(fwd.captures))
	}
	c := fwd.captures[0]
	if got := paramsJSON(t, c.Params); got != want {
		t.Errorf("forwarded params = %s, want %s", got, want)
	}
	if c.Reference != report.Reference || c.Project != "checkout" {
		t.Errorf("forwarded capture = %+v", c)
	}
	if len(c.ExtraFields) != 1 || c.ExtraFields[0] != "cvv" {
		t.Errorf("forwarded ExtraFields = %v, want [cvv]", c.ExtraFields)
	}
}

func TestReportService_SubmitDefaults(t *testing.T) {
	svc := newTestReportService(t, nil, nil)

	report, err := svc.Submit(context.Background(), SubmitInput{Message: "  boom  "})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if report.Project != DefaultProject {
		t.Errorf("Project = %q, want %q", report.Project, DefaultProject)
	}
	if report.Level != "error" {
		t.Errorf("Level = %q, want error", report.Level)
	}
	if report.Message != "boom" {
		t.Errorf("Message = %q, want trimmed", report.Message)
	}
	if report.Params.Len() != 0 {
		t.Errorf("Params = %s, want empty", paramsJSON(t, report.Params))
	}
	if report.SentryEventID != "" {
		t.Errorf("SentryEventID = %q, want empty without forwarder", report.SentryEventID)
	}
}

func TestReportService_SubmitInvalid(t *testing.T) {
	svc := newTestReportService(t, nil, nil)

	tests := []struct {
		name  string
		input SubmitInput
	}{
		{"missing message", SubmitInput{Message: "   "}},
		{"unknown level", SubmitInput{Message: "boom", Level: "loud"}},
		{"params not a mapping", SubmitInput{Message: "boom", Params: []string{"a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.input)
			if !errors.Is(err, ErrInvalidReport) {
				t.Errorf("Submit() error = %v, want ErrInvalidReport", err)
			}
		})
	}
}

func TestReportService_GetByReference(t *testing.T) {
	ctx := context.Background()
	svc := newTestReportService(t, nil, nil)

	report, err := svc.Submit(ctx, SubmitInput{Message: "boom"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	got, err := svc.GetByReference(ctx, "  "+strings.ToUpper(report.Reference)+" ")
	if err != nil {
		t.Fatalf("GetByReference() error = %v", err)
	}
	if got.ID != report.ID {
		t.Errorf("ID = %q, want %q", got.ID, report.ID)
	}

	if _, err := svc.GetByReference(ctx, "no-such-ref-1"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("GetByReference() error = %v, want ErrReportNotFound", err)
	}
}

func TestReportService_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := newTestReportService(t, nil, nil)

	base := time.UnixMilli(1_700_000_000_000)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, msg := range []string{"first", "second", "third"} {
		if _, err := svc.Submit(ctx, SubmitInput{Project: "checkout", Message: msg}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	if _, err := svc.Submit(ctx, SubmitInput{Project: "billing", Message: "other"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	reports, err := svc.List(ctx, "checkout", 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("List() returned %d reports, want 2", len(reports))
	}
	if reports[0].Message != "third" || reports[1].Message != "second" {
		t.Errorf("List() order = [%s %s], want [third second]", reports[0].Message, reports[1].Message)
	}
}

func TestReportService_DeletePublishes(t *testing.T) {
	ctx := context.Background()
	b := broker.New()
	svc := newTestReportService(t, nil, b)

	ch := b.Subscribe("checkout")
	defer b.Unsubscribe("checkout", ch)

	report, err := svc.Submit(ctx, SubmitInput{Project: "checkout", Message: "boom"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Action != broker.ActionCreated || ev.ReportID != report.ID {
			t.Errorf("event = %+v, want created %s", ev, report.ID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected created event")
	}

	if err := svc.Delete(ctx, report.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Action != broker.ActionDeleted || ev.ReportID != report.ID {
			t.Errorf("event = %+v, want deleted %s", ev, report.ID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected deleted event")
	}

	if _, err := svc.Get(ctx, report.ID); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrReportNotFound", err)
	}
	if err := svc.Delete(ctx, report.ID); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("second Delete() error = %v, want ErrReportNotFound", err)
	}
}

func TestReportService_ScrubDryRun(t *testing.T) {
	svc := newTestReportService(t, nil, nil)

	got, err := svc.Scrub(map[string]any{"secret": "s", "ok": 1}, []string{"ok"})
	if err != nil {
		t.Fatalf("Scrub() error = %v", err)
	}
	if want := `{"ok":"FILTERED","secret":"FILTERED"}`; paramsJSON(t, got) != want {
		t.Errorf("Scrub() = %s, want %s", paramsJSON(t, got), want)
	}

	reports, err := svc.List(context.Background(), DefaultProject, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("dry run stored %d reports, want 0", len(reports))
	}
}
