package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/songify/reporter/internal/config"
	"github.com/songify/reporter/internal/logging"
	"github.com/songify/reporter/internal/metrics"
	"github.com/songify/reporter/internal/sentry"
)

// SentryTunnelHandler proxies Sentry envelopes from the browser through the
// backend, avoiding CORS issues with Sentry's ingest endpoint. Envelopes are
// scrubbed before they leave the service.
type SentryTunnelHandler struct {
	cfg      *config.Config
	scrubber *sentry.EventScrubber
	metrics  *metrics.Metrics
	client   *http.Client
}

// NewSentryTunnelHandler creates a SentryTunnelHandler with the given configuration.
// m may be nil.
func NewSentryTunnelHandler(cfg *config.Config, scrubber *sentry.EventScrubber, m *metrics.Metrics) *SentryTunnelHandler {
	return &SentryTunnelHandler{
		cfg:      cfg,
		scrubber: scrubber,
		metrics:  m,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Tunnel reads a Sentry envelope from the request body, validates the DSN
// matches the configured frontend DSN, scrubs it and forwards it to Sentry's
// ingest API.
func (h *SentryTunnelHandler) Tunnel(w http.ResponseWriter, r *http.Request) {
	if h.cfg.SentryDSNFrontend == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxReportBytes))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// The first line of a Sentry envelope is a JSON header containing the DSN
	scanner := bufio.NewScanner(bytes.NewReader(body))
	if !scanner.Scan() {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var header struct {
		DSN string `json:"dsn"`
	}
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if header.DSN != h.cfg.SentryDSNFrontend {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventForeignDSN, "sentry envelope for unknown dsn")
		h.metrics.Envelope(metrics.EnvelopeRejected)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	dsnURL, err := url.Parse(header.DSN)
	if err != nil || dsnURL.Host == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	scrubbed, err := h.scrubber.ScrubEnvelope(body)
	if err != nil {
		slog.WarnContext(r.Context(), "dropping unscrubbable sentry envelope", "error", err)
		h.metrics.Envelope(metrics.EnvelopeMalformed)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// DSN format: <scheme>://<key>@<host>/<project_id>
	projectID := strings.TrimPrefix(dsnURL.Path, "/")
	ingestURL := dsnURL.Scheme + "://" + dsnURL.Host + "/api/" + projectID + "/envelope/"

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, ingestURL, bytes.NewReader(scrubbed))
	if err != nil {
		slog.Error("failed to create sentry tunnel request", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	req.Header.Set("Content-Type", "application/x-sentry-envelope")

	resp, err := h.client.Do(req)
	if err != nil {
		slog.Error("failed to forward sentry envelope", slog.String("error", err.Error()))
		h.metrics.Envelope(metrics.EnvelopeFailed)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	h.metrics.Envelope(metrics.EnvelopeForwarded)

	w.WriteHeader(resp.StatusCode)
}
