// Package models defines the JSON request and response bodies of the HTTP API.
package models

import (
	"time"

	"github.com/songify/reporter/internal/scrub"
)

// Admin token issuance
type AdminTokenRequest struct {
	Password string `json:"password"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ViewerTokenRequest asks for a read-only dashboard token for subject.
type ViewerTokenRequest struct {
	Subject string `json:"subject"`
}

// Report submission
type SubmitReportRequest struct {
	Project     string        `json:"project"`
	Level       string        `json:"level"`
	Message     string        `json:"message"`
	Params      *scrub.Params `json:"params,omitempty"`
	ScrubFields []string      `json:"scrubFields,omitempty"`
}

type SubmitReportResponse struct {
	ID            string `json:"id"`
	Reference     string `json:"reference"`
	SentryEventID string `json:"sentryEventId,omitempty"`
}

type ReportResponse struct {
	ID            string        `json:"id"`
	Reference     string        `json:"reference"`
	Project       string        `json:"project"`
	Level         string        `json:"level"`
	Message       string        `json:"message"`
	Params        *scrub.Params `json:"params"`
	SentryEventID string        `json:"sentryEventId,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type ListReportsResponse struct {
	Reports []ReportResponse `json:"reports"`
}

// Scrub dry run
type ScrubRequest struct {
	Params      *scrub.Params `json:"params"`
	ScrubFields []string      `json:"scrubFields,omitempty"`
}

type ScrubResponse struct {
	Params *scrub.Params `json:"params"`
}

// PublicConfig is the unauthenticated configuration served to browser clients.
type PublicConfig struct {
	SentryDSN    string `json:"sentryDsn,omitempty"`
	SentryTunnel string `json:"sentryTunnel,omitempty"`
	ScrubMarker  string `json:"scrubMarker"`
}

// Error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
