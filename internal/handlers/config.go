package handlers

import (
	"net/http"

	"github.com/songify/reporter/internal/config"
	"github.com/songify/reporter/internal/models"
	"github.com/songify/reporter/internal/scrub"
)

type ConfigHandler struct {
	cfg      *config.Config
	scrubber *scrub.Scrubber
}

func NewConfigHandler(cfg *config.Config, scrubber *scrub.Scrubber) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, scrubber: scrubber}
}

// PublicConfig returns non-sensitive configuration for browser clients.
// The scrub field list itself is not exposed.
func (h *ConfigHandler) PublicConfig(w http.ResponseWriter, r *http.Request) {
	resp := models.PublicConfig{
		SentryDSN:   h.cfg.SentryDSNFrontend,
		ScrubMarker: h.scrubber.Marker(),
	}
	if h.cfg.SentryDSNFrontend != "" {
		resp.SentryTunnel = "/api/sentry/tunnel"
	}

	writeJSON(w, http.StatusOK, resp)
}
