package handlers

import (
	"net/http"
	"strings"

	"github.com/songify/reporter/internal/config"
	"github.com/songify/reporter/internal/crypto"
	"github.com/songify/reporter/internal/logging"
	"github.com/songify/reporter/internal/models"
	"github.com/songify/reporter/internal/services"
)

// AdminHandler issues dashboard tokens.
type AdminHandler struct {
	cfg         *config.Config
	authService *services.AuthService
}

func NewAdminHandler(cfg *config.Config, authService *services.AuthService) *AdminHandler {
	return &AdminHandler{cfg: cfg, authService: authService}
}

// IssueToken exchanges the admin portal password for an admin token.
func (h *AdminHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req models.AdminTokenRequest
	if _, ok := decodeJSON(w, r, 4<<10, &req); !ok {
		return
	}

	valid, err := crypto.VerifyPassword(req.Password, h.cfg.AdminPortalPassword)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to verify password", err)
		return
	}
	if !valid {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadAdminPassword, "invalid admin portal password")
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	h.writeToken(w, r, "admin", services.RoleAdmin)
}

// IssueViewerToken mints a read-only token for a named dashboard or person.
// Only admins may call it.
func (h *AdminHandler) IssueViewerToken(w http.ResponseWriter, r *http.Request) {
	var req models.ViewerTokenRequest
	if _, ok := decodeJSON(w, r, 4<<10, &req); !ok {
		return
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	h.writeToken(w, r, subject, services.RoleViewer)
}

func (h *AdminHandler) writeToken(w http.ResponseWriter, r *http.Request, subject string, role services.Role) {
	token, expiresAt, err := h.authService.GenerateToken(subject, role)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	writeJSON(w, http.StatusOK, models.TokenResponse{
		Token:     token,
		Role:      string(role),
		ExpiresAt: expiresAt.UTC(),
	})
}
