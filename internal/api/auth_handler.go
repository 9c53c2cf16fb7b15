package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/atelierhq/atelier-api/internal/api/shared"
	"github.com/atelierhq/atelier-api/internal/config"
	"github.com/atelierhq/atelier-api/internal/service/auth"
)

// AuthHandler exchanges the configured API key for an access token.
type AuthHandler struct {
	jwtService auth.JWTService
	verifier   auth.APIKeyVerifier
	apiKeyHash string
	validator  *validator.Validate
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(
	jwtService auth.JWTService,
	verifier auth.APIKeyVerifier,
	cfg config.AuthConfig,
	logger *slog.Logger,
) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		jwtService: jwtService,
		verifier:   verifier,
		apiKeyHash: cfg.APIKeyHash,
		validator:  validator.New(),
		logger:     logger.With(slog.String("component", "auth_handler")),
	}
}

// Token handles POST /api/auth/token: it verifies the presented API key
// against the configured hash and issues a bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	if err := h.verifier.Verify(h.apiKeyHash, req.APIKey); err != nil {
		// Auth failures are logged but the response carries no detail
		// about why the key was rejected.
		h.logger.Warn("api key verification failed",
			slog.String("trace_id", shared.GetTraceID(r.Context())),
			slog.String("remote_addr", r.RemoteAddr))
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	token, err := h.jwtService.GenerateToken(r.Context(), "atelier-client")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TokenResponse{Token: token})
}
