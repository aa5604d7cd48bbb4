package devserver

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/netplus/netprep/internal/progress"
	"github.com/netplus/netprep/internal/version"
)

const (
	codeUnauthorized       = "UNAUTHORIZED"
	codeTokenExpired       = "TOKEN_EXPIRED"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeInvalidRefresh     = "INVALID_REFRESH_TOKEN"
	codeValidationError    = "VALIDATION_ERROR"
	codeInvalidRequest     = "INVALID_REQUEST"
	codeRateLimited        = "RATE_LIMITED"
	codeInternalError      = "INTERNAL_ERROR"
)

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	Email string `json:"email"`
}

type loginResponse struct {
	User         loginUser `json:"user"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresIn    int       `json:"expiresIn"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type progressEnvelope struct {
	Progress *progress.Record `json:"progress"`
}

type progressMapEnvelope struct {
	Progress map[string]progress.Record `json:"progress"`
}

type handlers struct {
	cfg      *Config
	tokens   *tokenIssuer
	progress *progressStore
	logger   *slog.Logger
}

func (h *handlers) health(ctx *gin.Context) {
	if ctx.Request.Method == http.MethodHead {
		ctx.Status(http.StatusOK)
		return
	}
	ctx.PureJSON(http.StatusOK, gin.H{"status": "ok", "version": version.Short()})
}

func (h *handlers) login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.PureJSON(http.StatusBadRequest, apiError{Code: codeInvalidRequest, Message: err.Error()})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	fields := make(map[string]string)
	if req.Email == "" {
		fields["email"] = "Email is required"
	}
	if req.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		ctx.PureJSON(http.StatusUnprocessableEntity, apiError{
			Code:    codeValidationError,
			Message: "Validation failed",
			Errors:  fields,
		})
		return
	}

	if password, ok := h.cfg.Users[req.Email]; !ok || password != req.Password {
		h.logger.Warn("login rejected", "email", req.Email)
		ctx.PureJSON(http.StatusUnauthorized, apiError{
			Code:    codeInvalidCredentials,
			Message: "Invalid email or password",
		})
		return
	}

	access, refresh, err := h.tokens.pair(req.Email)
	if err != nil {
		ctx.PureJSON(http.StatusInternalServerError, apiError{Code: codeInternalError, Message: err.Error()})
		return
	}

	ctx.PureJSON(http.StatusOK, loginResponse{
		User:         loginUser{Email: req.Email},
		Token:        access,
		RefreshToken: refresh,
		ExpiresIn:    int(h.cfg.AccessTokenExpiry.Seconds()),
	})
}

func (h *handlers) refresh(ctx *gin.Context) {
	var req refreshRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		ctx.PureJSON(http.StatusBadRequest, apiError{Code: codeInvalidRequest, Message: "refreshToken is required"})
		return
	}

	c, err := h.tokens.validateRefresh(req.RefreshToken)
	if err != nil {
		ctx.PureJSON(http.StatusUnauthorized, apiError{Code: codeInvalidRefresh, Message: err.Error()})
		return
	}

	access, refresh, err := h.tokens.pair(c.Subject)
	if err != nil {
		ctx.PureJSON(http.StatusInternalServerError, apiError{Code: codeInternalError, Message: err.Error()})
		return
	}

	ctx.PureJSON(http.StatusOK, refreshResponse{Token: access, RefreshToken: refresh})
}

func (h *handlers) logout(ctx *gin.Context) {
	// tokens are stateless, there is nothing to revoke
	ctx.Status(http.StatusNoContent)
}

func (h *handlers) getAllProgress(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, progressMapEnvelope{Progress: h.progress.all(ctx.GetString(userContextKey))})
}

func (h *handlers) getProgress(ctx *gin.Context) {
	r, ok := h.progress.get(ctx.GetString(userContextKey), ctx.Param("id"))
	if !ok {
		ctx.PureJSON(http.StatusOK, progressEnvelope{})
		return
	}
	ctx.PureJSON(http.StatusOK, progressEnvelope{Progress: &r})
}

func (h *handlers) putProgress(ctx *gin.Context) {
	var u progress.Update
	if err := ctx.ShouldBindJSON(&u); err != nil {
		ctx.PureJSON(http.StatusBadRequest, apiError{Code: codeInvalidRequest, Message: err.Error()})
		return
	}

	r := h.progress.update(ctx.GetString(userContextKey), ctx.Param("id"), u, h.tokens.now())
	ctx.PureJSON(http.StatusOK, progressEnvelope{Progress: &r})
}

func (h *handlers) syncProgress(ctx *gin.Context) {
	var req progressMapEnvelope
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.PureJSON(http.StatusBadRequest, apiError{Code: codeInvalidRequest, Message: err.Error()})
		return
	}

	data := h.progress.sync(ctx.GetString(userContextKey), req.Progress, h.tokens.now())
	ctx.PureJSON(http.StatusOK, data)
}

func (h *handlers) resetProgress(ctx *gin.Context) {
	h.progress.reset(ctx.GetString(userContextKey))
	ctx.PureJSON(http.StatusOK, gin.H{"success": true})
}
