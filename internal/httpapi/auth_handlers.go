package httpapi

import (
	"errors"
	"net/http"
	"time"

	"backoffice.games/internal/audit"
	"backoffice.games/internal/auth"
	"backoffice.games/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.RecordLogin("failure")
		if errors.Is(err, auth.ErrInvalidCredentials) {
			// One generic message for unknown email and wrong password.
			writeError(w, r, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	obs.RecordLogin("success")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"email": auth.NormalizeEmail(req.Email),
	})
	writeJSON(w, http.StatusOK, toTokenPairResponse(pair))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := a.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		obs.RecordRefresh("failure")
		switch {
		case errors.Is(err, auth.ErrIdentityMissing):
			writeError(w, r, http.StatusUnauthorized, "token identity no longer exists")
		case errors.Is(err, auth.ErrInvalidToken):
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
		default:
			writeError(w, r, http.StatusInternalServerError, "refresh failed")
		}
		return
	}
	obs.RecordRefresh("success")
	_ = audit.LogEvent(r.Context(), "auth.refresh", nil)
	writeJSON(w, http.StatusOK, toTokenPairResponse(pair))
}

func toTokenPairResponse(pair auth.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresAt:        pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}
