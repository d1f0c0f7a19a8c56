package handlers

import (
	"net/http"
	"strconv"
	"time"

	"admin-auth-service/internal/service"
	"admin-auth-service/internal/transport/http/apierrors"

	logctx "admin-auth-service/internal/pkg/log"
)

// SignUp — POST /auth/signup.
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var in signUpRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	account, err := h.Service.SignUp(r.Context(), in.Email, in.Nickname, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, accountFromModel(account))
}

// SignIn — POST /auth/signin. Частота попыток с одного IP ограничена.
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	if h.Limiter != nil {
		allowed, retryAfter, err := h.Limiter.Allow(r.Context(), clientIP(r), time.Now())
		if err != nil {
			// Недоступность лимитера не должна блокировать вход:
			// пропускаем запрос, оставляя след в логе.
			logctx.From(r.Context()).Warn("rate limiter unavailable", "error", err.Error())
		} else if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			apierrors.WriteError(w, r, apierrors.ErrRateLimited)
			return
		}
	}

	var in signInRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	pair, account, err := h.Service.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionFromModel(pair, account))
}

// Refresh — POST /auth/refresh: ротация сессии по refresh-токену.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	pair, account, err := h.Service.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionFromModel(pair, account))
}

// Logout — POST /auth/logout. Всегда 200: битое тело или токен не делают
// логаут неуспешным с точки зрения клиента.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err == nil && in.RefreshToken != "" {
		h.Service.Logout(r.Context(), in.RefreshToken)
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

// Me — GET /auth/me: профиль из клеймов access-токена.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	profile, err := h.Service.WhoAmI(r.Context(), tokenStr)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse(profile))
}
