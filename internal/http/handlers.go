package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/auth"
	"github.com/dropDatabas3/gatekeeper/internal/credential"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/jwt"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/session"
	"github.com/dropDatabas3/gatekeeper/internal/validation"
)

type handlers struct{ d Deps }

type userView struct {
	ID         string     `json:"id"`
	Username   string     `json:"username,omitempty"`
	Email      string     `json:"email,omitempty"`
	LastActive *time.Time `json:"last_active,omitempty"`
}

func viewOf(u *repository.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email, LastActive: u.LastActive}
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─── Login / logout ───

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := auth.NewRequest(r, w, session.FromContext(ctx))
	if err != nil {
		writeRequestError(w, err)
		return
	}
	var in loginRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	creds := auth.Credentials{auth.FieldPassword: in.Password}
	if in.Email != "" {
		creds[auth.FieldEmail] = in.Email
	}
	if in.Username != "" {
		creds[auth.FieldUsername] = in.Username
	}
	if in.Remember {
		creds[auth.FieldRemember] = "1"
	}

	res, err := h.d.Login.Attempt(ctx, req, creds)
	if err != nil {
		logger.From(ctx).Error("login failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "server_error", "login failed")
		return
	}
	if !res.IsOK() {
		WriteResult(w, res)
		return
	}
	if err := h.d.Login.RecordActiveDate(ctx, req); err != nil {
		logger.From(ctx).Warn("last_active not recorded", logger.Err(err))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"user": viewOf(req.User())})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	req, a := AuthFromContext(r.Context())
	if err := a.Logout(r.Context(), req); err != nil {
		logger.From(r.Context()).Error("logout failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "server_error", "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	req, a := AuthFromContext(r.Context())
	out := map[string]any{
		"user":          viewOf(req.User()),
		"authenticator": a.Name(),
	}
	if t := req.AccessToken(); t != nil {
		out["scopes"] = t.Scopes
	}
	if t := req.HMACToken(); t != nil {
		out["scopes"] = t.Scopes
	}
	if c := req.Claims(); c != nil {
		out["claims"] = c
	}
	WriteJSON(w, http.StatusOK, out)
}

// ─── Tokens ───

type createTokenRequest struct {
	Type   string   `json:"type"` // bearer | hmac
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

type tokenView struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Token      string     `json:"token,omitempty"`
	Key        string     `json:"key,omitempty"`
	Secret     string     `json:"secret,omitempty"`
	Scopes     []string   `json:"scopes"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func (h *handlers) credentials(req *auth.Request) *credential.Set {
	return credential.NewSet(req.User(), h.d.Identities, h.d.Codec, h.d.Hasher)
}

func (h *handlers) createToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, _ := AuthFromContext(ctx)
	var in createTokenRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	set := h.credentials(req)

	var (
		out tokenView
		err error
	)
	switch in.Type {
	case "", "bearer":
		var t *credential.AccessToken
		if t, err = set.GenerateAccessToken(ctx, in.Name, in.Scopes); err == nil {
			out = tokenView{ID: t.ID, Type: "bearer", Name: t.Name, Token: t.RawToken, Scopes: t.Scopes}
		}
	case "hmac":
		var t *credential.HMACToken
		if t, err = set.GenerateHMACToken(ctx, in.Name, in.Scopes); err == nil {
			out = tokenView{ID: t.ID, Type: "hmac", Name: t.Name, Key: t.Key, Secret: t.RawSecretKey, Scopes: t.Scopes}
		}
	default:
		WriteError(w, http.StatusBadRequest, "invalid_request", "type must be bearer or hmac")
		return
	}
	switch {
	case err == nil:
		WriteJSON(w, http.StatusCreated, out)
	case errors.Is(err, credential.ErrInvalidScope):
		WriteError(w, http.StatusBadRequest, "invalid_scope", err.Error())
	case errors.Is(err, credential.ErrNoCodec):
		WriteError(w, http.StatusNotImplemented, "hmac_unavailable", "secretbox key not configured")
	default:
		logger.From(ctx).Error("token not created", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "server_error", "token not created")
	}
}

func (h *handlers) listTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, _ := AuthFromContext(ctx)
	set := h.credentials(req)

	bearer, err := set.AccessTokens(ctx)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "server_error", "tokens not listed")
		return
	}
	signing, err := set.HMACTokens(ctx)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "server_error", "tokens not listed")
		return
	}
	out := make([]tokenView, 0, len(bearer)+len(signing))
	for _, t := range bearer {
		out = append(out, tokenView{ID: t.ID, Type: "bearer", Name: t.Name, Scopes: t.Scopes, LastUsedAt: t.LastUsedAt})
	}
	for _, t := range signing {
		out = append(out, tokenView{ID: t.ID, Type: "hmac", Name: t.Name, Key: t.Key, Scopes: t.Scopes, LastUsedAt: t.LastUsedAt})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"tokens": out})
}

// ─── JWT ───

type issueJWTRequest struct {
	TTLSeconds int64          `json:"ttl_seconds"`
	Claims     map[string]any `json:"claims"`
}

func (h *handlers) issueJWT(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, _ := AuthFromContext(ctx)
	var in issueJWTRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	if in.TTLSeconds < 0 {
		WriteError(w, http.StatusBadRequest, "invalid_request", "ttl_seconds must be positive")
		return
	}
	ttl := time.Duration(in.TTLSeconds) * time.Second
	tok, err := h.d.JWT.Issue(req.User(), in.Claims, ttl)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrConflictingExpiry):
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	default:
		logger.From(ctx).Error("jwt not issued", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "server_error", "jwt not issued")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"token": tok, "token_type": "Bearer"})
}

func (h *handlers) jwks(w http.ResponseWriter, r *http.Request) {
	set := r.URL.Query().Get("set")
	if set == "" {
		set = jwt.DefaultKeySet
	}
	body, err := h.d.Keys.JWKSJSON(set)
	if errors.Is(err, jwt.ErrUnknownKeySet) {
		WriteError(w, http.StatusNotFound, "not_found", "unknown key set")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "server_error", "jwks unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(body)
}

// ─── Password ───

type passwordCheckRequest struct {
	Password string            `json:"password"`
	Username string            `json:"username"`
	Email    string            `json:"email"`
	Personal []string          `json:"personal"`
	Fields   map[string]string `json:"fields"`
}

// personal junta los valores de los campos configurados como información personal.
func (h *handlers) personal(in passwordCheckRequest) []string {
	out := append([]string(nil), in.Personal...)
	for _, f := range h.d.PersonalFields {
		if v := in.Fields[f]; v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (h *handlers) passwordCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in passwordCheckRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	res, err := h.d.Passwords.Check(ctx, in.Password, validation.Subject{
		Username: in.Username,
		Email:    in.Email,
		Personal: h.personal(in),
	})
	switch {
	case err == nil:
	case errors.Is(err, validation.ErrBreachCheckTransport):
		WriteError(w, http.StatusServiceUnavailable, "breach_check_unavailable", "password breach check unavailable")
		return
	default:
		logger.From(ctx).Error("password check failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "server_error", "password check failed")
		return
	}
	out := map[string]any{"ok": res.IsOK()}
	if !res.IsOK() {
		out["reason"] = res.Reason()
		out["message"] = res.Message()
	}
	WriteJSON(w, http.StatusOK, out)
}
