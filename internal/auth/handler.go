package auth

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"

	"accountd/internal/httpapi"
	"accountd/internal/i18n"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	maxJSONBodyBytes  = 1 << 20
	minPasswordLength = 8
	maxPasswordLength = 200
	maxNameLength     = 100
	maxEmailLength    = 254
)

// Handler exposes the /auth route family.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetRequestRequest struct {
	Email string `json:"email"`
}

type resetSubmitRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	lang := i18n.Resolve(r)

	var body registerRequest
	if !decodeJSON(w, r, lang, &body) {
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > maxNameLength ||
		!validEmail(body.Email) || !validPassword(body.Password) {
		httpapi.Fail(w, lang, ErrValidation.Status, ErrValidation.Name)
		return
	}

	tokens, err := h.service.Register(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		respondError(w, lang, err)
		return
	}

	httpapi.Success(w, lang, http.StatusCreated, tokens, "register.success")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	lang := i18n.Resolve(r)

	var body loginRequest
	if !decodeJSON(w, r, lang, &body) {
		return
	}

	if !validEmail(body.Email) || body.Password == "" || len(body.Password) > maxPasswordLength {
		httpapi.Fail(w, lang, ErrValidation.Status, ErrValidation.Name)
		return
	}

	tokens, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		respondError(w, lang, err)
		return
	}

	httpapi.Success(w, lang, http.StatusOK, tokens, "login.success")
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	lang := i18n.Resolve(r)

	var body refreshRequest
	if !decodeJSON(w, r, lang, &body) {
		return
	}

	body.RefreshToken = strings.TrimSpace(body.RefreshToken)
	if body.RefreshToken == "" {
		httpapi.Fail(w, lang, ErrValidation.Status, ErrValidation.Name)
		return
	}

	access, expiresIn, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		respondError(w, lang, err)
		return
	}

	httpapi.Success(w, lang, http.StatusOK, refreshResponse{
		AccessToken: access,
		ExpiresIn:   expiresIn,
	}, "refresh.success")
}

// Logout runs behind the gate: the token being revoked is the one that
// authorized the request.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	lang := i18n.Resolve(r)

	principal, ok := PrincipalFrom(r.Context())
	raw, okToken := RawTokenFrom(r.Context())
	if !ok || !okToken {
		httpapi.Fail(w, lang, ErrMissingToken.Status, ErrMissingToken.Name)
		return
	}

	if err := h.service.Logout(r.Context(), raw, principal.ID); err != nil {
		respondError(w, lang, err)
		return
	}

	httpapi.Success(w, lang, http.StatusOK, nil, "logout.success")
}

func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	lang := i18n.Resolve(r)

	var body resetRequestRequest
	if !decodeJSON(w, r, lang, &body) {
		return
	}

	if !validEmail(body.Email) {
		httpapi.Fail(w, lang, ErrValidation.Status, ErrValidation.Name)
		return
	}

	// The raw token goes to the delivery layer once one exists; the
	// response is identical whether or not the account exists.
	if _, err := h.service.RequestPasswordReset(r.Context(), body.Email); err != nil {
		respondError(w, lang, err)
		return
	}

	httpapi.Success(w, lang, http.StatusOK, nil, "reset.requested")
}

func (h *Handler) SubmitPasswordReset(w http.ResponseWriter, r *http.Request) {
	lang := i18n.Resolve(r)

	var body resetSubmitRequest
	if !decodeJSON(w, r, lang, &body) {
		return
	}

	body.Token = strings.TrimSpace(body.Token)
	if body.Token == "" || !validPassword(body.NewPassword) {
		httpapi.Fail(w, lang, ErrValidation.Status, ErrValidation.Name)
		return
	}

	if err := h.service.SubmitPasswordReset(r.Context(), body.Token, body.NewPassword); err != nil {
		respondError(w, lang, err)
		return
	}

	httpapi.Success(w, lang, http.StatusOK, nil, "reset.completed")
}

// decodeJSON decodes a bounded, strict JSON body. A malformed body is a
// validation failure; it reports false after writing the response.
func decodeJSON(w http.ResponseWriter, r *http.Request, lang i18n.Language, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		httpapi.Fail(w, lang, ErrValidation.Status, ErrValidation.Name)
		return false
	}

	return true
}

// respondError translates a service error: Rejections go out as-is,
// everything else is captured and reported as a generic system error.
func respondError(w http.ResponseWriter, lang i18n.Language, err error) {
	if rej, ok := AsRejection(err); ok {
		httpapi.Fail(w, lang, rej.Status, rej.Name)
		return
	}

	sentry.CaptureException(err)
	httpapi.Fail(w, lang, http.StatusInternalServerError, "INTERNAL_ERROR")
}

func validEmail(email string) bool {
	email = NormalizeEmail(email)
	return email != "" && len(email) <= maxEmailLength && emailRegex.MatchString(email)
}

func validPassword(password string) bool {
	return len(password) >= minPasswordLength && len(password) <= maxPasswordLength
}
