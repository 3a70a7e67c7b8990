package user

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"

	"accountd/internal/auth"
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

// Handler exposes the /users/me route family. Every route runs behind the
// auth gate, so a Principal is always on the context.
type Handler struct {
	service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{service: service}
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	lang := i18n.Resolve(r)

	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpapi.Fail(w, lang, auth.ErrMissingToken.Status, auth.ErrMissingToken.Name)
		return
	}

	user, err := h.service.GetProfile(r.Context(), principal.ID)
	if err != nil {
		respondError(w, lang, err)
		return
	}

	httpapi.Success(w, lang, http.StatusOK, auth.NewProfile(user), "profile.fetched")
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	lang := i18n.Resolve(r)

	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpapi.Fail(w, lang, auth.ErrMissingToken.Status, auth.ErrMissingToken.Name)
		return
	}

	var body updateProfileRequest
	if !decodeJSON(w, r, lang, &body) {
		return
	}

	// At least one field is required; absent and empty both fail.
	if body.Name == nil && body.Email == nil {
		httpapi.Fail(w, lang, auth.ErrValidation.Status, auth.ErrValidation.Name)
		return
	}
	if body.Name != nil {
		trimmed := strings.TrimSpace(*body.Name)
		if trimmed == "" || len(trimmed) > maxNameLength {
			httpapi.Fail(w, lang, auth.ErrValidation.Status, auth.ErrValidation.Name)
			return
		}
		body.Name = &trimmed
	}
	if body.Email != nil && !validEmail(*body.Email) {
		httpapi.Fail(w, lang, auth.ErrValidation.Status, auth.ErrValidation.Name)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), principal.ID, body.Name, body.Email)
	if err != nil {
		respondError(w, lang, err)
		return
	}

	httpapi.Success(w, lang, http.StatusOK, auth.NewProfile(user), "profile.updated")
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	lang := i18n.Resolve(r)

	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpapi.Fail(w, lang, auth.ErrMissingToken.Status, auth.ErrMissingToken.Name)
		return
	}

	var body changePasswordRequest
	if !decodeJSON(w, r, lang, &body) {
		return
	}

	if body.CurrentPassword == "" || !validPassword(body.NewPassword) {
		httpapi.Fail(w, lang, auth.ErrValidation.Status, auth.ErrValidation.Name)
		return
	}

	if err := h.service.ChangePassword(r.Context(), principal.ID, body.CurrentPassword, body.NewPassword); err != nil {
		respondError(w, lang, err)
		return
	}

	httpapi.Success(w, lang, http.StatusOK, nil, "password.changed")
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	lang := i18n.Resolve(r)

	principal, ok := auth.PrincipalFrom(r.Context())
	raw, okToken := auth.RawTokenFrom(r.Context())
	if !ok || !okToken {
		httpapi.Fail(w, lang, auth.ErrMissingToken.Status, auth.ErrMissingToken.Name)
		return
	}

	var body deleteAccountRequest
	if !decodeJSON(w, r, lang, &body) {
		return
	}

	if body.Password == "" {
		httpapi.Fail(w, lang, auth.ErrValidation.Status, auth.ErrValidation.Name)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), principal.ID, body.Password, raw); err != nil {
		respondError(w, lang, err)
		return
	}

	httpapi.Success(w, lang, http.StatusOK, nil, "account.deleted")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, lang i18n.Language, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		httpapi.Fail(w, lang, auth.ErrValidation.Status, auth.ErrValidation.Name)
		return false
	}

	return true
}

func respondError(w http.ResponseWriter, lang i18n.Language, err error) {
	if rej, ok := auth.AsRejection(err); ok {
		httpapi.Fail(w, lang, rej.Status, rej.Name)
		return
	}

	sentry.CaptureException(err)
	httpapi.Fail(w, lang, http.StatusInternalServerError, "INTERNAL_ERROR")
}

func validEmail(email string) bool {
	normalized := auth.NormalizeEmail(email)
	return normalized != "" && len(normalized) <= maxEmailLength && emailRegex.MatchString(normalized)
}

func validPassword(password string) bool {
	return len(password) >= minPasswordLength && len(password) <= maxPasswordLength
}
