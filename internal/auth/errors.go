package auth

import (
	"errors"
	"net/http"
)

// Rejection is an anticipated, typed auth failure. The set below is closed:
// handlers translate a Rejection's name and status onto the wire verbatim
// and never re-interpret its meaning. Anything that is not a Rejection is a
// system error and surfaces as a 500.
type Rejection struct {
	Name   string
	Status int
}

func (r *Rejection) Error() string {
	return r.Name
}

var (
	ErrMissingToken       = &Rejection{Name: "MISSING_TOKEN", Status: http.StatusUnauthorized}
	ErrInvalidToken       = &Rejection{Name: "INVALID_TOKEN", Status: http.StatusUnauthorized}
	ErrTokenExpired       = &Rejection{Name: "TOKEN_EXPIRED", Status: http.StatusUnauthorized}
	ErrTokenRevoked       = &Rejection{Name: "TOKEN_REVOKED", Status: http.StatusUnauthorized}
	ErrUserNotFound       = &Rejection{Name: "USER_NOT_FOUND", Status: http.StatusUnauthorized}
	ErrAccountLocked      = &Rejection{Name: "ACCOUNT_LOCKED", Status: http.StatusLocked}
	ErrInvalidCredentials = &Rejection{Name: "INVALID_CREDENTIALS", Status: http.StatusUnauthorized}
	ErrExternalAuth       = &Rejection{Name: "EXTERNAL_AUTH_ACCOUNT", Status: http.StatusUnauthorized}
	ErrValidation         = &Rejection{Name: "VALIDATION_ERROR", Status: http.StatusBadRequest}
	ErrConflict           = &Rejection{Name: "CONFLICT", Status: http.StatusConflict}
	ErrRateLimited        = &Rejection{Name: "RATE_LIMIT_EXCEEDED", Status: http.StatusTooManyRequests}
)

// AsRejection unwraps err into a Rejection when it is one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
