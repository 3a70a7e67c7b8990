package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type successBody struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func postJSON(t *testing.T, handler http.HandlerFunc, target, payload, acceptLanguage string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	if acceptLanguage != "" {
		r.Header.Set("Accept-Language", acceptLanguage)
	}
	w := httptest.NewRecorder()
	handler(w, r)

	return w
}

func decodeSuccess(t *testing.T, w *httptest.ResponseRecorder) successBody {
	t.Helper()

	var body successBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode success body: %v", err)
	}
	return body
}

func decodeFailure(t *testing.T, w *httptest.ResponseRecorder) failureBody {
	t.Helper()

	var body failureBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failure body: %v", err)
	}
	return body
}

func TestRegisterEndpoint(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc)

	w := postJSON(t, h.Register, "/auth/register", `{"name":"Alice","email":"alice@example.com","password":"Secret123"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeSuccess(t, w)
	if body.Status != "success" {
		t.Fatalf("status field = %q", body.Status)
	}
	if body.Message != "Compte créé avec succès." {
		t.Fatalf("default-language message = %q, want French", body.Message)
	}
	var tokens Tokens
	if err := json.Unmarshal(body.Data, &tokens); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("register response missing tokens")
	}

	// Second registration with the same email conflicts, in English here.
	w = postJSON(t, h.Register, "/auth/register", `{"name":"Alice","email":"alice@example.com","password":"Secret123"}`, "en")
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", w.Code)
	}
	failure := decodeFailure(t, w)
	if failure.ErrorName != "CONFLICT" || failure.ErrorCode != "409" {
		t.Fatalf("duplicate envelope: %+v", failure)
	}
	if failure.ErrorMessage != "An account with this email address already exists." {
		t.Fatalf("english conflict message = %q", failure.ErrorMessage)
	}
}

func TestRegisterEndpointValidation(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc)

	cases := map[string]string{
		"missing name":   `{"email":"alice@example.com","password":"Secret123"}`,
		"blank name":     `{"name":"   ","email":"alice@example.com","password":"Secret123"}`,
		"bad email":      `{"name":"Alice","email":"not-an-email","password":"Secret123"}`,
		"short password": `{"name":"Alice","email":"alice@example.com","password":"short"}`,
		"unknown field":  `{"name":"Alice","email":"alice@example.com","password":"Secret123","admin":true}`,
		"malformed json": `{"name":`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			w := postJSON(t, h.Register, "/auth/register", payload, "")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if failure := decodeFailure(t, w); failure.ErrorName != "VALIDATION_ERROR" {
				t.Fatalf("errorName = %q", failure.ErrorName)
			}
		})
	}
}

func TestLoginEndpoint(t *testing.T) {
	svc, store := newTestService(t)
	h := NewHandler(svc)

	registerUser(t, svc, store, "alice@example.com", "Secret123")

	// An address nobody registered is a credential failure, not a 404.
	w := postJSON(t, h.Login, "/auth/login", `{"email":"ghost@example.com","password":"Secret123"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown account status = %d", w.Code)
	}
	if failure := decodeFailure(t, w); failure.ErrorName != "INVALID_CREDENTIALS" {
		t.Fatalf("errorName = %q", failure.ErrorName)
	}

	w = postJSON(t, h.Login, "/auth/login", `{"email":"alice@example.com","password":"Secret123"}`, "en")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeSuccess(t, w)
	if body.Message != "Logged in successfully." {
		t.Fatalf("login message = %q", body.Message)
	}
	var tokens Tokens
	if err := json.Unmarshal(body.Data, &tokens); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if tokens.AccessToken == "" {
		t.Fatal("login response missing access token")
	}
}

func TestRefreshEndpoint(t *testing.T) {
	svc, store := newTestService(t)
	h := NewHandler(svc)

	_, pair := registerUser(t, svc, store, "alice@example.com", "Secret123")

	w := postJSON(t, h.Refresh, "/auth/refresh-token", `{"refreshToken":"`+pair.RefreshToken+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %s", w.Code, w.Body.String())
	}
	var data struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int64  `json:"expiresIn"`
	}
	body := decodeSuccess(t, w)
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.AccessToken == "" || data.ExpiresIn != 3600 {
		t.Fatalf("unexpected refresh data: %+v", data)
	}

	// Missing token is a validation failure; an access token in the
	// refresh slot is an invalid token.
	w = postJSON(t, h.Refresh, "/auth/refresh-token", `{"refreshToken":"  "}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty token status = %d", w.Code)
	}
	w = postJSON(t, h.Refresh, "/auth/refresh-token", `{"refreshToken":"`+pair.AccessToken+`"}`, "")
	if failure := decodeFailure(t, w); w.Code != http.StatusUnauthorized || failure.ErrorName != "INVALID_TOKEN" {
		t.Fatalf("access-as-refresh: %d %q", w.Code, failure.ErrorName)
	}
}

func TestLogoutEndpointRevokesSession(t *testing.T) {
	svc, store := newTestService(t)
	h := NewHandler(svc)
	gate := NewGate(svc)

	_, pair := registerUser(t, svc, store, "alice@example.com", "Secret123")

	logout := gate.Middleware(http.HandlerFunc(h.Logout))
	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	logout.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d, body = %s", w.Code, w.Body.String())
	}

	// The revoked token no longer passes the gate.
	probe := newGateProbe(svc)
	w2, failure := gateRequest(t, probe, "Bearer "+pair.AccessToken, "")
	if w2.Code != http.StatusUnauthorized || failure.ErrorName != "TOKEN_REVOKED" {
		t.Fatalf("reuse after logout: %d %q", w2.Code, failure.ErrorName)
	}
}

func TestPasswordResetEndpoints(t *testing.T) {
	svc, store := newTestService(t)
	h := NewHandler(svc)

	registerUser(t, svc, store, "alice@example.com", "Secret123")

	// Known and unknown addresses get byte-identical responses.
	known := postJSON(t, h.RequestPasswordReset, "/auth/password-reset/request", `{"email":"alice@example.com"}`, "")
	unknown := postJSON(t, h.RequestPasswordReset, "/auth/password-reset/request", `{"email":"ghost@example.com"}`, "")
	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("reset request statuses: %d, %d", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatal("reset responses differ between known and unknown accounts")
	}

	w := postJSON(t, h.RequestPasswordReset, "/auth/password-reset/request", `{"email":"not-an-email"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad email status = %d", w.Code)
	}

	w = postJSON(t, h.SubmitPasswordReset, "/auth/password-reset/submit", `{"token":"abc","newPassword":"short"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("weak password status = %d", w.Code)
	}

	w = postJSON(t, h.SubmitPasswordReset, "/auth/password-reset/submit", `{"token":"never-issued","newPassword":"Rescued123"}`, "")
	if failure := decodeFailure(t, w); w.Code != http.StatusUnauthorized || failure.ErrorName != "INVALID_TOKEN" {
		t.Fatalf("bogus token: %d %q", w.Code, failure.ErrorName)
	}
}
