package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/event-checkin/internal/config"
)

func loginWith(t *testing.T, h *AuthHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Login(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	return rec
}

func TestLoginRoles(t *testing.T) {
	adminHash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin passcode: %v", err)
	}
	verifierHash, err := bcrypt.GenerateFromPassword([]byte("gate-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash verifier passcode: %v", err)
	}
	h := NewAuthHandler(config.Config{
		JWTSecret:            "test-secret",
		AccessTTLMin:         60,
		AdminPasscodeHash:    string(adminHash),
		VerifierPasscodeHash: string(verifierHash),
	})

	cases := []struct {
		name     string
		passcode string
		wantRole string
	}{
		{name: "admin passcode", passcode: "open-sesame", wantRole: "ADMIN"},
		{name: "verifier passcode", passcode: "gate-pass", wantRole: "VERIFIER"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := loginWith(t, h, `{"operator_id": "gate-1", "passcode": "`+tc.passcode+`"}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["role"] != tc.wantRole {
				t.Fatalf("role = %v, want %s", body["role"], tc.wantRole)
			}
			if tok, _ := body["access_token"].(string); tok == "" {
				t.Fatal("missing access_token")
			}
		})
	}

	t.Run("wrong passcode", func(t *testing.T) {
		rec := loginWith(t, h, `{"operator_id": "gate-1", "passcode": "nope"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := loginWith(t, h, `{"operator_id": "gate-1"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}
