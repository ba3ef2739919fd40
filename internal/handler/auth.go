package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/config"
	"github.com/iliyamo/event-checkin/internal/utils"
)

// AuthHandler authenticates gate operators. There are no per-operator
// accounts: each role shares a passcode, and the operator types a display
// name that becomes the verifier identity on everything they record.
type AuthHandler struct {
	cfg config.Config
}

// NewAuthHandler returns an AuthHandler using the configured passcode
// hashes and JWT secret.
func NewAuthHandler(cfg config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

type loginRequest struct {
	OperatorID string `json:"operator_id"`
	Passcode   string `json:"passcode"`
}

// Login handles POST /v1/auth/login. The passcode decides the role: it is
// checked against the admin hash first, then the verifier hash. A wrong
// passcode always answers 401 without revealing which hash failed.
func (h *AuthHandler) Login(c echo.Context) error {
	var body loginRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.OperatorID == "" || body.Passcode == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "operator_id and passcode are required"})
	}

	var role string
	switch {
	case utils.VerifyPasscode(h.cfg.AdminPasscodeHash, body.Passcode):
		role = "ADMIN"
	case utils.VerifyPasscode(h.cfg.VerifierPasscodeHash, body.Passcode):
		role = "VERIFIER"
	default:
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid passcode"})
	}

	tok, err := utils.NewAccessToken(h.cfg.JWTSecret, body.OperatorID, role, h.cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue token"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"access_token": tok.Token,
		"expires_at":   tok.Exp,
		"role":         role,
	})
}
