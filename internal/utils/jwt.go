package utils // package utils provides helpers for operator tokens and passcodes

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT operator token along with its expiry.
// Operators (gate verifiers, event admins) authenticate once per shift with
// a shared passcode and use this token for the rest of the session; there
// is no refresh flow.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for an operator. operatorID
// becomes the subject claim and doubles as the default verifier identity
// stamped onto check-in batches; role is "ADMIN" or "VERIFIER".
func NewAccessToken(secret, operatorID, role string, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  operatorID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
