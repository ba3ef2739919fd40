package utils

import "golang.org/x/crypto/bcrypt"

// PasscodeCost is the bcrypt cost used for operator passcode hashes.
// Passcodes are verified once per shift at login, not per request, so a
// cost above bcrypt's default is affordable.
const PasscodeCost = 12

// HashPasscode returns the bcrypt hash of an operator passcode, for
// generating the ADMIN_PASSCODE_HASH / VERIFIER_PASSCODE_HASH env values.
func HashPasscode(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), PasscodeCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPasscode reports whether plain matches the stored bcrypt hash. It
// accepts hashes of any cost, so rotating PasscodeCost does not invalidate
// existing env-configured hashes.
func VerifyPasscode(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
