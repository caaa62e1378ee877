package application

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialClaims is what the client can read from an access credential
// without verifying it. The server stays the authority; these are display
// and bootstrap hints only.
type CredentialClaims struct {
	UserID    string
	ExpiresAt time.Time
}

// PeekCredentialClaims decodes the claims of a JWT access credential without
// checking its signature. Opaque (non-JWT) credentials yield an error.
func PeekCredentialClaims(accessCredential string) (CredentialClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessCredential, claims); err != nil {
		return CredentialClaims{}, fmt.Errorf("access credential is not a readable JWT: %w", err)
	}

	var out CredentialClaims
	for _, name := range []string{"userId", "user_id", "sub"} {
		if id := claimString(claims[name]); id != "" {
			out.UserID = id
			break
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}
