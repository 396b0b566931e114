package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ExpiryFromJWT reads the exp claim of a bearer token without verifying its
// signature and returns the time left until then, measured from now.
//
// ok is false when the token is not a JWT or carries no exp claim.
func ExpiryFromJWT(token string, now time.Time) (expiresIn time.Duration, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return 0, false
	}

	return time.Unix(int64(exp), 0).Sub(now), true
}
