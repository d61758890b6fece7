package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid access token")

// Claims is what we read out of an access token issued by the auth service.
type Claims struct {
	UserID    string
	Email     string
	Role      string // the database role, normally "authenticated"
	SessionID string
	ExpiresAt time.Time
	Verified  bool // signature checked locally
}

// ParseAccessToken reads an access token issued by the auth service.
//
// With a secret the HS256 signature and expiry are verified. Without one only
// the structure and expiry are checked, and the caller must confirm the
// token with the auth service before trusting it.
func ParseAccessToken(tokenString string, secret []byte) (*Claims, error) {
	var (
		token *jwt.Token
		err   error
	)

	// 1. Parse the token string, verifying the signature when we can.
	if len(secret) > 0 {
		token, err = jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			// 2. Check the signing method.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	} else {
		token, _, err = jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// 3. Pull the claims we need.
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}

	// 4. ParseUnverified skips the expiry check, so do it here.
	if !exp.After(time.Now()) {
		return nil, fmt.Errorf("%w: token is expired", ErrInvalidToken)
	}

	claims := &Claims{
		UserID:    sub,
		ExpiresAt: exp.Time,
		Verified:  len(secret) > 0,
	}
	claims.Email, _ = mc["email"].(string)
	claims.Role, _ = mc["role"].(string)
	claims.SessionID, _ = mc["session_id"].(string)
	return claims, nil
}
