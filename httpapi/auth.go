package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken indicates no bearer token was presented.
	ErrMissingToken = errors.New("httpapi: missing bearer token")

	// ErrInvalidToken indicates the token failed verification.
	ErrInvalidToken = errors.New("httpapi: invalid token")
)

// Verifier validates HS256 bearer tokens signed with a shared secret.
// An empty secret disables verification entirely, which is the expected
// mode on a single-operator box.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the shared secret.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return &Verifier{}
	}
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether verification is active.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Subject verifies the Authorization header and returns the token subject.
func (v *Verifier) Subject(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header || strings.TrimSpace(tokenString) == "" {
		return "", ErrMissingToken
	}

	token, err := jwt.Parse(strings.TrimSpace(tokenString), func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// Guard wraps a handler with bearer-token verification. Disabled verifiers
// pass every request through.
func (v *Verifier) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		if _, err := v.Subject(r); err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
