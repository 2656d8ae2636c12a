// Package auth verifies bearer tokens on the HTTP transports and records the caller in the
// request context.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const subjectKey contextKey = "subject"

// Verifier validates HMAC-signed JWTs.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses tokenStr and returns its subject. Expired or badly signed tokens fail.
func (v *Verifier) Verify(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// HTTPContextFunc returns a context function for the MCP HTTP transports. A request with a
// valid bearer token gets its subject attached; any other request passes through
// unauthenticated.
func HTTPContextFunc(v *Verifier, logger *zap.Logger) func(context.Context, *http.Request) context.Context {
	return func(ctx context.Context, r *http.Request) context.Context {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			return ctx
		}
		subject, err := v.Verify(tokenStr)
		if err != nil {
			logger.Warn("rejected bearer token",
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			return ctx
		}
		return WithSubject(ctx, subject)
	}
}

// WithSubject marks ctx as authenticated for subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok && subject != ""
}

// IsAuthenticated reports whether ctx carries a verified subject.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := SubjectFromContext(ctx)
	return ok
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
