package supabase

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type verifier struct {
	secret []byte
	parser *jwt.Parser
}

type tokenClaims struct {
	subject   string
	expiresAt time.Time
}

func newVerifier(secret string, now func() time.Time) *verifier {
	return &verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

// verify checks signature and expiry and requires a subject
func (v *verifier) verify(token string) (tokenClaims, bool) {
	var rc jwt.RegisteredClaims
	t, err := v.parser.ParseWithClaims(token, &rc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !t.Valid || rc.Subject == "" || rc.ExpiresAt == nil {
		return tokenClaims{}, false
	}
	return tokenClaims{subject: rc.Subject, expiresAt: rc.ExpiresAt.Time.UTC()}, true
}
