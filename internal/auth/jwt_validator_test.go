package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, issuer, audience, subject string, iat, exp time.Time) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer(issuer).
		Audience([]string{audience}).
		IssuedAt(iat).
		Expiration(exp)
	if subject != "" {
		b = b.Subject(subject)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func TestFirebaseValidatorAcceptsProjectToken(t *testing.T) {
	now := time.Now()
	v := FirebaseValidator("leafmarket")
	tok := buildToken(t, "https://securetoken.google.com/leafmarket", "leafmarket", "uid-1", now, now.Add(time.Hour))
	require.NoError(t, v.Validate(tok, jwa.RS256, now))
}

func TestTokenValidatorRejects(t *testing.T) {
	now := time.Now()
	v := FirebaseValidator("leafmarket")
	iss := "https://securetoken.google.com/leafmarket"

	cases := map[string]struct {
		tok jwt.Token
		alg jwa.SignatureAlgorithm
	}{
		"other project":   {buildToken(t, "https://securetoken.google.com/other", "other", "uid", now, now.Add(time.Hour)), jwa.RS256},
		"wrong audience":  {buildToken(t, iss, "other", "uid", now, now.Add(time.Hour)), jwa.RS256},
		"expired":         {buildToken(t, iss, "leafmarket", "uid", now.Add(-2*time.Hour), now.Add(-time.Hour)), jwa.RS256},
		"hmac":            {buildToken(t, iss, "leafmarket", "uid", now, now.Add(time.Hour)), jwa.HS256},
		"missing alg":     {buildToken(t, iss, "leafmarket", "uid", now, now.Add(time.Hour)), ""},
		"missing subject": {buildToken(t, iss, "leafmarket", "", now, now.Add(time.Hour)), jwa.RS256},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, v.Validate(tc.tok, tc.alg, now))
		})
	}
	require.Error(t, v.Validate(nil, jwa.RS256, now))
}
