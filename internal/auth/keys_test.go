package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leafmarket-checkout/internal/common"
)

const testProject = "leafmarket"

type signer struct {
	priv jwk.Key
	set  jwk.Set
}

func newSigner(t *testing.T, kid string) signer {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priv, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, priv.Set(jwk.KeyIDKey, kid))
	require.NoError(t, priv.Set(jwk.AlgorithmKey, jwa.RS256))
	pub, err := jwk.PublicKeyOf(priv)
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	return signer{priv: priv, set: set}
}

func (s signer) sign(t *testing.T, subject string, now time.Time) string {
	t.Helper()
	tok := buildToken(t, "https://securetoken.google.com/"+testProject, testProject, subject, now, now.Add(time.Hour))
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, s.priv))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifierReturnsSubject(t *testing.T) {
	s := newSigner(t, "kid-1")
	v := NewFirebaseVerifier(testProject, StaticKeys{Set: s.set})

	uid, err := v.VerifyIDToken(context.Background(), s.sign(t, "buyer-42", time.Now()))
	require.NoError(t, err)
	require.Equal(t, "buyer-42", uid)
}

func TestVerifierRejectsForeignKey(t *testing.T) {
	trusted := newSigner(t, "kid-1")
	other := newSigner(t, "kid-1")
	v := NewFirebaseVerifier(testProject, StaticKeys{Set: trusted.set})

	_, err := v.VerifyIDToken(context.Background(), other.sign(t, "buyer-42", time.Now()))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.VerifyIDToken(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	s := newSigner(t, "kid-1")
	v := NewFirebaseVerifier(testProject, StaticKeys{Set: s.set})
	v.Now = func() time.Time { return time.Now().Add(3 * time.Hour) }

	_, err := v.VerifyIDToken(context.Background(), s.sign(t, "buyer-42", time.Now()))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAuth(t *testing.T) {
	s := newSigner(t, "kid-1")
	mw := Middleware{Verifier: NewFirebaseVerifier(testProject, StaticKeys{Set: s.set})}

	var seen string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.BuyerID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "bearer "+s.sign(t, "buyer-9", time.Now()))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "buyer-9", seen)
}

func TestRemoteKeysFetchesJWKS(t *testing.T) {
	s := newSigner(t, "kid-remote")
	body, err := json.Marshal(s.set)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	keys, err := NewRemoteKeys(ctx, srv.URL, time.Minute)
	require.NoError(t, err)

	v := NewFirebaseVerifier(testProject, keys)
	uid, err := v.VerifyIDToken(ctx, s.sign(t, "buyer-remote", time.Now()))
	require.NoError(t, err)
	require.Equal(t, "buyer-remote", uid)
}
