package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Basic abc")
	_, err = ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	token, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
}

func TestExtractUserIDFromJWT(t *testing.T) {
	sub, err := ExtractUserIDFromJWT(signedToken(t, jwt.MapClaims{"sub": "user-1"}))
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	_, err = ExtractUserIDFromJWT(signedToken(t, jwt.MapClaims{"name": "no subject"}))
	assert.Error(t, err)

	_, err = ExtractUserIDFromJWT("not-a-jwt")
	assert.Error(t, err)
}

func TestIdentifyAttachesSubject(t *testing.T) {
	var seen string
	h := Identify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"sub": "scanner-7"}))
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "scanner-7", seen)

	seen = "unchanged"
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, "", seen, "requests without a token pass through anonymously")
}

func TestActorMarksUnverifiedSubjects(t *testing.T) {
	var actor string
	var verified bool
	h := Identify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = Actor(r.Context())
		verified = Verified(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"sub": "scanner-7"}))
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "unverified:scanner-7", actor)
	assert.False(t, verified)
}

func TestActorForVerifiedSubject(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-1")

	assert.Equal(t, "user-1", Actor(ctx))
	assert.True(t, Verified(ctx))
	assert.Equal(t, "", Actor(context.Background()))
}
