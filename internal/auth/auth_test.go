package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	a := NewAuthenticator("s3cret")
	tok, err := a.Issue(Identity{UserID: 42, Role: RoleVendor}, time.Hour)
	require.NoError(t, err)

	id, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 42, Role: RoleVendor}, id)
}

func TestParseRejects(t *testing.T) {
	a := NewAuthenticator("s3cret")

	expired, err := a.Issue(Identity{UserID: 1, Role: RoleFarmer}, -time.Minute)
	require.NoError(t, err)
	other, err := NewAuthenticator("other").Issue(Identity{UserID: 1, Role: RoleFarmer}, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: "vendor",
		StandardClaims: jwt.StandardClaims{Subject: "1"}}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Role: "vendor",
		StandardClaims: jwt.StandardClaims{Subject: "alice"}}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":     expired,
		"wrong key":   other,
		"alg none":    none,
		"bad subject": badSubject,
		"garbage":     "a.b.c",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Parse(tok)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestMiddleware(t *testing.T) {
	a := NewAuthenticator("s3cret")
	farmer, _ := a.Issue(Identity{UserID: 5, Role: RoleFarmer}, time.Hour)
	vendor, _ := a.Issue(Identity{UserID: 6, Role: RoleVendor}, time.Hour)

	var seen Identity
	h := a.Middleware(RequireVendor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/vendor/orders", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("nope"))
	assert.Equal(t, http.StatusForbidden, do(farmer))
	assert.Equal(t, http.StatusNoContent, do(vendor))
	assert.Equal(t, int64(6), seen.UserID)
}
