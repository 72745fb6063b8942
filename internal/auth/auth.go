// Package auth resolves the caller identity from an HS256 bearer token.
// Tokens are issued by the accounts service; this package only verifies them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

type Role string

const (
	RoleFarmer Role = "farmer"
	RoleVendor Role = "vendor"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Identity struct {
	UserID int64
	Role   Role
}

// Claims carries the role next to the standard claims; Subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

type Authenticator struct{ secret []byte }

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Issue signs a token for id. Used by tooling and tests.
func (a *Authenticator) Issue(id Identity, ttl time.Duration) (string, error) {
	claims := &Claims{
		Role: string(id.Role),
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			ExpiresAt: time.Now().Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Parse(token string) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return Identity{}, fmt.Errorf("%w: bad subject %q", ErrUnauthenticated, claims.Subject)
	}
	role := Role(claims.Role)
	if role != RoleFarmer && role != RoleVendor {
		role = RoleFarmer
	}
	return Identity{UserID: uid, Role: role}, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
