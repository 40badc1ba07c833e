package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller as seen by downstream handlers.
type Identity struct {
	UserID   int64
	Email    string
	Role     string
	Provider string
}

var ErrInvalidToken = errors.New("invalid token")

// Verifier validates a bearer credential and resolves it to an Identity.
// Each token provider (JWT, Firebase, ...) implements this interface and is
// selected by the explicit Authorization scheme, never by inspecting the
// token itself.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Registry maps Authorization schemes (lowercased) to verifiers.
type Registry struct {
	verifiers map[string]Verifier
}

func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[string]Verifier)}
}

func (r *Registry) Register(scheme string, v Verifier) {
	r.verifiers[strings.ToLower(scheme)] = v
}

func (r *Registry) Lookup(scheme string) (Verifier, bool) {
	v, ok := r.verifiers[strings.ToLower(scheme)]
	return v, ok
}

// JWTVerifier validates HS256 tokens issued by this service's /auth/login.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		// pin the alg to avoid none/alg-confusion attacks
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || token == nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, ErrInvalidToken
	}

	id := Identity{UserID: userID, Provider: "jwt"}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		id.Role = role
	}
	return id, nil
}
