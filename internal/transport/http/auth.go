package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"timed-quiz-service/internal/domain"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const principalCtxKey contextKey = "principal"

// Auth verifies bearer tokens and turns their claims into a domain.Principal.
// Tokens are read from the Authorization header or, for websocket clients,
// the "jwt" query parameter.
type Auth struct {
	tokens   *jwtauth.JWTAuth
	tokenTTL time.Duration
}

func NewAuth(secret string, tokenTTL time.Duration) *Auth {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Auth{
		tokens:   jwtauth.New("HS256", []byte(secret), nil),
		tokenTTL: tokenTTL,
	}
}

// IssueToken signs a token for the given identity.
func (a *Auth) IssueToken(userID, name string, role domain.Role) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"name":    name,
		"role":    string(role),
		"exp":     now.Add(a.tokenTTL).Unix(),
		"iat":     now.Unix(),
	}
	_, tokenString, err := a.tokens.Encode(claims)
	return tokenString, err
}

// Verifier finds and verifies a token and stores it on the request context.
func (a *Auth) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(a.tokens, jwtauth.TokenFromHeader, jwtauth.TokenFromQuery)
}

// Identify resolves the principal. Requests without a token continue as
// anonymous; requests with a bad token are rejected.
func (a *Auth) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if errors.Is(err, jwtauth.ErrNoTokenFound) || (err == nil && token == nil) {
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), domain.Anonymous())))
			return
		}
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		p, err := principalFromClaims(claims)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

func principalFromClaims(claims jwt.MapClaims) (domain.Principal, error) {
	id, ok := claims["user_id"].(string)
	if !ok || id == "" {
		return domain.Principal{}, errors.New("user_id claim is missing or not a string")
	}
	role, ok := claims["role"].(string)
	if !ok {
		return domain.Principal{}, errors.New("role claim is missing or not a string")
	}
	switch domain.Role(role) {
	case domain.RoleUser, domain.RoleAdmin:
	default:
		return domain.Principal{}, errors.New("role claim is not a known role")
	}
	name, _ := claims["name"].(string)
	return domain.Principal{UserID: id, Name: name, Role: domain.Role(role)}, nil
}

func withPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFrom returns the principal resolved by Identify, or anonymous.
func PrincipalFrom(ctx context.Context) domain.Principal {
	p, ok := ctx.Value(principalCtxKey).(domain.Principal)
	if !ok {
		return domain.Anonymous()
	}
	return p
}
