// internal/api/middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tenant-ledger/internal/api/types"
	"tenant-ledger/internal/domain"
	"tenant-ledger/internal/util"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims identifies the acting user and, optionally, the team (tenant) they act for.
type Claims struct {
	UserID int64  `json:"user_id"`
	TeamID *int64 `json:"team_id,omitempty"`
	jwt.RegisteredClaims
}

// Owner returns the wallet owner these claims act as.
func (c *Claims) Owner() domain.Owner {
	return domain.NewOwner(c.UserID, c.TeamID)
}

// TokenService signs and validates HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue signs an access token for owner.
func (s *TokenService) Issue(owner domain.Owner) (string, error) {
	now := time.Now()
	return s.sign(Claims{
		UserID: owner.UserID,
		TeamID: owner.TeamID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})
}

func (s *TokenService) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate parses and verifies an access token.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type ownerKey struct{}

// Auth rejects requests without a valid bearer token and stores the owner in the context.
func Auth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				types.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or malformed authorization header", nil)
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				types.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
				return
			}

			owner := claims.Owner()
			ctx := context.WithValue(r.Context(), ownerKey{}, owner)
			l := util.Log(ctx).With().Int64("user_id", owner.UserID).Int64("team_id", owner.TeamKey()).Logger()
			ctx = util.WithLogger(ctx, &l)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerFrom returns the authenticated owner.
func OwnerFrom(ctx context.Context) (domain.Owner, bool) {
	owner, ok := ctx.Value(ownerKey{}).(domain.Owner)
	return owner, ok
}

// WithOwner stores owner in ctx, as Auth does.
func WithOwner(ctx context.Context, owner domain.Owner) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}
