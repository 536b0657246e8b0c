package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const contextKeyUserId = "user_id"

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

func CheckPassword(hash string, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		return ErrInvalidCredentials
	}

	return nil
}

type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  Clock
}

func NewTokens(secret string, issuer string, ttl time.Duration, clock Clock) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		clock:  clock,
	}
}

func (t *Tokens) Issue(user *User) (string, error) {
	now := t.clock()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Id,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Username: user.Username,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

func (t *Tokens) Verify(token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims,
		func(_ *jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("failed to verify token: missing subject")
	}

	return claims, nil
}

// Middleware rejects requests without a valid bearer token and exposes the
// token subject through CallerId.
func (t *Tokens) Middleware() gin.HandlerFunc {
	return func(gctx *gin.Context) {
		ctx := gctx.Request.Context()

		token, found := strings.CutPrefix(gctx.GetHeader("Authorization"), "Bearer ")
		if !found || token == "" {
			log.Ctx(ctx).Warn().Msg("missing bearer token")
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, NewError("missing bearer token"))

			return
		}

		claims, err := t.Verify(token)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("invalid bearer token")
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, NewError("invalid bearer token", err))

			return
		}

		gctx.Set(contextKeyUserId, claims.Subject)
		gctx.Next()
	}
}

func CallerId(gctx *gin.Context) string {
	return gctx.GetString(contextKeyUserId)
}
