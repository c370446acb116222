package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"realmsteward.io/steward/internal/governance/authz"
	apperrors "realmsteward.io/steward/internal/pkg/errors"
	"realmsteward.io/steward/internal/pkg/logger"
)

// ErrJWTSigningKeyMissing is returned when no verification key is configured.
var ErrJWTSigningKeyMissing = errors.New("jwt signing key is not configured")

// JWTClaims are the identity claims of a bearer token. The subject is the
// actor's user id.
type JWTClaims struct {
	IdirUserID  string   `json:"idir_user_id"`
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email"`
	Roles       []string `json:"client_roles"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the lifecycle actor.
func (c *JWTClaims) Actor() authz.Actor {
	return authz.Actor{
		UserID:      c.Subject,
		IdirUserID:  c.IdirUserID,
		DisplayName: c.DisplayName,
		Email:       c.Email,
		Roles:       c.Roles,
	}
}

// JWTConfig holds JWT signing configuration.
type JWTConfig struct {
	SigningKey []byte
	// VerificationKeys are older keys still accepted after a rotation.
	VerificationKeys [][]byte
	// Issuer is checked when set.
	Issuer    string
	ExpiresIn time.Duration
}

// GenerateToken creates a signed JWT for actor.
func GenerateToken(cfg JWTConfig, actor authz.Actor) (string, time.Time, error) {
	now := time.Now()
	expiresIn := cfg.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	expiresAt := now.Add(expiresIn)

	claims := JWTClaims{
		IdirUserID:  actor.IdirUserID,
		DisplayName: actor.DisplayName,
		Email:       actor.Email,
		Roles:       actor.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			Subject:   actor.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken verifies tokenString against the signing key and then every
// verification key.
func (cfg JWTConfig) ValidateToken(tokenString string) (*JWTClaims, error) {
	keys := make([][]byte, 0, 1+len(cfg.VerificationKeys))
	if len(cfg.SigningKey) > 0 {
		keys = append(keys, cfg.SigningKey)
	}
	for _, k := range cfg.VerificationKeys {
		if len(k) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %w", jwt.ErrTokenUnverifiable, ErrJWTSigningKeyMissing)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	var lastErr error
	for _, key := range keys {
		key := key
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		}, opts...)
		if err == nil && token.Valid {
			return claims, nil
		}
		lastErr = err
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	return nil, lastErr
}

// JWTAuth validates the bearer token and stores the actor in the request
// context. Failures are reported through the error handler.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortWith(c, apperrors.ErrUnauthenticated())
			return
		}

		claims, err := cfg.ValidateToken(tokenString)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			logger.Debug("Rejected bearer token", zap.Error(err))
			abortWith(c, apperrors.Unauthorized(apperrors.CodeUnauthorized, msg))
			return
		}

		actor := claims.Actor()
		if !actor.Authenticated() {
			abortWith(c, apperrors.Unauthorized(apperrors.CodeUnauthorized, "token has no subject"))
			return
		}

		c.Request = c.Request.WithContext(WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func abortWith(c *gin.Context, err *apperrors.AppError) {
	_ = c.Error(err)
	c.Abort()
}
