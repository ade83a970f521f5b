package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/KevinKickass/PackStationCore/internal/config"
	"github.com/gin-gonic/gin"
)

const RoleOperator = "operator"

// AuthService authenticates the configured operator account and issues
// JWT access tokens for the REST and WebSocket surfaces.
type AuthService struct {
	cfg            config.AuthConfig
	jwtHandler     *JWTHandler
	passwordHasher *PasswordHasher
}

func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{
		cfg:            cfg,
		jwtHandler:     NewJWTHandler(cfg.GetJWTSecret(), cfg.AccessTokenTTL),
		passwordHasher: NewPasswordHasher(),
	}
}

// Login verifies the operator credentials and returns an access token.
func (a *AuthService) Login(username, password string) (string, error) {
	if username != a.cfg.OperatorUser || a.cfg.OperatorPasswordHash == "" {
		return "", fmt.Errorf("invalid credentials")
	}

	valid, err := a.passwordHasher.VerifyPassword(password, a.cfg.OperatorPasswordHash)
	if err != nil || !valid {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := a.jwtHandler.GenerateAccessToken(username, RoleOperator)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return token, nil
}

// ValidateToken verifies a bearer token and returns its claims.
func (a *AuthService) ValidateToken(token string) (*JWTClaims, error) {
	return a.jwtHandler.ValidateAccessToken(token)
}

// AuthMiddleware validates tokens and enforces authentication
func (a *AuthService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := a.jwtHandler.ValidateAccessToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}
