package api

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"msgview/config"
	"msgview/models"
	"msgview/utils"
)

// Claims carried in every access token
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed access token for a user
func GenerateToken(username, role, secret string, expiry time.Duration) (string, error) {
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// parseToken validates a token string and returns its claims
func parseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, utils.UnauthorizedError("Invalid or expired token", err)
	}
	return claims, nil
}

// AuthMiddleware validates the Bearer token and stores the identity in
// request locals
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return utils.UnauthorizedError("Missing bearer token", nil)
		}
		claims, err := parseToken(strings.TrimPrefix(header, "Bearer "), cfg.Auth.JWTSecret)
		if err != nil {
			return err
		}
		c.Locals("username", claims.Username)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}

// RequireAdmin rejects requests whose token lacks the admin role
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		if role != models.RoleAdmin {
			return utils.ForbiddenError("Admin role required", nil)
		}
		return c.Next()
	}
}

// AuthHandler handles login and session introspection
type AuthHandler struct {
	config *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{config: cfg}
}

// LoginRequest is the login form payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin authenticates a configured account and returns a JWT with
// a role claim
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	role, ok := h.authenticate(req.Username, req.Password)
	if !ok {
		return utils.UnauthorizedError("Invalid username or password", nil)
	}

	expiry := time.Duration(h.config.Auth.ExpiryMinutes) * time.Minute
	token, err := GenerateToken(req.Username, role, h.config.Auth.JWTSecret, expiry)
	if err != nil {
		return utils.InternalServerError("Failed to create authentication token", err)
	}

	utils.Log.Info("User %s logged in with role %s", req.Username, role)

	return c.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
		"role":         role,
		"username":     req.Username,
	})
}

// HandleMe returns the current authenticated user
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	username, _ := c.Locals("username").(string)
	role, _ := c.Locals("role").(string)
	return c.JSON(models.User{Username: username, Role: role})
}

// HandleLogout is a stateless ack; clients discard their token
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *AuthHandler) authenticate(username, password string) (string, bool) {
	if username == h.config.Auth.Admin.Username && verifyPassword(h.config.Auth.Admin, password) {
		return models.RoleAdmin, true
	}
	if username == h.config.Auth.Viewer.Username && verifyPassword(h.config.Auth.Viewer, password) {
		return models.RoleViewer, true
	}
	return "", false
}

// verifyPassword checks a password against a configured account; a bcrypt
// hash wins over the plaintext value when both are set
func verifyPassword(account config.AccountConfig, password string) bool {
	if account.PasswordBcrypt != "" {
		return bcrypt.CompareHashAndPassword([]byte(account.PasswordBcrypt), []byte(password)) == nil
	}
	if account.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(account.Password), []byte(password)) == 1
}
