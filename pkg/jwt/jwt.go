package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Portal roles carried in the token
const (
	RoleLawyer = "lawyer"
	RoleClient = "client"
)

// Claims represents JWT claims structure.
// Tokens are issued by the identity provider; this service only validates them.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"` // lawyer, client
	jwt.RegisteredClaims
}

// JWTManager handles JWT token operations
type JWTManager struct {
	secretKey           string
	audience            string
	accessTokenDuration time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secretKey, audience string, accessTokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:           secretKey,
		audience:            audience,
		accessTokenDuration: accessTokenDuration,
	}
}

// GenerateAccessToken creates a signed access token. Used by local tooling
// and tests; production tokens come from the identity provider.
func (m *JWTManager) GenerateAccessToken(userID, email, name, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "portal-auth",
			Subject:   userID,
			Audience:  jwt.ClaimStrings{m.audience},
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates and parses JWT token, including its audience
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secretKey), nil
	}, jwt.WithAudience(m.audience))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user_id")
	}
	if claims.Role != RoleLawyer && claims.Role != RoleClient {
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}

	return claims, nil
}
