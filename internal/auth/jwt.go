package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL matches the gateway-facing session length: short enough that a
// stolen token goes stale quickly, long enough to survive a PayPal redirect
// round trip.
const tokenTTL = 30 * time.Minute

// Claims is what we carry inside a token besides the standard fields.
type Claims struct {
	UserID int64
	Name   string
	Role   string
	Email  string
}

func secretKey() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("dev-only-secret-change-me")
}

// GenerateToken creates a signed JWT for a user. "sub" carries the user ID;
// name, role and email ride along so the frontend can render without an
// extra profile call.
func GenerateToken(userID int64, name, role, email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"name":  name,
		"role":  role,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	}
	if iss := os.Getenv("JWT_ISSUER"); iss != "" {
		claims["iss"] = iss
	}
	if aud := os.Getenv("JWT_AUDIENCE"); aud != "" {
		claims["aud"] = aud
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey())
}

// ValidateToken parses and validates a token string and returns its claims.
// Expiry is enforced by the parser; issuer/audience are enforced here when
// configured.
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if iss := os.Getenv("JWT_ISSUER"); iss != "" {
		if got, _ := claims["iss"].(string); got != iss {
			return nil, errors.New("invalid issuer")
		}
	}
	if aud := os.Getenv("JWT_AUDIENCE"); aud != "" {
		if got, _ := claims["aud"].(string); got != aud {
			return nil, errors.New("invalid audience")
		}
	}

	// JSON numbers decode as float64.
	sub, ok := claims["sub"].(float64)
	if !ok {
		return nil, errors.New("invalid subject claim")
	}

	out := &Claims{UserID: int64(sub)}
	out.Name, _ = claims["name"].(string)
	out.Role, _ = claims["role"].(string)
	out.Email, _ = claims["email"].(string)
	return out, nil
}
