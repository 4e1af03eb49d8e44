package service

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie the identity provider sets for browser sessions.
const SessionCookie = "__session"

var ErrInvalidSession = errors.New("invalid session token")

// Identity is the caller as asserted by the identity provider's session token.
type Identity struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
}

// AuthService verifies HS256 session tokens signed with the secret shared with
// the identity provider. It can also mint tokens for development.
type AuthService struct {
	jwtSecret    string
	jwtExpiry    time.Duration
	isProduction bool
	now          func() time.Time
}

func NewAuthService(jwtSecret string, jwtExpiry time.Duration, isProduction bool) *AuthService {
	return &AuthService{
		jwtSecret:    jwtSecret,
		jwtExpiry:    jwtExpiry,
		isProduction: isProduction,
		now:          time.Now,
	}
}

func (s *AuthService) GenerateJWT(id Identity) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":         id.UserID,
		"email":       id.Email,
		"given_name":  id.FirstName,
		"family_name": id.LastName,
		"exp":         now.Add(s.jwtExpiry).Unix(),
		"iat":         now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (s *AuthService) VerifyJWT(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}

	id := &Identity{UserID: sub}
	id.Email, _ = claims["email"].(string)
	id.FirstName, _ = claims["given_name"].(string)
	id.LastName, _ = claims["family_name"].(string)
	return id, nil
}

func (s *AuthService) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}
