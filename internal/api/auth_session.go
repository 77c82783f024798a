package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	adminRole             = "admin"
	sessionCookiePurpose  = "session"
	sessionTokenIssuer    = "labnotes"
	sessionTokenAudience  = "labnotes-admin"
	sessionTokenClockSkew = 30 * time.Second
)

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (handler *Handler) buildSessionToken(now time.Time, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	claims := sessionClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionTokenIssuer,
			Subject:   adminRole,
			Audience:  jwt.ClaimStrings{sessionTokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(handler.secretKey)
}

func (handler *Handler) parseSessionToken(raw string, now time.Time) error {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return handler.secretKey, nil
	},
		jwt.WithIssuer(sessionTokenIssuer),
		jwt.WithAudience(sessionTokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(sessionTokenClockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !token.Valid {
		return errors.New("invalid session token")
	}
	if claims.Role != adminRole {
		return errors.New("session is not an admin session")
	}
	return nil
}

func (handler *Handler) setSessionCookie(c *fiber.Ctx) error {
	now := handler.now()
	token, err := handler.buildSessionToken(now, defaultSessionTTL)
	if err != nil {
		return err
	}
	sealed, err := handler.cookieCodec.seal(sessionCookiePurpose, []byte(token))
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    sealed,
		Path:     "/",
		HTTPOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: "Lax",
		Expires:  now.Add(defaultSessionTTL),
	})
	return nil
}

func (handler *Handler) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: "Lax",
		Expires:  time.Now().Add(-1 * time.Hour),
	})
}

func (handler *Handler) hasAdminSession(c *fiber.Ctx) bool {
	raw := strings.TrimSpace(c.Cookies(sessionCookieName))
	if raw == "" {
		return false
	}
	token, err := handler.cookieCodec.open(sessionCookiePurpose, raw)
	if err != nil {
		return false
	}
	return handler.parseSessionToken(string(token), handler.now()) == nil
}
