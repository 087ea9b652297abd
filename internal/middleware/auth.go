package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Longt00/company-sub000/internal/http/response"
	"github.com/Longt00/company-sub000/internal/platform/logger"
)

// CallerIDKey is the gin context key under which the authenticated caller's
// id is stored.
const CallerIDKey = "caller_id"

// AuthMiddleware parses bearer tokens into a caller identity. Identity
// lookup lives with the external auth collaborator; here we only verify the
// token and extract the subject.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{
		log:    log.With("middleware", "AuthMiddleware"),
		secret: []byte(secret),
	}
}

// RequireAuth rejects requests without a valid bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID, err := am.callerFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorEnvelope{
				Error: response.APIError{Message: err.Error(), Code: "unauthorized"},
			})
			return
		}
		c.Set(CallerIDKey, callerID)
		c.Next()
	}
}

func (am *AuthMiddleware) callerFromRequest(c *gin.Context) (uuid.UUID, error) {
	tokenString := extractToken(c)
	if tokenString == "" {
		return uuid.Nil, fmt.Errorf("missing or invalid token")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return am.secret, nil
	})
	if err != nil || !token.Valid {
		am.log.Debug("Token rejected", "error", err)
		return uuid.Nil, fmt.Errorf("invalid token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, fmt.Errorf("token missing subject")
	}
	callerID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token subject is not an id")
	}
	return callerID, nil
}

func extractToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

// CallerID reads the authenticated caller from the gin context. Nil when
// the request was anonymous.
func CallerID(c *gin.Context) *uuid.UUID {
	v, ok := c.Get(CallerIDKey)
	if !ok {
		return nil
	}
	id, ok := v.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return nil
	}
	return &id
}
