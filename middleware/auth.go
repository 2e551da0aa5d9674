package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SellerHub/pkg/config"
	tokenstore "SellerHub/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextUserIDKey = "current_user_id"
	ContextJTIKey    = "current_jti"
	ContextExpKey    = "current_exp"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token has been revoked (logout)")
)

// Session is what a valid admin JWT carries.
type Session struct {
	UserID    string
	JTI       string
	ExpiresAt time.Time
}

// IssueToken signs a session token for uid valid for ttl.
func IssueToken(uid uint, jti string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(uid), 10),
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
		"jti": jti,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.JWTSecret))
	return tok, exp, err
}

// ParseToken validates an HS256 token and checks it was not logged out.
func ParseToken(tokenStr string) (*Session, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		// only accept HMAC signing
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	jti, _ := claims["jti"].(string)
	if tokenstore.IsRevoked(jti) {
		return nil, ErrRevokedToken
	}

	var uid string
	if sub, ok := claims["sub"].(string); ok {
		uid = sub
	} else if subf, ok := claims["sub"].(float64); ok {
		// jwt lib may parse numeric as float64
		uid = strconv.Itoa(int(subf))
	}
	if uid == "" {
		return nil, ErrInvalidToken
	}

	s := &Session{UserID: uid, JTI: jti}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s, nil
}

// bearer reads the Authorization header, falling back to ?token= for
// EventSource and WebSocket clients that cannot set headers.
func bearer(c *gin.Context) (string, bool) {
	if auth := c.GetHeader("Authorization"); auth != "" {
		parts := strings.Fields(auth)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", false
		}
		return parts[1], true
	}
	if q := strings.TrimSpace(c.Query("token")); q != "" {
		return q, true
	}
	return "", false
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			msg := "missing authorization header"
			if c.GetHeader("Authorization") != "" {
				msg = "invalid authorization header"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": msg})
			return
		}
		s, err := ParseToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}
		c.Set(ContextUserIDKey, s.UserID)
		c.Set(ContextJTIKey, s.JTI)
		c.Set(ContextExpKey, s.ExpiresAt)
		c.Next()
	}
}

// CurrentUserID returns the authenticated admin id, or "" outside AuthMiddleware.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextUserIDKey)
	s, _ := v.(string)
	return s
}
