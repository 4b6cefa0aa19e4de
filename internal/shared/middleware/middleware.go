package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fanclub/internal/shared/config"
	"fanclub/internal/shared/utils/response"
	"fanclub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	HeaderClubID    = "X-Club-ID"
	HeaderRequestID = "X-Request-ID"
)

// FanClaims are the claims of a fan access token. ClubID scopes the token
// to one tenant.
type FanClaims struct {
	UserID string `json:"user_id"`
	ClubID string `json:"club_id"`
	Email  string `json:"email,omitempty"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// IssueAccessToken signs an access token for a fan of a club
func IssueAccessToken(cfg *config.Config, userID, clubID, email string) (string, error) {
	if userID == "" || clubID == "" {
		return "", errors.New("user id and club id are required")
	}
	now := time.Now()
	claims := FanClaims{
		UserID: userID,
		ClubID: clubID,
		Email:  email,
		Type:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.JWT.JWTExpiresIn)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.Secret))
}

func parseAccessToken(cfg *config.Config, tokenString string) (*FanClaims, error) {
	claims := &FanClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}
	if claims.Type != "access" {
		return nil, fmt.Errorf("invalid token type")
	}
	if claims.UserID == "" || claims.ClubID == "" {
		return nil, fmt.Errorf("token is missing fan claims")
	}
	return claims, nil
}

// FanAuth requires a bearer access token whose club matches the X-Club-ID
// header. It sets user_id, club_id and user_email on the context.
func FanAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		reject := func(code int, reason string) {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), reason, c.ClientIP())
			response.RespondJSON(c, "error", code, reason, nil, nil)
			c.Abort()
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			reject(http.StatusUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			reject(http.StatusUnauthorized, "authorization header format must be Bearer {token}")
			return
		}

		claims, err := parseAccessToken(cfg, parts[1])
		if err != nil {
			reject(http.StatusUnauthorized, err.Error())
			return
		}

		clubID := c.GetHeader(HeaderClubID)
		if clubID == "" {
			reject(http.StatusUnauthorized, "X-Club-ID header is required")
			return
		}
		if clubID != claims.ClubID {
			reject(http.StatusForbidden, "token does not belong to this club")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("club_id", claims.ClubID)
		c.Set("user_email", claims.Email)
		c.Next()
	}
}

// RequestLogger tags each request with an id and logs it when done
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		c.Next()

		reqLog := log.WithRequestID(requestID)
		if userID := c.GetString("user_id"); userID != "" {
			reqLog = reqLog.WithUserID(userID).WithClubID(c.GetString("club_id"))
		}
		reqLog.LogHTTPRequest(c, time.Since(start))
		if len(c.Errors) > 0 {
			reqLog.LogHTTPError(c, c.Errors.Last(), c.Writer.Status())
		}
	}
}
