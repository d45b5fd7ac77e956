package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Patellll34/RiversideClone/internal/domain"
)

const userKey = "auth_user"

type loginRequest struct {
	Username string `json:"username" binding:"required"`
}

type loginResponse struct {
	Token  string        `json:"token"`
	UserID domain.UserID `json:"user_id"`
}

type authClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Login issues a JWT for a display name. Identity continuity across
// logins is out of scope; every login mints a fresh user id.
func Login(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
			return
		}
		user, err := domain.NewUser(req.Username)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims := authClaims{
			Username: user.Username,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   string(user.ID),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
			return
		}
		c.JSON(http.StatusOK, loginResponse{Token: token, UserID: user.ID})
	}
}

// JWTAuth populates the authenticated user or rejects the request.
func JWTAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			// The websocket endpoint cannot set headers from a browser.
			raw = "Bearer " + c.Query("token")
		}
		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrAuthRequired.Error()})
			return
		}

		var claims authClaims
		token, err := jwt.ParseWithClaims(parts[1], &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrAuthRequired.Error()})
			return
		}

		c.Set(userKey, &domain.User{ID: domain.UserID(claims.Subject), Username: claims.Username})
		c.Next()
	}
}

func currentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok
}
