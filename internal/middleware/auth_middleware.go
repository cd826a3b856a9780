package middleware

import (
	"net/http"
	"strings"

	"family-taxi/internal/models"
	"family-taxi/internal/services"
	"family-taxi/internal/utils"

	"github.com/gin-gonic/gin"
)

// Ключи контекста gin, которые выставляет JWTAuth
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextClaims = "claims"
)

// JWTAuth проверяет Bearer токен и кладёт в контекст принципала запроса.
// Для WebSocket рукопожатия токен можно передать в параметре ?token=,
// так как браузер не умеет ставить заголовки при апгрейде.
func JWTAuth(jwt *utils.JWTManager, revoker services.TokenRevoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "Отсутствует токен авторизации")
			return
		}

		claims, err := jwt.Validate(tokenString)
		if err != nil {
			abortUnauthorized(c, "Недействительный токен")
			return
		}

		if revoker != nil && claims.ID != "" {
			revoked, err := revoker.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				// Redis недоступен: пропускаем, токен всё ещё подписан и не истёк
				_ = c.Error(err)
			} else if revoked {
				abortUnauthorized(c, "Токен отозван")
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireRole пропускает только перечисленные роли
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := Principal(c)
		if !ok {
			abortUnauthorized(c, services.ErrNotAuthenticated.Error())
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": services.ErrNotAuthorized.Error()})
	}
}

// Principal достаёт пользователя, выставленного JWTAuth
func Principal(c *gin.Context) (models.Principal, bool) {
	id, ok := c.Get(ContextUserID)
	if !ok {
		return models.Principal{}, false
	}
	userID, ok := id.(uint)
	if !ok || userID == 0 {
		return models.Principal{}, false
	}
	role, _ := c.Get(ContextRole)
	r, _ := role.(models.Role)
	return models.Principal{UserID: userID, Role: r}, true
}

// Claims возвращает разобранный токен текущего запроса
func Claims(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		if token := c.Query("token"); token != "" {
			return token, true
		}
	}
	return "", false
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
