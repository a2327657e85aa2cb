package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/wb-go/wbf/logger"
)

const (
	identityKey     = "identity_id"   // ключ в gin.Context
	roleKey         = "identity_role" // роль из токена
	accessTokenName = "access_token"  // cookie с токеном доступа
)

// RoleOperator - роль служебных клиентов (биллинг, планировщик очистки, аудит)
const RoleOperator = "operator"

// accessClaims - полезная нагрузка токена доступа: sub - пользователь или агент
type accessClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity определяет авторизованного посетителя по HS256 JWT
// из заголовка Authorization: Bearer или cookie access_token;
// без токена или с невалидным токеном посетитель считается анонимным
func Identity(secret string, log logger.Logger) gin.HandlerFunc {

	key := []byte(secret)

	return func(c *gin.Context) {

		if len(key) == 0 {
			c.Next()
			return
		}

		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString, _ = c.Cookie(accessTokenName)
		}
		if tokenString == "" {
			c.Next()
			return
		}

		claims := &accessClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.Subject == "" {
			log.Ctx(c.Request.Context()).Debug("токен посетителя не принят", "error", err)
			c.Next()
			return
		}

		c.Set(identityKey, claims.Subject)
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// RequireIdentity пропускает только запросы с принятым токеном, иначе 401
func RequireIdentity(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		if VisitorIdentity(c) == "" {
			rejectAnonymous(c, log)
			return
		}

		c.Next()
	}
}

// RequireOperator пропускает только токены с ролью operator
func RequireOperator(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		if VisitorIdentity(c) == "" {
			rejectAnonymous(c, log)
			return
		}
		if !isOperator(c) {
			rejectForbidden(c, log)
			return
		}

		c.Next()
	}
}

// RequireAgent пропускает самого агента из :agent_id или оператора
func RequireAgent(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		identity := VisitorIdentity(c)
		if identity == "" {
			rejectAnonymous(c, log)
			return
		}
		if identity != c.Param("agent_id") && !isOperator(c) {
			rejectForbidden(c, log)
			return
		}

		c.Next()
	}
}

// isOperator сообщает, что токен выдан служебному клиенту
func isOperator(c *gin.Context) bool {

	return c.GetString(roleKey) == RoleOperator
}

func rejectAnonymous(c *gin.Context, log logger.Logger) {

	log.Ctx(c.Request.Context()).Warn("запрос без авторизации отклонён", "path", c.FullPath())
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "требуется авторизация"})
}

func rejectForbidden(c *gin.Context, log logger.Logger) {

	log.Ctx(c.Request.Context()).Warn("недостаточно прав",
		"path", c.FullPath(),
		"identity_id", VisitorIdentity(c))
	c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "недостаточно прав"})
}

// VisitorIdentity возвращает идентификатор авторизованного посетителя или пустую строку
func VisitorIdentity(c *gin.Context) string {

	return c.GetString(identityKey)
}

// bearerToken достаёт токен из заголовка вида "Bearer <token>"
func bearerToken(header string) string {

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
