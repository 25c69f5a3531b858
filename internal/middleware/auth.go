package middleware

import (
	"strings"

	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminMiddleware 保护导入、清空等写操作。
// secret 为空时不校验（本地单机使用），启动时已给出警告
func AdminMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, secret)
		if err != nil {
			logger.Log.Debug("Rejected admin token", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if claims.Role != util.RoleAdmin {
			util.Forbidden(c)
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}
