package middlewares

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"moving-box-tracker/app/server/constants"
	"moving-box-tracker/app/server/jwt"
	"moving-box-tracker/app/server/models"
	"moving-box-tracker/app/server/users"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const ContextKeyUser = "user"

func er(c echo.Context, statusCode int, msg string) error {
	return c.JSON(statusCode, echo.Map{
		"error": msg,
	})
}

// Auth 校验 Bearer token 并解析出对应的用户，挂到 context 上。
// 登录后的批准状态变化不在这里重新检查，令牌在有效期内始终可用。
func Auth(j *jwt.JWT, repo users.Repository, rdb *redis.Client, l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rctx := c.Request().Context()

			// 提取 token
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return er(c, http.StatusUnauthorized, "Missing token")
			}

			splits := strings.Split(authHeader, " ")
			if len(splits) != 2 {
				return er(c, http.StatusUnauthorized, "Invalid token")
			}

			if strings.ToLower(splits[0]) != "bearer" {
				return er(c, http.StatusUnauthorized, "Invalid token")
			}

			// 验证 token
			jwtUser, err := j.ParseUser(splits[1])
			if err != nil {
				// 无效的 token
				return er(c, http.StatusUnauthorized, "Invalid token")
			}

			var user models.User

			// 查询缓存
			cacheKey := fmt.Sprintf(constants.CacheKeyUserInfo, jwtUser.ID)
			if rdb != nil {
				if cacheBytes, err := rdb.Get(rctx, cacheKey).Bytes(); err != nil {
					if !errors.Is(err, redis.Nil) {
						l.Error("failed to query cache for user info", zap.Uint("id", jwtUser.ID), zap.Error(err))
					}
				} else if err = json.Unmarshal(cacheBytes, &user); err != nil {
					l.Error("failed to unmarshal user info", zap.Uint("id", jwtUser.ID), zap.ByteString("cacheBytes", cacheBytes), zap.Error(err))
					// 可能是无效的缓存，清理掉
					rdb.Del(rctx, cacheKey)
				} else {
					// 成功拉取到并格式化
					c.Set(ContextKeyUser, &user)

					// 继续处理
					return next(c)
				}
			}

			// 查询数据库
			resolved, err := repo.FindByID(rctx, jwtUser.ID)
			if err != nil {
				if errors.Is(err, users.ErrNotFound) {
					return er(c, http.StatusUnauthorized, "Invalid user")
				}
				l.Error("failed to resolve user", zap.Uint("id", jwtUser.ID), zap.Error(err))
				return er(c, http.StatusInternalServerError, "Internal server error")
			}

			// 格式化并加入缓存，方便下一次查询
			if rdb != nil {
				if cacheBytes, err := json.Marshal(resolved); err != nil {
					l.Error("failed to marshal user info", zap.Uint("id", jwtUser.ID), zap.Error(err))
				} else {
					rdb.Set(rctx, cacheKey, cacheBytes, constants.CacheExpireUserInfo)
				}
			}

			// 设置 context
			c.Set(ContextKeyUser, resolved)

			// 继续处理
			return next(c)
		}
	}
}

// RequireRole 要求当前用户的角色与给定角色完全一致，不做角色层级
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get(ContextKeyUser).(*models.User)
			if !ok {
				return er(c, http.StatusUnauthorized, "Missing token")
			}

			if user.Role != role {
				return er(c, http.StatusForbidden, "Forbidden: insufficient permissions")
			}

			return next(c)
		}
	}
}
