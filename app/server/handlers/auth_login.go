package handlers

import (
	"errors"
	"net/http"
	"time"

	"moving-box-tracker/app/server/constants"
	"moving-box-tracker/app/server/jwt"
	"moving-box-tracker/app/server/users"

	"github.com/alexedwards/argon2id"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *App) AuthLogin(c echo.Context) error {
	rctx := c.Request().Context()

	// 绑定请求体
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		a.l.Error("failed to bind json body", zap.Error(err))
		return a.er(c, http.StatusBadRequest, "")
	}

	// 未知用户和密码错误返回同样的信息，避免探测已注册的邮箱
	user, err := a.users.FindByUsername(rctx, req.Username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return a.er(c, http.StatusUnauthorized, "Invalid credentials")
		}
		a.l.Error("failed to find user", zap.Error(err))
		return a.er(c, http.StatusInternalServerError, "")
	}

	// 提取密码 hash 并进行校验
	if match, _, err := argon2id.CheckHash(req.Password, user.Password); err != nil {
		a.l.Error("failed to check password", zap.Error(err))
		return a.er(c, http.StatusInternalServerError, "")
	} else if !match {
		// 密码不一致
		return a.er(c, http.StatusUnauthorized, "Invalid credentials")
	}

	// 批准状态只在登录时检查
	if !user.Approved {
		return a.er(c, http.StatusForbidden, "Account pending admin approval.")
	}

	// 签出 JWT
	expires := time.Now().Add(constants.AuthTokenDuration)
	token, err := a.jwt.SignToken(&jwt.User{
		ID:      user.ID,
		Role:    user.Role,
		Expires: expires.Unix(),
	})
	if err != nil {
		a.l.Error("failed to sign token", zap.Error(err))
		return a.er(c, http.StatusInternalServerError, "")
	}

	// 返回
	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
	})
}
