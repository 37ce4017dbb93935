package handlers

import (
	"errors"
	"net/http"
	"strings"

	"moving-box-tracker/app/server/models"
	"moving-box-tracker/app/server/users"

	"github.com/alexedwards/argon2id"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *App) AuthRegister(c echo.Context) error {
	rctx := c.Request().Context()

	// 绑定请求体
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		a.l.Error("failed to bind json body", zap.Error(err))
		return a.er(c, http.StatusBadRequest, "")
	}

	if req.Username == "" || req.Password == "" {
		return a.er(c, http.StatusBadRequest, "Username and password are required.")
	}

	// 只允许指定域名的邮箱注册
	if !strings.HasSuffix(req.Username, "@"+a.allowedDomain) {
		return a.er(c, http.StatusBadRequest, "Only @"+a.allowedDomain+" emails are allowed.")
	}

	// 处理密码
	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		a.l.Error("failed to hash password", zap.Error(err))
		return a.er(c, http.StatusInternalServerError, "Registration failed.")
	}

	// 创建用户：默认角色 viewer ，待管理员批准后才能登录
	user := models.User{
		Username: req.Username,
		Password: passwordHash,
		Role:     models.RoleViewer,
		Approved: false,
	}
	if err := a.users.Create(rctx, &user); err != nil {
		if errors.Is(err, users.ErrDuplicate) {
			return a.er(c, http.StatusConflict, "Email already registered.")
		}
		a.l.Error("failed to create user", zap.String("username", req.Username), zap.Error(err))
		return a.er(c, http.StatusInternalServerError, "Registration failed.")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Registration successful. Awaiting admin approval.",
	})
}
