package handlers

import (
	"errors"
	"net/http"

	"moving-box-tracker/app/server/boxstore"
	"moving-box-tracker/app/server/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// boxValidate 服务端校验必填字段，不信任前端的校验
func (a *App) boxValidate(box *models.Box) string {
	if box.Label.Text == "" {
		return "Label text is required."
	}
	if box.Destination == "" {
		return "Destination is required."
	}
	if len(box.Items) == 0 {
		return "At least one item is required."
	}
	return ""
}

func (a *App) BoxList(c echo.Context) error {
	return c.JSON(http.StatusOK, a.boxes.List())
}

func (a *App) BoxCreate(c echo.Context) error {
	// 绑定请求体
	var box models.Box
	if err := c.Bind(&box); err != nil {
		a.l.Error("failed to bind json body", zap.Error(err))
		return a.er(c, http.StatusBadRequest, "")
	}

	if msg := a.boxValidate(&box); msg != "" {
		return a.er(c, http.StatusBadRequest, msg)
	}

	// 创建（ ID 由存储生成，忽略请求里带的）
	id, err := a.boxes.Create(box)
	if err != nil {
		a.l.Error("failed to create box", zap.Error(err))
		return a.er(c, http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Box added",
		"id":      id,
	})
}

func (a *App) BoxUpdate(c echo.Context) error {
	id := c.Param("id")

	// 绑定请求体
	var box models.Box
	if err := c.Bind(&box); err != nil {
		a.l.Error("failed to bind json body", zap.Error(err))
		return a.er(c, http.StatusBadRequest, "")
	}

	if msg := a.boxValidate(&box); msg != "" {
		return a.er(c, http.StatusBadRequest, msg)
	}

	// 全量替换，只保留 ID
	if err := a.boxes.Update(id, box); err != nil {
		if errors.Is(err, boxstore.ErrNotFound) {
			return a.er(c, http.StatusNotFound, "Box not found")
		}
		a.l.Error("failed to update box", zap.String("id", id), zap.Error(err))
		return a.er(c, http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Box updated",
	})
}

func (a *App) BoxDelete(c echo.Context) error {
	id := c.Param("id")

	removed, err := a.boxes.Delete(id)
	if err != nil {
		if errors.Is(err, boxstore.ErrNotFound) {
			return a.er(c, http.StatusNotFound, "Box not found")
		}
		a.l.Error("failed to delete box", zap.String("id", id), zap.Error(err))
		return a.er(c, http.StatusInternalServerError, "Server error")
	}

	// 尽力清理关联的图片文件，失败只记录不影响响应
	if removed.Photo != "" {
		if err := a.ingest.Remove(removed.Photo); err != nil {
			a.l.Warn("failed to remove box photo", zap.String("id", id), zap.String("photo", removed.Photo), zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Box deleted",
	})
}
