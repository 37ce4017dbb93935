package handlers

import (
	"errors"
	"net/http"

	"moving-box-tracker/app/server/ingest"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (a *App) Upload(c echo.Context) error {
	// 提取上传的文件
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return a.er(c, http.StatusBadRequest, "No file uploaded")
	}

	file, err := fileHeader.Open()
	if err != nil {
		a.l.Error("failed to open uploaded file", zap.Error(err))
		return a.er(c, http.StatusInternalServerError, "Server error")
	}
	defer file.Close()

	// 归一化并保存
	filename, err := a.ingest.Ingest(file, fileHeader.Header.Get("Content-Type"), fileHeader.Size)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnsupportedMediaType):
			return a.er(c, http.StatusBadRequest, "Only image files are allowed")
		case errors.Is(err, ingest.ErrEmptyUpload):
			return a.er(c, http.StatusBadRequest, "No file uploaded")
		default:
			a.l.Error("failed to ingest image", zap.String("filename", fileHeader.Filename), zap.Error(err))
			return a.er(c, http.StatusInternalServerError, "Image processing failed")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"filename": filename,
	})
}
