package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"moving-box-tracker/app/server/constants"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrEmptyUpload          = errors.New("empty upload")
)

// Ingestor 把上传的图片归一化成统一的 JPEG 后落盘。
// 每个请求相互独立，但同时进行的归一化数量有上限，防止大量并发上传占满内存。
type Ingestor struct {
	dir string
	l   *zap.Logger
	sem chan struct{}
}

func New(dir string, l *zap.Logger) (*Ingestor, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}

	return &Ingestor{
		dir: dir,
		l:   l,
		sem: make(chan struct{}, constants.UploadMaxConcurrent),
	}, nil
}

// Ingest 校验、归一化并保存一张图片，返回可用于构造访问地址的文件名。
// 原始上传内容不会被保留。
func (ig *Ingestor) Ingest(r io.Reader, declaredType string, size int64) (string, error) {
	if !strings.HasPrefix(declaredType, "image/") {
		return "", ErrUnsupportedMediaType
	}
	if size == 0 {
		return "", ErrEmptyUpload
	}

	ig.sem <- struct{}{}
	defer func() { <-ig.sem }()

	// 解码时修正 EXIF 方向
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// 先编码到临时文件，成功后再改名到最终文件名
	tmp, err := os.CreateTemp(ig.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(constants.UploadJPEGQuality)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	// 时间前缀 + 随机判别段，避免文件名冲突
	filename := fmt.Sprintf("%d-%s.jpg", time.Now().UnixMilli(), uuid.NewString()[:8])
	if err := os.Rename(tmp.Name(), filepath.Join(ig.dir, filename)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to place artifact: %w", err)
	}

	ig.l.Debug("image normalized", zap.String("filename", filename))

	return filename, nil
}

// Remove 删除一个已保存的图片文件
func (ig *Ingestor) Remove(filename string) error {
	if filename == "" {
		return nil
	}

	// 只允许删除目录内的文件
	return os.Remove(filepath.Join(ig.dir, filepath.Base(filename)))
}
