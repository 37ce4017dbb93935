package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"moving-box-tracker/app/server/boxstore"
	"moving-box-tracker/app/server/ingest"
	"moving-box-tracker/app/server/jwt"
	"moving-box-tracker/app/server/middlewares"
	"moving-box-tracker/app/server/models"
	"moving-box-tracker/app/server/users"

	"github.com/alexedwards/argon2id"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testApp struct {
	e          *echo.Echo
	repo       *users.MemoryRepository
	boxes      *boxstore.Store
	uploadsDir string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	l := zap.NewNop()
	repo := users.NewMemoryRepository()

	dir := t.TempDir()
	boxes, err := boxstore.Load(filepath.Join(dir, "boxes.json"))
	require.NoError(t, err)

	uploadsDir := filepath.Join(dir, "uploads")
	ig, err := ingest.New(uploadsDir, l)
	require.NoError(t, err)

	j, err := jwt.New("test-secret")
	require.NoError(t, err)

	app := NewApp(l, repo, boxes, ig, j, "lja.com")

	e := echo.New()
	app.RegisterRoutes(e, middlewares.Auth(j, repo, nil, l))

	return &testApp{
		e:          e,
		repo:       repo,
		boxes:      boxes,
		uploadsDir: uploadsDir,
	}
}

func (ta *testApp) doJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ta.e.ServeHTTP(rec, req)
	return rec
}

// register + 线下批准 + login ，返回可用的 token
func (ta *testApp) registerApproved(t *testing.T, username, password, role string) string {
	t.Helper()

	rec := ta.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.True(t, ta.repo.Approve(username, role))

	rec = ta.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func validBoxBody() map[string]any {
	return map[string]any{
		"label":       map[string]string{"color": "red", "text": "Books"},
		"items":       []string{"book1"},
		"destination": "Denver",
	}
}

func TestRegisterRejectsOtherDomains(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "a@example.com",
		"password": "pw1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "lja.com")
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "a@lja.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterStoresHashedSecret(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "a@lja.com",
		"password": "pw1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	user, err := ta.repo.FindByUsername(context.Background(), "a@lja.com")
	require.NoError(t, err)

	// 存的不是明文，并且 hash 能校验通过
	assert.NotEqual(t, "pw1", user.Password)
	match, _, err := argon2id.CheckHash("pw1", user.Password)
	require.NoError(t, err)
	assert.True(t, match)

	// 默认角色和批准状态
	assert.Equal(t, models.RoleViewer, user.Role)
	assert.False(t, user.Approved)
}

func TestRegisterDuplicate(t *testing.T) {
	ta := newTestApp(t)

	body := map[string]string{"username": "a@lja.com", "password": "pw1"}
	rec := ta.doJSON(http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ta.doJSON(http.MethodPost, "/api/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginEnumerationSafe(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "a@lja.com",
		"password": "pw1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// 未知用户与密码错误返回完全相同的响应
	unknown := ta.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "missing@lja.com",
		"password": "pw1",
	})
	wrongPassword := ta.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "a@lja.com",
		"password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, unknown.Body.String(), wrongPassword.Body.String())
}

func TestLoginPendingApproval(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "a@lja.com",
		"password": "pw1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// 正确的密码也不行，必须先批准
	rec = ta.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "a@lja.com",
		"password": "pw1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "token")
}

func TestBoxesRequireAuth(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.doJSON(http.MethodGet, "/api/boxes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ta.doJSON(http.MethodGet, "/api/boxes", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsTokenForDeletedUser(t *testing.T) {
	ta := newTestApp(t)

	// 签名有效但 subject 在用户存储里不存在
	j, err := jwt.New("test-secret")
	require.NoError(t, err)
	token, err := j.SignToken(&jwt.User{ID: 7, Role: models.RoleViewer, Expires: time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)

	rec := ta.doJSON(http.MethodGet, "/api/boxes", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestViewerCannotMutate(t *testing.T) {
	ta := newTestApp(t)
	viewer := ta.registerApproved(t, "v@lja.com", "pw1", models.RoleViewer)

	rec := ta.doJSON(http.MethodPost, "/api/boxes", viewer, validBoxBody())
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.doJSON(http.MethodPut, "/api/boxes/some-id", viewer, validBoxBody())
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.doJSON(http.MethodDelete, "/api/boxes/some-id", viewer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 读取不限制角色
	rec = ta.doJSON(http.MethodGet, "/api/boxes", viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBoxCreateValidation(t *testing.T) {
	ta := newTestApp(t)
	token := ta.registerApproved(t, "c@lja.com", "pw1", models.RoleContributor)

	for name, body := range map[string]map[string]any{
		"missing label text": {
			"label":       map[string]string{"color": "red"},
			"items":       []string{"book1"},
			"destination": "Denver",
		},
		"missing destination": {
			"label": map[string]string{"color": "red", "text": "Books"},
			"items": []string{"book1"},
		},
		"empty items": {
			"label":       map[string]string{"color": "red", "text": "Books"},
			"items":       []string{},
			"destination": "Denver",
		},
	} {
		rec := ta.doJSON(http.MethodPost, "/api/boxes", token, body)
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "case %q: %s", name, rec.Body.String())
	}
}

func TestBoxCRUDScenario(t *testing.T) {
	ta := newTestApp(t)
	token := ta.registerApproved(t, "c@lja.com", "pw1", models.RoleContributor)

	// 创建
	rec := ta.doJSON(http.MethodPost, "/api/boxes", token, validBoxBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	// 列表里能看到
	rec = ta.doJSON(http.MethodGet, "/api/boxes", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []models.Box
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, "Books", list[0].Label.Text)
	assert.Equal(t, "Denver", list[0].Destination)

	// 全量更新
	update := validBoxBody()
	update["destination"] = "Boulder"
	update["carrier"] = "UPS"
	rec = ta.doJSON(http.MethodPut, "/api/boxes/"+created.ID, token, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	box, err := ta.boxes.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Boulder", box.Destination)
	assert.Equal(t, "UPS", box.Carrier)

	// 未知 ID
	rec = ta.doJSON(http.MethodPut, "/api/boxes/unknown-id", token, update)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// 删除
	rec = ta.doJSON(http.MethodDelete, "/api/boxes/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ta.doJSON(http.MethodGet, "/api/boxes", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)

	rec = ta.doJSON(http.MethodDelete, "/api/boxes/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (ta *testApp) doUpload(t *testing.T, token, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="photo"; filename="photo.png"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ta.e.ServeHTTP(rec, req)
	return rec
}

func (ta *testApp) uploadedFiles(t *testing.T) []string {
	t.Helper()

	entries, err := os.ReadDir(ta.uploadsDir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestUploadRequiresAuth(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.doUpload(t, "", "image/png", pngBytes(t))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadRejectsNonImage(t *testing.T) {
	ta := newTestApp(t)
	token := ta.registerApproved(t, "v@lja.com", "pw1", models.RoleViewer)

	rec := ta.doUpload(t, token, "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 被拒绝的上传不会在图片目录留下任何文件
	assert.Empty(t, ta.uploadedFiles(t))
}

func TestUploadNormalizesImage(t *testing.T) {
	ta := newTestApp(t)
	token := ta.registerApproved(t, "v@lja.com", "pw1", models.RoleViewer)

	rec := ta.doUpload(t, token, "image/png", pngBytes(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Filename string `json:"filename"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Filename)

	assert.Equal(t, []string{resp.Filename}, ta.uploadedFiles(t))
}

func TestDeleteBoxRemovesArtifact(t *testing.T) {
	ta := newTestApp(t)
	token := ta.registerApproved(t, "c@lja.com", "pw1", models.RoleContributor)

	rec := ta.doUpload(t, token, "image/png", pngBytes(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var upload struct {
		Filename string `json:"filename"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upload))

	body := validBoxBody()
	body["photo"] = upload.Filename
	rec = ta.doJSON(http.MethodPost, "/api/boxes", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = ta.doJSON(http.MethodDelete, "/api/boxes/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// 删除箱子的同时清掉关联的图片文件
	assert.Empty(t, ta.uploadedFiles(t))
}

func TestHealthcheck(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.doJSON(http.MethodGet, "/api/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
