package handlers

import (
	"bytes"
	"case_portal_go/config"
	"case_portal_go/db"
	"case_portal_go/middleware"
	"case_portal_go/models"
	"case_portal_go/services"
	"case_portal_go/services/lifecycle"
	"case_portal_go/services/policy"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Sup3r-Secret-Pass"

func setupTestDB(t *testing.T) *gorm.DB {
	// Unique shared memory name isolates tests while letting async audit writes see the schema
	dsn := "file:mem_" + uuid.New().String() + "?mode=memory&cache=shared&_busy_timeout=5000"
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	assert.NoError(t, err)

	sqlDB, err := testDB.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = testDB.AutoMigrate(
		&models.User{}, &models.Group{}, &models.Session{},
		&models.Case{}, &models.CaseHistory{}, &models.CaseMessage{},
		&models.Notification{}, &models.AuditLog{},
	)
	assert.NoError(t, err)

	// Set global DB used by the session middleware
	db.DB = testDB
	return testDB
}

type stubRenderer struct{}

func (stubRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	return []byte("%PDF-1.4 " + html), nil
}

type testEnv struct {
	e       *echo.Echo
	db      *gorm.DB
	api     *API
	admin   *models.User
	handler *models.User
	citizen *models.User
	other   *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	testDB := setupTestDB(t)
	cfg := &config.Config{Environment: "test", UploadDir: t.TempDir(), EmailTestMode: true}
	files := services.NewLocalStore(cfg.UploadDir)

	cases := services.NewCaseService(testDB, lifecycle.New(),
		services.WithFileStore(files),
		services.WithNotifier(services.MultiNotifier{services.WhatsAppLinkNotifier{}, services.NewInAppNotifier(testDB)}),
		services.WithReportRenderer(stubRenderer{}),
		services.WithMetrics(services.NewMetrics()),
	)
	api := NewAPI(cfg, testDB, cases, files, services.NewMetrics())

	e := echo.New()
	api.RegisterRoutes(e)

	env := &testEnv{e: e, db: testDB, api: api}
	ctx := context.Background()
	var err error

	env.admin, err = api.Accounts.CreateSuperuser(ctx, services.NewAccount{Username: "admin", Password: testPassword})
	assert.NoError(t, err)
	adminP := policy.PrincipalFor(env.admin)

	env.handler, err = api.Accounts.AddHandler(ctx, adminP, services.NewAccount{
		Username: "officer", Email: "officer@example.com", Password: testPassword, PhoneNumber: "+254 700 000 001",
	})
	assert.NoError(t, err)

	env.citizen, err = api.Accounts.RegisterUser(ctx, services.NewAccount{Username: "citizen", Password: testPassword})
	assert.NoError(t, err)
	env.other, err = api.Accounts.RegisterUser(ctx, services.NewAccount{Username: "neighbour", Password: testPassword})
	assert.NoError(t, err)

	return env
}

// login creates a session directly, bypassing the rate-limited endpoint
func (env *testEnv) login(t *testing.T, u *models.User) *http.Cookie {
	session, err := services.CreateSession(env.db, u.ID, "127.0.0.1", "test")
	assert.NoError(t, err)
	return &http.Cookie{Name: middleware.SessionCookieName, Value: session.Token}
}

func (env *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(t *testing.T, method, path string, payload interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		assert.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return env.do(t, method, path, body, echo.MIMEApplicationJSON, cookie)
}

// doJSONFrom posts JSON from a given client address so login tests get their own rate-limit window
func (env *testEnv) doJSONFrom(t *testing.T, ip, path string, payload interface{}) *httptest.ResponseRecorder {
	raw, err := json.Marshal(payload)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// multipartBody builds a form with optional file part; fileField empty means no file
func multipartBody(t *testing.T, fields map[string]string, fileField, fileName, fileContent string) (io.Reader, string) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		assert.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		assert.NoError(t, err)
		_, err = io.Copy(part, strings.NewReader(fileContent))
		assert.NoError(t, err)
	}
	assert.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// createCase registers a case as u and returns its id
func (env *testEnv) createCase(t *testing.T, u *models.User, title string, anonymous bool) string {
	fields := map[string]string{"title": title, "description": "Details of " + title}
	if anonymous {
		fields["is_anonymous"] = "true"
	}
	body, ct := multipartBody(t, fields, "", "", "")
	rec := env.do(t, http.MethodPost, "/api/cases", body, ct, env.login(t, u))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view caseView
	decode(t, rec, &view)
	return view.ID
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	var body struct {
		Message string `json:"message"`
	}
	decode(t, rec, &body)
	return body.Message
}
