package api

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/terraincognita07/labnotes/internal/db"
	"github.com/terraincognita07/labnotes/internal/markdown"
	"github.com/terraincognita07/labnotes/internal/services"
	"github.com/terraincognita07/labnotes/internal/uploads"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecretKey      = "labnotes-test-secret-key-0123456789abcdef"
	testAdminPassword  = "pipette-and-notebook"
	testMaxUploadBytes = 1 << 20
)

type apiTestEnv struct {
	app       *fiber.App
	handler   *Handler
	repo      *db.EntryRepository
	store     *uploads.Store
	publisher *services.PublishingService
}

type testFile struct {
	field    string
	filename string
	content  []byte
}

func newAPITestEnv(t *testing.T) apiTestEnv {
	t.Helper()
	return newAPITestEnvWithCSRF(t, false)
}

func newAPITestEnvWithCSRF(t *testing.T, withCSRF bool) apiTestEnv {
	t.Helper()

	_, testFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("resolve current test file path")
	}
	apiDir := filepath.Dir(testFile)
	templatesDir := filepath.Join(filepath.Dir(apiDir), "templates")
	staticDir := filepath.Join(filepath.Dir(filepath.Dir(apiDir)), "web", "static")

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "labnotes-api-test.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("open sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	store, err := uploads.NewStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("open upload store: %v", err)
	}

	repo := db.NewEntryRepository(database)
	timeline := services.NewTimelineService(repo, markdown.NewRenderer())
	publisher := services.NewPublishingService(services.NewEntryTransactor(repo), store, testMaxUploadBytes, nil)

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}

	handler, err := NewHandler(timeline, publisher, Options{
		TemplateDir:       templatesDir,
		SecretKey:         testSecretKey,
		AdminPasswordHash: string(passwordHash),
		Location:          time.UTC,
		MaxUploadBytes:    testMaxUploadBytes,
		EntriesPerPage:    2,
	})
	if err != nil {
		t.Fatalf("init handler: %v", err)
	}

	app := fiber.New(fiber.Config{BodyLimit: RequestBodyLimit(testMaxUploadBytes)})
	if withCSRF {
		app.Use(csrf.New(CSRFConfig(false)))
	}
	RegisterStaticRoutes(app, staticDir, store.Root())
	RegisterRoutes(app, handler)
	RegisterNotFound(app, handler)

	return apiTestEnv{
		app:       app,
		handler:   handler,
		repo:      repo,
		store:     store,
		publisher: publisher,
	}
}

func (env apiTestEnv) do(t *testing.T, request *http.Request) *http.Response {
	t.Helper()
	response, err := env.app.Test(request, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", request.Method, request.URL.Path, err)
	}
	t.Cleanup(func() {
		_ = response.Body.Close()
	})
	return response
}

func (env apiTestEnv) get(t *testing.T, path string, cookie string) *http.Response {
	t.Helper()
	request := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		request.Header.Set("Cookie", cookie)
	}
	return env.do(t, request)
}

func (env apiTestEnv) postForm(t *testing.T, path string, cookie string, form url.Values) *http.Response {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		request.Header.Set("Cookie", cookie)
	}
	return env.do(t, request)
}

func (env apiTestEnv) postMultipart(t *testing.T, path string, cookie string, fields url.Values, files []testFile) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, values := range fields {
		for _, value := range values {
			if err := writer.WriteField(key, value); err != nil {
				t.Fatalf("write field %s: %v", key, err)
			}
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			t.Fatalf("create form file %s: %v", file.field, err)
		}
		if _, err := part.Write(file.content); err != nil {
			t.Fatalf("write form file %s: %v", file.field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	request := httptest.NewRequest(http.MethodPost, path, &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	if cookie != "" {
		request.Header.Set("Cookie", cookie)
	}
	return env.do(t, request)
}

// login performs a real password login and returns the session cookie
// header value.
func (env apiTestEnv) login(t *testing.T) string {
	t.Helper()
	response := env.postForm(t, "/login", "", url.Values{"password": {testAdminPassword}})
	if response.StatusCode != fiber.StatusSeeOther {
		t.Fatalf("login expected status %d, got %d", fiber.StatusSeeOther, response.StatusCode)
	}
	value := responseCookieValue(response, sessionCookieName)
	if value == "" {
		t.Fatal("login did not set a session cookie")
	}
	return sessionCookieName + "=" + value
}

func readBody(t *testing.T, response *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func responseCookie(response *http.Response, name string) *http.Cookie {
	for _, cookie := range response.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func responseCookieValue(response *http.Response, name string) string {
	if cookie := responseCookie(response, name); cookie != nil {
		return cookie.Value
	}
	return ""
}

func tinyImage(label string) []byte {
	return []byte("\x89PNG\r\n\x1a\n" + label)
}
