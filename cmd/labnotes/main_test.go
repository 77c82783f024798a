package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/labnotes/internal/config"
	"go.uber.org/zap"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to resolve test file path")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	root := repoRoot(t)
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Env = "test"
	cfg.DatabasePath = filepath.Join(dir, "labnotes.db")
	cfg.UploadDir = filepath.Join(dir, "uploads")
	cfg.TemplateDir = filepath.Join(root, "internal", "templates")
	cfg.StaticDir = filepath.Join(root, "web", "static")
	cfg.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.AdminPassword = "bench-notebook-42"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	return &cfg
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app, cleanup, err := newApp(newTestConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(cleanup)
	return app
}

func TestNewAppServesHealthAndTimeline(t *testing.T) {
	app := newTestApp(t)

	health, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if health.StatusCode != fiber.StatusOK {
		t.Fatalf("expected health status 200, got %d", health.StatusCode)
	}

	timeline, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	if err != nil {
		t.Fatalf("timeline request failed: %v", err)
	}
	defer timeline.Body.Close()
	if timeline.StatusCode != fiber.StatusOK {
		t.Fatalf("expected timeline status 200, got %d", timeline.StatusCode)
	}
	body, err := io.ReadAll(timeline.Body)
	if err != nil {
		t.Fatalf("read timeline body: %v", err)
	}
	if !strings.Contains(string(body), "No entries yet.") {
		t.Fatal("expected empty timeline message")
	}

	foundCSRF := false
	for _, cookie := range timeline.Cookies() {
		if cookie.Name == "labnotes_csrf" && cookie.Value != "" {
			foundCSRF = true
		}
	}
	if !foundCSRF {
		t.Fatal("expected csrf cookie on page response")
	}
}

func TestNewAppServesStaticWithoutCSRFCookie(t *testing.T) {
	app := newTestApp(t)

	response, err := app.Test(httptest.NewRequest(http.MethodGet, "/static/style.css", nil), -1)
	if err != nil {
		t.Fatalf("static request failed: %v", err)
	}
	if response.StatusCode != fiber.StatusOK {
		t.Fatalf("expected static status 200, got %d", response.StatusCode)
	}
	if !strings.Contains(response.Header.Get("Cache-Control"), "max-age=86400") {
		t.Fatalf("expected cache header, got %q", response.Header.Get("Cache-Control"))
	}
	for _, cookie := range response.Cookies() {
		if cookie.Name == "labnotes_csrf" {
			t.Fatal("did not expect csrf cookie on static asset")
		}
	}
}

func TestNewAppRejectsPostWithoutCSRFToken(t *testing.T) {
	app := newTestApp(t)

	request := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("password=bench-notebook-42"))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	response, err := app.Test(request, -1)
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	if response.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected status 403, got %d", response.StatusCode)
	}
}

func TestNewAppUnknownRouteIsNotFound(t *testing.T) {
	app := newTestApp(t)

	response, err := app.Test(httptest.NewRequest(http.MethodGet, "/no/such/page", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if response.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected status 404, got %d", response.StatusCode)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	expected := []string{"serve", "migrate", "entries", "hash-password", "gen-secret"}
	for _, name := range expected {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected subcommand %q", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatal("expected persistent --config flag")
	}
}

func TestGenSecretCommandPrintsRequestedLength(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"gen-secret", "--length", "40"})

	if err := root.Execute(); err != nil {
		t.Fatalf("gen-secret failed: %v", err)
	}
	secret := strings.TrimSpace(out.String())
	if len(secret) != 40 {
		t.Fatalf("expected 40 characters, got %d (%q)", len(secret), secret)
	}
}

func TestMigrateCommandRunsWithoutServerSecrets(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "notes.db")
	configPath := filepath.Join(dir, "labnotes.toml")
	content := "database = " + tomlString(dbPath) + "\nlog_level = \"error\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"migrate", "--config", configPath})

	if err := root.Execute(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if !strings.Contains(out.String(), "Database ready at "+dbPath) {
		t.Fatalf("unexpected migrate output %q", out.String())
	}
	if !strings.Contains(out.String(), "applied 0001_init.sql") {
		t.Fatalf("expected applied migration in output, got %q", out.String())
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}

func tomlString(value string) string {
	return "'" + value + "'"
}
