package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgview/config"
	"msgview/export"
	"msgview/msgfile"
	"msgview/storage"
	"msgview/store"
	"msgview/utils"
)

func testConfig(mailDir, dataDir string) *config.Config {
	cfg := &config.Config{}
	cfg.Mail.Folder = mailDir
	cfg.Mail.MaxFileSize = 10 * 1024 * 1024
	cfg.Download.MaxPayloadSize = 10 * 1024 * 1024
	cfg.Pagination.DefaultPageSize = 20
	cfg.Pagination.MaxPageSize = 100
	cfg.Auth.Admin.Username = "admin"
	cfg.Auth.Admin.Password = "admin-secret"
	cfg.Auth.Viewer.Username = "viewer"
	cfg.Auth.Viewer.Password = "viewer-secret"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.ExpiryMinutes = 60
	cfg.Storage.DataDir = dataDir
	return cfg
}

func writeEmail(t *testing.T, dir, name, subject string) {
	t.Helper()
	content := fmt.Sprintf("From: sender@example.com\r\nTo: rcpt@example.com\r\nSubject: %s\r\n"+
		"Date: Mon, 02 Jan 2023 10:00:00 +0000\r\n\r\nbody of %s\r\n", subject, name)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// newTestApp wires the API routes the way the server does, minus the
// global middleware that tests do not exercise
func newTestApp(t *testing.T, cfg *config.Config) *fiber.App {
	t.Helper()

	domains, err := storage.OpenDomainStore(cfg.Storage.DataDir)
	require.NoError(t, err)
	t.Cleanup(func() { domains.Close() })

	parser := msgfile.NewParser(cfg.Mail.MaxFileSize)
	repo := store.NewRepository(cfg.Mail.Folder, parser, 4)
	exporter := export.NewService(repo, cfg.Download.MaxPayloadSize)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	authHandler := NewAuthHandler(cfg)
	emailHandler := NewEmailHandler(cfg, repo)
	searchHandler := NewSearchHandler(cfg, repo)
	downloadHandler := NewDownloadHandler(cfg, exporter)
	adminHandler := NewAdminHandler(domains)

	auth := app.Group("/api/auth")
	auth.Post("/login", authHandler.HandleLogin)
	auth.Get("/me", AuthMiddleware(cfg), authHandler.HandleMe)
	auth.Post("/logout", AuthMiddleware(cfg), authHandler.HandleLogout)

	emails := app.Group("/api/emails", AuthMiddleware(cfg))
	emails.Get("/", emailHandler.HandleList)
	emails.Post("/search", searchHandler.HandleSearch)
	emails.Post("/download", downloadHandler.HandleDownload)
	emails.Get("/stats/summary", emailHandler.HandleStats)
	emails.Get("/:filename/attachments/:name", emailHandler.HandleAttachment)
	emails.Get("/:filename", emailHandler.HandleDetail)

	admin := app.Group("/api/admin", AuthMiddleware(cfg), RequireAdmin())
	admin.Get("/domains", adminHandler.HandleList)
	admin.Post("/domains", adminHandler.HandleAdd)
	admin.Put("/domains/:domain", adminHandler.HandleUpdate)
	admin.Delete("/domains/:domain", adminHandler.HandleDelete)

	return app
}

func login(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, resp, &parsed)
	require.NotEmpty(t, parsed.AccessToken)
	return parsed.AccessToken
}

func authedRequest(method, target, token, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestEmailListEndpoint(t *testing.T) {
	mailDir := t.TempDir()
	writeEmail(t, mailDir, "one.msg", "First")
	writeEmail(t, mailDir, "two.msg", "Second")
	cfg := testConfig(mailDir, t.TempDir())
	app := newTestApp(t, cfg)
	token := login(t, app, "viewer", "viewer-secret")

	resp, err := app.Test(authedRequest(http.MethodGet, "/api/emails/", token, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Emails      []struct{ Filename string } `json:"emails"`
		TotalEmails int                         `json:"total_emails"`
	}
	decodeBody(t, resp, &result)
	assert.Equal(t, 2, result.TotalEmails)
	assert.Len(t, result.Emails, 2)
}

func TestEmailListRejectsBadPagination(t *testing.T) {
	mailDir := t.TempDir()
	cfg := testConfig(mailDir, t.TempDir())
	app := newTestApp(t, cfg)
	token := login(t, app, "viewer", "viewer-secret")

	resp, err := app.Test(authedRequest(http.MethodGet, "/api/emails/?page=abc", token, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(authedRequest(http.MethodGet, "/api/emails/?page_size=-1", token, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEmailDetailEndpoint(t *testing.T) {
	mailDir := t.TempDir()
	writeEmail(t, mailDir, "one.msg", "Detail here")
	cfg := testConfig(mailDir, t.TempDir())
	app := newTestApp(t, cfg)
	token := login(t, app, "viewer", "viewer-secret")

	resp, err := app.Test(authedRequest(http.MethodGet, "/api/emails/one.msg", token, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail struct {
		Subject string `json:"subject"`
		Sender  string `json:"sender"`
	}
	decodeBody(t, resp, &detail)
	assert.Equal(t, "Detail here", detail.Subject)
	assert.Equal(t, "sender@example.com", detail.Sender)

	resp, err = app.Test(authedRequest(http.MethodGet, "/api/emails/absent.msg", token, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	mailDir := t.TempDir()
	writeEmail(t, mailDir, "one.msg", "S")
	cfg := testConfig(mailDir, t.TempDir())
	app := newTestApp(t, cfg)
	token := login(t, app, "viewer", "viewer-secret")

	resp, err := app.Test(authedRequest(http.MethodGet, "/api/emails/stats/summary", token, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		TotalEmails int `json:"total_emails"`
	}
	decodeBody(t, resp, &stats)
	assert.Equal(t, 1, stats.TotalEmails)
}

func TestSearchEndpoint(t *testing.T) {
	mailDir := t.TempDir()
	writeEmail(t, mailDir, "hit.msg", "Budget review")
	writeEmail(t, mailDir, "miss.msg", "Lunch plans")
	cfg := testConfig(mailDir, t.TempDir())
	app := newTestApp(t, cfg)
	token := login(t, app, "viewer", "viewer-secret")

	resp, err := app.Test(authedRequest(http.MethodPost, "/api/emails/search", token, `{"subject":"budget"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Emails []struct{ Filename string } `json:"emails"`
	}
	decodeBody(t, resp, &result)
	require.Len(t, result.Emails, 1)
	assert.Equal(t, "hit.msg", result.Emails[0].Filename)

	resp, err = app.Test(authedRequest(http.MethodPost, "/api/emails/search", token, `{"page":-1}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDownloadEndpoint(t *testing.T) {
	mailDir := t.TempDir()
	writeEmail(t, mailDir, "one.msg", "Export me")
	cfg := testConfig(mailDir, t.TempDir())
	app := newTestApp(t, cfg)
	token := login(t, app, "viewer", "viewer-secret")

	resp, err := app.Test(authedRequest(http.MethodPost, "/api/emails/download", token, `{"filenames":["one.msg"],"format":"text"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(data), "Export me")
}

func TestDownloadEndpointErrors(t *testing.T) {
	mailDir := t.TempDir()
	writeEmail(t, mailDir, "one.msg", "S")
	cfg := testConfig(mailDir, t.TempDir())
	app := newTestApp(t, cfg)
	token := login(t, app, "viewer", "viewer-secret")

	resp, err := app.Test(authedRequest(http.MethodPost, "/api/emails/download", token, `{"filenames":[]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(authedRequest(http.MethodPost, "/api/emails/download", token, `{"filenames":["one.msg"],"format":"xml"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(authedRequest(http.MethodPost, "/api/emails/download", token, `{"filenames":["ghost.msg"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAttachmentEndpoint(t *testing.T) {
	mailDir := t.TempDir()
	mime := "From: a@example.com\r\nTo: b@example.com\r\nSubject: With file\r\n" +
		"MIME-Version: 1.0\r\nContent-Type: multipart/mixed; boundary=\"XYZ\"\r\n\r\n" +
		"--XYZ\r\nContent-Type: text/plain\r\n\r\nsee attachment\r\n" +
		"--XYZ\r\nContent-Type: application/octet-stream\r\n" +
		"Content-Disposition: attachment; filename=\"data.bin\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n\r\naGVsbG8gd29ybGQ=\r\n--XYZ--\r\n"
	require.NoError(t, os.WriteFile(filepath.Join(mailDir, "attach.msg"), []byte(mime), 0644))
	cfg := testConfig(mailDir, t.TempDir())
	app := newTestApp(t, cfg)
	token := login(t, app, "viewer", "viewer-secret")

	resp, err := app.Test(authedRequest(http.MethodGet, "/api/emails/attach.msg/attachments/data.bin", token, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "data.bin")
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	resp, err = app.Test(authedRequest(http.MethodGet, "/api/emails/attach.msg/attachments/nope.bin", token, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadEndpointPayloadCap(t *testing.T) {
	mailDir := t.TempDir()
	writeEmail(t, mailDir, "one.msg", "S")
	cfg := testConfig(mailDir, t.TempDir())
	cfg.Download.MaxPayloadSize = 10
	app := newTestApp(t, cfg)
	token := login(t, app, "viewer", "viewer-secret")

	resp, err := app.Test(authedRequest(http.MethodPost, "/api/emails/download", token, `{"filenames":["one.msg"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestAdminDomainEndpoints(t *testing.T) {
	cfg := testConfig(t.TempDir(), t.TempDir())
	app := newTestApp(t, cfg)
	adminToken := login(t, app, "admin", "admin-secret")

	resp, err := app.Test(authedRequest(http.MethodPost, "/api/admin/domains", adminToken, `{"domain":"Example.COM"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(authedRequest(http.MethodPost, "/api/admin/domains", adminToken, `{"domain":"example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = app.Test(authedRequest(http.MethodPost, "/api/admin/domains", adminToken, `{"domain":"not a domain"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(authedRequest(http.MethodGet, "/api/admin/domains", adminToken, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listBody struct {
		Domains []struct {
			Domain string `json:"domain"`
		} `json:"domains"`
	}
	decodeBody(t, resp, &listBody)
	require.Len(t, listBody.Domains, 1)
	assert.Equal(t, "example.com", listBody.Domains[0].Domain)

	resp, err = app.Test(authedRequest(http.MethodPut, "/api/admin/domains/example.com", adminToken, `{"new_domain":"renamed.example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(authedRequest(http.MethodDelete, "/api/admin/domains/renamed.example.com", adminToken, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(authedRequest(http.MethodDelete, "/api/admin/domains/renamed.example.com", adminToken, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	cfg := testConfig(t.TempDir(), t.TempDir())
	app := newTestApp(t, cfg)
	viewerToken := login(t, app, "viewer", "viewer-secret")

	resp, err := app.Test(authedRequest(http.MethodGet, "/api/admin/domains", viewerToken, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEmailEndpointsRequireToken(t *testing.T) {
	cfg := testConfig(t.TempDir(), t.TempDir())
	app := newTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/emails/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(authedRequest(http.MethodGet, "/api/emails/", "garbage-token", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
