package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pixelfeed/internal/apperrors"
	"pixelfeed/internal/handlers"
	"pixelfeed/internal/middleware"
	"pixelfeed/internal/models"
	"pixelfeed/internal/repositories"
	"pixelfeed/internal/services"
	"pixelfeed/pkg/blobstore"
)

// fakeBlobStore implements services.BlobStore without touching S3.
type fakeBlobStore struct {
	uploaded []string
	deleted  []string
}

func (f *fakeBlobStore) PresignUpload(ctx context.Context, filename, contentType string) (*blobstore.UploadTicket, error) {
	key := "posts/" + filename
	return &blobstore.UploadTicket{
		UploadURL: "https://upload.example/" + key + "?signature=test",
		Key:       key,
		PublicURL: "https://cdn.example/" + key,
	}, nil
}

func (f *fakeBlobStore) Upload(ctx context.Context, body io.Reader, filename, contentType string) (string, error) {
	url := "https://cdn.example/posts/" + filename
	f.uploaded = append(f.uploaded, url)
	return url, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, publicURL string) error {
	f.deleted = append(f.deleted, publicURL)
	return nil
}

// fakeGoogleVerifier returns a fixed identity for any credential.
type fakeGoogleVerifier struct {
	identity services.GoogleIdentity
}

func (f *fakeGoogleVerifier) Verify(ctx context.Context, credential string) (*services.GoogleIdentity, error) {
	ident := f.identity
	return &ident, nil
}

type testEnv struct {
	app   *fiber.App
	blobs *fakeBlobStore
}

// setupApp wires a full application on an in-memory SQLite database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))

	userRepo := repositories.NewGORMUserRepository(db)
	postRepo := repositories.NewGORMPostRepository(db)

	blobs := &fakeBlobStore{}
	tokenService := services.NewTokenService("test_jwt_secret", 30*time.Minute)
	verifier := &fakeGoogleVerifier{identity: services.GoogleIdentity{
		ExternalID: "google-sub-1",
		Email:      "google.user@example.com",
		FullName:   "Google User",
	}}
	resolver := services.NewIdentityResolver(userRepo, log)
	authService := services.NewAuthService(userRepo, tokenService, verifier, resolver, nil, log)
	postService := services.NewPostService(postRepo, blobs, nil, log)

	app := fiber.New(fiber.Config{ErrorHandler: apperrors.FiberHandler(log)})
	apiV1 := app.Group("/api/v1")
	requireAuth := middleware.AuthRequired(tokenService)
	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1, requireAuth)
	handlers.NewPostHandler(postService, authService).RegisterRoutes(apiV1, requireAuth)

	return &testEnv{app: app, blobs: blobs}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (e *testEnv) signupAndLogin(t *testing.T, username, email, password string) string {
	t.Helper()

	resp, _ := e.request(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]any{
		"full_name": "Test " + username,
		"username":  username,
		"email":     email,
		"password":  password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := e.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	require.Equal(t, "bearer", body["token_type"])
	return token
}

func TestSignupLoginAndProfile(t *testing.T) {
	env := setupApp(t)

	resp, body := env.request(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]any{
		"full_name": "Alice A",
		"username":  "alice",
		"email":     "alice@example.com",
		"password":  "password123",
		"bio":       "photographer",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])
	// The password digest must never appear in a projection.
	_, leaked := body["password"]
	assert.False(t, leaked)

	// Duplicate username.
	resp, body = env.request(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]any{
		"username": "alice",
		"email":    "alice2@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "username already registered", body["detail"])

	// Duplicate email.
	resp, body = env.request(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]any{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email already registered", body["detail"])

	// Wrong password and unknown user collapse to the same 401.
	resp, wrongPw := env.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "alice", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, unknown := env.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "nobody", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, wrongPw["detail"], unknown["detail"])

	resp, body = env.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "alice", "password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["access_token"].(string)

	// Who am I.
	resp, body = env.request(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])

	resp, _ = env.request(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = env.request(t, http.MethodGet, "/api/v1/auth/me", "garbage.token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Partial update: only bio changes.
	resp, body = env.request(t, http.MethodPatch, "/api/v1/auth/me", token, map[string]any{
		"bio": "new bio",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "new bio", body["bio"])
	assert.Equal(t, "Alice A", body["full_name"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@example.com", body["email"])
}

func TestProfileUpdateConflicts(t *testing.T) {
	env := setupApp(t)

	env.signupAndLogin(t, "bob", "bob@example.com", "password123")
	token := env.signupAndLogin(t, "carol", "carol@example.com", "password123")

	resp, body := env.request(t, http.MethodPatch, "/api/v1/auth/me", token, map[string]any{
		"username": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "username already taken", body["detail"])

	resp, body = env.request(t, http.MethodPatch, "/api/v1/auth/me", token, map[string]any{
		"email": "bob@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email already taken", body["detail"])

	// Re-submitting one's own username is fine.
	resp, _ = env.request(t, http.MethodPatch, "/api/v1/auth/me", token, map[string]any{
		"username": "carol",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGoogleLoginCreatesAccount(t *testing.T) {
	env := setupApp(t)

	resp, body := env.request(t, http.MethodPost, "/api/v1/auth/google", "", map[string]any{
		"token": "some-google-credential",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)

	resp, me := env.request(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// Username derived from the email local part.
	assert.Equal(t, "googleuser", me["username"])

	// A second sign-in resolves to the same account.
	resp, body = env.request(t, http.MethodPost, "/api/v1/auth/google", "", map[string]any{
		"token": "some-google-credential",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, again := env.request(t, http.MethodGet, "/api/v1/auth/me", body["access_token"].(string), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, me["id"], again["id"])
}

func TestPostLifecycle(t *testing.T) {
	env := setupApp(t)
	token := env.signupAndLogin(t, "dave", "dave@example.com", "password123")

	// Presigned ticket requires auth.
	resp, _ := env.request(t, http.MethodPost, "/api/v1/posts/presigned-url", "", map[string]any{
		"filename": "a.png", "content_type": "image/png",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, ticket := env.request(t, http.MethodPost, "/api/v1/posts/presigned-url", token, map[string]any{
		"filename": "a.png", "content_type": "image/png",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "posts/a.png", ticket["key"])
	assert.NotEmpty(t, ticket["upload_url"])
	publicURL := ticket["public_url"].(string)

	// Disallowed file type.
	resp, _ = env.request(t, http.MethodPost, "/api/v1/posts/presigned-url", token, map[string]any{
		"filename": "a.exe", "content_type": "application/octet-stream",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Confirm the upload.
	resp, post := env.request(t, http.MethodPost, "/api/v1/posts/confirm-upload", token, map[string]any{
		"image_url": publicURL,
		"title":     "sunset",
		"caption":   "evening light",
		"tags":      []string{"nature", "sky"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dave", post["username"])
	postID := int(post["id"].(float64))

	// Feed lists it, newest first, with the author joined.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts?skip=0&limit=10", nil)
	listResp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, listResp.StatusCode)
	var feed []map[string]any
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&feed))
	require.Len(t, feed, 1)
	assert.Equal(t, "dave", feed[0]["username"])
	assert.Equal(t, []any{"nature", "sky"}, feed[0]["tags"])

	// Counters.
	resp, views := env.request(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/view", postID), "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), views["views"])
	resp, downloads := env.request(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/download", postID), "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), downloads["downloads"])

	resp, _ = env.request(t, http.MethodPost, "/api/v1/posts/999/view", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// A non-owner cannot delete.
	otherToken := env.signupAndLogin(t, "eve", "eve@example.com", "password123")
	resp, _ = env.request(t, http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", postID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, env.blobs.deleted)

	// The owner can; the blob goes with the record.
	resp, _ = env.request(t, http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", postID), token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{publicURL}, env.blobs.deleted)

	resp, _ = env.request(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", postID), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
