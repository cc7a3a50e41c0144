package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Pabby01/studIQ-sub001/internal/api/controllers"
	"github.com/Pabby01/studIQ-sub001/internal/models/db_models"
	"github.com/Pabby01/studIQ-sub001/internal/repositories"
	"github.com/Pabby01/studIQ-sub001/internal/services"
	mem "github.com/Pabby01/studIQ-sub001/pkg/memcache"
	"github.com/Pabby01/studIQ-sub001/pkg/utils"
)

var jwtSecret = []byte("router-test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type captureTransport struct {
	mu   sync.Mutex
	html []string
}

func (c *captureTransport) Send(_ context.Context, _, _, html, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.html = append(c.html, html)
	return nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type testApp struct {
	engine http.Handler
	db     *gorm.DB
	mail   *captureTransport
	reset  services.PasswordResetServiceInterface
	user   *db_models.Account
}

func newTestApp(t *testing.T, pingErr error) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_time_format=sqlite",
		strings.ReplaceAll(t.Name(), "/", "_"), uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&db_models.Account{}, &db_models.ResetToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	accounts := repositories.NewAccountRepository(db)
	tokens := repositories.NewResetTokenRepository(db)

	hash, _ := utils.HashPassword("old-password")
	user := &db_models.Account{Name: "User", Email: "user@example.com", PasswordHash: hash, Role: db_models.RoleUser}
	if err := accounts.InsertTx(user, context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	transport := &captureTransport{}
	log := zap.NewNop()
	mail := services.NewMailService(services.MailServiceConfig{AppName: "StudIQ", AppBaseURL: "https://studiq.test"}, transport, log)
	limiter := services.NewRateLimiter(mem.NewMemoryRateLimitStore(0))
	reset := services.NewPasswordResetService(accounts, tokens, limiter, mail, services.PasswordResetPolicy{
		Window:         15 * time.Minute,
		EmailMax:       5,
		OriginEmailMax: 3,
		ConfirmMax:     10,
		TokenTTL:       15 * time.Minute,
		StepTimeout:    time.Second,
	}, log)

	engine := NewRouter(RouterParams{
		JWTSecret:     jwtSecret,
		Log:           log,
		Account:       controllers.NewAccountController(services.NewAccountService(accounts, jwtSecret, time.Hour, []string{"admin@example.com"}, log)),
		PasswordReset: controllers.NewPasswordResetController(reset),
		Quiz:          controllers.NewQuizController(services.NewQuizService()),
		Health:        controllers.NewHealthController(map[string]controllers.Pinger{"postgres": stubPinger{err: pingErr}}),
	})

	return &testApp{engine: engine, db: db, mail: transport, reset: reset, user: user}
}

// sentMail waits for queued reset emails and returns their HTML bodies.
func (a *testApp) sentMail(t *testing.T) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.reset.Drain(ctx); err != nil {
		t.Fatalf("drain mail: %v", err)
	}
	a.mail.mu.Lock()
	defer a.mail.mu.Unlock()
	return append([]string(nil), a.mail.html...)
}

func (a *testApp) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestRequestReset_IdenticalResponses(t *testing.T) {
	app := newTestApp(t, nil)

	known := app.do(http.MethodPost, "/auth/password-reset/request", map[string]string{"email": "user@example.com"}, nil)
	unknown := app.do(http.MethodPost, "/auth/password-reset/request", map[string]string{"email": "ghost@example.com"}, nil)

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("expected 200/200, got %d/%d", known.Code, unknown.Code)
	}
	if !bytes.Equal(known.Body.Bytes(), unknown.Body.Bytes()) {
		t.Fatalf("bodies differ:\n%s\n%s", known.Body.String(), unknown.Body.String())
	}
	if decode(t, known).Message != services.GenericResetMessage {
		t.Fatalf("unexpected message %q", decode(t, known).Message)
	}
	if sent := app.sentMail(t); len(sent) != 1 {
		t.Fatalf("expected exactly one email, got %d", len(sent))
	}
}

var linkToken = regexp.MustCompile(`reset-password\?token=([0-9a-f]{64})`)

func TestResetFlow_RequestThenConfirm(t *testing.T) {
	app := newTestApp(t, nil)
	before := time.Now().UTC()

	w := app.do(http.MethodPost, "/auth/password-reset/request", map[string]string{"email": "user@example.com"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var rows []db_models.ResetToken
	app.db.Find(&rows)
	if len(rows) != 1 || rows[0].UserID != app.user.ID {
		t.Fatalf("expected one token row, got %+v", rows)
	}
	ttl := rows[0].ExpiresAt.Sub(before)
	if ttl < 15*time.Minute-5*time.Second || ttl > 15*time.Minute+5*time.Second {
		t.Fatalf("expected expiry about 15m out, got %s", ttl)
	}

	sent := app.sentMail(t)
	if len(sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sent))
	}
	m := linkToken.FindStringSubmatch(sent[0])
	if m == nil {
		t.Fatalf("no reset link in email")
	}
	token := m[1]

	w = app.do(http.MethodPost, "/auth/password-reset/confirm", map[string]string{"token": token, "new_password": "brand-new-pass"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var updated db_models.Account
	app.db.First(&updated, "id = ?", app.user.ID)
	if err := utils.ComparePasswords(updated.PasswordHash, "brand-new-pass"); err != nil {
		t.Fatalf("password not updated")
	}

	w = app.do(http.MethodPost, "/auth/password-reset/confirm", map[string]string{"token": token, "new_password": "again-new-pass"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("reused token should fail with 400, got %d", w.Code)
	}
}

func TestRequestReset_ValidationDetails(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.do(http.MethodPost, "/auth/password-reset/request", map[string]string{"email": "nope"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decode(t, w)
	if resp.Details["email"] == "" {
		t.Fatalf("expected details for the email field, got %v", resp.Details)
	}
}

func TestRequestReset_RateLimited(t *testing.T) {
	app := newTestApp(t, nil)
	body := map[string]string{"email": "user@example.com"}

	for i := 0; i < 3; i++ {
		if w := app.do(http.MethodPost, "/auth/password-reset/request", body, nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := app.do(http.MethodPost, "/auth/password-reset/request", body, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	resp := decode(t, w)
	if resp.RetryAt == nil || !resp.RetryAt.After(time.Now()) {
		t.Fatalf("expected retryAt in the future, got %v", resp.RetryAt)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestCleanup_RequiresAdmin(t *testing.T) {
	app := newTestApp(t, nil)

	expired := &db_models.ResetToken{UserID: uuid.New(), TokenHash: utils.HashToken("x"), ExpiresAt: time.Now().UTC().Add(-time.Minute)}
	if err := app.db.Create(expired).Error; err != nil {
		t.Fatalf("seed token: %v", err)
	}

	if w := app.do(http.MethodDelete, "/auth/password-reset/cleanup", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	userToken, _ := utils.CreateToken(jwtSecret, app.user.ID, db_models.RoleUser, time.Minute)
	if w := app.do(http.MethodDelete, "/auth/password-reset/cleanup", nil, map[string]string{"Authorization": "Bearer " + userToken}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	adminToken, _ := utils.CreateToken(jwtSecret, uuid.New(), db_models.RoleAdmin, time.Minute)
	w := app.do(http.MethodDelete, "/auth/password-reset/cleanup", nil, map[string]string{"Authorization": "Bearer " + adminToken})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data, _ := decode(t, w).Data.(map[string]any)
	if data["deleted"] != float64(1) {
		t.Fatalf("expected deleted=1, got %v", data)
	}
}

func TestQuizGrade(t *testing.T) {
	app := newTestApp(t, nil)

	body := map[string]any{
		"questions": []map[string]any{
			{"question": "q1", "options": []string{"a", "b", "c", "d"}, "correct_index": 1},
			{"question": "q2", "options": []string{"a", "b", "c", "d"}, "correct_index": 3},
		},
		"answers": []string{"1", "2"},
	}
	w := app.do(http.MethodPost, "/quizzes/grade", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data, _ := decode(t, w).Data.(map[string]any)
	if data["score"] != float64(50) {
		t.Fatalf("expected score 50, got %v", data)
	}

	body["questions"] = []map[string]any{{"question": "bad", "options": []string{"a", "b"}, "correct_index": 0}}
	if w := app.do(http.MethodPost, "/quizzes/grade", body, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed question, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	if w := newTestApp(t, nil).do(http.MethodGet, "/health", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w := newTestApp(t, errors.New("dial tcp 10.0.0.5:5432: connection refused")).do(http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	data, _ := decode(t, w).Data.(map[string]any)
	if data["postgres"] != "down: dial tcp 10.0.0.5:5432: connection refused" {
		t.Fatalf("expected the ping error in the body, got %v", data)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t, nil)

	signup := map[string]string{"display_name": "Ada", "email": "Ada@Example.com", "password": "analytical"}
	if w := app.do(http.MethodPost, "/auth/register", signup, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := app.do(http.MethodPost, "/auth/register", signup, nil); w.Code != http.StatusConflict {
		t.Fatalf("duplicate email should be 409, got %d", w.Code)
	}

	w := app.do(http.MethodPost, "/auth/login", map[string]string{"email": "ada@example.com", "password": "analytical"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data, _ := decode(t, w).Data.(map[string]any)
	token, _ := data["token"].(string)
	claims, err := utils.ValidateToken(jwtSecret, token)
	if err != nil || claims.Role != db_models.RoleUser {
		t.Fatalf("expected a valid user token, got %v %v", claims, err)
	}

	if w := app.do(http.MethodPost, "/auth/login", map[string]string{"email": "ada@example.com", "password": "wrong-pass"}, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password should be 401, got %d", w.Code)
	}
	if w := app.do(http.MethodPost, "/auth/login", map[string]string{"email": "nobody@example.com", "password": "whatever"}, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email should be 401, got %d", w.Code)
	}
}

func TestAdminEmailCanRunCleanup(t *testing.T) {
	app := newTestApp(t, nil)

	signup := map[string]string{"display_name": "Ops", "email": "admin@example.com", "password": "operations"}
	if w := app.do(http.MethodPost, "/auth/register", signup, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w := app.do(http.MethodPost, "/auth/login", map[string]string{"email": "admin@example.com", "password": "operations"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data, _ := decode(t, w).Data.(map[string]any)
	if data["role"] != db_models.RoleAdmin {
		t.Fatalf("expected admin role, got %v", data)
	}
	token, _ := data["token"].(string)

	w = app.do(http.MethodDelete, "/auth/password-reset/cleanup", nil, map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
