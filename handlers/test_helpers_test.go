package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"eviction_intake_go/config"
	"eviction_intake_go/db"
	"eviction_intake_go/models"
	"eviction_intake_go/services"
	"eviction_intake_go/services/contentstore/storetest"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testAdminToken = "test-admin-token"

func setupTestDB(t *testing.T) *gorm.DB {
	// Use unique shared memory name to isolate tests while allowing shared cache for async tasks
	dbName := "mem_" + uuid.New().String()
	testDB, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{})
	assert.NoError(t, err)

	err = testDB.AutoMigrate(&models.CaseSubmission{}, &models.SyncOutcome{}, &models.AuditLog{})
	assert.NoError(t, err)

	// Set global DB
	db.DB = testDB

	return testDB
}

type testServer struct {
	e     *echo.Echo
	db    *gorm.DB
	store *storetest.Recorder
	cfg   *config.Config
}

func setupServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.Environment = "test"
	cfg.EmailTestMode = true

	hash, err := services.HashAdminToken(testAdminToken)
	require.NoError(t, err)
	cfg.AdminTokenHash = hash

	store := storetest.New(nil)
	syncer := services.NewCaseSynchronizer(store, services.PlaceholderRenderer{}, services.SyncConfig{
		IndexAttempts: 3,
		IndexBackoff:  time.Millisecond,
	})

	e := echo.New()
	RegisterRoutes(e, cfg, syncer)

	return &testServer{e: e, db: setupTestDB(t), store: store, cfg: cfg}
}

// do serves one request. Every request gets its own client IP so the
// per-IP rate limiters never trip.
func (s *testServer) do(method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRealIP, uuid.New().String())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) admin(method, path string, body io.Reader) *httptest.ResponseRecorder {
	return s.do(method, path, body, map[string]string{
		echo.HeaderAuthorization: "Bearer " + testAdminToken,
	})
}

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	_, err := time.Parse(time.RFC3339, env.Timestamp)
	assert.NoError(t, err, "timestamp")
	return env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v), string(env.Data))
}

func assertStatus(t *testing.T, want int, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}
