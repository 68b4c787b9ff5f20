package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/database"
	"taskboard/internal/model"
	"taskboard/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		DBDriver:       database.DriverSQLite,
		DBSQLitePath:   ":memory:",
		JWTSecret:      "test-secret",
		JWTAccessTTL:   time.Hour,
		JWTRefreshTTL:  time.Hour,
		AuthRateLimit:  100,
		AuthRateBurst:  100,
		TxMaxAttempts:  3,
		TxRetryBackoff: time.Millisecond,
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })

	return server.NewRouter(cfg, db, nil, zap.NewNop())
}

func call(t *testing.T, r *gin.Engine, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), out), resp.Body.String())
	}
	return resp.Code
}

func login(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": "password123"}
	require.Equal(t, http.StatusCreated, call(t, r, "POST", "/api/v1/auth/register", "", creds, nil))

	var tokens struct {
		AccessToken string `json:"accessToken"`
	}
	require.Equal(t, http.StatusOK, call(t, r, "POST", "/api/v1/auth/login", "", creds, &tokens))
	return tokens.AccessToken
}

func TestBoardFlow(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "owner@example.com")

	ids := map[string]string{}
	for _, title := range []string{"A", "B", "C", "D"} {
		var task model.Task
		code := call(t, r, "POST", "/api/v1/tasks", token, map[string]string{"title": title, "status": "TODO"}, &task)
		require.Equal(t, http.StatusCreated, code)
		ids[title] = task.ID.String()
	}

	var moved model.Task
	code := call(t, r, "PATCH", "/api/v1/tasks/"+ids["D"], token, map[string]interface{}{"orderIndex": 1}, &moved)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, moved.OrderIndex)

	code = call(t, r, "POST", "/api/v1/tasks/"+ids["A"]+"/move", token, map[string]interface{}{"status": "COMPLETED"}, &moved)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.StatusCompleted, moved.Status)
	assert.Equal(t, 0, moved.OrderIndex)

	require.Equal(t, http.StatusOK, call(t, r, "DELETE", "/api/v1/tasks/"+ids["B"], token, nil, nil))

	var tasks []model.Task
	require.Equal(t, http.StatusOK, call(t, r, "GET", "/api/v1/tasks", token, nil, &tasks))
	var board []string
	for _, task := range tasks {
		board = append(board, string(task.Status)+":"+task.Title)
	}
	assert.Equal(t, []string{"TODO:D", "TODO:C", "COMPLETED:A"}, board)

	var errBody map[string]string
	code = call(t, r, "PATCH", "/api/v1/tasks/"+ids["C"], token, map[string]interface{}{"orderIndex": 5}, &errBody)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, errBody["error"])
}

func TestOwnersAreIsolated(t *testing.T) {
	r := newTestRouter(t)
	alice := login(t, r, "alice@example.com")
	bob := login(t, r, "bob@example.com")

	var task model.Task
	require.Equal(t, http.StatusCreated, call(t, r, "POST", "/api/v1/tasks", alice, map[string]string{"title": "secret", "status": "TODO"}, &task))

	assert.Equal(t, http.StatusNotFound, call(t, r, "GET", "/api/v1/tasks/"+task.ID.String(), bob, nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, r, "DELETE", "/api/v1/tasks/"+task.ID.String(), bob, nil, nil))

	var tasks []model.Task
	require.Equal(t, http.StatusOK, call(t, r, "GET", "/api/v1/tasks", bob, nil, &tasks))
	assert.Empty(t, tasks)
}

func TestPublicEndpoints(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusOK, call(t, r, "GET", "/health", "", nil, nil))
	assert.Equal(t, http.StatusOK, call(t, r, "GET", "/metrics", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, r, "GET", "/api/v1/tasks", "", nil, nil))
}

func TestMe(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "me@example.com")

	var me map[string]interface{}
	require.Equal(t, http.StatusOK, call(t, r, "GET", "/api/v1/user/me", token, nil, &me))
	assert.Equal(t, "me@example.com", me["email"])
	assert.NotContains(t, me, "hashedPassword")
}
