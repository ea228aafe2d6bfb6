package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"VoiceBank/internal/models"
	"VoiceBank/pkg/auth"
	"VoiceBank/pkg/cache"
	"VoiceBank/pkg/config"
	"VoiceBank/pkg/logger"
	"VoiceBank/pkg/search"
	stores "VoiceBank/pkg/storage"
	"VoiceBank/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSecret = "unit-test-secret"
	testIssuer = "https://auth.example.com"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.GlobalConfig = &config.Config{
		APIPrefix:     "",
		UploadRate:    "100-S",
		MaxUploadSize: 25 << 20,
	}
	logger.Init(logger.LogConfig{Level: "error"})
	os.Exit(m.Run())
}

type testEnv struct {
	db     *gorm.DB
	engine *gin.Engine
	se     search.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := util.OpenDatabase(&gorm.Config{}, "sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	store := stores.NewLocalStore(t.TempDir())
	local := cache.NewLocalCache(cache.LocalConfig{})
	t.Cleanup(func() { local.Close() })

	se, err := search.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { se.Close() })

	verifier, err := auth.NewVerifier(auth.Config{Secret: testSecret, Issuer: testIssuer})
	require.NoError(t, err)

	engine := gin.New()
	NewHandlers(db, store, local, se, verifier).Register(engine)

	return &testEnv{db: db, engine: engine, se: se}
}

func tokenFor(t *testing.T, userID, email, name string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"iss":   testIssuer,
		"email": email,
		"user_metadata": map[string]any{
			"full_name": name,
		},
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (e *testEnv) do(t *testing.T, method, path, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	return e.do(t, method, path, token, body, "application/json")
}

func uploadBody(t *testing.T, fields map[string]string, withAudio bool) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withAudio {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="audio_file"; filename="recording.wav"`}
		h["Content-Type"] = []string{"audio/wav"}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		wav := make([]byte, 44+3200)
		copy(wav, "RIFF")
		_, err = part.Write(wav)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/user/profile", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/recordings/user/u-1", "garbage", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileLifecycle(t *testing.T) {
	e := newTestEnv(t)
	token := tokenFor(t, "u-1", "ada@example.com", "Ada Lovelace")

	// 未创建时返回 404
	w := e.do(t, http.MethodGet, "/user/profile", token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.doJSON(t, http.MethodPost, "/user/profile/create", token, map[string]string{
		"user_id":   "u-1",
		"email":     "ada@example.com",
		"full_name": "Ada Lovelace",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.UserProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "u-1", created.ID)
	assert.Equal(t, "Ada Lovelace", created.FullName)
	assert.True(t, created.IsComplete())

	// 重复创建返回 409
	w = e.doJSON(t, http.MethodPost, "/user/profile/create", token, map[string]string{
		"full_name": "Ada Lovelace",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 不能为他人创建档案
	w = e.doJSON(t, http.MethodPost, "/user/profile/create", token, map[string]string{
		"user_id":   "u-other",
		"full_name": "Mallory",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.doJSON(t, http.MethodPut, "/user/profile/update", token, map[string]string{
		"email":     "lovelace@example.com",
		"full_name": "Ada King",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/user/profile", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var fetched models.UserProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, "Ada King", fetched.FullName)
	assert.Equal(t, "lovelace@example.com", fetched.Email)
}

func TestProfileSyncIdempotent(t *testing.T) {
	e := newTestEnv(t)
	token := tokenFor(t, "u-2", "bob@example.com", "Bob")

	for i := 0; i < 3; i++ {
		w := e.do(t, http.MethodPost, "/user/profile/sync", token, nil, "")
		require.Equal(t, http.StatusOK, w.Code, "sync call %d", i)
	}

	var count int64
	require.NoError(t, e.db.Model(&models.UserProfile{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// 同步创建的档案带回了身份上的邮箱
	profile, err := models.GetProfile(e.db, "u-2")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", profile.Email)
	assert.False(t, profile.IsComplete(), "synced profile still needs a full name")
}

func TestUploadAndList(t *testing.T) {
	e := newTestEnv(t)
	token := tokenFor(t, "u-1", "ada@example.com", "Ada Lovelace")

	body, ct := uploadBody(t, map[string]string{
		"title":       "Sample A",
		"description": "first take",
		"script_text": "Hello world",
	}, true)
	w := e.do(t, http.MethodPost, "/recordings/upload", token, body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var uploaded models.Recording
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	assert.NotEmpty(t, uploaded.ID)
	assert.Equal(t, "Sample A", uploaded.Title)
	assert.Equal(t, "Hello world", uploaded.ScriptText)
	assert.Equal(t, "u-1", uploaded.UserID)
	assert.NotEmpty(t, uploaded.AudioURL)

	w = e.do(t, http.MethodGet, "/recordings/user/u-1", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Recording
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, uploaded.ID, listed[0].ID)
	assert.Equal(t, uploaded.Title, listed[0].Title)
	assert.Equal(t, uploaded.AudioURL, listed[0].AudioURL)

	// 单条获取
	w = e.do(t, http.MethodGet, "/recordings/"+uploaded.ID, token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadValidation(t *testing.T) {
	e := newTestEnv(t)
	token := tokenFor(t, "u-1", "ada@example.com", "Ada")

	// 缺标题
	body, ct := uploadBody(t, map[string]string{"script_text": "hello"}, true)
	w := e.do(t, http.MethodPost, "/recordings/upload", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 缺音频文件
	body, ct = uploadBody(t, map[string]string{"title": "Sample", "script_text": "hello"}, false)
	w = e.do(t, http.MethodPost, "/recordings/upload", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOrderAndOwnership(t *testing.T) {
	e := newTestEnv(t)
	owner := tokenFor(t, "u-1", "ada@example.com", "Ada")
	other := tokenFor(t, "u-2", "bob@example.com", "Bob")

	for _, title := range []string{"first", "second"} {
		body, ct := uploadBody(t, map[string]string{"title": title, "script_text": "x"}, true)
		w := e.do(t, http.MethodPost, "/recordings/upload", owner, body, ct)
		require.Equal(t, http.StatusCreated, w.Code)
		time.Sleep(10 * time.Millisecond) // 保证 created_at 可区分
	}

	// 他人不能读取
	w := e.do(t, http.MethodGet, "/recordings/user/u-1", other, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodGet, "/recordings/user/u-1", owner, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Recording
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "second", listed[0].Title, "newest first")
	assert.Equal(t, "first", listed[1].Title)
}

func TestDeleteRecording(t *testing.T) {
	e := newTestEnv(t)
	owner := tokenFor(t, "u-1", "ada@example.com", "Ada")
	other := tokenFor(t, "u-2", "bob@example.com", "Bob")

	body, ct := uploadBody(t, map[string]string{"title": "Sample", "script_text": "x"}, true)
	w := e.do(t, http.MethodPost, "/recordings/upload", owner, body, ct)
	require.Equal(t, http.StatusCreated, w.Code)
	var rec models.Recording
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))

	// 不存在的 id
	w = e.do(t, http.MethodDelete, "/recordings/no-such-id", owner, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 他人不能删除
	w = e.do(t, http.MethodDelete, "/recordings/"+rec.ID, other, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodDelete, "/recordings/"+rec.ID, owner, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/recordings/user/u-1", owner, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Recording
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Empty(t, listed)
}

func TestSearchRecordings(t *testing.T) {
	e := newTestEnv(t)
	owner := tokenFor(t, "u-1", "ada@example.com", "Ada")
	other := tokenFor(t, "u-2", "bob@example.com", "Bob")

	body, ct := uploadBody(t, map[string]string{
		"title":       "Morning greeting",
		"script_text": "Hello world this is a greeting",
	}, true)
	w := e.do(t, http.MethodPost, "/recordings/upload", owner, body, ct)
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodGet, "/recordings/search?q=greeting", owner, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var hits []models.Recording
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "Morning greeting", hits[0].Title)

	// 检索只命中本人的录音
	w = e.do(t, http.MethodGet, "/recordings/search?q=greeting", other, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	hits = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hits))
	assert.Empty(t, hits)
}

func TestHealthCheck(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestRecordingPrompts(t *testing.T) {
	e := newTestEnv(t)
	token := tokenFor(t, "u-1", "ada@example.com", "Ada")

	require.NoError(t, e.db.Create(&models.RecordingPrompt{ID: 1, Text: "Read me first", Order: 1}).Error)
	require.NoError(t, e.db.Create(&models.RecordingPrompt{ID: 2, Text: "Read me second", Order: 2}).Error)

	w := e.do(t, http.MethodGet, "/recordings/prompts", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var prompts []models.RecordingPrompt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prompts))
	require.Len(t, prompts, 2)
	assert.Equal(t, "Read me first", prompts[0].Text)
}
