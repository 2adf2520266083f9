package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"minisite/cache"
	"minisite/config"
	"minisite/core/auth"
	"minisite/core/events"
	"minisite/core/publish"
	"minisite/core/snapshot"
	"minisite/db"
	"minisite/repository"
	"minisite/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// brokenPointerStore fails every write of a latest pointer once armed.
type brokenPointerStore struct {
	*storage.MemoryStore
	mu     sync.Mutex
	broken bool
}

func (s *brokenPointerStore) Put(ctx context.Context, key string, data []byte, opts storage.PutOptions) (storage.ObjectInfo, error) {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken && strings.HasSuffix(key, "/latest.json") {
		return storage.ObjectInfo{}, storage.ErrUnavailable.Wrap(errors.New("bucket offline"))
	}
	return s.MemoryStore.Put(ctx, key, data, opts)
}

type testEnv struct {
	srv   *httptest.Server
	store *brokenPointerStore
	hub   *events.Hub
	cfg   *config.Config
}

type envOption func(*config.Config, *Deps, *testing.T)

func withRegistry() envOption {
	return func(cfg *config.Config, d *Deps, t *testing.T) {
		gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		require.NoError(t, err)
		sqlDB, err := gdb.DB()
		require.NoError(t, err)
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { sqlDB.Close() })
		require.NoError(t, db.AutoMigrate(gdb))
		d.Registry = repository.NewGormProjectRepository(gdb)
	}
}

func withDrafts() envOption {
	return func(cfg *config.Config, d *Deps, t *testing.T) {
		withDraftServer(miniredis.RunT(t))(cfg, d, t)
	}
}

func withDraftServer(mr *miniredis.Miniredis) envOption {
	return func(cfg *config.Config, d *Deps, t *testing.T) {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		d.Drafts = cache.NewProjectCache(client, time.Hour)
	}
}

func withConfig(fn func(*config.Config)) envOption {
	return func(cfg *config.Config, d *Deps, t *testing.T) { fn(cfg) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := &config.Config{
		SongCount:             9,
		RequestTimeout:        5 * time.Second,
		VerifyPublishSnapshot: true,
	}
	store := &brokenPointerStore{MemoryStore: storage.NewMemoryStore()}
	hub := events.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	deps := Deps{Config: cfg, Store: store, Hub: hub}
	for _, opt := range opts {
		opt(cfg, &deps, t)
	}

	observers := saveObservers{hub}
	pubOpts := []publish.Option{}
	if deps.Registry != nil {
		observers = append(observers, registryObserver{repo: deps.Registry})
		pubOpts = append(pubOpts, publish.WithRecorder(deps.Registry))
	}
	deps.Snapshots = snapshot.NewService(store, snapshot.WithSongCount(cfg.SongCount), snapshot.WithNotifier(observers))
	if cfg.VerifyPublishSnapshot {
		pubOpts = append(pubOpts, publish.WithVerifier(deps.Snapshots))
	}
	pubOpts = append(pubOpts, publish.WithRecorder(deps.Snapshots))
	deps.Publisher = publish.NewPublisher(store, pubOpts...)

	srv := httptest.NewServer(NewRouter(NewAPIHandler(deps)))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store, hub: hub, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func masterSaveBody(projectID string, titles ...string) map[string]interface{} {
	songs := make([]interface{}, 0, len(titles))
	for i, title := range titles {
		songs = append(songs, map[string]interface{}{"slot": i + 1, "title": title})
	}
	return map[string]interface{}{
		"projectId": projectID,
		"project":   map[string]interface{}{"catalog": map[string]interface{}{"songs": songs}},
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestMasterSaveAndLatest(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "Test Song"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	snapshotKey := body["snapshotKey"].(string)
	assert.True(t, strings.HasPrefix(snapshotKey, "storage/projects/100001/producer_returns/snapshots/"))
	assert.Equal(t, "storage/projects/100001/producer_returns/latest.json", body["latestKey"])

	resp, body = env.do(t, http.MethodGet, "/api/master-save/latest/100001", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, snapshotKey, body["latest"].(map[string]interface{})["latestSnapshotKey"])

	project := body["snapshot"].(map[string]interface{})["project"].(map[string]interface{})
	songs := project["catalog"].(map[string]interface{})["songs"].([]interface{})
	require.Len(t, songs, 9)
	assert.Equal(t, "Test Song", songs[0].(map[string]interface{})["title"])

	resp, body = env.do(t, http.MethodGet, "/api/master-save/snapshot?key="+snapshotKey, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, snapshotKey, body["snapshot"].(map[string]interface{})["snapshotKey"])
}

func TestLatestWithoutSave(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/api/master-save/latest/999999", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, CodeNoLatestSnapshot, body["error"])
}

func TestMasterSaveBadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body interface{}
		code string
	}{
		{"bad id", masterSaveBody("../x", "A"), CodeInvalidRequest},
		{"bad section", map[string]interface{}{"projectId": "100001", "section": "master", "project": map[string]interface{}{}}, CodeInvalidRequest},
		{"missing project", map[string]interface{}{"projectId": "100001"}, CodeInvalidRequest},
		{"duplicate slots", map[string]interface{}{
			"projectId": "100001",
			"project": map[string]interface{}{"catalog": map[string]interface{}{"songs": []interface{}{
				map[string]interface{}{"slot": 2}, map[string]interface{}{"slot": 2},
			}}},
		}, CodeInvalidProjectDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/master-save", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, body["error"])
		})
	}

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/master-save", strings.NewReader("{oops"))
	require.NoError(t, err)
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPointerFailureReportsSnapshotKey(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "One"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := body["snapshotKey"]

	env.store.mu.Lock()
	env.store.broken = true
	env.store.mu.Unlock()

	resp, body = env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "Two"), "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, CodePointerWriteFailed, body["error"])
	assert.NotEmpty(t, body["snapshotKey"])
	assert.NotEqual(t, first, body["snapshotKey"])

	resp, body = env.do(t, http.MethodGet, "/api/master-save/latest/100001", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first, body["latest"].(map[string]interface{})["latestSnapshotKey"])
}

func TestPatchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "One", "Two"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/master-save/patch", map[string]interface{}{
		"projectId": "100001",
		"section":   "songs",
		"patch": map[string]interface{}{"connections": map[string]interface{}{
			"1-2": map[string]interface{}{"fromSlot": 1, "toSlot": 2, "bridgeStoreKey": "b1", "locked": true},
		}},
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, []interface{}{}, body["ignoredLocked"])

	resp, body = env.do(t, http.MethodPost, "/api/master-save/patch", map[string]interface{}{
		"projectId": "100001",
		"section":   "songs",
		"patch": map[string]interface{}{"connections": map[string]interface{}{
			"1-2": map[string]interface{}{"bridgeStoreKey": "b2"},
		}},
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, []interface{}{"songs.connections.1-2"}, body["ignoredLocked"])

	resp, body = env.do(t, http.MethodPost, "/api/master-save/patch", map[string]interface{}{
		"projectId": "100001", "section": "bogus", "patch": map[string]interface{}{},
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidRequest, body["error"])
}

func TestPublishAndServe(t *testing.T) {
	env := newTestEnv(t, withRegistry())
	_, body := env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "Test Song"), "")
	snapshotKey := body["snapshotKey"].(string)

	resp, body := env.do(t, http.MethodPost, "/api/publish-minisite", map[string]interface{}{
		"projectId": "100001", "snapshotKey": snapshotKey,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	shareID := body["shareId"].(string)
	assert.Regexp(t, "^[0-9a-f]{16}$", shareID)
	publicURL := body["publicUrl"].(string)
	assert.Equal(t, "/public/players/"+shareID+"/index.html", publicURL)

	resp, manifest := env.do(t, http.MethodGet, "/public/players/"+shareID+"/manifest.json", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, snapshotKey, manifest["snapshotKey"])

	page, err := env.srv.Client().Get(env.srv.URL + "/public/players/" + shareID + "/")
	require.NoError(t, err)
	html, _ := io.ReadAll(page.Body)
	page.Body.Close()
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(html), "manifest.json")

	resp, body = env.do(t, http.MethodGet, "/api/projects/100001/publications", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pubs := body["publications"].([]interface{})
	require.Len(t, pubs, 1)
	assert.Equal(t, shareID, pubs[0].(map[string]interface{})["shareId"])
}

func TestPublishErrors(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/publish-minisite", map[string]interface{}{"projectId": "100001"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodePublishTargetMissing, body["error"])

	resp, body = env.do(t, http.MethodPost, "/api/publish-minisite", map[string]interface{}{
		"projectId":   "100001",
		"snapshotKey": "storage/projects/100001/producer_returns/snapshots/2020-01-01T00-00-00-000Z.json",
	}, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeSnapshotNotFound, body["error"])
}

func TestPublicHandlerOnlyServesPublicKeys(t *testing.T) {
	env := newTestEnv(t)
	_, _ = env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "One"), "")

	for _, path := range []string{
		"/public/players/missing/manifest.json",
		"/public/../storage/projects/100001/producer_returns/latest.json",
		"/storage/projects/100001/producer_returns/latest.json",
	} {
		resp, err := env.srv.Client().Get(env.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.NotEqual(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestProjectsAndDrafts(t *testing.T) {
	env := newTestEnv(t, withRegistry(), withDrafts())

	resp, body := env.do(t, http.MethodPost, "/api/projects", map[string]interface{}{"title": "Debut"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	projectID := body["projectId"].(string)
	assert.Regexp(t, `^[1-9]\d{5}$`, projectID)

	resp, body = env.do(t, http.MethodGet, "/api/projects/"+projectID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Debut", body["project"].(map[string]interface{})["title"])

	resp, body = env.do(t, http.MethodGet, "/api/projects/"+projectID+"/draft", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	album := body["project"].(map[string]interface{})["album"].(map[string]interface{})
	assert.Equal(t, "Debut", album["title"])

	draft := map[string]interface{}{
		"projectId": projectID,
		"catalog": map[string]interface{}{"songs": []interface{}{
			map[string]interface{}{"slot": 1, "title": "From Draft"},
		}},
	}
	resp, _ = env.do(t, http.MethodPut, "/api/projects/"+projectID+"/draft", draft, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A master save without a document saves the cached draft.
	resp, body = env.do(t, http.MethodPost, "/api/master-save", map[string]interface{}{"projectId": projectID}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	resp, body = env.do(t, http.MethodGet, "/api/master-save/latest/"+projectID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	songs := body["snapshot"].(map[string]interface{})["project"].(map[string]interface{})["catalog"].(map[string]interface{})["songs"].([]interface{})
	assert.Equal(t, "From Draft", songs[0].(map[string]interface{})["title"])

	resp, body = env.do(t, http.MethodGet, "/api/projects/"+projectID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["project"].(map[string]interface{})["lastSnapshotKey"])

	resp, body = env.do(t, http.MethodGet, "/api/projects/123456/draft", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeNoDraft, body["error"])
}

func TestDraftsDisabled(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/api/projects/100001/draft", nil, "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, CodeNotImplemented, body["error"])

	resp, body = env.do(t, http.MethodGet, "/api/playback-url?key=audio/a.mp3", nil, "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, CodeNotImplemented, body["error"])
}

func TestAuth(t *testing.T) {
	secret := "s3cret"
	env := newTestEnv(t, withConfig(func(c *config.Config) { c.JWTSecret = secret }))

	resp, body := env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "One"), "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, CodeUnauthorized, body["error"])

	resp, _ = env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "One"), "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, err := auth.GenerateToken([]byte(secret), "producer", "100002", time.Hour)
	require.NoError(t, err)
	resp, body = env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "One"), other)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, CodeForbidden, body["error"])

	scoped, err := auth.GenerateToken([]byte(secret), "producer", "100001", time.Hour)
	require.NoError(t, err)
	resp, _ = env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "One"), scoped)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Reads stay open.
	resp, _ = env.do(t, http.MethodGet, "/api/master-save/latest/100001", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWriteRateLimit(t *testing.T) {
	env := newTestEnv(t, withConfig(func(c *config.Config) { c.WriteRateLimit = 0.001 }))

	resp, _ := env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "One"), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "Two"), "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, CodeRateLimited, body["error"])

	resp, _ = env.do(t, http.MethodGet, "/api/master-save/latest/100001", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSaveEventsOverWebsocket(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/master-save/events/100001"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.ClientCount("100001") == 1 }, 2*time.Second, 10*time.Millisecond)

	_, body := env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "One"), "")
	snapshotKey := body["snapshotKey"]

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.EventSnapshotSaved, ev.Type)
	assert.Equal(t, snapshotKey, ev.SnapshotKey)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, _ = env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "One"), "")

	resp, err := env.srv.Client().Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), `minisite_master_saves_total{kind="full",result="ok"} 1`)
	assert.Contains(t, string(text), `route="/api/master-save"`)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{snapshot.ErrPointerWrite.Wrap(storage.ErrUnavailable.New("x")), http.StatusInternalServerError, CodePointerWriteFailed},
		{snapshot.ErrSnapshotWrite.Wrap(storage.ErrUnavailable.New("x")), http.StatusInternalServerError, CodeSnapshotWriteFailed},
		{storage.ErrUnavailable.New("x"), http.StatusServiceUnavailable, CodeStorageUnavailable},
		{publish.ErrSnapshotNotFound.New("x"), http.StatusNotFound, CodeSnapshotNotFound},
		{auth.ErrInvalidToken.New("x"), http.StatusUnauthorized, CodeUnauthorized},
		{storage.ErrPresignUnsupported, http.StatusNotImplemented, CodeNotImplemented},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		status, code := classify(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestMasterSaveKeepsLockedConnection(t *testing.T) {
	env := newTestEnv(t)
	save := func(bridge string) map[string]interface{} {
		body := masterSaveBody("100001", "One", "Two")
		doc := body["project"].(map[string]interface{})
		doc["songs"] = map[string]interface{}{"connections": map[string]interface{}{
			"1-2": map[string]interface{}{"fromSlot": 1, "toSlot": 2, "bridgeStoreKey": bridge, "locked": true},
		}}
		doc["album"] = map[string]interface{}{
			"title":         "Record",
			"playlistOrder": []int{1, 2},
			"locks":         map[string]interface{}{"playlist": true},
		}
		return body
	}

	resp, body := env.do(t, http.MethodPost, "/api/master-save", save("b1"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, []interface{}{}, body["ignoredLocked"])

	second := save("b2")
	second["project"].(map[string]interface{})["album"].(map[string]interface{})["playlistOrder"] = []int{2, 1}
	resp, body = env.do(t, http.MethodPost, "/api/master-save", second, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, []interface{}{"songs.connections.1-2", "album.playlistOrder"}, body["ignoredLocked"])

	resp, body = env.do(t, http.MethodGet, "/api/master-save/latest/100001", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	project := body["snapshot"].(map[string]interface{})["project"].(map[string]interface{})
	conn := project["songs"].(map[string]interface{})["connections"].(map[string]interface{})["1-2"].(map[string]interface{})
	assert.Equal(t, "b1", conn["bridgeStoreKey"])
	assert.Equal(t, []interface{}{1.0, 2.0}, project["album"].(map[string]interface{})["playlistOrder"])
}

func TestPublishRecordedOnLatestSnapshot(t *testing.T) {
	env := newTestEnv(t, withRegistry())
	_, body := env.do(t, http.MethodPost, "/api/master-save", masterSaveBody("100001", "Test Song"), "")
	snapshotKey := body["snapshotKey"].(string)
	savedAt := body["lastMasterSaveAt"]

	resp, body := env.do(t, http.MethodPost, "/api/publish-minisite", map[string]interface{}{
		"projectId": "100001", "snapshotKey": snapshotKey,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	shareID := body["shareId"].(string)

	resp, body = env.do(t, http.MethodGet, "/api/master-save/latest/100001", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, savedAt, body["latest"].(map[string]interface{})["lastMasterSaveAt"])
	project := body["snapshot"].(map[string]interface{})["project"].(map[string]interface{})
	publish := project["publish"].(map[string]interface{})
	assert.Equal(t, shareID, publish["lastShareId"])
	assert.Equal(t, snapshotKey, publish["snapshotKey"])
	assert.Equal(t, body["latest"].(map[string]interface{})["latestSnapshotKey"], project["master"].(map[string]interface{})["lastSnapshotKey"])
}

func TestCreateProjectWithoutRegistryOrRedis(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/projects", map[string]interface{}{"title": "Debut"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	projectID := body["projectId"].(string)
	assert.NotEmpty(t, body["snapshotKey"])

	resp, body = env.do(t, http.MethodGet, "/api/master-save/latest/"+projectID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	project := body["snapshot"].(map[string]interface{})["project"].(map[string]interface{})
	assert.Equal(t, "Debut", project["album"].(map[string]interface{})["title"])
	assert.Equal(t, false, project["master"].(map[string]interface{})["isMasterSaved"])

	resp, body = env.do(t, http.MethodGet, "/api/projects/"+projectID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, projectID, body["project"].(map[string]interface{})["projectId"])

	resp, body = env.do(t, http.MethodPost, "/api/projects", map[string]interface{}{"title": "Second"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.NotEqual(t, projectID, body["projectId"])
}

func TestCreateProjectFailsWhenStorageIsDown(t *testing.T) {
	env := newTestEnv(t)
	env.store.mu.Lock()
	env.store.broken = true
	env.store.mu.Unlock()

	resp, body := env.do(t, http.MethodPost, "/api/projects", map[string]interface{}{"title": "Debut"}, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, CodePointerWriteFailed, body["error"])
}

func TestDraftsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	env := newTestEnv(t, withDraftServer(mr))
	mr.Close()

	resp, body := env.do(t, http.MethodGet, "/api/projects/100001/draft", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, CodeStorageUnavailable, body["error"])

	resp, body = env.do(t, http.MethodPut, "/api/projects/100001/draft", map[string]interface{}{"projectId": "100001"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, CodeStorageUnavailable, body["error"])
}
