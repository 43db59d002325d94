package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"lexcase-backend/persistence"
	"lexcase-backend/remote"
	"lexcase-backend/repository"
	"lexcase-backend/storage"
)

// memoryRecords is an in-memory RecordRepository with the same revision
// rule as the Postgres repository
type memoryRecords struct {
	mu      sync.Mutex
	records map[string]repository.StoredRecord
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{records: make(map[string]repository.StoredRecord)}
}

func (m *memoryRecords) Get(ctx context.Context, tenant, key string) (*repository.StoredRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[tenant+"|"+key]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return &rec, nil
}

func (m *memoryRecords) Put(ctx context.Context, rec *repository.StoredRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := rec.Tenant + "|" + rec.Key
	if cur, ok := m.records[id]; ok && cur.Revision > rec.Revision {
		return repository.ErrStaleRevision
	}
	rec.UpdatedAt = time.Now().UTC()
	m.records[id] = *rec
	return nil
}

func (m *memoryRecords) Delete(ctx context.Context, tenant, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, tenant+"|"+key)
	return nil
}

const testToken = "s3cret-token"

func newTestRouter(t *testing.T, records RecordRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte(testToken), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	api := r.Group("/api")
	api.Use(BearerAuth(string(hash)))
	NewRecordHandler(records, nil).Register(api)
	return r
}

func doRequest(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecordRoutes(t *testing.T) {
	records := newMemoryRecords()
	r := newTestRouter(t, records)

	tests := []struct {
		path string
		key  string
	}{
		{"/api/cases", "cases"},
		{"/api/documents", "savedDocuments"},
		{"/api/cases/case-1/messages", "chat_case-1"},
		{"/api/cases/1/sessions", "chat_sessions_case-1"},
		{"/api/cases/case-1/sessions/s-9/messages", "chat_case-1_s-9"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := doRequest(r, http.MethodPut, tt.path, `[{"id":"x"}]`, map[string]string{
				remote.RevisionHeader: "1",
				remote.TenantHeader:   "firm-a",
			})
			if w.Code != http.StatusOK {
				t.Fatalf("PUT status = %d, body %s", w.Code, w.Body)
			}
			if _, err := records.Get(context.Background(), "firm-a", tt.key); err != nil {
				t.Fatalf("record %s not stored: %v", tt.key, err)
			}

			w = doRequest(r, http.MethodGet, tt.path, "", map[string]string{remote.TenantHeader: "firm-a"})
			if w.Code != http.StatusOK {
				t.Fatalf("GET status = %d", w.Code)
			}
			if w.Body.String() != `[{"id":"x"}]` {
				t.Errorf("GET body = %s", w.Body)
			}
			if w.Header().Get(remote.RevisionHeader) != "1" {
				t.Errorf("revision header = %q", w.Header().Get(remote.RevisionHeader))
			}

			w = doRequest(r, http.MethodGet, tt.path, "", map[string]string{remote.TenantHeader: "firm-b"})
			if w.Code != http.StatusNotFound {
				t.Errorf("other tenant GET status = %d, want 404", w.Code)
			}

			w = doRequest(r, http.MethodDelete, tt.path, "", map[string]string{remote.TenantHeader: "firm-a"})
			if w.Code != http.StatusNoContent {
				t.Errorf("DELETE status = %d", w.Code)
			}
			w = doRequest(r, http.MethodGet, tt.path, "", map[string]string{remote.TenantHeader: "firm-a"})
			if w.Code != http.StatusNotFound {
				t.Errorf("GET after DELETE status = %d, want 404", w.Code)
			}
		})
	}
}

func TestRecordRoutesRejectAliasingIDs(t *testing.T) {
	records := newMemoryRecords()
	r := newTestRouter(t, records)

	paths := []string{
		"/api/cases/case-a_b/messages",
		"/api/cases/case-a_b/sessions",
		"/api/cases/case-a/sessions/b_c/messages",
	}
	for _, path := range paths {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			w := doRequest(r, method, path, `[]`, map[string]string{remote.RevisionHeader: "1"})
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s %s status = %d, want 400", method, path, w.Code)
			}
		}
	}
	if _, err := records.Get(context.Background(), "", "chat_case-a_b"); err == nil {
		t.Error("aliasing write was stored")
	}
}

func TestPutRecordValidation(t *testing.T) {
	r := newTestRouter(t, newMemoryRecords())

	tests := []struct {
		name     string
		body     string
		revision string
		want     int
	}{
		{name: "missing revision", body: `[]`, want: http.StatusBadRequest},
		{name: "negative revision", body: `[]`, revision: "-1", want: http.StatusBadRequest},
		{name: "object body", body: `{"id":"x"}`, revision: "1", want: http.StatusBadRequest},
		{name: "invalid json", body: `[{`, revision: "1", want: http.StatusBadRequest},
		{name: "ok", body: ` [] `, revision: "0", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.revision != "" {
				headers[remote.RevisionHeader] = tt.revision
			}
			if w := doRequest(r, http.MethodPut, "/api/cases", tt.body, headers); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestPutStaleRevision(t *testing.T) {
	r := newTestRouter(t, newMemoryRecords())

	if w := doRequest(r, http.MethodPut, "/api/cases", `["b"]`, map[string]string{remote.RevisionHeader: "5"}); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	w := doRequest(r, http.MethodPut, "/api/cases", `["a"]`, map[string]string{remote.RevisionHeader: "4"})
	if w.Code != http.StatusConflict {
		t.Errorf("stale PUT status = %d, want 409", w.Code)
	}
	w = doRequest(r, http.MethodGet, "/api/cases", "", nil)
	if w.Body.String() != `["b"]` {
		t.Errorf("stale write applied: %s", w.Body)
	}
}

func TestBearerAuth(t *testing.T) {
	r := newTestRouter(t, newMemoryRecords())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + testToken, want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + testToken, want: http.StatusNotFound},
		{name: "valid cached", header: "bearer " + testToken, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cases", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestBearerAuthWithoutHash(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BearerAuth(""))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCoordinatorAgainstServer(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, newMemoryRecords()))
	defer srv.Close()

	ctx := context.Background()
	client := remote.NewClient(srv.URL+"/api", remote.WithToken(testToken))

	writer := persistence.NewCoordinator(
		persistence.WithLocalStore(storage.NewMemoryStorage()),
		persistence.WithRemote(client),
		persistence.WithTenant("firm-a"),
	)
	key := storage.SessionKey("case-1", "s1")
	if _, err := writer.Write(ctx, key, []byte(`[{"id":"m1"}]`)); err != nil {
		t.Fatalf("Write error = %v", err)
	}

	reader := persistence.NewCoordinator(
		persistence.WithLocalStore(storage.NewMemoryStorage()),
		persistence.WithRemote(client),
		persistence.WithTenant("firm-a"),
	)
	rec, ok, err := reader.Read(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Read = ok %v, err %v", ok, err)
	}
	if string(rec.Data) != `[{"id":"m1"}]` || rec.Revision != 1 {
		t.Errorf("Read = rev %d %s", rec.Revision, rec.Data)
	}
}
