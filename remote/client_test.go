package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get(TenantHeader); got != "user-1" {
			t.Errorf("%s = %q", TenantHeader, got)
		}
		if r.URL.Path != "/cases/case-1/sessions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set(RevisionHeader, "7")
		w.Header().Set(UpdatedAtHeader, "2026-01-02T03:04:05Z")
		w.Write([]byte(`[{"id":"s1"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithToken("tok"))
	rec, err := c.Get(context.Background(), "user-1", "/cases/case-1/sessions")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if rec.Revision != 7 {
		t.Errorf("Revision = %d, want 7", rec.Revision)
	}
	if string(rec.Data) != `[{"id":"s1"}]` {
		t.Errorf("Data = %s", rec.Data)
	}
	if want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC); !rec.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, want)
	}
}

func TestClientPut(t *testing.T) {
	var gotBody, gotRev, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotRev = r.Header.Get(RevisionHeader)
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Put(context.Background(), "", "/cases", Record{Revision: 3, Data: []byte(`[]`)})
	if err != nil {
		t.Fatalf("Put error = %v", err)
	}
	if gotBody != "[]" || gotRev != "3" || gotType != "application/json" {
		t.Errorf("body=%q rev=%q type=%q", gotBody, gotRev, gotType)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantErr    error
		wantStatus int
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: ErrNotFound},
		{name: "server error", status: http.StatusInternalServerError, wantErr: ErrUnavailable, wantStatus: 500},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ErrUnavailable, wantStatus: 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", tt.status)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Get(context.Background(), "", "/cases")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantStatus == 0 {
				return
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("error %v is not a StatusError", err)
			}
			if statusErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestClientConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Put(context.Background(), "", "/cases", Record{Revision: 1, Data: []byte(`[]`)})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || !statusErr.Conflict() {
		t.Fatalf("error = %v, want conflict", err)
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.Get(context.Background(), "", "/cases")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := NewClient(url).Delete(context.Background(), "", "/cases"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if _, err := NewClient("").Get(context.Background(), "", "/cases"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("empty base url error = %v, want ErrUnavailable", err)
	}
}

func TestClientDeleteMissing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if err := NewClient(srv.URL).Delete(context.Background(), "", "/cases"); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
}
