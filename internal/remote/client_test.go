package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestUpsertCategories_SetsOwnerAndHeaders(t *testing.T) {
	var gotPath, gotAuth, gotPrefer string
	var gotRows []CategoryRow
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotPrefer = r.Header.Get("Prefer")
		if err := json.NewDecoder(r.Body).Decode(&gotRows); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user-1", "tok", srv.Client())
	rows := []CategoryRow{{ID: "a", Name: "Animals", Color: "green", UpdatedAt: 100}}
	if err := c.UpsertCategories(context.Background(), rows); err != nil {
		t.Fatalf("UpsertCategories failed: %v", err)
	}

	if gotPath != "/rest/v1/categories" {
		t.Errorf("path = %q, want /rest/v1/categories", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotPrefer != "resolution=merge-duplicates" {
		t.Errorf("Prefer = %q, want resolution=merge-duplicates", gotPrefer)
	}
	if len(gotRows) != 1 || gotRows[0].Owner != "user-1" {
		t.Errorf("uploaded rows = %+v, want owner stamped as user-1", gotRows)
	}
}

func TestUpsertFlashcards_SkipsEmptyBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("empty upsert reached the network")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user-1", "tok", srv.Client())
	if err := c.UpsertFlashcards(context.Background(), nil); err != nil {
		t.Fatalf("empty UpsertFlashcards failed: %v", err)
	}
}

func TestSelectFlashcards_OwnerScopedPaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("owner"); got != "eq.user-1" {
			t.Errorf("owner filter = %q, want eq.user-1", got)
		}
		if got := q.Get("order"); got != "updated_at.asc" {
			t.Errorf("order = %q, want updated_at.asc", got)
		}
		if q.Get("offset") != "40" || q.Get("limit") != "20" {
			t.Errorf("paging = offset %s limit %s, want 40/20", q.Get("offset"), q.Get("limit"))
		}
		json.NewEncoder(w).Encode([]FlashcardRow{
			{ID: "f1", Word: "dog", CategoryID: "c1", UpdatedAt: 5},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user-1", "tok", srv.Client())
	rows, err := c.SelectFlashcards(context.Background(), 40, 20)
	if err != nil {
		t.Fatalf("SelectFlashcards failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Word != "dog" {
		t.Errorf("rows = %+v, want the served flashcard", rows)
	}
}

func TestDoJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user-1", "tok", srv.Client())
	if _, err := c.SelectCategories(context.Background(), 0, 10); err != nil {
		t.Fatalf("SelectCategories failed after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
}

func TestDoJSON_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "PGRST301",
			"message": "JWT expired",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user-1", "tok", srv.Client())
	_, err := c.SelectCategories(context.Background(), 0, 10)
	if err == nil {
		t.Fatal("SelectCategories succeeded against a 401")
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error type = %T, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusUnauthorized || httpErr.Code != "PGRST301" {
		t.Errorf("HTTPError = %+v, want 401 PGRST301", httpErr)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1 (no retry)", got)
	}
}

func TestAuthenticated(t *testing.T) {
	if NewClient("", "", "", nil).Authenticated() {
		t.Error("empty client reports authenticated")
	}
	if NewClient("https://x.example", "user-1", "", nil).Authenticated() {
		t.Error("client without token reports authenticated")
	}
	if !NewClient("https://x.example", "user-1", "tok", nil).Authenticated() {
		t.Error("fully configured client reports unauthenticated")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, Transient},
		{"http 401", &HTTPError{StatusCode: http.StatusUnauthorized}, Permanent},
		{"http 403", &HTTPError{StatusCode: http.StatusForbidden}, Permanent},
		{"http 422", &HTTPError{StatusCode: http.StatusUnprocessableEntity}, Permanent},
		{"http 429", &HTTPError{StatusCode: http.StatusTooManyRequests}, Transient},
		{"http 503", &HTTPError{StatusCode: http.StatusServiceUnavailable}, Transient},
		{"jwt expired", errors.New("JWT expired"), Permanent},
		{"rls violation", errors.New("new row violates row-level security policy"), Permanent},
		{"connection refused", errors.New("dial tcp: connection refused"), Transient},
		{"dns failure", errors.New("lookup api.example.com: no such host"), Transient},
		{"statement timeout", errors.New("canceling statement due to statement timeout"), Transient},
		{"unknown", errors.New("something odd happened"), Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
