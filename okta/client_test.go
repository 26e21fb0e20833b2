package okta_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"f0oster/oktaldap/okta"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(url string) *okta.Client {
	return okta.NewClient(okta.Config{URL: url, Token: "test-token"}, testLogger())
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestClient_ListGroups_FollowsPagination(t *testing.T) {
	var requests []string
	var mux *http.ServeMux
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.String())
		if got := r.Header.Get("Authorization"); got != "SSWS test-token" {
			t.Errorf("Authorization = %q, want SSWS test-token", got)
		}
		mux.ServeHTTP(w, r)
	}))
	defer srv.Close()

	mux = http.NewServeMux()
	mux.HandleFunc("/api/v1/groups", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			next := srv.URL + "/api/v1/groups?after=cursor1&limit=200"
			w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
			w.Header().Add("Link", fmt.Sprintf(`<%s>; rel="self"`, srv.URL))
			writeJSON(t, w, []map[string]any{
				{"id": "g1", "profile": map[string]any{"name": "one"}},
			})
			return
		}
		writeJSON(t, w, []map[string]any{
			{"id": "g2", "profile": map[string]any{"name": "two"}},
		})
	})

	groups, err := newTestClient(srv.URL).ListGroups(context.Background())
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("Got %d groups, want 2", len(groups))
	}
	if groups[0].ID != "g1" || groups[1].ID != "g2" {
		t.Errorf("Unexpected group order: %s, %s", groups[0].ID, groups[1].ID)
	}
	if len(requests) != 2 {
		t.Fatalf("Got %d requests, want 2: %v", len(requests), requests)
	}
	if !strings.Contains(requests[0], "limit=200") {
		t.Errorf("First request missing page limit: %s", requests[0])
	}
	if !strings.Contains(requests[1], "after=cursor1") {
		t.Errorf("Second request missing cursor: %s", requests[1])
	}
}

func TestClient_ListUsers_FiltersActive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter"); got != `status eq "ACTIVE"` {
			t.Errorf("filter = %q", got)
		}
		writeJSON(t, w, []map[string]any{
			{"id": "u1", "profile": map[string]any{"login": "jdoe@example.org"}},
		})
	}))
	defer srv.Close()

	users, err := newTestClient(srv.URL).ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 1 || users[0].Login() != "jdoe@example.org" {
		t.Errorf("Unexpected users: %+v", users)
	}
}

func TestClient_ListGroups_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(t, w, map[string]string{
			"errorCode":    "E0000011",
			"errorSummary": "Invalid token provided",
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListGroups(context.Background())
	if err == nil {
		t.Fatal("Expected error for 401 response, got nil")
	}
	var fetchErr *okta.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected *FetchError, got %T: %v", err, err)
	}
	if fetchErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", fetchErr.StatusCode)
	}
	if fetchErr.Summary != "Invalid token provided" {
		t.Errorf("Summary = %q", fetchErr.Summary)
	}
}

func TestClient_CheckCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/authn" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Fatalf("decode authn body: %v", err)
		}
		if creds["username"] == "jdoe@example.org" && creds["password"] == "hunter2" {
			writeJSON(t, w, map[string]string{"status": "SUCCESS"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(t, w, map[string]string{"errorSummary": "Authentication failed"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx := context.Background()

	if err := client.CheckCredentials(ctx, "jdoe@example.org", "hunter2"); err != nil {
		t.Errorf("Valid credentials rejected: %v", err)
	}
	err := client.CheckCredentials(ctx, "jdoe@example.org", "wrong")
	if err == nil {
		t.Fatal("Invalid credentials accepted")
	}
	if !strings.Contains(err.Error(), "Authentication failed") {
		t.Errorf("Error should carry the provider summary: %v", err)
	}
}
