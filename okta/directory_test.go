package okta_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"f0oster/oktaldap/okta"
)

// batchTracker watches member fetches arrive: the high-water mark of
// simultaneous requests, and whether any request of batch N+1 started before
// every request of batch N had completed.
type batchTracker struct {
	mu        sync.Mutex
	batchSize int
	sizes     map[int]int

	current    int
	max        int
	completed  map[int]int
	violations []string
}

func newBatchTracker(batchSize int, total int) *batchTracker {
	sizes := make(map[int]int)
	for i := 0; i < total; i++ {
		sizes[i/batchSize]++
	}
	return &batchTracker{
		batchSize: batchSize,
		sizes:     sizes,
		completed: make(map[int]int),
	}
}

func (b *batchTracker) enter(group int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current++
	if b.current > b.max {
		b.max = b.current
	}
	batch := group / b.batchSize
	for earlier := 0; earlier < batch; earlier++ {
		if b.completed[earlier] != b.sizes[earlier] {
			b.violations = append(b.violations,
				fmt.Sprintf("group %d (batch %d) started with %d/%d of batch %d complete",
					group, batch, b.completed[earlier], b.sizes[earlier], earlier))
		}
	}
}

func (b *batchTracker) leave(group int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current--
	b.completed[group/b.batchSize]++
}

func TestClient_LoadMembers_BatchesFetches(t *testing.T) {
	const (
		groupCount = 45
		batchSize  = 20
	)

	tracker := newBatchTracker(batchSize, groupCount)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		group, err := strconv.Atoi(strings.TrimPrefix(r.URL.Query().Get("group"), "g"))
		if err != nil {
			t.Errorf("Unparseable group query %q", r.URL.Query().Get("group"))
		}
		tracker.enter(group)
		defer tracker.leave(group)
		time.Sleep(time.Millisecond)
		writeJSON(t, w, []map[string]string{
			{"id": "u-" + r.URL.Query().Get("group")},
		})
	}))
	defer srv.Close()

	groups := make([]*okta.Group, groupCount)
	for i := range groups {
		g := &okta.Group{
			ID:      fmt.Sprintf("g%d", i),
			Profile: map[string]any{"name": fmt.Sprintf("group-%d", i)},
		}
		g.Links.Users.Href = fmt.Sprintf("%s/members?group=g%d", srv.URL, i)
		groups[i] = g
	}

	if err := newTestClient(srv.URL).LoadMembers(context.Background(), groups); err != nil {
		t.Fatalf("LoadMembers failed: %v", err)
	}

	for i, g := range groups {
		want := []string{fmt.Sprintf("u-g%d", i)}
		if !reflect.DeepEqual(g.MemberIDs, want) {
			t.Errorf("Group %s MemberIDs = %v, want %v", g.ID, g.MemberIDs, want)
		}
	}
	if tracker.max > batchSize {
		t.Errorf("Concurrent member fetches peaked at %d, batches should bound it at %d", tracker.max, batchSize)
	}
	for _, v := range tracker.violations {
		t.Errorf("Batch overlap: %s", v)
	}
}

func TestClient_LoadMembers_FirstErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("group") == "g1" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, []map[string]string{})
	}))
	defer srv.Close()

	groups := make([]*okta.Group, 3)
	for i := range groups {
		g := &okta.Group{ID: fmt.Sprintf("g%d", i), Profile: map[string]any{"name": "g"}}
		g.Links.Users.Href = fmt.Sprintf("%s/members?group=g%d", srv.URL, i)
		groups[i] = g
	}

	if err := newTestClient(srv.URL).LoadMembers(context.Background(), groups); err == nil {
		t.Error("Expected error when one member fetch fails, got nil")
	}
}

func TestClient_BuildDirectory_LinksMembership(t *testing.T) {
	var mux *http.ServeMux
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
	}))
	defer srv.Close()

	mux = http.NewServeMux()
	mux.HandleFunc("/api/v1/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"id": "u1", "profile": map[string]any{"login": "jdoe@example.org", "email": "jdoe@example.org"}},
			{"id": "u2", "profile": map[string]any{"login": "asmith@example.org", "email": "asmith@example.org"}},
		})
	})
	mux.HandleFunc("/api/v1/groups", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{
				"id":      "g1",
				"profile": map[string]any{"name": "admins"},
				"_links": map[string]any{
					"users": map[string]any{"href": srv.URL + "/api/v1/groups/g1/users"},
				},
			},
		})
	})
	mux.HandleFunc("/api/v1/groups/g1/users", func(w http.ResponseWriter, r *http.Request) {
		// u3 is not an active user and must be dropped during linking.
		writeJSON(t, w, []map[string]string{{"id": "u1"}, {"id": "u3"}})
	})

	dir, err := newTestClient(srv.URL).BuildDirectory(context.Background())
	if err != nil {
		t.Fatalf("BuildDirectory failed: %v", err)
	}

	if len(dir.Users) != 2 || len(dir.Groups) != 1 {
		t.Fatalf("Got %d users, %d groups, want 2 and 1", len(dir.Users), len(dir.Groups))
	}

	g := dir.Groups[0]
	if len(g.Members) != 1 || g.Members[0].ID != "u1" {
		t.Fatalf("Group members = %+v, want only u1", g.Members)
	}

	u1 := dir.Users[0]
	if len(u1.Groups) != 1 || u1.Groups[0].ID != "g1" {
		t.Errorf("u1 back-references = %+v, want only g1", u1.Groups)
	}
	if len(dir.Users[1].Groups) != 0 {
		t.Errorf("u2 should have no group back-references, got %+v", dir.Users[1].Groups)
	}
}

func TestShortNameFromEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"jdoe@example.org", "jdoe"},
		{"jane.doe@corp.example.org", "jane.doe"},
		{"nodomain", "nodomain"},
		{"", ""},
	}

	for _, test := range tests {
		if got := okta.ShortNameFromEmail(test.email); got != test.want {
			t.Errorf("ShortNameFromEmail(%q) = %q, want %q", test.email, got, test.want)
		}
	}
}
