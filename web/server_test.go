package web_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"f0oster/oktaldap/directory"
	"f0oster/oktaldap/okta"
	"f0oster/oktaldap/web"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticSource struct {
	snap *directory.Snapshot
}

func (s *staticSource) Current() *directory.Snapshot { return s.snap }

func testSnapshot(t *testing.T) *directory.Snapshot {
	t.Helper()
	templates := directory.Templates{
		UserDN:  "uid={{{shortName}}},ou=users,dc=example,dc=org",
		GroupDN: "cn={{{profile.name}}},ou=groups,dc=example,dc=org",
	}
	snap, err := directory.NewBuilder(templates, testLogger()).Build(&okta.Directory{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return snap
}

func TestServer_Healthz(t *testing.T) {
	srv := httptest.NewServer(web.NewServer(&staticSource{snap: testSnapshot(t)}, ":0", testLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_Healthz_NoSnapshot(t *testing.T) {
	srv := httptest.NewServer(web.NewServer(&staticSource{}, ":0", testLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestServer_Status(t *testing.T) {
	srv := httptest.NewServer(web.NewServer(&staticSource{snap: testSnapshot(t)}, ":0", testLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var status struct {
		Entries    int `json:"entries"`
		Containers int `json:"containers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Entries != 4 || status.Containers != 4 {
		t.Errorf("status = %+v, want 4 container entries", status)
	}
}
