package monitoring

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get /status: %v", err)
	}
	defer resp.Body.Close()

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Status != "ok" {
		t.Errorf("status = %q", st.Status)
	}
	if st.GoVersion == "" || st.NumCPU <= 0 || st.Goroutines <= 0 {
		t.Errorf("runtime fields missing: %+v", st)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("prometheus exposition missing standard collectors")
	}
}
