package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jobharvest/services/harvester/internal/api"
	"jobharvest/services/harvester/internal/config"
	"jobharvest/services/harvester/internal/harvest"
	"jobharvest/services/harvester/internal/normalizer"
	"jobharvest/services/harvester/internal/sink"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// newPipeline wires the real client, loop, runner and CSV sink against srv.
func newPipeline(t *testing.T, srv *httptest.Server, outPath string) *harvest.Runner {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := &config.Config{
		ListURL:      srv.URL + "/jobs",
		JobURLPrefix: "https://example.test/job/",
		APITimeout:   5 * time.Second,
		PageLimit:    20,
	}
	client := api.NewListingClient(logger, cfg, srv.Client(), nil)
	loop := harvest.NewLoop(client, normalizer.New(cfg.JobURLPrefix), logger, harvest.OptionsFromConfig(cfg))
	return harvest.NewRunner(loop, nil, sink.NewCSVSink(outPath), logger)
}

func TestRunHarvest_ExitCodes(t *testing.T) {
	const onePosting = `{"total": 1, "jobPostings": [{"title": "Estimator", "externalPath": "/job/x/Estimator_R1"}]}`
	cases := []struct {
		name     string
		status   int
		body     string
		blockOut bool
		wantCode int
		wantFile bool
	}{
		{"completed", http.StatusOK, onePosting, false, 0, true},
		{"zero records", http.StatusOK, `{"total": 0, "jobPostings": []}`, false, 0, false},
		{"aborted by failed fetch", http.StatusServiceUnavailable, `busy`, false, 0, false},
		{"persist failure", http.StatusOK, onePosting, true, 1, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte(c.body))
			}))
			defer srv.Close()

			dir := t.TempDir()
			out := filepath.Join(dir, "jobs.csv")
			if c.blockOut {
				blocker := filepath.Join(dir, "file")
				if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
				out = filepath.Join(blocker, "jobs.csv")
			}

			code := runHarvest(context.Background(), newPipeline(t, srv, out), zaptest.NewLogger(t))
			if code != c.wantCode {
				t.Errorf("exit code = %d, want %d", code, c.wantCode)
			}
			if _, err := os.Stat(out); (err == nil) != c.wantFile {
				t.Errorf("output exists = %v, want %v", err == nil, c.wantFile)
			}
		})
	}
}

type failingRunner struct{ err error }

func (r failingRunner) Run(context.Context) (harvest.Summary, error) {
	return harvest.Summary{}, r.err
}

func TestRunHarvest_FatalErrorExitsOne(t *testing.T) {
	code := runHarvest(context.Background(), failingRunner{err: stderrors.New("boom")}, zap.NewNop())
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
