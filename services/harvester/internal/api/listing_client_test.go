package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"jobharvest/common/cache"
	"jobharvest/common/cache/memory"
	"jobharvest/services/harvester/internal/config"
	"jobharvest/services/harvester/internal/errors"
	"jobharvest/services/harvester/internal/models"

	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, srv *httptest.Server, c cache.Cache) ListingClient {
	t.Helper()
	cfg := &config.Config{ListURL: srv.URL + "/jobs/", APITimeout: 5 * time.Second, CacheTTL: time.Minute}
	return NewListingClient(zaptest.NewLogger(t), cfg, srv.Client(), c)
}

func TestFetchPage_SendsOneRequestWithBody(t *testing.T) {
	var calls int32
	var gotBody map[string]any
	var gotMethod, gotPath, gotAccept, gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotMethod, gotPath = r.Method, r.URL.Path
		gotAccept, gotContentType = r.Header.Get("Accept"), r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"total": 45, "jobPostings": [
			{"title": "Estimator", "locations": [{"name": "Atlanta, GA"}], "postedOn": "Posted Today", "externalPath": "/job/Atlanta-GA/Estimator_R1"}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, nil)
	req := models.PageRequest{Offset: 40, Limit: 20}
	page, err := client.FetchPage(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	if calls != 1 {
		t.Errorf("server saw %d requests, want 1", calls)
	}
	if gotMethod != http.MethodPost || gotPath != "/jobs" {
		t.Errorf("request = %s %s, want POST /jobs", gotMethod, gotPath)
	}
	if gotAccept != "application/json" || gotContentType != "application/json" {
		t.Errorf("headers Accept=%q Content-Type=%q", gotAccept, gotContentType)
	}
	wantBody := map[string]any{
		"appliedFacets": map[string]any{},
		"limit":         float64(20),
		"offset":        float64(40),
		"searchText":    "",
	}
	if !reflect.DeepEqual(gotBody, wantBody) {
		t.Errorf("body = %v, want %v", gotBody, wantBody)
	}
	if req.Facets != nil {
		t.Error("FetchPage must not mutate the request")
	}

	if page.Total == nil || *page.Total != 45 {
		t.Errorf("Total = %v, want 45", page.Total)
	}
	if len(page.Entries) != 1 || page.Entries[0].ExternalPath != "/job/Atlanta-GA/Estimator_R1" {
		t.Errorf("Entries = %+v", page.Entries)
	}
}

func TestFetchPage_FacetsAndSearchText(t *testing.T) {
	var gotBody pageRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"jobPostings": []}`))
	}))
	defer srv.Close()

	facets := map[string][]string{"locations": {"abc"}}
	page, err := newTestClient(t, srv, nil).FetchPage(context.Background(), models.PageRequest{
		Limit: 5, SearchText: "estimator", Facets: facets,
	})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if gotBody.SearchText != "estimator" || !reflect.DeepEqual(gotBody.AppliedFacets, facets) {
		t.Errorf("body = %+v", gotBody)
	}
	if page.Total != nil {
		t.Errorf("Total = %v, want absent", *page.Total)
	}
	if len(page.Entries) != 0 {
		t.Errorf("Entries = %v, want empty", page.Entries)
	}
}

func TestFetchPage_Failures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantTyp errors.ErrorType
	}{
		{"server error", http.StatusServiceUnavailable, `busy`, errors.ErrTypeFetch},
		{"client error", http.StatusBadRequest, `{}`, errors.ErrTypeFetch},
		{"malformed body", http.StatusOK, `{"jobPostings": [`, errors.ErrTypeFetch},
		{"missing jobPostings", http.StatusOK, `{"total": 3}`, errors.ErrTypeFetch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte(c.body))
			}))
			defer srv.Close()

			page, err := newTestClient(t, srv, nil).FetchPage(context.Background(), models.PageRequest{Limit: 20})
			if err == nil {
				t.Fatalf("expected error, got page %+v", page)
			}
			if !errors.IsType(err, c.wantTyp) {
				t.Errorf("error %v is not %s", err, c.wantTyp)
			}
		})
	}
}

func TestFetchPage_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t, srv, nil)
	srv.Close()

	_, err := client.FetchPage(context.Background(), models.PageRequest{Limit: 20})
	if !errors.IsType(err, errors.ErrTypeFetch) {
		t.Errorf("error %v is not FETCH", err)
	}
}

func TestFetchPage_InvalidInput(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()
	client := newTestClient(t, srv, nil)

	for _, req := range []models.PageRequest{{Offset: -1, Limit: 20}, {Offset: 0, Limit: 0}} {
		if _, err := client.FetchPage(context.Background(), req); !errors.IsType(err, errors.ErrTypeInvalidInput) {
			t.Errorf("FetchPage(%+v) error = %v, want INVALID_INPUT", req, err)
		}
	}
	if calls != 0 {
		t.Errorf("invalid requests reached the server %d times", calls)
	}
}

func TestFetchDetail_CachesResult(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodGet || r.URL.Path != "/jobs/Estimator_R1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"jobPostingInfo": {"jobReqId": "R1", "timeType": "Full time", "startDate": "2024-03-01", "location": "Atlanta, GA"}}`))
	}))
	defer srv.Close()

	detailCache := memory.New(cache.Options{DefaultTTL: time.Minute})
	defer detailCache.Close()
	client := newTestClient(t, srv, detailCache)

	for i := 0; i < 2; i++ {
		detail, err := client.FetchDetail(context.Background(), "Estimator_R1")
		if err != nil {
			t.Fatalf("FetchDetail #%d: %v", i, err)
		}
		want := models.JobDetail{JobID: "Estimator_R1", TimeType: "Full time", JobReqID: "R1", StartDate: "2024-03-01", Location: "Atlanta, GA"}
		if *detail != want {
			t.Errorf("FetchDetail #%d = %+v, want %+v", i, *detail, want)
		}
	}
	if calls != 1 {
		t.Errorf("server saw %d requests, want 1 (second should hit cache)", calls)
	}
}

func TestFetchDetail_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/jobs/broken":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	client := newTestClient(t, srv, nil)
	ctx := context.Background()

	if _, err := client.FetchDetail(ctx, ""); !errors.IsType(err, errors.ErrTypeInvalidInput) {
		t.Errorf("empty id error = %v", err)
	}
	if _, err := client.FetchDetail(ctx, "gone"); !errors.IsType(err, errors.ErrTypeNotFound) {
		t.Errorf("404 error = %v", err)
	}
	if _, err := client.FetchDetail(ctx, "broken"); !errors.IsType(err, errors.ErrTypeFetch) {
		t.Errorf("missing jobPostingInfo error = %v", err)
	}
	if _, err := client.FetchDetail(ctx, "other"); !errors.IsType(err, errors.ErrTypeFetch) {
		t.Errorf("500 error = %v", err)
	}
}

func TestFetchPage_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).FetchPage(context.Background(), models.PageRequest{Limit: 20})
	if !errors.IsType(err, errors.ErrTypeFetch) {
		t.Errorf("error %v is not FETCH", err)
	}
	if !errors.IsType(err, errors.ErrTypeRateLimit) {
		t.Errorf("error %v does not carry RATE_LIMIT", err)
	}
}

func TestFetchDetail_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).FetchDetail(context.Background(), "Estimator_R1")
	if !errors.IsType(err, errors.ErrTypeFetch) || !errors.IsType(err, errors.ErrTypeRateLimit) {
		t.Errorf("error = %v, want FETCH wrapping RATE_LIMIT", err)
	}
}

func TestCachedDetail(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"jobPostingInfo": {"jobReqId": "R1"}}`))
	}))
	defer srv.Close()
	ctx := context.Background()

	if _, ok := newTestClient(t, srv, nil).CachedDetail(ctx, "Estimator_R1"); ok {
		t.Error("CachedDetail without a cache reported a hit")
	}

	detailCache := memory.New(cache.Options{DefaultTTL: time.Minute})
	defer detailCache.Close()
	client := newTestClient(t, srv, detailCache)

	if _, ok := client.CachedDetail(ctx, "Estimator_R1"); ok {
		t.Error("CachedDetail before any fetch reported a hit")
	}
	if _, err := client.FetchDetail(ctx, "Estimator_R1"); err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	detail, ok := client.CachedDetail(ctx, "Estimator_R1")
	if !ok || detail.JobReqID != "R1" {
		t.Errorf("CachedDetail = %+v, %v", detail, ok)
	}
	if calls != 1 {
		t.Errorf("server saw %d requests, want 1", calls)
	}
}
