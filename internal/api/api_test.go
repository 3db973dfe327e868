package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/regional-product-extractor/internal/jobs"
	"github.com/maltedev/regional-product-extractor/internal/metrics"
	"github.com/maltedev/regional-product-extractor/internal/models"
	"github.com/maltedev/regional-product-extractor/internal/queue"
	"github.com/maltedev/regional-product-extractor/internal/scraper"
	"github.com/maltedev/regional-product-extractor/internal/sink"
)

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, rawURL string, hint *models.RegionConfig, opts ...scraper.Option) (*models.ExtractionResult, error) {
	args := m.Called(rawURL, hint)
	res, _ := args.Get(0).(*models.ExtractionResult)
	return res, args.Error(1)
}

type recordingSink struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Deliver(_ context.Context, d sink.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, d.RequestID)
	return nil
}

func kettle() *models.ExtractionResult {
	return &models.ExtractionResult{
		PageType: models.PageSingleProduct,
		Records: []models.ProductRecord{{
			Identity:      "B0TEST1234",
			Title:         "Electric Kettle",
			PriceCurrent:  "399.00",
			PriceOriginal: models.SomePrice("599.00"),
			Currency:      "EGP",
			Region:        models.RegionTag{Code: "EG", Location: "Cairo", Confirmed: true},
		}},
		Attempts: 1,
	}
}

func newServer(t *testing.T, ext *mockExtractor, s sink.Sink, cfg RouterConfig) (http.Handler, *jobs.Manager) {
	t.Helper()
	jm, err := jobs.NewManager(jobs.Config{Workers: 1}, ext, queue.NewInMemoryQueue(10), nil, s, nil)
	require.NoError(t, err)
	return NewRouter(NewHandlers(ext, jm, s, nil), cfg), jm
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestExtract_Success(t *testing.T) {
	ext := new(mockExtractor)
	ext.On("Extract", "https://amzn.to/kettle", (*models.RegionConfig)(nil)).Return(kettle(), nil)
	rs := &recordingSink{}
	h, _ := newServer(t, ext, rs, RouterConfig{})

	rec := post(t, h, "/api/v1/extract", `{"url":"https://amzn.to/kettle"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "399.00", resp.Result.Records[0].PriceCurrent)
	orig, ok := resp.Result.Records[0].PriceOriginal.Get()
	assert.True(t, ok)
	assert.Equal(t, "599.00", orig)
	assert.Nil(t, resp.Error)
	assert.Equal(t, []string{resp.RequestID}, rs.ids)
}

func TestExtract_URLFromText(t *testing.T) {
	ext := new(mockExtractor)
	ext.On("Extract", "https://amzn.to/kettle", mock.Anything).Return(kettle(), nil)
	h, _ := newServer(t, ext, nil, RouterConfig{})

	rec := post(t, h, "/api/v1/extract", `{"text":"look at this https://amzn.to/kettle!"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	ext.AssertExpectations(t)
}

func TestExtract_PassesRegionHint(t *testing.T) {
	ext := new(mockExtractor)
	ext.On("Extract", "https://www.amazon.eg/dp/B0TEST1234", mock.MatchedBy(func(r *models.RegionConfig) bool {
		return r != nil && r.Code == "EG" && r.Currency == "EGP"
	})).Return(kettle(), nil)
	h, _ := newServer(t, ext, nil, RouterConfig{})

	rec := post(t, h, "/api/v1/extract", `{"url":"https://www.amazon.eg/dp/B0TEST1234","region":{"code":"EG","locale":"ar-EG","currency":"EGP","delivery_location":"Egypt"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	ext.AssertExpectations(t)
}

func TestExtract_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"url":`},
		{"no url or text", `{}`},
		{"unknown device", `{"url":"https://amzn.to/x","device":"tablet"}`},
		{"text without link", `{"text":"no links here"}`},
		{"invalid region", `{"url":"https://amzn.to/x","region":{"code":"egypt","locale":"ar-EG","currency":"EGP","delivery_location":"Egypt"}}`},
		{"priority out of range", `{"url":"https://amzn.to/x","priority":99}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := new(mockExtractor)
			h, _ := newServer(t, ext, nil, RouterConfig{})

			rec := post(t, h, "/api/v1/extract", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			ext.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
		})
	}
}

func TestExtract_ErrorKinds(t *testing.T) {
	partial := &models.ExtractionResult{PageType: models.PageSingleProduct, Records: []models.ProductRecord{{Title: models.Unknown, PriceCurrent: models.Unavailable}}}

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"retries exhausted", &models.ExtractionError{Kind: models.ErrRetriesExhausted, Message: "no acceptable result", Partial: partial, DiagnosticRef: "req_3"}, http.StatusUnprocessableEntity},
		{"invalid url", models.NewError(models.ErrInvalidURL, "cannot use URL", nil), http.StatusBadRequest},
		{"canceled", models.NewError(models.ErrCanceled, "extraction canceled", context.Canceled), http.StatusRequestTimeout},
		{"untyped", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := new(mockExtractor)
			ext.On("Extract", mock.Anything, mock.Anything).Return(nil, tt.err)
			rs := &recordingSink{}
			h, _ := newServer(t, ext, rs, RouterConfig{})

			rec := post(t, h, "/api/v1/extract", `{"url":"https://www.amazon.eg/dp/B0TEST1234"}`)

			assert.Equal(t, tt.status, rec.Code)
			var resp ExtractResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Empty(t, rs.ids)
		})
	}
}

func TestExtract_PartialIsReturned(t *testing.T) {
	partial := &models.ExtractionResult{PageType: models.PageSingleProduct, Records: []models.ProductRecord{{Title: models.Unknown}}}
	ext := new(mockExtractor)
	ext.On("Extract", mock.Anything, mock.Anything).Return(nil, &models.ExtractionError{
		Kind: models.ErrRetriesExhausted, Message: "no acceptable result", Partial: partial, DiagnosticRef: "req_3", Attempts: 3,
	})
	h, _ := newServer(t, ext, nil, RouterConfig{})

	rec := post(t, h, "/api/v1/extract", `{"url":"https://www.amazon.eg/dp/B0TEST1234"}`)

	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	assert.Equal(t, models.Unknown, resp.Result.Records[0].Title)
	assert.Equal(t, models.ErrRetriesExhausted, resp.Error.Kind)
	assert.Equal(t, "req_3", resp.Error.DiagnosticRef)
	assert.Equal(t, 3, resp.Error.Attempts)
}

func TestJobs_CreateAndPoll(t *testing.T) {
	ext := new(mockExtractor)
	ext.On("Extract", "https://www.amazon.eg/dp/B0TEST1234", mock.Anything).Return(kettle(), nil)
	h, jm := newServer(t, ext, nil, RouterConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go jm.Run(ctx)

	rec := post(t, h, "/api/v1/jobs", `{"url":"https://www.amazon.eg/dp/B0TEST1234"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "/api/v1/jobs/"+job.ID, rec.Header().Get("Location"))

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		var polled jobs.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &polled); err != nil {
			return false
		}
		return polled.Status == jobs.StatusSucceeded && polled.Result != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJobs_Unknown(t *testing.T) {
	h, _ := newServer(t, new(mockExtractor), nil, RouterConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	m := metrics.New()
	m.IncAttempt("success")
	h, _ := newServer(t, new(mockExtractor), nil, RouterConfig{Metrics: m.Handler()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `extractor_attempts_total{outcome="success"} 1`)
}

func TestRouter_RateLimitsPerClient(t *testing.T) {
	ext := new(mockExtractor)
	ext.On("Extract", mock.Anything, mock.Anything).Return(kettle(), nil)
	h, _ := newServer(t, ext, nil, RouterConfig{RequestsPerSecond: 1})

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", strings.NewReader(`{"url":"https://amzn.to/kettle"}`))
		req.RemoteAddr = "192.0.2.10:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(models.ErrNavigationTimeout))
	assert.Equal(t, http.StatusBadRequest, statusFor(models.ErrInvalidRegion))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(models.ErrBlockedByAntiAutomation))
}
