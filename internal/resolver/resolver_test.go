package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/regional-product-extractor/internal/models"
)

func redirectTo(target string) httpmock.Responder {
	resp := httpmock.NewStringResponse(http.StatusMovedPermanently, "")
	resp.Header.Set("Location", target)
	return httpmock.ResponderFromResponse(resp)
}

func newTestResolver(t *testing.T, transport http.RoundTripper, cacheSize int) *Resolver {
	t.Helper()
	r, err := New(Options{
		Timeout:          2 * time.Second,
		ShortLinkDomains: []string{"amzn.to", "ty.gl"},
		CacheSize:        cacheSize,
		Transport:        transport,
	}, nil)
	require.NoError(t, err)
	return r
}

func TestResolve_ExpandsShortLink(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://amzn.to/3xYz", redirectTo("https://www.amazon.eg/-/en/Kettle/dp/B0TEST1234/ref=sr_1_1"))
	transport.RegisterResponder("GET", "https://www.amazon.eg/-/en/Kettle/dp/B0TEST1234/ref=sr_1_1",
		httpmock.NewStringResponder(http.StatusOK, "<html></html>"))

	r := newTestResolver(t, transport, 0)

	res, err := r.Resolve(context.Background(), "https://amzn.to/3xYz")
	require.NoError(t, err)

	assert.True(t, res.Expanded)
	assert.NoError(t, res.Degraded)
	assert.Equal(t, "https://www.amazon.eg/-/en/Kettle/dp/B0TEST1234", res.String())
	assert.Equal(t, "https://amzn.to/3xYz", res.Original)
}

func TestResolve_FollowsRedirectChain(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://ty.gl/abc", redirectTo("https://m.trendyol.com/link/abc"))
	transport.RegisterResponder("GET", "https://m.trendyol.com/link/abc", redirectTo("https://www.trendyol.com/en/brand/shoe-p-123456"))
	transport.RegisterResponder("GET", "https://www.trendyol.com/en/brand/shoe-p-123456",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "blocked"))

	r := newTestResolver(t, transport, 0)

	res, err := r.Resolve(context.Background(), "https://ty.gl/abc")
	require.NoError(t, err)

	assert.True(t, res.Expanded)
	assert.Equal(t, "https://www.trendyol.com/en/brand/shoe-p-123456", res.String())
}

func TestResolve_ExpansionFailureIsDegraded(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://amzn.to/broken", httpmock.NewErrorResponder(errors.New("connection reset")))

	r := newTestResolver(t, transport, 0)

	res, err := r.Resolve(context.Background(), "https://amzn.to/broken")
	require.NoError(t, err)

	assert.False(t, res.Expanded)
	require.Error(t, res.Degraded)
	kind, ok := models.KindOf(res.Degraded)
	require.True(t, ok)
	assert.Equal(t, models.ErrResolutionDegraded, kind)
	assert.Equal(t, "https://amzn.to/broken", res.String())
}

func TestResolve_NoRedirectIsDegraded(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://amzn.to/plain", httpmock.NewStringResponder(http.StatusOK, "hello"))

	r := newTestResolver(t, transport, 0)

	res, err := r.Resolve(context.Background(), "amzn.to/plain")
	require.NoError(t, err)
	assert.Error(t, res.Degraded)
	assert.Equal(t, "https://amzn.to/plain", res.String())
}

func TestResolve_UsesCache(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://amzn.to/cached", redirectTo("https://www.amazon.com/dp/B000000001"))
	transport.RegisterResponder("GET", "https://www.amazon.com/dp/B000000001", httpmock.NewStringResponder(http.StatusOK, ""))

	r := newTestResolver(t, transport, 8)

	for i := 0; i < 3; i++ {
		res, err := r.Resolve(context.Background(), "https://amzn.to/cached")
		require.NoError(t, err)
		assert.Equal(t, "https://www.amazon.com/dp/B000000001", res.String())
	}

	assert.Equal(t, 2, transport.GetTotalCallCount())
}

func TestResolve_RegularURLIsNotFetched(t *testing.T) {
	transport := httpmock.NewMockTransport()
	r := newTestResolver(t, transport, 0)

	res, err := r.Resolve(context.Background(), "https://www.amazon.de/dp/B0TEST1234?tag=aff-21&psc=1")
	require.NoError(t, err)

	assert.False(t, res.Expanded)
	assert.Equal(t, "https://www.amazon.de/dp/B0TEST1234", res.String())
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestResolve_InvalidURL(t *testing.T) {
	r := newTestResolver(t, httpmock.NewMockTransport(), 0)

	for _, raw := range []string{"", "ftp://amazon.eg/file", "not a url"} {
		_, err := r.Resolve(context.Background(), raw)
		require.Error(t, err, raw)
		kind, _ := models.KindOf(err)
		assert.Equal(t, models.ErrInvalidURL, kind)
	}
}

func TestStripTracking(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"affiliate tag", "https://www.amazon.eg/dp/B0TEST1234?tag=x-21&linkCode=ll1", "https://www.amazon.eg/dp/B0TEST1234"},
		{"ref path segment", "https://www.amazon.com/Item/dp/B0TEST1234/ref=sr_1_3?crid=2&qid=17", "https://www.amazon.com/Item/dp/B0TEST1234"},
		{"keeps search keywords", "https://www.amazon.eg/s?k=kettle&i=kitchen&ref=nb_sb_noss&utm_source=x", "https://www.amazon.eg/s?i=kitchen&k=kettle"},
		{"campaign prefixes", "https://www.amazon.sa/gp/bestsellers?pf_rd_r=1&pd_rd_w=2", "https://www.amazon.sa/gp/bestsellers"},
		{"trendyol params", "https://www.trendyol.com/x-p-1?boutiqueId=61&merchantId=9", "https://www.trendyol.com/x-p-1"},
		{"fragment", "https://shop.example.com/p/1#reviews", "https://shop.example.com/p/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, StripTracking(u).String())
		})
	}
}

func TestExtractURL(t *testing.T) {
	got, ok := ExtractURL("look at this https://amzn.to/3xYz, cheap!")
	require.True(t, ok)
	assert.Equal(t, "https://amzn.to/3xYz", got)

	got, ok = ExtractURL("ty.gl/abc123 please")
	require.True(t, ok)
	assert.Equal(t, "ty.gl/abc123", got)

	_, ok = ExtractURL("no links here")
	assert.False(t, ok)
}
