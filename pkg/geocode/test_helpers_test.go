package geocode

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/salestax-cli/internal/fetcher"
	"github.com/sells-group/salestax-cli/internal/resilience"
)

// newRewriteClient creates an HTTP client that rewrites requests to a test server URL.
// All requests matching the target prefix are redirected to the test server.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:         http.DefaultTransport,
			testServer:   testServerURL,
			targetPrefix: targetPrefix,
		},
	}
}

type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	if strings.HasPrefix(origURL, t.targetPrefix) {
		suffix := origURL[len(t.targetPrefix):]
		newURL := t.testServer + suffix
		newReq := req.Clone(req.Context())
		parsed, err := req.URL.Parse(newURL)
		if err != nil {
			return nil, err
		}
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}

// usDataset mirrors the GeoNames layout, including a postal code shared by
// two places and a row with a blank county.
const usDataset = "US\t92101\tSan Diego\tCalifornia\tCA\tSan Diego\t073\t\t\t32.7194\t-117.1628\t4\n" +
	"US\t90001\tLos Angeles\tCalifornia\tCA\tLos Angeles\t037\t\t\t33.9731\t-118.2479\t4\n" +
	"US\t89501\tReno\tNevada\tNV\tWashoe\t031\t\t\t39.5259\t-119.8122\t4\n" +
	"US\t94706\tAlbany\tCalifornia\tCA\tAlameda\t001\t\t\t37.8896\t-122.2974\t4\n" +
	"US\t94706\tKensington\tCalifornia\tCA\tContra Costa\t013\t\t\t37.9107\t-122.2803\t4\n" +
	"US\t96898\tWake Island\t\t\t\t\t\t\t19.2833\t166.6\t\n"

func zipArchive(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// newDatasetServer serves US.zip and counts requests.
func newDatasetServer(t *testing.T, content string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	archive := zipArchive(t, "US.txt", content)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/export/zip/US.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestFetcher(srv *httptest.Server) fetcher.Fetcher {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		MaxRetries:        1,
		RequestsPerSecond: 1000,
		Retry:             &resilience.RetryConfig{InitialBackoff: time.Millisecond},
	})
	return f.WithClient(newRewriteClient(srv.URL, "https://download.geonames.org"))
}
