package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-committee/pkg/config"
	"github.com/wonny/aegis-committee/pkg/httputil"
	"github.com/wonny/aegis-committee/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := httputil.New(&config.Config{Env: "test"}, logger.Nop()).DisableRetry()
	return NewClient(httpClient, logger.Nop(), server.URL)
}

func chartJSON(closes ...string) string {
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"symbol":"X"},"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`,
		strings.Join(closes, ","))
}

func TestChangePct(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    float64
		wantErr string
	}{
		{name: "two closes", body: chartJSON("2500", "2525"), want: 1.0},
		{name: "null gaps skipped", body: chartJSON("2500", "null", "2450"), want: -2.0},
		{name: "single close", body: chartJSON("2500"), wantErr: "insufficient_closes"},
		{name: "empty result", body: `{"chart":{"result":[],"error":null}}`, wantErr: "no_result"},
		{name: "api error", body: `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, wantErr: "chart_error: No data found"},
		{name: "bad json", body: `{`, wantErr: "json_parse_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v8/finance/chart/^KS11", r.URL.Path)
				assert.Equal(t, "1d", r.URL.Query().Get("interval"))
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := client.ChangePct(context.Background(), SymbolKOSPI)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestLatestClose(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartJSON("15.2", "16.8")))
	})
	v, err := client.LatestClose(context.Background(), SymbolVIX)
	require.NoError(t, err)
	assert.Equal(t, 16.8, v)

	bad := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartJSON("1", "0")))
	})
	_, err = bad.LatestClose(context.Background(), SymbolVIX)
	assert.ErrorIs(t, err, ErrNonPositiveClose)
}

func TestChart_HTTPStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := client.Chart(context.Background(), SymbolDXY, "5d")
	require.Error(t, err)
	assert.Equal(t, "http_status_404", err.Error())
}

func TestChart_ConcurrentCallsShareRequest(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		_, _ = w.Write([]byte(chartJSON("100", "101")))
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Chart(context.Background(), SymbolSP500, "5d")
			assert.NoError(t, err)
		}()
	}
	// Give the callers time to join the in-flight request
	for atomic.LoadInt32(&hits) == 0 {
		runtime.Gosched()
	}
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&hits), int32(5))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&hits), int32(1))
}

func TestForwardPEAndEPS(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v7/finance/quote"):
			assert.Equal(t, "^GSPC", r.URL.Query().Get("symbols"))
			_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"^GSPC","regularMarketPrice":5800,"forwardPE":20}],"error":null}}`))
		default:
			_, _ = w.Write([]byte(chartJSON("5750", "5800")))
		}
	})

	pe, err := client.ForwardPE(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20.0, pe)

	eps, err := client.ForwardEPS(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 290.0, eps, 1e-9)
}

func TestForwardPE_Missing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"^GSPC","regularMarketPrice":5800}],"error":null}}`))
	})
	_, err := client.ForwardPE(context.Background())
	assert.ErrorIs(t, err, ErrNoForwardPE)
}

func TestScaleTNX(t *testing.T) {
	assert.Equal(t, 4.25, ScaleTNX(42.5))
	assert.Equal(t, 4.25, ScaleTNX(4.25))
}

func TestFirstLatestClose_FallsThroughSymbols(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "DX-Y.NYB") {
			_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
			return
		}
		_, _ = w.Write([]byte(chartJSON("103.9", "104.2")))
	})

	v, err := client.FirstLatestClose(context.Background(), DXYSymbols...)
	require.NoError(t, err)
	assert.Equal(t, 104.2, v)

	_, err = client.FirstLatestClose(context.Background())
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestCloseOnOrBefore(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Empty(t, q.Get("range"))
		assert.Equal(t, strconv.FormatInt(asOf.AddDate(0, 0, -7).Unix(), 10), q.Get("period1"))
		assert.Equal(t, strconv.FormatInt(asOf.AddDate(0, 0, 1).Unix(), 10), q.Get("period2"))
		_, _ = w.Write([]byte(chartJSON("17.1", "null", "18.4")))
	})

	v, err := client.CloseOnOrBefore(context.Background(), SymbolVIX3M, asOf, 0)
	require.NoError(t, err)
	assert.Equal(t, 18.4, v)
}
