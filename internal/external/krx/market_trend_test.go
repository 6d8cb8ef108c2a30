package krx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

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
	return NewClient(httpClient, logger.Nop(), server.URL).WithTrendBaseURL(server.URL)
}

func TestParseTrend(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    MarketTrendData
		wantErr string
	}{
		{
			name: "signed values with commas",
			body: `{"bizdate":"20261016","personalValue":"-1,240","foreignValue":"+1,459","institutionalValue":" 12.5 "}`,
			want: MarketTrendData{ForeignNet: 1459, InstitutionNet: 12.5, IndividualNet: -1240},
		},
		{
			name:    "blank investor value is missing",
			body:    `{"bizdate":"20261016","personalValue":"","foreignValue":"+1","institutionalValue":"0"}`,
			wantErr: "individual: value_is_empty",
		},
		{
			name:    "non numeric",
			body:    `{"bizdate":"20261016","personalValue":"0","foreignValue":"abc","institutionalValue":"0"}`,
			wantErr: "foreign: value_not_numeric[abc]",
		},
		{
			name:    "bad bizdate",
			body:    `{"bizdate":"2026-10-16"}`,
			wantErr: "bizdate_invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTrend([]byte(tt.body))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "2026-10-16", got.TradeDate.Format("2006-01-02"))
			assert.Equal(t, tt.want.ForeignNet, got.ForeignNet)
			assert.Equal(t, tt.want.InstitutionNet, got.InstitutionNet)
			assert.Equal(t, tt.want.IndividualNet, got.IndividualNet)
		})
	}
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount(float64(-2.5e10))
	require.NoError(t, err)
	assert.Equal(t, -2.5e10, v)

	_, err = parseAmount("")
	assert.EqualError(t, err, "value_is_empty")

	_, err = parseAmount(true)
	assert.Error(t, err)
}

func TestFetchTrendFlows(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/index/KOSPI/trend":
			_, _ = w.Write([]byte(`{"bizdate":"20261016","personalValue":"-1,180","foreignValue":"+1,520","institutionalValue":"-340"}`))
		case "/api/index/KOSDAQ/trend":
			_, _ = w.Write([]byte(`{"bizdate":"20261016","personalValue":"-255","foreignValue":"+210","institutionalValue":"+45"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	flows, err := client.FetchTrendFlows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "naver", flows.Source)
	assert.Equal(t, "2026-10-16", flows.TradeDate.Format("2006-01-02"))
	assert.Equal(t, 1520.0, flows.Markets["KOSPI"].ForeignNet)
	assert.Equal(t, -255.0, flows.Markets["KOSDAQ"].IndividualNet)
}

func TestFetchTrendFlows_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "empty bizdate", status: 200, body: `{}`, wantErr: "trend_empty"},
		{name: "rate limited", status: 429, wantErr: "http_status_429"},
		{name: "bad json", status: 200, body: `[`, wantErr: "json_parse_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.FetchTrendFlows(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "naver_trend[stk]")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
