package news

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

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>KOSPI - Google News</title>
<item><title>KOSPI closes higher on foreign buying - Yonhap</title><link>https://example.com/1</link></item>
<item><title>KOSPI closes higher on foreign buying - Korea Herald</title><link>https://example.com/2</link></item>
<item><title>[속보] 코스피, 외국인 매수에 상승 마감</title><link>https://example.com/3</link></item>
<item><title>Won firms &amp;amp; bonds rally (update 2)</title><link>https://example.com/4</link></item>
<item><title><![CDATA[<b>Chipmakers</b> rally as memory prices rebound]]></title><link>https://example.com/5</link></item>
<item><title>   </title><link>https://example.com/6</link></item>
</channel></rss>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := httputil.New(&config.Config{Env: "test"}, logger.Nop()).DisableRetry()
	return NewClient(httpClient, logger.Nop(), server.URL, "")
}

func TestHeadlines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rss/search", r.URL.Path)
		assert.Equal(t, "KOSPI", r.URL.Query().Get("q"))
		assert.Contains(t, r.Header.Get("Accept-Language"), "ko-KR")
		_, _ = w.Write([]byte(feedXML))
	})

	titles, err := client.Headlines(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"KOSPI closes higher on foreign buying - Yonhap",
		"[속보] 코스피, 외국인 매수에 상승 마감",
		"Won firms & bonds rally (update 2)",
		"Chipmakers rally as memory prices rebound",
	}, titles)

	limited, err := client.Headlines(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestHeadlines_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "http status", status: 503, wantErr: "http_status_503"},
		{name: "bad xml", status: 200, body: `<rss><channel><item>`, wantErr: "rss_parse_error"},
		{name: "empty feed", status: 200, body: `<rss><channel></channel></rss>`, wantErr: "no_titles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Headlines(context.Background(), 8)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"KOSPI closes higher - Yonhap", "kospi closes higher"},
		{"[단독] 삼성전자, 실적 개선 (종합)", "삼성전자 실적 개선"},
		{"Fed: rates on hold!", "fed rates on hold"},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestDeduplicate(t *testing.T) {
	items := []Item{
		{Title: "Oil slips as US inventories build sharply this week"},
		{Title: "Oil slips as US inventories build sharply this week again"},
		{Title: "Treasury yields steady ahead of CPI"},
		{Title: "Treasury yields steady ahead of CPI - Reuters"},
	}
	got := Deduplicate(items, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "Treasury yields steady ahead of CPI", got[1].Title)
}
