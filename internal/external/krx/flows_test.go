package krx

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statPageHTML = `<html><body><form>
<input type="hidden" name="locale" value="ko_KR">
<input type="hidden" name="inqTpCd" value="1">
<input type="text" name="empty" value="">
</form></body></html>`

func investorRows(retail, foreign, inst string) string {
	return fmt.Sprintf(`{"output":[
		{"INVST_TP_NM":"개인","NET_TRDVAL":"%s"},
		{"INVST_TP_NM":"외국인","NET_TRDVAL":"%s"},
		{"INVST_TP_NM":"기관합계","NET_TRDVAL":"%s"},
		{"INVST_TP_NM":"전체","NET_TRDVAL":"0"}
	]}`, retail, foreign, inst)
}

func TestFetchInvestorFlows(t *testing.T) {
	asOf := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".jspx") {
			_, _ = w.Write([]byte(statPageHTML))
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/comm/bldAttendant/getJsonData.cmd", r.URL.Path)
		assert.Equal(t, "ko_KR", r.PostForm.Get("locale"), "page defaults are merged")
		assert.Equal(t, "1", r.PostForm.Get("money"))
		assert.NotEmpty(t, r.Header.Get("Referer"))

		// 2026-10-19 has no data; the previous day answers
		if r.PostForm.Get("trdDd") == "20261019" || r.PostForm.Get("endDd") == "20261019" {
			_, _ = w.Write([]byte(`{"output":[]}`))
			return
		}
		if r.PostForm.Get("mktId") == "STK" {
			_, _ = w.Write([]byte(investorRows("-118,000,000,000", "152,040,000,000", "-34,000,000,000")))
			return
		}
		_, _ = w.Write([]byte(investorRows("-25,500,000,000", "21,000,000,000", "4,500,000,000")))
	})

	flows, err := client.FetchInvestorFlows(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, "krx", flows.Source)
	assert.Equal(t, "2026-10-18", flows.TradeDate.Format("2006-01-02"))

	kospi := flows.Markets["KOSPI"]
	assert.Equal(t, -1180.0, kospi.IndividualNet)
	assert.Equal(t, 1520.0, kospi.ForeignNet)
	assert.Equal(t, -340.0, kospi.InstitutionNet)
	assert.Equal(t, 210.0, flows.Markets["KOSDAQ"].ForeignNet)
}

func TestFetchInvestorFlows_Unavailable(t *testing.T) {
	var posts int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		atomic.AddInt32(&posts, 1)
		w.WriteHeader(http.StatusBadRequest)
	})
	client.lookbackDays = 2

	_, err := client.FetchInvestorFlows(context.Background(), time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "krx_flow_unavailable: 20261018: krx_fetch_failed[stk,20261018]"), err.Error())
	assert.Contains(t, err.Error(), "http_status_400")
	// 3 screens x 3 payload shapes x 2 days, KOSPI fails first each day
	assert.Equal(t, int32(18), atomic.LoadInt32(&posts))
}

func TestInvestorNet(t *testing.T) {
	tests := []struct {
		name    string
		js      map[string]interface{}
		want    MarketTrendData
		wantErr string
	}{
		{
			name: "alternate keys and names",
			js: map[string]interface{}{"OutBlock_1": []interface{}{
				map[string]interface{}{"invstTpNm": "개인", "netTrdVal": float64(-1.5e10)},
				map[string]interface{}{"invstTpNm": "외국인합계", "netTrdVal": "2,000,000,000"},
				map[string]interface{}{"invstTpNm": "기관", "netTrdVal": "-5e8"},
			}},
			want: MarketTrendData{IndividualNet: -150, ForeignNet: 20, InstitutionNet: -5},
		},
		{
			name: "wide format",
			js: map[string]interface{}{"block1": []interface{}{
				map[string]interface{}{"개인": "100,000,000", "외국인": "-300,000,000", "기관합계": "200,000,000"},
			}},
			want: MarketTrendData{IndividualNet: 1, ForeignNet: -3, InstitutionNet: 2},
		},
		{name: "no rows", js: map[string]interface{}{"output": []interface{}{}}, wantErr: "no_output_rows"},
		{
			name: "missing class",
			js: map[string]interface{}{"output": []interface{}{
				map[string]interface{}{"INVST_TP_NM": "개인", "NET_TRDVAL": "1"},
			}},
			wantErr: "missing_keys",
		},
		{
			name:    "unrecognized",
			js:      map[string]interface{}{"output": []interface{}{map[string]interface{}{"foo": "bar"}}},
			wantErr: "unrecognized_output_keys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := investorNet(tt.js)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestPayloadVariants(t *testing.T) {
	variants := payloadVariants("20261016", "KSQ", map[string]string{"locale": "ko_KR", "money": "3", "blank": " "})
	require.Len(t, variants, 3)

	assert.Equal(t, "20261016", variants[0].Get("trdDd"))
	assert.Empty(t, variants[0].Get("strtDd"))
	assert.Equal(t, "20261016", variants[1].Get("endDd"))
	assert.Empty(t, variants[1].Get("trdDd"))
	assert.Equal(t, "20261016", variants[2].Get("trdDd"))
	assert.Equal(t, "20261016", variants[2].Get("strtDd"))

	for _, v := range variants {
		assert.Equal(t, "KSQ", v.Get("mktId"))
		assert.Equal(t, "3", v.Get("money"), "page default wins")
		assert.Equal(t, "false", v.Get("csvxls_isNo"))
		assert.Empty(t, v.Get("blank"))
	}
}

func TestExtractInputDefaults(t *testing.T) {
	got := extractInputDefaults([]byte(statPageHTML))
	assert.Equal(t, map[string]string{"locale": "ko_KR", "inqTpCd": "1"}, got)
}
