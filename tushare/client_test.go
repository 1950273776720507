package tushare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/core"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	config.Tushare = &config.TushareConfig{Token: "test-token", ApiBase: srv.URL}
	client, err := NewClient()
	require.Nil(t, err)
	return client
}

func TestNewClientNoToken(t *testing.T) {
	config.Tushare = &config.TushareConfig{}
	_, err := NewClient()
	require.NotNil(t, err)
	require.Equal(t, core.ErrBadConfig, err.Code)
}

func TestFetchAdjFactors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.Nil(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "adj_factor", body["api_name"])
		require.Equal(t, "test-token", body["token"])
		fmt.Fprint(w, `{"code":0,"data":{"fields":["ts_code","trade_date","adj_factor"],
			"items":[["600000.SH","20250827",12.345],["600000.SH","20250826",12.1]]}}`)
	}))
	defer srv.Close()
	client := newTestClient(t, srv)
	items, err := client.FetchAdjFactors(context.Background(), "600000.SH", "20250801", "20250831")
	require.Nil(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 12.345, items[0].Factor)
	require.Equal(t, "20250827", items[0].TradeDate.Format("20060102"))
}

func TestFetchTradeCal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{"fields":["cal_date","is_open"],
			"items":[["20250829",1],["20250830",0]]}}`)
	}))
	defer srv.Close()
	client := newTestClient(t, srv)
	items, err := client.FetchTradeCal(context.Background(), "", "20250829", "20250830")
	require.Nil(t, err)
	require.Len(t, items, 2)
	require.True(t, items[0].IsTrading)
	require.False(t, items[1].IsTrading)
}

func TestQueryRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":40203,"msg":"exceed rate limit"}`)
	}))
	defer srv.Close()
	client := newTestClient(t, srv)
	_, _, err := client.Query(context.Background(), "adj_factor", nil, "")
	require.NotNil(t, err)
	require.Equal(t, core.ErrRateLimit, err.Code)
	require.True(t, core.IsTransient(err.Code))
}

func TestQueryBizError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":-2001,"msg":"bad params"}`)
	}))
	defer srv.Close()
	client := newTestClient(t, srv)
	_, _, err := client.Query(context.Background(), "adj_factor", nil, "")
	require.NotNil(t, err)
	require.Equal(t, core.ErrBadSourceResp, err.Code)
	require.False(t, core.IsTransient(err.Code))
}
