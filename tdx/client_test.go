package tdx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/core"
)

func newTestClient(srv *httptest.Server, breakFails int) *Client {
	config.Tdx = &config.TdxConfig{ApiBase: srv.URL, BreakFails: breakFails}
	return NewClient()
}

func TestFetchCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/codes" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"code":0,"data":{"total":3,"codes":[
			{"code":"600000","name":"浦发银行","exchange":"sh"},
			{"code":"000001","name":"平安银行","exchange":"sz"},
			{"code":"bad","name":"x","exchange":"sh"}]}}`)
	}))
	defer srv.Close()
	client := newTestClient(srv, 0)
	items, err := client.FetchCodes(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchCodes fail: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expect 2 valid codes, got %d", len(items))
	}
	if items[0].TsCode != "600000.SH" || items[1].TsCode != "000001.SZ" {
		t.Fatalf("bad ts_code: %s %s", items[0].TsCode, items[1].TsCode)
	}
}

func TestFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("code") != "600000" || query.Get("adjust") != "qfq" {
			t.Errorf("bad params: %v", query)
		}
		fmt.Fprint(w, `{"code":0,"data":{"List":[
			{"Time":"2025-08-27","Open":10500,"High":10800,"Low":10400,"Close":10700,"Volume":123456,"Amount":1310000000}]}}`)
	}))
	defer srv.Close()
	client := newTestClient(srv, 0)
	bars, err := client.FetchDaily(context.Background(), "600000.SH", "qfq", "20250801", "20250831")
	if err != nil {
		t.Fatalf("FetchDaily fail: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expect 1 bar, got %d", len(bars))
	}
	bar := bars[0]
	if bar.OpenLi != 10500 || bar.CloseLi != 10700 || bar.VolumeHand != 123456 {
		t.Fatalf("bad bar values: %+v", bar)
	}
	if bar.TradeDate.Format("20060102") != "20250827" {
		t.Fatalf("bad trade date: %v", bar.TradeDate)
	}
}

func TestFetchDailyAllFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{"list":[
			{"Time":"20250725","Open":1,"High":1,"Low":1,"Close":1,"Volume":1,"Amount":1},
			{"Time":"20250805","Open":2,"High":2,"Low":2,"Close":2,"Volume":2,"Amount":2},
			{"Time":"20250905","Open":3,"High":3,"Low":3,"Close":3,"Volume":3,"Amount":3}]}}`)
	}))
	defer srv.Close()
	client := newTestClient(srv, 0)
	bars, err := client.FetchDailyAll(context.Background(), "600000.SH", "20250801", "20250831")
	if err != nil {
		t.Fatalf("FetchDailyAll fail: %v", err)
	}
	if len(bars) != 1 || bars[0].CloseLi != 2 {
		t.Fatalf("range filter wrong: %d bars", len(bars))
	}
}

func TestFetchMinuteTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{"List":[
			{"Time":"09:31","Open":10500,"High":10520,"Low":10490,"Close":10510,"Volume":300,"Amount":315000}]}}`)
	}))
	defer srv.Close()
	client := newTestClient(srv, 0)
	bars, err := client.FetchMinute(context.Background(), "600000.SH", "20250827")
	if err != nil {
		t.Fatalf("FetchMinute fail: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expect 1 bar, got %d", len(bars))
	}
	got := bars[0].TradeTime
	if got.Hour() != 9 || got.Minute() != 31 {
		t.Fatalf("bad combined time: %v", got)
	}
	if got.Year() != 2025 || got.Month() != 8 || got.Day() != 27 {
		t.Fatalf("bad combined date: %v", got)
	}
}

func TestFetchTicks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{"List":[
			{"Time":"09:30:05","Price":10500,"Volume":12,"Buyorsell":0},
			{"Time":"09:30:05","Price":10500,"Volume":8,"Buyorsell":1},
			{"Time":"09:30:06","Price":10510,"Volume":5,"Buyorsell":2}]}}`)
	}))
	defer srv.Close()
	client := newTestClient(srv, 0)
	ticks, err := client.FetchTicks(context.Background(), "600000.SH", "20250827")
	if err != nil {
		t.Fatalf("FetchTicks fail: %v", err)
	}
	if len(ticks) != 3 {
		t.Fatalf("expect 3 ticks, got %d", len(ticks))
	}
	if ticks[0].Status != 0 || ticks[1].Status != 1 || ticks[2].Status != -1 {
		t.Fatalf("bad side flags: %d %d %d", ticks[0].Status, ticks[1].Status, ticks[2].Status)
	}
}

func TestEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":500,"message":"no data"}`)
	}))
	defer srv.Close()
	client := newTestClient(srv, 0)
	_, err := client.FetchDaily(context.Background(), "600000.SH", "qfq", "20250801", "20250831")
	if err == nil {
		t.Fatal("expect envelope error")
	}
	if err.Code != core.ErrBadSourceResp {
		t.Fatalf("expect BadSourceResp, got %d", err.Code)
	}
	if core.IsTransient(err.Code) {
		t.Fatal("envelope error must be permanent")
	}
}

func TestBreakerOpen(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits += 1
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := newTestClient(srv, 2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := client.Ping(ctx); err == nil {
			t.Fatal("expect 5xx error")
		}
	}
	err := client.Ping(ctx)
	if err == nil || err.Code != core.ErrSourceDown {
		t.Fatalf("expect breaker open, got %v", err)
	}
	if hits != 2 {
		t.Fatalf("breaker should block 3rd call, hits=%d", hits)
	}
}
