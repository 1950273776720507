package btime

import (
	"testing"
	"time"
)

func TestParseTimeMS(t *testing.T) {
	cases := map[string]string{
		"20250827":            "2025-08-27 00:00:00",
		"2025-08-27":          "2025-08-27 00:00:00",
		"2025-08-27 09:31":    "2025-08-27 09:31:00",
		"2025-08-27 09:31:05": "2025-08-27 09:31:05",
	}
	for text, want := range cases {
		ms, err := ParseTimeMS(text)
		if err != nil {
			t.Fatalf("ParseTimeMS(%s) err: %v", text, err)
		}
		got := MSToTime(ms).Format("2006-01-02 15:04:05")
		if got != want {
			t.Errorf("ParseTimeMS(%s) = %s, want %s", text, got, want)
		}
	}
	if _, err := ParseTimeMS("bad-date"); err == nil {
		t.Error("bad text should fail")
	}
}

func TestTradeDate(t *testing.T) {
	// UTC的8月26日23点在上海已是27日
	ms := time.Date(2025, 8, 26, 23, 0, 0, 0, time.UTC).UnixMilli()
	if got := TradeDate(ms); got != "20250827" {
		t.Errorf("got %s", got)
	}
}

func TestCnDateMS(t *testing.T) {
	ms, err := CnDateMS("20250827")
	if err != nil {
		t.Fatal(err)
	}
	got := MSToCnTime(ms)
	if got.Hour() != 0 || got.Day() != 27 {
		t.Errorf("got %v", got)
	}
	if _, err = CnDateMS("2025-08-27"); err == nil {
		t.Error("wrong format should fail")
	}
}
