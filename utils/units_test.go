package utils

import (
	"testing"
)

func TestYuanToLi(t *testing.T) {
	cases := []struct {
		text string
		want int64
	}{
		{"10.50", 10500},
		{"0.005", 5},
		{"3.1415", 3142},
		{"1234.567", 1234567},
		{"0", 0},
	}
	for _, c := range cases {
		got, err := YuanToLi(c.text)
		if err != nil {
			t.Fatalf("YuanToLi(%s) err: %v", c.text, err)
		}
		if got != c.want {
			t.Errorf("YuanToLi(%s) = %d, want %d", c.text, got, c.want)
		}
	}
	if _, err := YuanToLi(""); err == nil {
		t.Error("empty text should fail")
	}
	if _, err := YuanToLi("abc"); err == nil {
		t.Error("bad text should fail")
	}
}

func TestYuanFloatToLi(t *testing.T) {
	if got := YuanFloatToLi(10.5); got != 10500 {
		t.Errorf("got %d", got)
	}
	// 0.1+0.2之类的浮点误差不应影响结果
	if got := YuanFloatToLi(0.1 + 0.2); got != 300 {
		t.Errorf("got %d", got)
	}
}

func TestLiToYuanRoundtrip(t *testing.T) {
	if got := LiToYuan(10500); got != "10.500" {
		t.Errorf("got %s", got)
	}
	back, err := YuanToLi(LiToYuan(123456))
	if err != nil || back != 123456 {
		t.Errorf("roundtrip got %d, err %v", back, err)
	}
	if got := LiToYuanFloat(10500); got != 10.5 {
		t.Errorf("got %f", got)
	}
}

func TestSharesToHand(t *testing.T) {
	got, err := SharesToHand(250)
	if err != nil || got != 2 {
		t.Errorf("got %d, err %v", got, err)
	}
	if _, err = SharesToHand(-100); err == nil {
		t.Error("negative shares should fail")
	}
	if HandToShares(3) != 300 {
		t.Error("HandToShares(3) != 300")
	}
}

func TestHandText(t *testing.T) {
	got, err := HandText("12.6")
	if err != nil || got != 13 {
		t.Errorf("got %d, err %v", got, err)
	}
	got, err = HandText("")
	if err != nil || got != 0 {
		t.Errorf("empty should be 0, got %d", got)
	}
	if _, err = HandText("-5"); err == nil {
		t.Error("negative should fail")
	}
}
