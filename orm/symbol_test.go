package orm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTsCode(t *testing.T) {
	cases := map[string]string{
		"600000": "600000.SH",
		"688981": "688981.SH",
		"000001": "000001.SZ",
		"300750": "300750.SZ",
		"830799": "830799.BJ",
		"430047": "430047.BJ",
	}
	for code, want := range cases {
		got, err := NormalizeTsCode(code)
		require.Nil(t, err, code)
		require.Equal(t, want, got)
	}
	for _, bad := range []string{"", "12345", "1234567", "60000a", "  600000  x"} {
		_, err := NormalizeTsCode(bad)
		require.NotNil(t, err, bad)
	}
	// 前后空白应被容忍
	got, err := NormalizeTsCode(" 600000 ")
	require.Nil(t, err)
	require.Equal(t, "600000.SH", got)
}

func TestSplitTsCode(t *testing.T) {
	code, exchange, err := SplitTsCode("000001.SZ")
	require.Nil(t, err)
	require.Equal(t, "000001", code)
	require.Equal(t, "SZ", exchange)
	_, _, err = SplitTsCode("000001")
	require.NotNil(t, err)
	_, _, err = SplitTsCode("1.SZ")
	require.NotNil(t, err)
}
