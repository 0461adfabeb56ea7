package rhal

import (
	"encoding/json"
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseData(t *testing.T) {
	tests := []struct {
		description string
		input       string
		expected    Data
		canonical   string
	}{
		{"prefixed with mixed separators", "0x11:22,33", Data{0x11, 0x22, 0x33}, "[11, 22, 33]"},
		{"bare hex", "112233", Data{0x11, 0x22, 0x33}, "[11, 22, 33]"},
		{"canonical form", "[11, 22, 33]", Data{0x11, 0x22, 0x33}, "[11, 22, 33]"},
		{"upper case prefix and digits", "0XAB CD", Data{0xab, 0xcd}, "[ab, cd]"},
		{"single byte", "[0f]", Data{0x0f}, "[0f]"},
		{"surrounding spaces", "  aa:bb  ", Data{0xaa, 0xbb}, "[aa, bb]"},
		{"empty", "", Data{}, "[]"},
		{"empty brackets", "[]", Data{}, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			require := require.New(t)

			data, err := ParseData(tt.input)
			require.NoError(err)
			if len(tt.expected) == 0 {
				require.Empty(data)
			} else {
				require.Equal(tt.expected, data)
			}
			require.Equal(tt.canonical, data.String())

			reparsed, err := ParseData(data.String())
			require.NoError(err)
			require.Equal(data.String(), reparsed.String())
		})
	}
}

func TestParseData_Invalid(t *testing.T) {
	for _, input := range []string{"123", "zz", "0x1g", "11-22", "0x1"} {
		_, err := ParseData(input)
		require.ErrorIs(t, err, ErrInvalidData, "input %q", input)
	}
}

func TestMustParseData(t *testing.T) {
	require := require.New(t)

	require.Equal(Data{0xde, 0xad}, MustParseData("0xdead"))
	require.Panics(func() { MustParseData("xyz") })
}

func TestData_JSON(t *testing.T) {
	require := require.New(t)

	b, err := json.Marshal(Data{0x00, 0x7f, 0xff})
	require.NoError(err)
	require.Equal(`[0,127,255]`, string(b))

	var d Data
	require.NoError(json.Unmarshal([]byte(`[1, 2, 255]`), &d))
	require.Equal(Data{1, 2, 255}, d)

	require.ErrorIs(json.Unmarshal([]byte(`[256]`), &d), ErrInvalidData)
	require.Error(json.Unmarshal([]byte(`"AQI="`), &d))
}

func TestData_Clone(t *testing.T) {
	require := require.New(t)

	orig := Data{1, 2, 3}
	clone := orig.Clone()
	clone[0] = 9

	require.Equal(Data{1, 2, 3}, orig)
	require.Nil(Data(nil).Clone())
}

func TestData_Flag(t *testing.T) {
	require := require.New(t)

	var d Data
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&d, "data", "payload")

	require.NoError(fs.Parse([]string{"-data", "0x01:02"}))
	require.Equal(Data{1, 2}, d)
}
