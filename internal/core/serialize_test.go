package core

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "Jane Doe", want: "Jane Doe"},
		{name: "separator replaced", in: "a;b;c", want: "aþbþc"},
		{name: "htc tag stripped", in: "call after 5<HTCData>Facebook:123</HTCData>", want: "call after 5"},
		{name: "htc tag on earlier line kept", in: "x<HTCData>y\nz", want: "x<HTCData>y\nz"},
		{name: "separator inside tag", in: "n;<HTCData>a;b", want: "nþ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, ";")
		})
	}
}

func TestSerialize(t *testing.T) {
	rows := []Row{
		{Name: "Alice"},
		{Phone: "555", Name: "Bob (mobile)"},
		{Phone: "556", Name: "Bob (work)", Note: "a;b"},
	}

	got := Serialize(rows, "\r\n")
	assert.Equal(t, "\ufeff;Alice;;\r\n555;Bob (mobile);;\r\n556;Bob (work);;aþb", got)
	assert.False(t, strings.HasSuffix(got, "\r\n"))
}

func TestSerialize_TrimKeepsBOM(t *testing.T) {
	got := Serialize([]Row{{Phone: "  1", Name: "A", Note: "end  "}}, "\n")
	assert.Equal(t, "\ufeff1;A;;end", got)
}

func TestSerialize_Empty(t *testing.T) {
	assert.Equal(t, ByteOrderMark, Serialize(nil, "\n"))
}

func TestLineEnding(t *testing.T) {
	assert.Equal(t, "\r\n", LineEnding("crlf"))
	assert.Equal(t, "\r\n", LineEnding("CRLF"))
	assert.Equal(t, "\n", LineEnding("lf"))

	native := "\n"
	if runtime.GOOS == "windows" {
		native = "\r\n"
	}
	assert.Equal(t, native, LineEnding("native"))
	assert.Equal(t, native, LineEnding(""))
}
