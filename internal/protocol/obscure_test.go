package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObscure(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc", "def"},
		{"xyz", "abc"},
		{"ABC", "DEF"},
		{"XYZ", "ABC"},
		{"789", "012"},
		{"0123456789", "3456789012"},
		{"pass word!", "sdvv zrug!"},
		{"a-b_c.d", "d-e_f.g"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Obscure(tt.in), "Obscure(%q)", tt.in)
	}
}

func TestRevealInvertsObscure(t *testing.T) {
	inputs := []string{
		"branden",
		"Hello12!",
		"  spaces and, commas ",
		"ZzAa09",
	}
	for _, in := range inputs {
		assert.Equal(t, in, Reveal(Obscure(in)))
	}
}

func TestObscurePreservesCaseAndLength(t *testing.T) {
	in := "MixedCase123"
	out := Obscure(in)
	assert.Len(t, out, len(in))
	for i := range in {
		if in[i] >= 'A' && in[i] <= 'Z' {
			assert.True(t, out[i] >= 'A' && out[i] <= 'Z', "position %d lost upper case", i)
		}
	}
}
