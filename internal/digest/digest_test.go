package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Sum([]byte("abc")))
	assert.Equal(t, Sum([]byte("x")), Sum([]byte("x")))
	assert.NotEqual(t, Sum([]byte("x")), Sum([]byte("y")))
	assert.Len(t, Sum(nil), Size)
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{Sum([]byte("abc")), true},
		{"", false},
		{"abc", false},
		{"BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD", false},
		{"zz7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.in), tt.in)
	}
}
