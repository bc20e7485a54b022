package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateType(t *testing.T) {
	tests := []struct {
		input string
		want  string
		err   error
	}{
		{"03", "03", nil},
		{" 12 ", "12", nil},
		{"3", "", ErrInvalidType},
		{"003", "", ErrInvalidType},
		{"0a", "", ErrInvalidType},
		{"٠١", "", ErrInvalidType},
		{"", "", ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ValidateType(tt.input)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChecksum(t *testing.T) {
	// 48+51+5*48+49 = 388, 388 % 26 = 24
	assert.Equal(t, byte('Y'), Checksum("03000001"))
	assert.Equal(t, byte('Z'), Checksum("03000002"))
	assert.Equal(t, byte('A'), Checksum("03000003"))
}

func TestMaxSequence(t *testing.T) {
	codes := []string{"03000001Y", "10000041X", "legacy", "AB12C456Z", "99000007", ""}
	assert.Equal(t, 41, MaxSequence(codes))
	assert.Equal(t, 0, MaxSequence(nil))
}

func TestNextCode(t *testing.T) {
	code, err := NextCode("03", nil)
	require.NoError(t, err)
	assert.Equal(t, "03000001Y", code)

	code, err = NextCode("01", []string{"03000001Y", "05000009K"})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("01000010%c", Checksum("01000010")), code)

	_, err = NextCode("01", []string{"01999999A"})
	assert.ErrorIs(t, err, ErrSequenceExhausted)

	_, err = NextCode("x1", nil)
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestNextCode_Monotonic(t *testing.T) {
	var codes []string
	types := []string{"03", "01", "99", "03", "10"}
	for i, codeType := range types {
		code, err := NextCode(codeType, codes)
		require.NoError(t, err)
		assert.Equal(t, i+1, MaxSequence([]string{code}))
		assert.Equal(t, Checksum(code[:8]), code[8])
		codes = append(codes, code)
	}
}
