package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCPU_Boundary(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"500m", 0.5},
		{"1", 1.0},
		{"2000m", 2.0},
	}
	for _, c := range cases {
		got, err := ParseCPU(c.in)
		require.NoError(t, err)
		assert.InDelta(t, c.want, got, 1e-9, c.in)
	}
}

func TestParseCPU_Malformed(t *testing.T) {
	_, err := ParseCPU("lots")
	assert.Error(t, err)
	_, err = ParseCPU("")
	assert.Error(t, err)
}

func TestParseMemory_Boundary(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1Gi", 1073741824},
		{"1Mi", 1048576},
		{"1024", 1024},
	}
	for _, c := range cases {
		got, err := ParseMemory(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseMemory_Malformed(t *testing.T) {
	_, err := ParseMemory("bogus")
	assert.Error(t, err)
}
