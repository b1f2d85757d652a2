package objcodec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func nan() float64         { return math.NaN() }
func inf(sign int) float64 { return math.Inf(sign) }
func negZero() float64     { return math.Copysign(0, -1) }

func mustMarshal(t *testing.T, c Codec, v any) []byte {
	t.Helper()
	data, err := c.Marshal(v)
	require.NoError(t, err)
	return data
}
