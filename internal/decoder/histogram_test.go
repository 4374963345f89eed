package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistogramExactBuckets(t *testing.T) {
	h := &Histogram{}
	for i := 0; i < 10; i++ {
		h.Update(42000) // +42 kHz
	}
	for i := 0; i < 7; i++ {
		h.Update(-13000) // -13 kHz
	}
	assert.Equal(t, int64(10), h.Pos[42])
	assert.Equal(t, int64(7), h.Neg[13])
	assert.Equal(t, int64(10), h.Center[42])
	assert.Equal(t, int64(7), h.Center[13])
	assert.Equal(t, int64(0), h.Pos[13])
	assert.Equal(t, int64(0), h.Neg[42])
}

func TestHistogramClampsAt150(t *testing.T) {
	h := &Histogram{}
	h.Update(150000)
	h.Update(151000)
	h.Update(400000)
	h.Update(-999000)
	assert.Equal(t, int64(3), h.Pos[150])
	assert.Equal(t, int64(1), h.Neg[150])
	assert.Equal(t, int64(4), h.Center[150])
}

func TestHistogramRounding(t *testing.T) {
	h := &Histogram{}
	h.Update(41400)  // rounds to 41
	h.Update(41600)  // rounds to 42
	h.Update(-41600) // rounds to 42, negative side
	assert.Equal(t, int64(1), h.Pos[41])
	assert.Equal(t, int64(1), h.Pos[42])
	assert.Equal(t, int64(1), h.Neg[42])
}

func TestHistogramReport(t *testing.T) {
	h := &Histogram{}
	// 90 samples at 10 kHz, 10 at 100 kHz.
	for i := 0; i < 90; i++ {
		h.Update(10000)
	}
	for i := 0; i < 10; i++ {
		h.Update(100000)
	}

	r := h.Report()
	assert.Equal(t, int64(100), r.Total)
	assert.Equal(t, 10, r.Mode)
	assert.InDelta(t, 19.0, r.CenterOfGravity, 1e-9) // (90*10+10*100)/100
	assert.InDelta(t, 0.10, r.PctAboveLimit, 1e-9)

	// 95th and 98th percentile fall in the 100 kHz tail, 99.9th too.
	for _, pc := range r.Percentiles {
		switch pc.Quantile {
		case 0.95, 0.98, 0.99, 0.995, 0.999:
			assert.Equal(t, 100, pc.Deviation, "quantile %v", pc.Quantile)
		}
	}
	assert.Len(t, r.Percentiles, 5)
}

func TestHistogramEmptyReport(t *testing.T) {
	r := (&Histogram{}).Report()
	assert.Equal(t, int64(0), r.Total)
	assert.Empty(t, r.Percentiles)
}
