package decoder

// HistogramBuckets is one bucket per kHz of deviation magnitude, 0-150 kHz.
// Larger deviations clamp into the top bucket.
const HistogramBuckets = 151

// histReportThreshold is the deviation above which the report counts
// samples as over-deviated, in kHz.
const histReportThreshold = 75

// Histogram accumulates per-sample instantaneous deviation counts in three
// parallel arrays: negative excursions, positive excursions, and unsigned
// center deviation. Purely diagnostic.
type Histogram struct {
	Neg    [HistogramBuckets]int64
	Pos    [HistogramBuckets]int64
	Center [HistogramBuckets]int64
}

func bucketFor(kHz float64) int {
	b := int(kHz + 0.5)
	if b < 0 {
		b = 0
	}
	if b >= HistogramBuckets {
		b = HistogramBuckets - 1
	}
	return b
}

// Update accounts one sample of instantaneous deviation in Hz.
func (h *Histogram) Update(deviationHz float64) {
	kHz := deviationHz / 1000
	if kHz < 0 {
		h.Neg[bucketFor(-kHz)]++
		h.Center[bucketFor(-kHz)]++
	} else {
		h.Pos[bucketFor(kHz)]++
		h.Center[bucketFor(kHz)]++
	}
}

// HistogramReport is the shutdown summary derived from a Histogram.
type HistogramReport struct {
	Total           int64
	Mode            int     // bucket with the highest center count, kHz
	CenterOfGravity float64 // kHz
	PctAboveLimit   float64 // fraction of samples above histReportThreshold
	Percentiles     []HistogramPercentile
}

// HistogramPercentile is the smallest deviation (kHz) at or below which the
// given fraction of all samples falls.
type HistogramPercentile struct {
	Quantile  float64
	Deviation int
}

var reportQuantiles = []float64{0.95, 0.98, 0.99, 0.995, 0.999}

// Report summarizes the center histogram: total count, mode bucket,
// center-of-gravity, fraction above the deviation limit and the standard
// quantile set.
func (h *Histogram) Report() HistogramReport {
	r := HistogramReport{Mode: 0}
	var weighted float64
	var above int64
	var maxCount int64
	for k, c := range h.Center {
		r.Total += c
		weighted += float64(k) * float64(c)
		if k > histReportThreshold {
			above += c
		}
		if c > maxCount {
			maxCount = c
			r.Mode = k
		}
	}
	if r.Total == 0 {
		return r
	}
	r.CenterOfGravity = weighted / float64(r.Total)
	r.PctAboveLimit = float64(above) / float64(r.Total)
	for _, q := range reportQuantiles {
		target := int64(q * float64(r.Total))
		var cum int64
		for k, c := range h.Center {
			cum += c
			if cum >= target {
				r.Percentiles = append(r.Percentiles, HistogramPercentile{q, k})
				break
			}
		}
	}
	return r
}
