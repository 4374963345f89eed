package decoder

import "math"

// PilotFrequency is the broadcast-FM stereo pilot tone in Hz.
const PilotFrequency = 19000

// pilotCyclesPerPPS pilot periods make one pilot-derived second marker.
const pilotCyclesPerPPS = PilotFrequency

// PpsEvent marks a pilot-cycle counter rollover. SampleIndex counts
// baseband samples since stream start; BlockPosition is the fractional
// position within the block passed to the Process call that produced the
// event.
type PpsEvent struct {
	PpsIndex      int64
	SampleIndex   int64
	BlockPosition float64
}

// PilotPhaseLock tracks the 19 kHz stereo pilot with a numerically
// controlled oscillator and a proportional-integral loop filter. The
// tracked phase yields a coherent doubled-frequency reference for the
// stereo subcarrier and sub-sample-accurate PPS markers.
type PilotPhaseLock struct {
	freq    float64 // NCO frequency, cycles per sample
	phase   float64 // NCO phase, cycles in [0,1)
	minFreq float64
	maxFreq float64

	propGain float64
	intGain  float64

	// two cascaded one-pole low-passes per quadrature arm
	lpAlpha                float64
	lpI1, lpI2, lpQ1, lpQ2 float64

	pilotLevel float64 // smoothed pilot amplitude
	errVar     float64 // smoothed squared phase error, rad^2
	minSignal  float64
	maxErrVar  float64
	lockDelay  int
	lockCount  int
	locked     bool

	sampleCount int64
	cycleCount  int64
	ppsIndex    int64
	events      []PpsEvent
}

// loop and detector tuning
const (
	pllBandwidth   = 100.0 // Hz, closed-loop natural frequency
	pllArmCutoff   = 800.0 // Hz, quadrature arm low-pass
	pllDamping     = 0.707
	pllLevelAlpha  = 0.005
	pllMinSignal   = 0.04  // pilot amplitude (10% deviation nominal ~ 0.1)
	pllMaxErrVar   = 0.04  // rad^2
	pllLockSeconds = 0.05  // sustained condition before (un)lock
	pllPullIn      = 200.0 // Hz, NCO frequency clamp around nominal
)

// NewPilotPhaseLock creates a pilot PLL for a baseband stream at the given
// sample rate (the rate after IF downsampling).
func NewPilotPhaseLock(sampleRate float64) *PilotPhaseLock {
	wn := 2 * math.Pi * pllBandwidth / sampleRate
	nominal := PilotFrequency / sampleRate
	return &PilotPhaseLock{
		freq:      nominal,
		minFreq:   nominal - pllPullIn/sampleRate,
		maxFreq:   nominal + pllPullIn/sampleRate,
		propGain:  2 * pllDamping * wn,
		intGain:   wn * wn,
		lpAlpha:   1 / (1 + sampleRate/(2*math.Pi*pllArmCutoff)),
		minSignal: pllMinSignal,
		maxErrVar: pllMaxErrVar,
		lockDelay: int(pllLockSeconds * sampleRate),
	}
}

// Process consumes one baseband block and fills ref with the unit-amplitude
// doubled-pilot reference cos(2*phase), phase coherent with the transmitted
// subcarrier. ref must have the same length as baseband. PpsEvents
// accumulate until drained with Events.
func (p *PilotPhaseLock) Process(baseband, ref []float32) {
	n := len(baseband)
	for i := 0; i < n; i++ {
		x := float64(baseband[i])

		psin, pcos := math.Sincos(2 * math.Pi * p.phase)

		// The reference must use the same phase the detector aligns to
		// this sample, before the loop update advances the NCO.
		ref[i] = float32(2*pcos*pcos - 1)

		// Quadrature downconversion of the pilot to DC; the cascaded
		// low-passes reject the audio content and the doubled-frequency
		// mixing product.
		p.lpI1 += p.lpAlpha * (x*pcos - p.lpI1)
		p.lpI2 += p.lpAlpha * (p.lpI1 - p.lpI2)
		p.lpQ1 += p.lpAlpha * (x*psin - p.lpQ1)
		p.lpQ2 += p.lpAlpha * (p.lpQ1 - p.lpQ2)

		// Phase detector: for a pilot A*cos(2*pi*phi) the filtered arms
		// approach (A/2)*cos(2*pi*(phi-theta)) and -(A/2)*sin(2*pi*(phi-theta)).
		errRad := math.Atan2(-p.lpQ2, p.lpI2)
		errCycles := errRad / (2 * math.Pi)

		amplitude := 2 * math.Hypot(p.lpI2, p.lpQ2)
		p.pilotLevel += pllLevelAlpha * (amplitude - p.pilotLevel)
		p.errVar += pllLevelAlpha * (errRad*errRad - p.errVar)
		p.updateLock()

		p.freq += p.intGain * errCycles
		if p.freq < p.minFreq {
			p.freq = p.minFreq
		} else if p.freq > p.maxFreq {
			p.freq = p.maxFreq
		}

		next := p.phase + p.freq + p.propGain*errCycles
		if next >= 1 {
			frac := (1 - p.phase) / (next - p.phase)
			next -= 1
			p.cycleCount++
			if p.cycleCount >= pilotCyclesPerPPS {
				p.cycleCount = 0
				p.events = append(p.events, PpsEvent{
					PpsIndex:      p.ppsIndex,
					SampleIndex:   p.sampleCount + int64(i),
					BlockPosition: (float64(i) + frac) / float64(n),
				})
				p.ppsIndex++
			}
		}
		p.phase = next
	}
	p.sampleCount += int64(n)
}

// updateLock debounces the lock detector: the in-lock condition must hold
// for lockDelay samples before lock is declared, and fail for lockDelay
// samples before it is dropped.
func (p *PilotPhaseLock) updateLock() {
	inLock := p.pilotLevel > p.minSignal && p.errVar < p.maxErrVar
	if inLock {
		if p.lockCount < 2*p.lockDelay {
			p.lockCount++
		}
	} else {
		if p.lockCount > 0 {
			p.lockCount--
		}
	}
	p.locked = p.lockCount >= p.lockDelay
}

// Locked reports the debounced pilot lock state.
func (p *PilotPhaseLock) Locked() bool {
	return p.locked
}

// PilotLevel returns the smoothed pilot amplitude estimate.
func (p *PilotPhaseLock) PilotLevel() float64 {
	return p.pilotLevel
}

// Events returns the PPS events accumulated since the previous call and
// clears the list.
func (p *PilotPhaseLock) Events() []PpsEvent {
	ev := p.events
	p.events = nil
	return ev
}
