// Command fmradio demodulates a broadcast-FM I/Q capture or device stream
// into mono or stereo PCM audio, with signal-level telemetry, pilot-derived
// PPS timestamps and an optional deviation histogram.
package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"fmradio/internal/config"
	"fmradio/internal/decoder"
	"fmradio/internal/dsp"
	"fmradio/internal/output"
	"fmradio/internal/queue"
	"fmradio/internal/source"
)

// overloadSecs of queued input marks the real-time overload condition.
const overloadSecs = 10

func main() {
	p := config.New()

	pflag.StringVarP(&p.SourceType, "type", "t", p.SourceType, "source device type")
	pflag.StringVarP(&p.SourceConfig, "conf", "c", "", "source configuration (comma separated key=value)")
	pflag.Float64VarP(&p.Frequency, "freq", "f", 0, "tune frequency in Hz (overrides the source config)")
	pflag.BoolVarP(&p.Mono, "mono", "M", false, "disable stereo decoding")
	pflag.Float64VarP(&p.DeemphasisUS, "deemphasis", "d", p.DeemphasisUS, "de-emphasis time constant in microseconds, 0 to disable")
	pflag.Float64Var(&p.IFBandwidth, "ifbw", p.IFBandwidth, "IF half bandwidth in Hz")
	pflag.Float64Var(&p.PeakDeviation, "maxdev", p.PeakDeviation, "peak frequency deviation in Hz")
	pflag.IntVarP(&p.PCMRate, "pcmrate", "r", p.PCMRate, "PCM output sample rate in Hz")
	pflag.BoolVarP(&p.ExactAtan, "exact", "X", false, "use the exact arctangent discriminator")
	pflag.Float64VarP(&p.BufferSecs, "buffer", "b", 0, "output buffer length in seconds (0 writes inline)")
	pflag.StringVarP(&p.PPSPath, "pps", "T", "", "write pulse-per-second timestamps to this file")
	pflag.BoolVarP(&p.Histogram, "histogram", "H", false, "collect a deviation histogram, reported at shutdown")
	pflag.BoolVarP(&p.Quiet, "quiet", "q", false, "suppress the periodic status line")
	pflag.StringVarP(&p.RawPath, "raw", "R", "", "write raw 16-bit PCM to this file ('-' for stdout)")
	pflag.StringVarP(&p.WavPath, "wav", "W", "", "write a WAV file")
	pflag.BoolVarP(&p.Play, "play", "P", false, "play on the default audio device")
	listDevices := pflag.Bool("list-devices", false, "list source device types and exit")
	pflag.Parse()

	if *listDevices {
		fmt.Fprintln(os.Stderr, strings.Join(source.DeviceNames(), "\n"))
		return
	}
	if err := run(p); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(p *config.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	src, err := source.Open(p.SourceType)
	if err != nil {
		return err
	}
	if err := src.Configure(p.SourceConfig); err != nil {
		return err
	}

	confFreq := src.ConfiguredFrequency()
	if p.Frequency > 0 {
		confFreq = p.Frequency
	}
	tuningOffset := confFreq - src.Frequency()

	dec, err := decoder.New(p.DecoderConfig(src.SampleRate(), tuningOffset))
	if err != nil {
		return err
	}
	cfg := dec.Config()

	log.Info("source ready",
		"type", p.SourceType,
		"rate", src.SampleRate(),
		"freq", src.Frequency(),
		"offset", tuningOffset,
		"parms", src.SpecificParms())
	log.Info("decoder ready",
		"downsample", cfg.DownsampleFactor,
		"ifrate", dec.IntermediateRate(),
		"pcmrate", cfg.PCMRate,
		"stereo", cfg.Stereo)

	out, err := openOutput(p, int(cfg.PCMRate), cfg.Channels())
	if err != nil {
		return err
	}

	var ppsFile *os.File
	if p.PPSPath != "" {
		if ppsFile, err = os.Create(p.PPSPath); err != nil {
			return fmt.Errorf("opening PPS file: %w", err)
		}
		defer ppsFile.Close()
		fmt.Fprintln(ppsFile, "# pps_index sample_index unix_time")
	}

	var stop atomic.Bool
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		log.Info("stopping", "signal", s)
		stop.Store(true)
	}()

	iqQueue := queue.New[dsp.IQSample]()
	if err := src.Start(iqQueue, &stop); err != nil {
		return err
	}

	// With buffering enabled the sink is drained by its own goroutine so a
	// slow device cannot stall the processing loop.
	var pcmQueue *queue.SampleQueue[float32]
	outputDone := make(chan struct{})
	if p.BufferSecs > 0 {
		pcmQueue = queue.New[float32]()
		prefill := int(p.BufferSecs * cfg.PCMRate * float64(cfg.Channels()) / 2)
		go func() {
			defer close(outputDone)
			pcmQueue.WaitUntilFilled(prefill)
			for {
				block := pcmQueue.Pull()
				if block == nil {
					return
				}
				if err := out.Write(block); err != nil {
					log.Error("audio output failed", "err", err)
					stop.Store(true)
					return
				}
			}
		}()
	} else {
		close(outputDone)
	}

	err = processLoop(p, dec, src, iqQueue, pcmQueue, out, ppsFile, &stop)

	stop.Store(true)
	if serr := src.Stop(); serr != nil {
		log.Warn("source stop", "err", serr)
	}
	if pcmQueue != nil {
		pcmQueue.PushEnd()
		<-outputDone
	}
	if cerr := out.Close(); cerr != nil && err == nil {
		err = cerr
	}

	if h := dec.Histogram(); h != nil {
		printHistogram(os.Stderr, h)
	}
	return err
}

func processLoop(p *config.Params, dec *decoder.Decoder, src source.Source,
	iqQueue *queue.SampleQueue[dsp.IQSample], pcmQueue *queue.SampleQueue[float32],
	out output.AudioOutput, ppsFile *os.File, stop *atomic.Bool) error {

	ifRate := src.SampleRate()
	overload := overloadGuard{limit: int(overloadSecs * ifRate)}
	lastStatus := time.Now()
	var blockCount int64

	for !stop.Load() {
		block := iqQueue.Pull()
		if block == nil {
			break
		}
		blockTime := time.Now()
		blockCount++

		pcm := dec.Process(block)

		if ppsFile != nil {
			blockDur := float64(len(block)) / ifRate
			for _, ev := range dec.PpsEvents() {
				ts := float64(blockTime.UnixNano())/1e9 + (ev.BlockPosition-1)*blockDur
				fmt.Fprintf(ppsFile, "%d %d %.6f\n", ev.PpsIndex, ev.SampleIndex, ts)
			}
			ppsFile.Sync()
		} else {
			dec.PpsEvents()
		}

		if len(pcm) > 0 {
			if pcmQueue != nil {
				pcmQueue.Push(pcm)
			} else if err := out.Write(pcm); err != nil {
				return fmt.Errorf("audio output failed: %w", err)
			}
		}

		if queued := iqQueue.QueuedElements(); overload.shouldWarn(queued) {
			log.Warn("processing cannot keep up with the input rate",
				"queued_seconds", float64(queued)/ifRate)
		}

		if !p.Quiet && time.Since(lastStatus) >= time.Second {
			printStatus(dec, src, blockCount)
			lastStatus = time.Now()
		}
	}
	return nil
}

// overloadGuard emits the real-time overload warning once per run.
type overloadGuard struct {
	limit  int
	warned bool
}

func (g *overloadGuard) shouldWarn(queued int) bool {
	if g.warned || queued <= g.limit {
		return false
	}
	g.warned = true
	return true
}

// tuningCorrectionPPM converts the estimated residual offset into the ppm
// correction to apply to the tune frequency, hence the negated sign.
func tuningCorrectionPPM(offsetHz, freqHz float64) float64 {
	return -offsetHz / freqHz * 1e6
}

func printStatus(dec *decoder.Decoder, src source.Source, blocks int64) {
	ppm := 0.0
	if f := src.Frequency(); f > 0 {
		ppm = tuningCorrectionPPM(dec.TuningOffsetEstimate(), f)
	}
	stereo := "-"
	if dec.StereoLocked() {
		stereo = "stereo"
	}
	log.Info("status",
		"blk", blocks,
		"ppm", fmt.Sprintf("%+.2f", ppm),
		"if_db", fmt.Sprintf("%+.1f", toDB(dec.IFLevel())),
		"bb_db", fmt.Sprintf("%+.1f", toDB(dec.BasebandLevel())),
		"pilot", fmt.Sprintf("%.3f", dec.PilotLevel()),
		"mode", stereo)
}

func toDB(level float64) float64 {
	if level <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(level)
}

func openOutput(p *config.Params, rate, channels int) (output.AudioOutput, error) {
	switch {
	case p.RawPath != "":
		return output.NewRawOutput(p.RawPath)
	case p.WavPath != "":
		return output.NewWavOutput(p.WavPath, rate, channels)
	default:
		return output.NewPlayback(rate, channels)
	}
}

// printHistogram writes the shutdown report to w. The raw output sink may
// own stdout, so diagnostics always go elsewhere.
func printHistogram(w io.Writer, h *decoder.Histogram) {
	r := h.Report()
	fmt.Fprintln(w, "deviation histogram (kHz: neg pos center)")
	for k := 0; k < decoder.HistogramBuckets; k++ {
		if h.Neg[k] == 0 && h.Pos[k] == 0 && h.Center[k] == 0 {
			continue
		}
		fmt.Fprintf(w, "%3d: %10d %10d %10d\n", k, h.Neg[k], h.Pos[k], h.Center[k])
	}
	fmt.Fprintf(w, "total samples:      %d\n", r.Total)
	fmt.Fprintf(w, "mode:               %d kHz\n", r.Mode)
	fmt.Fprintf(w, "center of gravity:  %.2f kHz\n", r.CenterOfGravity)
	fmt.Fprintf(w, "above 75 kHz:       %.3f%%\n", 100*r.PctAboveLimit)
	for _, pc := range r.Percentiles {
		fmt.Fprintf(w, "%5.1f%% of samples below %d kHz\n", 100*pc.Quantile, pc.Deviation)
	}
}
