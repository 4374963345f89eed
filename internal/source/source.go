// Package source provides the acquisition backends that feed I/Q blocks
// into the decoder. Backends register themselves by device-type name; the
// rest of the program depends only on the Source interface.
package source

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"fmradio/internal/dsp"
	"fmradio/internal/queue"
)

// Source produces timestamped I/Q blocks on its own goroutine.
//
// Lifecycle: Configure parses a device-specific key=value option string,
// Start spawns the acquisition goroutine pushing blocks into the queue
// until the stop flag is set or the underlying stream ends (the goroutine
// then calls PushEnd), and Stop joins the goroutine.
type Source interface {
	Configure(config string) error

	// SampleRate returns the I/Q sample rate in Hz. Valid after Configure.
	SampleRate() float64

	// Frequency returns the actual tuned center frequency in Hz, which may
	// differ from the requested one.
	Frequency() float64

	// ConfiguredFrequency returns the requested center frequency in Hz.
	ConfiguredFrequency() float64

	Start(q *queue.SampleQueue[dsp.IQSample], stop *atomic.Bool) error
	Stop() error

	// SpecificParms returns diagnostic text describing device-specific
	// settings, empty when there are none.
	SpecificParms() string
}

// Factory creates an unconfigured Source instance.
type Factory func() Source

var registry = map[string]Factory{}

// Register adds a backend under a device-type name. Called from backend
// init functions.
func Register(name string, f Factory) {
	registry[name] = f
}

// Open creates an unconfigured Source for the named device type.
func Open(name string) (Source, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("source: unknown device type %q (have %s)", name, strings.Join(DeviceNames(), ", "))
	}
	return f(), nil
}

// DeviceNames returns the registered device-type names, sorted.
func DeviceNames() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// parseConfig splits a comma-separated key=value option string. A bare
// token without '=' is taken as the file path.
func parseConfig(config string) (map[string]string, error) {
	opts := map[string]string{}
	if strings.TrimSpace(config) == "" {
		return opts, nil
	}
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, found := strings.Cut(part, "=")
		if !found {
			opts["file"] = part
			continue
		}
		if k == "" {
			return nil, fmt.Errorf("source: empty key in option %q", part)
		}
		opts[k] = v
	}
	return opts, nil
}

// clampBlockLength bounds a block length to [1024, 65536] samples, rounded
// down to a multiple of 1024.
func clampBlockLength(n int) int {
	if n < 1024 {
		n = 1024
	}
	if n > 64*1024 {
		n = 64 * 1024
	}
	return n - n%1024
}
