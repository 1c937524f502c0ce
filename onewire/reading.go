package onewire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/heizmon/heizdiag/probe"
)

// Validation is the integrity outcome of one bus transaction.
type Validation int

const (
	// ValidChecksum means the kernel's CRC check passed for this read.
	ValidChecksum Validation = iota
	// InvalidChecksum means the read completed but failed the CRC check.
	InvalidChecksum
	// Missing means the read returned no payload at all.
	Missing
)

// String returns the string representation of the validation state.
func (v Validation) String() string {
	switch v {
	case ValidChecksum:
		return "valid"
	case InvalidChecksum:
		return "invalid_checksum"
	default:
		return "missing"
	}
}

const (
	// sentinelMillidegrees is the DS18B20 power-on value reported before
	// the first temperature conversion completes.
	sentinelMillidegrees = 85000

	// minMillidegrees and maxMillidegrees bound the sensor's physical range.
	minMillidegrees = -55000
	maxMillidegrees = 125000
)

// Reading is one parsed sensor transaction. Value is only meaningful when
// HasValue is true: a valid checksum with the uninitialized sentinel or an
// out-of-range value yields no measurement.
type Reading struct {
	Address      string
	RawPayload   string
	Validation   Validation
	Millidegrees int
	Value        float64
	HasValue     bool

	hasField bool
}

// ParsePayload parses a w1_slave scratchpad payload for the given address.
//
// The kernel renders two lines per read:
//
//	4b 46 7f ff 0c 10 1c : crc=1c YES
//	4b 46 7f ff 0c 10 1c t=22125
//
// The first line ends in YES or NO depending on the CRC outcome; the last
// line carrying a t= field holds the temperature in millidegrees Celsius.
func ParsePayload(address, payload string) Reading {
	r := Reading{Address: address, RawPayload: payload}

	if strings.TrimSpace(payload) == "" {
		r.Validation = Missing
		return r
	}

	lines := strings.Split(strings.TrimRight(payload, "\n"), "\n")
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		r.Validation = InvalidChecksum
		return r
	}
	r.Validation = ValidChecksum

	// The temperature field sits in the last line containing t=.
	var tempLine string
	for _, line := range lines {
		if strings.Contains(line, "t=") {
			tempLine = line
		}
	}
	if tempLine == "" {
		return r
	}

	raw := tempLine[strings.LastIndex(tempLine, "t=")+len("t="):]
	milli, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return r
	}

	r.hasField = true
	r.Millidegrees = milli
	if milli == sentinelMillidegrees || milli < minMillidegrees || milli > maxMillidegrees {
		return r
	}

	r.Value = float64(milli) / 1000.0
	r.HasValue = true
	return r
}

// Result converts the reading into a probe result. attempts records how many
// reads were spent on this address; the planner treats a checksum failure
// that survived every attempt as a wiring problem.
func (r Reading) Result(attempts int) probe.Result {
	switch r.Validation {
	case Missing:
		res := probe.Failing(probe.SubsystemSensor, r.Address, "empty read from bus", probe.ErrTransport)
		return withAttempts(res.With("validation", r.Validation.String()), attempts)

	case InvalidChecksum:
		res := probe.Failing(probe.SubsystemSensor, r.Address, "checksum failed", probe.ErrParse).
			With("validation", r.Validation.String()).
			With("raw_payload", r.RawPayload)
		return withAttempts(res, attempts)
	}

	if !r.hasField {
		res := probe.Failing(probe.SubsystemSensor, r.Address, "no temperature field", probe.ErrParse).
			With("validation", r.Validation.String()).
			With("raw_payload", r.RawPayload)
		return withAttempts(res, attempts)
	}

	if !r.HasValue {
		res := probe.Degraded(probe.SubsystemSensor, r.Address, "implausible reading, likely pre-conversion").
			With("validation", r.Validation.String()).
			With("raw_millidegrees", strconv.Itoa(r.Millidegrees))
		return withAttempts(res, attempts)
	}

	res := probe.Healthy(probe.SubsystemSensor, r.Address, fmt.Sprintf("%.3f °C", r.Value)).
		With("validation", r.Validation.String()).
		With("raw_millidegrees", strconv.Itoa(r.Millidegrees)).
		With("value", strconv.FormatFloat(r.Value, 'f', -1, 64))
	return withAttempts(res, attempts)
}

func withAttempts(res probe.Result, attempts int) probe.Result {
	if attempts > 1 {
		return res.With("attempts", strconv.Itoa(attempts))
	}
	return res
}
