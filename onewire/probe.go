package onewire

import (
	"context"
	"strconv"

	"github.com/heizmon/heizdiag/probe"
)

// BusIdentifier is the identifier used for whole-bus results, as opposed to
// per-sensor results keyed by address.
const BusIdentifier = "w1-bus"

// SensorProbe reads every sensor attached to the bus. The probe is
// stateless and performs exactly one read per address per invocation;
// retry orchestration belongs to the aggregator.
type SensorProbe struct {
	bus Bus
}

// NewSensorProbe creates a sensor probe over the given bus.
func NewSensorProbe(bus Bus) *SensorProbe {
	return &SensorProbe{bus: bus}
}

// Name returns the name of this probe.
func (p *SensorProbe) Name() string {
	return "onewire"
}

// Subsystem returns the subsystem this probe covers.
func (p *SensorProbe) Subsystem() probe.Subsystem {
	return probe.SubsystemSensor
}

// Addresses enumerates the attached sensors. A bus listing failure is
// reported by Run as a whole-bus result; callers doing their own
// orchestration get the raw error here.
func (p *SensorProbe) Addresses(ctx context.Context) ([]string, error) {
	return p.bus.Addresses(ctx)
}

// ReadAddress performs a single read-and-parse for one address. A failed
// read yields a Missing reading rather than an error so the outcome is
// always a Reading.
func (p *SensorProbe) ReadAddress(ctx context.Context, address string) Reading {
	payload, err := p.bus.ReadPayload(ctx, address)
	if err != nil {
		return Reading{Address: address, Validation: Missing}
	}
	return ParsePayload(address, payload)
}

// Run performs one single-read pass over all attached sensors. Zero
// discovered addresses is a failing result for the bus as a whole, not
// per sensor.
func (p *SensorProbe) Run(ctx context.Context) []probe.Result {
	addrs, err := p.bus.Addresses(ctx)
	if err != nil {
		return []probe.Result{
			probe.Failing(probe.SubsystemSensor, BusIdentifier, "bus namespace unreadable", err).
				With("error", err.Error()),
		}
	}
	if len(addrs) == 0 {
		return []probe.Result{BusEmptyResult()}
	}

	results := make([]probe.Result, 0, len(addrs))
	for _, addr := range addrs {
		results = append(results, p.ReadAddress(ctx, addr).Result(1))
	}
	return results
}

// BusEmptyResult is the whole-bus failing result for an empty address list.
func BusEmptyResult() probe.Result {
	return probe.Failing(probe.SubsystemSensor, BusIdentifier, "no sensors discovered on bus", probe.ErrTransport).
		With("addresses", strconv.Itoa(0))
}
