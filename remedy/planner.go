package remedy

import (
	"fmt"
	"sort"

	"github.com/heizmon/heizdiag/diagnose"
	"github.com/heizmon/heizdiag/onewire"
	"github.com/heizmon/heizdiag/probe"
)

// Planner derives an action plan from a health snapshot. Plan is a pure
// function of its inputs: the same snapshot and attempt set always yield
// the same plan, in the same order.
type Planner struct {
	// Service is the collector service name.
	Service string

	// CriticalContainer is the container hosting the database.
	CriticalContainer string

	// Bucket is the expected database bucket.
	Bucket string
}

// Plan maps the snapshot to an ordered, deduplicated list of actions.
// attempted carries actions already tried, this run or recently; it keeps
// the planner from proposing the same module reload forever.
func (p *Planner) Plan(snap *diagnose.Snapshot, attempted AttemptSet) []Action {
	var actions []Action

	actions = append(actions, p.planContainers(snap)...)
	actions = append(actions, p.planDatabase(snap)...)
	actions = append(actions, p.planService(snap)...)
	actions = append(actions, p.planSensors(snap, attempted)...)

	return dedupe(actions)
}

// planContainers proposes container starts. The database's hosting
// container gets a restart instead when the database itself is down, since
// a stale-but-listed container can wedge the database without dying.
func (p *Planner) planContainers(snap *diagnose.Snapshot) []Action {
	var actions []Action
	for key, res := range snap.Results {
		if key.Subsystem != probe.SubsystemContainer || res.Status != probe.StatusFailing {
			continue
		}
		if key.Identifier == p.CriticalContainer {
			actions = append(actions, Action{
				Kind:      KindRestartContainer,
				Target:    key.Identifier,
				Tier:      TierCritical,
				Rationale: fmt.Sprintf("container %s: %s", key.Identifier, res.Message),
			})
			continue
		}
		actions = append(actions, Action{
			Kind:      KindStartContainer,
			Target:    key.Identifier,
			Tier:      TierCritical,
			Rationale: fmt.Sprintf("container %s: %s", key.Identifier, res.Message),
		})
	}
	return actions
}

// planDatabase proposes bucket creation and flags a silent pipeline.
// CreateBucket is superseded by a restart of the hosting container: bucket
// state is meaningless while the database is down or being bounced.
func (p *Planner) planDatabase(snap *diagnose.Snapshot) []Action {
	res, ok := snap.Get(probe.SubsystemDatabase, p.Bucket)
	if !ok {
		return nil
	}

	restartPlanned := false
	if container, ok := snap.Get(probe.SubsystemContainer, p.CriticalContainer); ok {
		restartPlanned = container.Status == probe.StatusFailing
	}

	var actions []Action

	if res.Status == probe.StatusDegraded {
		if _, missing := res.Lookup("buckets"); missing && !restartPlanned {
			actions = append(actions, Action{
				Kind:      KindCreateBucket,
				Target:    p.Bucket,
				Tier:      TierConfiguration,
				Rationale: fmt.Sprintf("bucket %s: %s", p.Bucket, res.Message),
			})
		}
		if _, silent := res.Lookup("no_data_window"); silent && p.serviceActive(snap) {
			// The collector runs, the database accepts writes, yet nothing
			// arrives. No safe automated fix exists upstream.
			actions = append(actions, Action{
				Kind:      KindManualIntervention,
				Target:    p.Bucket,
				Tier:      TierDiagnostic,
				Rationale: fmt.Sprintf("service %s active but bucket %s: %s", p.Service, p.Bucket, res.Message),
			})
		}
	}

	return actions
}

func (p *Planner) serviceActive(snap *diagnose.Snapshot) bool {
	res, ok := snap.Get(probe.SubsystemService, p.Service)
	if !ok {
		return false
	}
	active, _ := res.Lookup("active")
	return active == "active"
}

func (p *Planner) planService(snap *diagnose.Snapshot) []Action {
	res, ok := snap.Get(probe.SubsystemService, p.Service)
	if !ok {
		return nil
	}
	if active, _ := res.Lookup("active"); active == "active" {
		return nil
	}
	if res.Status != probe.StatusFailing && res.Status != probe.StatusDegraded {
		return nil
	}
	return []Action{{
		Kind:      KindStartService,
		Target:    p.Service,
		Tier:      TierCritical,
		Rationale: fmt.Sprintf("service %s: %s", p.Service, res.Message),
	}}
}

// planSensors proposes a module reload for an empty bus, degrading to
// manual intervention once the reload has been tried, and flags sensors
// whose checksum never recovered across the read retries.
func (p *Planner) planSensors(snap *diagnose.Snapshot, attempted AttemptSet) []Action {
	var actions []Action

	if res, ok := snap.Get(probe.SubsystemSensor, onewire.BusIdentifier); ok && res.Status == probe.StatusFailing {
		if attempted.Has(KindRunModuleReload, onewire.BusIdentifier) {
			actions = append(actions, Action{
				Kind:      KindManualIntervention,
				Target:    onewire.BusIdentifier,
				Tier:      TierLastResort,
				Rationale: fmt.Sprintf("bus: %s; module reload already attempted", res.Message),
			})
		} else {
			actions = append(actions, Action{
				Kind:      KindRunModuleReload,
				Target:    onewire.BusIdentifier,
				Tier:      TierCritical,
				Rationale: fmt.Sprintf("bus: %s", res.Message),
			})
		}
	}

	for key, res := range snap.Results {
		if key.Subsystem != probe.SubsystemSensor || key.Identifier == onewire.BusIdentifier {
			continue
		}
		if v, _ := res.Lookup("validation"); v != onewire.InvalidChecksum.String() {
			continue
		}
		// The aggregator already spent its retry budget on this address.
		actions = append(actions, Action{
			Kind:      KindManualIntervention,
			Target:    key.Identifier,
			Tier:      TierLastResort,
			Rationale: fmt.Sprintf("sensor %s: %s; likely wiring or hardware", key.Identifier, res.Message),
		})
	}

	return actions
}

// dedupe collapses duplicate (kind, target) pairs keeping the lowest tier,
// then sorts by tier ascending and target name for determinism.
func dedupe(actions []Action) []Action {
	byKey := make(map[Key]Action, len(actions))
	for _, a := range actions {
		key := Key{Kind: a.Kind, Target: a.Target}
		if existing, ok := byKey[key]; ok && existing.Tier <= a.Tier {
			continue
		}
		byKey[key] = a
	}

	plan := make([]Action, 0, len(byKey))
	for _, a := range byKey {
		plan = append(plan, a)
	}
	sort.Slice(plan, func(i, j int) bool {
		if plan[i].Tier != plan[j].Tier {
			return plan[i].Tier < plan[j].Tier
		}
		if plan[i].Target != plan[j].Target {
			return plan[i].Target < plan[j].Target
		}
		return plan[i].Kind < plan[j].Kind
	})
	return plan
}
