package remedy

import (
	"reflect"
	"testing"
	"time"

	"github.com/heizmon/heizdiag/diagnose"
	"github.com/heizmon/heizdiag/onewire"
	"github.com/heizmon/heizdiag/probe"
)

func testPlanner() *Planner {
	return &Planner{
		Service:           "heizung-monitor",
		CriticalContainer: "influxdb",
		Bucket:            "heizung-daten",
	}
}

func snapshotOf(results ...probe.Result) *diagnose.Snapshot {
	s := &diagnose.Snapshot{
		Results:           make(map[diagnose.Key]probe.Result, len(results)),
		GeneratedAt:       time.Now(),
		CriticalContainer: "influxdb",
	}
	for _, res := range results {
		s.Results[diagnose.Key{Subsystem: res.Subsystem, Identifier: res.Identifier}] = res
	}
	return s
}

func TestPlanner_HealthySnapshotEmptyPlan(t *testing.T) {
	snap := snapshotOf(
		probe.Healthy(probe.SubsystemSensor, "28-000005e2fdc3", "22.125 °C"),
		probe.Healthy(probe.SubsystemService, "heizung-monitor", "active and enabled").With("active", "active"),
		probe.Healthy(probe.SubsystemContainer, "influxdb", "running"),
		probe.Healthy(probe.SubsystemDatabase, "heizung-daten", "reachable, bucket present"),
	)

	plan := testPlanner().Plan(snap, AttemptSet{})
	if len(plan) != 0 {
		t.Errorf("plan = %+v, want empty", plan)
	}
}

func TestPlanner_EmptyBusProposesModuleReload(t *testing.T) {
	snap := snapshotOf(onewire.BusEmptyResult())

	plan := testPlanner().Plan(snap, AttemptSet{})
	if len(plan) != 1 {
		t.Fatalf("len(plan) = %d, want 1", len(plan))
	}
	if plan[0].Kind != KindRunModuleReload || plan[0].Tier != TierCritical {
		t.Errorf("action = %s/%s, want run_module_reload/critical", plan[0].Kind, plan[0].Tier)
	}
	if plan[0].Target != onewire.BusIdentifier {
		t.Errorf("target = %q, want %q", plan[0].Target, onewire.BusIdentifier)
	}
}

func TestPlanner_ModuleReloadDowngradesAfterAttempt(t *testing.T) {
	snap := snapshotOf(onewire.BusEmptyResult())

	attempted := AttemptSet{}
	attempted.Mark(KindRunModuleReload, onewire.BusIdentifier)

	plan := testPlanner().Plan(snap, attempted)
	if len(plan) != 1 {
		t.Fatalf("len(plan) = %d, want 1", len(plan))
	}
	if plan[0].Kind != KindManualIntervention || plan[0].Tier != TierLastResort {
		t.Errorf("action = %s/%s, want manual_intervention/last_resort", plan[0].Kind, plan[0].Tier)
	}
}

func TestPlanner_DatabaseDownContainerDown(t *testing.T) {
	snap := snapshotOf(
		probe.Failing(probe.SubsystemDatabase, "heizung-daten", "database unreachable", probe.ErrTransport),
		probe.Failing(probe.SubsystemContainer, "influxdb", "not running", nil),
	)

	plan := testPlanner().Plan(snap, AttemptSet{})
	if len(plan) == 0 {
		t.Fatal("plan is empty")
	}
	top := plan[0]
	if top.Kind != KindRestartContainer || top.Target != "influxdb" || top.Tier != TierCritical {
		t.Errorf("top action = %+v, want restart_container/influxdb/critical", top)
	}
}

func TestPlanner_BucketMissingProposesCreate(t *testing.T) {
	snap := snapshotOf(
		probe.Degraded(probe.SubsystemDatabase, "heizung-daten", "expected bucket missing").
			With("buckets", "other-bucket"),
		probe.Healthy(probe.SubsystemContainer, "influxdb", "running"),
	)

	plan := testPlanner().Plan(snap, AttemptSet{})
	if len(plan) != 1 {
		t.Fatalf("len(plan) = %d, want 1", len(plan))
	}
	if plan[0].Kind != KindCreateBucket || plan[0].Target != "heizung-daten" || plan[0].Tier != TierConfiguration {
		t.Errorf("action = %+v, want create_bucket/heizung-daten/configuration", plan[0])
	}
}

func TestPlanner_RestartSupersedesCreateBucket(t *testing.T) {
	snap := snapshotOf(
		probe.Degraded(probe.SubsystemDatabase, "heizung-daten", "expected bucket missing").
			With("buckets", "other-bucket"),
		probe.Failing(probe.SubsystemContainer, "influxdb", "not running", nil),
	)

	plan := testPlanner().Plan(snap, AttemptSet{})
	for _, a := range plan {
		if a.Kind == KindCreateBucket {
			t.Errorf("plan contains create_bucket despite pending container restart: %+v", plan)
		}
	}
	if len(plan) != 1 || plan[0].Kind != KindRestartContainer {
		t.Errorf("plan = %+v, want only restart_container", plan)
	}
}

func TestPlanner_ServiceInactiveProposesStart(t *testing.T) {
	snap := snapshotOf(
		probe.Failing(probe.SubsystemService, "heizung-monitor", "neither active nor enabled", nil).
			With("active", "inactive").
			With("enabled", "disabled"),
	)

	plan := testPlanner().Plan(snap, AttemptSet{})
	if len(plan) != 1 {
		t.Fatalf("len(plan) = %d, want 1", len(plan))
	}
	if plan[0].Kind != KindStartService || plan[0].Tier != TierCritical {
		t.Errorf("action = %+v, want start_service/critical", plan[0])
	}
}

func TestPlanner_ServiceActiveButPipelineSilent(t *testing.T) {
	snap := snapshotOf(
		probe.Healthy(probe.SubsystemService, "heizung-monitor", "active and enabled").
			With("active", "active"),
		probe.Degraded(probe.SubsystemDatabase, "heizung-daten", "no points written in the last 24h0m0s").
			With("no_data_window", "24h0m0s"),
	)

	plan := testPlanner().Plan(snap, AttemptSet{})
	if len(plan) != 1 {
		t.Fatalf("len(plan) = %d, want 1", len(plan))
	}
	if plan[0].Kind != KindManualIntervention || plan[0].Tier != TierDiagnostic {
		t.Errorf("action = %+v, want manual_intervention/diagnostic", plan[0])
	}
}

func TestPlanner_PersistentChecksumFailure(t *testing.T) {
	snap := snapshotOf(
		probe.Failing(probe.SubsystemSensor, "28-000005e2fdc3", "checksum failed", probe.ErrParse).
			With("validation", "invalid_checksum").
			With("attempts", "3"),
	)

	plan := testPlanner().Plan(snap, AttemptSet{})
	if len(plan) != 1 {
		t.Fatalf("len(plan) = %d, want 1", len(plan))
	}
	if plan[0].Kind != KindManualIntervention || plan[0].Tier != TierLastResort {
		t.Errorf("action = %+v, want manual_intervention/last_resort", plan[0])
	}
	if plan[0].Target != "28-000005e2fdc3" {
		t.Errorf("target = %q, want the sensor address", plan[0].Target)
	}
}

func TestPlanner_NonCriticalContainerDown(t *testing.T) {
	snap := snapshotOf(
		probe.Failing(probe.SubsystemContainer, "grafana", "not running", nil),
		probe.Healthy(probe.SubsystemContainer, "influxdb", "running"),
	)

	plan := testPlanner().Plan(snap, AttemptSet{})
	if len(plan) != 1 {
		t.Fatalf("len(plan) = %d, want 1", len(plan))
	}
	if plan[0].Kind != KindStartContainer || plan[0].Target != "grafana" {
		t.Errorf("action = %+v, want start_container/grafana", plan[0])
	}
}

func TestPlanner_Deterministic(t *testing.T) {
	snap := snapshotOf(
		probe.Failing(probe.SubsystemContainer, "grafana", "not running", nil),
		probe.Failing(probe.SubsystemContainer, "influxdb", "not running", nil),
		probe.Failing(probe.SubsystemService, "heizung-monitor", "neither active nor enabled", nil).
			With("active", "inactive"),
		probe.Failing(probe.SubsystemSensor, "28-000005e2fdc3", "checksum failed", probe.ErrParse).
			With("validation", "invalid_checksum"),
		onewire.BusEmptyResult(),
	)

	planner := testPlanner()
	first := planner.Plan(snap, AttemptSet{})
	for range 10 {
		next := planner.Plan(snap, AttemptSet{})
		if !reflect.DeepEqual(first, next) {
			t.Fatalf("plans differ across runs:\n%+v\n%+v", first, next)
		}
	}

	// Tier ascending, then target.
	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		if prev.Tier > cur.Tier || (prev.Tier == cur.Tier && prev.Target > cur.Target) {
			t.Errorf("plan order violated at %d: %+v before %+v", i, prev, cur)
		}
	}
}
