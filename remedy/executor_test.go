package remedy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heizmon/heizdiag/dockerx"
	"github.com/heizmon/heizdiag/sysd"
)

type fakeContainers struct {
	started    []string
	restarted  []string
	restartErr error
}

func (f *fakeContainers) Running(ctx context.Context) ([]dockerx.Container, error) { return nil, nil }

func (f *fakeContainers) Start(ctx context.Context, name string) error {
	f.started = append(f.started, name)
	return nil
}

func (f *fakeContainers) Restart(ctx context.Context, name string) error {
	f.restarted = append(f.restarted, name)
	return f.restartErr
}

type fakeServices struct {
	started []string
}

func (f *fakeServices) State(ctx context.Context, name string) (sysd.ServiceState, error) {
	return sysd.ServiceState{}, nil
}

func (f *fakeServices) RecentLogs(ctx context.Context, name string, window time.Duration) ([]string, error) {
	return nil, nil
}

func (f *fakeServices) Start(ctx context.Context, name string) error {
	f.started = append(f.started, name)
	return nil
}

type fakeBuckets struct {
	created []string
}

func (f *fakeBuckets) CreateBucket(ctx context.Context, name string) error {
	f.created = append(f.created, name)
	return nil
}

type fakeReloader struct {
	reloads int
}

func (f *fakeReloader) Reload(ctx context.Context) error {
	f.reloads++
	return nil
}

func TestExecutor_RunsPlanInOrder(t *testing.T) {
	containers := &fakeContainers{}
	services := &fakeServices{}
	buckets := &fakeBuckets{}
	reloader := &fakeReloader{}

	exec := NewExecutor(containers, services, buckets, reloader, nil)
	plan := []Action{
		{Kind: KindRestartContainer, Target: "influxdb", Tier: TierCritical},
		{Kind: KindStartService, Target: "heizung-monitor", Tier: TierCritical},
		{Kind: KindRunModuleReload, Target: "w1-bus", Tier: TierCritical},
		{Kind: KindCreateBucket, Target: "heizung-daten", Tier: TierConfiguration},
	}

	outcomes := exec.Execute(context.Background(), plan)
	if len(outcomes) != 4 {
		t.Fatalf("len(outcomes) = %d, want 4", len(outcomes))
	}
	for _, o := range outcomes {
		if !o.Executed || o.Err != nil {
			t.Errorf("outcome %+v, want executed without error", o)
		}
	}

	if len(containers.restarted) != 1 || containers.restarted[0] != "influxdb" {
		t.Errorf("restarted = %v, want [influxdb]", containers.restarted)
	}
	if len(services.started) != 1 || services.started[0] != "heizung-monitor" {
		t.Errorf("services started = %v, want [heizung-monitor]", services.started)
	}
	if reloader.reloads != 1 {
		t.Errorf("reloads = %d, want 1", reloader.reloads)
	}
	if len(buckets.created) != 1 || buckets.created[0] != "heizung-daten" {
		t.Errorf("buckets created = %v, want [heizung-daten]", buckets.created)
	}
}

func TestExecutor_FailureDoesNotAbortPlan(t *testing.T) {
	containers := &fakeContainers{restartErr: errors.New("daemon busy")}
	buckets := &fakeBuckets{}

	exec := NewExecutor(containers, nil, buckets, nil, nil)
	plan := []Action{
		{Kind: KindRestartContainer, Target: "influxdb", Tier: TierCritical},
		{Kind: KindCreateBucket, Target: "heizung-daten", Tier: TierConfiguration},
	}

	outcomes := exec.Execute(context.Background(), plan)
	if outcomes[0].Err == nil {
		t.Error("restart outcome should carry the failure")
	}
	if outcomes[1].Err != nil {
		t.Errorf("create bucket outcome error = %v, want nil", outcomes[1].Err)
	}
	if len(buckets.created) != 1 {
		t.Error("configuration-tier action must still run after a critical-tier failure")
	}
}

func TestExecutor_ManualInterventionNotExecuted(t *testing.T) {
	reloader := &fakeReloader{}
	exec := NewExecutor(nil, nil, nil, reloader, nil)

	outcomes := exec.Execute(context.Background(), []Action{
		{Kind: KindManualIntervention, Target: "28-000005e2fdc3", Tier: TierLastResort},
	})

	if outcomes[0].Executed {
		t.Error("manual intervention must not be marked executed")
	}
	if outcomes[0].Err != nil {
		t.Errorf("outcome error = %v, want nil", outcomes[0].Err)
	}
}

func TestExecutor_MissingInterfaceFailsAction(t *testing.T) {
	exec := NewExecutor(nil, nil, nil, nil, nil)

	outcomes := exec.Execute(context.Background(), []Action{
		{Kind: KindStartService, Target: "heizung-monitor", Tier: TierCritical},
	})

	if !errors.Is(outcomes[0].Err, ErrNoSupervisor) {
		t.Errorf("error = %v, want ErrNoSupervisor", outcomes[0].Err)
	}
}
