package influx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heizmon/heizdiag/probe"
)

type fakeAPI struct {
	token     bool
	health    int
	healthErr error
	buckets   []string
	bucketErr error

	// data maps "measurement@window" to presence; see key().
	data    map[string]bool
	dataErr error
}

func key(measurement string, window time.Duration) string {
	return measurement + "@" + window.String()
}

func (f *fakeAPI) HasToken() bool { return f.token }

func (f *fakeAPI) Health(ctx context.Context) (int, error) {
	return f.health, f.healthErr
}

func (f *fakeAPI) Buckets(ctx context.Context) ([]string, error) {
	return f.buckets, f.bucketErr
}

func (f *fakeAPI) HasData(ctx context.Context, bucket, measurement string, window time.Duration) (bool, error) {
	if f.dataErr != nil {
		return false, f.dataErr
	}
	return f.data[key(measurement, window)], nil
}

var categories = []string{"heating_temperature", "room_climate"}

func TestDatabaseProbe_Unreachable(t *testing.T) {
	api := &fakeAPI{healthErr: errors.New("connection refused")}
	results := NewDatabaseProbe(api, "heizung-daten", categories).Run(context.Background())

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (later stages gated)", len(results))
	}
	if results[0].Status != probe.StatusFailing {
		t.Errorf("status = %v, want StatusFailing", results[0].Status)
	}
}

func TestDatabaseProbe_HealthNon200(t *testing.T) {
	api := &fakeAPI{health: 503}
	results := NewDatabaseProbe(api, "heizung-daten", categories).Run(context.Background())

	if len(results) != 1 || results[0].Status != probe.StatusFailing {
		t.Fatalf("results = %+v, want single failing result", results)
	}
	if v, _ := results[0].Lookup("http_status"); v != "503" {
		t.Errorf("http_status evidence = %q, want 503", v)
	}
}

func TestDatabaseProbe_MissingToken(t *testing.T) {
	api := &fakeAPI{health: 200, token: false}
	results := NewDatabaseProbe(api, "heizung-daten", categories).Run(context.Background())

	if len(results) != 1 || results[0].Status != probe.StatusDegraded {
		t.Fatalf("results = %+v, want single degraded result", results)
	}
	if _, ok := results[0].Lookup("configuration"); !ok {
		t.Error("missing configuration evidence")
	}
	if !errors.Is(results[0].Err, probe.ErrConfiguration) {
		t.Errorf("Err = %v, want ErrConfiguration", results[0].Err)
	}
}

func TestDatabaseProbe_BucketMissing(t *testing.T) {
	api := &fakeAPI{health: 200, token: true, buckets: []string{"other-bucket"}}
	results := NewDatabaseProbe(api, "heizung-daten", categories).Run(context.Background())

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (category checks gated)", len(results))
	}
	res := results[0]
	if res.Status != probe.StatusDegraded {
		t.Errorf("status = %v, want StatusDegraded (recoverable by creation)", res.Status)
	}
	if v, _ := res.Lookup("buckets"); v != "other-bucket" {
		t.Errorf("buckets evidence = %q, want other-bucket", v)
	}
}

func TestDatabaseProbe_AllHealthy(t *testing.T) {
	api := &fakeAPI{
		health: 200, token: true,
		buckets: []string{"heizung-daten"},
		data: map[string]bool{
			key("", 24*time.Hour):                 true,
			key("heating_temperature", time.Hour): true,
			key("room_climate", time.Hour):        true,
		},
	}
	results := NewDatabaseProbe(api, "heizung-daten", categories).Run(context.Background())

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want bucket + 2 categories", len(results))
	}
	for _, res := range results {
		if res.Status != probe.StatusHealthy {
			t.Errorf("%s status = %v, want StatusHealthy", res.Identifier, res.Status)
		}
	}
}

func TestDatabaseProbe_OneCategoryQuiet(t *testing.T) {
	api := &fakeAPI{
		health: 200, token: true,
		buckets: []string{"heizung-daten"},
		data: map[string]bool{
			key("", 24*time.Hour):                 true,
			key("heating_temperature", time.Hour): true,
		},
	}
	results := NewDatabaseProbe(api, "heizung-daten", categories).Run(context.Background())

	var climate probe.Result
	for _, res := range results {
		if res.Identifier == "room_climate" {
			climate = res
		}
	}
	if climate.Status != probe.StatusDegraded {
		t.Errorf("room_climate status = %v, want StatusDegraded not Failing", climate.Status)
	}
}

func TestDatabaseProbe_NothingIn24h(t *testing.T) {
	api := &fakeAPI{
		health: 200, token: true,
		buckets: []string{"heizung-daten"},
		data:    map[string]bool{key("", 0): true},
	}
	results := NewDatabaseProbe(api, "heizung-daten", categories).Run(context.Background())

	bucket := results[0]
	if bucket.Status != probe.StatusDegraded {
		t.Errorf("bucket status = %v, want StatusDegraded", bucket.Status)
	}
	if _, ok := bucket.Lookup("no_data_window"); !ok {
		t.Error("missing no_data_window evidence for the 24h signal")
	}
	if _, ok := bucket.Lookup("never_written"); ok {
		t.Error("never_written should be absent when historical data exists")
	}
}

func TestDatabaseProbe_NeverWritten(t *testing.T) {
	api := &fakeAPI{
		health: 200, token: true,
		buckets: []string{"heizung-daten"},
		data:    map[string]bool{},
	}
	results := NewDatabaseProbe(api, "heizung-daten", categories).Run(context.Background())

	bucket := results[0]
	if bucket.Status != probe.StatusDegraded {
		t.Errorf("bucket status = %v, want StatusDegraded (fresh install, not outage)", bucket.Status)
	}
	if v, _ := bucket.Lookup("never_written"); v != "true" {
		t.Errorf("never_written evidence = %q, want true", v)
	}
}
