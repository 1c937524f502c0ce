package influx

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/heizmon/heizdiag/probe"
)

// API is the query surface the database probe needs. *Client implements it;
// tests substitute fakes.
type API interface {
	HasToken() bool
	Health(ctx context.Context) (int, error)
	Buckets(ctx context.Context) ([]string, error)
	HasData(ctx context.Context, bucket, measurement string, window time.Duration) (bool, error)
}

// DatabaseProbe checks the time-series store in three gated stages:
// reachability, bucket existence, and per-category data presence. Each
// stage only runs if the previous one passed; querying buckets on an
// unreachable database proves nothing.
type DatabaseProbe struct {
	api          API
	bucket       string
	categories   []string
	recentWindow time.Duration
	longWindow   time.Duration
}

// NewDatabaseProbe creates a probe for the expected bucket and its data
// categories. Windows default to 1 h and 24 h.
func NewDatabaseProbe(a API, bucket string, categories []string) *DatabaseProbe {
	return &DatabaseProbe{
		api:          a,
		bucket:       bucket,
		categories:   categories,
		recentWindow: time.Hour,
		longWindow:   24 * time.Hour,
	}
}

// Name returns the name of this probe.
func (p *DatabaseProbe) Name() string {
	return "database"
}

// Subsystem returns the subsystem this probe covers.
func (p *DatabaseProbe) Subsystem() probe.Subsystem {
	return probe.SubsystemDatabase
}

// Run emits one bucket-level result and, when the bucket exists, one
// result per data category.
func (p *DatabaseProbe) Run(ctx context.Context) []probe.Result {
	status, err := p.api.Health(ctx)
	if err != nil {
		return []probe.Result{
			probe.Failing(probe.SubsystemDatabase, p.bucket, "database unreachable", probe.ErrTransport).
				With("error", err.Error()),
		}
	}
	if status != http.StatusOK {
		return []probe.Result{
			probe.Failing(probe.SubsystemDatabase, p.bucket, "health endpoint unhealthy", nil).
				With("http_status", strconv.Itoa(status)),
		}
	}

	if !p.api.HasToken() {
		// Reachable, but the admin stages need a credential. Surfaced once;
		// the aggregator carries on with the other probes.
		res := probe.Degraded(probe.SubsystemDatabase, p.bucket, "no API token configured, skipping bucket and data checks").
			With("http_status", strconv.Itoa(status)).
			With("configuration", "INFLUXDB_TOKEN missing")
		res.Err = probe.ErrConfiguration
		return []probe.Result{res}
	}

	buckets, err := p.api.Buckets(ctx)
	if err != nil {
		return []probe.Result{
			probe.Failing(probe.SubsystemDatabase, p.bucket, "bucket listing failed", probe.ErrTransport).
				With("http_status", strconv.Itoa(status)).
				With("error", err.Error()),
		}
	}
	if !contains(buckets, p.bucket) {
		// Recoverable by automated creation; record what actually exists.
		return []probe.Result{
			probe.Degraded(probe.SubsystemDatabase, p.bucket, "expected bucket missing").
				With("http_status", strconv.Itoa(status)).
				With("buckets", strings.Join(buckets, ",")),
		}
	}

	bucketRes := probe.Healthy(probe.SubsystemDatabase, p.bucket, "reachable, bucket present").
		With("http_status", strconv.Itoa(status))
	bucketRes = p.checkBucketActivity(ctx, bucketRes)

	results := []probe.Result{bucketRes}
	for _, category := range p.categories {
		results = append(results, p.checkCategory(ctx, category))
	}
	return results
}

// checkBucketActivity layers the stronger signals onto the bucket result:
// nothing written in the long window, and nothing ever written at all.
func (p *DatabaseProbe) checkBucketActivity(ctx context.Context, res probe.Result) probe.Result {
	recent, err := p.api.HasData(ctx, p.bucket, "", p.longWindow)
	if err != nil {
		return res.With("activity_error", err.Error())
	}
	if recent {
		return res
	}

	res = probe.Degraded(probe.SubsystemDatabase, p.bucket,
		fmt.Sprintf("no points written in the last %s", p.longWindow))
	res = res.With("no_data_window", p.longWindow.String())

	ever, err := p.api.HasData(ctx, p.bucket, "", 0)
	if err == nil && !ever {
		// Fresh install rather than an outage: informational, not failing.
		res = res.With("never_written", "true")
	}
	return res
}

func (p *DatabaseProbe) checkCategory(ctx context.Context, category string) probe.Result {
	has, err := p.api.HasData(ctx, p.bucket, category, p.recentWindow)
	if err != nil {
		return probe.Failing(probe.SubsystemDatabase, category, "existence query failed", probe.ErrTransport).
			With("error", err.Error())
	}
	if !has {
		// The pipeline may simply not have produced this category yet.
		return probe.Degraded(probe.SubsystemDatabase, category,
			fmt.Sprintf("no points in the last %s", p.recentWindow)).
			With("window", p.recentWindow.String())
	}
	return probe.Healthy(probe.SubsystemDatabase, category, "recent data present").
		With("window", p.recentWindow.String())
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
