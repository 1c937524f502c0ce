package diagnose

import (
	"sort"
	"time"

	"github.com/heizmon/heizdiag/probe"
)

// Key addresses one probed instance inside a snapshot.
type Key struct {
	Subsystem  probe.Subsystem
	Identifier string
}

// Snapshot is the complete set of probe results for one diagnostic run.
// It is assembled once, after every probe has returned or timed out, and
// is not mutated afterwards.
type Snapshot struct {
	Results     map[Key]probe.Result
	GeneratedAt time.Time

	// CriticalContainer names the container hosting the database. Its
	// failure, like the database's own, fails the whole pipeline.
	CriticalContainer string
}

// Overall derives the snapshot's aggregate status. The database and its
// hosting container are critical to data flow: either failing fails the
// run. Anything else degraded, failing, or unknown degrades it.
func (s *Snapshot) Overall() probe.Status {
	degraded := false
	for key, res := range s.Results {
		switch res.Status {
		case probe.StatusFailing:
			if key.Subsystem == probe.SubsystemDatabase {
				return probe.StatusFailing
			}
			if key.Subsystem == probe.SubsystemContainer && key.Identifier == s.CriticalContainer {
				return probe.StatusFailing
			}
			degraded = true
		case probe.StatusDegraded, probe.StatusUnknown:
			degraded = true
		}
	}
	if degraded {
		return probe.StatusDegraded
	}
	return probe.StatusHealthy
}

// Sorted returns the results in subsystem-then-identifier order for
// deterministic reports.
func (s *Snapshot) Sorted() []probe.Result {
	keys := make([]Key, 0, len(s.Results))
	for k := range s.Results {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Subsystem != keys[j].Subsystem {
			return keys[i].Subsystem < keys[j].Subsystem
		}
		return keys[i].Identifier < keys[j].Identifier
	})

	results := make([]probe.Result, 0, len(keys))
	for _, k := range keys {
		results = append(results, s.Results[k])
	}
	return results
}

// Get returns the result for a subsystem and identifier.
func (s *Snapshot) Get(sub probe.Subsystem, id string) (probe.Result, bool) {
	res, ok := s.Results[Key{Subsystem: sub, Identifier: id}]
	return res, ok
}
