package remedy

// ActionKind identifies what a remediation action does.
type ActionKind int

const (
	// KindStartContainer starts a stopped container.
	KindStartContainer ActionKind = iota
	// KindRestartContainer restarts a container whose workload is
	// unreachable.
	KindRestartContainer
	// KindStartService starts an inactive supervisor-managed service.
	KindStartService
	// KindCreateBucket creates the expected database bucket.
	KindCreateBucket
	// KindRunModuleReload reloads the bus kernel modules.
	KindRunModuleReload
	// KindManualIntervention asks a human to look; never executed
	// automatically.
	KindManualIntervention
)

// String returns the string representation of the action kind.
func (k ActionKind) String() string {
	switch k {
	case KindStartContainer:
		return "start_container"
	case KindRestartContainer:
		return "restart_container"
	case KindStartService:
		return "start_service"
	case KindCreateBucket:
		return "create_bucket"
	case KindRunModuleReload:
		return "run_module_reload"
	default:
		return "manual_intervention"
	}
}

// Tier orders actions by urgency. The ordering is total:
// Critical < Configuration < Diagnostic < LastResort.
type Tier int

const (
	// TierCritical actions restore data flow.
	TierCritical Tier = iota
	// TierConfiguration actions fix recoverable configuration drift.
	TierConfiguration
	// TierDiagnostic actions need human analysis before any fix.
	TierDiagnostic
	// TierLastResort actions are taken only when automation is out of
	// options.
	TierLastResort
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierConfiguration:
		return "configuration"
	case TierDiagnostic:
		return "diagnostic"
	default:
		return "last_resort"
	}
}

// Action is one planned remediation step.
type Action struct {
	// Kind is what to do.
	Kind ActionKind

	// Target is the subsystem instance to act on: a container name,
	// service name, bucket name, or bus identifier.
	Target string

	// Tier is the action's urgency.
	Tier Tier

	// Rationale references the probe result(s) that triggered the action.
	Rationale string
}

// Key identifies an action for deduplication and attempt tracking.
type Key struct {
	Kind   ActionKind
	Target string
}

// AttemptSet records which actions have already been tried, so the planner
// can stop proposing them. Keys cover both the current run and recent
// history restored by the caller.
type AttemptSet map[Key]struct{}

// Mark records an attempt.
func (s AttemptSet) Mark(kind ActionKind, target string) {
	s[Key{Kind: kind, Target: target}] = struct{}{}
}

// Has reports whether an attempt was recorded.
func (s AttemptSet) Has(kind ActionKind, target string) bool {
	_, ok := s[Key{Kind: kind, Target: target}]
	return ok
}
