package remedy

import "errors"

var (
	// ErrNoRuntime indicates no container runtime was wired in.
	ErrNoRuntime = errors.New("remedy: no container runtime configured")

	// ErrNoSupervisor indicates no service supervisor was wired in.
	ErrNoSupervisor = errors.New("remedy: no service supervisor configured")

	// ErrNoDatabase indicates no database client was wired in.
	ErrNoDatabase = errors.New("remedy: no database client configured")

	// ErrNoReloader indicates no module reloader was wired in.
	ErrNoReloader = errors.New("remedy: no module reloader configured")

	// ErrUnknownAction indicates an action kind the executor cannot handle.
	ErrUnknownAction = errors.New("remedy: unknown action kind")
)
