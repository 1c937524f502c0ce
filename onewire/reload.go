package onewire

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// busModules are the kernel modules behind the w1 sysfs tree.
var busModules = []string{"w1-gpio", "w1-therm"}

// Reloader reloads the bus kernel modules. Split out as an interface so
// the executor can be tested without touching modprobe.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ModprobeReloader reloads the w1 modules via modprobe.
type ModprobeReloader struct{}

// Reload loads w1-gpio and w1-therm. Already-loaded modules are a no-op
// for modprobe, so Reload is safe to call when only one module is missing.
func (ModprobeReloader) Reload(ctx context.Context) error {
	var failed []string
	for _, mod := range busModules {
		cmd := exec.CommandContext(ctx, "modprobe", mod)
		if out, err := cmd.CombinedOutput(); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v (%s)", mod, err, strings.TrimSpace(string(out))))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("onewire: modprobe failed: %s", strings.Join(failed, "; "))
	}
	return nil
}
