package onewire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultBusDir is where the w1 kernel driver exposes attached devices.
const DefaultBusDir = "/sys/bus/w1/devices"

// familyPrefix selects DS18B20 devices; other 1-Wire families are not
// temperature sensors in this installation.
const familyPrefix = "28-"

// Bus enumerates attached sensors and reads their raw payloads.
type Bus interface {
	// Addresses lists the attached DS18B20 addresses in sorted order.
	Addresses(ctx context.Context) ([]string, error)

	// ReadPayload performs exactly one raw read for the address.
	ReadPayload(ctx context.Context, address string) (string, error)
}

// DirBus reads the sysfs directory tree the w1 driver maintains.
type DirBus struct {
	dir string
}

// NewDirBus creates a bus over the given sysfs directory. An empty dir
// falls back to DefaultBusDir.
func NewDirBus(dir string) *DirBus {
	if dir == "" {
		dir = DefaultBusDir
	}
	return &DirBus{dir: dir}
}

// Addresses lists DS18B20 device directories under the bus namespace.
func (b *DirBus) Addresses(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("onewire: listing %s: %w", b.dir, err)
	}

	var addrs []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), familyPrefix) {
			addrs = append(addrs, e.Name())
		}
	}
	sort.Strings(addrs)
	return addrs, nil
}

// ReadPayload reads the w1_slave file for the address. The read blocks for
// the duration of one bus transaction; cancellation is checked before the
// read but the OS call itself is not interruptible.
func (b *DirBus) ReadPayload(ctx context.Context, address string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(b.dir, address, "w1_slave")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("onewire: reading %s: %w", path, err)
	}
	return string(data), nil
}
