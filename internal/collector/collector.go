// Package collector holds the producer boundary: normalizers that turn raw
// browser console events and terminal command results into error records and
// hand them to the coordinator.
package collector

import (
	"context"
	"fmt"
	"sync"

	"github.com/errwatch/errwatch/internal/types"
)

// RegisterFunc delivers a normalized record to the coordinator and returns
// the stored (or existing) record ID.
type RegisterFunc func(*types.ErrorRecord) (string, error)

// Collector is one error producer managed by the coordinator.
type Collector interface {
	// Name identifies the collector in registration and health reporting.
	Name() string
	// Start begins accepting events.
	Start(ctx context.Context) error
	// Stop rejects further events.
	Stop() error
	// Active reports whether the collector is accepting events.
	Active() bool
	// Healthy reports whether the collector can currently process events.
	Healthy(ctx context.Context) bool
}

// Statistics counts a collector's intake activity.
type Statistics struct {
	Collected int `json:"collected"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// base carries the lifecycle state shared by the concrete collectors.
type base struct {
	name     string
	register RegisterFunc

	mu     sync.Mutex
	active bool
	stats  Statistics
}

func (b *base) Name() string { return b.name }

func (b *base) Start(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active {
		return fmt.Errorf("collector %s is already active", b.name)
	}
	b.active = true
	return nil
}

func (b *base) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = false
	return nil
}

func (b *base) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *base) Healthy(context.Context) bool {
	return b.register != nil
}

// Statistics returns a snapshot of the collector's counters.
func (b *base) Statistics() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// deliver registers a record, maintaining the counters. Events arriving
// while the collector is stopped are rejected.
func (b *base) deliver(rec *types.ErrorRecord) (string, error) {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return "", fmt.Errorf("collector %s is not active", b.name)
	}
	b.mu.Unlock()

	id, err := b.register(rec)

	b.mu.Lock()
	if err != nil {
		b.stats.Failed++
	} else {
		b.stats.Collected++
	}
	b.mu.Unlock()
	return id, err
}

func (b *base) skip() {
	b.mu.Lock()
	b.stats.Skipped++
	b.mu.Unlock()
}
