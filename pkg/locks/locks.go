// Package locks implements the exclusive locks that serialize settlement
// computation per (store, carrier, date) grouping. The in-process manager
// covers single-instance deployments; the redis manager covers several API
// instances sharing one database.
package locks

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
)

// Manager hands out short-lived exclusive locks keyed by an arbitrary string.
// Acquire blocks until the lock is held or the configured timeout elapses;
// the returned release function must be called exactly once.
type Manager interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// ReconcileKey builds the lock key for a reconciliation run. Session-grouped
// runs derive it from their session's store, carrier and dispatch date, so
// both groupings over the same orders contend on the same key.
func ReconcileKey(storeID, carrierID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("reconcile:%s:%s:%s", storeID, carrierID, date.Format("2006-01-02"))
}

type slot struct {
	sem  chan struct{}
	refs int
}

// InProcManager keys a mutex map by an FNV-64 hash of the lock key.
type InProcManager struct {
	acquireTimeout time.Duration

	mu    sync.Mutex
	slots map[uint64]*slot
}

// NewInProcManager builds a process-local lock manager.
func NewInProcManager(acquireTimeout time.Duration) *InProcManager {
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}
	return &InProcManager{
		acquireTimeout: acquireTimeout,
		slots:          make(map[uint64]*slot),
	}
}

func hashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

func (m *InProcManager) Acquire(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lock key required")
	}

	hashed := hashKey(key)

	m.mu.Lock()
	s, ok := m.slots[hashed]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		m.slots[hashed] = s
	}
	s.refs++
	m.mu.Unlock()

	timer := time.NewTimer(m.acquireTimeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.sem
				m.drop(hashed, s)
			})
		}, nil
	case <-timer.C:
		m.drop(hashed, s)
		return nil, pkgerrors.New(pkgerrors.CodeLockTimeout, "timed out waiting for lock").
			WithDetails(map[string]any{"key": key})
	case <-ctx.Done():
		m.drop(hashed, s)
		return nil, pkgerrors.Wrap(pkgerrors.CodeLockTimeout, ctx.Err(), "lock wait cancelled").
			WithDetails(map[string]any{"key": key})
	}
}

func (m *InProcManager) drop(hashed uint64, s *slot) {
	m.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, hashed)
	}
	m.mu.Unlock()
}
