// Package lock provides mutual exclusion scoped to string keys.
package lock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired within the wait bound.
var ErrTimeout = errors.New("lock wait timed out")

// Keyed hands out one exclusive lock per key. Entries are reference counted
// and removed once nobody holds or waits for them.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

type heldKey struct {
	k   *Keyed
	key string
}

func New() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	e := k.ref(key)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.unref(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.unref(key)
		})
	}, nil
}

// Acquire locks every key not already held through ctx, in sorted order,
// waiting at most timeout in total. The returned context records the keys
// so nested calls with the same context do not self-deadlock. Empty keys
// are ignored.
func (k *Keyed) Acquire(ctx context.Context, timeout time.Duration, keys ...string) (context.Context, func(), error) {
	pending := k.pending(ctx, keys)
	if len(pending) == 0 {
		return ctx, func() {}, nil
	}

	parent := ctx
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	unlocks := make([]func(), 0, len(pending))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, key := range pending {
		unlock, err := k.Lock(waitCtx, key)
		if err != nil {
			releaseAll()
			if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return parent, nil, ErrTimeout
			}
			return parent, nil, err
		}
		unlocks = append(unlocks, unlock)
		ctx = context.WithValue(ctx, heldKey{k: k, key: key}, true)
	}
	return ctx, releaseAll, nil
}

// Held reports whether key was acquired through ctx.
func (k *Keyed) Held(ctx context.Context, key string) bool {
	held, _ := ctx.Value(heldKey{k: k, key: key}).(bool)
	return held
}

// Len returns the number of keys currently locked or waited on.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *Keyed) pending(ctx context.Context, keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if k.Held(ctx, key) {
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func (k *Keyed) ref(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) unref(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}
