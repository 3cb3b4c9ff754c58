package domain

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mohae/deepcopy"
)

// ChangeOp identifies the kind of mutation recorded in a Change.
type ChangeOp string

const (
	OpSet    ChangeOp = "set"
	OpDelete ChangeOp = "delete"
)

// Change describes a single mutation of a Context path.
type Change struct {
	Op   ChangeOp `json:"op"`
	Path string   `json:"path"`
	Old  any      `json:"old,omitempty"`
	New  any      `json:"new,omitempty"`
}

// ChangeSet is the ordered list of changes produced by one mutating call.
type ChangeSet []Change

// Paths returns the changed paths in mutation order.
func (cs ChangeSet) Paths() []string {
	paths := make([]string, 0, len(cs))
	for _, c := range cs {
		paths = append(paths, c.Path)
	}
	return paths
}

// WatchFunc receives the change set of a completed mutation.
type WatchFunc func(ChangeSet)

type watcher struct {
	id int
	fn WatchFunc
}

// Context is the observable record shared by every state of one automaton.
//
// Paths are dot separated ("user.name"); intermediate maps are created on Set.
// Watchers run synchronously on the mutating goroutine once the mutation is
// committed and the lock is released. Values handed to Set are stored as is and
// should be treated as immutable afterwards; use Snapshot for a detached copy.
type Context struct {
	mu       sync.RWMutex
	data     map[string]any
	watchers []watcher
	nextID   int
}

// NewContext creates a context seeded with a deep copy of initial.
func NewContext(initial map[string]any) *Context {
	c := &Context{data: make(map[string]any)}
	for k, v := range initial {
		c.data[k] = deepcopy.Copy(v)
	}
	return c
}

// Get returns the value stored at path.
func (c *Context) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lookup(c.data, path)
}

// Set stores value at path and notifies watchers.
func (c *Context) Set(path string, value any) error {
	c.mu.Lock()
	change, err := set(c.data, path, value)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify(ChangeSet{change})
	return nil
}

// Delete removes path. Deleting a missing path is a no-op and emits nothing.
func (c *Context) Delete(path string) {
	c.mu.Lock()
	change, ok := remove(c.data, path)
	c.mu.Unlock()
	if ok {
		c.notify(ChangeSet{change})
	}
}

// Apply runs fn as a transaction. Changes staged on tx are committed together and
// reported as one change set. If fn returns an error nothing is committed.
//
// fn must only use tx: calling other Context methods from fn deadlocks.
func (c *Context) Apply(fn func(tx *Tx) error) error {
	c.mu.Lock()
	tx := &Tx{data: deepcopy.Copy(c.data).(map[string]any)}
	if err := fn(tx); err != nil {
		c.mu.Unlock()
		return err
	}
	if len(tx.changes) == 0 {
		c.mu.Unlock()
		return nil
	}
	// Swap contents, not the map identity held by the Context.
	for k := range c.data {
		delete(c.data, k)
	}
	for k, v := range tx.data {
		c.data[k] = v
	}
	changes := tx.changes
	c.mu.Unlock()

	c.notify(changes)
	return nil
}

// Snapshot returns a deep copy of the whole context.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return deepcopy.Copy(c.data).(map[string]any)
}

// Len returns the number of top-level keys.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Watch registers fn for every committed change set. The returned function
// unregisters it.
func (c *Context) Watch(fn WatchFunc) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.watchers = append(c.watchers, watcher{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, w := range c.watchers {
			if w.id == id {
				c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
				return
			}
		}
	}
}

func (c *Context) notify(changes ChangeSet) {
	c.mu.RLock()
	watchers := make([]watcher, len(c.watchers))
	copy(watchers, c.watchers)
	c.mu.RUnlock()

	for _, w := range watchers {
		w.fn(changes)
	}
}

// MarshalJSON encodes a snapshot of the context.
func (c *Context) MarshalJSON() ([]byte, error) {
	return marshalMap(c.Snapshot())
}

// Tx stages changes inside Context.Apply.
type Tx struct {
	data    map[string]any
	changes ChangeSet
}

// Get reads from the staged view, including earlier changes of the same transaction.
func (tx *Tx) Get(path string) (any, bool) {
	return lookup(tx.data, path)
}

// Set stages a value at path.
func (tx *Tx) Set(path string, value any) error {
	change, err := set(tx.data, path, value)
	if err != nil {
		return err
	}
	tx.changes = append(tx.changes, change)
	return nil
}

// Delete stages the removal of path.
func (tx *Tx) Delete(path string) {
	if change, ok := remove(tx.data, path); ok {
		tx.changes = append(tx.changes, change)
	}
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

func lookup(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := splitPath(path)
	current := data
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

func set(data map[string]any, path string, value any) (Change, error) {
	if path == "" {
		return Change{}, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	parts := splitPath(path)
	current := data
	for _, part := range parts[:len(parts)-1] {
		v, ok := current[part]
		if !ok {
			next := make(map[string]any)
			current[part] = next
			current = next
			continue
		}
		next, ok := v.(map[string]any)
		if !ok {
			return Change{}, fmt.Errorf("%w: '%s' crosses a %T at '%s'", ErrInvalidPath, path, v, part)
		}
		current = next
	}

	leaf := parts[len(parts)-1]
	old := current[leaf]
	current[leaf] = value
	return Change{Op: OpSet, Path: path, Old: old, New: value}, nil
}

func remove(data map[string]any, path string) (Change, bool) {
	if path == "" {
		return Change{}, false
	}
	parts := splitPath(path)
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return Change{}, false
		}
		current = next
	}

	leaf := parts[len(parts)-1]
	old, ok := current[leaf]
	if !ok {
		return Change{}, false
	}
	delete(current, leaf)
	return Change{Op: OpDelete, Path: path, Old: old}, true
}
