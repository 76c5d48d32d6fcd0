package vfs

import (
	"sync"
	"sync/atomic"
)

// Event is the common interface every filesystem event implements (spec
// §4.2). EventType is a stable discriminator for switch statements; callers
// that need the concrete fields type-switch on the underlying struct.
//
// Grounded on _examples/original_source/crates/diaryx_core/src/fs/events.rs's
// FileSystemEvent enum, split one variant per struct instead of a tagged
// union since Go has no sum types.
type Event interface {
	EventType() string
	PrimaryPath() string
}

// FileCreated is emitted after CreateNew succeeds.
type FileCreated struct {
	Path        string
	Frontmatter *string // raw YAML block, if the new file had one
	ParentPath  *string // resolved path of the index named in part_of
}

func (e FileCreated) EventType() string   { return "FileCreated" }
func (e FileCreated) PrimaryPath() string { return e.Path }

// FileDeleted is emitted after Delete succeeds.
type FileDeleted struct {
	Path       string
	ParentPath *string
}

func (e FileDeleted) EventType() string   { return "FileDeleted" }
func (e FileDeleted) PrimaryPath() string { return e.Path }

// FileRenamed is emitted by Move when the source and destination share a
// parent directory.
type FileRenamed struct {
	OldPath string
	NewPath string
}

func (e FileRenamed) EventType() string   { return "FileRenamed" }
func (e FileRenamed) PrimaryPath() string { return e.NewPath }

// FileMoved is emitted by Move when the destination's parent directory
// differs from the source's.
type FileMoved struct {
	Path      string
	OldParent *string
	NewParent *string
}

func (e FileMoved) EventType() string   { return "FileMoved" }
func (e FileMoved) PrimaryPath() string { return e.Path }

// MetadataChanged is emitted when WriteText changes the frontmatter block.
type MetadataChanged struct {
	Path        string
	Frontmatter string
}

func (e MetadataChanged) EventType() string   { return "MetadataChanged" }
func (e MetadataChanged) PrimaryPath() string { return e.Path }

// ContentsChanged is emitted when WriteText changes the body.
type ContentsChanged struct {
	Path string
	Body string
}

func (e ContentsChanged) EventType() string   { return "ContentsChanged" }
func (e ContentsChanged) PrimaryPath() string { return e.Path }

// SubscriptionID identifies one registered callback.
type SubscriptionID uint64

// EventCallback receives events synchronously; it must not block for long.
type EventCallback func(Event)

// CallbackRegistry is a thread-safe set of event subscribers.
//
// Grounded on
// _examples/original_source/crates/diaryx_core/src/fs/callback_registry.rs:
// an RWMutex-guarded map keyed by an incrementing id, with panic-isolated
// dispatch so one bad subscriber can't break the others.
type CallbackRegistry struct {
	mu        sync.RWMutex
	callbacks map[SubscriptionID]EventCallback
	nextID    atomic.Uint64
}

// NewCallbackRegistry returns an empty registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{callbacks: make(map[SubscriptionID]EventCallback)}
}

// Subscribe registers cb and returns an id usable with Unsubscribe.
func (r *CallbackRegistry) Subscribe(cb EventCallback) SubscriptionID {
	id := SubscriptionID(r.nextID.Add(1))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[id] = cb
	return id
}

// Unsubscribe removes a previously registered callback. It reports whether
// the id was found.
func (r *CallbackRegistry) Unsubscribe(id SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[id]; !ok {
		return false
	}
	delete(r.callbacks, id)
	return true
}

// Emit synchronously invokes every registered callback with event. A
// callback that panics is isolated and does not prevent the others from
// running.
func (r *CallbackRegistry) Emit(event Event) {
	r.mu.RLock()
	cbs := make([]EventCallback, 0, len(r.callbacks))
	for _, cb := range r.callbacks {
		cbs = append(cbs, cb)
	}
	r.mu.RUnlock()

	for _, cb := range cbs {
		dispatch(cb, event)
	}
}

func dispatch(cb EventCallback, event Event) {
	defer func() { _ = recover() }()
	cb(event)
}

// SubscriberCount reports how many callbacks are currently registered.
func (r *CallbackRegistry) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// HasSubscribers reports whether any callback is registered.
func (r *CallbackRegistry) HasSubscribers() bool {
	return r.SubscriberCount() > 0
}

// Clear removes every registered callback.
func (r *CallbackRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = make(map[SubscriptionID]EventCallback)
}
