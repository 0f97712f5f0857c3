// Package worker identifies the concurrent unit running a test and stores values scoped to it
package worker

import (
	"context"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

type idKey struct{}

// ErrNoWorker is returned when a context does not carry a worker ID
var ErrNoWorker = errors.New("Context has no worker ID. Wrap it with worker.WithID first")

// ID identifies a worker. Each worker runs one test at a time.
type ID string

// WithID returns a copy of ctx bound to worker 'id'
func WithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// FromContext returns the worker ID bound to ctx
func FromContext(ctx context.Context) (ID, error) {
	id, ok := ctx.Value(idKey{}).(ID)
	if !ok || id == "" {
		return "", ErrNoWorker
	}
	return id, nil
}

// Local holds at most one value per worker. Safe for concurrent use by multiple workers.
type Local struct {
	values *cache.Cache
}

// NewLocal creates an empty Local. Values never expire, they must be removed with Delete.
func NewLocal() *Local {
	return &Local{
		values: cache.New(cache.NoExpiration, 0),
	}
}

// Get returns the value stored for the worker on ctx
func (l *Local) Get(ctx context.Context) (value interface{}, found bool, err error) {
	id, err := FromContext(ctx)
	if err != nil {
		return nil, false, err
	}
	value, found = l.values.Get(string(id))
	return value, found, nil
}

// Set stores 'value' for the worker on ctx, replacing any previous value
func (l *Local) Set(ctx context.Context, value interface{}) error {
	id, err := FromContext(ctx)
	if err != nil {
		return err
	}
	l.values.Set(string(id), value, cache.NoExpiration)
	return nil
}

// Add stores 'value' only if the worker has no value yet. Returns the stored value either way.
func (l *Local) Add(ctx context.Context, value interface{}) (stored interface{}, err error) {
	id, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if addErr := l.values.Add(string(id), value, cache.NoExpiration); addErr == nil {
		return value, nil
	}
	stored, _ = l.values.Get(string(id))
	return stored, nil
}

// Delete removes the worker's value and returns it
func (l *Local) Delete(ctx context.Context) (value interface{}, found bool, err error) {
	id, err := FromContext(ctx)
	if err != nil {
		return nil, false, err
	}
	value, found = l.values.Get(string(id))
	l.values.Delete(string(id))
	return value, found, nil
}

// Len returns the number of workers with a stored value
func (l *Local) Len() int {
	return l.values.ItemCount()
}
