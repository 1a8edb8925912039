// Package counter holds the storage boundary of the visitor counter.
//
// Every Counter relies on its storage engine for atomicity: Up issues exactly
// one atomic "add 1 and return the new value" operation and keeps no
// in-process state that would need coordination.
package counter

import (
	"context"
)

const (
	DefaultKey     = "visitors"
	DefaultField   = "visitors"
	DefaultTable   = "VisitorCount"
	DefaultKeyAttr = "id"
	DefaultKind    = "Counter"
)

type Counter interface {
	// Up atomically adds 1 to the counter and returns the post-update value.
	Up(ctx context.Context) (Count, error)
	// Get returns the current value without mutating it.
	Get(ctx context.Context) (Count, error)
}

type options struct {
	key             string
	field           string
	table           string
	keyAttr         string
	kind            string
	namespace       string
	requireExisting bool
}

func newOptions(opts []Option) options {
	o := options{
		key:     DefaultKey,
		field:   DefaultField,
		table:   DefaultTable,
		keyAttr: DefaultKeyAttr,
		kind:    DefaultKind,
	}
	for _, e := range opts {
		e(&o)
	}
	return o
}

// Option configures a Counter. Backends ignore options that have no meaning
// for them.
type Option func(o *options)

func WithKey(key string) Option {
	return Option(func(o *options) {
		o.key = key
	})
}

// WithField names the numeric attribute (DynamoDB) or property (Datastore).
func WithField(field string) Option {
	return Option(func(o *options) {
		o.field = field
	})
}

func WithTable(table string) Option {
	return Option(func(o *options) {
		o.table = table
	})
}

func WithKeyAttr(attr string) Option {
	return Option(func(o *options) {
		o.keyAttr = attr
	})
}

func WithKind(kind string) Option {
	return Option(func(o *options) {
		o.kind = kind
	})
}

func WithNamespace(ns string) Option {
	return Option(func(o *options) {
		o.namespace = ns
	})
}

// WithRequireExisting makes Up fail with ErrNotFound instead of creating the
// record when it is absent.
func WithRequireExisting(b bool) Option {
	return Option(func(o *options) {
		o.requireExisting = b
	})
}
