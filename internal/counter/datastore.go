package counter

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/datastore"
)

var _ Counter = (*DatastoreCounter)(nil)

// DatastoreCounter keeps the value in one property of a named entity and
// updates it inside a transaction. Datastore has no add operation, so the
// transaction is what makes the increment atomic; the client retries the
// function on contention.
type DatastoreCounter struct {
	client          *datastore.Client
	key             *datastore.Key
	field           string
	requireExisting bool
}

func NewDatastoreCounter(client *datastore.Client, opts ...Option) *DatastoreCounter {
	o := newOptions(opts)
	key := datastore.NameKey(o.kind, o.key, nil)
	key.Namespace = o.namespace
	return &DatastoreCounter{
		client:          client,
		key:             key,
		field:           o.field,
		requireExisting: o.requireExisting,
	}
}

func (c *DatastoreCounter) Up(ctx context.Context) (Count, error) {
	var next Count
	// The function may run more than once; next is overwritten each time.
	_, err := c.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var props datastore.PropertyList
		err := tx.Get(c.key, &props)
		switch {
		case errors.Is(err, datastore.ErrNoSuchEntity):
			if c.requireExisting {
				return ErrNotFound
			}
			props = nil
		case err != nil:
			return err
		}

		cur, idx, err := c.valueOf(props)
		if err != nil {
			return err
		}

		var v any
		switch n := cur.(type) {
		case float64:
			v = n + 1
			next, err = CountOfFloat(n + 1)
			if err != nil {
				return err
			}
		case int64:
			v = n + 1
			next = CountOf(n + 1)
		}

		if idx < 0 {
			props = append(props, datastore.Property{Name: c.field, Value: v})
		} else {
			props[idx].Value = v
		}
		_, err = tx.Put(c.key, &props)
		return err
	})
	if err != nil {
		var se *SerializationError
		if errors.As(err, &se) {
			return Count{}, err
		}
		return Count{}, &StorageError{Op: "datastore.RunInTransaction", Key: c.key.Name, Err: err}
	}
	return next, nil
}

func (c *DatastoreCounter) Get(ctx context.Context) (Count, error) {
	var props datastore.PropertyList
	if err := c.client.Get(ctx, c.key, &props); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			err = ErrNotFound
		}
		return Count{}, &StorageError{Op: "datastore.Get", Key: c.key.Name, Err: err}
	}
	cur, idx, err := c.valueOf(props)
	if err != nil {
		return Count{}, &StorageError{Op: "datastore.Get", Key: c.key.Name, Err: err}
	}
	if idx < 0 {
		return Count{}, &StorageError{Op: "datastore.Get", Key: c.key.Name, Err: ErrMissingAttribute}
	}
	if f, ok := cur.(float64); ok {
		return CountOfFloat(f)
	}
	return CountOf(cur.(int64)), nil
}

// valueOf returns the counter property as int64 or float64 and its index in
// props, or int64(0) and -1 when the property is absent.
func (c *DatastoreCounter) valueOf(props datastore.PropertyList) (any, int, error) {
	for i, p := range props {
		if p.Name != c.field {
			continue
		}
		switch v := p.Value.(type) {
		case int64, float64:
			return v, i, nil
		default:
			return nil, i, fmt.Errorf("%w: %s is %T", ErrMissingAttribute, c.field, p.Value)
		}
	}
	return int64(0), -1, nil
}
