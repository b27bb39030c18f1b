package redux

import (
	"strings"
	"sync"
)

// Selectable is the part of Proxy a Binder needs.
type Selectable interface {
	Select(sel Selector, cmp Comparator) *Stream[any]
}

// Accessor returns the stream for a bound field.
type Accessor func() (*Stream[any], error)

// Binder hands out field accessors before the backing proxy exists. Each
// accessor call selects from the source given to Initialize.
type Binder struct {
	mu     sync.RWMutex
	source Selectable
}

func NewBinder() *Binder {
	return &Binder{}
}

// Initialize sets the source. It may be called once.
func (b *Binder) Initialize(source Selectable) error {
	if source == nil {
		return ErrNilStore
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.source != nil {
		return ErrAlreadyInitialized
	}
	b.source = source
	return nil
}

// Bind returns an accessor for field. A nil sel selects the key derived
// from field with FieldKey.
func (b *Binder) Bind(field string, sel Selector, cmp Comparator) Accessor {
	if sel == nil {
		sel = Key(FieldKey(field))
	}
	return func() (*Stream[any], error) {
		b.mu.RLock()
		source := b.source
		b.mu.RUnlock()
		if source == nil {
			return nil, ErrNotInitialized
		}
		return source.Select(sel, cmp), nil
	}
}

// FieldKey strips the stream suffix "$" from a field name: "count$" → "count".
func FieldKey(field string) string {
	return strings.TrimSuffix(field, "$")
}
