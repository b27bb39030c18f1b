package redux

import "reflect"

// Comparator decides whether two derived values count as the same emission.
type Comparator func(a, b any) bool

// DefaultComparator uses == for scalar values and reflect.DeepEqual for
// everything else, so structurally equal maps, slices and structs are
// treated as duplicates even when they are distinct allocations.
func DefaultComparator(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch ta.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.String:
		return a == b
	default:
		return reflect.DeepEqual(a, b)
	}
}

// IdentityComparator treats reference types as equal only when they share
// the same backing storage; comparable values fall back to ==.
func IdentityComparator(a, b any) (equal bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if !va.Type().Comparable() {
		return false
	}
	// Interface fields holding uncomparable values panic on ==.
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}
