// Package persist saves and restores store snapshots.
//
// A Backend only moves bytes for a single key. Persister[S] sits on top of a
// Backend: it encodes snapshots as JSON, decodes them through
// internal/hydrate (so callers can migrate old payloads with hooks) and
// merges a loaded snapshot over the reducer's initial state with
// layering.MergeLayers, so fields added since the snapshot was written keep
// their defaults.
//
// Data flow:
//
//	Backend.Load -> hydrate.Decoder -> layering.MergeLayers(stored, initial) -> Proxy.Configure
//	Proxy snapshots -> Persister.Attach -> json -> Backend.Save
//
// Keys:
//
//	Ref.Identifier() builds deterministic keys such as "system/cart" or
//	"user/42/cart".
package persist
