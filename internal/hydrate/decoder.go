package hydrate

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Context identifies the snapshot being decoded.
type Context struct {
	StoreID string
	Key     string
}

// PreHook lets callers migrate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the decoded snapshot.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default JSON decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts persisted JSON snapshots into typed state.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	config    jsoniter.Config
	custom    CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber decodes numbers into interface values as json.Number.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.config.UseNumber = true
	}
}

// WithDisallowUnknownFields rejects payload keys without a matching field.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.config.DisallowUnknownFields = true
	}
}

// WithCustomDecoder replaces the default JSON decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{
		config: jsoniter.Config{
			EscapeHTML:             true,
			SortMapKeys:            true,
			ValidateJsonRawMessage: true,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// DecodeBytes parses raw JSON and decodes it with Decode. Payloads that are
// not JSON objects skip the hooks and decode directly into T.
func (d *Decoder[T]) DecodeBytes(ctx Context, raw []byte) (T, error) {
	var zero T
	api := d.config.Froze()

	var payload any
	if err := api.Unmarshal(raw, &payload); err != nil {
		return zero, fmt.Errorf("hydrate: parse snapshot %q: %w", ctx.Key, err)
	}
	if object, ok := payload.(map[string]any); ok {
		return d.Decode(ctx, object)
	}

	var result T
	if err := api.Unmarshal(raw, &result); err != nil {
		return zero, fmt.Errorf("hydrate: decode snapshot %q: %w", ctx.Key, err)
	}
	return d.runPostHooks(ctx, result)
}

// Decode converts payload into T applying configured hooks.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T

	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil for snapshot %q", ctx.Key)
	}
	api := d.config.Froze()

	current, err := clonePayload(api, payload)
	if err != nil {
		return zero, fmt.Errorf("hydrate: clone payload for snapshot %q: %w", ctx.Key, err)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for snapshot %q failed: %w", ctx.Key, err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		result, err = d.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for snapshot %q failed: %w", ctx.Key, err)
		}
	} else {
		buffer, err := api.Marshal(current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: marshal payload for snapshot %q: %w", ctx.Key, err)
		}
		if err := api.Unmarshal(buffer, &result); err != nil {
			return zero, fmt.Errorf("hydrate: decode snapshot %q: %w", ctx.Key, err)
		}
	}

	return d.runPostHooks(ctx, result)
}

func (d *Decoder[T]) runPostHooks(ctx Context, result T) (T, error) {
	var zero T
	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for snapshot %q failed: %w", ctx.Key, err)
		}
	}
	return result, nil
}

func clonePayload(api jsoniter.API, payload map[string]any) (map[string]any, error) {
	buffer, err := api.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := api.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}
