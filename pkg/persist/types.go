package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyKey   = errors.New("persist: key is required")
	ErrNilBackend = errors.New("persist: backend is required")
)

// Backend loads and saves one encoded snapshot per key.
type Backend interface {
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	Save(ctx context.Context, key string, data []byte) error
}

// Ref identifies the snapshot of one store for one scope.
type Ref struct {
	Domain string
	Scope  string
	ID     string
}

// Identifier returns the storage key for r. The system scope takes no id;
// every other scope requires one.
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	if domain == "" {
		return "", fmt.Errorf("persist: domain is required")
	}
	scope := strings.TrimSpace(r.Scope)
	switch scope {
	case "", "system":
		return fmt.Sprintf("system/%s", domain), nil
	case "tenant", "org", "team", "user", "session":
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return "", fmt.Errorf("persist: id is required for scope %q", scope)
		}
		return fmt.Sprintf("%s/%s/%s", scope, id, domain), nil
	default:
		return "", fmt.Errorf("persist: unsupported scope %q", scope)
	}
}
