package scanners

import (
	"errors"

	"github.com/yorozuya-cybersecurity/bome/internal/schema"
)

var ErrInvalidReport = errors.New("invalid scanner report")

// Provider turns a scanner-specific report on disk into a BOM fragment.
// The fragment's Version is ignored by the merge engine.
type Provider interface {
	Name() string
	Fragment(path string) (schema.BOM, error)
}
