// Package sbom projects an accumulated BOM into an SBOM document.
package sbom

import (
	"errors"
	"fmt"
	"strings"
)

// Format is a target SBOM format
type Format string

const (
	FormatCycloneDX Format = "cyclonedx"
	FormatSPDX      Format = "spdx"
)


var (
	ErrUnsupportedFormat  = errors.New("unsupported SBOM format")
	ErrSPDXNotImplemented = errors.New("SPDX output is not implemented yet")
)

// Formats lists the formats that can be produced
func Formats() []string {
	return []string{string(FormatCycloneDX)}
}

// ParseFormat validates a --type value. SPDX is recognised but rejected with
// ErrSPDXNotImplemented rather than aliased to CycloneDX.
func ParseFormat(text string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(text))); f {
	case FormatCycloneDX:
		return f, nil
	case FormatSPDX:
		return "", ErrSPDXNotImplemented
	default:
		return "", fmt.Errorf("%w %q - must be one of: %s", ErrUnsupportedFormat, text, strings.Join(Formats(), ", "))
	}
}
