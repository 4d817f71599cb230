// Package version exposes the termweave release version, embedded from
// the adjacent VERSION file.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get returns the termweave release version.
func Get() string {
	return strings.TrimSpace(raw)
}
