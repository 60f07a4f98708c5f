// Package pathsassets provides the embedded table of gather steps that
// older Equinix workflows wrote their machine metadata under.
package pathsassets

import _ "embed"

// EquinixLegacyPaths maps a cloud cluster profile to the ordered gather
// steps to search for equinix-metadata.json.
//
//go:embed equinix-legacy-paths.yaml
var EquinixLegacyPaths []byte
