package main

import _ "embed"

// embeddedConfig is the lowest configuration layer above the compiled-in
// defaults. Packagers may replace defaults.yaml before building.
//
//go:embed defaults.yaml
var embeddedConfig []byte
