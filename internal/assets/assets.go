// Package assets holds files embedded into the binary.
package assets

import _ "embed"

// SampleConfig is the annotated default configuration written by `config init`.
//
//go:embed perf_modeler.yaml
var SampleConfig []byte
