package modules

import (
	core "github.com/proxygrid/proxygrid/internal/modules"
)

var registry *core.Registry

// Init wires the handler package to the module registry. Called once
// from route setup.
func Init(r *core.Registry) {
	registry = r
}
