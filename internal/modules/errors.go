package modules

import "errors"

// Sentinel errors returned by the module-management core. Handlers map
// them to response codes with errors.Is; control-channel failures are
// never part of this taxonomy because they degrade to status fields.
var (
	ErrModuleNotFound     = errors.New("module not found")
	ErrRouteNotFound      = errors.New("route not found")
	ErrPolicyNotFound     = errors.New("scaling policy not found")
	ErrDeploymentNotFound = errors.New("deployment not found")

	ErrDuplicateName   = errors.New("module name already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoPreviousDeployment rejects a rollback with nothing to roll
	// back to; input mistake, not corruption.
	ErrNoPreviousDeployment = errors.New("no previous deployment to rollback to")

	// ErrPreviousDeploymentMissing means the rollback chain points at a
	// record that vanished out of band; surfaced distinctly so operators
	// can detect the inconsistency.
	ErrPreviousDeploymentMissing = errors.New("previous deployment not found")

	// ErrConflict means a concurrent writer changed the deployment
	// between read and guarded write; the caller should retry.
	ErrConflict = errors.New("deployment was modified concurrently")
)
