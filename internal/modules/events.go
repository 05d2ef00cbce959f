package modules

import "context"

// Events receives post-commit notifications about durable state
// changes. Implementations are best-effort: they log their own
// failures and never return an error, so a notification problem can
// never fail an operation whose write already committed.
type Events interface {
	ModuleChanged(ctx context.Context, moduleID string)
	RoutesChanged(ctx context.Context, moduleID string)
	DeploymentChanged(ctx context.Context, moduleID, deploymentID, event string)
}

// Deployment event names published through Events.
const (
	EventDeploymentCreated    = "deployment.created"
	EventDeploymentPromoted   = "deployment.promoted"
	EventDeploymentRolledBack = "deployment.rolled_back"
	EventDeploymentUpdated    = "deployment.updated"
)
