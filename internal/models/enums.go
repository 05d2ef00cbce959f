package models

// ModuleType enum
type ModuleType string

const (
	ModuleTypeL7HTTP        ModuleType = "l7_http"
	ModuleTypeL4TCP         ModuleType = "l4_tcp"
	ModuleTypeL4UDP         ModuleType = "l4_udp"
	ModuleTypeL3Network     ModuleType = "l3_network"
	ModuleTypeObservability ModuleType = "observability"
	ModuleTypeZeroTrust     ModuleType = "zero_trust"
	ModuleTypeMultiCloud    ModuleType = "multi_cloud"
)

// ModuleStatus enum
type ModuleStatus string

const (
	ModuleStatusDisabled ModuleStatus = "disabled"
	ModuleStatusEnabled  ModuleStatus = "enabled"
	ModuleStatusError    ModuleStatus = "error"
	ModuleStatusStarting ModuleStatus = "starting"
	ModuleStatusStopping ModuleStatus = "stopping"
)

// DeploymentStatus enum
type DeploymentStatus string

const (
	DeploymentStatusPending    DeploymentStatus = "pending"
	DeploymentStatusActive     DeploymentStatus = "active"
	DeploymentStatusInactive   DeploymentStatus = "inactive"
	DeploymentStatusRollingOut DeploymentStatus = "rolling_out"
	DeploymentStatusRolledBack DeploymentStatus = "rolled_back"
	DeploymentStatusFailed     DeploymentStatus = "failed"
)

// ScalingMetric enum
type ScalingMetric string

const (
	ScalingMetricCPU    ScalingMetric = "cpu"
	ScalingMetricMemory ScalingMetric = "memory"
	ScalingMetricRPS    ScalingMetric = "requests_per_second"
)

// IsValid reports whether the metric is one of the supported values.
func (m ScalingMetric) IsValid() bool {
	switch m {
	case ScalingMetricCPU, ScalingMetricMemory, ScalingMetricRPS:
		return true
	}
	return false
}

// IsValid reports whether the module type is one of the supported values.
func (t ModuleType) IsValid() bool {
	switch t {
	case ModuleTypeL7HTTP, ModuleTypeL4TCP, ModuleTypeL4UDP, ModuleTypeL3Network,
		ModuleTypeObservability, ModuleTypeZeroTrust, ModuleTypeMultiCloud:
		return true
	}
	return false
}
