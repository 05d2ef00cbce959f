package models

import "time"

type Module struct {
	ID              string       `gorm:"primaryKey;size:191;column:id" json:"id"`
	Name            string       `gorm:"uniqueIndex;size:100;column:name" json:"name"`
	Type            ModuleType   `gorm:"size:50;column:type" json:"type"`
	Description     *string      `gorm:"type:text;column:description" json:"description,omitempty"`
	Status          ModuleStatus `gorm:"size:50;default:disabled;column:status" json:"status"`
	Enabled         bool         `gorm:"default:false;column:enabled" json:"enabled"`
	Config          JSON         `gorm:"type:json;column:config" json:"config,omitempty"`
	ControlHost     *string      `gorm:"size:255;column:controlHost" json:"controlHost,omitempty"`
	ControlPort     *int         `gorm:"column:controlPort" json:"controlPort,omitempty"`
	HealthStatus    string       `gorm:"size:50;default:unknown;column:healthStatus" json:"healthStatus"`
	LastHealthCheck *time.Time   `gorm:"column:lastHealthCheck" json:"lastHealthCheck,omitempty"`
	Version         *string      `gorm:"size:50;column:version" json:"version,omitempty"`
	Image           *string      `gorm:"size:255;column:image" json:"image,omitempty"`
	Replicas        int          `gorm:"default:1;column:replicas" json:"replicas"`
	CreatedBy       string       `gorm:"size:191;column:createdBy" json:"createdBy"`
	CreatedAt       time.Time    `gorm:"autoCreateTime;column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time    `gorm:"autoUpdateTime;column:updatedAt" json:"updatedAt"`

	Routes        []ModuleRoute  `gorm:"foreignKey:ModuleID" json:"routes,omitempty"`
	ScalingPolicy *ScalingPolicy `gorm:"foreignKey:ModuleID" json:"scalingPolicy,omitempty"`
	Deployments   []Deployment   `gorm:"foreignKey:ModuleID" json:"deployments,omitempty"`
}

func (Module) TableName() string {
	return "Module"
}

// HasControlEndpoint reports whether a control channel address is configured.
func (m *Module) HasControlEndpoint() bool {
	return m.ControlHost != nil && *m.ControlHost != "" && m.ControlPort != nil && *m.ControlPort > 0
}

type ModuleRoute struct {
	ID            string    `gorm:"primaryKey;size:191;column:id" json:"id"`
	ModuleID      string    `gorm:"index;size:191;column:moduleId" json:"moduleId"`
	Name          string    `gorm:"size:100;column:name" json:"name"`
	MatchRules    JSON      `gorm:"type:json;column:matchRules" json:"matchRules"`
	BackendConfig JSON      `gorm:"type:json;column:backendConfig" json:"backendConfig"`
	RateLimit     *float64  `gorm:"column:rateLimit" json:"rateLimit,omitempty"`
	Priority      int       `gorm:"default:100;column:priority" json:"priority"`
	Enabled       bool      `gorm:"default:true;column:enabled" json:"enabled"`
	CreatedAt     time.Time `gorm:"autoCreateTime;column:createdAt" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime;column:updatedAt" json:"updatedAt"`

	Module Module `gorm:"foreignKey:ModuleID" json:"module,omitempty"`
}

func (ModuleRoute) TableName() string {
	return "ModuleRoute"
}

type ScalingPolicy struct {
	ID                 string        `gorm:"primaryKey;size:191;column:id" json:"id"`
	ModuleID           string        `gorm:"uniqueIndex;size:191;column:moduleId" json:"moduleId"`
	MinInstances       int           `gorm:"default:1;column:minInstances" json:"minInstances"`
	MaxInstances       int           `gorm:"default:10;column:maxInstances" json:"maxInstances"`
	ScaleUpThreshold   float64       `gorm:"default:80;column:scaleUpThreshold" json:"scaleUpThreshold"`
	ScaleDownThreshold float64       `gorm:"default:20;column:scaleDownThreshold" json:"scaleDownThreshold"`
	CooldownSeconds    int           `gorm:"default:300;column:cooldownSeconds" json:"cooldownSeconds"`
	Metric             ScalingMetric `gorm:"size:50;default:cpu;column:metric" json:"metric"`
	Enabled            bool          `gorm:"default:true;column:enabled" json:"enabled"`
	CreatedAt          time.Time     `gorm:"autoCreateTime;column:createdAt" json:"createdAt"`
	UpdatedAt          time.Time     `gorm:"autoUpdateTime;column:updatedAt" json:"updatedAt"`

	Module Module `gorm:"foreignKey:ModuleID" json:"module,omitempty"`
}

func (ScalingPolicy) TableName() string {
	return "ScalingPolicy"
}

type Deployment struct {
	ID                   string           `gorm:"primaryKey;size:191;column:id" json:"id"`
	ModuleID             string           `gorm:"index;size:191;column:moduleId" json:"moduleId"`
	Version              string           `gorm:"size:50;column:version" json:"version"`
	Status               DeploymentStatus `gorm:"size:50;default:pending;column:status" json:"status"`
	TrafficWeight        float64          `gorm:"default:0;column:trafficWeight" json:"trafficWeight"`
	Config               JSON             `gorm:"type:json;column:config" json:"config,omitempty"`
	Image                string           `gorm:"size:255;column:image" json:"image"`
	Environment          JSON             `gorm:"type:json;column:environment" json:"environment,omitempty"`
	PreviousDeploymentID *string          `gorm:"size:191;column:previousDeploymentId" json:"previousDeploymentId,omitempty"`
	HealthCheckPassed    bool             `gorm:"default:false;column:healthCheckPassed" json:"healthCheckPassed"`
	HealthCheckMessage   *string          `gorm:"type:text;column:healthCheckMessage" json:"healthCheckMessage,omitempty"`
	DeployedBy           string           `gorm:"size:191;column:deployedBy" json:"deployedBy"`
	DeployedAt           time.Time        `gorm:"autoCreateTime;column:deployedAt" json:"deployedAt"`
	CompletedAt          *time.Time       `gorm:"column:completedAt" json:"completedAt,omitempty"`

	Module             Module      `gorm:"foreignKey:ModuleID" json:"module,omitempty"`
	PreviousDeployment *Deployment `gorm:"foreignKey:PreviousDeploymentID;references:ID" json:"previousDeployment,omitempty"`
}

func (Deployment) TableName() string {
	return "Deployment"
}
