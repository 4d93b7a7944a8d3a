package models

// PipelineServiceType names the vendor behind a pipeline service
type PipelineServiceType string

const (
	PipelineServiceDomo PipelineServiceType = "DomoPipeline"
)

// ServiceConnection carries the connector configuration stored with a service
type ServiceConnection struct {
	Config map[string]any `json:"config"`
}

// CreatePipelineServiceRequest creates or updates a pipeline service
type CreatePipelineServiceRequest struct {
	Name        string              `json:"name"`
	ServiceType PipelineServiceType `json:"serviceType"`
	Description string              `json:"description,omitempty"`
	Connection  *ServiceConnection  `json:"connection,omitempty"`
}

// PipelineService is a pipeline service entity as stored by the registry
type PipelineService struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	FullyQualifiedName string              `json:"fullyQualifiedName"`
	ServiceType        PipelineServiceType `json:"serviceType"`
}
