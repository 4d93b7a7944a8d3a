package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
	"metadata-ingestion/internal/common/errors"
	"metadata-ingestion/internal/common/validation"
	"metadata-ingestion/internal/config/connections"
)

// Defaults applied to a parsed workflow
const (
	DefaultSinkType         = "metadata-rest"
	DefaultSourceConfigType = "PipelineMetadata"
	DefaultLoggerLevel      = "INFO"
	DefaultSuccessThreshold = 90
)

// Workflow is the ingestion workflow document
type Workflow struct {
	Source         WorkflowSource `yaml:"source"`
	Sink           Sink           `yaml:"sink"`
	WorkflowConfig WorkflowConfig `yaml:"workflowConfig"`
}

// WorkflowSource selects and configures the source connector
type WorkflowSource struct {
	Type              string            `yaml:"type" validate:"required"`
	ServiceName       string            `yaml:"serviceName" validate:"required"`
	ServiceConnection ServiceConnection `yaml:"serviceConnection"`
	SourceConfig      SourceConfig      `yaml:"sourceConfig"`
}

// ServiceConnection wraps the typed connection of the source service
type ServiceConnection struct {
	Config connections.Connection `yaml:"config" validate:"-"`
}

// UnmarshalYAML decodes the polymorphic `config` by its `type`
func (s *ServiceConnection) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Config yaml.Node `yaml:"config"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Config.Kind == 0 {
		return errors.ConfigError("field 'serviceConnection.config' is required")
	}

	conn, err := connections.Decode(&raw.Config)
	if err != nil {
		return err
	}
	s.Config = conn
	return nil
}

// MarshalYAML writes the typed connection back under `config`
func (s ServiceConnection) MarshalYAML() (interface{}, error) {
	return map[string]any{"config": s.Config}, nil
}

// SourceConfig wraps the source-type specific settings
type SourceConfig struct {
	Config PipelineSourceConfig `yaml:"config"`
}

// PipelineSourceConfig holds the settings of a pipeline metadata source
type PipelineSourceConfig struct {
	Type                  string         `yaml:"type" validate:"omitempty,oneof=PipelineMetadata"`
	IncludeLineage        bool           `yaml:"includeLineage"`
	MarkDeletedPipelines  *bool          `yaml:"markDeletedPipelines,omitempty"`
	PipelineFilterPattern *FilterPattern `yaml:"pipelineFilterPattern,omitempty"`
}

// MarkDeleted reports whether unregistered pipelines are soft-deleted after a run
func (c PipelineSourceConfig) MarkDeleted() bool {
	return c.MarkDeletedPipelines == nil || *c.MarkDeletedPipelines
}

// FilterPattern holds include and exclude regular expressions
type FilterPattern struct {
	Includes []string `yaml:"includes,omitempty" validate:"dive,regexp"`
	Excludes []string `yaml:"excludes,omitempty" validate:"dive,regexp"`
}

// Sink selects the sink
type Sink struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config,omitempty"`
}

// WorkflowConfig holds the settings shared by every step
type WorkflowConfig struct {
	LoggerLevel              string       `yaml:"loggerLevel" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	SuccessThreshold         *int         `yaml:"successThreshold,omitempty" validate:"omitempty,gte=0,lte=100"`
	StateStore               StateStore   `yaml:"stateStore"`
	OpenMetadataServerConfig ServerConfig `yaml:"openMetadataServerConfig"`
}

// Threshold returns the minimum success percentage of a run
func (c WorkflowConfig) Threshold() int {
	if c.SuccessThreshold == nil {
		return DefaultSuccessThreshold
	}
	return *c.SuccessThreshold
}

// StateStore configures the run ledger
type StateStore struct {
	Path string `yaml:"path,omitempty"`
}

// ServerConfig points at the metadata registry
type ServerConfig struct {
	HostPort       string         `yaml:"hostPort" validate:"required,url"`
	AuthProvider   string         `yaml:"authProvider" validate:"omitempty,oneof=openmetadata no-auth"`
	SecurityConfig SecurityConfig `yaml:"securityConfig"`
}

// SecurityConfig carries registry credentials
type SecurityConfig struct {
	JWTToken string `yaml:"jwtToken,omitempty"`
}

// LoadWorkflow reads, expands and validates the workflow file at path
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to read workflow config %s: %v", path, err))
	}
	return ParseWorkflow(data)
}

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with their environment values. Bare
// $name text and references to unset variables are left as written, so
// secrets and regexes containing '$' survive.
func expandEnv(text string) string {
	return envReference.ReplaceAllStringFunc(text, func(ref string) string {
		name := envReference.FindStringSubmatch(ref)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return ref
	})
}

// ParseWorkflow expands ${VAR} references, decodes and validates a workflow document
func ParseWorkflow(data []byte) (*Workflow, error) {
	expanded := expandEnv(string(data))

	var w Workflow
	if err := yaml.Unmarshal([]byte(expanded), &w); err != nil {
		return nil, asConfigError("invalid workflow config", err)
	}

	w.applyDefaults()

	if err := validation.ValidateStruct(&w); err != nil {
		return nil, err
	}
	if w.Source.ServiceConnection.Config == nil {
		return nil, errors.ConfigError("field 'source.serviceConnection.config' is required")
	}

	return &w, nil
}

// ParseWorkflowSource builds a WorkflowSource from a generic map, as handed to a connector factory
func ParseWorkflowSource(raw map[string]any) (*WorkflowSource, error) {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid source config: %v", err))
	}

	var src WorkflowSource
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, asConfigError("invalid source config", err)
	}
	if err := validation.ValidateStruct(&src); err != nil {
		return nil, err
	}
	if src.ServiceConnection.Config == nil {
		return nil, errors.ConfigError("field 'serviceConnection.config' is required")
	}
	return &src, nil
}

func (w *Workflow) applyDefaults() {
	if w.Sink.Type == "" {
		w.Sink.Type = DefaultSinkType
	}
	if w.Source.SourceConfig.Config.Type == "" {
		w.Source.SourceConfig.Config.Type = DefaultSourceConfigType
	}
	if w.WorkflowConfig.LoggerLevel == "" {
		w.WorkflowConfig.LoggerLevel = DefaultLoggerLevel
	}
	if w.WorkflowConfig.OpenMetadataServerConfig.AuthProvider == "" {
		w.WorkflowConfig.OpenMetadataServerConfig.AuthProvider = "openmetadata"
	}
	w.Source.Type = strings.ToLower(w.Source.Type)
}

// Decode errors raised by a connection keep their type; yaml errors become config errors
func asConfigError(msg string, err error) error {
	if errors.IsType(err, errors.ErrTypeConfig) {
		return err
	}
	return errors.ConfigError(fmt.Sprintf("%s: %v", msg, err))
}
