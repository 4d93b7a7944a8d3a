// Package connections defines the typed service connections a workflow can carry.
package connections

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"metadata-ingestion/internal/common/errors"
	"metadata-ingestion/internal/common/validation"
)

// Connection types
const (
	TypeDomoPipeline  = "DomoPipeline"
	TypeDomoDashboard = "DomoDashboard"
	TypeDomoDatabase  = "DomoDatabase"
)

// DefaultDomoAPIHost is used when apiHost is not set
const DefaultDomoAPIHost = "api.domo.com"

// Connection is implemented by every service connection
type Connection interface {
	// ConnectionType returns the `type` discriminator, e.g. DomoPipeline
	ConnectionType() string
}

// DomoCredentials are shared by every Domo connection
type DomoCredentials struct {
	Type           string `yaml:"type" json:"type"`
	ClientID       string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	SecretToken    string `yaml:"secretToken,omitempty" json:"secretToken,omitempty" validate:"required_with=ClientID"`
	AccessToken    string `yaml:"accessToken,omitempty" json:"accessToken,omitempty" validate:"required_without=ClientID"`
	APIHost        string `yaml:"apiHost,omitempty" json:"apiHost,omitempty" validate:"omitempty,hostname|hostname_port|url"`
	InstanceDomain string `yaml:"instanceDomain" json:"instanceDomain" validate:"required,url"`
}

// TokenURL returns the OAuth2 token endpoint of the Domo API host
func (c DomoCredentials) TokenURL() string {
	host := c.APIHost
	if host == "" {
		host = DefaultDomoAPIHost
	}
	if strings.Contains(host, "://") {
		return strings.TrimRight(host, "/") + "/oauth/token"
	}
	return "https://" + host + "/oauth/token"
}

// DomoPipelineConnection connects to Domo dataflows
type DomoPipelineConnection struct {
	DomoCredentials `yaml:",inline"`
}

// ConnectionType implements Connection
func (c *DomoPipelineConnection) ConnectionType() string { return TypeDomoPipeline }

// DomoDashboardConnection connects to Domo dashboards
type DomoDashboardConnection struct {
	DomoCredentials `yaml:",inline"`
}

// ConnectionType implements Connection
func (c *DomoDashboardConnection) ConnectionType() string { return TypeDomoDashboard }

// DomoDatabaseConnection connects to Domo datasets
type DomoDatabaseConnection struct {
	DomoCredentials `yaml:",inline"`
}

// ConnectionType implements Connection
func (c *DomoDatabaseConnection) ConnectionType() string { return TypeDomoDatabase }

// TypeName returns the Go-facing name of conn, e.g. DomoDashboardConnection
func TypeName(conn Connection) string {
	if conn == nil {
		return "None"
	}
	return conn.ConnectionType() + "Connection"
}

// Decode builds the typed connection described by node and validates it
func Decode(node *yaml.Node) (Connection, error) {
	var header struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&header); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid service connection: %v", err))
	}

	var conn Connection
	switch header.Type {
	case TypeDomoPipeline:
		conn = &DomoPipelineConnection{}
	case TypeDomoDashboard:
		conn = &DomoDashboardConnection{}
	case TypeDomoDatabase:
		conn = &DomoDatabaseConnection{}
	case "":
		return nil, errors.ConfigError("service connection type is required")
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported service connection type %q", header.Type))
	}

	if err := node.Decode(conn); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid %s connection: %v", header.Type, err))
	}
	if err := validation.ValidateStruct(conn); err != nil {
		return nil, err
	}

	return conn, nil
}

// ToMap renders conn as a generic map, as stored with the registry service
func ToMap(conn Connection) (map[string]any, error) {
	data, err := yaml.Marshal(conn)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
