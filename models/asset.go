package models

import "time"

// AssetDefinition describes one materializable asset and the worker that
// produces it (loaded from the assets YAML file)
type AssetDefinition struct {
	Key         string            `yaml:"key" json:"key"`
	Group       string            `yaml:"group,omitempty" json:"group,omitempty"`
	Kinds       []string          `yaml:"kinds,omitempty" json:"kinds,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Timeout     time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty" swaggertype:"integer"`

	// MessageTransport is "file" (default) or "stdio"
	MessageTransport string `yaml:"message_transport,omitempty" json:"message_transport,omitempty"`
	// ContextInjection is "env" (default) or "file"
	ContextInjection string `yaml:"context_injection,omitempty" json:"context_injection,omitempty"`
}

// AssetListItem represents an asset in list view
type AssetListItem struct {
	Key         string   `json:"key"`
	Group       string   `json:"group,omitempty"`
	Kinds       []string `json:"kinds,omitempty"`
	Description string   `json:"description,omitempty"`
}

// MaterializeRequest represents the request body for materializing an asset
type MaterializeRequest struct {
	PartitionKey string                 `json:"partition_key,omitempty"`
	JobName      string                 `json:"job_name,omitempty"`
	Extras       map[string]interface{} `json:"extras,omitempty"`
}
