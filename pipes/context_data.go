package pipes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoPayload is returned when context params carry neither a path nor inline data.
var ErrNoPayload = errors.New("no payload found in params")

// ContextData is what the orchestrator tells a worker about the unit of work.
type ContextData struct {
	RunID                 string                 `json:"run_id"`
	AssetKeys             []string               `json:"asset_keys,omitempty"`
	CodeVersionByAssetKey map[string]*string     `json:"code_version_by_asset_key,omitempty"`
	ProvenanceByAssetKey  map[string]*Provenance `json:"provenance_by_asset_key,omitempty"`
	PartitionKey          *string                `json:"partition_key,omitempty"`
	PartitionKeyRange     *PartitionKeyRange     `json:"partition_key_range,omitempty"`
	PartitionTimeWindow   *PartitionTimeWindow   `json:"partition_time_window,omitempty"`
	JobName               *string                `json:"job_name,omitempty"`
	RetryNumber           int64                  `json:"retry_number"`
	Extras                map[string]any         `json:"extras,omitempty"`
}

type PartitionKeyRange struct {
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
}

type PartitionTimeWindow struct {
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
}

type Provenance struct {
	CodeVersion       *string           `json:"code_version,omitempty"`
	InputDataVersions map[string]string `json:"input_data_versions,omitempty"`
	IsUserProvided    *bool             `json:"is_user_provided,omitempty"`
}

// ContextLoader turns context params into ContextData.
type ContextLoader interface {
	LoadContext(params Params) (*ContextData, error)
}

// DefaultContextLoader reads the context from a file named by "path", falling
// back to inline "data". The file wins when both are present.
type DefaultContextLoader struct{}

func NewDefaultContextLoader() *DefaultContextLoader {
	return &DefaultContextLoader{}
}

func (l *DefaultContextLoader) LoadContext(params Params) (*ContextData, error) {
	path, ok, err := params.String(ParamPath)
	if err != nil {
		return nil, err
	}
	if ok {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open context file: %w", err)
		}
		defer f.Close()

		var data ContextData
		if err := json.NewDecoder(f).Decode(&data); err != nil {
			return nil, fmt.Errorf("decode context file: %w", err)
		}
		return &data, nil
	}

	if raw, ok := params[ParamData]; ok {
		var data ContextData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode context data: %w", err)
		}
		return &data, nil
	}
	return nil, ErrNoPayload
}
