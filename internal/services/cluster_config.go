package services

import (
	"errors"
	"fmt"
	"os"

	"github.com/jaredcannon/clusterview/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrClusterConfigMissing is returned when no bootstrap config file exists
var ErrClusterConfigMissing = errors.New("cluster config not found")

type bootstrapConfig struct {
	MinWorkers         *int     `yaml:"min_workers"`
	MaxWorkers         *int     `yaml:"max_workers"`
	InitialWorkers     *int     `yaml:"initial_workers"`
	AutoscalingMode    *string  `yaml:"autoscaling_mode"`
	IdleTimeoutMinutes *float64 `yaml:"idle_timeout_minutes"`
	HeadNode           struct {
		InstanceType string `yaml:"InstanceType"`
	} `yaml:"head_node"`
	WorkerNodes struct {
		InstanceType string `yaml:"InstanceType"`
	} `yaml:"worker_nodes"`
}

// ClusterConfigLoader reads the autoscaler bootstrap config from disk
type ClusterConfigLoader struct {
	path string
}

// NewClusterConfigLoader creates a loader for the YAML file at path
func NewClusterConfigLoader(path string) *ClusterConfigLoader {
	return &ClusterConfigLoader{path: path}
}

// Load reads the file on every call so edits show up without a restart
func (l *ClusterConfigLoader) Load() (*models.ClusterConfig, error) {
	if l.path == "" {
		return nil, ErrClusterConfigMissing
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrClusterConfigMissing, l.path)
		}
		return nil, fmt.Errorf("failed to read cluster config: %w", err)
	}

	return ParseClusterConfig(data)
}

// ParseClusterConfig extracts the dashboard's summary from bootstrap YAML.
// The scaling fields are required; node instance types fall back to
// "unknown".
func ParseClusterConfig(data []byte) (*models.ClusterConfig, error) {
	var raw bootstrapConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cluster config: %w", err)
	}

	var missing []string
	if raw.MinWorkers == nil {
		missing = append(missing, "min_workers")
	}
	if raw.MaxWorkers == nil {
		missing = append(missing, "max_workers")
	}
	if raw.InitialWorkers == nil {
		missing = append(missing, "initial_workers")
	}
	if raw.AutoscalingMode == nil {
		missing = append(missing, "autoscaling_mode")
	}
	if raw.IdleTimeoutMinutes == nil {
		missing = append(missing, "idle_timeout_minutes")
	}
	if len(missing) > 0 {
		return nil, models.NewValidationError("Cluster config is missing required fields", missing)
	}

	cfg := &models.ClusterConfig{
		MinWorkers:         *raw.MinWorkers,
		MaxWorkers:         *raw.MaxWorkers,
		InitialWorkers:     *raw.InitialWorkers,
		AutoscalingMode:    *raw.AutoscalingMode,
		IdleTimeoutMinutes: *raw.IdleTimeoutMinutes,
		HeadType:           raw.HeadNode.InstanceType,
		WorkerType:         raw.WorkerNodes.InstanceType,
	}
	if cfg.HeadType == "" {
		cfg.HeadType = models.UnknownInstanceType
	}
	if cfg.WorkerType == "" {
		cfg.WorkerType = models.UnknownInstanceType
	}
	return cfg, nil
}
