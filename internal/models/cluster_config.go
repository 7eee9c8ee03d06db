package models

// ClusterConfig is the subset of the autoscaler bootstrap config the
// dashboard shows
type ClusterConfig struct {
	MinWorkers         int     `json:"min_workers"`
	MaxWorkers         int     `json:"max_workers"`
	InitialWorkers     int     `json:"initial_workers"`
	AutoscalingMode    string  `json:"autoscaling_mode"`
	IdleTimeoutMinutes float64 `json:"idle_timeout_minutes"`
	HeadType           string  `json:"head_type"`
	WorkerType         string  `json:"worker_type"`
}

// UnknownInstanceType is reported when a node type has no InstanceType
const UnknownInstanceType = "unknown"
