package models

import "time"

// AggregatedCounts is the per-node breakdown of a counter. PerWorker holds an
// entry for every live worker pid on the node (zero when it reported nothing)
// and Total is the sum of those entries.
type AggregatedCounts struct {
	PerWorker map[int]int `json:"per_worker"`
	Total     int         `json:"total"`
}

// Count returns the count recorded for pid, zero when absent
func (a AggregatedCounts) Count(pid int) int {
	return a.PerWorker[pid]
}

// WorkerView is one filtered worker row with its registry data joined in
type WorkerView struct {
	WorkerEntry
	Registry        *RayletWorkerStats `json:"registry,omitempty"`
	GPUAllocation   *float64           `json:"gpu_allocation,omitempty"`
	ResourceSummary string             `json:"resource_summary,omitempty"`
	LogCount        int                `json:"log_count"`
	ErrorCount      int                `json:"error_count"`
}

// NodeView is the reconciled record for one node, in inventory order
type NodeView struct {
	Address        string           `json:"address"`
	Hostname       string           `json:"hostname"`
	Host           NodeInfo         `json:"host"`
	Workers        []WorkerView     `json:"workers"`
	LogCounts      AggregatedCounts `json:"log_counts"`
	ErrorCounts    AggregatedCounts `json:"error_counts"`
	GPUs           []GPUStats       `json:"gpus"`
	GPUUtilization *float64         `json:"gpu_utilization"`
	GPUAllocated   float64          `json:"gpu_allocated"`
	ExtraInfo      *string          `json:"extra_info,omitempty"`
	Registered     bool             `json:"registered"`
}

// WorkerPIDs returns the pids of the node's filtered workers in row order
func (n *NodeView) WorkerPIDs() []int {
	pids := make([]int, 0, len(n.Workers))
	for _, w := range n.Workers {
		pids = append(pids, w.PID)
	}
	return pids
}

// ClusterSummary is the synthetic trailing row aggregating every node
type ClusterSummary struct {
	NodeCount      int      `json:"node_count"`
	WorkerCount    int      `json:"worker_count"`
	GPUCount       int      `json:"gpu_count"`
	LogTotal       int      `json:"log_total"`
	ErrorTotal     int      `json:"error_total"`
	GPUUtilization *float64 `json:"gpu_utilization"`
	GPUAllocated   float64  `json:"gpu_allocated"`
	ActorCount     int      `json:"actor_count"`
}

// ClusterView is the complete derived view for one polling tick
type ClusterView struct {
	Nodes             []NodeView     `json:"nodes"`
	Summary           ClusterSummary `json:"summary"`
	Actors            []ActorView    `json:"actors"`
	InitiallyExpanded bool           `json:"initially_expanded"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// FindNode returns the node view with the given address
func (v *ClusterView) FindNode(address string) (*NodeView, bool) {
	if v == nil {
		return nil, false
	}
	for i := range v.Nodes {
		if v.Nodes[i].Address == address {
			return &v.Nodes[i], true
		}
	}
	return nil, false
}
