package models

// CounterTable maps node IP to process id (string keyed, as the monitoring
// endpoint emits it) to an absolute per-tick count of log lines or errors.
// Entries may reference processes that have already exited.
type CounterTable map[string]map[string]int

// NodeInfoResponse is the inventory snapshot served by the monitoring endpoint
// at /api/node_info.
type NodeInfoResponse struct {
	Clients     []NodeInfo   `json:"clients"`
	LogCounts   CounterTable `json:"log_counts"`
	ErrorCounts CounterTable `json:"error_counts"`
}

// NodeInfo describes one machine as reported by its reporter agent
type NodeInfo struct {
	IP       string        `json:"ip"`
	Hostname string        `json:"hostname"`
	Now      float64       `json:"now,omitempty"`
	BootTime float64       `json:"bootTime,omitempty"`
	CPU      float64       `json:"cpu"`
	CPUs     []int         `json:"cpus,omitempty"`    // [logical, physical]
	Mem      []float64     `json:"mem,omitempty"`     // [total, available, percent, used]
	LoadAvg  []interface{} `json:"loadAvg,omitempty"`
	Net      []float64     `json:"net,omitempty"` // [sent/s, received/s]
	Cmdline  []string      `json:"cmdline,omitempty"`
	Workers  []WorkerEntry `json:"workers"`
	GPUs     []GPUStats    `json:"gpus,omitempty"`
}

// WorkerEntry is a worker process listed by the inventory. The inventory is
// not authoritative on liveness; entries may be stale.
type WorkerEntry struct {
	PID        int                `json:"pid"`
	Cmdline    []string           `json:"cmdline,omitempty"`
	CPUPercent float64            `json:"cpu_percent"`
	CreateTime float64            `json:"create_time,omitempty"`
	MemoryInfo map[string]float64 `json:"memory_info,omitempty"`
}

// GPUStats is one GPU reading on a node
type GPUStats struct {
	Index          int     `json:"index"`
	Name           string  `json:"name"`
	UUID           string  `json:"uuid,omitempty"`
	UtilizationGPU float64 `json:"utilization_gpu"` // 0-100
	MemoryUsed     float64 `json:"memory_used"`
	MemoryTotal    float64 `json:"memory_total"`
}

// GPUUtilizations returns the utilization readings of every GPU on the node
func (n *NodeInfo) GPUUtilizations() []float64 {
	readings := make([]float64, 0, len(n.GPUs))
	for _, gpu := range n.GPUs {
		readings = append(readings, gpu.UtilizationGPU)
	}
	return readings
}

// Clone returns a copy of the node that shares no slices or maps with n
func (n NodeInfo) Clone() NodeInfo {
	n.CPUs = append([]int(nil), n.CPUs...)
	n.Mem = append([]float64(nil), n.Mem...)
	if n.LoadAvg != nil {
		n.LoadAvg = cloneValue(n.LoadAvg).([]interface{})
	}
	n.Net = append([]float64(nil), n.Net...)
	n.Cmdline = append([]string(nil), n.Cmdline...)
	n.GPUs = append([]GPUStats(nil), n.GPUs...)

	workers := make([]WorkerEntry, len(n.Workers))
	for i, w := range n.Workers {
		workers[i] = w.Clone()
	}
	if n.Workers == nil {
		workers = nil
	}
	n.Workers = workers
	return n
}

// Clone returns a copy of the worker entry that shares no memory with w
func (w WorkerEntry) Clone() WorkerEntry {
	w.Cmdline = append([]string(nil), w.Cmdline...)
	if w.MemoryInfo != nil {
		info := make(map[string]float64, len(w.MemoryInfo))
		for k, v := range w.MemoryInfo {
			info[k] = v
		}
		w.MemoryInfo = info
	}
	return w
}

// cloneValue deep-copies a decoded JSON value
func cloneValue(v interface{}) interface{} {
	switch v := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
