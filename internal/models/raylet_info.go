package models

// RayletInfoResponse is the process-registry snapshot served at
// /api/raylet_info. It is authoritative on which worker processes are
// currently registered, but may lag behind or omit nodes entirely.
type RayletInfoResponse struct {
	Nodes  map[string]RayletNode `json:"nodes"`
	Actors ActorTree             `json:"actors"`
}

// RayletNode holds the registry's view of one node
type RayletNode struct {
	NodeID       string              `json:"nodeId,omitempty"`
	WorkersStats []RayletWorkerStats `json:"workersStats"`
	ExtraInfo    *string             `json:"extraInfo,omitempty"`
}

// RayletWorkerStats is a registered worker process
type RayletWorkerStats struct {
	PID             int              `json:"pid"`
	IsDriver        bool             `json:"isDriver,omitempty"`
	CoreWorkerStats *CoreWorkerStats `json:"coreWorkerStats,omitempty"`
}

// CoreWorkerStats carries the per-process counters reported by a worker
type CoreWorkerStats struct {
	IPAddress       string                         `json:"ipAddress,omitempty"`
	Port            int                            `json:"port,omitempty"`
	ActorID         string                         `json:"actorId,omitempty"`
	NumPendingTasks int                            `json:"numPendingTasks,omitempty"`
	TaskQueueLength int                            `json:"taskQueueLength,omitempty"`
	UsedResources   map[string]ResourceAllocations `json:"usedResources,omitempty"`
}

// ResourceAllocations is the list of slots a worker holds for one resource
type ResourceAllocations struct {
	ResourceSlots []ResourceSlot `json:"resourceSlots"`
}

// ResourceSlot is a (possibly fractional) share of one schedulable unit
type ResourceSlot struct {
	Slot       int     `json:"slot"`
	Allocation float64 `json:"allocation"`
}

// UsedResources returns the worker's resource allocations, or nil when the
// worker did not report core worker stats.
func (w *RayletWorkerStats) UsedResources() map[string]ResourceAllocations {
	if w == nil || w.CoreWorkerStats == nil {
		return nil
	}
	return w.CoreWorkerStats.UsedResources
}

// Clone returns a copy of the worker stats that shares no memory with w
func (w RayletWorkerStats) Clone() RayletWorkerStats {
	if w.CoreWorkerStats != nil {
		stats := *w.CoreWorkerStats
		stats.UsedResources = CloneResources(w.CoreWorkerStats.UsedResources)
		w.CoreWorkerStats = &stats
	}
	return w
}

// CloneResources deep-copies a resource allocation map
func CloneResources(used map[string]ResourceAllocations) map[string]ResourceAllocations {
	if used == nil {
		return nil
	}
	out := make(map[string]ResourceAllocations, len(used))
	for name, allocations := range used {
		out[name] = ResourceAllocations{
			ResourceSlots: append([]ResourceSlot(nil), allocations.ResourceSlots...),
		}
	}
	return out
}
