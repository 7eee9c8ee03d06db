package models

// ActorTree maps actor id to actor, nested by the actor that created it
type ActorTree map[string]ActorInfo

// ActorInfo is one node of the registry's actor tree. A running actor carries
// its core worker counters; an actor that could not be scheduled carries
// InvalidStateType and the resources it asked for instead.
type ActorInfo struct {
	ActorID               string                         `json:"actorId"`
	JobID                 string                         `json:"jobId,omitempty"`
	State                 int                            `json:"state"`
	NodeID                string                         `json:"nodeId,omitempty"`
	IPAddress             string                         `json:"ipAddress,omitempty"`
	Port                  int                            `json:"port,omitempty"`
	PID                   int                            `json:"pid,omitempty"`
	TaskQueueLength       int                            `json:"taskQueueLength"`
	NumExecutedTasks      int                            `json:"numExecutedTasks"`
	NumLocalObjects       int                            `json:"numLocalObjects"`
	NumObjectIDsInScope   int                            `json:"numObjectIdsInScope"`
	UsedObjectStoreMemory float64                        `json:"usedObjectStoreMemory"`
	UsedResources         map[string]ResourceAllocations `json:"usedResources,omitempty"`
	InvalidStateType      string                         `json:"invalidStateType,omitempty"`
	RequiredResources     map[string]float64             `json:"requiredResources,omitempty"`
	Children              ActorTree                      `json:"children,omitempty"`
}

// Infeasible reports whether the actor is a placeholder for a task that was
// never scheduled
func (a *ActorInfo) Infeasible() bool {
	return a.InvalidStateType != ""
}

// ActorView is one row of the flattened actor tree, parents before children
type ActorView struct {
	ActorID           string   `json:"actor_id"`
	ParentID          string   `json:"parent_id,omitempty"`
	Depth             int      `json:"depth"`
	JobID             string   `json:"job_id,omitempty"`
	State             int      `json:"state"`
	NodeID            string   `json:"node_id,omitempty"`
	Address           string   `json:"address,omitempty"`
	PID               int      `json:"pid,omitempty"`
	PendingTasks      int      `json:"pending_tasks"`
	ExecutedTasks     int      `json:"executed_tasks"`
	ResourceSummary   string   `json:"resource_summary,omitempty"`
	GPUAllocation     *float64 `json:"gpu_allocation,omitempty"`
	InvalidStateType  string   `json:"invalid_state_type,omitempty"`
	RequiredResources string   `json:"required_resources,omitempty"`
}
