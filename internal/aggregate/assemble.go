package aggregate

import "github.com/jaredcannon/clusterview/internal/models"

// Assemble reconciles one tick's inventory and registry snapshots into the
// cluster view. Nodes keep inventory order; actors are flattened from the
// registry's actor tree. A node the registry does not know
// about is still listed, with no workers and zero counts; a nil snapshot is
// treated as empty.
func Assemble(inventory *models.NodeInfoResponse, registry *models.RayletInfoResponse) *models.ClusterView {
	if inventory == nil {
		inventory = &models.NodeInfoResponse{}
	}

	membership := Resolve(registry)
	logCounts := AggregateCounts(inventory.LogCounts, membership)
	errorCounts := AggregateCounts(inventory.ErrorCounts, membership)

	view := &models.ClusterView{
		Nodes:             make([]models.NodeView, 0, len(inventory.Clients)),
		InitiallyExpanded: len(inventory.Clients) <= 1,
	}

	samples := make([]NodeUtilizationSample, 0, len(inventory.Clients))
	for _, client := range inventory.Clients {
		node := assembleNode(client, registryNode(registry, client.IP), membership,
			countsFor(logCounts, client.IP), countsFor(errorCounts, client.IP))
		view.Nodes = append(view.Nodes, node)
		samples = append(samples, NodeUtilizationSample{
			DeviceCount: len(client.GPUs),
			Utilization: node.GPUUtilization,
		})
	}

	view.Summary = summarize(view.Nodes, samples)

	view.Actors = []models.ActorView{}
	if registry != nil {
		view.Actors = FlattenActors(registry.Actors)
	}
	view.Summary.ActorCount = len(view.Actors)
	return view
}

func assembleNode(
	client models.NodeInfo,
	raylet *models.RayletNode,
	membership MembershipSet,
	logCounts, errorCounts models.AggregatedCounts,
) models.NodeView {
	workers := FilterWorkers(client, membership)

	node := models.NodeView{
		Address:        client.IP,
		Hostname:       client.Hostname,
		Host:           client.Clone(),
		Workers:        make([]models.WorkerView, 0, len(workers)),
		LogCounts:      logCounts,
		ErrorCounts:    errorCounts,
		GPUs:           append([]models.GPUStats(nil), client.GPUs...),
		GPUUtilization: NodeGPUUtilization(client),
		Registered:     raylet != nil,
	}
	// Host is the raw inventory record; its worker list is replaced by the
	// filtered one so stale pids cannot leak through it.
	node.Host.Workers = workers
	node.Host.GPUs = nil

	if raylet != nil && raylet.ExtraInfo != nil {
		extra := *raylet.ExtraInfo
		node.ExtraInfo = &extra
	}

	for _, worker := range workers {
		row := models.WorkerView{
			WorkerEntry: worker.Clone(),
			Registry:    findRegistryWorker(raylet, worker.PID),
			LogCount:    logCounts.Count(worker.PID),
			ErrorCount:  errorCounts.Count(worker.PID),
		}
		used := row.Registry.UsedResources()
		row.GPUAllocation = ResourceAllocation(used, GPUResource)
		row.ResourceSummary = ResourceSummary(used)
		if row.GPUAllocation != nil {
			node.GPUAllocated += *row.GPUAllocation
		}
		node.Workers = append(node.Workers, row)
	}

	return node
}

// summarize builds the trailing cluster-wide row
func summarize(nodes []models.NodeView, samples []NodeUtilizationSample) models.ClusterSummary {
	summary := models.ClusterSummary{NodeCount: len(nodes)}
	for _, node := range nodes {
		summary.WorkerCount += len(node.Workers)
		summary.GPUCount += len(node.GPUs)
		summary.LogTotal += node.LogCounts.Total
		summary.ErrorTotal += node.ErrorCounts.Total
		summary.GPUAllocated += node.GPUAllocated
	}
	summary.GPUUtilization = ClusterUtilization(samples)
	return summary
}

func registryNode(registry *models.RayletInfoResponse, ip string) *models.RayletNode {
	if registry == nil {
		return nil
	}
	node, ok := registry.Nodes[ip]
	if !ok {
		return nil
	}
	return &node
}
