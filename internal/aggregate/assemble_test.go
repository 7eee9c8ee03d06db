package aggregate

import (
	"testing"

	"github.com/jaredcannon/clusterview/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInventory() *models.NodeInfoResponse {
	return &models.NodeInfoResponse{
		Clients: []models.NodeInfo{
			{
				IP:       "10.0.0.2",
				Hostname: "worker-b",
				Workers:  []models.WorkerEntry{{PID: 20}, {PID: 21}},
			},
			{
				IP:       "10.0.0.1",
				Hostname: "head",
				Workers:  []models.WorkerEntry{{PID: 1}, {PID: 2}, {PID: 3}},
				GPUs: []models.GPUStats{
					{Index: 0, Name: "T4", UtilizationGPU: 40},
					{Index: 1, Name: "T4", UtilizationGPU: 60},
				},
			},
			{
				IP:       "10.0.0.3",
				Hostname: "unregistered",
				Workers:  []models.WorkerEntry{{PID: 30}},
			},
		},
		LogCounts: models.CounterTable{
			"10.0.0.1": {"1": 5, "2": 9},
			"10.0.0.2": {"20": 1, "21": 2},
			"10.0.0.3": {"30": 7},
		},
		ErrorCounts: models.CounterTable{
			"10.0.0.1": {"3": 2},
		},
	}
}

func testRegistry() *models.RayletInfoResponse {
	extra := "CPU: 3 / 8, GPU: 0.75 / 2\n"
	return &models.RayletInfoResponse{
		Nodes: map[string]models.RayletNode{
			"10.0.0.1": {
				ExtraInfo: &extra,
				WorkersStats: []models.RayletWorkerStats{
					{
						PID: 1,
						CoreWorkerStats: &models.CoreWorkerStats{
							UsedResources: map[string]models.ResourceAllocations{
								"GPU": {ResourceSlots: []models.ResourceSlot{{Slot: 0, Allocation: 0.5}, {Slot: 1, Allocation: 0.25}}},
								"CPU": {ResourceSlots: []models.ResourceSlot{{Slot: 0, Allocation: 1}}},
							},
						},
					},
					{PID: 3},
				},
			},
			"10.0.0.2": {
				WorkersStats: []models.RayletWorkerStats{{PID: 21}},
			},
		},
	}
}

func TestAssemble_InventoryOrder(t *testing.T) {
	view := Assemble(testInventory(), testRegistry())

	require.Len(t, view.Nodes, 3)
	assert.Equal(t, "10.0.0.2", view.Nodes[0].Address)
	assert.Equal(t, "10.0.0.1", view.Nodes[1].Address)
	assert.Equal(t, "10.0.0.3", view.Nodes[2].Address)
	assert.False(t, view.InitiallyExpanded)
}

func TestAssemble_FiltersAndCounts(t *testing.T) {
	view := Assemble(testInventory(), testRegistry())

	head, ok := view.FindNode("10.0.0.1")
	require.True(t, ok)

	assert.Equal(t, []int{1, 3}, head.WorkerPIDs())
	assert.Equal(t, []int{1, 3}, pidsOf(head.Host.Workers))
	assert.Equal(t, models.AggregatedCounts{PerWorker: map[int]int{1: 5, 3: 0}, Total: 5}, head.LogCounts)
	assert.Equal(t, models.AggregatedCounts{PerWorker: map[int]int{1: 0, 3: 2}, Total: 2}, head.ErrorCounts)
	assert.Equal(t, 5, head.Workers[0].LogCount)
	assert.Equal(t, 2, head.Workers[1].ErrorCount)
	assert.True(t, head.Registered)
	require.NotNil(t, head.ExtraInfo)
	assert.Equal(t, "CPU: 3 / 8, GPU: 0.75 / 2\n", *head.ExtraInfo)
}

func TestAssemble_JoinsRegistryWorkers(t *testing.T) {
	view := Assemble(testInventory(), testRegistry())
	head, _ := view.FindNode("10.0.0.1")

	first := head.Workers[0]
	require.NotNil(t, first.Registry)
	assert.Equal(t, 1, first.Registry.PID)
	require.NotNil(t, first.GPUAllocation)
	assert.InDelta(t, 0.75, *first.GPUAllocation, 1e-9)
	assert.Equal(t, "1 CPU, 0.75 GPU", first.ResourceSummary)

	second := head.Workers[1]
	require.NotNil(t, second.Registry)
	assert.Nil(t, second.GPUAllocation)
	assert.Equal(t, "", second.ResourceSummary)

	assert.InDelta(t, 0.75, head.GPUAllocated, 1e-9)
}

func TestAssemble_NodeMissingFromRegistry(t *testing.T) {
	view := Assemble(testInventory(), testRegistry())

	node, ok := view.FindNode("10.0.0.3")
	require.True(t, ok)

	assert.Empty(t, node.Workers)
	assert.Equal(t, 0, node.LogCounts.Total)
	assert.Empty(t, node.LogCounts.PerWorker)
	assert.Equal(t, 0, node.ErrorCounts.Total)
	assert.False(t, node.Registered)
	assert.Nil(t, node.ExtraInfo)
	assert.Nil(t, node.GPUUtilization)
}

func TestAssemble_Utilization(t *testing.T) {
	view := Assemble(testInventory(), testRegistry())

	head, _ := view.FindNode("10.0.0.1")
	require.NotNil(t, head.GPUUtilization)
	assert.InDelta(t, 50.0, *head.GPUUtilization, 1e-9)

	other, _ := view.FindNode("10.0.0.2")
	assert.Nil(t, other.GPUUtilization)

	// Only the head has GPUs, so the cluster value is its value
	require.NotNil(t, view.Summary.GPUUtilization)
	assert.InDelta(t, 50.0, *view.Summary.GPUUtilization, 1e-9)
}

func TestAssemble_Summary(t *testing.T) {
	view := Assemble(testInventory(), testRegistry())

	assert.Equal(t, models.ClusterSummary{
		NodeCount:      3,
		WorkerCount:    3,
		GPUCount:       2,
		LogTotal:       7, // 5 on head + 2 for pid 21
		ErrorTotal:     2,
		GPUUtilization: view.Summary.GPUUtilization,
		GPUAllocated:   0.75,
	}, view.Summary)
}

func TestAssemble_NilSnapshots(t *testing.T) {
	view := Assemble(nil, nil)

	require.NotNil(t, view)
	assert.Empty(t, view.Nodes)
	assert.True(t, view.InitiallyExpanded)
	assert.Nil(t, view.Summary.GPUUtilization)

	inventoryOnly := Assemble(testInventory(), nil)
	require.Len(t, inventoryOnly.Nodes, 3)
	for _, node := range inventoryOnly.Nodes {
		assert.Empty(t, node.Workers)
		assert.Equal(t, 0, node.LogCounts.Total)
	}
}

func TestAssemble_Idempotent(t *testing.T) {
	inventory := testInventory()
	registry := testRegistry()

	first := Assemble(inventory, registry)
	second := Assemble(inventory, registry)

	assert.Equal(t, first, second)
	// the inventory's own worker list is left intact
	assert.Equal(t, []int{1, 2, 3}, pidsOf(inventory.Clients[1].Workers))
}

func TestAssemble_ViewSharesNothingWithSnapshots(t *testing.T) {
	inventory := testInventory()
	inventory.Clients[1].Workers[0].Cmdline = []string{"ray::worker"}
	inventory.Clients[1].LoadAvg = []interface{}{[]interface{}{0.5, 0.4, 0.3}}
	registry := testRegistry()

	view := Assemble(inventory, registry)
	head := view.Nodes[1]
	require.Equal(t, "head", head.Hostname)

	inventory.Clients[1].Workers[0].Cmdline[0] = "changed"
	inventory.Clients[1].LoadAvg[0].([]interface{})[0] = 9.0
	inventory.Clients[1].GPUs[0].UtilizationGPU = 99
	stats := registry.Nodes["10.0.0.1"].WorkersStats[0].CoreWorkerStats
	stats.UsedResources["GPU"].ResourceSlots[0].Allocation = 9
	stats.NumPendingTasks = 42

	assert.Equal(t, "ray::worker", head.Host.Workers[0].Cmdline[0])
	assert.Equal(t, "ray::worker", head.Workers[0].Cmdline[0])
	assert.Equal(t, 0.5, head.Host.LoadAvg[0].([]interface{})[0])
	assert.Equal(t, float64(40), head.GPUs[0].UtilizationGPU)

	worker := head.Workers[0].Registry
	require.NotNil(t, worker)
	assert.Equal(t, 0.5, worker.CoreWorkerStats.UsedResources["GPU"].ResourceSlots[0].Allocation)
	assert.Equal(t, 0, worker.CoreWorkerStats.NumPendingTasks)
}

func TestAssemble_SingleNodeExpanded(t *testing.T) {
	inventory := &models.NodeInfoResponse{
		Clients: []models.NodeInfo{{IP: "10.0.0.1", Workers: []models.WorkerEntry{{PID: 1}}}},
	}

	view := Assemble(inventory, registryWithPIDs("10.0.0.1", 1))

	assert.True(t, view.InitiallyExpanded)
	assert.Equal(t, 1, view.Summary.WorkerCount)
}
