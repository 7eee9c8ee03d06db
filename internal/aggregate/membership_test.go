package aggregate

import (
	"testing"

	"github.com/jaredcannon/clusterview/internal/models"
	"github.com/stretchr/testify/assert"
)

func registryWithPIDs(ip string, pids ...int) *models.RayletInfoResponse {
	stats := make([]models.RayletWorkerStats, 0, len(pids))
	for _, pid := range pids {
		stats = append(stats, models.RayletWorkerStats{PID: pid})
	}
	return &models.RayletInfoResponse{
		Nodes: map[string]models.RayletNode{
			ip: {WorkersStats: stats},
		},
	}
}

func nodeWithWorkers(ip string, pids ...int) models.NodeInfo {
	workers := make([]models.WorkerEntry, 0, len(pids))
	for _, pid := range pids {
		workers = append(workers, models.WorkerEntry{PID: pid})
	}
	return models.NodeInfo{IP: ip, Workers: workers}
}

func pidsOf(workers []models.WorkerEntry) []int {
	pids := make([]int, 0, len(workers))
	for _, w := range workers {
		pids = append(pids, w.PID)
	}
	return pids
}

func TestResolve(t *testing.T) {
	membership := Resolve(registryWithPIDs("10.0.0.1", 1, 3))

	assert.Len(t, membership, 1)
	assert.Equal(t, 2, membership.ForNode("10.0.0.1").Len())
	assert.True(t, membership.IsLive("10.0.0.1", 1))
	assert.True(t, membership.IsLive("10.0.0.1", 3))
	assert.False(t, membership.IsLive("10.0.0.1", 2))
}

func TestResolve_DuplicatePIDsFold(t *testing.T) {
	membership := Resolve(registryWithPIDs("10.0.0.1", 7, 7, 8, 7))

	assert.Equal(t, 2, membership.ForNode("10.0.0.1").Len())
}

func TestResolve_NilRegistry(t *testing.T) {
	membership := Resolve(nil)

	assert.NotNil(t, membership)
	assert.Empty(t, membership)
	assert.Equal(t, 0, membership.ForNode("10.0.0.1").Len())
}

func TestResolve_NodesAreIndependent(t *testing.T) {
	registry := &models.RayletInfoResponse{
		Nodes: map[string]models.RayletNode{
			"10.0.0.1": {WorkersStats: []models.RayletWorkerStats{{PID: 1}}},
			"10.0.0.2": {WorkersStats: []models.RayletWorkerStats{{PID: 2}}},
		},
	}

	membership := Resolve(registry)

	assert.True(t, membership.IsLive("10.0.0.1", 1))
	assert.False(t, membership.IsLive("10.0.0.1", 2))
	assert.True(t, membership.IsLive("10.0.0.2", 2))
	assert.False(t, membership.IsLive("10.0.0.2", 1))
}

func TestFilterWorkers_PreservesInventoryOrder(t *testing.T) {
	node := nodeWithWorkers("10.0.0.1", 1, 2, 3)
	membership := Resolve(registryWithPIDs("10.0.0.1", 3, 1))

	filtered := FilterWorkers(node, membership)

	assert.Equal(t, []int{1, 3}, pidsOf(filtered))
	// input untouched
	assert.Equal(t, []int{1, 2, 3}, pidsOf(node.Workers))
}

func TestFilterWorkers_UnknownNode(t *testing.T) {
	node := nodeWithWorkers("10.0.0.9", 1, 2)
	membership := Resolve(registryWithPIDs("10.0.0.1", 1, 2))

	filtered := FilterWorkers(node, membership)

	assert.NotNil(t, filtered)
	assert.Empty(t, filtered)
}

func TestFilterWorkers_SubsetOfMembership(t *testing.T) {
	node := nodeWithWorkers("10.0.0.1", 5, 4, 3, 2, 1, 4)
	membership := Resolve(registryWithPIDs("10.0.0.1", 4, 2, 9))

	filtered := FilterWorkers(node, membership)

	assert.Equal(t, []int{4, 2, 4}, pidsOf(filtered))
	for _, w := range filtered {
		assert.True(t, membership.IsLive("10.0.0.1", w.PID))
	}
}
