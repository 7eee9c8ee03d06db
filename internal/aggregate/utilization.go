package aggregate

import "github.com/jaredcannon/clusterview/internal/models"

// NodeUtilizationSample is one node's input to ClusterUtilization
type NodeUtilizationSample struct {
	DeviceCount int
	Utilization *float64
}

// NodeUtilization averages a node's device readings. A node with no devices
// has no utilization (nil), which is not the same as idle devices (0).
func NodeUtilization(readings []float64) *float64 {
	return Mean(readings)
}

// ClusterUtilization weights each node's utilization by its device count.
// Nodes without a utilization are left out rather than counted as 0; the
// result is nil when no node contributes.
func ClusterUtilization(nodes []NodeUtilizationSample) *float64 {
	values := make([]WeightedValue, 0, len(nodes))
	for _, node := range nodes {
		if node.Utilization == nil || node.DeviceCount <= 0 {
			continue
		}
		values = append(values, WeightedValue{
			Weight: float64(node.DeviceCount),
			Value:  *node.Utilization,
		})
	}
	return WeightedAverage(values)
}

// NodeGPUUtilization is NodeUtilization over a node's GPU readings
func NodeGPUUtilization(node models.NodeInfo) *float64 {
	return NodeUtilization(node.GPUUtilizations())
}
