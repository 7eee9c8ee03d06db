package aggregate

import (
	"testing"

	"github.com/jaredcannon/clusterview/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	assert.Equal(t, 0.0, Sum(nil))
	assert.Equal(t, 0.0, Sum([]float64{}))
	assert.InDelta(t, 6.5, Sum([]float64{1, 2.5, 3}), 1e-9)
}

func TestMean_Empty(t *testing.T) {
	assert.Nil(t, Mean(nil))
	assert.Nil(t, Mean([]float64{}))
}

func TestMean(t *testing.T) {
	mean := Mean([]float64{10, 20, 30})
	require.NotNil(t, mean)
	assert.InDelta(t, 20.0, *mean, 1e-9)
}

func TestWeightedAverage(t *testing.T) {
	// 4 devices at 50% and 8 devices at 75% -> (200 + 600) / 12
	avg := WeightedAverage([]WeightedValue{
		{Weight: 4, Value: 50},
		{Weight: 8, Value: 75},
	})
	require.NotNil(t, avg)
	assert.InDelta(t, 800.0/12.0, *avg, 1e-9)
}

func TestWeightedAverage_NoWeight(t *testing.T) {
	assert.Nil(t, WeightedAverage(nil))
	assert.Nil(t, WeightedAverage([]WeightedValue{{Weight: 0, Value: 80}}))
}

func TestSumAllocations(t *testing.T) {
	slots := []models.ResourceSlot{
		{Slot: 0, Allocation: 0.5},
		{Slot: 1, Allocation: 0.25},
	}
	assert.InDelta(t, 0.75, SumAllocations(slots), 1e-9)
	assert.Equal(t, 0.0, SumAllocations(nil))
}

func TestSumAllocations_DoesNotClampToCapacity(t *testing.T) {
	slots := []models.ResourceSlot{
		{Slot: 0, Allocation: 1},
		{Slot: 0, Allocation: 1},
	}
	assert.InDelta(t, 2.0, SumAllocations(slots), 1e-9)
}

func TestAllocationsByResource(t *testing.T) {
	used := map[string]models.ResourceAllocations{
		"GPU":            {ResourceSlots: []models.ResourceSlot{{Allocation: 0.5}, {Slot: 1, Allocation: 0.25}}},
		"CPU":            {ResourceSlots: []models.ResourceSlot{{Allocation: 1}}},
		"accelerator_v4": {},
	}

	totals := AllocationsByResource(used)

	assert.Len(t, totals, 3)
	assert.InDelta(t, 0.75, totals["GPU"], 1e-9)
	assert.InDelta(t, 1.0, totals["CPU"], 1e-9)
	assert.Equal(t, 0.0, totals["accelerator_v4"])
}

func TestResourceAllocation_Missing(t *testing.T) {
	assert.Nil(t, ResourceAllocation(nil, GPUResource))

	used := map[string]models.ResourceAllocations{
		"CPU": {ResourceSlots: []models.ResourceSlot{{Allocation: 1}}},
	}
	assert.Nil(t, ResourceAllocation(used, GPUResource))

	cpu := ResourceAllocation(used, "CPU")
	require.NotNil(t, cpu)
	assert.Equal(t, 1.0, *cpu)
}

func TestResourceSummary(t *testing.T) {
	used := map[string]models.ResourceAllocations{
		"GPU": {ResourceSlots: []models.ResourceSlot{{Allocation: 0.5}, {Slot: 1, Allocation: 0.25}}},
		"CPU": {ResourceSlots: []models.ResourceSlot{{Allocation: 1}}},
	}

	assert.Equal(t, "1 CPU, 0.75 GPU", ResourceSummary(used))
	assert.Equal(t, "", ResourceSummary(nil))
}
