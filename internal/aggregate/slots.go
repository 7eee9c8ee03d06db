package aggregate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jaredcannon/clusterview/internal/models"
)

// GPUResource is the resource name GPU slots are reported under
const GPUResource = "GPU"

// SumAllocations adds up the allocation of every slot. It does not check the
// total against device capacity.
func SumAllocations(slots []models.ResourceSlot) float64 {
	total := 0.0
	for _, slot := range slots {
		total += slot.Allocation
	}
	return total
}

// AllocationsByResource sums the slots held for each resource name
func AllocationsByResource(used map[string]models.ResourceAllocations) map[string]float64 {
	totals := make(map[string]float64, len(used))
	for name, allocations := range used {
		totals[name] = SumAllocations(allocations.ResourceSlots)
	}
	return totals
}

// ResourceAllocation returns the summed allocation held for resource, or nil
// when the resource is not reported at all
func ResourceAllocation(used map[string]models.ResourceAllocations, resource string) *float64 {
	allocations, ok := used[resource]
	if !ok {
		return nil
	}
	total := SumAllocations(allocations.ResourceSlots)
	return &total
}

// ResourceSummary renders allocations as "0.75 GPU, 1 CPU", ordered by
// resource name. It returns "" when nothing is allocated.
func ResourceSummary(used map[string]models.ResourceAllocations) string {
	if len(used) == 0 {
		return ""
	}

	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		total := SumAllocations(used[name].ResourceSlots)
		parts = append(parts, strconv.FormatFloat(total, 'f', -1, 64)+" "+name)
	}
	return strings.Join(parts, ", ")
}
