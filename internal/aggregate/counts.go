package aggregate

import (
	"strconv"

	"github.com/jaredcannon/clusterview/internal/models"
)

// AggregateCounts folds a raw counter table into per-node counts restricted to
// live workers. Every node in membership gets a zero entry for each of its
// live pids. Counts for unknown nodes and non-member pids are dropped, as are
// keys that are not a pid in canonical decimal form. Counts overwrite rather
// than add, since the table already holds absolute per-tick values.
func AggregateCounts(counters models.CounterTable, membership MembershipSet) map[string]models.AggregatedCounts {
	result := make(map[string]models.AggregatedCounts, len(membership))
	for ip, pids := range membership {
		perWorker := make(map[int]int, len(pids))
		for pid := range pids {
			perWorker[pid] = 0
		}
		result[ip] = models.AggregatedCounts{PerWorker: perWorker}
	}

	for ip, byPID := range counters {
		counts, ok := result[ip]
		if !ok {
			continue
		}
		live := membership[ip]
		for rawPID, count := range byPID {
			pid, ok := parsePID(rawPID)
			if !ok || !live.Contains(pid) {
				continue
			}
			counts.PerWorker[pid] = count
		}
	}

	for ip, counts := range result {
		total := 0
		for _, count := range counts.PerWorker {
			total += count
		}
		counts.Total = total
		result[ip] = counts
	}

	return result
}

// EmptyCounts returns counts with no workers, used for nodes the registry
// does not know about
func EmptyCounts() models.AggregatedCounts {
	return models.AggregatedCounts{PerWorker: map[int]int{}}
}

// countsFor returns the aggregated counts of a node or EmptyCounts
func countsFor(aggregated map[string]models.AggregatedCounts, ip string) models.AggregatedCounts {
	if counts, ok := aggregated[ip]; ok {
		return counts
	}
	return EmptyCounts()
}

// parsePID accepts only canonical decimal pids, so "01" and "1" can never
// both land on pid 1
func parsePID(raw string) (int, bool) {
	pid, err := strconv.Atoi(raw)
	if err != nil || strconv.Itoa(pid) != raw {
		return 0, false
	}
	return pid, true
}
