package aggregate

import "github.com/jaredcannon/clusterview/internal/models"

// PIDSet is a set of process ids
type PIDSet map[int]struct{}

// Contains reports whether pid is in the set
func (s PIDSet) Contains(pid int) bool {
	_, ok := s[pid]
	return ok
}

// Len returns the number of pids in the set
func (s PIDSet) Len() int {
	return len(s)
}

// MembershipSet maps a node IP to the pids the registry reports as live on it
type MembershipSet map[string]PIDSet

// ForNode returns the live pids of a node. Unknown nodes yield an empty set.
func (m MembershipSet) ForNode(ip string) PIDSet {
	if pids, ok := m[ip]; ok {
		return pids
	}
	return PIDSet{}
}

// IsLive reports whether pid is a live member on node ip
func (m MembershipSet) IsLive(ip string, pid int) bool {
	return m.ForNode(ip).Contains(pid)
}

// Resolve collects, per node, the pids listed in the registry's worker stats.
// A nil registry resolves to an empty membership set.
func Resolve(registry *models.RayletInfoResponse) MembershipSet {
	membership := make(MembershipSet)
	if registry == nil {
		return membership
	}

	for ip, node := range registry.Nodes {
		pids := make(PIDSet, len(node.WorkersStats))
		for _, worker := range node.WorkersStats {
			pids[worker.PID] = struct{}{}
		}
		membership[ip] = pids
	}
	return membership
}

// FilterWorkers returns the node's inventory workers that are live members,
// keeping inventory order. The result shares no memory with node.
func FilterWorkers(node models.NodeInfo, membership MembershipSet) []models.WorkerEntry {
	live := membership.ForNode(node.IP)
	filtered := make([]models.WorkerEntry, 0, len(node.Workers))
	for _, worker := range node.Workers {
		if live.Contains(worker.PID) {
			filtered = append(filtered, worker.Clone())
		}
	}
	return filtered
}

// findRegistryWorker returns the first registry entry for pid on a node
func findRegistryWorker(node *models.RayletNode, pid int) *models.RayletWorkerStats {
	if node == nil {
		return nil
	}
	for i := range node.WorkersStats {
		if node.WorkersStats[i].PID == pid {
			stats := node.WorkersStats[i].Clone()
			return &stats
		}
	}
	return nil
}
