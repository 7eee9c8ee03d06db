package aggregate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jaredcannon/clusterview/internal/models"
)

// FlattenActors walks the actor tree depth first and returns one row per
// actor, parents before their children and siblings ordered by actor id.
func FlattenActors(tree models.ActorTree) []models.ActorView {
	rows := make([]models.ActorView, 0, countActors(tree))
	return appendActors(rows, tree, "", 0)
}

func appendActors(rows []models.ActorView, tree models.ActorTree, parentID string, depth int) []models.ActorView {
	ids := make([]string, 0, len(tree))
	for id := range tree {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		actor := tree[id]
		rows = append(rows, actorRow(id, parentID, depth, &actor))
		rows = appendActors(rows, actor.Children, id, depth+1)
	}
	return rows
}

func actorRow(id, parentID string, depth int, actor *models.ActorInfo) models.ActorView {
	row := models.ActorView{
		ActorID:       id,
		ParentID:      parentID,
		Depth:         depth,
		JobID:         actor.JobID,
		State:         actor.State,
		NodeID:        actor.NodeID,
		PID:           actor.PID,
		PendingTasks:  actor.TaskQueueLength,
		ExecutedTasks: actor.NumExecutedTasks,
	}
	if actor.IPAddress != "" {
		row.Address = actor.IPAddress
		if actor.Port != 0 {
			row.Address += ":" + strconv.Itoa(actor.Port)
		}
	}

	if actor.Infeasible() {
		row.InvalidStateType = actor.InvalidStateType
		row.RequiredResources = RequiredResourceSummary(actor.RequiredResources)
		return row
	}
	row.ResourceSummary = ResourceSummary(actor.UsedResources)
	row.GPUAllocation = ResourceAllocation(actor.UsedResources, GPUResource)
	return row
}

// RequiredResourceSummary renders requested amounts as "1 CPU, 2 GPU",
// ordered by resource name
func RequiredResourceSummary(required map[string]float64) string {
	if len(required) == 0 {
		return ""
	}

	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, strconv.FormatFloat(required[name], 'f', -1, 64)+" "+name)
	}
	return strings.Join(parts, ", ")
}

func countActors(tree models.ActorTree) int {
	n := len(tree)
	for _, actor := range tree {
		n += countActors(actor.Children)
	}
	return n
}
