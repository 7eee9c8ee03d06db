// Package snapshot decodes the monitoring endpoint's JSON responses.
//
// Decoding is fail-open: a node whose record has the wrong shape is kept as an
// empty node (or skipped when even its address cannot be read) instead of
// failing the whole snapshot. Only a body that is not a JSON object at all is
// an error.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jaredcannon/clusterview/internal/models"
)

// ErrUpstream is wrapped by errors the endpoint reported itself
var ErrUpstream = errors.New("monitoring endpoint returned an error")

// Envelope is the wrapper every monitoring endpoint response comes in
type Envelope struct {
	Result    json.RawMessage `json:"result"`
	Timestamp float64         `json:"timestamp"`
	Error     *string         `json:"error"`
}

// DecodeEnvelope unwraps a response body and returns its result payload
func DecodeEnvelope(body []byte) (json.RawMessage, float64, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, fmt.Errorf("failed to decode response envelope: %w", err)
	}
	if env.Error != nil && *env.Error != "" {
		return nil, env.Timestamp, fmt.Errorf("%w: %s", ErrUpstream, *env.Error)
	}
	return env.Result, env.Timestamp, nil
}

type rawInventory struct {
	Clients     json.RawMessage `json:"clients"`
	LogCounts   json.RawMessage `json:"log_counts"`
	ErrorCounts json.RawMessage `json:"error_counts"`
}

// ParseInventory decodes a node_info payload
func ParseInventory(data []byte) (*models.NodeInfoResponse, error) {
	var raw rawInventory
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode node info: %w", err)
	}

	inventory := &models.NodeInfoResponse{
		Clients:     parseClients(raw.Clients),
		LogCounts:   parseCounterTable("log_counts", raw.LogCounts),
		ErrorCounts: parseCounterTable("error_counts", raw.ErrorCounts),
	}
	return inventory, nil
}

func parseClients(data json.RawMessage) []models.NodeInfo {
	if isAbsent(data) {
		return []models.NodeInfo{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		log.Printf("[Snapshot] clients is not a list, treating inventory as empty: %v", err)
		return []models.NodeInfo{}
	}

	clients := make([]models.NodeInfo, 0, len(items))
	for i, item := range items {
		var node models.NodeInfo
		err := json.Unmarshal(item, &node)
		if err == nil {
			if node.Workers == nil {
				node.Workers = []models.WorkerEntry{}
			}
			clients = append(clients, node)
			continue
		}
		log.Printf("[Snapshot] Malformed client at index %d, keeping it without workers: %v", i, err)

		ip, hostname, ok := salvageIdentity(item)
		if !ok {
			log.Printf("[Snapshot] Skipping client at index %d: no readable ip", i)
			continue
		}
		clients = append(clients, models.NodeInfo{
			IP:       ip,
			Hostname: hostname,
			Workers:  []models.WorkerEntry{},
		})
	}
	return clients
}

// salvageIdentity reads just the address fields of a malformed client
func salvageIdentity(item json.RawMessage) (string, string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return "", "", false
	}

	var ip string
	if err := json.Unmarshal(fields["ip"], &ip); err != nil || ip == "" {
		return "", "", false
	}

	var hostname string
	if raw, ok := fields["hostname"]; ok {
		_ = json.Unmarshal(raw, &hostname)
	}
	return ip, hostname, true
}

func parseCounterTable(name string, data json.RawMessage) models.CounterTable {
	table := models.CounterTable{}
	if isAbsent(data) {
		return table
	}

	var byNode map[string]json.RawMessage
	if err := json.Unmarshal(data, &byNode); err != nil {
		log.Printf("[Snapshot] %s is not an object, ignoring it: %v", name, err)
		return table
	}

	for ip, raw := range byNode {
		var byPID map[string]int
		if err := json.Unmarshal(raw, &byPID); err != nil {
			log.Printf("[Snapshot] Ignoring malformed %s for node %s: %v", name, ip, err)
			continue
		}
		table[ip] = byPID
	}
	return table
}

type rawRegistry struct {
	Nodes  json.RawMessage `json:"nodes"`
	Actors json.RawMessage `json:"actors"`
}

// rawActor defers decoding of children so one bad subtree is dropped alone
type rawActor struct {
	models.ActorInfo
	Children json.RawMessage `json:"children"`
}

// ParseRegistry decodes a raylet_info payload
func ParseRegistry(data []byte) (*models.RayletInfoResponse, error) {
	var raw rawRegistry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode raylet info: %w", err)
	}

	registry := &models.RayletInfoResponse{
		Nodes:  map[string]models.RayletNode{},
		Actors: parseActors(raw.Actors),
	}
	if isAbsent(raw.Nodes) {
		return registry, nil
	}

	var byNode map[string]json.RawMessage
	if err := json.Unmarshal(raw.Nodes, &byNode); err != nil {
		log.Printf("[Snapshot] nodes is not an object, treating registry as empty: %v", err)
		return registry, nil
	}

	for ip, item := range byNode {
		var node models.RayletNode
		if err := json.Unmarshal(item, &node); err != nil {
			log.Printf("[Snapshot] Malformed registry node %s, treating it as having no workers: %v", ip, err)
			node = models.RayletNode{}
		}
		if node.WorkersStats == nil {
			node.WorkersStats = []models.RayletWorkerStats{}
		}
		registry.Nodes[ip] = node
	}
	return registry, nil
}

// parseActors decodes an actor tree. A malformed actor is dropped along with
// its children; its siblings are kept.
func parseActors(data json.RawMessage) models.ActorTree {
	tree := models.ActorTree{}
	if isAbsent(data) {
		return tree
	}

	var byID map[string]json.RawMessage
	if err := json.Unmarshal(data, &byID); err != nil {
		log.Printf("[Snapshot] actors is not an object, treating actor tree as empty: %v", err)
		return tree
	}

	for id, item := range byID {
		var actor rawActor
		if err := json.Unmarshal(item, &actor); err != nil {
			log.Printf("[Snapshot] Ignoring malformed actor %s: %v", id, err)
			continue
		}
		info := actor.ActorInfo
		if info.ActorID == "" {
			info.ActorID = id
		}
		info.Children = parseActors(actor.Children)
		tree[id] = info
	}
	return tree
}

func isAbsent(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
