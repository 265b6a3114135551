// Package graph computes weighted-degree rankings and role-level rollups
// from aggregated communication edges.
package graph

import (
	"math"
	"sort"

	"github.com/orgmesh-labs/orgmesh/internal/models"
)

// RankEntry is one participant in a weighted-degree ranking.
type RankEntry struct {
	ParticipantID string  `json:"participant_id"`
	Name          string  `json:"name"`
	Weight        float64 `json:"weight"`
}

// Summary is the directed weighted view over all aggregated edges.
// Parallel edges between the same ordered pair (different channel or
// capacity) are summed into one logical edge.
type Summary struct {
	Nodes        int         `json:"nodes"`
	Edges        int         `json:"edges"`
	TopSenders   []RankEntry `json:"top_senders"`
	TopReceivers []RankEntry `json:"top_receivers"`
}

// pair is an ordered participant pair after parallel-edge merging.
type pair struct {
	from, to string
}

const topN = 10

// Summarize builds the in-memory graph view. A zero-node graph returns
// a well-defined empty summary.
func Summarize(participants []*models.Participant, edges []*models.CommunicationEdge) *Summary {
	s := &Summary{
		TopSenders:   []RankEntry{},
		TopReceivers: []RankEntry{},
	}
	if len(participants) == 0 {
		return s
	}

	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.FullName
	}
	s.Nodes = len(participants)

	merged := make(map[pair]float64)
	outDeg := make(map[string]float64)
	inDeg := make(map[string]float64)
	for _, e := range edges {
		merged[pair{e.Key.From, e.Key.To}] += e.Weight
		outDeg[e.Key.From] += e.Weight
		inDeg[e.Key.To] += e.Weight
	}
	s.Edges = len(merged)

	s.TopSenders = rank(outDeg, names)
	s.TopReceivers = rank(inDeg, names)
	return s
}

func rank(degrees map[string]float64, names map[string]string) []RankEntry {
	entries := make([]RankEntry, 0, len(degrees))
	for id, w := range degrees {
		entries = append(entries, RankEntry{
			ParticipantID: id,
			Name:          names[id],
			Weight:        round3(w),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Weight != entries[j].Weight {
			return entries[i].Weight > entries[j].Weight
		}
		return entries[i].ParticipantID < entries[j].ParticipantID // deterministic ties
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}
	return entries
}

// RoleNode is one role in the department rollup.
type RoleNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// RoleEdge is the aggregated weight between two roles.
type RoleEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// Rollup is the role-level aggregation of the communication graph.
type Rollup struct {
	Nodes []RoleNode `json:"nodes"`
	Edges []RoleEdge `json:"edges"`
}

// DepartmentRollup aggregates edge weights keyed by participant role.
// Edges where either endpoint's role is unknown are excluded.
func DepartmentRollup(participants []*models.Participant, edges []*models.CommunicationEdge) *Rollup {
	roleByID := make(map[string]string, len(participants))
	roleSet := make(map[string]bool)
	for _, p := range participants {
		roleByID[p.ID] = p.Role
		if knownRole(p.Role) {
			roleSet[p.Role] = true
		}
	}

	type roleKey struct{ source, target string }
	weights := make(map[roleKey]float64)
	for _, e := range edges {
		from := roleByID[e.Key.From]
		to := roleByID[e.Key.To]
		if !knownRole(from) || !knownRole(to) {
			continue
		}
		weights[roleKey{from, to}] += e.Weight
	}

	roles := make([]string, 0, len(roleSet))
	for r := range roleSet {
		roles = append(roles, r)
	}
	sort.Strings(roles)

	rollup := &Rollup{Nodes: []RoleNode{}, Edges: []RoleEdge{}}
	for _, r := range roles {
		rollup.Nodes = append(rollup.Nodes, RoleNode{ID: r, Label: r})
	}

	keys := make([]roleKey, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].target < keys[j].target
	})
	for _, k := range keys {
		rollup.Edges = append(rollup.Edges, RoleEdge{
			Source: k.source,
			Target: k.target,
			Weight: round3(weights[k]),
		})
	}
	return rollup
}

func knownRole(role string) bool {
	return role != "" && role != "Unknown"
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
