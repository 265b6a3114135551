package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgmesh-labs/orgmesh/internal/models"
)

func participant(id, name, role string) *models.Participant {
	return &models.Participant{ID: id, Email: id + "@acme.com", FullName: name, Role: role}
}

func edge(from, to, capacity string, weight float64) *models.CommunicationEdge {
	return &models.CommunicationEdge{
		Key:    models.EdgeKey{From: from, To: to, Channel: "email", Capacity: capacity},
		Weight: weight,
	}
}

func TestSummarizeEmptyGraph(t *testing.T) {
	s := Summarize(nil, nil)
	assert.Equal(t, 0, s.Nodes)
	assert.Equal(t, 0, s.Edges)
	assert.NotNil(t, s.TopSenders)
	assert.Empty(t, s.TopSenders)
	assert.NotNil(t, s.TopReceivers)
	assert.Empty(t, s.TopReceivers)
}

func TestSummarizeMergesParallelEdges(t *testing.T) {
	participants := []*models.Participant{
		participant("p1", "Ava", "Engineer"),
		participant("p2", "Ben", "Engineer"),
	}
	// two capacities between the same ordered pair count as one edge
	edges := []*models.CommunicationEdge{
		edge("p1", "p2", "FYI", 2.0),
		edge("p1", "p2", "decision", 1.5),
		edge("p2", "p1", "FYI", 1.0),
	}

	s := Summarize(participants, edges)
	assert.Equal(t, 2, s.Nodes)
	assert.Equal(t, 2, s.Edges)

	require.Len(t, s.TopSenders, 2)
	assert.Equal(t, "p1", s.TopSenders[0].ParticipantID)
	assert.Equal(t, "Ava", s.TopSenders[0].Name)
	assert.Equal(t, 3.5, s.TopSenders[0].Weight)

	require.Len(t, s.TopReceivers, 2)
	assert.Equal(t, "p2", s.TopReceivers[0].ParticipantID)
	assert.Equal(t, 3.5, s.TopReceivers[0].Weight)
}

func TestSummarizeRankingCapsAndTies(t *testing.T) {
	var participants []*models.Participant
	var edges []*models.CommunicationEdge
	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("p%02d", i)
		participants = append(participants, participant(id, id, "Unknown"))
		edges = append(edges, edge(id, "sink", "FYI", 1.0))
	}
	participants = append(participants, participant("sink", "Sink", "Unknown"))

	s := Summarize(participants, edges)
	require.Len(t, s.TopSenders, 10)
	// equal weights rank by participant id for a stable listing
	assert.Equal(t, "p00", s.TopSenders[0].ParticipantID)
	assert.Equal(t, "p09", s.TopSenders[9].ParticipantID)
}

func TestDepartmentRollup(t *testing.T) {
	participants := []*models.Participant{
		participant("p1", "Ava", "Engineer"),
		participant("p2", "Ben", "Sales"),
		participant("p3", "Cara", "Engineer"),
		participant("p4", "Dan", "Unknown"),
	}
	edges := []*models.CommunicationEdge{
		edge("p1", "p2", "FYI", 2.0),
		edge("p3", "p2", "decision", 1.0),
		edge("p1", "p3", "FYI", 4.0),
		edge("p1", "p4", "FYI", 9.0), // unknown endpoint excluded
	}

	r := DepartmentRollup(participants, edges)

	require.Len(t, r.Nodes, 2)
	assert.Equal(t, "Engineer", r.Nodes[0].ID)
	assert.Equal(t, "Sales", r.Nodes[1].ID)

	require.Len(t, r.Edges, 2)
	assert.Equal(t, RoleEdge{Source: "Engineer", Target: "Engineer", Weight: 4.0}, r.Edges[0])
	assert.Equal(t, RoleEdge{Source: "Engineer", Target: "Sales", Weight: 3.0}, r.Edges[1])
}

func TestDepartmentRollupEmpty(t *testing.T) {
	r := DepartmentRollup(nil, nil)
	assert.NotNil(t, r.Nodes)
	assert.Empty(t, r.Nodes)
	assert.NotNil(t, r.Edges)
	assert.Empty(t, r.Edges)
}
