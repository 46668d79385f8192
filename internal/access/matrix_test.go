package access

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement-backend/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func TestBuildApprovalMapDefaultsNullToTrue(t *testing.T) {
	rows := []models.ProjectMembership{
		{ProjectID: "p1", UserID: "u1", RequiresApproval: nil},
		{ProjectID: "p1", UserID: "u2", RequiresApproval: boolPtr(false)},
		{ProjectID: "p2", UserID: "u1", RequiresApproval: boolPtr(true)},
	}

	m := BuildApprovalMap(rows)

	require.Len(t, m, 2)
	assert.True(t, m["p1"]["u1"], "unset flag must count as approval required")
	assert.False(t, m["p1"]["u2"])
	assert.True(t, m["p2"]["u1"])
}

func TestBuildApprovalMapDropsIncompleteRows(t *testing.T) {
	rows := []models.ProjectMembership{
		{ProjectID: "", UserID: "u1"},
		{ProjectID: "p1", UserID: ""},
		{ProjectID: "p1", UserID: "u1"},
	}

	m := BuildApprovalMap(rows)

	require.Len(t, m, 1)
	require.Len(t, m["p1"], 1)
}

func TestBuildApprovalMapOrderIndependent(t *testing.T) {
	rows := []models.ProjectMembership{
		{ProjectID: "p1", UserID: "u1", RequiresApproval: nil},
		{ProjectID: "p1", UserID: "u2", RequiresApproval: boolPtr(false)},
		{ProjectID: "p2", UserID: "u3", RequiresApproval: boolPtr(true)},
		{ProjectID: "p3", UserID: "u1", RequiresApproval: boolPtr(false)},
	}

	want := BuildApprovalMap(rows)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.ProjectMembership, len(rows))
		copy(shuffled, rows)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.Equal(t, want, BuildApprovalMap(shuffled))
	}
}

func TestBuildApprovalMapEmptyInput(t *testing.T) {
	m := BuildApprovalMap(nil)
	require.NotNil(t, m)
	assert.Empty(t, m)
}
