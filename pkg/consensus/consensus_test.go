package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupermajorityThresholdScenario(t *testing.T) {
	m := New()
	voteID := m.CreateVote("merge PR?", []string{"approve", "reject", "request_changes"}, Supermajority, 0)

	assert.True(t, m.CastVote(voteID, "a1", "approve", 1))
	assert.True(t, m.CastVote(voteID, "a2", "approve", 1))
	assert.True(t, m.CastVote(voteID, "a3", "request_changes", 1))
	assert.True(t, m.CastVote(voteID, "a4", "approve", 1))

	assert.True(t, m.FinalizeVote(voteID, nil))
	v, ok := m.GetVote(voteID)
	require.True(t, ok)
	assert.Equal(t, "approve", v.Result)
}

func TestSupermajorityFailsJustBelowThreshold(t *testing.T) {
	m := New()
	voteID := m.CreateVote("merge PR?", []string{"approve", "reject", "request_changes"}, Supermajority, 0)

	m.CastVote(voteID, "a1", "approve", 1)
	m.CastVote(voteID, "a2", "approve", 1)
	m.CastVote(voteID, "a3", "request_changes", 1)
	m.CastVote(voteID, "a4", "reject", 1)

	m.FinalizeVote(voteID, nil)
	v, _ := m.GetVote(voteID)
	assert.Equal(t, "", v.Result)
}

func TestCastVoteRejectsUnknownOption(t *testing.T) {
	m := New()
	voteID := m.CreateVote("q", []string{"yes", "no"}, SimpleMajority, 0)
	assert.False(t, m.CastVote(voteID, "a1", "maybe", 1))
}

func TestRecastOverwritesPreviousBallot(t *testing.T) {
	m := New()
	voteID := m.CreateVote("q", []string{"yes", "no"}, SimpleMajority, 0)
	m.CastVote(voteID, "a1", "yes", 1)
	m.CastVote(voteID, "a1", "no", 1)

	m.FinalizeVote(voteID, nil)
	v, _ := m.GetVote(voteID)
	assert.Equal(t, "no", v.Result)
}

func TestFinalizeVoteIdempotent(t *testing.T) {
	m := New()
	voteID := m.CreateVote("q", []string{"yes", "no"}, SimpleMajority, 0)
	m.CastVote(voteID, "a1", "yes", 1)

	assert.True(t, m.FinalizeVote(voteID, nil))
	first, _ := m.GetVote(voteID)

	assert.False(t, m.FinalizeVote(voteID, nil))
	second, _ := m.GetVote(voteID)
	assert.Equal(t, first, second)
}

func TestCastVoteFailsAfterFinalization(t *testing.T) {
	m := New()
	voteID := m.CreateVote("q", []string{"yes", "no"}, SimpleMajority, 0)
	m.FinalizeVote(voteID, nil)
	assert.False(t, m.CastVote(voteID, "a1", "yes", 1))
}

func TestWeightedVoteAlwaysReturnsWinner(t *testing.T) {
	m := New()
	voteID := m.CreateVote("q", []string{"yes", "no"}, Weighted, 0)
	m.CastVote(voteID, "a1", "yes", 0.3)
	m.CastVote(voteID, "a2", "no", 0.1)

	m.FinalizeVote(voteID, nil)
	v, _ := m.GetVote(voteID)
	assert.Equal(t, "yes", v.Result)
}

func TestUnanimousRequiresFullShare(t *testing.T) {
	m := New()
	voteID := m.CreateVote("q", []string{"yes", "no"}, Unanimous, 0)
	m.CastVote(voteID, "a1", "yes", 1)
	m.CastVote(voteID, "a2", "yes", 1)

	m.FinalizeVote(voteID, nil)
	v, _ := m.GetVote(voteID)
	assert.Equal(t, "yes", v.Result)

	voteID2 := m.CreateVote("q2", []string{"yes", "no"}, Unanimous, 0)
	m.CastVote(voteID2, "a1", "yes", 1)
	m.CastVote(voteID2, "a2", "no", 1)
	m.FinalizeVote(voteID2, nil)
	v2, _ := m.GetVote(voteID2)
	assert.Equal(t, "", v2.Result)
}

func TestTieBrokenByOptionDeclarationOrder(t *testing.T) {
	m := New()
	voteID := m.CreateVote("q", []string{"b", "a"}, Weighted, 0)
	m.CastVote(voteID, "a1", "a", 1)
	m.CastVote(voteID, "a2", "b", 1)

	m.FinalizeVote(voteID, nil)
	v, _ := m.GetVote(voteID)
	assert.Equal(t, "b", v.Result)
}

func TestIsFinalizedUnknownVoteReturnsError(t *testing.T) {
	m := New()
	_, err := m.IsFinalized("ghost")
	assert.Error(t, err)
}
