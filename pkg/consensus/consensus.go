// Package consensus implements the voting subsystem: ballot collection
// against a fixed option list and deterministic threshold evaluation across
// SIMPLE_MAJORITY/SUPERMAJORITY/UNANIMOUS/WEIGHTED vote types. State is
// guarded by a single mutex, matching the design's "consensus manager state:
// single mutex" rule.
package consensus

import (
	"sort"
	"sync"

	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/cuemby/conclave/pkg/ids"
	"github.com/cuemby/conclave/pkg/log"
	"github.com/rs/zerolog"
)

// Type is one of the recognised threshold rules.
type Type string

const (
	SimpleMajority Type = "SIMPLE_MAJORITY"
	Supermajority  Type = "SUPERMAJORITY"
	Unanimous      Type = "UNANIMOUS"
	Weighted       Type = "WEIGHTED"
)

const supermajorityShare = 0.66

// Vote is one in-flight or finalised vote.
type Vote struct {
	ID         string
	Question   string
	Options    []string
	Type       Type
	Ballots    map[string]string
	Weights    map[string]float64
	DeadlineMs int64
	Result     string
	Finalized  bool
}

// Manager holds all votes created during the process's lifetime.
type Manager struct {
	mu     sync.Mutex
	votes  map[string]*Vote
	logger zerolog.Logger
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{
		votes:  make(map[string]*Vote),
		logger: log.WithComponent("consensus"),
	}
}

// CreateVote records a new, unfinalised vote and returns its id.
func (m *Manager) CreateVote(question string, options []string, voteType Type, deadlineMs int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := ids.NewVoteID()
	m.votes[id] = &Vote{
		ID:         id,
		Question:   question,
		Options:    append([]string(nil), options...),
		Type:       voteType,
		Ballots:    make(map[string]string),
		Weights:    make(map[string]float64),
		DeadlineMs: deadlineMs,
	}
	return id
}

// CastVote records agentID's ballot for option, overwriting any previous
// ballot by the same agent. It fails if the vote is unknown, already
// finalised, or option is not among the vote's declared options.
func (m *Manager) CastVote(voteID, agentID, option string, weight float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.votes[voteID]
	if !ok || v.Finalized || !contains(v.Options, option) {
		return false
	}
	if weight <= 0 {
		weight = 1.0
	}
	v.Ballots[agentID] = option
	v.Weights[agentID] = weight
	return true
}

func contains(options []string, option string) bool {
	for _, o := range options {
		if o == option {
			return true
		}
	}
	return false
}

// FinalizeVote computes and records the vote's result, then marks it
// finalised. It is idempotent: a second call returns false and does not
// alter state. eligibleAgents is accepted but does not affect the
// calculation, reserved for future quorum enforcement.
func (m *Manager) FinalizeVote(voteID string, eligibleAgents []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.votes[voteID]
	if !ok || v.Finalized {
		return false
	}

	v.Result = computeResult(v)
	v.Finalized = true
	return true
}

func computeResult(v *Vote) string {
	totals := make(map[string]float64, len(v.Options))
	var totalWeight float64

	for agentID, option := range v.Ballots {
		w := 1.0
		if v.Type == Weighted {
			w = v.Weights[agentID]
		}
		totals[option] += w
		totalWeight += w
	}

	winner := ""
	var winnerWeight float64
	for _, option := range v.Options {
		w := totals[option]
		if winner == "" || w > winnerWeight {
			winner = option
			winnerWeight = w
		}
	}
	if winner == "" {
		return ""
	}

	share := 0.0
	if totalWeight > 0 {
		share = winnerWeight / totalWeight
	}

	switch v.Type {
	case SimpleMajority:
		if share > 0.5 {
			return winner
		}
		return ""
	case Supermajority:
		if share >= supermajorityShare {
			return winner
		}
		return ""
	case Unanimous:
		if share >= 1.0 {
			return winner
		}
		return ""
	case Weighted:
		return winner
	default:
		return ""
	}
}

// GetVote returns a copy of the vote with the given id.
func (m *Manager) GetVote(voteID string) (Vote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteID]
	if !ok {
		return Vote{}, false
	}
	return cloneVote(v), true
}

func cloneVote(v *Vote) Vote {
	cp := *v
	cp.Options = append([]string(nil), v.Options...)
	cp.Ballots = make(map[string]string, len(v.Ballots))
	for k, val := range v.Ballots {
		cp.Ballots[k] = val
	}
	cp.Weights = make(map[string]float64, len(v.Weights))
	for k, val := range v.Weights {
		cp.Weights[k] = val
	}
	return cp
}

// IsFinalized reports whether voteID has been finalised.
func (m *Manager) IsFinalized(voteID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteID]
	if !ok {
		return false, apierrors.ErrNotFound
	}
	return v.Finalized, nil
}

// GetAllVotes returns every vote, in id order.
func (m *Manager) GetAllVotes() []Vote {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Vote, 0, len(m.votes))
	for _, v := range m.votes {
		out = append(out, cloneVote(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
