package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/forgo/nemesis/api/internal/model"
)

// SelectionInput is everything the selector needs, captured at one instant.
type SelectionInput struct {
	CycleID    string
	At         time.Time
	Population []string
	Answers    model.AnswerSnapshot
	History    model.History
}

// CycleSelection is the outcome of a batch selection, not yet persisted.
type CycleSelection struct {
	Records []*model.MatchRecord
	Skipped []model.SkippedUser
	Edges   int // eligible scored pairs considered
}

// edge is one scored, eligible pairing. In pairs mode user < enemy.
type edge struct {
	user    string
	enemy   string
	score   int
	overlap int
}

// MatchSelector turns answer snapshots into enemy pairings. It does no I/O.
type MatchSelector struct {
	policy model.MatchingPolicy
}

// NewMatchSelector creates a selector for the given policy
func NewMatchSelector(policy model.MatchingPolicy) (*MatchSelector, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return &MatchSelector{policy: policy}, nil
}

// Policy returns the selector's policy
func (s *MatchSelector) Policy() model.MatchingPolicy {
	return s.policy
}

// SelectForUser picks the single best enemy for userID.
// The highest score wins; equal scores go to the lowest candidate ID so the
// same inputs always give the same answer.
func (s *MatchSelector) SelectForUser(userID string, in SelectionInput) (*model.MatchRecord, error) {
	answers, ok := in.Answers[userID]
	if !ok || len(answers) == 0 {
		return nil, ErrNoEligibleCandidate
	}
	user := Candidate{ID: userID, Answers: answers}

	var best *edge
	for _, candidateID := range sortedIDs(in.Answers) {
		candidate := Candidate{ID: candidateID, Answers: in.Answers[candidateID]}
		if !Eligible(user, candidate, in.History, s.policy.EffectiveMinOverlap()) {
			continue
		}
		score, overlap, err := Score(user.Answers, candidate.Answers)
		if err != nil {
			continue
		}
		// Candidates are visited in ID order, so strict > keeps the lowest ID on ties.
		if best == nil || score > best.score {
			best = &edge{user: userID, enemy: candidateID, score: score, overlap: overlap}
		}
	}

	if best == nil {
		return nil, ErrNoEligibleCandidate
	}
	return s.record(*best, in), nil
}

// SelectForCycle pairs the population greedily by descending score.
//
// Every eligible pair is scored, then edges are taken highest first. An edge
// is accepted only while both ends still have capacity under the policy; the
// rest are skipped. Greedy is not a maximum-weight matching, but it is
// deterministic: ties break on user ID then enemy ID.
func (s *MatchSelector) SelectForCycle(in SelectionInput) *CycleSelection {
	edges := s.buildEdges(in)
	sortEdges(edges)

	result := &CycleSelection{Edges: len(edges)}
	hasEdge := make(map[string]bool)
	for _, e := range edges {
		hasEdge[e.user] = true
		hasEdge[e.enemy] = true
	}

	var matched map[string]bool
	switch s.policy.Mode {
	case model.SelectionModeDirected:
		matched = s.acceptDirected(edges, in, result)
	default:
		matched = s.acceptPairs(edges, in, result)
	}

	for _, userID := range sortedPopulation(in.Population) {
		if matched[userID] {
			continue
		}
		reason := model.SkipExhausted
		if !hasEdge[userID] {
			reason = model.SkipNoCandidate
		}
		result.Skipped = append(result.Skipped, model.SkippedUser{UserID: userID, Reason: reason})
	}

	return result
}

// acceptPairs consumes both users of each accepted pair.
func (s *MatchSelector) acceptPairs(edges []edge, in SelectionInput, result *CycleSelection) map[string]bool {
	used := make(map[string]bool)
	for _, e := range edges {
		if used[e.user] || used[e.enemy] {
			continue
		}
		used[e.user] = true
		used[e.enemy] = true

		result.Records = append(result.Records, s.record(e, in))
		if s.policy.MirrorPairs {
			mirrored := edge{user: e.enemy, enemy: e.user, score: e.score, overlap: e.overlap}
			result.Records = append(result.Records, s.record(mirrored, in))
		}
	}
	return used
}

// acceptDirected gives each user one outbound enemy and caps inbound.
func (s *MatchSelector) acceptDirected(edges []edge, in SelectionInput, result *CycleSelection) map[string]bool {
	outbound := make(map[string]bool)
	inbound := make(map[string]int)
	for _, e := range edges {
		if outbound[e.user] {
			continue
		}
		if s.policy.MaxInbound > 0 && inbound[e.enemy] >= s.policy.MaxInbound {
			continue
		}
		outbound[e.user] = true
		inbound[e.enemy]++
		result.Records = append(result.Records, s.record(e, in))
	}
	return outbound
}

// buildEdges scores every eligible pair in the population. Pairs mode yields
// one edge per unordered pair; directed mode yields both directions.
func (s *MatchSelector) buildEdges(in SelectionInput) []edge {
	ids := make([]string, 0, len(in.Population))
	for _, id := range sortedPopulation(in.Population) {
		if len(in.Answers[id]) > 0 {
			ids = append(ids, id)
		}
	}

	minOverlap := s.policy.EffectiveMinOverlap()
	var edges []edge
	for i := 0; i < len(ids); i++ {
		a := Candidate{ID: ids[i], Answers: in.Answers[ids[i]]}
		for j := i + 1; j < len(ids); j++ {
			b := Candidate{ID: ids[j], Answers: in.Answers[ids[j]]}
			if !Eligible(a, b, in.History, minOverlap) || !Eligible(b, a, in.History, minOverlap) {
				continue
			}
			score, overlap, err := Score(a.Answers, b.Answers)
			if err != nil {
				continue
			}
			edges = append(edges, edge{user: a.ID, enemy: b.ID, score: score, overlap: overlap})
			if s.policy.Mode == model.SelectionModeDirected {
				edges = append(edges, edge{user: b.ID, enemy: a.ID, score: score, overlap: overlap})
			}
		}
	}
	return edges
}

func (s *MatchSelector) record(e edge, in SelectionInput) *model.MatchRecord {
	cycleID := in.CycleID
	if cycleID == "" {
		cycleID = model.AdHocCycleID
	}
	return &model.MatchRecord{
		UserID:    e.user,
		EnemyID:   e.enemy,
		Score:     e.score,
		Overlap:   e.overlap,
		CycleID:   cycleID,
		MatchedAt: in.At,
	}
}

func sortEdges(edges []edge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].score != edges[j].score {
			return edges[i].score > edges[j].score
		}
		if edges[i].user != edges[j].user {
			return edges[i].user < edges[j].user
		}
		return edges[i].enemy < edges[j].enemy
	})
}

func sortedIDs(snapshot model.AnswerSnapshot) []string {
	ids := snapshot.Users()
	sort.Strings(ids)
	return ids
}

// sortedPopulation returns a sorted copy with duplicates removed.
func sortedPopulation(population []string) []string {
	seen := make(map[string]bool, len(population))
	ids := make([]string, 0, len(population))
	for _, id := range population {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
