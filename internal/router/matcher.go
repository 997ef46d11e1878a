package router

import (
	"sync"
	"sync/atomic"

	"github.com/ignite/alertops/internal/domain"
)

const (
	// shortCircuitScore ends the scan as soon as a reference trigger
	// scores this high.
	shortCircuitScore = 0.9
	// minConfidence is the floor below which the match falls back to the
	// General team.
	minConfidence = 0.75
)

// GeneralTeam owns alerts no reference trigger claims.
const GeneralTeam = "General"

// Match is the routing result for one trigger name.
type Match struct {
	Team              string
	Confidence        float64
	MatchedTrigger    string
	ResponsiblePerson string
	// Row is the matched reference row, nil on the General fallback.
	Row *domain.TriggerMapping
}

type snapshot struct {
	rows       []domain.TriggerMapping
	normalized []string
}

// Matcher fuzzy-matches trigger names against the reference snapshot.
// The snapshot is read-mostly and replaced wholesale by Reload; the match
// cache is invalidated in the same operation.
type Matcher struct {
	snap  atomic.Pointer[snapshot]
	cache atomic.Pointer[sync.Map]
}

// NewMatcher builds a matcher over the given reference rows.
func NewMatcher(rows []domain.TriggerMapping) *Matcher {
	m := &Matcher{}
	m.Reload(rows)
	return m
}

// Reload swaps in a new reference snapshot and clears the match cache.
// Readers in flight keep the snapshot they started with.
func (m *Matcher) Reload(rows []domain.TriggerMapping) {
	s := &snapshot{rows: rows, normalized: make([]string, len(rows))}
	for i := range rows {
		s.normalized[i] = Normalize(rows[i].TriggerName)
	}
	m.snap.Store(s)
	m.cache.Store(&sync.Map{})
}

// Match resolves a trigger name to its owning team. Results are memoized
// per normalized input until the next Reload.
func (m *Matcher) Match(trigger string) Match {
	key := Normalize(trigger)
	cache := m.cache.Load()
	if v, ok := cache.Load(key); ok {
		return v.(Match)
	}

	result := m.scan(key)
	cache.Store(key, result)
	return result
}

// Nearest returns the single closest reference row and its score, with no
// confidence floor. The classifier uses this as its trigger knowledge base.
func (m *Matcher) Nearest(trigger string) (*domain.TriggerMapping, float64) {
	s := m.snap.Load()
	best, bestScore := -1, 0.0
	key := Normalize(trigger)
	for i := range s.rows {
		score := Similarity(key, s.normalized[i])
		if score > bestScore {
			best, bestScore = i, score
			if score >= shortCircuitScore {
				break
			}
		}
	}
	if best < 0 {
		return nil, 0
	}
	return &s.rows[best], bestScore
}

func (m *Matcher) scan(normalizedTrigger string) Match {
	row, score := m.Nearest(normalizedTrigger)
	if row == nil || score < minConfidence {
		result := Match{Team: GeneralTeam, Confidence: score}
		if row != nil {
			result.MatchedTrigger = row.TriggerName
		}
		return result
	}
	return Match{
		Team:              row.Team,
		Confidence:        score,
		MatchedTrigger:    row.TriggerName,
		ResponsiblePerson: row.ResponsiblePersons,
		Row:               row,
	}
}
