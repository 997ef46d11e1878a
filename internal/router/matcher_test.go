package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/alertops/internal/domain"
)

func referenceRows() []domain.TriggerMapping {
	return []domain.TriggerMapping{
		{ID: 1, TriggerName: "High CPU", Team: "SAP Basis", Priority: domain.PriorityP1,
			ResponsiblePersons: "basis.oncall@example.com", RecommendedAction: "Check top processes"},
		{ID: 2, TriggerName: "CITRIX Machines: Less 5GB AND less 10 Percent", Team: "IBS - CITRIX",
			Priority: domain.PriorityP2},
		{ID: 3, TriggerName: "Exchange DB Schwenk", Team: "IBS - Mail Service",
			Priority: domain.PriorityInformational},
	}
}

func TestMatchExactTrigger(t *testing.T) {
	m := NewMatcher(referenceRows())

	got := m.Match("High CPU")
	assert.Equal(t, "SAP Basis", got.Team)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, "High CPU", got.MatchedTrigger)
	assert.Equal(t, "basis.oncall@example.com", got.ResponsiblePerson)
	require.NotNil(t, got.Row)
	assert.Equal(t, int64(1), got.Row.ID)
}

func TestMatchTolerantOfDecoration(t *testing.T) {
	m := NewMatcher(referenceRows())

	got := m.Match("CITRIX Machines: Less 5GB AND less 10 Percent <controlup://incidents/whatever>")
	assert.Equal(t, "IBS - CITRIX", got.Team)
	assert.GreaterOrEqual(t, got.Confidence, 0.9)
}

func TestMatchFallsBackToGeneral(t *testing.T) {
	m := NewMatcher(referenceRows())

	got := m.Match("Completely unrelated alert text")
	assert.Equal(t, GeneralTeam, got.Team)
	assert.Less(t, got.Confidence, 0.75)
	assert.Nil(t, got.Row)
	assert.Empty(t, got.ResponsiblePerson)
}

func TestMatchCacheClearedOnReload(t *testing.T) {
	m := NewMatcher(referenceRows())

	first := m.Match("High CPU")
	assert.Equal(t, "SAP Basis", first.Team)

	// Repeat hit comes from the cache.
	assert.Equal(t, first, m.Match("High CPU"))

	rows := referenceRows()
	rows[0].Team = "SAP Operations"
	m.Reload(rows)

	second := m.Match("High CPU")
	assert.Equal(t, "SAP Operations", second.Team, "reload must invalidate the cache")
}

func TestNearest(t *testing.T) {
	m := NewMatcher(referenceRows())

	row, score := m.Nearest("exchange db schwenk")
	require.NotNil(t, row)
	assert.Equal(t, "Exchange DB Schwenk", row.TriggerName)
	assert.Equal(t, 1.0, score)

	empty := NewMatcher(nil)
	row, score = empty.Nearest("anything")
	assert.Nil(t, row)
	assert.Zero(t, score)
}
