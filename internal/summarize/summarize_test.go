package summarize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/alertops/internal/domain"
	"github.com/ignite/alertops/internal/pkg/workerpool"
)

type fakeGenerator struct{ completion string }

func (f fakeGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return f.completion, nil
}

func TestComputeFromStoredFields(t *testing.T) {
	s := &Summarizer{}
	alert := domain.SummarizedAlert{}
	alert.GeneratedSummary = "CPU pegged."
	alert.RecommendedAction = "Check top processes"

	got, err := s.compute(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, "CPU pegged. Recommended action: Check top processes", got)
}

func TestComputeSkipsNAAction(t *testing.T) {
	s := &Summarizer{}
	alert := domain.SummarizedAlert{}
	alert.GeneratedSummary = "Machine restarted."
	alert.RecommendedAction = "N/A"

	got, err := s.compute(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, "Machine restarted.", got)
}

func TestComputeFallsBackToGenerator(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Close()

	s := &Summarizer{
		Generator: fakeGenerator{completion: "Generated summary."},
		Pool:      pool,
	}
	alert := domain.SummarizedAlert{}
	alert.Subject = "High CPU on hostA"
	alert.Content = "details"

	got, err := s.compute(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, "Generated summary.", got)
}
