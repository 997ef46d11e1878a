package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/alertops/internal/domain"
)

func alert(id, subject, trigger, resource string) domain.IngestedAlert {
	body := "Trigger name: " + trigger + "\nResource name: " + resource + "\n"
	return domain.IngestedAlert{
		EmailID:      id,
		Subject:      subject,
		Content:      body,
		ReceivedTime: time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC),
	}
}

func TestBatchKeepsFirstOccurrence(t *testing.T) {
	batch := []domain.IngestedAlert{
		alert("id-1", "High CPU on hostA", "High CPU", "hostA"),
		alert("id-2", "High CPU on hostA", "High CPU", "hostA"),
		alert("id-3", "High CPU on hostB", "High CPU", "hostB"),
	}

	res := Batch(batch)
	require.Len(t, res.Unique, 2)
	require.Len(t, res.Duplicates, 1)

	assert.Equal(t, "id-1", res.Unique[0].EmailID)
	assert.Equal(t, "id-3", res.Unique[1].EmailID)
	assert.Equal(t, "id-2", res.Duplicates[0].Alert.EmailID)
	assert.Equal(t, "id-1", res.Duplicates[0].CanonicalID)
}

func TestBatchDifferentSubjectsAreUnique(t *testing.T) {
	batch := []domain.IngestedAlert{
		alert("id-1", "High CPU on hostA", "High CPU", "hostA"),
		alert("id-2", "High CPU on hostA (repeat)", "High CPU", "hostA"),
	}

	res := Batch(batch)
	assert.Len(t, res.Unique, 2)
	assert.Empty(t, res.Duplicates)
}

func TestBatchFallsBackToSubjectMachine(t *testing.T) {
	// Bodies without structured lines fall back to the subject machine.
	a := domain.IngestedAlert{EmailID: "id-1", Subject: "DESDN01057 unreachable", Content: "plain text"}
	b := domain.IngestedAlert{EmailID: "id-2", Subject: "DESDN01057 unreachable", Content: "plain text"}

	res := Batch([]domain.IngestedAlert{a, b})
	assert.Len(t, res.Unique, 1)
	assert.Len(t, res.Duplicates, 1)
}

func TestBatchEmpty(t *testing.T) {
	res := Batch(nil)
	assert.Empty(t, res.Unique)
	assert.Empty(t, res.Duplicates)
}
