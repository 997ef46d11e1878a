// Package dedup filters duplicate alerts inside one ingestion batch by
// content signature. Time-window and cross-ticket suppression live with
// the stage consumers that enforce them.
package dedup

import (
	"github.com/ignite/alertops/internal/domain"
	"github.com/ignite/alertops/internal/parse"
)

// Duplicate pairs a filtered alert with the unique alert it duplicates.
type Duplicate struct {
	Alert       domain.IngestedAlert
	CanonicalID string
}

// BatchResult splits one ingestion batch into the unique alerts to be
// processed and the duplicates filtered out.
type BatchResult struct {
	Unique     []domain.IngestedAlert
	Duplicates []Duplicate
}

// Batch deduplicates a single batch by (trigger, resource, subject)
// signature. The first occurrence of a signature wins; the operation is
// stateless across batches.
func Batch(alerts []domain.IngestedAlert) BatchResult {
	seen := make(map[string]string, len(alerts))
	var res BatchResult

	for _, a := range alerts {
		sig := signature(a)
		if canonical, dup := seen[sig]; dup {
			res.Duplicates = append(res.Duplicates, Duplicate{Alert: a, CanonicalID: canonical})
			continue
		}
		seen[sig] = a.EmailID
		res.Unique = append(res.Unique, a)
	}
	return res
}

func signature(a domain.IngestedAlert) string {
	fields := parse.ExtractFields(a.Content)
	resource := fields.ResourceName
	if resource == "" {
		resource = parse.ExtractMachine(a.Subject)
	}
	return domain.BatchSignature(fields.TriggerName, resource, a.Subject)
}
