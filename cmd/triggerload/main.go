// triggerload bulk-reloads the trigger-mapping reference table from a CSV
// export of the trigger spreadsheet. The full table is replaced atomically.
//
// Usage:
//
//	triggerload --file "ControlUp Trigger Details.csv"
//
// Exits 0 on success, non-zero on parse or insert error.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ignite/alertops/internal/domain"
	"github.com/ignite/alertops/internal/repository/postgres"
	"github.com/ignite/alertops/internal/storage"
)

func main() {
	var (
		file = pflag.String("file", "", "path to the trigger CSV export")
		dsn  = pflag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	)
	pflag.Parse()

	if *file == "" {
		log.Fatal("--file is required")
	}
	if *dsn == "" {
		log.Fatal("--database-url or DATABASE_URL is required")
	}

	rows, err := readTriggers(*file)
	if err != nil {
		log.Fatalf("parse: %v", err)
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, *dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := postgres.NewReferenceRepo(db).ReplaceTriggerMappings(ctx, rows); err != nil {
		log.Fatalf("reload: %v", err)
	}
	log.Printf("Loaded %d trigger mappings from %s", len(rows), *file)
}

// expected CSV columns, matched case-insensitively by header name.
var columns = []string{
	"TriggerName", "Category", "Priority", "Actionable",
	"RecommendedAction", "Team", "Department", "ResponsiblePersons",
}

func readTriggers(path string) ([]domain.TriggerMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	index := map[string]int{}
	for i, h := range header {
		index[normalizeHeader(h)] = i
	}
	if _, ok := index["triggername"]; !ok {
		return nil, fmt.Errorf("missing TriggerName column")
	}

	field := func(record []string, name string) string {
		i, ok := index[strings.ToLower(name)]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var out []domain.TriggerMapping
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		name := field(record, "TriggerName")
		if name == "" {
			continue
		}
		out = append(out, domain.TriggerMapping{
			TriggerName:        name,
			Category:           field(record, "Category"),
			Priority:           domain.Priority(field(record, "Priority")),
			Actionable:         parseBool(field(record, "Actionable")),
			RecommendedAction:  field(record, "RecommendedAction"),
			Team:               field(record, "Team"),
			Department:         field(record, "Department"),
			ResponsiblePersons: field(record, "ResponsiblePersons"),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no trigger rows in %s", path)
	}
	return out, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(h), " ", ""))
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "actionable":
		return true
	default:
		return false
	}
}
