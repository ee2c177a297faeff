// Command validate checks an outage database against the data invariants the
// service maintains: well-formed intervals, no overlapping windows within a
// (neighborhood, date) scope, and no outage pointing at a missing
// neighborhood. With -repair, overlapping scopes are re-merged in place.
//
// Usage:
//
//	go run ./cmd/validate -db delestage.db [-repair]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mirado-dev/delestage/internal/adapter/sqlite"
	"github.com/mirado-dev/delestage/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dbPath := flag.String("db", "delestage.db", "path to the sqlite database")
	repair := flag.Bool("repair", false, "re-merge scopes that contain overlapping windows")
	flag.Parse()

	if code := run(*dbPath, *repair); code != 0 {
		os.Exit(code)
	}
}

func run(dbPath string, repair bool) int {
	ctx := context.Background()

	store, err := sqlite.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open database: %v\n", err)
		return 1
	}
	defer store.Close()

	neighborhoods, err := store.ListNeighborhoods(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load neighborhoods: %v\n", err)
		return 1
	}
	outages, err := store.ListOutages(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load outages: %v\n", err)
		return 1
	}

	fmt.Println("=== Outage Database Integrity Validation ===")
	fmt.Println()

	scopes := groupByScope(outages)

	phases := []*phase{
		validateIntervals(outages),
		validateNoOverlap(scopes),
		validateReferences(neighborhoods, outages),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d neighborhoods, %d outages across %d scopes\n",
		len(neighborhoods), len(outages), len(scopes))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}

	if repair {
		fmt.Println()
		repaired, err := repairOverlaps(ctx, store, scopes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: repair: %v\n", err)
			return 1
		}
		fmt.Printf("Repaired %d overlapping scope(s). Re-run validate to confirm.\n", repaired)
		return 0
	}

	fmt.Println("\nValidation FAILED.")
	return 1
}

type scopeKey struct {
	neighborhoodID int64
	date           string
}

func groupByScope(outages []domain.Outage) map[scopeKey][]domain.Outage {
	scopes := make(map[scopeKey][]domain.Outage)
	for _, o := range outages {
		k := scopeKey{o.NeighborhoodID, o.Date}
		scopes[k] = append(scopes[k], o)
	}
	return scopes
}

// ── Phase 1: Interval Validity ──

func validateIntervals(outages []domain.Outage) *phase {
	p := &phase{name: "Phase 1: Interval Validity"}
	for _, o := range outages {
		switch {
		case o.StartHour < 0 || o.StartHour >= 24:
			p.errorf("outage %d: start hour %g out of range [0, 24)", o.ID, o.StartHour)
		case o.EndHour <= o.StartHour:
			p.errorf("outage %d: empty or inverted interval [%g, %g)", o.ID, o.StartHour, o.EndHour)
		case o.EndHour > 48:
			p.errorf("outage %d: end hour %g past the following day", o.ID, o.EndHour)
		}
	}
	return p
}

// ── Phase 2: No Overlap Per Scope ──

func validateNoOverlap(scopes map[scopeKey][]domain.Outage) *phase {
	p := &phase{name: "Phase 2: No Overlap Per Scope"}
	for k, scope := range scopes {
		for i := range scope {
			for j := i + 1; j < len(scope); j++ {
				a, b := scope[i], scope[j]
				if domain.Overlaps(a.StartHour, a.EndHour, b.StartHour, b.EndHour) {
					p.errorf("neighborhood %d date %s: outages %d [%g, %g) and %d [%g, %g) overlap",
						k.neighborhoodID, k.date, a.ID, a.StartHour, a.EndHour, b.ID, b.StartHour, b.EndHour)
				}
			}
		}
	}
	return p
}

// ── Phase 3: Referential Integrity ──

func validateReferences(neighborhoods []domain.Neighborhood, outages []domain.Outage) *phase {
	p := &phase{name: "Phase 3: Referential Integrity"}
	known := make(map[int64]bool, len(neighborhoods))
	for _, n := range neighborhoods {
		known[n.ID] = true
	}
	for _, o := range outages {
		if !known[o.NeighborhoodID] {
			p.errorf("outage %d: unknown neighborhood %d", o.ID, o.NeighborhoodID)
		}
	}
	return p
}

// ── Repair ──

// repairOverlaps re-merges every scope that contains overlapping windows.
// Each merged run replaces its member rows in one transaction.
func repairOverlaps(ctx context.Context, store *sqlite.Store, scopes map[scopeKey][]domain.Outage) (int, error) {
	var repaired int
	for k, scope := range scopes {
		merged := domain.Merge(scope)
		if len(merged) == len(scope) {
			continue
		}

		for _, run := range merged {
			var memberIDs []int64
			for _, o := range scope {
				if domain.Overlaps(o.StartHour, o.EndHour, run.StartHour, run.EndHour) {
					memberIDs = append(memberIDs, o.ID)
				}
			}
			if len(memberIDs) < 2 {
				continue
			}
			run.ID = 0
			if _, err := store.ReplaceOutages(ctx, memberIDs, run); err != nil {
				return repaired, fmt.Errorf("scope neighborhood %d date %s: %w", k.neighborhoodID, k.date, err)
			}
		}
		repaired++
	}
	return repaired, nil
}
