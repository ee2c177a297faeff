// Package seed loads the Antananarivo demo dataset: the city's neighborhoods
// with a rotating set of outage windows for the current date.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mirado-dev/delestage/internal/adapter/sqlite"
	"github.com/mirado-dev/delestage/internal/domain"
)

var antananarivoNeighborhoods = []domain.Neighborhood{
	{Name: "Analakely", District: "1er Arrondissement"},
	{Name: "Antaninarenina", District: "1er Arrondissement"},
	{Name: "Isoraka", District: "1er Arrondissement"},
	{Name: "Ambohijatovo", District: "2ème Arrondissement"},
	{Name: "Ankazomanga", District: "2ème Arrondissement"},
	{Name: "Besarety", District: "2ème Arrondissement"},
	{Name: "Ankorondrano", District: "3ème Arrondissement"},
	{Name: "Andraharo", District: "3ème Arrondissement"},
	{Name: "Ivandry", District: "3ème Arrondissement"},
	{Name: "Ankadifotsy", District: "4ème Arrondissement"},
	{Name: "Ambanidia", District: "4ème Arrondissement"},
	{Name: "Mahazo", District: "4ème Arrondissement"},
	{Name: "Andoharanofotsy", District: "5ème Arrondissement"},
	{Name: "Ankazobe", District: "5ème Arrondissement"},
	{Name: "Itaosy", District: "5ème Arrondissement"},
	{Name: "Ambohimanarina", District: "6ème Arrondissement"},
	{Name: "Andranomena", District: "6ème Arrondissement"},
	{Name: "67 Ha", District: "6ème Arrondissement"},
}

type window struct {
	start, end float64
}

// Rotating daily patterns; one neighborhood per pattern, wrapping around.
// The empty pattern leaves one neighborhood outage-free.
var outagePatterns = [][]window{
	{{6, 10}},
	{{8, 12}},
	{{10, 14}},
	{{12, 16}},
	{{14, 18}},
	{{16, 20}},
	{{6, 9}, {18, 21}},
	{{7, 11}, {15, 18}},
	{{9, 13}},
	{{11, 15}},
	{{5, 8}, {17, 20}},
	{{6, 10}, {14, 17}},
	{},
	{{8, 11}},
	{{13, 17}},
	{{7, 10}, {16, 19}},
	{{9, 12}},
	{{15, 19}},
}

// Run populates the store with the demo dataset for today's date. It is
// idempotent: a store that already has neighborhoods is left untouched.
func Run(ctx context.Context, store *sqlite.Store, logger *slog.Logger) error {
	count, err := store.CountNeighborhoods(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if count > 0 {
		logger.Info("seed skipped, database not empty", "neighborhoods", count)
		return nil
	}

	date := domain.Today()
	var outages int
	for i, n := range antananarivoNeighborhoods {
		created, err := store.CreateNeighborhood(ctx, n)
		if err != nil {
			return fmt.Errorf("seed neighborhood %q: %w", n.Name, err)
		}
		for _, w := range outagePatterns[i%len(outagePatterns)] {
			_, err := store.InsertOutage(ctx, domain.Outage{
				NeighborhoodID: created.ID,
				Date:           date,
				StartHour:      w.start,
				EndHour:        w.end,
				Reason:         "délestage tournant",
			})
			if err != nil {
				return fmt.Errorf("seed outage for %q: %w", n.Name, err)
			}
			outages++
		}
	}

	logger.Info("seed loaded", "neighborhoods", len(antananarivoNeighborhoods), "outages", outages, "date", date)
	return nil
}
