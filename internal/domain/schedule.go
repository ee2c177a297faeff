package domain

import (
	"fmt"
	"strings"
)

// IdentityKey derives the duplicate-detection key for a neighborhood:
// normalized name and district joined with "_". Rows with equal keys are
// treated as the same logical neighborhood on the read path.
func IdentityKey(n Neighborhood) string {
	return normalize(n.Name) + "_" + normalize(n.District)
}

// normalize lower-cases, trims, and collapses internal whitespace runs to a
// single space.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// OutageFetcher loads the stored outages for one neighborhood on one date.
type OutageFetcher func(neighborhoodID int64, date string) ([]Outage, error)

// AssembleSchedules produces one Schedule per logical neighborhood for the
// target date. Neighborhoods are grouped by IdentityKey in first-seen order;
// the first member of each group is the representative whose id is exposed
// downstream. The outages of ALL group members are unioned, merged, and
// returned sorted by StartHour. Groups with no outages on the date still get
// a Schedule with an empty (non-nil) outage list — "no scheduled outage" is a
// valid state, not an omission.
func AssembleSchedules(neighborhoods []Neighborhood, fetch OutageFetcher, date string) ([]Schedule, error) {
	groups := make(map[string][]Neighborhood, len(neighborhoods))
	order := make([]string, 0, len(neighborhoods))
	for _, n := range neighborhoods {
		key := IdentityKey(n)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], n)
	}

	schedules := make([]Schedule, 0, len(order))
	for _, key := range order {
		members := groups[key]

		var combined []Outage
		for _, m := range members {
			outages, err := fetch(m.ID, date)
			if err != nil {
				return nil, fmt.Errorf("fetch outages for neighborhood %d: %w", m.ID, err)
			}
			combined = append(combined, outages...)
		}

		// Merge returns runs in ascending StartHour order already.
		merged := Merge(combined)
		if merged == nil {
			merged = []Outage{}
		}

		schedules = append(schedules, Schedule{
			Neighborhood: members[0],
			Outages:      merged,
		})
	}
	return schedules, nil
}
