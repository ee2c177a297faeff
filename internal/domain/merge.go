package domain

import "sort"

// Overlaps reports whether the half-open ranges [aStart, aEnd) and
// [bStart, bEnd) strictly overlap. Touching endpoints do not count.
func Overlaps(aStart, aEnd, bStart, bEnd float64) bool {
	return aStart < bEnd && aEnd > bStart
}

// Merge coalesces strictly overlapping outage windows into the minimal set of
// non-overlapping windows covering the same instants. All inputs are assumed
// to belong to one (neighborhood, date) scope; Merge does not check this.
//
// The input is not modified. Output windows are ordered by StartHour; ties
// keep the input order. Each merged run carries the ID and reason of the
// window that started it, with later reasons appended "; "-separated when
// they differ. Merge is idempotent: Merge(Merge(x)) == Merge(x).
func Merge(outages []Outage) []Outage {
	if len(outages) == 0 {
		return nil
	}

	sorted := make([]Outage, len(outages))
	copy(sorted, outages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartHour < sorted[j].StartHour
	})

	merged := make([]Outage, 0, len(sorted))
	for _, next := range sorted {
		if len(merged) == 0 {
			merged = append(merged, next)
			continue
		}

		run := &merged[len(merged)-1]
		if !Overlaps(run.StartHour, run.EndHour, next.StartHour, next.EndHour) {
			merged = append(merged, next)
			continue
		}

		if next.StartHour < run.StartHour {
			run.StartHour = next.StartHour
		}
		if next.EndHour > run.EndHour {
			run.EndHour = next.EndHour
		}
		run.Reason = combineReasons(run.Reason, next.Reason)
	}
	return merged
}

// combineReasons appends next to current unless next is empty or already the
// current reason, so merging identical windows does not duplicate text.
func combineReasons(current, next string) string {
	if next == "" || next == current {
		return current
	}
	if current == "" {
		return next
	}
	return current + "; " + next
}
