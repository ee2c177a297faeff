// Package domain models scheduled power-outage ("délestage") windows per
// neighborhood and the rules that keep them canonical.
//
// # Data Conventions
//
// Dates:
//
//	Calendar dates are plain "YYYY-MM-DD" strings with no time zone attached.
//	The utility publishes schedules per local calendar day; comparing and
//	grouping by the raw string is intentional (ISO dates sort lexicographically).
//
// Hours:
//
//	StartHour and EndHour are real numbers describing hours of day over the
//	half-open interval [StartHour, EndHour). Fractional values encode minutes
//	(6.5 = 06:30). EndHour may exceed 24 to represent a window crossing
//	midnight; the merge engine treats hours as plain reals and performs no
//	wraparound at 24.
//
// Overlap:
//
//	Two windows overlap only STRICTLY: a.Start < b.End && a.End > b.Start.
//	Touching endpoints ([6,9) next to [9,12)) are distinct windows and are
//	never coalesced — a one-instant restoration between them is meaningful
//	to residents.
//
// Neighborhood identity:
//
//	Duplicate neighborhood rows are a known data-quality condition: the same
//	logical neighborhood can be entered twice with casing or spacing
//	differences ("Analakely " vs "analakely"). [IdentityKey] derives an ad hoc
//	equivalence from the normalized (name, district) pair; it is used only at
//	the read/group boundary and never as a storage key.
//
// Merged identity:
//
//	Coalescing deletes the superseded rows and synthesizes one replacement row
//	with a fresh id. Callers must not cache outage ids across writes that can
//	merge within the same (neighborhood, date) scope; every write returns the
//	surviving record.
package domain
