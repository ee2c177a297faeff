package domain

import "sort"

// NeighborhoodRanking is one entry of the outage-hours leaderboard. The id
// and name belong to the group representative (duplicates are folded).
type NeighborhoodRanking struct {
	NeighborhoodID   int64   `json:"neighborhoodId"`
	NeighborhoodName string  `json:"neighborhoodName"`
	TotalOutageHours float64 `json:"totalOutageHours"`
}

// DailyStat aggregates all outages sharing one calendar date.
type DailyStat struct {
	Date         string  `json:"date"`
	TotalOutages int     `json:"totalOutages"`
	TotalHours   float64 `json:"totalHours"`
}

// HistoricalStats summarizes outage load over a date range.
type HistoricalStats struct {
	TotalOutageHours     float64               `json:"totalOutageHours"`
	AverageDailyOutages  float64               `json:"averageDailyOutages"`
	NeighborhoodRankings []NeighborhoodRanking `json:"neighborhoodRankings"`
	DailyStats           []DailyStat           `json:"dailyStats"`
}

// ComputeStats aggregates outage totals per logical neighborhood and per
// date. Neighborhood duplicates are folded through IdentityKey so a
// neighborhood entered twice does not rank twice; hours from all duplicate
// rows accrue to the first-seen representative. Outages pointing at unknown
// neighborhood ids still count toward the global and daily totals.
func ComputeStats(neighborhoods []Neighborhood, outages []Outage) HistoricalStats {
	// Map every member row id to its group representative.
	repByID := make(map[int64]Neighborhood, len(neighborhoods))
	repSeen := make(map[string]Neighborhood, len(neighborhoods))
	var repOrder []Neighborhood
	for _, n := range neighborhoods {
		key := IdentityKey(n)
		rep, ok := repSeen[key]
		if !ok {
			rep = n
			repSeen[key] = n
			repOrder = append(repOrder, n)
		}
		repByID[n.ID] = rep
	}

	hoursByRep := make(map[int64]float64)
	byDate := make(map[string]*DailyStat)
	var dateOrder []string
	stats := HistoricalStats{}

	for _, o := range outages {
		hours := o.EndHour - o.StartHour
		stats.TotalOutageHours += hours

		if rep, ok := repByID[o.NeighborhoodID]; ok {
			hoursByRep[rep.ID] += hours
		}

		ds, ok := byDate[o.Date]
		if !ok {
			ds = &DailyStat{Date: o.Date}
			byDate[o.Date] = ds
			dateOrder = append(dateOrder, o.Date)
		}
		ds.TotalOutages++
		ds.TotalHours += hours
	}

	if len(byDate) > 0 {
		stats.AverageDailyOutages = float64(len(outages)) / float64(len(byDate))
	}

	rankings := make([]NeighborhoodRanking, 0, len(repOrder))
	for _, rep := range repOrder {
		rankings = append(rankings, NeighborhoodRanking{
			NeighborhoodID:   rep.ID,
			NeighborhoodName: rep.Name,
			TotalOutageHours: hoursByRep[rep.ID],
		})
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].TotalOutageHours != rankings[j].TotalOutageHours {
			return rankings[i].TotalOutageHours > rankings[j].TotalOutageHours
		}
		return rankings[i].NeighborhoodName < rankings[j].NeighborhoodName
	})
	stats.NeighborhoodRankings = rankings

	sort.Strings(dateOrder)
	daily := make([]DailyStat, 0, len(dateOrder))
	for _, d := range dateOrder {
		daily = append(daily, *byDate[d])
	}
	stats.DailyStats = daily

	return stats
}
