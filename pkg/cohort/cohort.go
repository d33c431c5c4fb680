// Package cohort derives month-over-month participation change rates from
// monthly membership snapshots.
package cohort

// MonthCohort is the set of distinct participants active in one calendar month.
// Month is a YYYY-MM string.
type MonthCohort struct {
	Month   string
	Members map[string]struct{}
}

// ChangeRate holds the churn/growth/retention rates of one month measured
// against the month before it.
type ChangeRate struct {
	Month         string  `json:"month"`
	ChurnRate     float64 `json:"churn_rate"`
	GrowthRate    float64 `json:"growth_rate"`
	RetentionRate float64 `json:"retention_rate"`
}

// ComputeChangeRates turns an ascending month/member-set sequence into change
// rates for every month after the first. The first entry is baseline only and
// produces no output row; callers are expected to widen their source query by
// one month on the left edge so the requested window is fully covered.
//
// All rates are normalized against the prior month's cohort size. A month with
// an empty prior cohort yields all-zero rates rather than a division error.
func ComputeChangeRates(snapshot []MonthCohort) []ChangeRate {
	if len(snapshot) < 2 {
		return []ChangeRate{}
	}

	out := make([]ChangeRate, 0, len(snapshot)-1)
	for i := 1; i < len(snapshot); i++ {
		prev, cur := snapshot[i-1].Members, snapshot[i].Members

		var lost, retained, acquired int
		for id := range prev {
			if _, ok := cur[id]; ok {
				retained++
			} else {
				lost++
			}
		}
		for id := range cur {
			if _, ok := prev[id]; !ok {
				acquired++
			}
		}

		rate := ChangeRate{Month: snapshot[i].Month}
		if initial := len(prev); initial > 0 {
			rate.ChurnRate = float64(lost) / float64(initial)
			rate.GrowthRate = float64(acquired) / float64(initial)
			rate.RetentionRate = float64(retained) / float64(initial)
		}
		out = append(out, rate)
	}
	return out
}
