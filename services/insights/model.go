package insights

// Metrics is the point-in-time KPI record for the club.
//
// RetentionM1 is a ratio of event counts, not of distinct users: a
// subscriber with several renewal events is overcounted. That approximation
// is part of the product definition, kept on purpose.
type Metrics struct {
	Active               int     `json:"active"`
	MRR                  int64   `json:"mrr"`
	NewThisWeek          int     `json:"new_this_week"`
	Churned              int     `json:"churned"`
	TotalEver            int     `json:"total_ever"`
	RetentionM1          float64 `json:"retention_m1"`
	FirstRenewalUpcoming int     `json:"first_renewal_upcoming"`
}

// Segments buckets current subscribers by lifecycle stage. Every active
// subscription lands in exactly one of New, FirstRenewal or Active, so the
// three always sum to the active subscription count.
type Segments struct {
	New          int `json:"new"`
	FirstRenewal int `json:"first_renewal"`
	Active       int `json:"active"`
	Churned      int `json:"churned"`
}

// ChartData carries the weekly trend series as parallel arrays, one entry
// per calendar week in ascending order, plus the lifecycle segments.
type ChartData struct {
	Labels       []string `json:"labels"`
	MRR          []int64  `json:"mrr"`
	NewByWeek    []int    `json:"new_by_week"`
	ActiveByWeek []int    `json:"active_by_week"`
	Segments     Segments `json:"segments"`
}
