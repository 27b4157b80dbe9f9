package legal

// =============================================================================
// LEGAL REPORT - Which articles a classification applied
// =============================================================================

// Article is a provision of the labor code that applied to a session.
type Article struct {
	Reference string `json:"reference"`
	Title     string `json:"title"`
	Minutes   int    `json:"minutes"`
}

type Report struct {
	Articles         []Article `json:"articles"`
	TotalMinutes     int       `json:"total_minutes"`
	ExceedsOrdinary  bool      `json:"exceeds_ordinary"`
	AppliesSurcharge bool      `json:"applies_surcharge"`
}

// BuildReport lists the provisions behind the surcharges of c.
func BuildReport(c Classification, cfg *Config) Report {
	r := Report{
		Articles:         []Article{},
		TotalMinutes:     c.TotalMinutes,
		ExceedsOrdinary:  c.TotalMinutes > cfg.DailyOrdinaryMinutes,
		AppliesSurcharge: c.Surcharge.Total > 0,
	}
	d := c.Distribution

	if c.Dominical {
		title := "Trabajo en domingo y días de descanso obligatorio"
		if c.HolidayName != "" {
			title += " (" + c.HolidayName + ")"
		}
		r.Articles = append(r.Articles, Article{Reference: "Art. 179 CST", Title: title, Minutes: d.Dominical()})
	}
	if d.Night() > 0 {
		r.Articles = append(r.Articles, Article{Reference: "Art. 168 CST", Title: "Trabajo nocturno", Minutes: d.Night()})
	}
	if d.Overtime() > 0 {
		r.Articles = append(r.Articles, Article{Reference: "Art. 159 CST", Title: "Trabajo suplementario", Minutes: d.Overtime()})
		r.Articles = append(r.Articles, Article{Reference: "Ley 2101 de 2021", Title: "Jornada máxima legal", Minutes: d.Overtime()})
	}
	return r
}
