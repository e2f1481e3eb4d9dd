package model

// ZipNeedScore is one row of the static per-ZIP need lookup table. The
// need_score is precomputed externally from food insecurity and SNAP data.
type ZipNeedScore struct {
	ZipCode               string  `json:"zip_code"`
	Lat                   float64 `json:"lat"`
	Lng                   float64 `json:"lng"`
	State                 string  `json:"state"`
	City                  string  `json:"city"`
	FoodInsecurityRate    float64 `json:"food_insecurity_rate"`
	Population            int     `json:"population"`
	SNAPParticipationRate float64 `json:"snap_participation_rate"`
	NeedScore             float64 `json:"need_score"`
}

// DefaultNeedScore is used when a ZIP is absent from the lookup table:
// missing data reads as average need rather than failing the run.
const DefaultNeedScore = 50.0
