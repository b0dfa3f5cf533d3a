package models

// Credit is one (engineer, role) pair scraped from a track page.
type Credit struct {
	Name string `json:"name"`
	Role string `json:"role"`
	Slug string `json:"slug"`
}

// Engineer is a credited audio engineer, unique by name.
type Engineer struct {
	ID              int64
	Name            string
	Slug            string
	ProfileImageURL string
}

// TrackCredit links a track to an engineer in a role.
type TrackCredit struct {
	ID         int64
	TrackID    int64
	EngineerID int64
	Role       string
	Engineer   string // engineer name, populated by joins
}
