package models

// LegacyTrack is one entry of the data.json export that predates the database.
type LegacyTrack struct {
	Title            string `json:"title"`
	Artist           string `json:"artist"`
	Album            string `json:"album"`
	Format           string `json:"format"`
	ReleaseDate      string `json:"releaseDate"`
	AtmosReleaseDate string `json:"atmosReleaseDate"`
	MusicLink        string `json:"musicLink"`
	AppleMusicID     string `json:"appleMusicId"`
}
