package models

import "time"

// RecapRow aggregates one member's records over a date range.
type RecapRow struct {
	MemberID   string  `db:"member_id" json:"member_id"`
	MemberName string  `db:"member_name" json:"member_name"`
	Present    int     `db:"present" json:"present"`
	Sick       int     `db:"sick" json:"sick"`
	Permitted  int     `db:"permitted" json:"permitted"`
	Absent     int     `db:"absent" json:"absent"`
	Total      int     `db:"-" json:"total"`
	Percentage float64 `db:"-" json:"percentage"`
}

// RecapReport is the recap for a closed date range.
type RecapReport struct {
	From        time.Time  `json:"from"`
	To          time.Time  `json:"to"`
	Rows        []RecapRow `json:"rows"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// RecapExport points at a rendered recap file.
type RecapExport struct {
	Format    string    `json:"format"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
