package models

import "time"

// User is the person operating an intake. CSSID is the station login
// used by the legacy systems; FullName is what conflict messages show.
type User struct {
	ID        int64     `json:"id"`
	CSSID     string    `json:"css_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email,omitempty"`
	StationID string    `json:"station_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
