package models

import "time"

// Collection is a named, user-owned group of media items. Slugs are unique
// across all users.
type Collection struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	EntryIDs  []int64   `json:"entryIds"`
	CreatedAt time.Time `json:"createdAt"`
}
