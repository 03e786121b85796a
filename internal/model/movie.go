package model

import "time"

// Movie is a film that can be scheduled into screenings.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – display title.
//  RuntimeMin  – running time in minutes, used to derive screening end times.
//  Rating      – age rating label (ALL, 12, 15, 19).
//  Description – optional synopsis.
//  IsActive    – whether the movie is listed publicly.
type Movie struct {
	ID          uint64    `json:"id"`          // movies.id
	Title       string    `json:"title"`       // movies.title
	RuntimeMin  uint32    `json:"runtimeMin"`  // movies.runtime_min
	Rating      string    `json:"rating"`      // movies.rating
	Description *string   `json:"description"` // movies.description (nullable)
	IsActive    bool      `json:"isActive"`    // movies.is_active
	CreatedAt   time.Time `json:"createdAt"`   // movies.created_at
	UpdatedAt   time.Time `json:"updatedAt"`   // movies.updated_at
}
