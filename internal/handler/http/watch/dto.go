package watch

import "time"

type DTO struct {
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type AddResultDTO struct {
	Title string `json:"title"`
	Added bool   `json:"added"`
}
