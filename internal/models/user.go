package models

import "time"

type User struct {
	ID        int32     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Vehicle struct {
	ID        int32     `json:"id"`
	OwnerID   int32     `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
