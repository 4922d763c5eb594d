package types

import "time"

type Created struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

type UnreadCount struct {
	Count int `json:"count" db:"count"`
}
