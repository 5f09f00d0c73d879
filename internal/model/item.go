package model

import "time"

// Dates on items are stored as YYYY-MM-DD strings so they survive
// round-trips through forms and the API without timezone drift.
const DateLayout = "2006-01-02"

type Item struct {
	ID               int64     `json:"-"`
	PublicID         string    `json:"id"`
	UserID           int64     `json:"-"`
	Name             string    `json:"name"`
	Category         string    `json:"category"`
	Quantity         int       `json:"quantity"`
	AddedOn          string    `json:"added_on"`
	Expiry           string    `json:"expiry"`
	RestockThreshold *int      `json:"restock_threshold,omitempty"`
	Barcode          *string   `json:"barcode,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
