package models

// CapacityDrift is an event whose sold_count disagrees with the number of
// tickets that still occupy a place.
type CapacityDrift struct {
	EventID       string `bun:"event_id" json:"event_id"`
	SoldCount     int    `bun:"sold_count" json:"sold_count"`
	TotalCapacity int    `bun:"total_capacity" json:"total_capacity"`
	ActiveTickets int    `bun:"active_tickets" json:"active_tickets"`
}
