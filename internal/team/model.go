package team

import "time"

// Team is a registered participant group. Teams are never mutated or
// deleted once created.
type Team struct {
	TeamID      string
	LeaderEmail string
	CreatedAt   time.Time
}
