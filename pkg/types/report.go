package types

import "time"

// Finding severities.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// validLevels is the closed set of recognized finding levels.
var validLevels = map[string]bool{
	LevelInfo:    true,
	LevelWarning: true,
	LevelError:   true,
}

// ValidLevel reports whether s is a recognized finding level.
func ValidLevel(s string) bool {
	return validLevels[s]
}

// Finding is one observation a checker made about a plan line.
type Finding struct {
	Checker string `json:"checker"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// CheckReport is the output of one checker run against one plan line.
// Reports are append-only: a newer report supersedes but never deletes
// prior ones.
type CheckReport struct {
	PlanLineID string    `json:"plan_line_id"`
	Seq        int       `json:"seq"`
	Findings   []Finding `json:"findings"`
	ProducedAt time.Time `json:"produced_at"`
}
