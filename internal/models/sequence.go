package models

// Sequence: named monotonic counter backing human-facing numbers.
type Sequence struct {
	Name  string `gorm:"primaryKey;size:50"`
	Value uint   `gorm:"not null;default:0"`
}
