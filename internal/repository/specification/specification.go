package specification

import "gorm.io/gorm"

// Specification is a composable query fragment. Repositories fold any number
// of them over the base query before executing it.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
