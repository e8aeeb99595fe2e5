// Package validate holds the shared validator instance for persisted
// document structs.
package validate

import "github.com/go-playground/validator/v10"

var documentValidate *validator.Validate

func init() {
	documentValidate = validator.New()
}

// Struct runs tag validation on v.
func Struct(v interface{}) error {
	return documentValidate.Struct(v)
}
