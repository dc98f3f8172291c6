package scraper

import "github.com/iancoleman/strcase"

// SnakeCase converts a camelCase or PascalCase name to snake_case. Digit runs
// become their own word: testSample1 is test_sample_1.
func SnakeCase(name string) string {
	return strcase.ToSnake(name)
}

// IsCompliant reports whether name is already in snake_case form.
func IsCompliant(name string) bool {
	return strcase.ToSnake(name) == name
}
