package util

import "github.com/Skotchmaster/taskvault/internal/models"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Calculate normalizes page and size and returns the row offset.
func Calculate(page, size int) (offset, limit, normalizedPage int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return (page - 1) * size, size, page
}

func NewPage(page, size int, total int64) models.Page {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return models.Page{Page: page, Size: size, Total: total, Pages: pages}
}
