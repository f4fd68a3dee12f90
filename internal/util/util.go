package util

// Contains checks if a slice contains a specific value
func Contains[T comparable](slice []T, val T) bool {
	for _, item := range slice {
		if item == val {
			return true
		}
	}
	return false
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// PageCount returns how many pages of pageSize hold total items. An empty
// result still has one page.
func PageCount(total, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	n := (total + pageSize - 1) / pageSize
	if n == 0 {
		return 1
	}
	return n
}
