package util

// ReverseSlice reverses s in place.
func ReverseSlice[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func ClipSlice[T any](s []T) []T {
	return s[:len(s):len(s)]
}
