package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// GenerateShortID generates a 20-char ID (first char alphabetic, rest alphanumeric)
func GenerateShortID() string {
	firstChar, _ := gonanoid.Generate("abcdefghijklmnopqrstuvwxyz", 1)
	rest, _ := gonanoid.Generate("abcdefghijklmnopqrstuvwxyz0123456789", 19)
	return firstChar + rest
}

// PtrValue returns the value of a pointer or a default value if nil
func PtrValue[T any](ptr *T, defaultValue T) T {
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

// Ptr returns a pointer to the given value
func Ptr[T any](v T) *T {
	return &v
}
