package utility

import (
	"strconv"

	"github.com/google/uuid"
)

// ToInt converts a string to an integer, tolerating a decimal part
func ToInt(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// ToFloat converts a string to a float64
func ToFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// IntAsPrice converts an integer to a string like 10234 to 102.34
func IntAsPrice(i int) string {
	floatValue := float64(i) / 100.0
	return strconv.FormatFloat(floatValue, 'f', 2, 64)
}

func NewUUID() string {
	return uuid.New().String()
}
