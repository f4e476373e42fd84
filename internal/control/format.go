package control

import (
	"strconv"
)

// Format renders num with five significant characters: 1000.0, 60.000,
// 0.3500. Numbers with five or more integer digits get no decimals.
func Format(num float64) string {
	decimals := 5 - len(strconv.Itoa(int(num)))
	if decimals < 0 {
		decimals = 0
	}
	return strconv.FormatFloat(num, 'f', decimals, 64)
}

// BPM converts a beat period in milliseconds to beats per minute.
func BPM(periodMs float64) float64 {
	if periodMs <= 0 {
		return 0
	}
	return 60_000 / periodMs
}
