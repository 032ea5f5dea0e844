// Package idnumber validates Israeli identity numbers (Teudat Zehut).
//
// A number has up to nine digits; shorter inputs are left-padded with
// zeros. The last digit is a check digit: multiplying the digits alternately
// by 1 and 2, folding two-digit products to their digit sum and adding
// everything up must give a multiple of ten.
package idnumber

import (
	"errors"
	"strings"
)

// Length is the canonical number of digits.
const Length = 9

var (
	// ErrEmpty is returned for an empty or blank input.
	ErrEmpty = errors.New("idnumber: empty")

	// ErrNotDigits is returned when the input contains anything but ASCII digits.
	ErrNotDigits = errors.New("idnumber: must contain digits only")

	// ErrTooLong is returned for inputs longer than [Length] digits.
	ErrTooLong = errors.New("idnumber: longer than 9 digits")

	// ErrChecksum is returned when the check digit does not match.
	ErrChecksum = errors.New("idnumber: invalid check digit")
)

// Validate reports why id is not a valid identity number, or nil. Leading
// and trailing whitespace is ignored.
func Validate(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmpty
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return ErrNotDigits
		}
	}
	if len(id) > Length {
		return ErrTooLong
	}
	if checksum(Pad(id))%10 != 0 {
		return ErrChecksum
	}
	return nil
}

// Valid is shorthand for Validate(id) == nil.
func Valid(id string) bool { return Validate(id) == nil }

// Pad left-pads a digit string with zeros to [Length] characters. Longer
// strings are returned unchanged.
func Pad(id string) string {
	if len(id) >= Length {
		return id
	}
	return strings.Repeat("0", Length-len(id)) + id
}

func checksum(digits string) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		v := int(digits[i]-'0') * (i%2 + 1)
		if v > 9 {
			v -= 9
		}
		sum += v
	}
	return sum
}
