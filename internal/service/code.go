package service

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	typeLength     = 2
	sequenceDigits = 6
	maxSequence    = 999999
)

// ValidateType trims and checks a part type: exactly two ASCII digits.
func ValidateType(codeType string) (string, error) {
	codeType = strings.TrimSpace(codeType)
	if len(codeType) != typeLength {
		return "", ErrInvalidType
	}
	for i := 0; i < len(codeType); i++ {
		if codeType[i] < '0' || codeType[i] > '9' {
			return "", ErrInvalidType
		}
	}

	return codeType, nil
}

// MaxSequence returns the highest embedded sequence among codes. Codes shorter
// than eight characters or with a non numeric [2:8] slice are ignored.
func MaxSequence(codes []string) int {
	highest := 0
	for _, code := range codes {
		if len(code) < typeLength+sequenceDigits {
			continue
		}
		digits := code[typeLength : typeLength+sequenceDigits]
		if !isDigits(digits) {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}

	return highest
}

// Checksum returns 'A' + (sum of the code points of base) mod 26.
func Checksum(base string) byte {
	sum := 0
	for _, r := range base {
		sum += int(r)
	}

	return byte('A' + sum%26)
}

// NextCode builds the code following every code in existing.
func NextCode(codeType string, existing []string) (string, error) {
	codeType, err := ValidateType(codeType)
	if err != nil {
		return "", err
	}

	next := MaxSequence(existing) + 1
	if next > maxSequence {
		return "", ErrSequenceExhausted
	}

	base := fmt.Sprintf("%s%0*d", codeType, sequenceDigits, next)
	return base + string(Checksum(base)), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return len(s) > 0
}
