package feature

import "fmt"

// QVOffset is the Phred+33 offset used to print quality scores.
const QVOffset = 33

// MaxPrintableQV is the largest score that maps to a printable character ('~').
const MaxPrintableQV = '~' - QVOffset

// QVToChar maps a quality score to its printable character.
func QVToChar(q int) byte { return byte(q + QVOffset) }

// CharToQV maps a printable character back to its quality score.
func CharToQV(c byte) int { return int(c) - QVOffset }

// EncodeQVs renders scores as a quality string.
func EncodeQVs(qs []int) (string, error) {
	buf := make([]byte, len(qs))
	for i, q := range qs {
		if q < 0 || q > MaxPrintableQV {
			return "", fmt.Errorf("feature: quality %d at position %d is not printable", q, i)
		}
		buf[i] = QVToChar(q)
	}
	return string(buf), nil
}

// DecodeQVs parses a quality string into scores.
func DecodeQVs(s string) []int {
	qs := make([]int, len(s))
	for i := 0; i < len(s); i++ {
		qs[i] = CharToQV(s[i])
	}
	return qs
}
