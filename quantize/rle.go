package quantize

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidRunLength is returned by RunLengthDecode for malformed input.
var ErrInvalidRunLength = errors.New("quantize: invalid run-length string")

// RunLengthEncode writes each run of equal symbols as count then symbol:
// "NNNNNCNNTTC" becomes "5N1C2N2T1C".
func RunLengthEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		j := i + 1
		for j < len(s) && s[j] == s[i] {
			j++
		}
		b.WriteString(strconv.Itoa(j - i))
		b.WriteByte(s[i])
		i = j
	}
	return b.String()
}

// RunLengthDecode inverts RunLengthEncode. A symbol without a count is a run
// of one, so the compact form "5NC2N2TC" decodes as well.
func RunLengthDecode(s string) (string, error) {
	var b strings.Builder
	count := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			count = count*10 + int(c-'0')
			continue
		}
		if count == 0 {
			count = 1
		}
		b.WriteString(strings.Repeat(string(c), count))
		count = 0
	}
	if count != 0 {
		return "", ErrInvalidRunLength
	}
	return b.String(), nil
}
