package document

import (
	"math/big"
	"regexp"
	"strings"
)

// trailingNumber captures the last run of digits in an identifier plus
// anything after it.
var trailingNumber = regexp.MustCompile(`^(.*?)(\d+)(\D*)$`)

// IncrementNumber increments the trailing run of digits in a document
// number, preserving zero-padded width unless the incremented value
// outgrows it: "INV-099" becomes "INV-100", "INV-999" becomes
// "INV-1000". The operation is a pure string/bigint rule, independent
// of locale. An identifier without digits gets "-1" appended.
func IncrementNumber(s string) string {
	m := trailingNumber.FindStringSubmatch(s)
	if m == nil {
		if s == "" {
			return "1"
		}
		return s + "-1"
	}
	prefix, digits, suffix := m[1], m[2], m[3]

	n := new(big.Int)
	n.SetString(digits, 10)
	n.Add(n, big.NewInt(1))

	incremented := n.String()
	if pad := len(digits) - len(incremented); pad > 0 {
		incremented = strings.Repeat("0", pad) + incremented
	}
	return prefix + incremented + suffix
}
