// Package accounts models the Romanian chart of accounts: code syntax,
// account function and resolution of configured accounts.
package accounts

import (
	"fmt"
	"regexp"
	"strings"

	"contabil/internal/core/apperror"
)

// class digit, group digit, one or two more synthetic digits, optional analytic suffix
var codePattern = regexp.MustCompile(`^([1-9])([0-9])([0-9]{1,2})(?:\.([0-9A-Za-z]{1,20}))?$`)

// Code is a parsed account code such as 4111 or 401.00023.
type Code struct {
	Class     int
	Group     string // first two digits
	Synthetic string // three or four digits
	Analytic  string // empty when the code is synthetic
}

// ParseCode validates the syntax of an account code.
func ParseCode(s string) (Code, error) {
	raw := strings.TrimSpace(s)
	m := codePattern.FindStringSubmatch(raw)
	if m == nil {
		return Code{}, apperror.NewInvalidAccount(s, "expected class digit, group digit, synthetic digits and optional .analytic suffix")
	}
	return Code{
		Class:     int(m[1][0] - '0'),
		Group:     m[1] + m[2],
		Synthetic: m[1] + m[2] + m[3],
		Analytic:  m[4],
	}, nil
}

// MustParseCode panics on malformed codes. Use only for constants and tests.
func MustParseCode(s string) Code {
	c, err := ParseCode(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String renders the code in canonical form.
func (c Code) String() string {
	if c.Analytic == "" {
		return c.Synthetic
	}
	return fmt.Sprintf("%s.%s", c.Synthetic, c.Analytic)
}

// IsAnalytic reports whether the code carries an analytic suffix.
func (c Code) IsAnalytic() bool {
	return c.Analytic != ""
}

// Parent returns the first-degree synthetic account of a second-degree one
// (4111 -> 411). ok is false when the code is already first-degree.
func (c Code) Parent() (string, bool) {
	if len(c.Synthetic) == 4 {
		return c.Synthetic[:3], true
	}
	return "", false
}

// IsOffBalance reports whether the code belongs to class 8.
func (c Code) IsOffBalance() bool {
	return c.Class == 8
}
