// Package validate holds the input validators used by the login and
// registration forms and the password strength scorer.
package validate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password Password accepts.
const MinPasswordLength = 8

// PasswordSpecials are the symbols that satisfy the special-character rule.
const PasswordSpecials = "@$!%*?&"

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	passwordCharset = regexp.MustCompile(`^[A-Za-z0-9@$!%*?&]+$`)
)

// Email reports whether s looks like local@domain.tld with no whitespace.
func Email(s string) bool {
	return emailPattern.MatchString(s)
}

// Password reports whether s is at least MinPasswordLength characters long,
// contains a lowercase letter, an uppercase letter, a digit and one of
// PasswordSpecials, and uses no other characters.
func Password(s string) bool {
	if len(s) < MinPasswordLength || !passwordCharset.MatchString(s) {
		return false
	}
	c := check(s)
	return c.Lowercase && c.Uppercase && c.Number && c.Special
}

// PhoneNumber reports whether s, with all whitespace removed, is an optional
// leading + followed by 1 to 16 digits not starting with 0.
func PhoneNumber(s string) bool {
	return phonePattern.MatchString(stripSpace(s))
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Checks records which password criteria are met.
type Checks struct {
	Length    bool `json:"length"`
	Lowercase bool `json:"lowercase"`
	Uppercase bool `json:"uppercase"`
	Number    bool `json:"number"`
	Special   bool `json:"special"`
}

func check(p string) Checks {
	c := Checks{Length: utf8.RuneCountInString(p) >= MinPasswordLength}
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
			c.Lowercase = true
		case r >= 'A' && r <= 'Z':
			c.Uppercase = true
		case r >= '0' && r <= '9':
			c.Number = true
		case strings.ContainsRune(PasswordSpecials, r):
			c.Special = true
		}
	}
	return c
}

// Level buckets a strength score.
type Level string

const (
	Weak   Level = "weak"
	Medium Level = "medium"
	Strong Level = "strong"
)

// Report is the result of Strength.
type Report struct {
	Checks Checks `json:"checks"`
	Score  int    `json:"score"`
	Level  Level  `json:"strength"`
}

// Strength scores p as the number of satisfied checks. Scores below 3 are
// weak, 3 and 4 medium, 5 strong.
func Strength(p string) Report {
	c := check(p)
	score := 0
	for _, ok := range []bool{c.Length, c.Lowercase, c.Uppercase, c.Number, c.Special} {
		if ok {
			score++
		}
	}
	level := Strong
	switch {
	case score < 3:
		level = Weak
	case score < 5:
		level = Medium
	}
	return Report{Checks: c, Score: score, Level: level}
}
