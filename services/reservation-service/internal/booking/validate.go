package booking

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	phonePattern = regexp.MustCompile(`^\(?\d{2}\)?\s?\d{4,5}-?\d{4}$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
)

const maxNameLen = 100

func validName(raw string) (string, bool) {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return "", false
	}
	for _, r := range name {
		if unicode.IsLetter(r) {
			return name, true
		}
	}
	return "", false
}

// validPhone accepts a two-digit area code and a local number, e.g.
// (11)91234-5678, 11 91234-5678 or 1112345678.
func validPhone(raw string) (string, bool) {
	phone := strings.TrimSpace(raw)
	return phone, phonePattern.MatchString(phone)
}

func validEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	return email, emailPattern.MatchString(email)
}
