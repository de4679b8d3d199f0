package apperr

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateCredentials checks name and email before they go over the wire and
// returns them trimmed.
func ValidateCredentials(name, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return "", "", Validation(CodeValidation, "Please fill in both name and email.")
	}
	if !emailPattern.MatchString(email) {
		return "", "", Validation(CodeInvalidEmail, "Please enter a valid email address.")
	}
	return name, email, nil
}

func ValidateID(what string, id int64) error {
	if id <= 0 {
		return Validation(CodeValidation, what+" must be a positive number.")
	}
	return nil
}
