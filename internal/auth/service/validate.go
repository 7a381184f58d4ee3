package service

import "regexp"

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" || !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// validatePassword checks the platform password policy and reports every
// violation at once, so the caller can render a complete list.
func validatePassword(password string) error {
	var reasons []string
	if len(password) < 8 {
		reasons = append(reasons, "must be at least 8 characters")
	}
	if len(password) > 72 {
		reasons = append(reasons, "must be at most 72 characters")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper {
		reasons = append(reasons, "must contain an uppercase letter")
	}
	if !hasLower {
		reasons = append(reasons, "must contain a lowercase letter")
	}
	if !hasNumber {
		reasons = append(reasons, "must contain a number")
	}
	if !hasSymbol {
		reasons = append(reasons, "must contain a symbol")
	}
	if len(reasons) > 0 {
		return &WeakPasswordError{Reasons: reasons}
	}
	return nil
}
