package handlers

import "regexp"

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	pricePattern    = regexp.MustCompile(`^\$?\d+(?:\.\d{1,2})?$`)
)

func validEmail(s string) bool    { return emailPattern.MatchString(s) }
func validUsername(s string) bool { return usernamePattern.MatchString(s) }
func validPrice(s string) bool    { return pricePattern.MatchString(s) }
