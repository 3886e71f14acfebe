package api

import (
	"fmt"
	"regexp"
	"strings"
)

const maxTemplateLength = 4096

var (
	nonDigits    = regexp.MustCompile(`\D`)
	placeholders = regexp.MustCompile(`\{[^}]+\}`)
)

// validatePhone accepts any formatting but requires 10 to 15 digits.
func validatePhone(phone string) bool {
	digits := nonDigits.ReplaceAllString(phone, "")
	return len(digits) >= 10 && len(digits) <= 15
}

// validateTemplate returns the list of problems with a campaign message
// template. An empty list means the template is usable.
func validateTemplate(template string) []string {
	var problems []string

	if strings.TrimSpace(template) == "" {
		return []string{"Message template cannot be empty"}
	}
	if len(template) > maxTemplateLength {
		problems = append(problems, fmt.Sprintf("Message template is too long (max %d characters)", maxTemplateLength))
	}

	var invalid []string
	for _, match := range placeholders.FindAllString(template, -1) {
		if match != "{name}" && match != "{phone}" {
			invalid = append(invalid, match)
		}
	}
	if len(invalid) > 0 {
		problems = append(problems, fmt.Sprintf("Invalid placeholders: %s. Valid placeholders: {name}, {phone}",
			strings.Join(invalid, ", ")))
	}

	return problems
}
