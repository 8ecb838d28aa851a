// Package classify assigns priority and category to messages using fixed
// keyword and sender rules. Rule order is significant: the first match wins.
package classify

import "strings"

const (
	PriorityDefault   = 3
	PriorityImportant = 4
	PriorityUrgent    = 5
)

const (
	CategoryAutomatic  = "Automatique"
	CategoryFinance    = "Finance"
	CategorySupport    = "Support"
	CategoryCommercial = "Commercial"
)

// Categories lists every category Classify can return.
var Categories = []string{CategoryAutomatic, CategoryFinance, CategorySupport, CategoryCommercial}

// Classify returns the priority and category for a message. Subject keywords
// match case-insensitively; sender markers match as given.
func Classify(subject, fromAddress string) (priority int, category string) {
	s := strings.ToLower(subject)

	switch {
	case strings.Contains(s, "urgent"):
		priority = PriorityUrgent
	case strings.Contains(s, "important"):
		priority = PriorityImportant
	default:
		priority = PriorityDefault
	}

	switch {
	case strings.Contains(fromAddress, "no-reply") || strings.Contains(fromAddress, "noreply"):
		category = CategoryAutomatic
	case strings.Contains(s, "invoice") || strings.Contains(s, "facture"):
		category = CategoryFinance
	case strings.Contains(s, "support"):
		category = CategorySupport
	default:
		category = CategoryCommercial
	}

	return priority, category
}
