// Package parser extracts the bug identifier from email subjects and
// structured fields from plain-text bodies.
package parser

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"email-bug-tracker-go/internal/model"
)

// bugIDPattern is the canonical subject marker: a literal "Bug ID:"
// followed by word or hyphen characters, matched case-insensitively
// anywhere in the subject. Example: "Bug ID: BUG-1234 - Login broken".
var bugIDPattern = regexp.MustCompile(`(?i)Bug ID:\s*([\w-]+)`)

// Fields holds the structured values parsed from a message body.
// Priority and Status are empty unless a valid enum value was parsed;
// invalid values are discarded, not errors.
type Fields struct {
	Priority    string
	Status      string
	Assignee    string
	HasAssignee bool
	Description string
}

// ExtractBugID returns the bug identifier from a subject line, or
// false if the subject carries no recognizable marker.
func ExtractBugID(subject string) (string, bool) {
	match := bugIDPattern.FindStringSubmatch(subject)
	if match == nil {
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}

// Body field keywords, matched case-insensitively at line start after
// trimming. "description:" is terminal: every line after it belongs to
// the description verbatim.
var fieldKeywords = []string{"priority:", "status:", "assigned to:", "assignee:", "description:"}

// ExtractFields scans body lines for keyword-prefixed fields. Once a
// description: line is found, all remaining lines are description
// content and keyword scanning stops. If no description: keyword ever
// appears, the description is every line not consumed by another
// keyword, in original order.
func ExtractFields(body string) Fields {
	var fields Fields
	var descriptionLines []string
	consumed := make(map[int]bool)
	foundDescription := false

	lines := strings.Split(body, "\n")

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)

		for _, keyword := range fieldKeywords {
			if !strings.HasPrefix(lower, keyword) {
				continue
			}
			consumed[i] = true
			value := strings.TrimSpace(strings.SplitN(trimmed, ":", 2)[1])

			switch keyword {
			case "priority:":
				fields.Priority = strings.ToLower(value)
			case "status:":
				fields.Status = strings.ToLower(value)
			case "assigned to:", "assignee:":
				fields.Assignee = value
				fields.HasAssignee = true
			case "description:":
				foundDescription = true
				descriptionLines = append(descriptionLines, value)
				for j := i + 1; j < len(lines); j++ {
					descriptionLines = append(descriptionLines, strings.TrimRight(lines[j], "\r"))
				}
			}
			break
		}
		if foundDescription {
			break
		}
	}

	if !foundDescription {
		for i, line := range lines {
			if !consumed[i] {
				descriptionLines = append(descriptionLines, strings.TrimRight(line, "\r"))
			}
		}
	}

	fields.Description = strings.TrimSpace(strings.Join(descriptionLines, "\n"))

	if fields.Priority != "" && !model.ValidPriority(fields.Priority) {
		logrus.Warnf("Invalid priority %q parsed from body, ignoring", fields.Priority)
		fields.Priority = ""
	}
	if fields.Status != "" && !model.ValidStatus(fields.Status) {
		logrus.Warnf("Invalid status %q parsed from body, ignoring", fields.Status)
		fields.Status = ""
	}

	return fields
}
