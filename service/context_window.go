package service

import (
	"strings"

	"lexcase-backend/models"
)

// DefaultContextMessages is the window size used when none is given
const DefaultContextMessages = 10

// BuildContext renders the last maxMessages messages as the history handed
// to a generator. maxMessages <= 0 selects DefaultContextMessages.
func BuildContext(messages []models.Message, maxMessages int) string {
	if maxMessages <= 0 {
		maxMessages = DefaultContextMessages
	}
	if len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}

	entries := make([]string, 0, len(messages))
	for _, msg := range messages {
		var b strings.Builder
		b.WriteString(roleLabel(msg.Sender))
		b.WriteString(": ")
		b.WriteString(msg.Content)

		if len(msg.Attachments) > 0 {
			names := make([]string, len(msg.Attachments))
			for i, a := range msg.Attachments {
				names[i] = a.Name
			}
			b.WriteString("\n[Attached files: ")
			b.WriteString(strings.Join(names, ", "))
			b.WriteString("]")
		}
		entries = append(entries, b.String())
	}

	return strings.Join(entries, "\n\n")
}

func roleLabel(sender models.Sender) string {
	if sender == models.SenderAssistant {
		return "Assistant"
	}
	return "User"
}
