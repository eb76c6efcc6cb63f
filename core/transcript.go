package core

import (
	"fmt"
	"io"
)

// WriteTranscript writes a plain text conversation log covering user and
// assistant text turns. Tool traffic and system messages are omitted.
func WriteTranscript(w io.Writer, msgs []Message) error {
	if _, err := io.WriteString(w, "Your Conversation Log:\n"); err != nil {
		return err
	}

	for _, m := range msgs {
		text := m.Text()
		if text == "" {
			continue
		}

		var err error
		switch m.Role {
		case RoleUser:
			_, err = fmt.Fprintf(w, "User: %s\n", text)
		case RoleAssistant:
			_, err = fmt.Fprintf(w, "Agent: %s\n\n", text)
		}
		if err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "End of Conversation Log")
	return err
}
