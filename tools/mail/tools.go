package mail

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/tool"
)

// NoEmailsNotice is returned for an empty mailbox.
const NoEmailsNotice = "No emails found."

// Instruction is the system prompt of the email assistant.
const Instruction = `You are an intelligent email assistant.

You have access to the following tools:

- authenticate_email(): Authenticate to the user's email account using pre-configured credentials. Do not ask the user for their email address or password.
- get_email_list(): Retrieve the list of email IDs in the inbox.
- get_email_content(email_id): Fetch the subject and body of a specific email by ID.
- get_last_email(): Retrieve the subject and body of the most recent email.
- send_email(recipient, subject, body): Send an email to a recipient. The body must be HTML.

Instructions:

1. Always call authenticate_email() before any other email action.
2. Never ask the user for login credentials.
3. For requests like "email John confirming the meeting", write a clear subject and an HTML body yourself and send it with send_email().
4. If the task involves earlier emails, read them with get_last_email() or get_email_content(email_id) first.
5. Call each tool only once per request unless the user explicitly asks to repeat it.
6. After acting, summarize what you did in one or two sentences and ask whether the user needs anything else.`

// NoArgs is the argument type of tools without parameters.
type NoArgs struct{}

// ContentArgs are the arguments of get_email_content.
type ContentArgs struct {
	EmailID string `json:"email_id" description:"The ID of the email as returned by get_email_list"`
}

// SendArgs are the arguments of send_email.
type SendArgs struct {
	Recipient string `json:"recipient" description:"Email address of the recipient"`
	Subject   string `json:"subject" description:"Subject line"`
	Body      string `json:"body" description:"HTML body of the email"`
}

// Authenticate returns authenticate_email.
func Authenticate(mb Mailbox) tool.Tool {
	return tool.NewTypedTool("authenticate_email", "Authenticate to the configured email account.", func(tc *core.ToolContext, _ NoArgs) (any, error) {
		user, err := mb.Login(tc.Context())
		if err != nil {
			return nil, err
		}
		tc.Logger().Info("mail.authenticated", "user", user)
		return "Authenticated as " + user, nil
	})
}

// List returns get_email_list.
func List(mb Mailbox) tool.Tool {
	return tool.NewTypedTool("get_email_list", "Get the list of email IDs in the inbox.", func(tc *core.ToolContext, _ NoArgs) (any, error) {
		ids, err := mb.List(tc.Context())
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return NoEmailsNotice, nil
		}
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.FormatUint(uint64(id), 10)
		}
		return strings.Join(parts, " "), nil
	})
}

// Content returns get_email_content.
func Content(mb Mailbox) tool.Tool {
	return tool.NewTypedTool("get_email_content", "Fetch the subject and body of an email by its ID.", func(tc *core.ToolContext, args ContentArgs) (any, error) {
		id, err := strconv.ParseUint(strings.TrimSpace(args.EmailID), 10, 32)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid email id %q", args.EmailID)
		}
		e, err := mb.Fetch(tc.Context(), uint32(id))
		if err != nil {
			return nil, err
		}
		return e.String(), nil
	})
}

// Last returns get_last_email.
func Last(mb Mailbox) tool.Tool {
	return tool.NewTypedTool("get_last_email", "Fetch the subject and body of the most recent email in the inbox.", func(tc *core.ToolContext, _ NoArgs) (any, error) {
		ids, err := mb.List(tc.Context())
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return NoEmailsNotice, nil
		}
		e, err := mb.Fetch(tc.Context(), ids[len(ids)-1])
		if err != nil {
			return nil, err
		}
		return e.String(), nil
	})
}

// Send returns send_email. Mail is sent from the account of sender.
func Send(sender Sender) tool.Tool {
	return tool.NewTypedTool("send_email", "Send an email to the recipient with the given subject and HTML body.", func(tc *core.ToolContext, args SendArgs) (any, error) {
		err := sender.Send(tc.Context(), Outgoing{
			To:      []string{args.Recipient},
			Subject: args.Subject,
			HTML:    args.Body,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to send email: %w", err)
		}
		tc.Logger().Info("mail.sent", "recipient", args.Recipient)
		return fmt.Sprintf("Email sent to %s.", args.Recipient), nil
	})
}

// Tools returns all mail tools.
func Tools(mb Mailbox, sender Sender) []tool.Tool {
	return []tool.Tool{Authenticate(mb), List(mb), Content(mb), Last(mb), Send(sender)}
}
