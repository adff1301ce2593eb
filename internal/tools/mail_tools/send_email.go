package mail_tools

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/gmail-send-mcp/internal/instrumentation"
	"github.com/teemow/gmail-send-mcp/internal/mail"
	"github.com/teemow/gmail-send-mcp/internal/server"
	"github.com/teemow/gmail-send-mcp/internal/tools"
)

// SendEmailToolName is the registered name of the tool.
const SendEmailToolName = "send_email"

// SendEmailArgs are validated send_email arguments.
type SendEmailArgs struct {
	// To is the recipient formatted for the To header.
	To string
	// Recipient is the bare address.
	Recipient      string
	Subject        string
	Body           string
	AttachmentPath string
}

// SendEmailTool returns the send_email descriptor.
func SendEmailTool() mcp.Tool {
	return mcp.NewTool(SendEmailToolName,
		mcp.WithDescription("Send an email with an optional attachment via Gmail"),
		mcp.WithTitleAnnotation("Send email"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient email address"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Email subject"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Email body content"),
		),
		mcp.WithString("attachment_path",
			mcp.Description("Absolute path to an attachment file (optional)"),
		),
	)
}

// RegisterTools registers send_email with the server's registry.
func RegisterTools(sc *server.ServerContext) error {
	handler := func(ctx context.Context, args map[string]any) (*tools.Result, error) {
		return handleSendEmail(ctx, args, sc)
	}

	return sc.Registry().Register(tools.Tool{
		Descriptor: SendEmailTool(),
		Handler:    tools.InstrumentedToolHandler(SendEmailToolName, sc.Instrumentation(), handler),
	})
}

// ParseSendEmailArgs converts schema-checked arguments into SendEmailArgs.
// A blank attachment_path is treated as absent; any other path is kept verbatim.
func ParseSendEmailArgs(args map[string]any) (SendEmailArgs, error) {
	to, _ := args["to"].(string)
	to = strings.TrimSpace(to)
	if to == "" {
		return SendEmailArgs{}, &tools.ArgumentError{Field: "to", Reason: "must not be empty"}
	}
	addr, err := netmail.ParseAddress(to)
	if err != nil {
		return SendEmailArgs{}, &tools.ArgumentError{Field: "to", Reason: "must be a valid email address"}
	}

	parsed := SendEmailArgs{
		To:        addr.Address,
		Recipient: addr.Address,
	}
	if addr.Name != "" {
		parsed.To = addr.String()
	}
	parsed.Subject, _ = args["subject"].(string)
	parsed.Body, _ = args["body"].(string)
	if path, ok := args["attachment_path"].(string); ok && strings.TrimSpace(path) != "" {
		parsed.AttachmentPath = path
	}
	return parsed, nil
}

func handleSendEmail(ctx context.Context, args map[string]any, sc *server.ServerContext) (*tools.Result, error) {
	parsed, err := ParseSendEmailArgs(args)
	if err != nil {
		return nil, err
	}

	msg, err := mail.Compose(mail.Draft{
		From:           sc.From(),
		To:             parsed.To,
		Subject:        parsed.Subject,
		Body:           parsed.Body,
		AttachmentPath: parsed.AttachmentPath,
	})
	if err != nil {
		return nil, err
	}

	cred, err := sc.Credentials().Acquire(ctx)
	if err != nil {
		var authErr *mail.AuthError
		if !errors.As(err, &authErr) {
			err = &mail.AuthError{Err: err}
		}
		return nil, err
	}

	messageID, err := deliver(ctx, sc, msg, cred)
	if err != nil {
		var execErr tools.ExecutionError
		if !errors.As(err, &execErr) {
			err = &mail.DeliveryError{Reason: "the mail transport returned an error", Err: err}
		}
		return nil, err
	}

	sc.Logger().Info("email sent",
		"tool", SendEmailToolName,
		"recipient_domain", instrumentation.ExtractUserDomain(parsed.Recipient),
		"attachment", msg.Attachment != nil,
	)

	return tools.TextResult(fmt.Sprintf("Email sent successfully to %s. Message ID: %s", parsed.Recipient, messageID)), nil
}

func deliver(ctx context.Context, sc *server.ServerContext, msg *mail.Message, cred mail.Credential) (string, error) {
	ctx, span := instrumentation.StartDeliverySpan(ctx, sc.Transport(), msg.Attachment != nil)
	defer span.End()

	start := time.Now()
	messageID, err := sc.Sender().Send(ctx, msg, cred)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	sc.Metrics().RecordDelivery(ctx, sc.Transport(), status, time.Since(start))

	return messageID, err
}
