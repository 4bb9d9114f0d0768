package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	emailAdapter "courseadmin/internal/adapters/email"
	"courseadmin/internal/adapters/recordstore"
	"courseadmin/internal/application/dataset"
	"courseadmin/internal/domain/enrollment"
)

// ErrNoRecipient is returned when the enrolled participant has no resolvable email address.
var ErrNoRecipient = errors.New("participant has no email address")

// ErrUnknownCourse is returned when the enrollment's course is not loaded.
var ErrUnknownCourse = errors.New("enrollment course is not loaded")

// mdRenderer renders mail bodies. Raw HTML in the input is escaped.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// SendEnrollmentConfirmationInput carries input for the confirmation mail.
type SendEnrollmentConfirmationInput struct {
	Enrollment enrollment.Enrollment
	Related    dataset.Dataset // participants and courses
}

// SendEnrollmentConfirmationDeps holds dependencies for ExecuteSendEnrollmentConfirmation.
type SendEnrollmentConfirmationDeps struct {
	Sender  emailAdapter.Sender
	ReplyTo string // optional
}

// ExecuteSendEnrollmentConfirmation mails the participant a summary of the
// course they were enrolled in.
// PRE: input.Related holds the enrollment's participant and course
// POST: One message is handed to the sender, or an error says why not
func ExecuteSendEnrollmentConfirmation(ctx context.Context, input SendEnrollmentConfirmationInput, deps SendEnrollmentConfirmationDeps) (emailAdapter.Receipt, error) {
	p, ok := input.Related.Participant(input.Enrollment.Participant)
	if !ok || strings.TrimSpace(p.Email) == "" {
		return emailAdapter.Receipt{}, ErrNoRecipient
	}
	c, ok := input.Related.Course(input.Enrollment.Course)
	if !ok {
		return emailAdapter.Receipt{}, ErrUnknownCourse
	}

	var md strings.Builder
	fmt.Fprintf(&md, "Hallo %s,\n\n", p.Name)
	fmt.Fprintf(&md, "deine Anmeldung zum Kurs **%s** ist eingegangen.\n\n", c.Title)
	if start := recordstore.FormatDate(c.StartDate); start != "" {
		fmt.Fprintf(&md, "- Beginn: %s\n", start)
	}
	if end := recordstore.FormatDate(c.EndDate); end != "" {
		fmt.Fprintf(&md, "- Ende: %s\n", end)
	}
	if c.Price != nil {
		fmt.Fprintf(&md, "- Preis: %s EUR\n", strconv.FormatFloat(*c.Price, 'f', 2, 64))
	}
	if input.Enrollment.Paid {
		md.WriteString("- Zahlung: eingegangen\n")
	} else {
		md.WriteString("- Zahlung: offen\n")
	}
	if strings.TrimSpace(c.Description) != "" {
		md.WriteString("\n")
		md.WriteString(c.Description)
		md.WriteString("\n")
	}

	var html bytes.Buffer
	if err := mdRenderer.Convert([]byte(md.String()), &html); err != nil {
		return emailAdapter.Receipt{}, fmt.Errorf("render confirmation: %w", err)
	}

	receipt, err := deps.Sender.Send(ctx, emailAdapter.Message{
		To:      []string{p.Email},
		Subject: "Anmeldebestätigung: " + c.Title,
		HTML:    html.String(),
		ReplyTo: deps.ReplyTo,
	})
	if err != nil {
		return emailAdapter.Receipt{}, err
	}
	slog.Info("enrollment_event", "event", "confirmation_sent", "enrollment_id", input.Enrollment.ID, "message_id", receipt.MessageID)
	return receipt, nil
}
