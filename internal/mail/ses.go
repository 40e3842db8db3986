package mail

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/divinahealthcare/site/internal/submit"
)

// SESAPI is the part of the SES client the transport uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SES delivers messages as plain-text email to a fixed inbox.
type SES struct {
	client SESAPI
	from   string
	to     string
}

// NewSES creates an SES transport.
func NewSES(client SESAPI, from, to string) *SES {
	return &SES{client: client, from: from, to: to}
}

// Send renders msg and sends it. The submitter's address, when present,
// becomes Reply-To.
func (s *SES) Send(ctx context.Context, msg submit.Message) error {
	input := &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &types.Destination{ToAddresses: []string{s.to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(Subject(msg)), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(RenderText(msg)), Charset: aws.String("UTF-8")},
			},
		},
	}
	if reply := replyTo(msg); reply != "" {
		input.ReplyToAddresses = []string{reply}
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

// Subject picks a subject line for msg.
func Subject(msg submit.Message) string {
	f := msg.Fields
	switch {
	case msg.Form == submit.FormOrder && f["subject"] != "":
		return f["subject"]
	case f[submit.FieldJobTitle] != "":
		return "Job application: " + f[submit.FieldJobTitle]
	case msg.Form == submit.FormCareers:
		return "Career application"
	case msg.Form == submit.FormContact && f["subject"] != "":
		return "Website contact: " + f["subject"]
	case msg.Form == submit.FormContact:
		return "Website contact"
	}
	return "Website submission"
}

// RenderText lays the fields out one per line in a stable order, with the
// long free-text fields last.
func RenderText(msg submit.Message) string {
	keys := make([]string, 0, len(msg.Fields))
	for k := range msg.Fields {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if la, lb := longField(a), longField(b); la != lb {
			if la {
				return 1
			}
			return -1
		}
		return strings.Compare(a, b)
	})

	var b strings.Builder
	for _, k := range keys {
		v := msg.Fields[k]
		if longField(k) {
			fmt.Fprintf(&b, "\n%s:\n%s\n", fieldLabel(k), v)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", fieldLabel(k), v)
	}
	return b.String()
}

func longField(name string) bool {
	return name == submit.FieldCoverLetter || name == "message"
}

func fieldLabel(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// replyTo finds the submitter's address among the known email fields.
func replyTo(msg submit.Message) string {
	for _, k := range []string{"email", "customer_email"} {
		if v := msg.Fields[k]; v != "" {
			return v
		}
	}
	return ""
}
