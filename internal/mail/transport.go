package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/divinahealthcare/site/internal/config"
	"github.com/divinahealthcare/site/internal/logging"
	"github.com/divinahealthcare/site/internal/submit"
)

// Log writes messages to the log instead of sending them. For development.
type Log struct{}

func (Log) Send(ctx context.Context, msg submit.Message) error {
	args := []any{"form", msg.Form, "template_id", msg.TemplateID}
	for k, v := range msg.Fields {
		args = append(args, "field."+k, v)
	}
	logging.FromContext(ctx).Info("message not sent (log transport)", args...)
	return nil
}

// New returns the transport selected by cfg.Provider.
func New(ctx context.Context, cfg config.MailConfig) (submit.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "emailjs":
		return NewEmailJS(cfg.Endpoint, cfg.PublicKey, cfg.PrivateKey, &http.Client{Timeout: cfg.Timeout}), nil
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewSES(ses.NewFromConfig(awsCfg), cfg.SESFrom, cfg.SESTo), nil
	case "", "log":
		slog.Warn("mail provider is log; submissions will not be delivered")
		return Log{}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// NewAlerter returns an SNS alerter when ALERT_TOPIC_ARN is set, nil otherwise.
func NewAlerter(ctx context.Context, cfg config.MailConfig) (*SNSAlerter, error) {
	if cfg.AlertTopicARN == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSNSAlerter(sns.NewFromConfig(awsCfg), cfg.AlertTopicARN), nil
}

// MailtoURL builds a mailto: link with an encoded subject and body.
func MailtoURL(to, subject, body string) string {
	return "mailto:" + to + "?subject=" + encodeComponent(subject) + "&body=" + encodeComponent(body)
}

// encodeComponent percent-encodes s with spaces as %20, which mail clients
// expect in place of '+'.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// ApplicationMailto builds the link that opens a prefilled application email.
func ApplicationMailto(to, firstName, lastName, email, coverLetter string) string {
	name := strings.TrimSpace(firstName + " " + lastName)
	subject := "Job Application: " + name
	body := fmt.Sprintf("Name: %s\nEmail: %s\n\nCover Letter / Pitch:\n%s\n\n(Please remember to attach your resume to this email manually)",
		name, email, coverLetter)
	return MailtoURL(to, subject, body)
}
