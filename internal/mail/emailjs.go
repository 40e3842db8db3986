// Package mail delivers composed submissions: through EmailJS, Amazon SES or
// the log in development. It also raises an SNS alert when delivery fails.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/divinahealthcare/site/internal/submit"
)

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 512

// EmailJS sends messages through the EmailJS REST API. The public key
// identifies the account; the private key authorises server-side calls.
type EmailJS struct {
	endpoint   string
	publicKey  string
	privateKey string
	client     *http.Client
}

// NewEmailJS creates an EmailJS transport.
func NewEmailJS(endpoint, publicKey, privateKey string, client *http.Client) *EmailJS {
	if client == nil {
		client = http.DefaultClient
	}
	return &EmailJS{
		endpoint:   endpoint,
		publicKey:  publicKey,
		privateKey: privateKey,
		client:     client,
	}
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send posts msg to EmailJS. Any non-2xx status is an error.
func (e *EmailJS) Send(ctx context.Context, msg submit.Message) error {
	payload, err := json.Marshal(emailJSRequest{
		ServiceID:      msg.ServiceID,
		TemplateID:     msg.TemplateID,
		UserID:         e.publicKey,
		AccessToken:    e.privateKey,
		TemplateParams: msg.Fields,
	})
	if err != nil {
		return fmt.Errorf("encode emailjs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build emailjs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("emailjs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("emailjs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
