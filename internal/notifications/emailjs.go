package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultEmailJSEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

type EmailJSConfig struct {
	Endpoint   string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
}

// EmailJSNotifier sends templated mail through the EmailJS REST API.
type EmailJSNotifier struct {
	endpoint   string
	publicKey  string
	privateKey string
	httpClient *http.Client
}

type emailJSRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"accessToken,omitempty"`
	TemplateParams templateParams `json:"template_params"`
}

type templateParams struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	VerifyCode  string `json:"verify_code"`
	CompanyName string `json:"company_name"`
}

func NewEmailJSNotifier(cfg EmailJSConfig) *EmailJSNotifier {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEmailJSEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &EmailJSNotifier{
		endpoint:   cfg.Endpoint,
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (n *EmailJSNotifier) SendVerificationCode(ctx context.Context, in VerificationCodeInput) error {
	body, err := json.Marshal(emailJSRequest{
		ServiceID:   in.ServiceID,
		TemplateID:  in.TemplateID,
		UserID:      n.publicKey,
		AccessToken: n.privateKey,
		TemplateParams: templateParams{
			Name:        in.Name,
			Email:       in.Email,
			VerifyCode:  in.Code,
			CompanyName: in.CompanyName,
		},
	})
	if err != nil {
		return fmt.Errorf("encode emailjs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build emailjs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("emailjs send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("emailjs send: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
