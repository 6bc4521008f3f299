package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"guestflow/internal/domain"
)

// TwilioConfig holds credentials for the Twilio Messages API.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// SESConfig holds configuration for sending through AWS SES to a carrier
// email-to-SMS gateway.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	FromAddress     string
	// GatewayDomain is the carrier gateway, e.g. "txt.example.net":
	// the message for +15551230000 is mailed to 15551230000@txt.example.net.
	GatewayDomain string
}

// Config selects and configures the transport provider.
type Config struct {
	Provider string
	Twilio   TwilioConfig
	SES      SESConfig
}

// NewMessenger creates a transport client from config. Provider "twilio"
// calls the Twilio Messages API, "ses" relays through an email-to-SMS
// gateway, "noop" or unknown logs and drops.
func NewMessenger(config Config, logger *slog.Logger) (domain.Messenger, error) {
	switch config.Provider {
	case "twilio":
		if config.Twilio.AccountSID == "" || config.Twilio.AuthToken == "" || config.Twilio.FromNumber == "" {
			return nil, fmt.Errorf("twilio provider requires account sid, auth token, and from number")
		}
		return &twilioMessenger{
			client:  &http.Client{Timeout: 15 * time.Second},
			cfg:     config.Twilio,
			baseURL: twilioAPIBase,
		}, nil
	case "ses":
		if config.SES.GatewayDomain == "" || config.SES.FromAddress == "" {
			return nil, fmt.Errorf("ses provider requires a gateway domain and from address")
		}
		awsCfg := aws.Config{
			Region: config.SES.Region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(
					config.SES.AccessKeyID,
					config.SES.SecretAccessKey,
					"",
				),
			),
		}
		return &sesMessenger{
			client: ses.NewFromConfig(awsCfg),
			cfg:    config.SES,
		}, nil
	case "noop":
		return &noopMessenger{logger: logger}, nil
	default:
		logger.Warn("unknown sms provider, using noop", "provider", config.Provider)
		return &noopMessenger{logger: logger}, nil
	}
}

const twilioAPIBase = "https://api.twilio.com"

type twilioMessenger struct {
	client  *http.Client
	cfg     TwilioConfig
	baseURL string
}

// twilioResponse is the subset of the Messages API response we read.
type twilioResponse struct {
	SID     string `json:"sid"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (m *twilioMessenger) Send(ctx context.Context, to, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", m.baseURL, m.cfg.AccountSID)
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", m.cfg.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(m.cfg.AccountSID, m.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call twilio: %w", err)
	}
	defer resp.Body.Close()

	var data twilioResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("failed to decode twilio response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if data.Message != "" {
			return "", fmt.Errorf("twilio error %d: %s", data.Code, data.Message)
		}
		return "", fmt.Errorf("twilio returned status %d", resp.StatusCode)
	}
	return data.SID, nil
}

type sesMessenger struct {
	client *ses.Client
	cfg    SESConfig
}

func (m *sesMessenger) Send(ctx context.Context, to, body string) (string, error) {
	destination := fmt.Sprintf("%s@%s", sanitizePhone(to), m.cfg.GatewayDomain)
	input := &ses.SendEmailInput{
		Source: aws.String(m.cfg.FromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{destination},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(""),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}
	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to send via SES gateway: %w", err)
	}
	return aws.ToString(result.MessageId), nil
}

// sanitizePhone strips everything but digits so the gateway address is
// well-formed.
func sanitizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type noopMessenger struct {
	logger *slog.Logger
}

func (m *noopMessenger) Send(ctx context.Context, to, body string) (string, error) {
	m.logger.Info("message would be sent (noop)", "to", to, "body", body)
	return "", nil
}
