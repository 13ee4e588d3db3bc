package twilio

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nudgelabs/nudged/shared"
	"github.com/twilio/twilio-go"
	twilioUtil "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type ClientWrapper struct {
	client           *twilio.RestClient
	config           shared.TwilioConfig
	requestValidator twilioUtil.RequestValidator
	webhookBaseURL   string
}

func NewClient(config shared.TwilioConfig, appURL string) *ClientWrapper {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})

	return &ClientWrapper{
		client:           client,
		config:           config,
		webhookBaseURL:   appURL,
		requestValidator: twilioUtil.NewRequestValidator(config.AuthToken),
	}
}

// Enabled reports whether SMS delivery is configured. Without
// credentials, nudges are still recorded but never texted out.
func (cw *ClientWrapper) Enabled() bool {
	return cw.config.AccountSid != "" && cw.config.AuthToken != ""
}

func (cw *ClientWrapper) SendMessage(to, msg string) error {
	params := &openapi.CreateMessageParams{}
	params.SetMessagingServiceSid(cw.config.MessagingServiceSid)
	params.SetTo(to)
	params.SetBody(msg)

	resp, err := cw.client.Api.CreateMessage(params)
	if err != nil {
		return err
	}
	if resp.ErrorCode != nil {
		return fmt.Errorf("twilio error %v: %v", *resp.ErrorCode, safeString(resp.ErrorMessage))
	}

	return nil
}

func (cw *ClientWrapper) ValidateRequest(path string, urlValues url.Values, expectedSignature string) bool {
	// Get 'urlValues' as map[string]string so it's compatible with twilio request validator
	params := make(map[string]string)
	for key, val := range urlValues {
		params[key] = strings.Join(val, ",")
	}

	return cw.requestValidator.Validate(fullRequestURL(cw.webhookBaseURL, path), params, expectedSignature)
}

func fullRequestURL(appURL, path string) string {
	refinedURL := strings.TrimSuffix(appURL, "/")

	// Set default scheme to https
	if !strings.HasPrefix(refinedURL, "http") {
		refinedURL = "https://" + refinedURL
	}

	return refinedURL + path
}

func safeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
