package connectors

// IBKR FLEX WEB SERVICE CLIENT (trade confirmation statements)
// RESTY ONLY + INTERNAL RETRY

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

// -----------------------------
// CONFIG
// -----------------------------
const (
	// Default retry configuration
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

const (
	defaultFlexBaseURL = "https://ndcdyn.interactivebrokers.com/AccountManagement/FlexWebService"

	sendRequestPath  = "/SendRequest"
	getStatementPath = "/GetStatement"

	// Flex query API version, sent as the v parameter.
	flexVersion = "3"

	defaultGenerationWait = 20 * time.Second
)

// -----------------------------
// RESPONSE ENVELOPE
// -----------------------------

// flexResponse is the XML envelope SendRequest always answers with, and the
// one GetStatement answers with while the statement is not ready or the
// request is bad. A ready statement comes back as the raw CSV body instead.
type flexResponse struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Status        string   `xml:"Status"`
	ReferenceCode string   `xml:"ReferenceCode"`
	ErrorCode     int      `xml:"ErrorCode"`
	ErrorMessage  string   `xml:"ErrorMessage"`
}

// FlexError is a service-level failure: HTTP succeeded but the Flex Web
// Service answered with an error envelope instead of a statement.
type FlexError struct {
	Code    int
	Message string
}

func (e *FlexError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = GetErrorMsg(e.Code)
	}
	return fmt.Sprintf("flex web service error %d: %s", e.Code, msg)
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}

	return false
}

// -----------------------------
// CLIENT
// -----------------------------

// FlexClient downloads trade confirmation statements through the two-step
// Flex Web Service flow: SendRequest hands out a reference code, GetStatement
// exchanges it for the CSV once generation has finished. One client serves
// any number of accounts; the token and query id are per call.
type FlexClient struct {
	baseURL        string
	http           *resty.Client
	generationWait time.Duration
	statementTries int
}

func NewFlexClient(baseURL string, generationWait time.Duration, statementTries int) *FlexClient {
	retryCount := defaultRetryAttempts - 1

	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultFlexBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if generationWait <= 0 {
		generationWait = defaultGenerationWait
	}
	if statementTries <= 0 {
		statementTries = defaultRetryAttempts
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &FlexClient{
		baseURL:        baseURL,
		http:           httpClient,
		generationWait: generationWait,
		statementTries: statementTries,
	}
}

// SendRequest asks the service to generate the statement behind queryID and
// returns the reference code to download it with.
func (c *FlexClient) SendRequest(token, queryID string) (string, error) {
	resp, err := c.http.R().
		SetQueryParams(map[string]string{"t": token, "q": queryID, "v": flexVersion}).
		Get(sendRequestPath)
	if err != nil {
		return "", fmt.Errorf("flex SendRequest failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	var envelope flexResponse
	if err := xml.Unmarshal(resp.Body(), &envelope); err != nil {
		return "", fmt.Errorf("flex SendRequest: unexpected response: %w. raw=%s", err, truncateBody(resp.String()))
	}
	if envelope.Status != "Success" {
		return "", &FlexError{Code: envelope.ErrorCode, Message: envelope.ErrorMessage}
	}
	if envelope.ReferenceCode == "" {
		return "", errors.New("flex SendRequest: no reference code in response")
	}
	return envelope.ReferenceCode, nil
}

// GetStatement downloads the statement behind a reference code. While
// generation is still running the service answers with an XML envelope, which
// surfaces here as a *FlexError carrying a retryable code.
func (c *FlexClient) GetStatement(token, refCode string) (string, error) {
	resp, err := c.http.R().
		SetQueryParams(map[string]string{"t": token, "q": refCode, "v": flexVersion}).
		Get(getStatementPath)
	if err != nil {
		return "", fmt.Errorf("flex GetStatement failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	body := strings.TrimSpace(resp.String())
	if strings.HasPrefix(body, "<") {
		var envelope flexResponse
		if err := xml.Unmarshal([]byte(body), &envelope); err != nil {
			return "", fmt.Errorf("flex GetStatement: unexpected response: %w. raw=%s", err, truncateBody(body))
		}
		return "", &FlexError{Code: envelope.ErrorCode, Message: envelope.ErrorMessage}
	}

	// Same sanity check the statement consumers rely on: at least a header
	// line and one delimiter.
	if body == "" || !strings.Contains(body, ",") || len(strings.Split(body, "\n")) < 2 {
		return "", errors.New("flex GetStatement: response does not look like a CSV statement")
	}
	return body, nil
}

// FetchStatement runs the full generate-wait-download cycle and returns the
// raw CSV body. Statement generation is asynchronous on the IBKR side, so
// every download attempt is preceded by the configured wait and
// still-in-progress answers are retried.
func (c *FlexClient) FetchStatement(token, queryID string) (string, error) {
	refCode, err := c.SendRequest(token, queryID)
	if err != nil {
		return "", err
	}

	logger.WithFields(map[string]interface{}{
		"reference_code": refCode,
		"wait":           c.generationWait.String(),
	}).Info("Flex statement requested, waiting for generation")

	var lastErr error
	for attempt := 1; attempt <= c.statementTries; attempt++ {
		time.Sleep(c.generationWait)

		body, err := c.GetStatement(token, refCode)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var flexErr *FlexError
		if errors.As(err, &flexErr) && IsRetryableFlexCode(flexErr.Code) {
			logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"code":    flexErr.Code,
				"message": GetErrorMsg(flexErr.Code),
			}).Warn("Flex statement not ready yet")
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("flex statement not ready after %d attempts: %w", c.statementTries, lastErr)
}

func truncateBody(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
