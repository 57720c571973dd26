// Package network is the client side of the preservation network's
// deposit interface: it ships packaged bags in and asks for their
// preservation status afterwards. The network itself is an external
// collaborator; this package only speaks its HTTP surface.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bindery/internal/config"
	"bindery/internal/services"
)

const userAgent = "bindery/1.0"

// AgreementStatus is the network-reported preservation state of a
// submitted deposit.
type AgreementStatus string

const (
	StatusAgreement  AgreementStatus = "agreement"
	StatusInProgress AgreementStatus = "inProgress"
	StatusRejected   AgreementStatus = "rejected"
)

// SubmitRequest describes one packaged bag to ship to the network.
type SubmitRequest struct {
	DepositUUID   string
	ContainerID   int64
	BagPath       string
	Size          int64
	ChecksumType  string
	ChecksumValue string
}

// Client talks to the preservation network deposit endpoint.
type Client struct {
	endpoint     string
	providerUUID string
	http         *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.Network.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		endpoint:     cfg.Network.Endpoint,
		providerUUID: cfg.Network.ProviderUUID,
		http:         &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the configured deposit endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Submit uploads a bag and returns the receipt URL the network assigned.
// Transport failures and 5xx responses are retryable; a 4xx response is
// a permanent rejection.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if c.endpoint == "" {
		return "", services.Wrap(services.ErrConfiguration, "deposit", "submit", "network endpoint not configured", nil)
	}

	bag, err := os.Open(req.BagPath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "deposit", "open bag", req.BagPath, err)
	}
	defer bag.Close()

	submitURL := c.endpoint + "/deposits"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, bag)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "deposit", "build request", submitURL, err)
	}
	httpReq.ContentLength = req.Size
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Content-Type", "application/zip")
	httpReq.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.zip", req.DepositUUID))
	httpReq.Header.Set("X-Packaging", "http://purl.org/net/sword/package/BagIt")
	httpReq.Header.Set("X-Checksum-Type", req.ChecksumType)
	httpReq.Header.Set("X-Checksum-Value", req.ChecksumValue)
	httpReq.Header.Set("X-Deposit-UUID", req.DepositUUID)
	httpReq.Header.Set("X-Container-ID", strconv.FormatInt(req.ContainerID, 10))
	if c.providerUUID != "" {
		httpReq.Header.Set("X-Provider-UUID", c.providerUUID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, "deposit", "submit", "preservation network unreachable", err)
	}
	defer drainAndClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusAccepted:
		receipt := strings.TrimSpace(resp.Header.Get("Location"))
		if receipt == "" {
			return "", services.Wrap(services.ErrNetwork, "deposit", "submit", "network accepted deposit without a receipt URL", nil)
		}
		return c.absoluteReceipt(receipt)
	case resp.StatusCode >= 500:
		return "", services.Wrap(services.ErrNetwork, "deposit", "submit",
			fmt.Sprintf("network error %d", resp.StatusCode), nil)
	default:
		body := readBodyPrefix(resp.Body)
		return "", services.Wrap(services.ErrValidation, "deposit", "submit",
			fmt.Sprintf("network rejected deposit with status %d: %s", resp.StatusCode, body), nil)
	}
}

// Statement queries the preservation status recorded under a receipt
// URL. Absence of agreement is reported as StatusInProgress, not as an
// error.
func (c *Client) Statement(ctx context.Context, receiptURL string) (AgreementStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, receiptURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "status-poll", "build request", receiptURL, err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, "status-poll", "statement", "preservation network unreachable", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return "", services.Wrap(services.ErrNetwork, "status-poll", "statement",
				fmt.Sprintf("network error %d", resp.StatusCode), nil)
		}
		return "", services.Wrap(services.ErrValidation, "status-poll", "statement",
			fmt.Sprintf("statement request failed with status %d", resp.StatusCode), nil)
	}

	var payload struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrNetwork, "status-poll", "statement", "malformed statement response", err)
	}

	switch strings.TrimSpace(payload.State) {
	case string(StatusAgreement):
		return StatusAgreement, nil
	case string(StatusRejected):
		return StatusRejected, nil
	default:
		return StatusInProgress, nil
	}
}

func (c *Client) absoluteReceipt(receipt string) (string, error) {
	parsed, err := url.Parse(receipt)
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, "deposit", "submit", "malformed receipt URL", err)
	}
	if parsed.IsAbs() {
		return receipt, nil
	}
	base, err := url.Parse(c.endpoint)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "deposit", "submit", "malformed endpoint", err)
	}
	return base.ResolveReference(parsed).String(), nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}

func readBodyPrefix(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 512))
	return strings.TrimSpace(string(raw))
}
