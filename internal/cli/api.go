package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// APIClient talks to the backend HTTP API on behalf of one account. The
// bearer token is attached to every request.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// CertificateInfo is the identity summary the server reports for the
// stored certificate.
type CertificateInfo struct {
	Subject   string    `json:"subject"`
	Issuer    string    `json:"issuer"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
	RUT       string    `json:"rut"`
	IssuedAt  time.Time `json:"issued_at"`
}

// SeedResult is the authority challenge the server obtained.
type SeedResult struct {
	Semilla   string    `json:"semilla"`
	Timestamp time.Time `json:"timestamp"`
}

// TokenResult is the session token the server exchanged the seed for.
type TokenResult struct {
	Token     string    `json:"token"`
	Timestamp time.Time `json:"timestamp"`
}

// SendResult reports the outcome of an invoice submission.
type SendResult struct {
	InvoiceID   int64  `json:"invoice_id"`
	Estado      string `json:"estado"`
	AlreadySent bool   `json:"already_sent"`
	Response    string `json:"response"`
}

type apiError struct {
	Message string `json:"error"`
}

func (c *APIClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		if json.Unmarshal(data, &ae) == nil && ae.Message != "" {
			return fmt.Errorf("server error (%s): %s", resp.Status, ae.Message)
		}
		return fmt.Errorf("server error (%s)", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *APIClient) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json", out)
}

// ImportCertificate uploads a PKCS#12 container and its password.
func (c *APIClient) ImportCertificate(ctx context.Context, container []byte, password string) (*CertificateInfo, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("pfx", "certificate.pfx")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(container); err != nil {
		return nil, err
	}
	if err := w.WriteField("password", password); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var info CertificateInfo
	if err := c.do(ctx, http.MethodPost, "/api/certificate", &buf, w.FormDataContentType(), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetCertificate fetches the stored certificate's identity summary.
func (c *APIClient) GetCertificate(ctx context.Context) (*CertificateInfo, error) {
	var info CertificateInfo
	if err := c.do(ctx, http.MethodGet, "/api/certificate", nil, "", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DeleteCertificate removes the stored certificate.
func (c *APIClient) DeleteCertificate(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/certificate", nil, "", nil)
}

// RequestSeed asks the server to obtain a fresh authority seed.
func (c *APIClient) RequestSeed(ctx context.Context) (*SeedResult, error) {
	var res SeedResult
	if err := c.do(ctx, http.MethodPost, "/api/sii/seed", nil, "", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RequestToken exchanges the stored seed for a session token. The password
// unlocks the certificate's private key server-side.
func (c *APIClient) RequestToken(ctx context.Context, password string) (*TokenResult, error) {
	var res TokenResult
	if err := c.postJSON(ctx, "/api/sii/token", map[string]string{"password": password}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendInvoice submits the invoice to the authority.
func (c *APIClient) SendInvoice(ctx context.Context, invoiceID int64, password string) (*SendResult, error) {
	path := fmt.Sprintf("/api/invoices/%d/send", invoiceID)
	var res SendResult
	if err := c.postJSON(ctx, path, map[string]string{"password": password}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
