package sii

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/mfuentesc/siidte/internal/common"
)

// SplitRUT separates a RUT in "body-dv" form into its numeric body and
// verification digit, as the upload endpoint wants them in separate fields.
func SplitRUT(rut string) (body, dv string, err error) {
	idx := strings.LastIndex(rut, "-")
	if idx <= 0 || idx == len(rut)-1 {
		return "", "", fmt.Errorf("%w: malformed RUT %q", common.ErrorProtocol, rut)
	}
	return rut[:idx], rut[idx+1:], nil
}

// Upload submits a signed DTE to the reception endpoint as a multipart form.
// The sender is the certificate holder and the company is the document
// emitter; both RUTs travel split into body and verification digit. Returns
// the authority's raw response body, which carries the track identifier.
func (c *Client) Upload(ctx context.Context, rutSender, rutCompany, token string, signedDTE []byte) (string, error) {
	senderBody, senderDV, err := SplitRUT(rutSender)
	if err != nil {
		return "", err
	}
	companyBody, companyDV, err := SplitRUT(rutCompany)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"rutSender":  senderBody,
		"dvSender":   senderDV,
		"rutCompany": companyBody,
		"dvCompany":  companyDV,
		"token":      token,
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return "", &common.TransportError{Err: err}
		}
	}
	part, err := w.CreateFormFile("archivo", "dte.xml")
	if err != nil {
		return "", &common.TransportError{Err: err}
	}
	if _, err := part.Write(signedDTE); err != nil {
		return "", &common.TransportError{Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &common.TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, &buf)
	if err != nil {
		return "", &common.TransportError{Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Cookie", "TOKEN="+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &common.TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &common.TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &common.TransportError{Status: resp.Status, Body: string(respBody)}
	}

	c.log.Info(ctx, "dte uploaded", "rutCompany", rutCompany)
	return string(respBody), nil
}
