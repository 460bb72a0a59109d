// Package sii implements the challenge/response authentication protocol and
// the document upload transport of the Chilean tax authority (SII).
//
// Authentication is a two-step exchange: request a single-use seed from the
// challenge endpoint, then sign it and trade it for a short-lived bearer
// token. Both responses are XML-in-XML: the SOAP envelope carries an inner
// XML document as text, which must be parsed a second time.
package sii

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/mfuentesc/siidte/internal/common"
	"github.com/mfuentesc/siidte/internal/logging"
	"github.com/mfuentesc/siidte/internal/xmldsig"
)

// SII environments. Certification (maullin) is the sandbox; production
// (palena) is the live service.
const (
	EnvCertificacion = "certificacion"
	EnvProduccion    = "produccion"

	baseCertificacion = "https://maullin.sii.cl"
	baseProduccion    = "https://palena.sii.cl"

	seedPath   = "/DTEWS/CrSeed.jws"
	tokenPath  = "/DTEWS/GetTokenFromSeed.jws"
	uploadPath = "/cgi_dte/UPL/DTEUpload"

	// estadoOK is the only status the authority documents as success. Any
	// other value is a rejection.
	estadoOK = "00"
)

const seedRequestEnvelope = `<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/"
                   xmlns:SOAP-ENC="http://schemas.xmlsoap.org/soap/encoding/"
                   xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
                   xmlns:xsd="http://www.w3.org/2001/XMLSchema"
                   SOAP-ENV:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
  <SOAP-ENV:Body>
    <m:getSeed xmlns:m="https://palena.sii.cl/DTEWS/CrSeed.jws"/>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

// Client drives the SII web services. All calls are synchronous and bounded
// by the HTTP client timeout; timeouts surface as TransportError and are
// safe to retry by restarting the affected step.
type Client struct {
	baseURL string
	http    *http.Client
	signer  *xmldsig.Signer
	log     logging.Logger
}

// NewClient resolves the endpoint base from the environment name. Unknown
// environments fall back to certification, never to production.
func NewClient(env string, timeout time.Duration, signer *xmldsig.Signer, log logging.Logger) *Client {
	base := baseCertificacion
	if env == EnvProduccion {
		base = baseProduccion
	}
	return NewClientWithBaseURL(base, timeout, signer, log)
}

// NewClientWithBaseURL points the client at an explicit base URL. Used by
// tests and by deployments that front the SII with a proxy.
func NewClientWithBaseURL(baseURL string, timeout time.Duration, signer *xmldsig.Signer, log logging.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		signer:  signer,
		log:     log,
	}
}

// GetSeed requests a fresh challenge seed. The response nests an XML
// document inside the SOAP envelope: the getSeedReturn field (located by
// recursive search, first match in document order) carries the inner
// document whose SEMILLA element is the seed.
func (c *Client) GetSeed(ctx context.Context) (string, error) {
	body, err := c.post(ctx, seedPath, "", "text/xml; charset=utf-8", strings.NewReader(seedRequestEnvelope))
	if err != nil {
		return "", err
	}

	outer := etree.NewDocument()
	if err := outer.ReadFromBytes(body); err != nil {
		return "", fmt.Errorf("%w: seed response is not XML: %v", common.ErrorProtocol, err)
	}

	seedReturn := findFirst(outer.Root(), "getSeedReturn")
	if seedReturn == nil {
		return "", fmt.Errorf("%w: getSeedReturn not found in seed response", common.ErrorProtocol)
	}

	inner := etree.NewDocument()
	if err := inner.ReadFromString(seedReturn.Text()); err != nil {
		return "", fmt.Errorf("%w: getSeedReturn payload is not XML: %v", common.ErrorProtocol, err)
	}

	seed := strings.TrimSpace(findFirstText(inner.Root(), "SEMILLA"))
	if seed == "" {
		return "", fmt.Errorf("%w: SEMILLA not found in seed response", common.ErrorProtocol)
	}

	c.log.Debug(ctx, "seed obtained from SII")
	return seed, nil
}

// GetToken signs the seed and exchanges it for a bearer token. Estado "00"
// is the only success; any other status yields AuthorityRejectedError with
// the authority's message verbatim.
func (c *Client) GetToken(ctx context.Context, seed string, keyPEM, certPEM []byte) (string, error) {
	envelope, err := c.buildTokenRequest(seed, keyPEM, certPEM)
	if err != nil {
		return "", err
	}

	body, err := c.post(ctx, tokenPath, "getToken", "text/xml", bytes.NewReader(envelope))
	if err != nil {
		return "", err
	}

	outer := etree.NewDocument()
	if err := outer.ReadFromBytes(body); err != nil {
		return "", fmt.Errorf("%w: token response is not XML: %v", common.ErrorProtocol, err)
	}

	tokenReturn := findFirst(outer.Root(), "getTokenReturn")
	if tokenReturn == nil {
		return "", fmt.Errorf("%w: getTokenReturn not found in token response", common.ErrorProtocol)
	}

	inner := etree.NewDocument()
	if err := inner.ReadFromString(tokenReturn.Text()); err != nil {
		return "", fmt.Errorf("%w: getTokenReturn payload is not XML: %v", common.ErrorProtocol, err)
	}

	estado := strings.TrimSpace(findFirstText(inner.Root(), "ESTADO"))
	if estado == "" {
		return "", fmt.Errorf("%w: ESTADO not found in token response", common.ErrorProtocol)
	}
	if estado != estadoOK {
		return "", &common.AuthorityRejectedError{
			Estado: estado,
			Glosa:  strings.TrimSpace(findFirstText(inner.Root(), "GLOSA")),
		}
	}

	token := strings.TrimSpace(findFirstText(inner.Root(), "TOKEN"))
	if token == "" {
		return "", fmt.Errorf("%w: TOKEN not found in token response", common.ErrorProtocol)
	}

	c.log.Debug(ctx, "token obtained from SII")
	return token, nil
}

// buildTokenRequest builds the getToken fragment embedding the seed, signs
// it, and wraps the signed fragment in the SOAP envelope.
func (c *Client) buildTokenRequest(seed string, keyPEM, certPEM []byte) ([]byte, error) {
	fragment := etree.NewDocument()
	getToken := fragment.CreateElement("getToken")
	getToken.CreateAttr("xmlns", "http://DefaultNamespace")
	item := getToken.CreateElement("item")
	item.CreateElement("Semilla").SetText(seed)

	fragmentBytes, err := fragment.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorSigning, err)
	}

	signed, err := c.signer.Sign(fragmentBytes, keyPEM, certPEM)
	if err != nil {
		return nil, err
	}

	signedDoc := etree.NewDocument()
	if err := signedDoc.ReadFromBytes(signed); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorSigning, err)
	}

	envelope := etree.NewDocument()
	soapEnv := envelope.CreateElement("soap:Envelope")
	soapEnv.CreateAttr("xmlns:soap", "http://schemas.xmlsoap.org/soap/envelope/")
	soapEnv.CreateElement("soap:Header")
	soapBody := soapEnv.CreateElement("soap:Body")
	soapBody.AddChild(signedDoc.Root())

	return envelope.WriteToBytes()
}

// post sends the request and returns the response body. Network failures
// and non-2xx statuses both surface as TransportError; the response body is
// carried for diagnostics.
func (c *Client) post(ctx context.Context, path, soapAction, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, &common.TransportError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("SOAPAction", soapAction)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &common.TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &common.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &common.TransportError{Status: resp.Status, Body: string(respBody)}
	}

	return respBody, nil
}
