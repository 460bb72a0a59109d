// Package httpapi exposes the certificate, SII authentication and invoice
// submission flows over a JSON/multipart HTTP surface. All /api routes
// require a bearer token; the account id travels in the token, never in
// the URL.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mfuentesc/siidte/internal/logging"
	"github.com/mfuentesc/siidte/internal/server/models"
	"github.com/mfuentesc/siidte/internal/server/services"
)

// CertificateService is the certificate lifecycle surface the API needs.
type CertificateService interface {
	Import(ctx context.Context, accountID string, container []byte, password string) (*models.CertificateEnvelope, error)
	Info(ctx context.Context, accountID string) (*models.CertificateEnvelope, error)
	Delete(ctx context.Context, accountID string) error
}

// AuthService is the SII challenge/response surface the API needs.
type AuthService interface {
	RequestSeed(ctx context.Context, accountID string) (string, time.Time, error)
	RequestToken(ctx context.Context, accountID, password string) (string, time.Time, error)
}

// SubmissionService is the invoice submission surface the API needs.
type SubmissionService interface {
	Submit(ctx context.Context, accountID string, invoiceID int64, password string) (*services.SubmissionResult, error)
}

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	certs     CertificateService
	auth      AuthService
	subs      SubmissionService
	secretKey []byte
	log       logging.Logger
}

func NewHandler(certs CertificateService, auth AuthService, subs SubmissionService,
	secretKey []byte, log logging.Logger) *Handler {
	return &Handler{
		certs:     certs,
		auth:      auth,
		subs:      subs,
		secretKey: secretKey,
		log:       log,
	}
}

// NewRouter builds the route table. The /health probe is the only
// unauthenticated route.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.requireAccount)

	api.HandleFunc("/certificate", h.importCertificate).Methods(http.MethodPost)
	api.HandleFunc("/certificate", h.certificateInfo).Methods(http.MethodGet)
	api.HandleFunc("/certificate", h.deleteCertificate).Methods(http.MethodDelete)

	api.HandleFunc("/sii/seed", h.requestSeed).Methods(http.MethodPost)
	api.HandleFunc("/sii/token", h.requestToken).Methods(http.MethodPost)

	api.HandleFunc("/invoices/{id:[0-9]+}/send", h.sendInvoice).Methods(http.MethodPost)

	return r
}
