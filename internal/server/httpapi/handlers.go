package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mfuentesc/siidte/internal/common"
	"github.com/mfuentesc/siidte/internal/server/models"
)

// maxContainerBytes caps the certificate container upload. Real PKCS#12
// files are a few kilobytes; anything near this limit is garbage.
const maxContainerBytes = 1 << 20

type certificateResponse struct {
	Subject   string    `json:"subject"`
	Issuer    string    `json:"issuer"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
	RUT       string    `json:"rut,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}

func newCertificateResponse(env *models.CertificateEnvelope) certificateResponse {
	return certificateResponse{
		Subject:   env.Subject,
		Issuer:    env.Issuer,
		ValidFrom: env.ValidFrom,
		ValidTo:   env.ValidTo,
		RUT:       env.RUT,
		IssuedAt:  env.IssuedAt,
	}
}

type seedResponse struct {
	Semilla   string    `json:"semilla"`
	Timestamp time.Time `json:"timestamp"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	Timestamp time.Time `json:"timestamp"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type submissionResponse struct {
	InvoiceID   int64  `json:"invoice_id"`
	Estado      string `json:"estado"`
	AlreadySent bool   `json:"already_sent"`
	Response    string `json:"response,omitempty"`
}

// importCertificate takes a multipart form with a "pfx" file and a
// "password" field. Every import failure collapses into one generic 400
// so a caller cannot distinguish a bad password from a broken container.
func (h *Handler) importCertificate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxContainerBytes); err != nil {
		writeError(w, http.StatusBadRequest, "formulario multipart inválido")
		return
	}

	file, _, err := r.FormFile("pfx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "falta el archivo pfx")
		return
	}
	defer file.Close()

	container, err := io.ReadAll(io.LimitReader(file, maxContainerBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "no se pudo leer el archivo")
		return
	}
	password := r.FormValue("password")

	env, err := h.certs.Import(r.Context(), accountID(r), container, password)
	if err != nil {
		if errors.Is(err, common.ErrorWrongPassword) || errors.Is(err, common.ErrorInvalidContainer) {
			writeError(w, http.StatusBadRequest, "contraseña incorrecta o certificado inválido")
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newCertificateResponse(env))
}

func (h *Handler) certificateInfo(w http.ResponseWriter, r *http.Request) {
	env, err := h.certs.Info(r.Context(), accountID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCertificateResponse(env))
}

func (h *Handler) deleteCertificate(w http.ResponseWriter, r *http.Request) {
	if err := h.certs.Delete(r.Context(), accountID(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requestSeed(w http.ResponseWriter, r *http.Request) {
	seed, issuedAt, err := h.auth.RequestSeed(r.Context(), accountID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seedResponse{Semilla: seed, Timestamp: issuedAt})
}

func (h *Handler) requestToken(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo JSON inválido")
		return
	}

	token, issuedAt, err := h.auth.RequestToken(r.Context(), accountID(r), req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Timestamp: issuedAt})
}

func (h *Handler) sendInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id de factura inválido")
		return
	}

	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo JSON inválido")
		return
	}

	result, err := h.subs.Submit(r.Context(), accountID(r), invoiceID, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submissionResponse{
		InvoiceID:   result.InvoiceID,
		Estado:      result.Estado,
		AlreadySent: result.AlreadySent,
		Response:    result.Response,
	})
}
