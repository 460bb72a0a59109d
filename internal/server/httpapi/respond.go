package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mfuentesc/siidte/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors onto HTTP statuses. Unknown errors
// become 500 with a generic message so internals never leak outward.
func writeServiceError(w http.ResponseWriter, err error) {
	var rejected *common.AuthorityRejectedError
	var transport *common.TransportError

	switch {
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "no encontrado")
	case errors.Is(err, common.ErrorWrongPassword):
		writeError(w, http.StatusBadRequest, "contraseña incorrecta")
	case errors.Is(err, common.ErrorNoSeed):
		writeError(w, http.StatusConflict, "no hay semilla vigente")
	case errors.Is(err, common.ErrorSeedExpired):
		writeError(w, http.StatusConflict, "semilla vencida")
	case errors.Is(err, common.ErrorNoToken):
		writeError(w, http.StatusPreconditionFailed, "no hay token vigente")
	case errors.Is(err, common.ErrorInvalidState):
		writeError(w, http.StatusConflict, "estado de factura no permite el envío")
	case errors.As(err, &rejected):
		writeError(w, http.StatusBadGateway, rejected.Glosa)
	case errors.As(err, &transport), errors.Is(err, common.ErrorProtocol):
		writeError(w, http.StatusBadGateway, "error de comunicación con el SII")
	default:
		writeError(w, http.StatusInternalServerError, "error interno")
	}
}
