package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/dropDatabas3/gatekeeper/internal/auth"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
)

const maxBodyBytes = auth.MaxBodyBytes

// errorBody es la forma de todo error de la API. error lleva el código de
// motivo (p.ej. "invalidPassword") para que los clientes ramifiquen sin parsear texto.
type errorBody struct {
	Code      string `json:"error"`
	Message   string `json:"error_description,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError incluye el X-Request-ID ya fijado por el middleware.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, errorBody{Code: code, Message: msg, RequestID: w.Header().Get("X-Request-ID")})
}

// WriteResult responde 401 con el motivo de un Result fallido.
func WriteResult(w http.ResponseWriter, res result.Result) {
	WriteError(w, http.StatusUnauthorized, string(res.Reason()), res.Message())
}

// ReadJSON exige application/json y un body de hasta 1MB. Un body vacío deja v
// sin tocar. Si devuelve false ya escribió el 400.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Content-Type must be application/json")
		return false
	}
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "invalid_json", "malformed JSON body")
		return false
	}
	return true
}

// writeRequestError responde a un error de auth.NewRequest.
func writeRequestError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrBodyTooLarge) {
		WriteError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body exceeds 1MB")
		return
	}
	WriteError(w, http.StatusBadRequest, "invalid_request", "unreadable body")
}
