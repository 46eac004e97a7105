// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/service"
)

const maxBodyBytes = 1 << 20

// errNoBody is returned by decodeJSON when the request carries no body.
var errNoBody = errors.New("request body is empty")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errNoBody
		}
		return err
	}
	return nil
}

// responder carries what every handler needs to report failures.
type responder struct {
	log   *zap.Logger
	debug bool
}

// serverError logs err and writes a 500. The error text is only exposed
// in debug mode.
func (rs responder) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	rs.log.Error(msg,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	resp := model.ErrorResponse{Error: msg}
	if rs.debug {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

// validationError writes a 400 when err is a *service.ValidationError and
// reports whether it did.
func validationError(w http.ResponseWriter, err error) bool {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Message)
		return true
	}
	return false
}

// NotFound answers unknown routes with a JSON 404.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "resource not found")
}

// MethodNotAllowed answers known routes hit with the wrong verb.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
