package api

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(data); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) errorJSON(w http.ResponseWriter, r *http.Request, status int, env errorEnvelope) {
	if err := writeJSON(w, status, env); err != nil {
		s.logger.Errorw("write error response", "method", r.Method, "path", r.URL.Path, "error", err)
	}
}

func (s *Server) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	s.errorJSON(w, r, http.StatusBadRequest, errorEnvelope{Error: err.Error(), Code: "bad_request"})
}

func (s *Server) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	s.errorJSON(w, r, http.StatusInternalServerError, errorEnvelope{Error: "the server encountered a problem", Code: "internal"})
}
