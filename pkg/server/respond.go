package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/harunnryd/sampark/pkg/errorsx"
)

const maxBodyBytes = 4 << 20

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {error, message} with the status of its reason.
func writeError(w http.ResponseWriter, err error) {
	reason := errorsx.Reason(err)
	writeJSON(w, reason.HTTPStatus(), errorBody{Error: string(reason), Message: err.Error()})
}

func (s *Server) writeMarkup(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", s.markup.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

// decodeBody reads a JSON body into v. Form bodies are accepted as well;
// fields become a JSON object whose repeated keys turn into arrays.
func decodeBody(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return errorsx.Errorf(errorsx.ReasonValidation, "invalid form: %v", err)
		}
		obj := make(map[string]any, len(r.PostForm))
		for k, vals := range r.PostForm {
			if len(vals) == 1 && !strings.HasSuffix(k, "[]") {
				obj[k] = vals[0]
				continue
			}
			obj[strings.TrimSuffix(k, "[]")] = vals
		}
		raw, err := json.Marshal(obj)
		if err != nil {
			return errorsx.Wrap(err, errorsx.ReasonValidation)
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return errorsx.Errorf(errorsx.ReasonValidation, "invalid form: %v", err)
		}
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errorsx.Validation("request body is required")
		}
		return errorsx.Errorf(errorsx.ReasonValidation, "invalid json: %v", err)
	}
	return nil
}
