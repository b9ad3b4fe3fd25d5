package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type envelope struct {
	Error   bool              `json:"error"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Error: true, Message: msg})
}

// fail answers with the status an apiError carries, or a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if ae, ok := asAPIError(err); ok {
		writeError(w, ae.status, ae.msg)
		return
	}
	s.logger.Error("request failed", "path", r.URL.Path, "request_id", infoFrom(r.Context()).id, "error", err)
	writeError(w, http.StatusInternalServerError, "Server error.")
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// decodeValid reads a JSON body into dst and validates it, answering 400 or
// 422 itself when it returns false.
func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unreadable body.")
		return false
	}
	return s.validJSON(w, r, body, dst)
}

func (s *Server) validJSON(w http.ResponseWriter, r *http.Request, body []byte, dst any) bool {
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed JSON body.")
		return false
	}
	err := validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		s.fail(w, r, err)
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = "The " + fe.Field() + " field is invalid (" + fe.Tag() + ")."
	}
	writeJSON(w, http.StatusUnprocessableEntity, envelope{
		Error:   true,
		Message: "The given data was invalid.",
		Errors:  fields,
	})
	return false
}
