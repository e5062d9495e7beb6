package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"palletrack/infrastructure/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeValid decodes a JSON body into dst and runs struct validation.
// Validation failures come back as apperr.Validation.
func DecodeValid(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" failed "+fe.Tag())
			}
			return apperr.Validation("%s", strings.Join(fields, "; "))
		}
		return apperr.Validation("%v", err)
	}
	return nil
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// WriteError maps err to its HTTP status and writes a JSON error payload.
func WriteError(w http.ResponseWriter, err error) {
	status := apperr.StatusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", slog.Any("err", err))
		WriteJSON(w, status, map[string]string{"code": apperr.CodeInternal, "error": "internal error"})
		return
	}
	WriteJSON(w, status, map[string]string{"code": apperr.CodeOf(err), "error": err.Error()})
}
