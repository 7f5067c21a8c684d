package response

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/baechuer/orderflow/internal/domain"
)

// ErrorPayload is the body of the error envelope's "error" field.
type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id"`
	Details   map[string]string `json:"details,omitempty"`
}

// ErrorBody is the top-level shape of every non-2xx response.
type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

var codeToStatus = map[domain.ErrCode]int{
	domain.CodeValidationError: http.StatusBadRequest,
	domain.CodeBadRequest:      http.StatusBadRequest,
	domain.CodeNotFound:        http.StatusNotFound,
	domain.CodeConflict:        http.StatusConflict,
	domain.CodeInternalError:   http.StatusInternalServerError,
}

// JSON writes a flat, unwrapped JSON body with the given status. Success
// responses in this API are not enveloped.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Err maps err to the stable error envelope. A *domain.AppError carries its
// own code and status; anything else is treated as an opaque internal
// error so store/driver failures never leak details to the client.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeInternalError
	message := "internal error"
	var details map[string]string

	var ae *domain.AppError
	if errors.As(err, &ae) {
		code = ae.Code
		message = ae.Message
		details = ae.Details
	}

	status, ok := codeToStatus[code]
	if !ok {
		status = http.StatusInternalServerError
		code = domain.CodeInternalError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{
		Error: ErrorPayload{
			Code:      string(code),
			Message:   message,
			RequestID: chimw.GetReqID(r.Context()),
			Details:   details,
		},
	})
}
