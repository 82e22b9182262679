// FILE: internal/pkg/serverutils/response.go
package serverutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Response is the uniform JSON envelope for successful requests.
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessResponse(message string, data interface{}) Response {
	return Response{
		Message: message,
		Data:    data,
	}
}

// ErrorResponse is an error carrying the HTTP status it should map to.
// The error middleware turns it into the JSON envelope.
type ErrorResponse struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{Code: code, Message: message}
}

// ValidateRequest runs struct-tag validation and maps failures to a 400.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return NewErrorResponse(400, err.Error())
	}
	return nil
}
