// AngelaMos | 2026
// request.go

package core

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// DecodeValid reads a JSON body into dst and validates it. On failure it
// writes a 400 and reports false.
func DecodeValid(
	w http.ResponseWriter,
	r *http.Request,
	v *validator.Validate,
	dst any,
) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	if err := v.Struct(dst); err != nil {
		BadRequest(w, FormatValidationError(err))
		return false
	}
	return true
}
