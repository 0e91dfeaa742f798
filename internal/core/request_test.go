// AngelaMos | 2026
// request_test.go

package core

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type bonusBody struct {
	Amount int64 `json:"amount" validate:"required,min=1"`
}

func TestDecodeValid(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())

	tests := []struct {
		name   string
		body   string
		ok     bool
		status int
		msg    string
	}{
		{"valid", `{"amount":5}`, true, http.StatusOK, ""},
		{"malformed", `{"amount":`, false, http.StatusBadRequest, "invalid request body"},
		{"fails validation", `{"amount":0}`, false, http.StatusBadRequest, "Amount is required"},
		{"oversized", `{"amount":1,"pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`, false, http.StatusBadRequest, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst bonusBody
			assert.Equal(t, tt.ok, DecodeValid(rec, req, v, &dst))
			assert.Equal(t, tt.status, rec.Code)
			if tt.msg != "" {
				assert.Contains(t, rec.Body.String(), tt.msg)
			}
		})
	}
}
