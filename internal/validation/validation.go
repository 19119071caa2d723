package validation

import (
	"encoding/json"
	"net/http"

	"postbot/internal/errors"
)

const MaxBodyBytes = 32 << 20

type Validator interface {
	Validate() error
}

// DecodeRequest reads a JSON body into v and validates it.
func DecodeRequest(w http.ResponseWriter, r *http.Request, v Validator) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ValidationError("invalid request body", err.Error())
	}
	return v.Validate()
}
