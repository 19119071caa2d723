package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"postbot/internal/errors"
)

type named struct {
	Name string `json:"name"`
}

func (n *named) Validate() error {
	if n.Name == "" {
		return errors.ValidationError("name is required", nil)
	}
	return nil
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"x"}`},
		{name: "fails validation", body: `{}`, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v named
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := DecodeRequest(httptest.NewRecorder(), req, &v)
			if tt.wantErr {
				assert.True(t, errors.IsValidation(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "x", v.Name)
		})
	}
}
