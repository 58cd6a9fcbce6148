package resilience

import (
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", eris.New("bad request"), false},
		{"transient wrapper", NewTransientError(eris.New("503"), 503), true},
		{"wrapped transient", fmt.Errorf("outer: %w", NewTransientError(eris.New("inner"), 500)), true},
		{"connection reset message", eris.New("read tcp: connection reset by peer"), true},
		{"io timeout message", eris.New("dial tcp: i/o timeout"), true},
		{"no such host message", eris.New("lookup api.example.com: no such host"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := eris.New("inner")
	te := NewTransientError(inner, 500)
	assert.Equal(t, "inner", te.Error())
	assert.Equal(t, inner, te.Unwrap())
	assert.Equal(t, 500, te.StatusCode)
}
