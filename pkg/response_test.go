package pkg

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteResponse(rr, "text/plain", "hello there")
	assert.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
	assert.Equal(t, "hello there", rr.Body.String())

	rr = httptest.NewRecorder()
	WriteResponse(rr, "", "no content type")
	assert.Empty(t, rr.Header().Get("Content-Type"))
	assert.Equal(t, "no content type", rr.Body.String())
}
