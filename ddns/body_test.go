package ddns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBodyStructured(t *testing.T) {
	raw := `{"success":true,"errors":[],"result":{"id":"r1","name":"host.example.com","type":"A","content":"9.9.9.9","ttl":1,"proxied":false,"modified_on":"2024-01-02T03:04:05Z"}}`

	body := ParseBody([]byte(raw))
	s, ok := body.(Structured)
	require.True(t, ok, "expected Structured, got %T", body)

	summary := s.Summary()
	for _, want := range []string{"host.example.com", "type: A", "9.9.9.9", "ttl: auto", "proxied: false", "2024-01-02T03:04:05Z"} {
		assert.Contains(t, summary, want)
	}
}

func TestParseBodyStructuredMissingFields(t *testing.T) {
	body := ParseBody([]byte(`{"result":{"name":"a.example.com","ttl":300,"proxied":true}}`))
	assert.Equal(t, "name: a.example.com, type: -, content: -, ttl: 300s, proxied: true, modified_on: -", body.Summary())
}

func TestParseBodyDocument(t *testing.T) {
	body := ParseBody([]byte(`{"success":false,"errors":[{"code":81044,"message":"Record does not exist."}],"result":null}`))
	d, ok := body.(Document)
	require.True(t, ok, "expected Document, got %T", body)
	assert.Contains(t, d.Pretty, "\n")
	assert.Contains(t, d.Pretty, "Record does not exist.")
}

func TestParseBodyOpaque(t *testing.T) {
	for _, raw := range []string{"<html>bad gateway</html>", `["a","b"]`, "null", ""} {
		body := ParseBody([]byte(raw))
		assert.IsType(t, Opaque{}, body, raw)
		assert.Equal(t, raw, body.Summary())
	}
}
