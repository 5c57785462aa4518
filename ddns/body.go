package ddns

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Body is the parsed provider response: Structured, Document or Opaque.
type Body interface {
	Summary() string
	isBody()
}

// RecordFields are the fields of the "result" object worth reporting.
// Absent fields stay nil.
type RecordFields struct {
	Name       *string `json:"name"`
	Type       *string `json:"type"`
	Content    *string `json:"content"`
	TTL        *int    `json:"ttl"`
	Proxied    *bool   `json:"proxied"`
	ModifiedOn *string `json:"modified_on"`
}

// Structured is a JSON object response carrying a "result" object.
type Structured struct {
	Result RecordFields
}

// Document is any other JSON object response.
type Document struct {
	Pretty string
}

// Opaque is a response that is not a JSON object.
type Opaque struct {
	Text string
}

func (Structured) isBody() {}
func (Document) isBody()   {}
func (Opaque) isBody()     {}

func (b Structured) Summary() string {
	r := b.Result
	return strings.Join([]string{
		"name: " + str(r.Name),
		"type: " + str(r.Type),
		"content: " + str(r.Content),
		"ttl: " + ttl(r.TTL),
		"proxied: " + boolean(r.Proxied),
		"modified_on: " + str(r.ModifiedOn),
	}, ", ")
}

func (b Document) Summary() string {
	return b.Pretty
}

func (b Opaque) Summary() string {
	return b.Text
}

func str(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func boolean(b *bool) string {
	if b == nil {
		return "-"
	}
	return strconv.FormatBool(*b)
}

func ttl(t *int) string {
	switch {
	case t == nil:
		return "-"
	case *t == 1:
		return "auto"
	default:
		return fmt.Sprintf("%ds", *t)
	}
}

// ParseBody classifies a raw provider response body.
func ParseBody(raw []byte) Body {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return Opaque{Text: string(raw)}
	}

	if result := bytes.TrimSpace(obj["result"]); len(result) > 0 && result[0] == '{' {
		var fields RecordFields
		if err := json.Unmarshal(result, &fields); err == nil {
			return Structured{Result: fields}
		}
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		return Opaque{Text: string(raw)}
	}
	return Document{Pretty: buf.String()}
}
