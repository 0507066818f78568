// Package framing encodes provider text deltas into the wire formats understood by
// streaming chat clients.
package framing

import (
	"bytes"
	"encoding/json"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	// Text passes deltas through unchanged.
	Text = "text"
	// Data emits the line-based data stream protocol ("0:" parts, "d:" finish).
	Data = "data"
)

// HeaderName and HeaderValue are attached to every streaming response regardless of framing.
const (
	HeaderName  = "x-vercel-ai-data-stream"
	HeaderValue = "v1"
)

// Framer turns deltas into output chunks. A nil chunk means nothing is emitted.
type Framer interface {
	Delta(delta string) []byte
	Finish(accumulated string) []byte
}

// For returns the framer for a protocol name. Unknown names get a framer that emits nothing.
func For(protocol string) Framer {
	switch protocol {
	case Text:
		return textFramer{}
	case Data:
		return dataFramer{}
	default:
		return silentFramer{}
	}
}

// Known reports whether protocol selects a framing that produces output.
func Known(protocol string) bool {
	return protocol == Text || protocol == Data
}

type textFramer struct{}

func (textFramer) Delta(delta string) []byte { return []byte(delta) }

func (textFramer) Finish(string) []byte { return nil }

type dataFramer struct{}

type finishUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

type finishEvent struct {
	FinishReason string      `json:"finishReason"`
	Usage        finishUsage `json:"usage"`
}

func (dataFramer) Delta(delta string) []byte {
	return line("0:", delta)
}

// Finish reports the accumulated character count as completionTokens; promptTokens is
// always zero.
func (dataFramer) Finish(accumulated string) []byte {
	return line("d:", finishEvent{
		FinishReason: "stop",
		Usage:        finishUsage{CompletionTokens: CompletionTokens(accumulated)},
	})
}

type silentFramer struct{}

func (silentFramer) Delta(string) []byte { return nil }

func (silentFramer) Finish(string) []byte { return nil }

// CompletionTokens is the usage figure reported for a response: its length in characters.
func CompletionTokens(accumulated string) int {
	return utf8.RuneCountInString(accumulated)
}

// line writes prefix + JSON(v) + "\n" with every non-ASCII rune (and DEL) escaped as
// \uXXXX, surrogate pairs above the BMP. Clients compare frames byte for byte against
// that ASCII-only encoding.
func line(prefix string, v any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		// strings and the fixed finish struct always encode
		panic(err)
	}

	raw := buf.Bytes()
	out := make([]byte, 0, len(prefix)+len(raw))
	out = append(out, prefix...)
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		raw = raw[size:]
		switch {
		case r < utf8.RuneSelf && r != 0x7f:
			out = append(out, byte(r))
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			out = appendUnicodeEscape(out, hi)
			out = appendUnicodeEscape(out, lo)
		default:
			out = appendUnicodeEscape(out, r)
		}
	}
	return out
}

const hexDigits = "0123456789abcdef"

func appendUnicodeEscape(dst []byte, r rune) []byte {
	return append(dst, '\\', 'u',
		hexDigits[r>>12&0xf], hexDigits[r>>8&0xf], hexDigits[r>>4&0xf], hexDigits[r&0xf])
}
