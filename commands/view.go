package commands

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// StringView is a cursor over command text. Tokens are split on whitespace;
// a double-quoted run is one token, and inside quotes \" and \\ are escapes.
type StringView struct {
	buf string
	pos int
}

func NewStringView(s string) *StringView {
	return &StringView{buf: s}
}

func (v *StringView) skipSpace() {
	for v.pos < len(v.buf) {
		r, size := utf8.DecodeRuneInString(v.buf[v.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		v.pos += size
	}
}

// EOF reports whether only whitespace remains
func (v *StringView) EOF() bool {
	v.skipSpace()
	return v.pos >= len(v.buf)
}

// Next returns the next token. ok is false at end of input.
func (v *StringView) Next() (string, bool) {
	v.skipSpace()
	if v.pos >= len(v.buf) {
		return "", false
	}

	if v.buf[v.pos] == '"' {
		return v.quoted(), true
	}

	start := v.pos
	for v.pos < len(v.buf) {
		r, size := utf8.DecodeRuneInString(v.buf[v.pos:])
		if unicode.IsSpace(r) {
			break
		}
		v.pos += size
	}
	return v.buf[start:v.pos], true
}

// quoted reads a quoted token. An unterminated quote runs to end of input.
func (v *StringView) quoted() string {
	var b strings.Builder
	v.pos++ // opening quote

	for v.pos < len(v.buf) {
		c := v.buf[v.pos]
		switch {
		case c == '\\' && v.pos+1 < len(v.buf) && (v.buf[v.pos+1] == '"' || v.buf[v.pos+1] == '\\'):
			b.WriteByte(v.buf[v.pos+1])
			v.pos += 2
		case c == '"':
			v.pos++
			return b.String()
		default:
			b.WriteByte(c)
			v.pos++
		}
	}
	return b.String()
}

// Rest returns everything after the cursor with leading whitespace removed
func (v *StringView) Rest() string {
	v.skipSpace()
	rest := v.buf[v.pos:]
	v.pos = len(v.buf)
	return rest
}

// Tell and Seek let the resolver back out of a token that was not a sub-command
func (v *StringView) Tell() int    { return v.pos }
func (v *StringView) Seek(pos int) { v.pos = pos }

// Split tokenises s completely
func Split(s string) []string {
	v := NewStringView(s)
	var out []string
	for {
		tok, ok := v.Next()
		if !ok {
			return out
		}
		out = append(out, tok)
	}
}

// Format joins tokens so that Split gives them back
func Format(tokens []string) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		if needsQuoting(tok) {
			r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
			parts[i] = `"` + r.Replace(tok) + `"`
		} else {
			parts[i] = tok
		}
	}
	return strings.Join(parts, " ")
}

func needsQuoting(tok string) bool {
	if tok == "" {
		return true
	}
	return strings.ContainsRune(tok, '"') || strings.IndexFunc(tok, unicode.IsSpace) >= 0
}
