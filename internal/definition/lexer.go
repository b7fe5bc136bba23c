package definition

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIdent
	tokString
	tokNumber
	tokAt
	tokAtAt
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokQuestion
	tokColon
	tokEquals
	tokOther
)

var punct = map[byte]tokenKind{
	'{': tokLBrace,
	'}': tokRBrace,
	'(': tokLParen,
	')': tokRParen,
	'[': tokLBracket,
	']': tokRBracket,
	',': tokComma,
	'?': tokQuestion,
	':': tokColon,
	'=': tokEquals,
}

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) is(kind tokenKind) bool { return t.kind == kind }

func (t token) isIdent(text string) bool { return t.kind == tokIdent && t.text == text }

// lex splits src into tokens. Comments are dropped; every line break becomes
// a tokNewline so the parser can work line by line without re-scanning text.
func lex(src string) []token {
	var toks []token
	line := 1
	emit := func(kind tokenKind, text string) {
		toks = append(toks, token{kind: kind, text: text, line: line})
	}

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\n':
			emit(tokNewline, "\n")
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '@':
			if i+1 < len(src) && src[i+1] == '@' {
				emit(tokAtAt, "@@")
				i += 2
			} else {
				emit(tokAt, "@")
				i++
			}
		case c == '"':
			text, n := lexString(src[i:])
			emit(tokString, text)
			i += n
		case c >= '0' && c <= '9' || c == '-' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			j := i + 1
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			emit(tokNumber, src[i:j])
			i = j
		default:
			if kind, ok := punct[c]; ok {
				emit(kind, string(c))
				i++
				continue
			}
			r, size := utf8.DecodeRuneInString(src[i:])
			if isIdentStart(r) {
				j := i + size
				for j < len(src) {
					r, size := utf8.DecodeRuneInString(src[j:])
					if isIdentPart(r) || r == '.' && j+1 < len(src) && isIdentStartByte(src[j+1]) {
						j += size
						continue
					}
					break
				}
				emit(tokIdent, src[i:j])
				i = j
				continue
			}
			emit(tokOther, src[i:i+size])
			i += size
		}
	}
	emit(tokEOF, "")
	return toks
}

// lexString reads a double-quoted string starting at s[0] and returns its
// unescaped content and the number of bytes consumed. An unterminated string
// ends at the line break.
func lexString(s string) (string, int) {
	var b strings.Builder
	i := 1
	for i < len(s) {
		switch s[i] {
		case '"':
			return b.String(), i + 1
		case '\n':
			return b.String(), i
		case '\\':
			if i+1 < len(s) && s[i+1] != '\n' {
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String(), i
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentStartByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
