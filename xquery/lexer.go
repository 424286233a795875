package xquery

import (
	"strings"
	"unicode"

	"github.com/ipvc/tabx/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokSlash
	tokDblSlash
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokComma
	tokAxis // ::
	tokDot
	tokEq
	tokNeq
	tokLt
	tokLe
	tokGt
	tokGe
	tokNumber
	tokString
	tokName
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex tokenizes a query expression. Names cover element names and the
// function/operator keywords, which the parser disambiguates.
func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '/':
			if i+1 < len(input) && input[i+1] == '/' {
				toks = append(toks, token{tokDblSlash, "//", i})
				i += 2
			} else {
				toks = append(toks, token{tokSlash, "/", i})
				i++
			}
		case c == '[':
			toks = append(toks, token{tokLBracket, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]", i})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '.':
			toks = append(toks, token{tokDot, ".", i})
			i++
		case c == ':' && i+1 < len(input) && input[i+1] == ':':
			toks = append(toks, token{tokAxis, "::", i})
			i += 2
		case c == '=':
			toks = append(toks, token{tokEq, "=", i})
			i++
		case c == '!':
			if i+1 >= len(input) || input[i+1] != '=' {
				return nil, errors.NewInvalidQuery("unexpected character %q at position %d", string(c), i)
			}
			toks = append(toks, token{tokNeq, "!=", i})
			i += 2
		case c == '<':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{tokLe, "<=", i})
				i += 2
			} else {
				toks = append(toks, token{tokLt, "<", i})
				i++
			}
		case c == '>':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{tokGe, ">=", i})
				i += 2
			} else {
				toks = append(toks, token{tokGt, ">", i})
				i++
			}
		case c == '\'' || c == '"':
			end := strings.IndexByte(input[i+1:], c)
			if end < 0 {
				return nil, errors.NewInvalidQuery("unterminated string literal at position %d", i)
			}
			toks = append(toks, token{tokString, input[i+1 : i+1+end], i})
			i += end + 2
		case c >= '0' && c <= '9':
			start := i
			for i < len(input) && (input[i] >= '0' && input[i] <= '9' || input[i] == '.') {
				i++
			}
			toks = append(toks, token{tokNumber, input[start:i], start})
		case isNameStart(rune(c)):
			start := i
			for i < len(input) && isNamePart(rune(input[i])) {
				i++
			}
			toks = append(toks, token{tokName, input[start:i], start})
		default:
			return nil, errors.NewInvalidQuery("unexpected character %q at position %d", string(c), i)
		}
	}
	toks = append(toks, token{tokEOF, "", len(input)})
	return toks, nil
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNamePart(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
