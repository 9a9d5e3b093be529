package sqltext

import (
	"strings"
	"unicode"

	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokKeyword
	tokString
	tokNumber
	tokParam
	tokSymbol
)

type token struct {
	kind tokenKind
	text string // keywords are upper-cased; strings are unquoted
	pos  int
}

var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AND": true, "ORDER": true, "BY": true,
	"ASC": true, "DESC": true, "LIMIT": true, "OFFSET": true, "INSERT": true, "INTO": true,
	"VALUES": true, "UPDATE": true, "SET": true, "DELETE": true, "RETURNING": true,
	"NULL": true, "TRUE": true, "FALSE": true,
	// recognised only to be rejected by name
	"OR": true, "NOT": true, "IN": true, "LIKE": true, "ILIKE": true, "IS": true, "BETWEEN": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true, "CROSS": true, "ON": true,
	"GROUP": true, "HAVING": true, "DISTINCT": true, "UNION": true, "AS": true, "WITH": true,
	"EXISTS": true, "CASE": true,
}

// lex splits input into tokens. Comments, quoted identifiers and operators
// other than = are rejected here.
func lex(input string) ([]token, error) {
	var (
		out []token
		i   int
	)
	for i < len(input) {
		c := rune(input[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '-' && i+1 < len(input) && input[i+1] == '-', c == '/' && i+1 < len(input) && input[i+1] == '*':
			return nil, srvErrors.NewParseError("comment", i, "comments are not accepted")
		case c == '\'':
			s, end, err := lexString(input, i)
			if err != nil {
				return nil, err
			}
			out = append(out, token{kind: tokString, text: s, pos: i})
			i = end
		case c == '"' || c == '`':
			return nil, srvErrors.NewParseError("quoted identifier", i, "")
		case c == '$':
			j := i + 1
			for j < len(input) && isDigit(input[j]) {
				j++
			}
			if j == i+1 {
				return nil, srvErrors.NewParseError("placeholder", i, "expected $ followed by a number")
			}
			out = append(out, token{kind: tokParam, text: input[i+1 : j], pos: i})
			i = j
		case isDigit(input[i]) || (c == '-' && i+1 < len(input) && isDigit(input[i+1])):
			j := i + 1
			dot := false
			for j < len(input) && (isDigit(input[j]) || (input[j] == '.' && !dot)) {
				if input[j] == '.' {
					dot = true
				}
				j++
			}
			out = append(out, token{kind: tokNumber, text: input[i:j], pos: i})
			i = j
		case c == '_' || isLetter(input[i]):
			j := i + 1
			for j < len(input) && (input[j] == '_' || isDigit(input[j]) || isLetter(input[j])) {
				j++
			}
			word := input[i:j]
			if upper := strings.ToUpper(word); keywords[upper] {
				out = append(out, token{kind: tokKeyword, text: upper, pos: i})
			} else {
				out = append(out, token{kind: tokIdent, text: word, pos: i})
			}
			i = j
		case strings.ContainsRune("(),=*;", c):
			out = append(out, token{kind: tokSymbol, text: string(c), pos: i})
			i++
		case strings.ContainsRune("<>!", c):
			j := i + 1
			for j < len(input) && strings.ContainsRune("<>=", rune(input[j])) {
				j++
			}
			return nil, srvErrors.NewParseError("operator "+input[i:j], i, "only = comparisons are supported")
		case c == '.':
			return nil, srvErrors.NewParseError("qualified name", i, "")
		default:
			return nil, srvErrors.NewParseError("character "+string(c), i, "")
		}
	}
	return append(out, token{kind: tokEOF, pos: len(input)}), nil
}

func lexString(input string, start int) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(input) {
		if input[i] == '\'' {
			if i+1 < len(input) && input[i+1] == '\'' {
				b.WriteByte('\'')
				i += 2
				continue
			}
			return b.String(), i + 1, nil
		}
		b.WriteByte(input[i])
		i++
	}
	return "", 0, srvErrors.NewParseError("string literal", start, "unterminated")
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
