package parser

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/smooshjs/smoosh-go/pkg/smoosh/ast"
	"github.com/smooshjs/smoosh-go/pkg/smoosh/frontend"
)

// lexer produces tokens on demand. Regular expression literals are never
// scanned: the parser reports them as unsupported as soon as it sees a "/"
// in operand position, so the lexer needs no goal-symbol switching.
type lexer struct {
	src  string
	off  int
	line int
	col  int // 1-based, counted in runes
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) position() ast.Position {
	return ast.Position{Offset: l.off, Line: l.line, Column: l.col}
}

func (l *lexer) peekRune() (rune, int) {
	if l.off >= len(l.src) {
		return -1, 0
	}
	r := rune(l.src[l.off])
	if r < utf8.RuneSelf {
		return r, 1
	}
	return utf8.DecodeRuneInString(l.src[l.off:])
}

func (l *lexer) peekByteAt(n int) byte {
	if l.off+n >= len(l.src) {
		return 0
	}
	return l.src[l.off+n]
}

// advance consumes one rune and keeps line and column current. CRLF counts
// as a single line terminator.
func (l *lexer) advance() rune {
	r, size := l.peekRune()
	if size == 0 {
		return -1
	}
	l.off += size
	switch {
	case r == '\r':
		if l.off < len(l.src) && l.src[l.off] == '\n' {
			l.off++
		}
		l.line++
		l.col = 1
	case isLineTerminator(r):
		l.line++
		l.col = 1
	default:
		l.col++
	}
	return r
}

func isLineTerminator(r rune) bool {
	return r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029'
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\v', '\f', '\u00a0', '\ufeff':
		return true
	}
	return r > 0x7f && unicode.Is(unicode.Zs, r)
}

func isIDStart(r rune) bool {
	return r == '$' || r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') ||
		(r > 0x7f && unicode.IsLetter(r))
}

func isIDPart(r rune) bool {
	return isIDStart(r) || ('0' <= r && r <= '9') || r == '\u200c' || r == '\u200d' ||
		(r > 0x7f && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Pc, r)))
}

// skipTrivia skips whitespace and comments and reports whether a line
// terminator was crossed.
func (l *lexer) skipTrivia() (bool, error) {
	newline := false
	for {
		r, _ := l.peekRune()
		switch {
		case r == -1:
			return newline, nil
		case isLineTerminator(r):
			newline = true
			l.advance()
		case isWhitespace(r):
			l.advance()
		case r == '/' && l.peekByteAt(1) == '/':
			l.skipLineComment()
		case r == '/' && l.peekByteAt(1) == '*':
			start := l.position()
			l.advance()
			l.advance()
			closed := false
			for l.off < len(l.src) {
				if l.src[l.off] == '*' && l.peekByteAt(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				if c, _ := l.peekRune(); isLineTerminator(c) {
					newline = true
				}
				l.advance()
			}
			if !closed {
				return newline, frontend.Syntaxf(start, "unterminated comment")
			}
		case r == '#' && l.off == 0 && l.peekByteAt(1) == '!':
			// Hashbang comment, only at the very start of the source.
			l.skipLineComment()
		default:
			return newline, nil
		}
	}
}

func (l *lexer) skipLineComment() {
	for {
		r, _ := l.peekRune()
		if r == -1 || isLineTerminator(r) {
			return
		}
		l.advance()
	}
}

// next scans the next token.
func (l *lexer) next() (token, error) {
	nl, err := l.skipTrivia()
	if err != nil {
		return token{}, err
	}
	pos := l.position()
	tok := token{pos: pos, nlBefore: nl}

	r, _ := l.peekRune()
	switch {
	case r == -1:
		tok.kind = tokEOF
		return tok, nil
	case isIDStart(r):
		return l.scanIdentifier(tok)
	case r == '\\':
		return token{}, frontend.Unsupported(frontend.StageParse, "unicode escape in identifier", pos)
	case r >= '0' && r <= '9', r == '.' && isDecimalDigit(l.peekByteAt(1)):
		return l.scanNumber(tok)
	case r == '"' || r == '\'':
		return l.scanString(tok, r)
	case r == '`':
		l.advance()
		tok.kind = tokTemplate
		tok.text = "`"
		return tok, nil
	case r == '#':
		l.advance()
		tok.kind = tokPrivateName
		tok.text = "#"
		return tok, nil
	}

	rest := l.src[l.off:]
	for _, p := range punctuators {
		if strings.HasPrefix(rest, p) {
			// "?." followed by a digit is a conditional and a number: a?.5:b
			if p == "?." && isDecimalDigit(l.peekByteAt(2)) {
				continue
			}
			for range p {
				l.advance()
			}
			tok.kind = tokPunct
			tok.text = p
			return tok, nil
		}
	}
	return token{}, frontend.Syntaxf(pos, "illegal character %q", r)
}

func isDecimalDigit(b byte) bool { return b >= '0' && b <= '9' }

func (l *lexer) scanIdentifier(tok token) (token, error) {
	start := l.off
	for {
		r, _ := l.peekRune()
		if r == '\\' {
			return token{}, frontend.Unsupported(frontend.StageParse, "unicode escape in identifier", l.position())
		}
		if r == -1 || !isIDPart(r) {
			break
		}
		l.advance()
	}
	tok.text = l.src[start:l.off]
	tok.kind = tokIdent
	if keywords[tok.text] {
		tok.kind = tokKeyword
	}
	return tok, nil
}

func (l *lexer) scanNumber(tok token) (token, error) {
	start := l.off
	base := 10
	if l.src[l.off] == '0' {
		switch l.peekByteAt(1) | 0x20 {
		case 'x':
			base = 16
		case 'o':
			base = 8
		case 'b':
			base = 2
		}
	}

	var value float64
	if base != 10 {
		l.advance()
		l.advance()
		digits := l.off
		for l.off < len(l.src) && digitValue(l.src[l.off]) < base {
			l.advance()
		}
		if l.off == digits {
			return token{}, frontend.Syntaxf(tok.pos, "missing digits after base prefix")
		}
		value = parseIntDigits(l.src[digits:l.off], base)
	} else if l.src[l.off] == '0' && isDecimalDigit(l.peekByteAt(1)) {
		// Legacy octal (017) or decimal with a leading zero (019).
		for l.off < len(l.src) && isDecimalDigit(l.src[l.off]) {
			l.advance()
		}
		digits := l.src[start+1 : l.off]
		tok.legacyOctal = true
		if strings.ContainsAny(digits, "89") {
			value, _ = strconv.ParseFloat(digits, 64)
		} else {
			value = parseIntDigits(digits, 8)
		}
	} else {
		for l.off < len(l.src) && isDecimalDigit(l.src[l.off]) {
			l.advance()
		}
		if l.off < len(l.src) && l.src[l.off] == '.' {
			l.advance()
			for l.off < len(l.src) && isDecimalDigit(l.src[l.off]) {
				l.advance()
			}
		}
		if l.off < len(l.src) && l.src[l.off]|0x20 == 'e' {
			l.advance()
			if l.off < len(l.src) && (l.src[l.off] == '+' || l.src[l.off] == '-') {
				l.advance()
			}
			expDigits := l.off
			for l.off < len(l.src) && isDecimalDigit(l.src[l.off]) {
				l.advance()
			}
			if l.off == expDigits {
				return token{}, frontend.Syntaxf(tok.pos, "missing exponent")
			}
		}
		var err error
		value, err = strconv.ParseFloat(l.src[start:l.off], 64)
		if err != nil && !isRangeError(err) {
			return token{}, frontend.Syntaxf(tok.pos, "malformed number %q", l.src[start:l.off])
		}
	}

	tok.kind = tokNumber
	if l.off < len(l.src) && l.src[l.off] == 'n' {
		l.advance()
		tok.kind = tokBigInt
	}
	if l.off < len(l.src) && l.src[l.off] == '_' {
		return token{}, frontend.Unsupported(frontend.StageParse, "numeric separator", tok.pos)
	}
	if r, _ := l.peekRune(); r != -1 && isIDStart(r) {
		return token{}, frontend.Syntaxf(l.position(), "identifier starts immediately after numeric literal")
	}
	tok.text = l.src[start:l.off]
	tok.num = value
	return tok, nil
}

// isRangeError accepts overflow: ParseFloat returns +Inf or -Inf, which is the
// value of an out-of-range literal.
func isRangeError(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

func digitValue(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	}
	return 99
}

func parseIntDigits(digits string, base int) float64 {
	if v, err := strconv.ParseUint(digits, base, 64); err == nil {
		return float64(v)
	}
	var v float64
	for i := 0; i < len(digits); i++ {
		v = v*float64(base) + float64(digitValue(digits[i]))
	}
	return v
}

func (l *lexer) scanString(tok token, quote rune) (token, error) {
	start := l.off
	l.advance()
	var sb strings.Builder
	for {
		r, _ := l.peekRune()
		switch {
		case r == -1:
			return token{}, frontend.Syntaxf(tok.pos, "unterminated string literal")
		case r == quote:
			l.advance()
			tok.kind = tokString
			tok.text = l.src[start:l.off]
			tok.str = sb.String()
			return tok, nil
		case r == '\n' || r == '\r':
			return token{}, frontend.Syntaxf(tok.pos, "unterminated string literal")
		case r == '\\':
			escPos := l.position()
			l.advance()
			if err := l.scanEscape(&sb, &tok, escPos); err != nil {
				return token{}, err
			}
		default:
			l.advance()
			sb.WriteRune(r)
		}
	}
}

func (l *lexer) scanEscape(sb *strings.Builder, tok *token, pos ast.Position) error {
	r := l.advance()
	switch r {
	case -1:
		return frontend.Syntaxf(tok.pos, "unterminated string literal")
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case '\r', '\n', '\u2028', '\u2029':
		// Line continuation; advance already folded CRLF.
	case 'x':
		v, ok := l.hexDigits(2)
		if !ok {
			return frontend.Syntaxf(pos, "malformed hexadecimal escape")
		}
		sb.WriteRune(rune(v))
	case 'u':
		v, err := l.unicodeEscape(pos)
		if err != nil {
			return err
		}
		sb.WriteRune(v)
	case '0', '1', '2', '3', '4', '5', '6', '7':
		v := int(r - '0')
		if v == 0 && !isDecimalDigit(l.peekByteAt(0)) {
			sb.WriteByte(0)
			return nil
		}
		tok.legacyOctal = true
		max := 2
		if r > '3' {
			max = 1
		}
		for i := 0; i < max; i++ {
			b := l.peekByteAt(0)
			if b < '0' || b > '7' {
				break
			}
			l.advance()
			v = v*8 + int(b-'0')
		}
		sb.WriteRune(rune(v))
	case '8', '9':
		tok.legacyOctal = true
		sb.WriteRune(r)
	default:
		sb.WriteRune(r)
	}
	return nil
}

func (l *lexer) hexDigits(n int) (int, bool) {
	v := 0
	for i := 0; i < n; i++ {
		d := digitValue(l.peekByteAt(0))
		if d >= 16 {
			return 0, false
		}
		l.advance()
		v = v*16 + d
	}
	return v, true
}

func (l *lexer) unicodeEscape(pos ast.Position) (rune, error) {
	if l.peekByteAt(0) != '{' {
		v, ok := l.hexDigits(4)
		if !ok {
			return 0, frontend.Syntaxf(pos, "malformed unicode escape")
		}
		return rune(v), nil
	}
	l.advance()
	v := 0
	n := 0
	for l.peekByteAt(0) != '}' {
		d := digitValue(l.peekByteAt(0))
		if d >= 16 {
			return 0, frontend.Syntaxf(pos, "malformed unicode escape")
		}
		l.advance()
		v = v*16 + d
		n++
		if v > unicode.MaxRune {
			return 0, frontend.Syntaxf(pos, "unicode escape out of range")
		}
	}
	l.advance()
	if n == 0 {
		return 0, frontend.Syntaxf(pos, "malformed unicode escape")
	}
	return rune(v), nil
}
