package sqlparser

// lexer walks the input rune by rune, tracking 1-based line and column for
// error positions.
type lexer struct {
	input        []rune
	position     int
	readPosition int
	ch           rune
	line         int
	column       int
}

func newLexer(input string) *lexer {
	l := &lexer{input: []rune(input), line: 1, column: 0}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *lexer) pos() Position {
	return Position{Line: l.line, Column: l.column}
}

// NextToken returns the next token, skipping whitespace and comments.
func (l *lexer) NextToken() Token {
	l.skipSpaceAndComments()

	pos := l.pos()
	switch l.ch {
	case 0:
		return Token{Type: EOF, Pos: pos}
	case ',':
		return l.makeSimple(COMMA, pos)
	case ';':
		return l.makeSimple(SEMICOLON, pos)
	case '.':
		return l.makeSimple(DOT, pos)
	case '(':
		return l.makeSimple(LPAREN, pos)
	case ')':
		return l.makeSimple(RPAREN, pos)
	case '*':
		return l.makeSimple(ASTERISK, pos)
	case '+':
		return l.makeSimple(PLUS, pos)
	case '-':
		return l.makeSimple(MINUS, pos)
	case '/':
		return l.makeSimple(SLASH, pos)
	case '%':
		return l.makeSimple(PERCENT, pos)
	case '=':
		return l.makeSimple(EQ, pos)
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			l.readChar()
			return Token{Type: CONCAT, Literal: "||", Pos: pos}
		}
		return l.makeSimple(ILLEGAL, pos)
	case '<':
		switch l.peekChar() {
		case '>':
			l.readChar()
			l.readChar()
			return Token{Type: NEQ, Literal: "<>", Pos: pos}
		case '=':
			l.readChar()
			l.readChar()
			return Token{Type: LTE, Literal: "<=", Pos: pos}
		}
		return l.makeSimple(LT, pos)
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: GTE, Literal: ">=", Pos: pos}
		}
		return l.makeSimple(GT, pos)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: NEQ, Literal: "!=", Pos: pos}
		}
		return l.makeSimple(ILLEGAL, pos)
	case ':':
		if isIdentStart(l.peekChar()) {
			l.readChar()
			name := l.readIdentifier()
			return Token{Type: PARAM, Literal: name, Pos: pos}
		}
		return l.makeSimple(ILLEGAL, pos)
	case '\'':
		lit, ok := l.readString()
		if !ok {
			return Token{Type: ILLEGAL, Literal: lit, Pos: pos}
		}
		return Token{Type: STRING, Literal: lit, Pos: pos}
	case '"':
		lit := l.readQuoted('"')
		return Token{Type: IDENT, Literal: lit, Pos: pos}
	case '`':
		lit := l.readQuoted('`')
		return Token{Type: IDENT, Literal: lit, Pos: pos}
	case '[':
		lit := l.readBracketed()
		return Token{Type: IDENT, Literal: lit, Pos: pos}
	default:
		switch {
		case isIdentStart(l.ch):
			lit := l.readIdentifier()
			return Token{Type: lookupIdent(lit), Literal: lit, Pos: pos}
		case isDigit(l.ch):
			lit := l.readNumber()
			return Token{Type: NUMBER, Literal: lit, Pos: pos}
		default:
			return l.makeSimple(ILLEGAL, pos)
		}
	}
}

func (l *lexer) makeSimple(t TokenType, pos Position) Token {
	tok := Token{Type: t, Literal: string(l.ch), Pos: pos}
	l.readChar()
	return tok
}

func (l *lexer) skipSpaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			for l.ch != 0 && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar()
				l.readChar()
			}
			continue
		}
		return
	}
}

func (l *lexer) readIdentifier() string {
	start := l.position
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return string(l.input[start:l.position])
}

func (l *lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return string(l.input[start:l.position])
}

// readString reads a single-quoted string with doubled-quote escaping and
// reports whether it was terminated.
func (l *lexer) readString() (string, bool) {
	var out []rune
	l.readChar()
	for {
		switch l.ch {
		case 0:
			return string(out), false
		case '\'':
			if l.peekChar() == '\'' {
				out = append(out, '\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return string(out), true
		default:
			out = append(out, l.ch)
			l.readChar()
		}
	}
}

func (l *lexer) readQuoted(quote rune) string {
	var out []rune
	l.readChar()
	for l.ch != 0 {
		if l.ch == quote {
			if l.peekChar() == quote {
				out = append(out, quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			break
		}
		out = append(out, l.ch)
		l.readChar()
	}
	return string(out)
}

func (l *lexer) readBracketed() string {
	var out []rune
	l.readChar()
	for l.ch != 0 && l.ch != ']' {
		out = append(out, l.ch)
		l.readChar()
	}
	if l.ch == ']' {
		l.readChar()
	}
	return string(out)
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r) || r == '$'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
