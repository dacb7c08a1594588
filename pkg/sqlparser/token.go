// Package sqlparser parses the supported SELECT surface of SQL into the
// shared parse tree. One hand-written lexer and parser cover every dialect
// the catalog knows; dialect differences that matter on input (quoting
// styles, limit spellings) are all accepted, and dialect differences on
// output are the emitter's business.
package sqlparser

// TokenType identifies a lexical token class.
type TokenType string

// Position is a 1-based line and column in the source text.
type Position struct {
	Line   int
	Column int
}

// Token is one lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	IDENT  TokenType = "IDENT"
	NUMBER TokenType = "NUMBER"
	STRING TokenType = "STRING"
	PARAM  TokenType = "PARAM"

	COMMA     TokenType = ","
	DOT       TokenType = "."
	SEMICOLON TokenType = ";"
	LPAREN    TokenType = "("
	RPAREN    TokenType = ")"
	ASTERISK  TokenType = "*"
	PLUS      TokenType = "+"
	MINUS     TokenType = "-"
	SLASH     TokenType = "/"
	PERCENT   TokenType = "%"
	CONCAT    TokenType = "||"

	EQ  TokenType = "="
	NEQ TokenType = "<>"
	LT  TokenType = "<"
	GT  TokenType = ">"
	LTE TokenType = "<="
	GTE TokenType = ">="

	SELECT    TokenType = "SELECT"
	DISTINCT  TokenType = "DISTINCT"
	FROM      TokenType = "FROM"
	WHERE     TokenType = "WHERE"
	GROUP     TokenType = "GROUP"
	BY        TokenType = "BY"
	HAVING    TokenType = "HAVING"
	ORDER     TokenType = "ORDER"
	ASC       TokenType = "ASC"
	DESC      TokenType = "DESC"
	LIMIT     TokenType = "LIMIT"
	OFFSET    TokenType = "OFFSET"
	AS        TokenType = "AS"
	AND       TokenType = "AND"
	OR        TokenType = "OR"
	NOT       TokenType = "NOT"
	IN        TokenType = "IN"
	IS        TokenType = "IS"
	NULL      TokenType = "NULL"
	LIKE      TokenType = "LIKE"
	BETWEEN   TokenType = "BETWEEN"
	EXISTS    TokenType = "EXISTS"
	JOIN      TokenType = "JOIN"
	INNER     TokenType = "INNER"
	LEFT      TokenType = "LEFT"
	RIGHT     TokenType = "RIGHT"
	FULL      TokenType = "FULL"
	OUTER     TokenType = "OUTER"
	CROSS     TokenType = "CROSS"
	ON        TokenType = "ON"
	WITH      TokenType = "WITH"
	RECURSIVE TokenType = "RECURSIVE"
	OVER      TokenType = "OVER"
	PARTITION TokenType = "PARTITION"
	CASE      TokenType = "CASE"
	UNION     TokenType = "UNION"
	ALL       TokenType = "ALL"
	TRUE      TokenType = "TRUE"
	FALSE     TokenType = "FALSE"
	TOP       TokenType = "TOP"
	ROWS      TokenType = "ROWS"
	FETCH     TokenType = "FETCH"
	NEXT      TokenType = "NEXT"
	ONLY      TokenType = "ONLY"
	ROWNUM    TokenType = "ROWNUM"
)

var keywords = map[string]TokenType{
	"select":    SELECT,
	"distinct":  DISTINCT,
	"from":      FROM,
	"where":     WHERE,
	"group":     GROUP,
	"by":        BY,
	"having":    HAVING,
	"order":     ORDER,
	"asc":       ASC,
	"desc":      DESC,
	"limit":     LIMIT,
	"offset":    OFFSET,
	"as":        AS,
	"and":       AND,
	"or":        OR,
	"not":       NOT,
	"in":        IN,
	"is":        IS,
	"null":      NULL,
	"like":      LIKE,
	"between":   BETWEEN,
	"exists":    EXISTS,
	"join":      JOIN,
	"inner":     INNER,
	"left":      LEFT,
	"right":     RIGHT,
	"full":      FULL,
	"outer":     OUTER,
	"cross":     CROSS,
	"on":        ON,
	"with":      WITH,
	"recursive": RECURSIVE,
	"over":      OVER,
	"partition": PARTITION,
	"case":      CASE,
	"union":     UNION,
	"all":       ALL,
	"true":      TRUE,
	"false":     FALSE,
	"top":       TOP,
	"rows":      ROWS,
	"fetch":     FETCH,
	"next":      NEXT,
	"only":      ONLY,
	"rownum":    ROWNUM,
}

// lookupIdent classifies an identifier as a keyword or plain IDENT.
func lookupIdent(ident string) TokenType {
	if tok, ok := keywords[lower(ident)]; ok {
		return tok
	}
	return IDENT
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
