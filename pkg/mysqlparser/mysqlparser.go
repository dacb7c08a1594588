// Package mysqlparser parses SQL text with the MySQL grammar. The translator
// uses it as a verification layer: emitted statements are re-parsed, and text
// the grammar rejects comes back as a SyntaxError carrying the offending
// position.
package mysqlparser

import (
	"strings"

	"github.com/antlr4-go/antlr/v4"
	parser "github.com/bytebase/mysql-parser"
)

// ParseResult is the result of parsing a MySQL statement.
type ParseResult struct {
	Tree   antlr.Tree
	Tokens *antlr.CommonTokenStream
}

// ParseMySQL parses a single SQL statement and returns the AST. The grammar
// wants a terminated statement, so a missing trailing semicolon is added.
func ParseMySQL(statement string) (*ParseResult, error) {
	statement = addSemicolonIfNeeded(statement)

	input := antlr.NewInputStream(statement)
	lexer := parser.NewMySQLLexer(input)
	stream := antlr.NewCommonTokenStream(lexer, antlr.TokenDefaultChannel)

	p := parser.NewMySQLParser(stream)

	lexerErrorListener := &ParseErrorListener{Statement: statement}
	lexer.RemoveErrorListeners()
	lexer.AddErrorListener(lexerErrorListener)

	parserErrorListener := &ParseErrorListener{Statement: statement}
	p.RemoveErrorListeners()
	p.AddErrorListener(parserErrorListener)

	p.BuildParseTrees = true

	tree := p.Script()

	if lexerErrorListener.Err != nil {
		return nil, lexerErrorListener.Err
	}

	if parserErrorListener.Err != nil {
		return nil, parserErrorListener.Err
	}

	return &ParseResult{Tree: tree, Tokens: stream}, nil
}

func addSemicolonIfNeeded(sql string) string {
	trimmed := strings.TrimRight(sql, " \t\r\n")
	if strings.HasSuffix(trimmed, ";") {
		return sql
	}
	return trimmed + ";"
}
