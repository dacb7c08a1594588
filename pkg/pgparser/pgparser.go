// Package pgparser provides PostgreSQL SQL parsing functionality.
//
// This package wraps the Bytebase PostgreSQL parser. The translator uses it
// as a verification layer: emitted statements are re-parsed, and text the
// grammar rejects comes back as a SyntaxError with position information.
package pgparser

import (
	"fmt"

	"github.com/antlr4-go/antlr/v4"
	parser "github.com/bytebase/parser/postgresql"

	"github.com/nsxbet/querybridge/pkg/types"
)

// ParseResult contains the parsed SQL statement tree and tokens.
type ParseResult struct {
	Tree   antlr.Tree
	Tokens *antlr.CommonTokenStream
}

// SyntaxError represents a SQL syntax error with position information.
type SyntaxError struct {
	Message  string
	Position *types.Position
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Position != nil {
		return fmt.Sprintf("syntax error at line %d, column %d: %s",
			e.Position.Line, e.Position.Column, e.Message)
	}
	return fmt.Sprintf("syntax error: %s", e.Message)
}

// syntaxErrorListener collects syntax errors during parsing.
type syntaxErrorListener struct {
	*antlr.DefaultErrorListener
	err *SyntaxError
}

// SyntaxError is called when a syntax error is encountered.
func (l *syntaxErrorListener) SyntaxError(
	_ antlr.Recognizer,
	_ interface{},
	line, column int,
	msg string,
	_ antlr.RecognitionException,
) {
	if l.err == nil {
		l.err = &SyntaxError{
			Message: msg,
			Position: &types.Position{
				Line:   int32(line),
				Column: int32(column),
			},
		}
	}
}

// ParsePostgreSQL parses a PostgreSQL SQL statement and returns the parse tree.
//
// Example:
//
//	result, err := pgparser.ParsePostgreSQL("SELECT id FROM users;")
//	if err != nil {
//	    // Handle syntax error
//	}
func ParsePostgreSQL(sql string) (*ParseResult, error) {
	inputStream := antlr.NewInputStream(sql)
	lexer := parser.NewPostgreSQLLexer(inputStream)

	lexerErrorListener := &syntaxErrorListener{}
	lexer.RemoveErrorListeners()
	lexer.AddErrorListener(lexerErrorListener)

	stream := antlr.NewCommonTokenStream(lexer, antlr.TokenDefaultChannel)

	p := parser.NewPostgreSQLParser(stream)
	p.BuildParseTrees = true

	parserErrorListener := &syntaxErrorListener{}
	p.RemoveErrorListeners()
	p.AddErrorListener(parserErrorListener)

	tree := p.Root()

	if lexerErrorListener.err != nil {
		return nil, lexerErrorListener.err
	}

	if parserErrorListener.err != nil {
		return nil, parserErrorListener.err
	}

	if tree == nil {
		return nil, &SyntaxError{
			Message: "failed to parse SQL statement",
		}
	}

	return &ParseResult{
		Tree:   tree,
		Tokens: stream,
	}, nil
}
