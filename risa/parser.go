package risa

import "fmt"

// Parser is the scaffold shared by the compiler's single pass: current
// and previous tokens, plus panic-mode bookkeeping (§4.2).
type Parser struct {
	lexer    *Lexer
	source   string
	Current  Token
	Previous Token

	HadError bool
	panicking bool

	onError func(msg string, tok Token)
}

func NewParser(source string, onError func(string, Token)) *Parser {
	p := &Parser{lexer: NewLexer(source), source: source, onError: onError}
	return p
}

// Advance loops past ERROR tokens, emitting a diagnostic for each, until
// it lands on a real token.
func (p *Parser) Advance() {
	p.Previous = p.Current
	for {
		p.Current = p.lexer.Next()
		if p.Current.Type != TokError {
			break
		}
		p.errorAtCurrent(p.Current.Message)
	}
}

func (p *Parser) Check(t TokenType) bool { return p.Current.Type == t }

func (p *Parser) MatchToken(t TokenType) bool {
	if !p.Check(t) {
		return false
	}
	p.Advance()
	return true
}

func (p *Parser) Consume(t TokenType, message string) {
	if p.Current.Type == t {
		p.Advance()
		return
	}
	p.errorAtCurrent(message)
}

func (p *Parser) errorAt(tok Token, message string) {
	if p.panicking {
		return
	}
	p.panicking = true
	p.HadError = true
	if p.onError != nil {
		p.onError(message, tok)
	}
}

func (p *Parser) ErrorAtCurrent(message string) { p.errorAtCurrent(message) }
func (p *Parser) errorAtCurrent(message string)  { p.errorAt(p.Current, message) }
func (p *Parser) Error(message string)           { p.errorAt(p.Previous, message) }

// Sync clears panic mode and skips tokens until the next statement
// boundary: a `;` just consumed, or a top-level keyword.
func (p *Parser) Sync() {
	p.panicking = false

	for p.Current.Type != TokEOF {
		if p.Previous.Type == TokSemicolon {
			return
		}

		switch p.Current.Type {
		case TokFunction, TokFor, TokIf, TokWhile, TokReturn:
			return
		}

		p.Advance()
	}
}

func (p *Parser) IsPanicking() bool { return p.panicking }

// ReportLocation formats the 1-based line:column for a token, per §4.2.
func (p *Parser) ReportLocation(tok Token) string {
	line, col := LineColumn(p.source, tok.Start)
	return fmt.Sprintf("%d:%d", line, col)
}
