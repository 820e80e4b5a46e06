package risa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lexAll(source string) []Token {
	l := NewLexer(source)
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == TokEOF || tok.Type == TokError {
			break
		}
	}
	return toks
}

func TestLexer_Punctuation(t *testing.T) {
	toks := lexAll("+ - * / % ^ ~ == != <= >= << >>")
	types := make([]TokenType, 0, len(toks))
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokPlus, TokMinus, TokStar, TokSlash, TokPercent, TokCaret, TokTilde,
		TokEqualEqual, TokBangEqual, TokLessEqual, TokGreaterEqual,
		TokLessLess, TokGreaterGreater, TokEOF,
	}, types)
}

func TestLexer_Keywords(t *testing.T) {
	source := "if else while for true false null var function return continue break clone"
	toks := lexAll(source)
	expected := []TokenType{
		TokIf, TokElse, TokWhile, TokFor, TokTrue, TokFalse, TokNull, TokVar,
		TokFunction, TokReturn, TokContinue, TokBreak, TokClone, TokEOF,
	}
	assert.Equal(t, len(expected), len(toks))
	for i, tok := range toks {
		assert.Equal(t, expected[i], tok.Type)
	}
}

func TestLexer_Identifier(t *testing.T) {
	toks := lexAll("foo_bar1")
	assert.Equal(t, TokIdentifier, toks[0].Type)
	assert.Equal(t, "foo_bar1", toks[0].Lexeme("foo_bar1"))
}

func TestLexer_Numbers(t *testing.T) {
	tests := []struct {
		source string
		want   TokenType
	}{
		{"123", TokInt},
		{"1.5", TokFloat},
		{"2f", TokFloat},
		{"7b", TokByte},
	}
	for _, tt := range tests {
		toks := lexAll(tt.source)
		assert.Equal(t, tt.want, toks[0].Type, tt.source)
	}
}

func TestLexer_ByteLiteralRejectsDecimalPoint(t *testing.T) {
	toks := lexAll("1.5b")
	assert.Equal(t, TokError, toks[0].Type)
}

func TestLexer_StringLiteral(t *testing.T) {
	source := `"hello\nworld"`
	toks := lexAll(source)
	assert.Equal(t, TokString, toks[0].Type)
	assert.Equal(t, "hello\nworld", toks[0].StringValue(source))
}

func TestLexer_UnterminatedStringIsError(t *testing.T) {
	toks := lexAll(`"unterminated`)
	assert.Equal(t, TokError, toks[0].Type)
}

func TestLexer_SkipsLineAndBlockComments(t *testing.T) {
	toks := lexAll("1 // trailing\n/* block */ 2")
	assert.Equal(t, TokInt, toks[0].Type)
	assert.Equal(t, TokInt, toks[1].Type)
	assert.Equal(t, TokEOF, toks[2].Type)
}

func TestLexer_UnterminatedBlockCommentIsError(t *testing.T) {
	toks := lexAll("/* never closes")
	assert.Equal(t, TokError, toks[0].Type)
}

func TestLineColumn(t *testing.T) {
	source := "a\nb\nc"
	line, col := LineColumn(source, 4)
	assert.Equal(t, 3, line)
	assert.Equal(t, 1, col)
}
