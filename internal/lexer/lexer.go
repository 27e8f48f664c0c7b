package lexer

import (
	"fmt"

	"github.com/tangzhangming/cellscript/internal/token"
)

// ============================================================================
// Lexer - 词法分析器
// ============================================================================
//
// 词法分析器把公式源文本转换为 Token 序列。
//
// 公式通常很短（一行以内），因此不做增量扫描；
// 每个 Token 记录闭区间的字节偏移 [Start, Stop]，供语法树的
// 跨度计算使用（开区间转换在构建 AST 时统一做 Stop+1）。
//
// ============================================================================

// Lexer 词法分析器结构体
type Lexer struct {
	source  string        // 公式源文本
	tokens  []token.Token // 已扫描的 Token 列表
	start   int           // 当前 Token 的起始字节偏移
	current int           // 当前扫描位置
	line    int           // 当前行号（从 1 开始）
	lineOff int           // 当前行的起始偏移（用于计算列号）
	errors  []Error       // 词法错误列表
}

// Error 表示词法分析错误
type Error struct {
	Pos     token.Position
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// New 创建一个新的词法分析器
func New(source string) *Lexer {
	return &Lexer{
		source: source,
		tokens: make([]token.Token, 0, len(source)/4+4),
		line:   1,
	}
}

// ScanTokens 扫描全部 Token，最后追加 EOF
func (l *Lexer) ScanTokens() []token.Token {
	for !l.isAtEnd() {
		l.skipWhitespace()
		if l.isAtEnd() {
			break
		}
		l.start = l.current
		l.scanToken()
	}

	l.start = l.current
	l.addToken(token.EOF, "")
	return l.tokens
}

// Errors 返回所有词法错误
func (l *Lexer) Errors() []Error {
	return l.errors
}

// ============================================================================
// 扫描逻辑
// ============================================================================

func (l *Lexer) scanToken() {
	c := l.advance()

	switch c {
	case '+':
		l.emit(token.PLUS)
	case '-':
		l.emit(token.MINUS)
	case '*':
		l.emit(token.STAR)
	case '/':
		l.emit(token.SLASH)
	case '%':
		l.emit(token.PERCENT)
	case '^':
		l.emit(token.CARET)
	case '(':
		l.emit(token.LPAREN)
	case ')':
		l.emit(token.RPAREN)
	case '{':
		l.emit(token.LBRACE)
	case '}':
		l.emit(token.RBRACE)
	case '[':
		l.emit(token.LBRACKET)
	case ']':
		l.emit(token.RBRACKET)
	case ',':
		l.emit(token.COMMA)
	case '.':
		l.emit(token.DOT)
	case ':':
		l.emit(token.COLON)
	case '=':
		if l.match('=') {
			l.emit(token.EQ)
		} else {
			l.emit(token.ASSIGN)
		}
	case '!':
		if l.match('=') {
			l.emit(token.NE)
		} else {
			l.emit(token.NOT)
		}
	case '<':
		if l.match('=') {
			l.emit(token.LE)
		} else {
			l.emit(token.LT)
		}
	case '>':
		if l.match('=') {
			l.emit(token.GE)
		} else {
			l.emit(token.GT)
		}
	case '&':
		if l.match('&') {
			l.emit(token.AND)
		} else {
			l.errorf("unexpected character '&'")
			l.emit(token.ILLEGAL)
		}
	case '|':
		if l.match('|') {
			l.emit(token.OR)
		} else if l.match('>') {
			l.emit(token.PIPE)
		} else {
			l.errorf("unexpected character '|'")
			l.emit(token.ILLEGAL)
		}
	case '"', '\'':
		l.scanString(c)
	default:
		switch {
		case isDigit(c):
			l.scanNumber()
		case isIdentStart(c):
			l.scanIdentifier()
		default:
			l.errorf("unexpected character %q", c)
			l.emit(token.ILLEGAL)
		}
	}
}

// scanString 扫描字符串字面量
//
// Token 的 Literal 保留两侧引号，去引号在 AST 构建阶段统一处理。
func (l *Lexer) scanString(quote byte) {
	for !l.isAtEnd() && l.peek() != quote {
		if l.peek() == '\n' {
			break
		}
		l.advance()
	}

	if l.isAtEnd() || l.peek() != quote {
		l.errorf("unterminated string")
		l.emit(token.ILLEGAL)
		return
	}

	l.advance() // 消费结束引号
	l.emit(token.STRING)
}

// scanNumber 扫描数字字面量（整数或浮点数）
func (l *Lexer) scanNumber() {
	for isDigit(l.peek()) {
		l.advance()
	}

	typ := token.INT
	// 小数部分：'.' 后必须紧跟数字，否则 '.' 属于成员选择
	if l.peek() == '.' && isDigit(l.peekNext()) {
		typ = token.FLOAT
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}

	// 指数部分
	if l.peek() == 'e' || l.peek() == 'E' {
		next := l.peekNext()
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekAt(l.current+2))) {
			typ = token.FLOAT
			l.advance() // e
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			for isDigit(l.peek()) {
				l.advance()
			}
		}
	}

	l.emit(typ)
}

// scanIdentifier 扫描标识符或关键字
//
// 单元格地址（如 B3、A1）在这里也是普通标识符，
// 由语法分析器根据形态决定是变量还是单元格引用。
func (l *Lexer) scanIdentifier() {
	for isIdentPart(l.peek()) {
		l.advance()
	}

	literal := l.source[l.start:l.current]
	switch literal {
	case "true":
		l.emit(token.TRUE)
	case "false":
		l.emit(token.FALSE)
	default:
		l.emit(token.IDENT)
	}
}

// ============================================================================
// 辅助方法
// ============================================================================

func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

func (l *Lexer) advance() byte {
	c := l.source[l.current]
	l.current++
	if c == '\n' {
		l.line++
		l.lineOff = l.current
	}
	return c
}

func (l *Lexer) match(expected byte) bool {
	if l.isAtEnd() || l.source[l.current] != expected {
		return false
	}
	l.current++
	return true
}

func (l *Lexer) peek() byte {
	return l.peekAt(l.current)
}

func (l *Lexer) peekNext() byte {
	return l.peekAt(l.current + 1)
}

func (l *Lexer) peekAt(i int) byte {
	if i >= len(l.source) {
		return 0
	}
	return l.source[i]
}

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() {
		switch l.source[l.current] {
		case ' ', '\t', '\r', '\n':
			l.advance()
		default:
			return
		}
	}
}

// emit 把 [start, current) 的文本作为一个 Token 追加
func (l *Lexer) emit(typ token.TokenType) {
	l.addToken(typ, l.source[l.start:l.current])
}

func (l *Lexer) addToken(typ token.TokenType, literal string) {
	stop := l.current - 1
	if stop < l.start {
		stop = l.start // EOF 等空 Token
	}
	l.tokens = append(l.tokens, token.Token{
		Type:    typ,
		Literal: literal,
		Start:   l.start,
		Stop:    stop,
		Pos: token.Position{
			Line:   l.line,
			Column: l.start - l.lineOff + 1,
		},
	})
}

func (l *Lexer) errorf(format string, args ...interface{}) {
	l.errors = append(l.errors, Error{
		Pos: token.Position{
			Line:   l.line,
			Column: l.start - l.lineOff + 1,
		},
		Message: fmt.Sprintf(format, args...),
	})
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
