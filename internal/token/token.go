package token

import "fmt"

// ============================================================================
// Token 类型定义
// ============================================================================
//
// TokenType 使用 iota 自动编号，按类别分组：
// 1. 特殊标记（ILLEGAL, EOF）
// 2. 字面量（标识符、数字、字符串、布尔值）
// 3. 运算符（算术、比较、逻辑、管道）
// 4. 分隔符（括号、逗号、冒号等）
//
// ============================================================================

// TokenType 表示 Token 的类型
type TokenType int

const (
	// ----------------------------------------------------------
	// 特殊标记
	// ----------------------------------------------------------
	ILLEGAL TokenType = iota // 非法字符
	EOF                      // 输入结束

	// ----------------------------------------------------------
	// 字面量
	// ----------------------------------------------------------
	IDENT  // 标识符（变量名、函数名、单元格地址）
	INT    // 整数字面量
	FLOAT  // 浮点数字面量
	STRING // 字符串字面量（保留引号的原始文本）
	TRUE   // true
	FALSE  // false

	// ----------------------------------------------------------
	// 算术运算符
	// ----------------------------------------------------------
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %
	CARET   // ^
	ASSIGN  // =

	// ----------------------------------------------------------
	// 比较运算符
	// ----------------------------------------------------------
	EQ // ==
	NE // !=
	LT // <
	LE // <=
	GT // >
	GE // >=

	// ----------------------------------------------------------
	// 逻辑运算符与管道
	// ----------------------------------------------------------
	AND  // &&
	OR   // ||
	NOT  // !
	PIPE // |>

	// ----------------------------------------------------------
	// 分隔符
	// ----------------------------------------------------------
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]
	COMMA    // ,
	DOT      // .
	COLON    // :
)

// tokenNames Token 类型的名称映射（用于调试和错误信息）
var tokenNames = map[TokenType]string{
	ILLEGAL:  "ILLEGAL",
	EOF:      "EOF",
	IDENT:    "IDENT",
	INT:      "INT",
	FLOAT:    "FLOAT",
	STRING:   "STRING",
	TRUE:     "TRUE",
	FALSE:    "FALSE",
	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	PERCENT:  "%",
	CARET:    "^",
	ASSIGN:   "=",
	EQ:       "==",
	NE:       "!=",
	LT:       "<",
	LE:       "<=",
	GT:       ">",
	GE:       ">=",
	AND:      "&&",
	OR:       "||",
	NOT:      "!",
	PIPE:     "|>",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACE:   "{",
	RBRACE:   "}",
	LBRACKET: "[",
	RBRACKET: "]",
	COMMA:    ",",
	DOT:      ".",
	COLON:    ":",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// ============================================================================
// 位置信息
// ============================================================================

// Position 表示源代码中的行列位置（行列号从 1 开始）
type Position struct {
	Line   int // 行号
	Column int // 列号
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// ============================================================================
// Token
// ============================================================================

// Token 表示一个词法单元
//
// Start/Stop 是字节偏移，Stop 指向 Token 的最后一个字节（闭区间），
// 与语法树节点的终结符约定一致：转换为开区间时需要 Stop+1。
type Token struct {
	Type    TokenType // 类型
	Literal string    // 原始文本
	Start   int       // 起始字节偏移
	Stop    int       // 结束字节偏移（含）
	Pos     Position  // 行列位置（用于编辑器定位）
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q [%d..%d]", t.Type, t.Literal, t.Start, t.Stop)
}

// IsOperator 判断是否是运算符类 Token
func (t Token) IsOperator() bool {
	switch t.Type {
	case PLUS, MINUS, STAR, SLASH, PERCENT, CARET,
		EQ, NE, LT, LE, GT, GE, AND, OR, NOT, PIPE:
		return true
	}
	return false
}
