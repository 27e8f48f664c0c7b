package ast

import "fmt"

// ============================================================================
// 高亮 Token
// ============================================================================
//
// Token 是构建过程输出的旁路元数据，不属于 AST 本身：
// 每个 Token 把一段源文本标注为一个语义类别，供编辑器着色。
// Token 列表保持源文本从左到右的顺序。
//
// ============================================================================

// TokenKind 高亮 Token 的语义类别
type TokenKind string

const (
	TokenOutputName    TokenKind = "output-name"         // 定义的目标名
	TokenNumberLiteral TokenKind = "number-literal"      // 数字字面量
	TokenBoolLiteral   TokenKind = "boolean-literal"     // 布尔字面量
	TokenStringLiteral TokenKind = "string-literal"      // 字符串字面量
	TokenKey           TokenKind = "key"                 // 对象键 / 命名参数名
	TokenInputVarName  TokenKind = "input-variable-name" // 输入变量名
	TokenFunctionName  TokenKind = "function-name"       // 函数名
)

// validTokenKinds 合法类别集合，用于构造时的契约检查
var validTokenKinds = map[TokenKind]bool{
	TokenOutputName:    true,
	TokenNumberLiteral: true,
	TokenBoolLiteral:   true,
	TokenStringLiteral: true,
	TokenKey:           true,
	TokenInputVarName:  true,
	TokenFunctionName:  true,
}

// Token 带语义类别的源文本区间，End 不含
type Token struct {
	Kind  TokenKind
	Start int
	End   int
	Text  string
}

// NewToken 创建高亮 Token
//
// 类别非法或偏移不合法属于调用方的契约违反（代码缺陷），
// 直接 panic，而不是像用户输入错误那样被静默吸收。
func NewToken(kind TokenKind, start, end int, text string) Token {
	if !validTokenKinds[kind] {
		panic(fmt.Sprintf("illegal argument: unknown token kind %q", string(kind)))
	}
	if start < 0 || end < 0 || start > end {
		panic(fmt.Sprintf("illegal argument: invalid token offsets [%d, %d)", start, end))
	}
	return Token{Kind: kind, Start: start, End: end, Text: text}
}
