package lsp

import (
	"go.lsp.dev/protocol"

	"github.com/tangzhangming/cellscript/internal/ast"
)

// Semantic token types
const (
	TokenTypeVariable = iota
	TokenTypeFunction
	TokenTypeNumber
	TokenTypeString
	TokenTypeKeyword
	TokenTypeProperty
)

// Semantic token modifiers
const (
	TokenModDeclaration = 1 << iota
	TokenModDefinition
	TokenModReadonly
)

// SemanticTokenTypes 语义token类型列表（legend，顺序即编码下标）
var SemanticTokenTypes = []string{
	"variable",
	"function",
	"number",
	"string",
	"keyword",
	"property",
}

// SemanticTokenModifiers 语义token修饰符列表
var SemanticTokenModifiers = []string{
	"declaration",
	"definition",
	"readonly",
}

// Legend 返回本实现的语义 Token legend
func Legend() protocol.SemanticTokensLegend {
	return protocol.SemanticTokensLegend{
		TokenTypes:     semanticTokenTypes(),
		TokenModifiers: semanticTokenModifiers(),
	}
}

func semanticTokenTypes() []protocol.SemanticTokenTypes {
	types := make([]protocol.SemanticTokenTypes, len(SemanticTokenTypes))
	for i, t := range SemanticTokenTypes {
		types[i] = protocol.SemanticTokenTypes(t)
	}
	return types
}

func semanticTokenModifiers() []protocol.SemanticTokenModifiers {
	mods := make([]protocol.SemanticTokenModifiers, len(SemanticTokenModifiers))
	for i, m := range SemanticTokenModifiers {
		mods[i] = protocol.SemanticTokenModifiers(m)
	}
	return mods
}

// semanticToken 表示单个语义token
type semanticToken struct {
	Line      uint32
	StartChar uint32
	Length    uint32
	TokenType uint32
	Modifiers uint32
}

// kindMapping 构建器高亮类别到 LSP 语义类别的映射
var kindMapping = map[ast.TokenKind]struct {
	Type      uint32
	Modifiers uint32
}{
	ast.TokenOutputName:    {TokenTypeVariable, TokenModDeclaration | TokenModDefinition},
	ast.TokenNumberLiteral: {TokenTypeNumber, 0},
	ast.TokenBoolLiteral:   {TokenTypeKeyword, 0},
	ast.TokenStringLiteral: {TokenTypeString, 0},
	ast.TokenKey:           {TokenTypeProperty, 0},
	ast.TokenInputVarName:  {TokenTypeVariable, TokenModReadonly},
	ast.TokenFunctionName:  {TokenTypeFunction, 0},
}

// SemanticTokens 把文档最新构建的高亮 Token 表编码为
// LSP 的全量语义 tokens 响应
func SemanticTokens(doc *Document) protocol.SemanticTokens {
	return protocol.SemanticTokens{
		Data: encodeSemanticTokens(collectSemanticTokens(doc)),
	}
}

// collectSemanticTokens 收集文档中的所有语义tokens
//
// 构建产出的 Token 表已经按源文本从左到右排序，
// 这里只做类别映射与位置换算。
func collectSemanticTokens(doc *Document) []semanticToken {
	var tokens []semanticToken
	if doc == nil || doc.Result == nil {
		return tokens
	}

	for _, tok := range doc.Result.Tokens {
		mapping, ok := kindMapping[tok.Kind]
		if !ok {
			continue
		}
		pos := doc.PositionAt(tok.Start)
		tokens = append(tokens, semanticToken{
			Line:      pos.Line,
			StartChar: pos.Character,
			Length:    uint32(tok.End - tok.Start),
			TokenType: mapping.Type,
			Modifiers: mapping.Modifiers,
		})
	}
	return tokens
}

// encodeSemanticTokens 按 LSP 规范做相对位置的增量编码
func encodeSemanticTokens(tokens []semanticToken) []uint32 {
	if len(tokens) == 0 {
		return []uint32{}
	}

	data := make([]uint32, 0, len(tokens)*5)

	var prevLine, prevChar uint32 = 0, 0

	for _, tok := range tokens {
		deltaLine := tok.Line - prevLine
		var deltaChar uint32
		if deltaLine == 0 {
			deltaChar = tok.StartChar - prevChar
		} else {
			deltaChar = tok.StartChar
		}

		data = append(data,
			deltaLine,
			deltaChar,
			tok.Length,
			tok.TokenType,
			tok.Modifiers,
		)

		prevLine = tok.Line
		prevChar = tok.StartChar
	}

	return data
}
