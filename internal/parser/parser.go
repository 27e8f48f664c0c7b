package parser

import (
	"fmt"
	"regexp"

	"github.com/tangzhangming/cellscript/internal/cst"
	"github.com/tangzhangming/cellscript/internal/lexer"
	"github.com/tangzhangming/cellscript/internal/token"
)

// ============================================================================
// Parser - 语法分析器
// ============================================================================
//
// 语法分析器把 Token 序列解析为具体语法树（CST）。
//
// 优先级从松到紧：
//   definition > pipe > or > and > equality > relational
//   > addsub > muldiv > power > unary > postfix > primary
//
// 结合性由 CST 的嵌套结构编码：二元运算符左结合，乘方右结合。
// 后续的 AST 构建只做递归下降，不再重新推导优先级。
//
// 语法错误不会中断解析：出错位置生成带 Exception 的 CST 节点，
// 由 AST 构建器吸收为错误节点，保证局部错误不影响整体结构。
//
// ============================================================================

// DefaultMaxDepth 默认最大表达式嵌套深度，防止栈溢出
const DefaultMaxDepth = 200

// cellPattern 单元格地址形态：大写字母列 + 十进制行
var cellPattern = regexp.MustCompile(`^[A-Z]+[1-9][0-9]*$`)

// Parser 语法分析器
type Parser struct {
	tokens    []token.Token
	current   int
	errors    []Error
	maxDepth  int
	exprDepth int // 当前表达式嵌套深度
}

// Error 语法分析错误
type Error struct {
	Pos     token.Position
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// Option 配置语法分析器
type Option func(*Parser)

// WithMaxDepth 设置最大表达式嵌套深度
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// New 创建一个新的语法分析器
func New(source string, opts ...Option) *Parser {
	l := lexer.New(source)
	tokens := l.ScanTokens()

	p := &Parser{
		tokens:   tokens,
		maxDepth: DefaultMaxDepth,
	}
	for _, err := range l.Errors() {
		p.errors = append(p.errors, Error{Pos: err.Pos, Message: err.Message})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse 解析整个公式，返回 evaluation 根节点
func (p *Parser) Parse() *cst.Node {
	root := cst.NewNode(cst.KindEvaluation)

	if p.isAtEnd() {
		p.errorf("empty formula")
		root.AddChild(p.errorNode("empty formula"))
		return root
	}

	root.AddChild(p.parseEvaluation())

	// 残留 Token 意味着公式在中途就结束了
	if !p.isAtEnd() {
		p.errorf("unexpected token '%s'", p.peek().Literal)
	}
	return root
}

// Errors 返回所有语法错误
func (p *Parser) Errors() []Error {
	return p.errors
}

// HasErrors 检查是否有错误
func (p *Parser) HasErrors() bool {
	return len(p.errors) > 0
}

// ============================================================================
// 表达式解析（按优先级分层）
// ============================================================================

// parseEvaluation 解析定义或普通表达式
func (p *Parser) parseEvaluation() *cst.Node {
	// 定义：IDENT '=' expr（'=' 单独出现才是定义，'==' 是比较）
	if p.check(token.IDENT) && p.peekNext().Type == token.ASSIGN {
		name := p.advance()
		assign := p.advance()
		expr := p.parseExpression()
		return cst.NewNode(cst.KindDefinition,
			cst.NewTerminal(name), cst.NewTerminal(assign), expr)
	}
	return p.parseExpression()
}

func (p *Parser) parseExpression() *cst.Node {
	if p.exprDepth >= p.maxDepth {
		p.errorf("expression too deeply nested")
		return p.errorNode("expression too deeply nested")
	}
	p.exprDepth++
	defer func() { p.exprDepth-- }()

	return p.parsePipe()
}

// parseBinaryLoop 解析一层左结合二元运算
func (p *Parser) parseBinaryLoop(kind string, next func() *cst.Node, types ...token.TokenType) *cst.Node {
	left := next()
	for p.checkAny(types...) {
		op := p.advance()
		right := next()
		left = cst.NewNode(kind, left, cst.NewTerminal(op), right)
	}
	return left
}

func (p *Parser) parsePipe() *cst.Node {
	return p.parseBinaryLoop(cst.KindPipe, p.parseOr, token.PIPE)
}

func (p *Parser) parseOr() *cst.Node {
	return p.parseBinaryLoop(cst.KindOr, p.parseAnd, token.OR)
}

func (p *Parser) parseAnd() *cst.Node {
	return p.parseBinaryLoop(cst.KindAnd, p.parseEquality, token.AND)
}

func (p *Parser) parseEquality() *cst.Node {
	return p.parseBinaryLoop(cst.KindEquality, p.parseRelational, token.EQ, token.NE)
}

func (p *Parser) parseRelational() *cst.Node {
	return p.parseBinaryLoop(cst.KindRelational, p.parseAddSub,
		token.LT, token.LE, token.GT, token.GE)
}

func (p *Parser) parseAddSub() *cst.Node {
	return p.parseBinaryLoop(cst.KindAddSub, p.parseMulDiv, token.PLUS, token.MINUS)
}

func (p *Parser) parseMulDiv() *cst.Node {
	return p.parseBinaryLoop(cst.KindMulDiv, p.parsePower,
		token.STAR, token.SLASH, token.PERCENT)
}

// parsePower 解析乘方（右结合：2^3^2 == 2^(3^2)）
func (p *Parser) parsePower() *cst.Node {
	left := p.parseUnary()
	if p.check(token.CARET) {
		op := p.advance()
		right := p.parsePower()
		return cst.NewNode(cst.KindPower, left, cst.NewTerminal(op), right)
	}
	return left
}

func (p *Parser) parseUnary() *cst.Node {
	if p.checkAny(token.NOT, token.PLUS, token.MINUS) {
		op := p.advance()
		operand := p.parseUnary()
		return cst.NewNode(cst.KindUnary, cst.NewTerminal(op), operand)
	}
	return p.parsePostfix()
}

// parsePostfix 解析成员选择：a.b 和 a[b]
func (p *Parser) parsePostfix() *cst.Node {
	expr := p.parsePrimary()

	for {
		switch {
		case p.check(token.DOT):
			dot := p.advance()
			if !p.check(token.IDENT) {
				p.errorf("expected member name after '.'")
				return cst.NewNode(cst.KindSelectID, expr, cst.NewTerminal(dot),
					p.errorNode("expected member name after '.'"))
			}
			member := p.advance()
			expr = cst.NewNode(cst.KindSelectID, expr,
				cst.NewTerminal(dot), cst.NewTerminal(member))
		case p.check(token.LBRACKET):
			lbracket := p.advance()
			index := p.parseExpression()
			rbracket := p.consume(token.RBRACKET, "expected ']'")
			expr = cst.NewNode(cst.KindSelectExpr, expr,
				cst.NewTerminal(lbracket), index, cst.NewTerminal(rbracket))
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() *cst.Node {
	switch p.peek().Type {
	case token.INT:
		return cst.NewNode(cst.KindInt, cst.NewTerminal(p.advance()))
	case token.FLOAT:
		return cst.NewNode(cst.KindFloat, cst.NewTerminal(p.advance()))
	case token.STRING:
		return cst.NewNode(cst.KindString, cst.NewTerminal(p.advance()))
	case token.TRUE, token.FALSE:
		return cst.NewNode(cst.KindBoolean, cst.NewTerminal(p.advance()))
	case token.LPAREN:
		return p.parseGroup()
	case token.LBRACKET:
		return p.parseArray()
	case token.LBRACE:
		return p.parseObject()
	case token.IDENT:
		return p.parseIdentifier()
	default:
		tok := p.advance() // 跳过无法识别的 Token，避免死循环
		p.errorf("unexpected token '%s'", tok.Literal)
		return p.errorNodeAt(tok, fmt.Sprintf("unexpected token '%s'", tok.Literal))
	}
}

// parseGroup 解析括号分组 ( expr )
func (p *Parser) parseGroup() *cst.Node {
	lparen := p.advance()
	expr := p.parseExpression()
	rparen := p.consume(token.RPAREN, "expected ')'")
	return cst.NewNode(cst.KindGroup,
		cst.NewTerminal(lparen), expr, cst.NewTerminal(rparen))
}

// parseArray 解析数组字面量 [ item, item, ... ]
func (p *Parser) parseArray() *cst.Node {
	n := cst.NewNode(cst.KindArray, cst.NewTerminal(p.advance()))

	if !p.check(token.RBRACKET) {
		n.AddChild(p.parseExpression())
		for p.check(token.COMMA) {
			n.AddChild(cst.NewTerminal(p.advance()))
			if p.check(token.RBRACKET) {
				break // 允许尾随逗号
			}
			n.AddChild(p.parseExpression())
		}
	}

	n.AddChild(cst.NewTerminal(p.consume(token.RBRACKET, "expected ']'")))
	return n
}

// parseObject 解析对象字面量 { key: value, ... }
//
// 键是标识符或字符串，保持插入顺序。
func (p *Parser) parseObject() *cst.Node {
	n := cst.NewNode(cst.KindObject, cst.NewTerminal(p.advance()))

	if !p.check(token.RBRACE) {
		p.parseObjectPair(n)
		for p.check(token.COMMA) {
			n.AddChild(cst.NewTerminal(p.advance()))
			if p.check(token.RBRACE) {
				break
			}
			p.parseObjectPair(n)
		}
	}

	n.AddChild(cst.NewTerminal(p.consume(token.RBRACE, "expected '}'")))
	return n
}

// parseObjectPair 解析一个键值对，键和值作为平行子节点挂在对象节点下
func (p *Parser) parseObjectPair(obj *cst.Node) {
	if !p.checkAny(token.IDENT, token.STRING) {
		tok := p.advance()
		p.errorf("expected object key, got '%s'", tok.Literal)
		obj.AddChild(p.errorNodeAt(tok, "expected object key"))
		return
	}
	key := p.advance()
	obj.AddChild(cst.NewTerminal(key))
	obj.AddChild(cst.NewTerminal(p.consume(token.COLON, "expected ':' after object key")))
	obj.AddChild(p.parseExpression())
}

// parseIdentifier 解析标识符开头的形式：
// 函数调用、单元格引用、区域引用或自由变量。
func (p *Parser) parseIdentifier() *cst.Node {
	name := p.advance()

	// 函数调用：IDENT 后紧跟 '('
	if p.check(token.LPAREN) {
		return cst.NewNode(cst.KindCall, cst.NewTerminal(name), p.parseCallArgs())
	}

	// 区域引用：CELL ':' CELL
	if cellPattern.MatchString(name.Literal) {
		if p.check(token.COLON) && p.peekNext().Type == token.IDENT &&
			cellPattern.MatchString(p.peekNext().Literal) {
			colon := p.advance()
			end := p.advance()
			return cst.NewNode(cst.KindRange,
				cst.NewTerminal(name), cst.NewTerminal(colon), cst.NewTerminal(end))
		}
		return cst.NewNode(cst.KindCell, cst.NewTerminal(name))
	}

	return cst.NewNode(cst.KindVar, cst.NewTerminal(name))
}

// parseCallArgs 解析调用的参数子规则 '(' args ')'
//
// 逗号终结符保留在子节点序列里：省略的参数（`sum(x,,y)`、尾随
// 逗号）不在 CST 中占位，由 AST 构建器按逗号序列合成空参数。
func (p *Parser) parseCallArgs() *cst.Node {
	n := cst.NewNode(cst.KindCallArgs, cst.NewTerminal(p.advance()))

	for !p.check(token.RPAREN) && !p.isAtEnd() {
		if p.check(token.COMMA) {
			n.AddChild(cst.NewTerminal(p.advance()))
			continue
		}
		before := p.current
		n.AddChild(p.parseCallArgument())
		if p.current == before {
			// 参数解析没有消费任何 Token（深度超限时会发生），
			// 跳过当前 Token 保证循环前进
			p.advance()
		}
	}

	n.AddChild(cst.NewTerminal(p.consume(token.RPAREN, "expected ')'")))
	return n
}

// parseCallArgument 解析单个调用参数（位置参数或命名参数）
func (p *Parser) parseCallArgument() *cst.Node {
	// 命名参数：IDENT ':' value
	// 区域引用 A1:C4 形态相同，需要先排除
	if p.check(token.IDENT) && p.peekNext().Type == token.COLON {
		isRange := cellPattern.MatchString(p.peek().Literal) &&
			p.peekAt(p.current+2).Type == token.IDENT &&
			cellPattern.MatchString(p.peekAt(p.current+2).Literal)
		if !isRange {
			name := p.advance()
			colon := p.advance()
			value := p.parseExpression()
			return cst.NewNode(cst.KindNamedArgument,
				cst.NewTerminal(name), cst.NewTerminal(colon), value)
		}
	}
	return p.parseExpression()
}

// ============================================================================
// 辅助方法
// ============================================================================

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == token.EOF
}

func (p *Parser) peek() token.Token {
	return p.peekAt(p.current)
}

func (p *Parser) peekNext() token.Token {
	return p.peekAt(p.current + 1)
}

func (p *Parser) peekAt(i int) token.Token {
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[i]
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) check(typ token.TokenType) bool {
	return p.peek().Type == typ
}

func (p *Parser) checkAny(types ...token.TokenType) bool {
	for _, typ := range types {
		if p.check(typ) {
			return true
		}
	}
	return false
}

// consume 消费期望类型的 Token，否则记录错误并返回当前 Token
func (p *Parser) consume(typ token.TokenType, message string) token.Token {
	if p.check(typ) {
		return p.advance()
	}
	p.errorf("%s", message)
	return p.peek()
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, Error{
		Pos:     p.peek().Pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// errorNode 在当前位置生成带 Exception 的 CST 节点
func (p *Parser) errorNode(message string) *cst.Node {
	return p.errorNodeAt(p.peek(), message)
}

func (p *Parser) errorNodeAt(tok token.Token, message string) *cst.Node {
	t := tok
	return &cst.Node{
		Kind:      cst.KindEvaluation, // 任意内部标签，Exception 优先于 Kind
		Start:     &t,
		Stop:      &t,
		Exception: fmt.Errorf("%s", message),
	}
}
