package builder

import (
	"strconv"

	"github.com/tangzhangming/cellscript/internal/ast"
	"github.com/tangzhangming/cellscript/internal/cst"
	"github.com/tangzhangming/cellscript/internal/token"
)

// ============================================================================
// Builder - CST 到 AST 的构建器
// ============================================================================
//
// 构建器按 CST 节点的产生式名分派，把具体语法树转换为类型化的
// AST，同时收集三张旁路表：
//
//	Nodes  - 扁平节点表，按创建顺序（统一前序）排列
//	Inputs - 输入引用表（Var 节点），供依赖分析建图
//	Tokens - 高亮 Token 表，保持源文本从左到右顺序
//
// 构建对病态的输入表达式永不失败：语法错误在其自然位置
// 以 ErrorNode 出现，省略的参数以 EmptyArgument 占位，
// AST 始终完整产出，编辑器可以继续渲染与求值。
// 只有调用方的契约违反（如非法的 Token 构造）才会 panic。
//
// 每次 Build 创建独立的构建上下文（编号计数器与三张表），
// 并发构建天然互不干扰；上下文绝不跨构建共享。
//
// ============================================================================

// 构建器使用的错误信息
const (
	msgParserError   = "Parser error."
	msgInvalidNumber = "Invalid number."
)

// Result 一次构建的全部产出，由调用方独占，构建返回后不再变更
type Result struct {
	Root   ast.Node    // AST 根节点
	Nodes  []ast.Node  // 扁平节点表（创建顺序）
	Inputs []ast.Node  // 输入引用表（创建顺序）
	Tokens []ast.Token // 高亮 Token 表（源文本顺序）
}

// Builder 单次构建的私有上下文
type Builder struct {
	nextID int
	nodes  []ast.Node
	inputs []ast.Node
	tokens []ast.Token
}

// Build 把 CST 转换为 AST 及旁路表
func Build(root *cst.Node) *Result {
	b := &Builder{}
	node := b.build(root)
	return &Result{
		Root:   node,
		Nodes:  b.nodes,
		Inputs: b.inputs,
		Tokens: b.tokens,
	}
}

// ============================================================================
// 分派
// ============================================================================

// build 递归转换单个 CST 节点
func (b *Builder) build(n *cst.Node) ast.Node {
	if n == nil {
		return b.errorNode(nil, msgParserError)
	}

	// 文法层面的解析失败优先：携带底层异常信息
	if n.Exception != nil {
		return b.errorNode(n, n.Exception.Error())
	}

	switch n.Kind {
	case cst.KindEvaluation, "simple", cst.KindGroup:
		// 透明节点：解包到唯一有意义的子节点，自身不产生节点
		if child := firstChildNode(n); child != nil {
			return b.build(child)
		}
		return b.errorNode(n, msgParserError)

	case cst.KindDefinition:
		return b.buildDefinition(n)

	case cst.KindSelectID, cst.KindSelectExpr:
		return b.buildSelect(n)

	case cst.KindUnary:
		return b.buildUnary(n)

	case cst.KindPower, cst.KindMulDiv, cst.KindAddSub,
		cst.KindRelational, cst.KindEquality, cst.KindOr, cst.KindAnd:
		return b.buildBinary(n)

	case cst.KindPipe:
		return b.buildPipe(n)

	case cst.KindInt, cst.KindFloat, "number":
		return b.buildNumber(n)

	case cst.KindBoolean:
		return b.buildBoolean(n)

	case cst.KindString:
		return b.buildString(n)

	case cst.KindArray:
		return b.buildArray(n)

	case cst.KindObject:
		return b.buildObject(n)

	case cst.KindVar:
		return b.buildVar(n)

	case cst.KindCell:
		return b.buildCell(n)

	case cst.KindRange:
		return b.buildRange(n)

	case cst.KindCall:
		return b.buildCall(n)

	case cst.KindNamedArgument:
		return b.buildNamedArgument(n)

	default:
		// 无法识别的产生式：降级为错误节点，尽量保留跨度
		return b.errorNode(n, msgParserError)
	}
}

// ============================================================================
// 各类节点的构建
// ============================================================================

func (b *Builder) buildDefinition(n *cst.Node) ast.Node {
	def := &ast.Definition{}
	b.register(def, n)

	if name := firstTerminal(n); name != nil {
		def.Name = name.Literal
		b.addToken(ast.TokenOutputName, name)
	}
	def.Expr = b.build(lastChildNode(n))
	return def
}

// buildSelect 把成员选择降级为 select 函数调用：
// a.b  → select(a, "b")，成员名合成为字符串节点
// a[b] → select(a, b)
func (b *Builder) buildSelect(n *cst.Node) ast.Node {
	call := &ast.FunctionCall{Name: ast.FuncSelect}
	b.register(call, n)

	base := firstChildNode(n)
	call.Args = append(call.Args, b.build(base))

	// 成员名正常时是标识符终结符；'.' 后解析失败时成员位置
	// 是带 Exception 的子节点，构建它让错误出现在自然位置
	if member := lastChildNode(n); member != nil && member != base {
		call.Args = append(call.Args, b.build(member))
		return call
	}

	member := lastTerminal(n)
	str := &ast.String{}
	b.register(str, terminalNode(member))
	if member != nil {
		str.Value = member.Literal
	}
	call.Args = append(call.Args, str)
	return call
}

// unaryNames 一元运算符到保留函数名的映射
var unaryNames = map[string]string{
	"!": ast.FuncNot,
	"+": ast.FuncPositive,
	"-": ast.FuncNegative,
}

func (b *Builder) buildUnary(n *cst.Node) ast.Node {
	op := firstTerminal(n)
	name := ""
	if op != nil {
		name = unaryNames[op.Literal]
	}
	if name == "" {
		return b.errorNode(n, msgParserError)
	}

	call := &ast.FunctionCall{Name: name}
	b.register(call, n)
	call.Args = append(call.Args, b.build(firstChildNode(n)))
	return call
}

// binaryNames 二元运算符到保留函数名的映射
var binaryNames = map[string]string{
	"^":  ast.FuncPow,
	"*":  ast.FuncMultiply,
	"/":  ast.FuncDivide,
	"%":  ast.FuncRemainder,
	"+":  ast.FuncAdd,
	"-":  ast.FuncSubtract,
	"<":  ast.FuncLess,
	"<=": ast.FuncLessOrEqual,
	">":  ast.FuncGreater,
	">=": ast.FuncGreaterOrEqual,
	"==": ast.FuncEqual,
	"!=": ast.FuncNotEqual,
	"&&": ast.FuncAnd,
	"||": ast.FuncOr,
}

// buildBinary 把二元运算降级为两参数的函数调用
//
// 结合性与括号已经被 CST 的嵌套编码，这里只做递归，
// 不再重新推导优先级。
func (b *Builder) buildBinary(n *cst.Node) ast.Node {
	op := firstTerminal(n)
	name := ""
	if op != nil {
		name = binaryNames[op.Literal]
	}
	if name == "" {
		return b.errorNode(n, msgParserError)
	}

	call := &ast.FunctionCall{Name: name}
	b.register(call, n)
	call.Args = append(call.Args,
		b.build(firstChildNode(n)),
		b.build(lastChildNode(n)))
	return call
}

func (b *Builder) buildPipe(n *cst.Node) ast.Node {
	pipe := &ast.PipeOp{}
	b.register(pipe, n)
	pipe.Left = b.build(firstChildNode(n))
	pipe.Right = b.build(lastChildNode(n))
	return pipe
}

func (b *Builder) buildNumber(n *cst.Node) ast.Node {
	lit := firstTerminal(n)
	if lit == nil {
		return b.errorNode(n, msgInvalidNumber)
	}
	value, err := strconv.ParseFloat(lit.Literal, 64)
	if err != nil {
		return b.errorNode(n, msgInvalidNumber)
	}

	num := &ast.Number{Value: value}
	b.register(num, n)
	b.addToken(ast.TokenNumberLiteral, lit)
	return num
}

func (b *Builder) buildBoolean(n *cst.Node) ast.Node {
	lit := firstTerminal(n)
	if lit == nil {
		return b.errorNode(n, msgParserError)
	}

	boolean := &ast.Boolean{Value: lit.Literal == "true"}
	b.register(boolean, n)
	b.addToken(ast.TokenBoolLiteral, lit)
	return boolean
}

func (b *Builder) buildString(n *cst.Node) ast.Node {
	lit := firstTerminal(n)
	if lit == nil {
		return b.errorNode(n, msgParserError)
	}

	str := &ast.String{Value: stripQuotes(lit.Literal)}
	b.register(str, n)
	b.addToken(ast.TokenStringLiteral, lit)
	return str
}

func (b *Builder) buildArray(n *cst.Node) ast.Node {
	arr := &ast.Array{}
	b.register(arr, n)

	for _, c := range n.Children {
		if !c.IsTerminal() {
			arr.Values = append(arr.Values, b.build(c))
		}
	}
	return arr
}

// buildObject 构建对象字面量
//
// 键 Token 与值节点是对象节点下的平行序列；任何一侧缺失的
// 键值对被跳过（容忍残缺输入），但每个键都会记录 key Token。
func (b *Builder) buildObject(n *cst.Node) ast.Node {
	obj := &ast.Object{}
	b.register(obj, n)

	keys := objectKeys(n)
	values := objectValues(n)

	// 键和值逐对交替构建，保证 Token 表维持源文本从左到右的顺序；
	// 键 Token 总是记录，即使对应的值缺失、键值对被跳过
	for i, key := range keys {
		b.addToken(ast.TokenKey, key)
		if i >= len(values) {
			continue
		}
		obj.Entries = append(obj.Entries, ast.ObjectEntry{
			Key:   keyText(key),
			Value: b.build(values[i]),
		})
	}
	return obj
}

func (b *Builder) buildVar(n *cst.Node) ast.Node {
	name := firstTerminal(n)
	if name == nil {
		return b.errorNode(n, msgParserError)
	}

	v := &ast.Var{Name: name.Literal}
	b.register(v, n)
	b.addToken(ast.TokenInputVarName, name)
	b.inputs = append(b.inputs, v)
	return v
}

func (b *Builder) buildCell(n *cst.Node) ast.Node {
	row, col := ast.ParseCell(n.Text())
	cell := &ast.CellRef{Row: row, Col: col}
	b.register(cell, n)
	return cell
}

func (b *Builder) buildRange(n *cst.Node) ast.Node {
	startRow, startCol, endRow, endCol := ast.ParseRange(n.Text())
	rng := &ast.RangeRef{
		StartRow: startRow,
		StartCol: startCol,
		EndRow:   endRow,
		EndCol:   endCol,
	}
	b.register(rng, n)
	return rng
}

// buildCall 构建函数调用
//
// 参数序列按源文本从左到右扫描（含逗号终结符）：
// 紧跟另一个逗号的逗号、或开头就是逗号、或尾随逗号，
// 都会在逗号自身的跨度上合成 EmptyArgument，保证参数列表
// 在编辑过程中位置稳定、始终可解析。
func (b *Builder) buildCall(n *cst.Node) ast.Node {
	call := &ast.FunctionCall{}
	b.register(call, n)

	if name := firstTerminal(n); name != nil && name.Type == token.IDENT {
		call.Name = name.Literal
		b.addToken(ast.TokenFunctionName, name)
	}
	// 没有名字的调用保持空字符串（匿名调用）

	items := callItems(n)

	argSinceSep := false
	sawComma := false
	var lastComma *token.Token
	for _, item := range items {
		if item.IsTerminal() {
			if item.Token.Type != token.COMMA {
				continue
			}
			if !argSinceSep {
				call.Args = append(call.Args, b.emptyArgument(item.Token))
			}
			argSinceSep = false
			sawComma = true
			lastComma = item.Token
			continue
		}

		built := b.build(item)
		if na, ok := built.(*ast.NamedArgument); ok {
			call.NamedArgs = append(call.NamedArgs, na)
		} else {
			call.Args = append(call.Args, built)
		}
		argSinceSep = true
	}

	// 尾随逗号：后面没有任何参数，合成最后一个空参数
	if sawComma && !argSinceSep {
		call.Args = append(call.Args, b.emptyArgument(lastComma))
	}
	return call
}

func (b *Builder) buildNamedArgument(n *cst.Node) ast.Node {
	na := &ast.NamedArgument{}
	b.register(na, n)

	if name := firstTerminal(n); name != nil {
		na.Name = name.Literal
		b.addToken(ast.TokenKey, name)
	}
	na.Value = b.build(lastChildNode(n))
	return na
}

// ============================================================================
// 构建上下文
// ============================================================================

// register 给节点分配编号与跨度，并按创建顺序记入扁平节点表
//
// 编号统一在子节点构建之前分配（前序），因此扁平表与 Walker
// 的访问顺序一致（Walker 不下降的命名参数子树除外）。
func (b *Builder) register(node ast.Node, n *cst.Node) {
	m := node.Meta()
	m.ID = b.nextID
	b.nextID++
	m.Start, m.End = span(n)
	b.nodes = append(b.nodes, node)
}

// errorNode 创建错误恢复节点，尽量保留跨度
func (b *Builder) errorNode(n *cst.Node, message string) ast.Node {
	e := &ast.ErrorNode{Message: message}
	b.register(e, n)
	return e
}

// emptyArgument 在逗号自身的跨度上合成空参数
func (b *Builder) emptyArgument(comma *token.Token) ast.Node {
	empty := &ast.EmptyArgument{}
	b.register(empty, terminalNode(comma))
	return empty
}

// addToken 记录一个高亮 Token（按终结符的精确跨度）
func (b *Builder) addToken(kind ast.TokenKind, tok *token.Token) {
	b.tokens = append(b.tokens, ast.NewToken(kind, tok.Start, tok.Stop+1, tok.Literal))
}

// ============================================================================
// CST 辅助函数
// ============================================================================

// span 计算 CST 节点覆盖的开区间 [start, end)
//
// 首末终结符齐全时取 [start.Start, stop.Stop+1]；只有首终结符时
// 取它自身的区间；完全没有终结符时返回未知（NoPos）。
// +1 把闭区间的 Stop 偏移转换为统一的开区间约定。
func span(n *cst.Node) (int, int) {
	switch {
	case n == nil:
		return ast.NoPos, ast.NoPos
	case n.Start != nil && n.Stop != nil:
		return n.Start.Start, n.Stop.Stop + 1
	case n.Start != nil:
		return n.Start.Start, n.Start.Stop + 1
	case n.Token != nil:
		return n.Token.Start, n.Token.Stop + 1
	default:
		return ast.NoPos, ast.NoPos
	}
}

// firstChildNode 返回第一个非终结符子节点
func firstChildNode(n *cst.Node) *cst.Node {
	for _, c := range n.Children {
		if !c.IsTerminal() {
			return c
		}
	}
	return nil
}

// lastChildNode 返回最后一个非终结符子节点
func lastChildNode(n *cst.Node) *cst.Node {
	for i := len(n.Children) - 1; i >= 0; i-- {
		if !n.Children[i].IsTerminal() {
			return n.Children[i]
		}
	}
	return nil
}

// firstTerminal 返回第一个终结符子节点的 Token
func firstTerminal(n *cst.Node) *token.Token {
	for _, c := range n.Children {
		if c.IsTerminal() {
			return c.Token
		}
	}
	return nil
}

// lastTerminal 返回最后一个终结符子节点的 Token
func lastTerminal(n *cst.Node) *token.Token {
	for i := len(n.Children) - 1; i >= 0; i-- {
		if n.Children[i].IsTerminal() {
			return n.Children[i].Token
		}
	}
	return nil
}

// terminalNode 把单个终结符包装为 CST 节点（用于跨度传递）
func terminalNode(tok *token.Token) *cst.Node {
	if tok == nil {
		return nil
	}
	return &cst.Node{Kind: cst.KindTerminal, Token: tok, Start: tok, Stop: tok}
}

// callItems 返回调用的原始参数序列（含逗号终结符，不含括号）
//
// 内部别名 _call 子规则被透明地解包一层。
func callItems(n *cst.Node) []*cst.Node {
	seq := n.Children
	for _, c := range n.Children {
		if !c.IsTerminal() && c.Kind == cst.KindCallArgs {
			seq = c.Children
			break
		}
	}

	var items []*cst.Node
	for _, c := range seq {
		if c.IsTerminal() &&
			(c.Token.Type == token.LPAREN || c.Token.Type == token.RPAREN ||
				c.Token.Type == token.IDENT) {
			continue
		}
		items = append(items, c)
	}
	return items
}

// objectKeys 返回对象节点下的键终结符（紧跟 ':' 的标识符或字符串）
func objectKeys(n *cst.Node) []*token.Token {
	var keys []*token.Token
	for i, c := range n.Children {
		if !c.IsTerminal() {
			continue
		}
		if c.Token.Type != token.IDENT && c.Token.Type != token.STRING {
			continue
		}
		if i+1 < len(n.Children) && n.Children[i+1].IsTerminal() &&
			n.Children[i+1].Token.Type == token.COLON {
			keys = append(keys, c.Token)
		}
	}
	return keys
}

// objectValues 返回对象节点下的值子节点（与键平行的非终结符序列）
func objectValues(n *cst.Node) []*cst.Node {
	var values []*cst.Node
	for _, c := range n.Children {
		if !c.IsTerminal() {
			values = append(values, c)
		}
	}
	return values
}

// keyText 对象键的文本（字符串键剥除引号）
func keyText(tok *token.Token) string {
	if tok.Type == token.STRING {
		return stripQuotes(tok.Literal)
	}
	return tok.Literal
}

// stripQuotes 剥除恰好一层首尾引号
func stripQuotes(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}
