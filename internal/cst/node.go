package cst

import (
	"strings"

	"github.com/tangzhangming/cellscript/internal/token"
)

// ============================================================================
// CST - 具体语法树
// ============================================================================
//
// 具体语法树是语法分析器的直接输出，忠实保留文法结构：
// 每个节点带有产生式名（Kind）、有序子节点列表（含逗号、括号等
// 终结符）以及首末终结符（Start/Stop，用于跨度计算）。
//
// AST 构建器只依赖这里定义的能力集合（Kind、Children、Text、
// Start/Stop、Exception），任何满足该能力集合的语法分析器
// （手写的或文法生成的）都可以替换内置实现。
//
// ============================================================================

// 产生式名常量
//
// Kind 使用字符串标签而不是枚举：CST 的形状由外部文法决定，
// 构建器必须能够容忍未知标签并降级为错误节点。
const (
	KindEvaluation    = "evaluation"     // 根包装
	KindDefinition    = "definition"     // name = expr
	KindPipe          = "pipe"           // left |> right
	KindOr            = "or"             // left || right
	KindAnd           = "and"            // left && right
	KindEquality      = "equality"       // == !=
	KindRelational    = "relational"     // < <= > >=
	KindAddSub        = "addsub"         // + -
	KindMulDiv        = "muldiv"         // * / %
	KindPower         = "power"          // ^
	KindUnary         = "unary"          // ! + -
	KindSelectID      = "select_id"      // base.member
	KindSelectExpr    = "select_expr"    // base[index]
	KindGroup         = "group"          // ( expr )
	KindCall          = "call"           // name ( args )
	KindCallArgs      = "_call"          // 调用内部的参数子规则
	KindNamedArgument = "named_argument" // name: value
	KindArray         = "array"          // [ items ]
	KindObject        = "object"         // { key: value }
	KindVar           = "var"            // 自由标识符
	KindCell          = "cell"           // B3
	KindRange         = "range"          // A1:C4
	KindInt           = "int"            // 整数字面量
	KindFloat         = "float"          // 浮点字面量
	KindBoolean       = "boolean"        // true / false
	KindString        = "string"         // 字符串字面量
	KindTerminal      = "terminal"       // 终结符叶子
)

// Node 具体语法树节点
//
// 叶子节点 Token 非 nil；内部节点用 Children 保存有序子节点。
// Exception 携带文法层面的解析失败信息，构建器会把它吸收为
// AST 中的错误节点而不是中断构建。
type Node struct {
	Kind      string       // 产生式名或 "terminal"
	Children  []*Node      // 有序子节点（内部节点）
	Token     *token.Token // 终结符 Token（叶子节点）
	Start     *token.Token // 首终结符（可为 nil）
	Stop      *token.Token // 末终结符（可为 nil）
	Exception error        // 文法级解析失败（可为 nil）
}

// NewTerminal 创建终结符叶子节点
func NewTerminal(tok token.Token) *Node {
	t := tok
	return &Node{
		Kind:  KindTerminal,
		Token: &t,
		Start: &t,
		Stop:  &t,
	}
}

// NewNode 创建内部节点，Start/Stop 取首末子节点的终结符
func NewNode(kind string, children ...*Node) *Node {
	n := &Node{Kind: kind}
	for _, c := range children {
		n.AddChild(c)
	}
	return n
}

// AddChild 追加子节点并更新 Start/Stop
func (n *Node) AddChild(child *Node) {
	if child == nil {
		return
	}
	n.Children = append(n.Children, child)
	if n.Start == nil {
		n.Start = child.Start
	}
	if child.Stop != nil {
		n.Stop = child.Stop
	}
}

// IsTerminal 判断是否是终结符叶子
func (n *Node) IsTerminal() bool {
	return n.Token != nil
}

// Text 返回节点覆盖的原始源文本
//
// 终结符返回其字面文本；内部节点拼接所有子节点的文本。
// 构建器只在小节点（标识符、字面量）上使用它。
func (n *Node) Text() string {
	if n.Token != nil {
		return n.Token.Literal
	}
	var sb strings.Builder
	for _, c := range n.Children {
		sb.WriteString(c.Text())
	}
	return sb.String()
}
