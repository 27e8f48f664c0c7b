package ast

import (
	"fmt"
	"strings"
)

// ============================================================================
// AST 节点定义
// ============================================================================
//
// 抽象语法树是公式的类型化表示，由构建器从 CST 转换而来。
//
// 节点集合是封闭的：求值器、高亮器、依赖分析器都通过穷尽的
// 类型分派消费它，新增节点种类必须同步更新所有消费方。
//
// 一元/二元运算符和成员选择在构建阶段降级为保留名字的函数调用
// （add、subtract、select 等），下游只需要处理 FunctionCall。
//
// ============================================================================

// NoPos 表示未知偏移（节点没有可用的源文本位置）
const NoPos = -1

// Meta 所有节点共享的元信息
//
// ID 在一次构建内全局唯一，按前序创建顺序单调递增。
// Start/End 是源文本的字节偏移，End 不含；未知时均为 NoPos。
type Meta struct {
	ID    int // 节点编号
	Start int // 起始偏移（含）
	End   int // 结束偏移（不含）
}

// base 嵌入每个节点结构体，通过提升的 Meta 方法满足 Node 接口。
// 字段不直接命名为 Meta：同名字段会遮蔽提升的方法。
type base struct {
	meta Meta
}

// Meta 返回节点元信息
func (b *base) Meta() *Meta { return &b.meta }

// Node 是所有 AST 节点的基接口
type Node interface {
	Meta() *Meta
	String() string // 返回节点的字符串表示（用于调试）
	node()
}

// 所有节点种类都必须满足 Node 接口
var (
	_ Node = (*Number)(nil)
	_ Node = (*String)(nil)
	_ Node = (*Boolean)(nil)
	_ Node = (*Var)(nil)
	_ Node = (*CellRef)(nil)
	_ Node = (*RangeRef)(nil)
	_ Node = (*Array)(nil)
	_ Node = (*Object)(nil)
	_ Node = (*FunctionCall)(nil)
	_ Node = (*NamedArgument)(nil)
	_ Node = (*EmptyArgument)(nil)
	_ Node = (*Definition)(nil)
	_ Node = (*PipeOp)(nil)
	_ Node = (*ErrorNode)(nil)
)

// ============================================================================
// 字面量节点
// ============================================================================

// Number 数字字面量
type Number struct {
	base
	Value float64
}

func (n *Number) String() string { return fmt.Sprintf("%g", n.Value) }
func (n *Number) node()          {}

// String 字符串字面量（两侧引号已剥除）
type String struct {
	base
	Value string
}

func (n *String) String() string { return fmt.Sprintf("%q", n.Value) }
func (n *String) node()          {}

// Boolean 布尔字面量
type Boolean struct {
	base
	Value bool
}

func (n *Boolean) String() string {
	if n.Value {
		return "true"
	}
	return "false"
}
func (n *Boolean) node() {}

// ============================================================================
// 引用节点
// ============================================================================

// Var 自由标识符引用
type Var struct {
	base
	Name string
}

func (n *Var) String() string { return n.Name }
func (n *Var) node()          {}

// CellRef 单元格引用（行列均从 0 开始）
type CellRef struct {
	base
	Row int
	Col int
}

func (n *CellRef) String() string { return fmt.Sprintf("cell(%d,%d)", n.Row, n.Col) }
func (n *CellRef) node()          {}

// RangeRef 区域引用（边界从 0 开始，双侧都含）
type RangeRef struct {
	base
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

func (n *RangeRef) String() string {
	return fmt.Sprintf("range(%d,%d:%d,%d)", n.StartRow, n.StartCol, n.EndRow, n.EndCol)
}
func (n *RangeRef) node() {}

// ============================================================================
// 复合节点
// ============================================================================

// Array 数组字面量
type Array struct {
	base
	Values []Node
}

func (n *Array) String() string {
	var parts []string
	for _, v := range n.Values {
		parts = append(parts, v.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (n *Array) node() {}

// ObjectEntry 对象字面量的一个键值对
type ObjectEntry struct {
	Key   string
	Value Node
}

// Object 对象字面量，键值对保持插入顺序
type Object struct {
	base
	Entries []ObjectEntry
}

func (n *Object) String() string {
	var parts []string
	for _, e := range n.Entries {
		parts = append(parts, e.Key+": "+e.Value.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (n *Object) node() {}

// ============================================================================
// 调用与参数节点
// ============================================================================

// 运算符降级使用的保留函数名
const (
	FuncNot            = "not"
	FuncPositive       = "positive"
	FuncNegative       = "negative"
	FuncAdd            = "add"
	FuncSubtract       = "subtract"
	FuncMultiply       = "multiply"
	FuncDivide         = "divide"
	FuncRemainder      = "remainder"
	FuncPow            = "pow"
	FuncLess           = "less"
	FuncLessOrEqual    = "less_or_equal"
	FuncGreater        = "greater"
	FuncGreaterOrEqual = "greater_or_equal"
	FuncEqual          = "equal"
	FuncNotEqual       = "not_equal"
	FuncAnd            = "and"
	FuncOr             = "or"
	FuncSelect         = "select"
)

// FunctionCall 函数调用
//
// 匿名调用的 Name 为空字符串。
type FunctionCall struct {
	base
	Name      string
	Args      []Node           // 位置参数
	NamedArgs []*NamedArgument // 命名参数
}

func (n *FunctionCall) String() string {
	var parts []string
	for _, a := range n.Args {
		parts = append(parts, a.String())
	}
	for _, na := range n.NamedArgs {
		parts = append(parts, na.String())
	}
	return n.Name + "(" + strings.Join(parts, ", ") + ")"
}
func (n *FunctionCall) node() {}

// NamedArgument 命名参数 (name: value)
type NamedArgument struct {
	base
	Name  string
	Value Node
}

func (n *NamedArgument) String() string { return n.Name + ": " + n.Value.String() }
func (n *NamedArgument) node()          {}

// EmptyArgument 被省略的位置参数占位
//
// `sum(x,,y)` 或尾随逗号会在对应位置合成此节点，
// 保证参数列表的位置在编辑过程中保持稳定。
type EmptyArgument struct {
	base
}

func (n *EmptyArgument) String() string { return "<empty>" }
func (n *EmptyArgument) node()          {}

// ============================================================================
// 其他节点
// ============================================================================

// Definition 定义（name = expr）
type Definition struct {
	base
	Name string
	Expr Node
}

func (n *Definition) String() string { return n.Name + " = " + n.Expr.String() }
func (n *Definition) node()          {}

// PipeOp 管道运算（左操作数送入右操作数），不降级为函数调用
type PipeOp struct {
	base
	Left  Node
	Right Node
}

func (n *PipeOp) String() string { return "(" + n.Left.String() + " |> " + n.Right.String() + ")" }
func (n *PipeOp) node()          {}

// ErrorNode 错误恢复占位节点
//
// 语法错误不中断构建：出错的子表达式在其自然位置
// 以 ErrorNode 出现，携带可展示的错误信息。
type ErrorNode struct {
	base
	Message string
}

func (n *ErrorNode) String() string { return "<error: " + n.Message + ">" }
func (n *ErrorNode) node()          {}
