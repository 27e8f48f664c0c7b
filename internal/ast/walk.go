package ast

// ============================================================================
// Walker - 前序深度优先遍历
// ============================================================================
//
// Walk 是所有下游消费方（求值器、高亮器、依赖分析）共享的
// 确定性遍历顺序：每个节点恰好访问一次，父节点先于子节点，
// 子节点按源文本从左到右的顺序。
//
// 每种节点的子节点枚举：
//   Definition   → 绑定的表达式
//   FunctionCall → 位置参数（命名参数与函数名不作为子节点）
//   PipeOp       → 左、右操作数
//   Array        → 元素
//   Object       → 每个键值对的值（不含键）
//   其余种类均为叶子。
//
// ============================================================================

// Walk 前序遍历 node 及其子节点，对每个节点调用 visit
func Walk(node Node, visit func(Node)) {
	if node == nil {
		return
	}

	visit(node)

	switch n := node.(type) {
	case *Definition:
		Walk(n.Expr, visit)
	case *PipeOp:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *FunctionCall:
		for _, arg := range n.Args {
			Walk(arg, visit)
		}
	case *Array:
		for _, v := range n.Values {
			Walk(v, visit)
		}
	case *Object:
		for _, e := range n.Entries {
			Walk(e.Value, visit)
		}
	default:
		// 字面量、引用、ErrorNode、EmptyArgument、NamedArgument 均为叶子
	}
}

// Count 返回以 node 为根的子树的节点数
func Count(node Node) int {
	total := 0
	Walk(node, func(Node) { total++ })
	return total
}
