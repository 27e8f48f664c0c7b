package analysis

import (
	"github.com/tangzhangming/cellscript/internal/ast"
	"github.com/tangzhangming/cellscript/internal/builder"
)

// ============================================================================
// 依赖分析
// ============================================================================
//
// 依赖分析在求值之前运行：从构建产出的输入引用表和 AST 中
// 提取公式引用了哪些外部数据（变量、单元格、区域）以及调用了
// 哪些函数，供调用方建立引用图、决定重算顺序。
//
// 分析是只读的，不修改构建产出。
//
// ============================================================================

// Span 源文本区间，End 不含
type Span struct {
	Start int
	End   int
}

// VarDep 一个被引用的变量：名字 + 所有出现位置
type VarDep struct {
	Name  string
	Spans []Span
}

// CellDep 一个单元格引用
type CellDep struct {
	Row  int
	Col  int
	Span Span
}

// RangeDep 一个区域引用
type RangeDep struct {
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
	Span     Span
}

// ErrorSite 公式中一个出错的子表达式
type ErrorSite struct {
	Message string
	Span    Span
}

// Summary 一个公式的静态依赖汇总
type Summary struct {
	Variables []VarDep   // 变量依赖，按首次出现顺序去重
	Cells     []CellDep  // 单元格依赖，按出现顺序
	Ranges    []RangeDep // 区域依赖，按出现顺序
	Functions []string   // 被调用的函数名，按首次出现顺序去重
	Errors    []ErrorSite
	Output    string // 定义的目标名（非定义公式为空）
}

// HasErrors 判断公式是否包含出错的子表达式
func (s *Summary) HasErrors() bool {
	return len(s.Errors) > 0
}

// Analyze 从一次构建的产出中提取依赖汇总
func Analyze(result *builder.Result) *Summary {
	s := &Summary{}

	// 变量依赖直接来自输入引用表（创建顺序即首次出现顺序）
	varIndex := make(map[string]int)
	for _, input := range result.Inputs {
		v, ok := input.(*ast.Var)
		if !ok {
			continue
		}
		m := v.Meta()
		if i, seen := varIndex[v.Name]; seen {
			s.Variables[i].Spans = append(s.Variables[i].Spans, Span{m.Start, m.End})
			continue
		}
		varIndex[v.Name] = len(s.Variables)
		s.Variables = append(s.Variables, VarDep{
			Name:  v.Name,
			Spans: []Span{{m.Start, m.End}},
		})
	}

	// 其余依赖通过统一的前序遍历提取
	seenFunc := make(map[string]bool)
	ast.Walk(result.Root, func(node ast.Node) {
		m := node.Meta()
		switch n := node.(type) {
		case *ast.CellRef:
			s.Cells = append(s.Cells, CellDep{
				Row:  n.Row,
				Col:  n.Col,
				Span: Span{m.Start, m.End},
			})
		case *ast.RangeRef:
			s.Ranges = append(s.Ranges, RangeDep{
				StartRow: n.StartRow,
				StartCol: n.StartCol,
				EndRow:   n.EndRow,
				EndCol:   n.EndCol,
				Span:     Span{m.Start, m.End},
			})
		case *ast.FunctionCall:
			if n.Name != "" && !seenFunc[n.Name] {
				seenFunc[n.Name] = true
				s.Functions = append(s.Functions, n.Name)
			}
		case *ast.Definition:
			s.Output = n.Name
		case *ast.ErrorNode:
			s.Errors = append(s.Errors, ErrorSite{
				Message: n.Message,
				Span:    Span{m.Start, m.End},
			})
		}
	})

	return s
}
