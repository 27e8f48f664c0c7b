package lsp

import (
	"go.lsp.dev/protocol"

	"github.com/tangzhangming/cellscript/internal/ast"
)

// diagnosticSource 诊断来源标识
const diagnosticSource = "cellscript"

// Diagnostics 汇总文档的全部诊断信息：
// 语法分析器报告的错误，加上 AST 中的错误节点。
//
// 构建永不中断，所以即使公式部分出错，诊断也只覆盖
// 出错的子表达式，其余部分仍然正常高亮与分析。
func Diagnostics(doc *Document) []protocol.Diagnostic {
	var diags []protocol.Diagnostic
	if doc == nil {
		return diags
	}

	for _, err := range doc.ParseErrs {
		start := protocol.Position{
			Line:      uint32(err.Pos.Line - 1),
			Character: uint32(err.Pos.Column - 1),
		}
		diags = append(diags, protocol.Diagnostic{
			Range:    protocol.Range{Start: start, End: start},
			Severity: protocol.DiagnosticSeverityError,
			Source:   diagnosticSource,
			Message:  err.Message,
		})
	}

	if doc.Result == nil {
		return diags
	}

	ast.Walk(doc.Result.Root, func(node ast.Node) {
		errNode, ok := node.(*ast.ErrorNode)
		if !ok {
			return
		}
		m := errNode.Meta()
		var rng protocol.Range
		if m.Start != ast.NoPos && m.End != ast.NoPos {
			rng = protocol.Range{
				Start: doc.PositionAt(m.Start),
				End:   doc.PositionAt(m.End),
			}
		}
		diags = append(diags, protocol.Diagnostic{
			Range:    rng,
			Severity: protocol.DiagnosticSeverityError,
			Source:   diagnosticSource,
			Message:  errNode.Message,
		})
	})

	return diags
}
