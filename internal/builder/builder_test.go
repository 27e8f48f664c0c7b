package builder

import (
	"testing"

	"github.com/tangzhangming/cellscript/internal/ast"
	"github.com/tangzhangming/cellscript/internal/cst"
	"github.com/tangzhangming/cellscript/internal/parser"
	"github.com/tangzhangming/cellscript/internal/token"
)

// buildSource 解析并构建一个公式（测试辅助函数）
func buildSource(t *testing.T, source string) *Result {
	t.Helper()
	p := parser.New(source)
	return Build(p.Parse())
}

// kindName 返回 AST 节点种类的短名
func kindName(n ast.Node) string {
	switch n.(type) {
	case *ast.Number:
		return "Number"
	case *ast.String:
		return "String"
	case *ast.Boolean:
		return "Boolean"
	case *ast.Var:
		return "Var"
	case *ast.CellRef:
		return "CellRef"
	case *ast.RangeRef:
		return "RangeRef"
	case *ast.Array:
		return "Array"
	case *ast.Object:
		return "Object"
	case *ast.FunctionCall:
		return "FunctionCall"
	case *ast.NamedArgument:
		return "NamedArgument"
	case *ast.EmptyArgument:
		return "EmptyArgument"
	case *ast.Definition:
		return "Definition"
	case *ast.PipeOp:
		return "PipeOp"
	case *ast.ErrorNode:
		return "ErrorNode"
	default:
		return "Unknown"
	}
}

func nodeKinds(nodes []ast.Node) []string {
	kinds := make([]string, len(nodes))
	for i, n := range nodes {
		kinds[i] = kindName(n)
	}
	return kinds
}

func assertKinds(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("node kinds mismatch: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kind[%d] mismatch: got %s, want %s", i, got[i], want[i])
		}
	}
}

// ============================================================================
// 字面量与引用
// ============================================================================

func TestBuildLiterals(t *testing.T) {
	tests := []struct {
		source string
		check  func(t *testing.T, root ast.Node)
	}{
		{"42", func(t *testing.T, root ast.Node) {
			num, ok := root.(*ast.Number)
			if !ok {
				t.Fatalf("expected *ast.Number, got %T", root)
			}
			if num.Value != 42 {
				t.Errorf("value mismatch: got %v, want 42", num.Value)
			}
		}},
		{"3.5e2", func(t *testing.T, root ast.Node) {
			num, ok := root.(*ast.Number)
			if !ok {
				t.Fatalf("expected *ast.Number, got %T", root)
			}
			if num.Value != 350 {
				t.Errorf("value mismatch: got %v, want 350", num.Value)
			}
		}},
		{`"hello"`, func(t *testing.T, root ast.Node) {
			str, ok := root.(*ast.String)
			if !ok {
				t.Fatalf("expected *ast.String, got %T", root)
			}
			if str.Value != "hello" {
				t.Errorf("quotes should be stripped: got %q", str.Value)
			}
		}},
		{"true", func(t *testing.T, root ast.Node) {
			boolean, ok := root.(*ast.Boolean)
			if !ok {
				t.Fatalf("expected *ast.Boolean, got %T", root)
			}
			if !boolean.Value {
				t.Errorf("value mismatch: got false, want true")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			tt.check(t, buildSource(t, tt.source).Root)
		})
	}
}

func TestBuildCellRef(t *testing.T) {
	root := buildSource(t, "B3").Root
	cell, ok := root.(*ast.CellRef)
	if !ok {
		t.Fatalf("expected *ast.CellRef, got %T", root)
	}
	if cell.Row != 2 || cell.Col != 1 {
		t.Errorf("B3 mismatch: got (%d, %d), want (2, 1)", cell.Row, cell.Col)
	}
}

func TestBuildRangeRef(t *testing.T) {
	root := buildSource(t, "A1:C4").Root
	rng, ok := root.(*ast.RangeRef)
	if !ok {
		t.Fatalf("expected *ast.RangeRef, got %T", root)
	}
	if rng.StartRow != 0 || rng.StartCol != 0 || rng.EndRow != 3 || rng.EndCol != 2 {
		t.Errorf("A1:C4 mismatch: got (%d, %d, %d, %d), want (0, 0, 3, 2)",
			rng.StartRow, rng.StartCol, rng.EndRow, rng.EndCol)
	}
}

// ============================================================================
// 运算符降级
// ============================================================================

func TestBuildOperatorLowering(t *testing.T) {
	tests := []struct {
		source string
		name   string
	}{
		{"1 + 2", ast.FuncAdd},
		{"1 - 2", ast.FuncSubtract},
		{"1 * 2", ast.FuncMultiply},
		{"1 / 2", ast.FuncDivide},
		{"1 % 2", ast.FuncRemainder},
		{"1 ^ 2", ast.FuncPow},
		{"1 < 2", ast.FuncLess},
		{"1 <= 2", ast.FuncLessOrEqual},
		{"1 > 2", ast.FuncGreater},
		{"1 >= 2", ast.FuncGreaterOrEqual},
		{"1 == 2", ast.FuncEqual},
		{"1 != 2", ast.FuncNotEqual},
		{"true && false", ast.FuncAnd},
		{"true || false", ast.FuncOr},
		{"!true", ast.FuncNot},
		{"+1", ast.FuncPositive},
		{"-1", ast.FuncNegative},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			root := buildSource(t, tt.source).Root
			call, ok := root.(*ast.FunctionCall)
			if !ok {
				t.Fatalf("expected *ast.FunctionCall, got %T", root)
			}
			if call.Name != tt.name {
				t.Errorf("function name mismatch: got %q, want %q", call.Name, tt.name)
			}
		})
	}
}

func TestBuildPrecedenceNesting(t *testing.T) {
	// 1 + 2 * 3 → add(1, multiply(2, 3))
	root := buildSource(t, "1 + 2 * 3").Root
	add, ok := root.(*ast.FunctionCall)
	if !ok || add.Name != ast.FuncAdd {
		t.Fatalf("expected add call at root, got %T", root)
	}
	if len(add.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(add.Args))
	}
	mul, ok := add.Args[1].(*ast.FunctionCall)
	if !ok || mul.Name != ast.FuncMultiply {
		t.Errorf("expected multiply as second arg, got %v", add.Args[1])
	}
}

func TestBuildLeftAssociativeNesting(t *testing.T) {
	// 1 + x + A1 → add(add(1, x), A1)
	root := buildSource(t, "1 + x + A1").Root
	outer, ok := root.(*ast.FunctionCall)
	if !ok || outer.Name != ast.FuncAdd {
		t.Fatalf("expected add call at root, got %T", root)
	}
	inner, ok := outer.Args[0].(*ast.FunctionCall)
	if !ok || inner.Name != ast.FuncAdd {
		t.Fatalf("expected nested add as first arg, got %T", outer.Args[0])
	}
	if _, ok := inner.Args[0].(*ast.Number); !ok {
		t.Errorf("expected Number as inner first arg, got %T", inner.Args[0])
	}
	if _, ok := outer.Args[1].(*ast.CellRef); !ok {
		t.Errorf("expected CellRef as outer second arg, got %T", outer.Args[1])
	}
}

func TestBuildSelectLowering(t *testing.T) {
	// a.b → select(a, "b")
	root := buildSource(t, "a.b").Root
	sel, ok := root.(*ast.FunctionCall)
	if !ok || sel.Name != ast.FuncSelect {
		t.Fatalf("expected select call, got %T", root)
	}
	if len(sel.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(sel.Args))
	}
	member, ok := sel.Args[1].(*ast.String)
	if !ok {
		t.Fatalf("member should be a synthesized string, got %T", sel.Args[1])
	}
	if member.Value != "b" {
		t.Errorf("member name mismatch: got %q, want %q", member.Value, "b")
	}

	// a[0] → select(a, 0)
	root = buildSource(t, "a[0]").Root
	sel, ok = root.(*ast.FunctionCall)
	if !ok || sel.Name != ast.FuncSelect {
		t.Fatalf("expected select call, got %T", root)
	}
	if _, ok := sel.Args[1].(*ast.Number); !ok {
		t.Errorf("index should stay a number, got %T", sel.Args[1])
	}
}

func TestBuildSelectMissingMember(t *testing.T) {
	// '.' 后缺失成员名：成员位置必须出现错误节点，而不是
	// 把 '.' 当成成员名合成字符串
	root := buildSource(t, "a.").Root
	sel, ok := root.(*ast.FunctionCall)
	if !ok || sel.Name != ast.FuncSelect {
		t.Fatalf("expected select call, got %T", root)
	}
	if len(sel.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(sel.Args))
	}
	if _, ok := sel.Args[0].(*ast.Var); !ok {
		t.Errorf("base should be Var, got %T", sel.Args[0])
	}
	e, ok := sel.Args[1].(*ast.ErrorNode)
	if !ok {
		t.Fatalf("member position should hold an error node, got %T", sel.Args[1])
	}
	if e.Message == "" {
		t.Error("error node should carry the underlying message")
	}
}

func TestBuildPipe(t *testing.T) {
	root := buildSource(t, "A1 |> clean()").Root
	pipe, ok := root.(*ast.PipeOp)
	if !ok {
		t.Fatalf("expected *ast.PipeOp, got %T", root)
	}
	if _, ok := pipe.Left.(*ast.CellRef); !ok {
		t.Errorf("pipe left should be CellRef, got %T", pipe.Left)
	}
	call, ok := pipe.Right.(*ast.FunctionCall)
	if !ok || call.Name != "clean" {
		t.Errorf("pipe right should be call to clean, got %T", pipe.Right)
	}
}

// ============================================================================
// 定义、数组、对象
// ============================================================================

func TestBuildDefinition(t *testing.T) {
	result := buildSource(t, "total = x + 1")
	def, ok := result.Root.(*ast.Definition)
	if !ok {
		t.Fatalf("expected *ast.Definition, got %T", result.Root)
	}
	if def.Name != "total" {
		t.Errorf("name mismatch: got %q, want %q", def.Name, "total")
	}
	if _, ok := def.Expr.(*ast.FunctionCall); !ok {
		t.Errorf("bound expression should be a call, got %T", def.Expr)
	}
	if len(result.Tokens) == 0 || result.Tokens[0].Kind != ast.TokenOutputName {
		t.Errorf("first token should be output-name, got %v", result.Tokens)
	}
}

func TestBuildArray(t *testing.T) {
	result := buildSource(t, "[1, x, A1]")
	arr, ok := result.Root.(*ast.Array)
	if !ok {
		t.Fatalf("expected *ast.Array, got %T", result.Root)
	}
	if len(arr.Values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(arr.Values))
	}

	assertKinds(t, nodeKinds(result.Nodes),
		[]string{"Array", "Number", "Var", "CellRef"})
}

func TestBuildObject(t *testing.T) {
	result := buildSource(t, `{foo: 1, "bar baz": x}`)
	obj, ok := result.Root.(*ast.Object)
	if !ok {
		t.Fatalf("expected *ast.Object, got %T", result.Root)
	}
	if len(obj.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(obj.Entries))
	}
	if obj.Entries[0].Key != "foo" {
		t.Errorf("key[0] mismatch: got %q, want %q", obj.Entries[0].Key, "foo")
	}
	if obj.Entries[1].Key != "bar baz" {
		t.Errorf("string keys should be unquoted: got %q", obj.Entries[1].Key)
	}

	var keys []string
	for _, tok := range result.Tokens {
		if tok.Kind == ast.TokenKey {
			keys = append(keys, tok.Text)
		}
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 key tokens, got %d", len(keys))
	}
}

// ============================================================================
// 调用与参数序列
// ============================================================================

func TestBuildCall(t *testing.T) {
	root := buildSource(t, "sum(x, 10)").Root
	call, ok := root.(*ast.FunctionCall)
	if !ok {
		t.Fatalf("expected *ast.FunctionCall, got %T", root)
	}
	if call.Name != "sum" {
		t.Errorf("name mismatch: got %q, want %q", call.Name, "sum")
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(call.Args))
	}
	if _, ok := call.Args[0].(*ast.Var); !ok {
		t.Errorf("arg[0] should be Var, got %T", call.Args[0])
	}
	if _, ok := call.Args[1].(*ast.Number); !ok {
		t.Errorf("arg[1] should be Number, got %T", call.Args[1])
	}
}

func TestBuildEmptyArguments(t *testing.T) {
	tests := []struct {
		source string
		kinds  []string
	}{
		{"sum(x,,y)", []string{"Var", "EmptyArgument", "Var"}},
		{"sum(,x)", []string{"EmptyArgument", "Var"}},
		{"sum(x,)", []string{"Var", "EmptyArgument"}},
		{"sum(,)", []string{"EmptyArgument", "EmptyArgument"}},
		{"sum()", nil},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			root := buildSource(t, tt.source).Root
			call, ok := root.(*ast.FunctionCall)
			if !ok {
				t.Fatalf("expected *ast.FunctionCall, got %T", root)
			}
			assertKinds(t, nodeKinds(call.Args), tt.kinds)
		})
	}
}

func TestBuildEmptyArgumentSpan(t *testing.T) {
	// 空参数落在逗号自身的跨度上
	source := "sum(x,,y)"
	root := buildSource(t, source).Root
	call := root.(*ast.FunctionCall)
	empty := call.Args[1].(*ast.EmptyArgument)

	m := empty.Meta()
	if m.Start < 0 || m.End > len(source) || source[m.Start:m.End] != "," {
		t.Errorf("empty argument span mismatch: got [%d, %d)", m.Start, m.End)
	}
}

func TestBuildNamedArguments(t *testing.T) {
	root := buildSource(t, `plot(data, color: "red")`).Root
	call, ok := root.(*ast.FunctionCall)
	if !ok {
		t.Fatalf("expected *ast.FunctionCall, got %T", root)
	}
	if len(call.Args) != 1 {
		t.Errorf("expected 1 positional arg, got %d", len(call.Args))
	}
	if len(call.NamedArgs) != 1 {
		t.Fatalf("expected 1 named arg, got %d", len(call.NamedArgs))
	}
	na := call.NamedArgs[0]
	if na.Name != "color" {
		t.Errorf("named arg name mismatch: got %q, want %q", na.Name, "color")
	}
	if str, ok := na.Value.(*ast.String); !ok || str.Value != "red" {
		t.Errorf("named arg value mismatch: got %v", na.Value)
	}
}

func TestBuildRangeInCallArgs(t *testing.T) {
	// A1:C4 作为调用参数是区域引用，不是命名参数
	root := buildSource(t, "sum(A1:C4)").Root
	call := root.(*ast.FunctionCall)
	if len(call.NamedArgs) != 0 {
		t.Fatalf("range argument misread as named argument")
	}
	if len(call.Args) != 1 {
		t.Fatalf("expected 1 arg, got %d", len(call.Args))
	}
	if _, ok := call.Args[0].(*ast.RangeRef); !ok {
		t.Errorf("arg should be RangeRef, got %T", call.Args[0])
	}
}

func TestBuildAnonymousCall(t *testing.T) {
	// 手工构建没有函数名终结符的调用节点
	lparen := token.Token{Type: token.LPAREN, Literal: "(", Start: 0, Stop: 0}
	num := token.Token{Type: token.INT, Literal: "1", Start: 1, Stop: 1}
	rparen := token.Token{Type: token.RPAREN, Literal: ")", Start: 2, Stop: 2}

	n := cst.NewNode(cst.KindCall,
		cst.NewTerminal(lparen),
		cst.NewNode(cst.KindInt, cst.NewTerminal(num)),
		cst.NewTerminal(rparen))

	root := Build(n).Root
	call, ok := root.(*ast.FunctionCall)
	if !ok {
		t.Fatalf("expected *ast.FunctionCall, got %T", root)
	}
	if call.Name != "" {
		t.Errorf("anonymous call should keep empty name, got %q", call.Name)
	}
	if len(call.Args) != 1 {
		t.Errorf("expected 1 arg, got %d", len(call.Args))
	}
}

// ============================================================================
// 旁路表
// ============================================================================

func TestBuildNodesPreOrder(t *testing.T) {
	result := buildSource(t, "total = sum(x, B3) + 1")

	assertKinds(t, nodeKinds(result.Nodes),
		[]string{"Definition", "FunctionCall", "FunctionCall", "Var", "CellRef", "Number"})

	// 编号唯一且与创建顺序一致
	for i, n := range result.Nodes {
		if n.Meta().ID != i {
			t.Errorf("node[%d] ID mismatch: got %d, want %d", i, n.Meta().ID, i)
		}
	}

	// 扁平表顺序与 Walker 访问顺序一致
	var walked []ast.Node
	ast.Walk(result.Root, func(n ast.Node) { walked = append(walked, n) })
	if len(walked) != len(result.Nodes) {
		t.Fatalf("walk count mismatch: got %d, want %d", len(walked), len(result.Nodes))
	}
	for i := range walked {
		if walked[i] != result.Nodes[i] {
			t.Errorf("walk order diverges from node table at index %d", i)
		}
	}
}

func TestBuildInputs(t *testing.T) {
	result := buildSource(t, "x + y + x")

	if len(result.Inputs) != 3 {
		t.Fatalf("expected 3 input references, got %d", len(result.Inputs))
	}
	want := []string{"x", "y", "x"}
	for i, n := range result.Inputs {
		v, ok := n.(*ast.Var)
		if !ok {
			t.Fatalf("input[%d] should be Var, got %T", i, n)
		}
		if v.Name != want[i] {
			t.Errorf("input[%d] mismatch: got %q, want %q", i, v.Name, want[i])
		}
	}
}

func TestBuildTokensLeftToRight(t *testing.T) {
	source := `total = sum(x, 10) + {foo: "bar"}.foo`
	result := buildSource(t, source)

	var prev int
	for i, tok := range result.Tokens {
		if tok.Start < prev {
			t.Errorf("token[%d] %q out of order: start %d before %d",
				i, tok.Text, tok.Start, prev)
		}
		prev = tok.Start
	}

	wantKinds := []ast.TokenKind{
		ast.TokenOutputName,    // total
		ast.TokenFunctionName,  // sum
		ast.TokenInputVarName,  // x
		ast.TokenNumberLiteral, // 10
		ast.TokenKey,           // foo
		ast.TokenStringLiteral, // "bar"
	}
	if len(result.Tokens) != len(wantKinds) {
		t.Fatalf("token count mismatch: got %d, want %d", len(result.Tokens), len(wantKinds))
	}
	for i, kind := range wantKinds {
		if result.Tokens[i].Kind != kind {
			t.Errorf("token[%d] kind mismatch: got %s, want %s",
				i, result.Tokens[i].Kind, kind)
		}
	}
}

func TestBuildSpans(t *testing.T) {
	source := "total = sum(x, B3) + [1, 2]"
	result := buildSource(t, source)

	for _, n := range result.Nodes {
		m := n.Meta()
		if m.Start == ast.NoPos {
			t.Errorf("%s has unknown span", kindName(n))
			continue
		}
		if m.Start > m.End {
			t.Errorf("%s span inverted: [%d, %d)", kindName(n), m.Start, m.End)
		}
		if m.Start < 0 || m.End > len(source) {
			t.Errorf("%s span out of bounds: [%d, %d)", kindName(n), m.Start, m.End)
		}
	}

	// 根节点覆盖整个公式
	if m := result.Root.Meta(); m.Start != 0 || m.End != len(source) {
		t.Errorf("root span mismatch: got [%d, %d), want [0, %d)", m.Start, m.End, len(source))
	}
}

func TestBuildIsolatedContexts(t *testing.T) {
	// 每次构建使用独立上下文，编号从零重新开始
	first := buildSource(t, "x + 1")
	second := buildSource(t, "y")

	if second.Root.Meta().ID != 0 {
		t.Errorf("second build should restart IDs at 0, got %d", second.Root.Meta().ID)
	}
	if len(first.Nodes) != 3 || len(second.Nodes) != 1 {
		t.Errorf("node tables should not leak between builds: got %d and %d",
			len(first.Nodes), len(second.Nodes))
	}
}

// ============================================================================
// 错误恢复
// ============================================================================

func TestBuildErrorRecovery(t *testing.T) {
	tests := []struct {
		name          string
		source        string
		wantErrorNode bool
	}{
		{"dangling operator", "1 +", true},
		{"unexpected token", "1 + @", true},
		{"empty formula", "", true},
		// 缺失的右括号只记录解析错误，树本身仍然完整
		{"unclosed paren", "(1 + 2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parser.New(tt.source)
			result := Build(p.Parse())
			if result.Root == nil {
				t.Fatal("root should never be nil")
			}
			if !p.HasErrors() {
				t.Errorf("expected parse errors for %q", tt.source)
			}

			found := false
			ast.Walk(result.Root, func(n ast.Node) {
				if _, ok := n.(*ast.ErrorNode); ok {
					found = true
				}
			})
			if found != tt.wantErrorNode {
				t.Errorf("error node presence mismatch for %q: got %v, want %v",
					tt.source, found, tt.wantErrorNode)
			}
		})
	}
}

func TestBuildUnknownKind(t *testing.T) {
	n := cst.NewNode("mystery")
	root := Build(n).Root
	e, ok := root.(*ast.ErrorNode)
	if !ok {
		t.Fatalf("expected *ast.ErrorNode, got %T", root)
	}
	if e.Message != "Parser error." {
		t.Errorf("message mismatch: got %q, want %q", e.Message, "Parser error.")
	}
}

func TestBuildNilRoot(t *testing.T) {
	root := Build(nil).Root
	if _, ok := root.(*ast.ErrorNode); !ok {
		t.Fatalf("expected *ast.ErrorNode, got %T", root)
	}
}

func TestBuildInvalidNumber(t *testing.T) {
	bad := token.Token{Type: token.INT, Literal: "12x9", Start: 0, Stop: 3}
	n := cst.NewNode(cst.KindInt, cst.NewTerminal(bad))

	root := Build(n).Root
	e, ok := root.(*ast.ErrorNode)
	if !ok {
		t.Fatalf("expected *ast.ErrorNode, got %T", root)
	}
	if e.Message != "Invalid number." {
		t.Errorf("message mismatch: got %q, want %q", e.Message, "Invalid number.")
	}
}

func TestBuildExceptionPayload(t *testing.T) {
	// 带 Exception 的 CST 节点以其底层信息生成错误节点
	p := parser.New("1 + @")
	result := Build(p.Parse())

	var messages []string
	ast.Walk(result.Root, func(n ast.Node) {
		if e, ok := n.(*ast.ErrorNode); ok {
			messages = append(messages, e.Message)
		}
	})
	if len(messages) == 0 {
		t.Fatal("expected at least one error node")
	}
	if messages[0] == "" {
		t.Error("error node should carry the underlying message")
	}
}
