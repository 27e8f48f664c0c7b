package lsp

import (
	"sort"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/tangzhangming/cellscript/internal/builder"
	"github.com/tangzhangming/cellscript/internal/parser"
)

// ============================================================================
// 文档管理
// ============================================================================
//
// Document 保存一个打开的公式文档及其最新一次构建的产出。
// 文档内容变更时整体重建（公式很短，增量解析不值得）。
//
// DocumentManager 供嵌入本包的编辑器服务使用，按 URI 管理
// 打开的文档，所有方法并发安全。
//
// ============================================================================

// Document 一个打开的公式文档
type Document struct {
	URI     uri.URI
	Text    string
	Version int32

	Result     *builder.Result // 最新构建产出
	ParseErrs  []parser.Error  // 语法错误列表
	lineStarts []int           // 每行起始字节偏移（用于位置换算）
}

// NewDocument 解析并构建文档内容
func NewDocument(docURI uri.URI, text string, version int32, opts ...parser.Option) *Document {
	p := parser.New(text, opts...)
	cstRoot := p.Parse()

	return &Document{
		URI:        docURI,
		Text:       text,
		Version:    version,
		Result:     builder.Build(cstRoot),
		ParseErrs:  p.Errors(),
		lineStarts: lineStarts(text),
	}
}

// PositionAt 把字节偏移换算为 LSP 位置（0 起始的行与列）
func (d *Document) PositionAt(offset int) protocol.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Text) {
		offset = len(d.Text)
	}

	// 找到 offset 所属的行：最后一个 lineStarts[i] <= offset
	line := sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > offset
	}) - 1

	return protocol.Position{
		Line:      uint32(line),
		Character: uint32(offset - d.lineStarts[line]),
	}
}

// lineStarts 计算每行的起始字节偏移
func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// ============================================================================
// DocumentManager
// ============================================================================

// DocumentManager 管理所有打开的文档
type DocumentManager struct {
	mu   sync.RWMutex
	docs map[uri.URI]*Document
	opts []parser.Option
}

// NewDocumentManager 创建文档管理器
func NewDocumentManager(opts ...parser.Option) *DocumentManager {
	return &DocumentManager{
		docs: make(map[uri.URI]*Document),
		opts: opts,
	}
}

// Open 打开（或覆盖）一个文档并立即构建
func (m *DocumentManager) Open(docURI uri.URI, text string, version int32) *Document {
	doc := NewDocument(docURI, text, version, m.opts...)
	m.mu.Lock()
	m.docs[docURI] = doc
	m.mu.Unlock()
	return doc
}

// Update 用新内容整体重建文档
func (m *DocumentManager) Update(docURI uri.URI, text string, version int32) *Document {
	return m.Open(docURI, text, version)
}

// Get 返回打开的文档，不存在时返回 nil
func (m *DocumentManager) Get(docURI uri.URI) *Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs[docURI]
}

// Close 关闭文档
func (m *DocumentManager) Close(docURI uri.URI) {
	m.mu.Lock()
	delete(m.docs, docURI)
	m.mu.Unlock()
}

// Len 返回打开的文档数
func (m *DocumentManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
