package ast

import "strings"

// ============================================================================
// 单元格地址解析
// ============================================================================
//
// 把电子表格风格的地址文本转换为从 0 开始的数字坐标：
//
//	列字母是没有零位的 26 进制：A=0 … Z=25, AA=26, AB=27 …
//	行数字是十进制值减一：1 → 0, 3 → 2
//
// 这里都是纯函数，只处理形态正确的输入；
// 不合法的文本在文法阶段就不会被识别为单元格地址。
//
// ============================================================================

// ColumnIndex 把列字母转换为从 0 开始的列号
func ColumnIndex(letters string) int {
	col := 0
	for i := 0; i < len(letters); i++ {
		col = col*26 + int(letters[i]-'A') + 1
	}
	return col - 1
}

// RowIndex 把行数字文本转换为从 0 开始的行号
func RowIndex(digits string) int {
	row := 0
	for i := 0; i < len(digits); i++ {
		row = row*10 + int(digits[i]-'0')
	}
	return row - 1
}

// ParseCell 把单元格地址（如 "B3"）拆分为字母前缀和数字后缀，
// 返回从 0 开始的行列号
func ParseCell(text string) (row, col int) {
	split := 0
	for split < len(text) && text[split] >= 'A' && text[split] <= 'Z' {
		split++
	}
	return RowIndex(text[split:]), ColumnIndex(text[:split])
}

// ParseRange 把区域地址（如 "A1:C4"）按 ':' 拆分，
// 两侧分别用 ParseCell 解析，边界双侧都含
func ParseRange(text string) (startRow, startCol, endRow, endCol int) {
	start, end, _ := strings.Cut(text, ":")
	startRow, startCol = ParseCell(start)
	endRow, endCol = ParseCell(end)
	return startRow, startCol, endRow, endCol
}
