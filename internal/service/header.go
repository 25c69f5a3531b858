package service

import "strings"

// headerMarkers 第一行出现任一字段即视为表头
var (
	questionHeaderMarkers = []string{"stem", "question", "category"}
	formulaHeaderMarkers  = []string{"formula", "title", "category"}
)

// Header 表头字段名到列号的映射，为空表示无表头按位置取值
type Header map[string]int

// DetectHeader 检查第一行是否为表头，返回映射以及数据起始行
func DetectHeader(rows [][]string, markers []string) (Header, int) {
	if len(rows) == 0 {
		return Header{}, 0
	}
	normalized := make([]string, len(rows[0]))
	for i, f := range rows[0] {
		normalized[i] = strings.ToLower(strings.TrimSpace(f))
	}

	hasHeader := false
	for _, name := range normalized {
		for _, m := range markers {
			if name == m {
				hasHeader = true
			}
		}
	}
	if !hasHeader {
		return Header{}, 0
	}

	header := make(Header, len(normalized))
	for idx, name := range normalized {
		if _, exists := header[name]; !exists && name != "" {
			header[name] = idx
		}
	}
	return header, 1
}

func (h Header) IsEmpty() bool { return len(h) == 0 }

// Field 先按候选列名查表头，再退回位置下标；fallback < 0 表示无位置回退。
// 返回去除首尾空白后的值。
func (h Header) Field(row []string, keys []string, fallback int) (string, bool) {
	for _, k := range keys {
		if idx, ok := h[k]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx]), true
		}
	}
	if fallback >= 0 && fallback < len(row) {
		return strings.TrimSpace(row[fallback]), true
	}
	return "", false
}

// Value 同 Field，缺失时返回空串
func (h Header) Value(row []string, keys []string, fallback int) string {
	v, _ := h.Field(row, keys, fallback)
	return v
}

// LooksLikeFormulaSheet 表头含 formula 或 title 且不含 stem/question
func LooksLikeFormulaSheet(rows [][]string) bool {
	header, start := DetectHeader(rows, formulaHeaderMarkers)
	if start == 0 {
		return false
	}
	_, hasFormula := header["formula"]
	_, hasStem := header["stem"]
	_, hasQuestion := header["question"]
	return hasFormula && !hasStem && !hasQuestion
}
