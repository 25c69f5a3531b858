package service

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"cfaquiz_backend/internal/util"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText 按 UTF-8 解码，失败时按 ISO-8859-1 回退
func DecodeText(data []byte) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", util.ErrEmptyInput
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", util.ErrUndecodable
	}
	return string(decoded), nil
}

// DetectDelimiter 看第一行非空行：分号多于逗号则用分号
func DetectDelimiter(text string) rune {
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Count(line, ";") > strings.Count(line, ",") {
			return ';'
		}
		return ','
	}
	return ','
}

// Tokenize 带引号状态的单遍切分。
// 引号内 "" 表示字面引号，分隔符和换行原样保留；引号外 \r\n、\n、单独的 \r 都结束一行。
// 末尾未闭合的字段照常输出。
func Tokenize(text string, delimiter rune) [][]string {
	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
	)

	chars := []rune(text)
	for i := 0; i < len(chars); i++ {
		c := chars[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(chars) && chars[i+1] == '"' {
				field.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == delimiter && !inQuotes:
			row = append(row, field.String())
			field.Reset()
		case (c == '\n' || c == '\r') && !inQuotes:
			if c == '\r' && i+1 < len(chars) && chars[i+1] == '\n' {
				i++
			}
			row = append(row, field.String())
			field.Reset()
			rows = append(rows, row)
			row = nil
		default:
			field.WriteRune(c)
		}
	}

	row = append(row, field.String())
	rows = append(rows, row)
	return rows
}

// IsBlankRow 所有字段去空白后都为空
func IsBlankRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ReadRows 解码、探测分隔符、切分并丢弃空行
func ReadRows(data []byte) ([][]string, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	tokenized := Tokenize(text, DetectDelimiter(text))
	rows := make([][]string, 0, len(tokenized))
	for _, row := range tokenized {
		if !IsBlankRow(row) {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, util.ErrNoRows
	}
	return rows, nil
}
