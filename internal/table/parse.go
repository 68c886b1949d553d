package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
)

// ErrNoHeader 跳过前导行后没有可用的表头
var ErrNoHeader = errors.New("table: no header line")

// ParseOptions 解析参数
type ParseOptions struct {
	// SkipLines 丢弃的前导行数（设备横幅、分隔线等）
	SkipLines int
	// Delimiter 为空时按连续空白切分；否则按该单字符切分（遵循 CSV 引号规则）
	Delimiter string
	// MaxColumns 大于 0 时仅保留表头与各行的前 MaxColumns 个字段
	MaxColumns int
}

// Parse 将命令回显的文本表格解析为 Table
// 空行忽略；字段数不符的行返回 *MalformedRowError，整表作废
func Parse(text string, opts ParseOptions) (*Table, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	split, err := splitter(opts.Delimiter)
	if err != nil {
		return nil, err
	}

	t := &Table{}
	haveHeader := false
	for i, ln := range lines {
		lineNo := i + 1
		if i < opts.SkipLines {
			continue
		}
		if strings.TrimSpace(ln) == "" {
			continue
		}
		fields, err := split(ln)
		if err != nil {
			return nil, fmt.Errorf("table: line %d: %w", lineNo, err)
		}

		if !haveHeader {
			if opts.MaxColumns > 0 && len(fields) > opts.MaxColumns {
				fields = fields[:opts.MaxColumns]
			}
			t.Columns = fields
			haveHeader = true
			continue
		}

		want := len(t.Columns)
		switch {
		case opts.MaxColumns > 0 && len(fields) >= want:
			fields = fields[:want]
		case len(fields) != want:
			return nil, &MalformedRowError{Line: lineNo, Expected: want, Got: len(fields), Text: ln}
		}
		t.Rows = append(t.Rows, Row{Line: lineNo, Values: fields})
	}

	if !haveHeader {
		return nil, ErrNoHeader
	}
	return t, nil
}

func splitter(delim string) (func(string) ([]string, error), error) {
	if delim == "" {
		return func(s string) ([]string, error) { return strings.Fields(s), nil }, nil
	}
	runes := []rune(delim)
	if len(runes) != 1 {
		return nil, fmt.Errorf("table: delimiter must be a single character, got %q", delim)
	}
	comma := runes[0]
	return func(s string) ([]string, error) {
		r := csv.NewReader(strings.NewReader(s))
		r.Comma = comma
		r.LazyQuotes = true
		r.FieldsPerRecord = -1
		return r.Read()
	}, nil
}
