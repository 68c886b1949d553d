package sink

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/sshcollectorpro/activerules/internal/table"
)

// Format 报表序列化格式
type Format string

const (
	// FormatCSV 逗号分隔，含表头
	FormatCSV Format = "csv"
	// FormatTSV 制表符分隔，含表头
	FormatTSV Format = "tsv"
	// FormatDelimitedText 空格分隔，无表头、无引号（每行一条命令）
	FormatDelimitedText Format = "delimited-text"
)

// Extension 文件扩展名
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	default:
		return ".txt"
	}
}

// ContentType MIME 类型
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatTSV:
		return "text/tab-separated-values; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Encode 序列化表格；行顺序与列顺序保持不变
func Encode(t *table.Table, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return encodeCSV(t, ',')
	case FormatTSV:
		return encodeCSV(t, '\t')
	case FormatDelimitedText:
		var buf bytes.Buffer
		for _, r := range t.Rows {
			buf.WriteString(strings.Join(r.Values, " "))
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

func encodeCSV(t *table.Table, comma rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = comma
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	for _, r := range t.Rows {
		if err := w.Write(r.Values); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
