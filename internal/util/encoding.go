package util

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// CharsetAuto 按常见旧编码依次尝试解码
const CharsetAuto = "auto"

var charsets = map[string]encoding.Encoding{
	"utf-8":      nil,
	"utf8":       nil,
	"gbk":        simplifiedchinese.GBK,
	"gb18030":    simplifiedchinese.GB18030,
	"big5":       traditionalchinese.Big5,
	"latin1":     charmap.ISO8859_1,
	"iso-8859-1": charmap.ISO8859_1,
	"cp1252":     charmap.Windows1252,
}

// 自动模式的候选顺序：防火墙回显多为 ASCII，少量中文规则名或描述
var autoCandidates = []encoding.Encoding{
	simplifiedchinese.GB18030,
	traditionalchinese.Big5,
	charmap.Windows1252,
}

// ValidCharset 校验编码名称
func ValidCharset(name string) error {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == CharsetAuto {
		return nil
	}
	if _, ok := charsets[n]; !ok {
		return fmt.Errorf("unsupported charset %q", name)
	}
	return nil
}

// DecodeOutput 将设备回显转换为 UTF-8
// 已是合法 UTF-8 的内容原样返回；指定编码解码失败时退回原始字节
func DecodeOutput(s, charset string) string {
	b := []byte(s)
	if len(b) == 0 || utf8.Valid(b) {
		return s
	}
	n := strings.ToLower(strings.TrimSpace(charset))
	if enc, ok := charsets[n]; ok {
		if enc == nil {
			return s
		}
		if out, ok := decode(enc, b); ok {
			return out
		}
		return s
	}
	for _, enc := range autoCandidates {
		if out, ok := decode(enc, b); ok {
			return out
		}
	}
	return s
}

func decode(enc encoding.Encoding, b []byte) (string, bool) {
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(b), enc.NewDecoder()))
	if err != nil || !utf8.Valid(decoded) {
		return "", false
	}
	return string(decoded), true
}
