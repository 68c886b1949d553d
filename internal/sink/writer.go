package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sshcollectorpro/activerules/internal/config"
	"github.com/sshcollectorpro/activerules/internal/table"
	"github.com/sshcollectorpro/activerules/pkg/logger"
)

// StoredObject 写入结果
type StoredObject struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
	// Mirror 镜像副本地址（未启用或镜像失败时为空）
	Mirror string `json:"mirror,omitempty"`
}

// Writer 报表写入器
type Writer interface {
	Write(ctx context.Context, t *table.Table, format Format, name string) (StoredObject, error)
}

// New 根据配置创建写入器：本地目录为主，配置了 MinIO 时附加镜像
func New(cfg *config.Config) Writer {
	local := &LocalWriter{Dir: cfg.Output.Dir, MkdirIfMissing: cfg.Output.MkdirIfMissing}
	if !cfg.Storage.Minio.Enabled() {
		return local
	}
	mw, err := NewMinioWriter(cfg.Storage.Minio)
	if err != nil {
		logger.Warnf("MinIO mirror disabled: %v", err)
		return local
	}
	return &MirrorWriter{Primary: local, Mirror: mw}
}

// LocalWriter 本地文件写入
type LocalWriter struct {
	Dir            string
	MkdirIfMissing bool
}

func (w *LocalWriter) Write(ctx context.Context, t *table.Table, format Format, name string) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, err
	}
	data, err := Encode(t, format)
	if err != nil {
		return StoredObject{}, err
	}

	dir := strings.TrimSpace(w.Dir)
	if dir == "" {
		dir = "."
	}
	if w.MkdirIfMissing {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
		}
	}

	fullPath := filepath.Join(dir, fileName(name, format))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}
	logger.WithField("path", fullPath).Debugf("report written: %d rows, %d bytes", t.Len(), len(data))

	return StoredObject{
		URI:         "file://" + fullPath,
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: format.ContentType(),
	}, nil
}

// MirrorWriter 先写主存储，再尽力写镜像；镜像失败只记录告警
type MirrorWriter struct {
	Primary Writer
	Mirror  Writer
}

func (w *MirrorWriter) Write(ctx context.Context, t *table.Table, format Format, name string) (StoredObject, error) {
	obj, err := w.Primary.Write(ctx, t, format, name)
	if err != nil {
		return StoredObject{}, err
	}
	if w.Mirror == nil {
		return obj, nil
	}
	mirrored, merr := w.Mirror.Write(ctx, t, format, name)
	if merr != nil {
		logger.WithField("name", name).Warnf("mirror write failed; kept local copy only: %v", merr)
		return obj, nil
	}
	obj.Mirror = mirrored.URI
	return obj, nil
}

func fileName(name string, format Format) string {
	base := slug(name)
	if strings.EqualFold(filepath.Ext(base), format.Extension()) {
		return base
	}
	return base + format.Extension()
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

var slugRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func slug(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(s)
	s = slugRe.ReplaceAllString(s, "")
	if s == "" {
		s = "report"
	}
	return s
}
