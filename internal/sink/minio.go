package sink

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sshcollectorpro/activerules/internal/config"
	"github.com/sshcollectorpro/activerules/internal/table"
)

// MinioWriter 将报表镜像到 MinIO
// 对象路径：<prefix>/<YYYYMMDD_HHMMSS>/<name><ext>，时间戳在创建时固定，同一次运行的报表落在同一目录
type MinioWriter struct {
	client        *minio.Client
	endpoint      string
	bucket        string
	prefix        string
	folder        string
	bucketEnsured bool
}

// NewMinioWriter 创建 MinIO 写入器（不做网络访问）
func NewMinioWriter(cfg config.MinioConfig) (*MinioWriter, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("minio host/port not configured")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("minio bucket not configured")
	}
	endpoint := net.JoinHostPort(strings.TrimSpace(cfg.Host), fmt.Sprint(cfg.Port))

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.Secure,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client initialization failed: %w", err)
	}
	return &MinioWriter{
		client:   client,
		endpoint: endpoint,
		bucket:   bucket,
		prefix:   strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		folder:   time.Now().Format("20060102_150405"),
	}, nil
}

// ObjectName 报表在 bucket 中的对象路径
func (w *MinioWriter) ObjectName(name string, format Format) string {
	parts := []string{}
	if w.prefix != "" {
		parts = append(parts, w.prefix)
	}
	parts = append(parts, w.folder, fileName(name, format))
	return path.Join(parts...)
}

func (w *MinioWriter) Write(ctx context.Context, t *table.Table, format Format, name string) (StoredObject, error) {
	data, err := Encode(t, format)
	if err != nil {
		return StoredObject{}, err
	}

	if err := w.fastConnectivityCheck(ctx); err != nil {
		return StoredObject{}, fmt.Errorf("minio connectivity failed to %s: %w", w.endpoint, err)
	}
	if !w.bucketEnsured {
		if err := w.ensureBucket(ctx, 2); err != nil {
			return StoredObject{}, fmt.Errorf("minio ensure bucket failed: %w", err)
		}
		w.bucketEnsured = true
	}

	objectName := w.ObjectName(name, format)
	var lastErr error
	backoff := []time.Duration{2 * time.Second, 4 * time.Second}
	for i := 0; i <= len(backoff); i++ {
		attemptCtx, cancel := attemptContext(ctx, 10*time.Second)
		_, err := w.client.PutObject(attemptCtx, w.bucket, objectName, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: format.ContentType()})
		cancel()
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if i == len(backoff) {
			break
		}
		select {
		case <-ctx.Done():
			return StoredObject{}, ctx.Err()
		case <-time.After(backoff[i]):
		}
	}
	if lastErr != nil {
		return StoredObject{}, fmt.Errorf("minio put object failed after retries: %w", lastErr)
	}

	return StoredObject{
		URI:         "minio://" + path.Join(w.bucket, objectName),
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: format.ContentType(),
	}, nil
}

// fastConnectivityCheck TCP 直连探测，避免在不可达的端点上等待 HTTP 超时
func (w *MinioWriter) fastConnectivityCheck(parent context.Context) error {
	d := &net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(parent, "tcp", w.endpoint)
	if err != nil {
		return err
	}
	return conn.Close()
}

// ensureBucket 校验并创建 bucket，有限重试
func (w *MinioWriter) ensureBucket(parent context.Context, retries int) error {
	var lastErr error
	for i := 0; i <= retries; i++ {
		ctx, cancel := attemptContext(parent, 10*time.Second)
		exists, err := w.client.BucketExists(ctx, w.bucket)
		if err == nil && !exists {
			err = w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{})
		}
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return lastErr
}

// attemptContext 构造限时上下文，不超过父上下文的剩余时间
func attemptContext(parent context.Context, prefer time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := parent.Deadline(); ok {
		if remain := time.Until(deadline); remain < prefer {
			prefer = remain
		}
	}
	if prefer < time.Second {
		prefer = time.Second
	}
	return context.WithTimeout(parent, prefer)
}
