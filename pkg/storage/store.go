package stores

import (
	"context"
	"fmt"
	"io"
)

// Store 音频对象存储抽象
type Store interface {
	Read(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// List 返回指定前缀下的全部对象键
	List(ctx context.Context, prefix string) ([]string, error)
	// PublicURL 对象的对外访问地址
	PublicURL(key string) string
}

// New 根据驱动创建存储实例
func New(driver string) (Store, error) {
	switch driver {
	case "minio":
		return NewMinioStore(), nil
	case "cos":
		return NewCOSStore()
	case "local", "":
		return NewLocalStore(""), nil
	}
	return nil, fmt.Errorf("unsupported storage driver: %s", driver)
}
