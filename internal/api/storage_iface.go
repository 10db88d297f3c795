package api

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"

	"cvforge/internal/storage"
)

// BlobStorage 抽象照片与 PDF 所需的对象存储操作，便于测试替换。
// *storage.Client 是生产实现。
type BlobStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	ListObjects(ctx context.Context, prefix string, limit int) ([]storage.ObjectMeta, error)
}

var _ BlobStorage = (*storage.Client)(nil)
