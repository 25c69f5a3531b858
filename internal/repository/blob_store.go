package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/util"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlobStore 不透明的整块读写存储；题库每次保存都整体覆盖
type BlobStore interface {
	// Load 键不存在时返回 util.ErrBlobNotFound
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryBlobStore 测试和只读工具使用
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, util.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryBlobStore) Save(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// FileBlobStore 每个键一个文件，先写临时文件再 rename
type FileBlobStore struct {
	Dir string
}

func NewFileBlobStore(dir string) *FileBlobStore {
	return &FileBlobStore{Dir: dir}
}

func (s *FileBlobStore) path(key string) string {
	return filepath.Join(s.Dir, filepath.Base(key))
}

func (s *FileBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, util.ErrBlobNotFound
	}
	return data, err
}

func (s *FileBlobStore) Save(ctx context.Context, key string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, "."+filepath.Base(key)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

func (s *FileBlobStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// GormBlobStore 存在 blobs 表中，sqlite/mysql 均可
type GormBlobStore struct {
	DB *gorm.DB
}

func NewGormBlobStore(db *gorm.DB) *GormBlobStore {
	return &GormBlobStore{DB: db}
}

func (s *GormBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	var blob model.Blob
	err := s.DB.WithContext(ctx).Where(&model.Blob{Key: key}).First(&blob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrBlobNotFound
	}
	if err != nil {
		return nil, err
	}
	return blob.Data, nil
}

func (s *GormBlobStore) Save(ctx context.Context, key string, data []byte) error {
	blob := model.Blob{Key: key, Data: data, UpdatedAt: time.Now()}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&blob).Error
}

func (s *GormBlobStore) Delete(ctx context.Context, key string) error {
	return s.DB.WithContext(ctx).Where(&model.Blob{Key: key}).Delete(&model.Blob{}).Error
}

// RedisBlobStore 以 prefix+key 为 redis 键
type RedisBlobStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisBlobStore(client *redis.Client, prefix string) *RedisBlobStore {
	return &RedisBlobStore{Client: client, Prefix: prefix}
}

func (s *RedisBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Client.Get(ctx, s.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, util.ErrBlobNotFound
	}
	return data, err
}

func (s *RedisBlobStore) Save(ctx context.Context, key string, data []byte) error {
	return s.Client.Set(ctx, s.Prefix+key, data, 0).Err()
}

func (s *RedisBlobStore) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.Prefix+key).Err()
}
