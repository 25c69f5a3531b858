package service

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxArchiveEntrySize 单个解压文件上限
const maxArchiveEntrySize = 256 << 20

// WithTempDir 创建临时解压目录，fn 返回后无论成败都删除
func WithTempDir(fn func(dir string) error) error {
	dir, err := os.MkdirTemp("", "cfaquiz_import_"+uuid.NewString()+"_")
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Log.Warn("Failed to remove temp dir", zap.String("dir", dir), zap.Error(err))
		}
	}()
	return fn(dir)
}

// ExtractZip 解压到 dst，拒绝跳出 dst 的条目
func ExtractZip(src, dst string) error {
	r, err := zip.OpenReader(src)
	if errors.Is(err, zip.ErrInsecurePath) {
		r.Close()
		return fmt.Errorf("%w: %v", util.ErrUnsafeArchivePath, err)
	}
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	root := filepath.Clean(dst) + string(os.PathSeparator)
	for _, f := range r.File {
		target := filepath.Join(dst, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target+string(os.PathSeparator), root) {
			return fmt.Errorf("%w: %s", util.ErrUnsafeArchivePath, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, maxArchiveEntrySize+1))
	if err != nil {
		return err
	}
	if n > maxArchiveEntrySize {
		return fmt.Errorf("archive entry %s exceeds %d bytes", f.Name, maxArchiveEntrySize)
	}
	return nil
}

// skipArchiveMeta macOS 打包时附带的元数据
func skipArchiveMeta(d fs.DirEntry) bool {
	name := d.Name()
	return name == "__MACOSX" || strings.HasPrefix(name, "._")
}

// FindFirstCSV 深度优先（按字典序）找第一个 .csv
func FindFirstCSV(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if skipArchiveMeta(d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return "", err
	}
	if found == "" {
		return "", util.ErrMissingCSV
	}
	return found, nil
}
