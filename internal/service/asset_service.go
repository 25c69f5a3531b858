package service

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssetIndex 解压目录下所有文件的大小写无关索引，
// 同时以相对路径和文件名为键；同名文件先遍历到的优先
type AssetIndex struct {
	Root  string
	files map[string]string
}

func BuildAssetIndex(root string) (*AssetIndex, error) {
	idx := &AssetIndex{Root: root, files: make(map[string]string)}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "__MACOSX" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		idx.add(strings.ToLower(filepath.ToSlash(rel)), path)
		idx.add(strings.ToLower(d.Name()), path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *AssetIndex) add(key, path string) {
	if _, exists := idx.files[key]; !exists {
		idx.files[key] = path
	}
}

func (idx *AssetIndex) Len() int { return len(idx.files) }

// Resolve 先按字面相对路径查找，再查索引
func (idx *AssetIndex) Resolve(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	rel := strings.TrimPrefix(filepath.ToSlash(ref), "./")

	direct := filepath.Join(idx.Root, filepath.FromSlash(rel))
	if strings.HasPrefix(direct, filepath.Clean(idx.Root)+string(os.PathSeparator)) {
		if info, err := os.Stat(direct); err == nil && info.Mode().IsRegular() {
			return direct, true
		}
	}

	if path, ok := idx.files[strings.ToLower(rel)]; ok {
		return path, true
	}
	if path, ok := idx.files[strings.ToLower(filepath.Base(filepath.FromSlash(rel)))]; ok {
		return path, true
	}
	return "", false
}

// StoredAssetName 持久化文件名：<记录id>_<原文件名>
func StoredAssetName(recordID, ref string) string {
	base := filepath.Base(filepath.FromSlash(strings.TrimSpace(ref)))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = uuid.NewString()
	}
	return recordID + "_" + base
}

// AssetService 把解压出的图片复制到持久存储
type AssetService struct {
	Storage *StorageService
}

func NewAssetService(storage *StorageService) *AssetService {
	return &AssetService{Storage: storage}
}

// save 返回存储后的名字；失败时返回 warning
func (s *AssetService) save(ctx context.Context, idx *AssetIndex, kind, recordID, ref string) (string, string) {
	src, ok := idx.Resolve(ref)
	if !ok {
		return "", fmt.Sprintf("Image not found for %s %s: %s", kind, recordID, ref)
	}

	name := StoredAssetName(recordID, ref)
	head := make([]byte, 512)
	if f, err := os.Open(src); err == nil {
		n, _ := f.Read(head)
		head = head[:n]
		f.Close()
	}
	contentType := util.DetectContentType(src, head)
	if !util.IsImageFile(src) && !util.IsImage(contentType) {
		return "", fmt.Sprintf("Not an image for %s %s: %s", kind, recordID, ref)
	}
	if _, err := s.Storage.UploadFile(ctx, name, src, contentType); err != nil {
		logger.Log.Warn("Failed to store asset", zap.String("record", recordID), zap.String("src", src), zap.Error(err))
		return "", fmt.Sprintf("Failed to copy image for %s %s: %s", kind, recordID, ref)
	}
	return name, ""
}

// AttachQuestionImages 为带图片引用的题目解析并保存图片，
// 成功时改写 ImageName，失败只产生 warning 且保留原引用
func (s *AssetService) AttachQuestionImages(ctx context.Context, idx *AssetIndex, questions []*model.Question) []string {
	var warnings []string
	for _, q := range questions {
		ref := q.ImageValue()
		if strings.TrimSpace(ref) == "" {
			continue
		}
		name, warn := s.save(ctx, idx, "question", q.ID, ref)
		if warn != "" {
			warnings = append(warnings, warn)
			continue
		}
		q.ImageName = &name
	}
	return warnings
}

func (s *AssetService) AttachFormulaImages(ctx context.Context, idx *AssetIndex, formulas []*model.Formula) []string {
	var warnings []string
	for _, f := range formulas {
		ref := f.ImageValue()
		if strings.TrimSpace(ref) == "" {
			continue
		}
		name, warn := s.save(ctx, idx, "formula", f.ID, ref)
		if warn != "" {
			warnings = append(warnings, warn)
			continue
		}
		f.ImageName = &name
	}
	return warnings
}

// RemoveImages 清空导入内容时删除对应图片
func (s *AssetService) RemoveImages(ctx context.Context, questions []*model.Question, formulas []*model.Formula) int {
	names := make([]string, 0, len(questions)+len(formulas))
	for _, q := range questions {
		names = append(names, q.ImageValue())
	}
	for _, f := range formulas {
		names = append(names, f.ImageValue())
	}
	return s.Storage.DeleteAll(ctx, names)
}
