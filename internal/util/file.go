package util

import (
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
)

// DetectContentType 优先按扩展名判断，未知时嗅探前 512 字节
func DetectContentType(name string, head []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	if len(head) > 512 {
		head = head[:512]
	}
	return http.DetectContentType(head)
}

// IsImage 检测是否为图片
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeImage)
}

func IsImageFile(name string) bool {
	return slices.Contains(AllowedImageExtensions, strings.ToLower(filepath.Ext(name)))
}

// IsImportFile 只接受 .csv 和 .zip
func IsImportFile(name string) bool {
	return slices.Contains(AllowedImportExtensions, strings.ToLower(filepath.Ext(name)))
}
