package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cfaquiz_backend/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = time.Second

// ErrRetryLater Handler 返回包装了它的错误时文件保留在收件箱，稍后重试
var ErrRetryLater = errors.New("inbox: retry later")

// Handler 处理一个待导入文件，返回后文件即被删除
type Handler func(ctx context.Context, path string) error

// Watcher 监听导入收件箱目录。
// 文件写入停止 Debounce 时长后统一处理，处理完（无论成败）删除；
// 返回 ErrRetryLater 的文件保留，Debounce 后再扫描
type Watcher struct {
	Dir        string
	Debounce   time.Duration
	Extensions []string
	Handle     Handler
}

func New(dir string, debounce time.Duration, extensions []string, handle Handler) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{Dir: dir, Debounce: debounce, Extensions: extensions, Handle: handle}
}

func (w *Watcher) accepts(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if len(w.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range w.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Pending 收件箱中待处理的文件，按文件名排序
func (w *Watcher) Pending() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && w.accepts(e.Name()) {
			files = append(files, filepath.Join(w.Dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ScanOnce 处理当前全部待处理文件，返回处理成功的数量
func (w *Watcher) ScanOnce(ctx context.Context) int {
	ok, _ := w.scan(ctx)
	return ok
}

// scan 返回处理成功和推迟处理的文件数
func (w *Watcher) scan(ctx context.Context) (ok, deferred int) {
	files, err := w.Pending()
	if err != nil {
		logger.Log.Error("Failed to list import inbox", zap.String("dir", w.Dir), zap.Error(err))
		return 0, 0
	}

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		err := w.Handle(ctx, path)
		switch {
		case errors.Is(err, ErrRetryLater):
			logger.Log.Info("Inbox file deferred", zap.String("file", filepath.Base(path)), zap.Error(err))
			deferred++
			continue
		case err != nil:
			logger.Log.Warn("Inbox file import failed", zap.String("file", filepath.Base(path)), zap.Error(err))
		default:
			ok++
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Log.Error("Failed to remove processed inbox file", zap.String("file", path), zap.Error(err))
		}
	}
	return ok, deferred
}

// Run 先处理已有文件，然后监听目录直到 ctx 结束
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	absDir, err := filepath.Abs(w.Dir)
	if err != nil {
		return err
	}
	if err := watcher.Add(absDir); err != nil {
		return err
	}
	logger.Log.Info("Watching import inbox", zap.String("dir", absDir))

	timer := time.NewTimer(0)
	<-timer.C

	if _, deferred := w.scan(ctx); deferred > 0 {
		timer.Reset(w.Debounce)
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.accepts(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				// 防抖
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.Debounce)
			}
		case <-timer.C:
			if _, deferred := w.scan(ctx); deferred > 0 {
				timer.Reset(w.Debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Error("Import inbox watcher error", zap.Error(err))
		}
	}
}
