package logger

import (
	"os"
	"strings"

	"cfaquiz_backend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 在 InitLogger 之前是 Nop，单元测试中可直接使用
var Log = zap.NewNop()

// InitLogger 控制台输出文本，log.file 非空时同时写滚动的 JSON 日志
func InitLogger(cfg *config.Config) {
	level := Level(cfg)
	encoding := encoderConfig()

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoding), zapcore.Lock(os.Stdout), level),
	}
	if cfg.Log.File != "" {
		rolling := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoding), zapcore.AddSync(rolling), level))
	}

	Log = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
		zap.Fields(zap.String("service", "cfaquiz")))
}

// Level log.level 优先；未配置时 debug 模式输出 Debug，其余 Info
func Level(cfg *config.Config) zapcore.Level {
	if raw := strings.TrimSpace(cfg.Log.Level); raw != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(strings.ToLower(raw))); err == nil {
			return lvl
		}
	}
	if cfg.Server.Mode == "debug" {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	return enc
}

// Sync 刷新缓冲，进程退出前调用
func Sync() {
	_ = Log.Sync()
}
