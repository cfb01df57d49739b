package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig 日志配置接口，由 config.LogConfig 实现
type LogConfig interface {
	GetLevel() string
	GetOutput() string
	GetFile() string
}

// Logger 格式化日志器，包级函数经由默认实例输出
type Logger struct {
	zapLogger *zap.Logger
}

// 包级函数与方法各占一层调用栈
const callerSkip = 2

var defaultLogger = newLogger(zapcore.InfoLevel, zapcore.Lock(os.Stdout))

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	cfg.CallerKey = "caller"
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.LevelKey = "level"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.MessageKey = "message"
	return cfg
}

func newLogger(level zapcore.Level, sink zapcore.WriteSyncer) *Logger {
	encoder := zapcore.NewJSONEncoder(encoderConfig())
	if level == zapcore.DebugLevel {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	return &Logger{zapLogger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(callerSkip))}
}

// NewWithWriter 创建输出到指定 writer 的日志器
func NewWithWriter(level zapcore.Level, w zapcore.WriteSyncer) *Logger {
	return newLogger(level, w)
}

// rotatingFile 按大小轮转的日志文件，保留 3 份共 28 天
func rotatingFile(filename string) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})
}

// Init 根据配置替换默认日志器，output 支持 stdout、stderr 和 file
func Init(cfg LogConfig) {
	level := ParseLevel(cfg.GetLevel())

	var sink zapcore.WriteSyncer
	switch strings.ToLower(cfg.GetOutput()) {
	case "file":
		sink = rotatingFile(cfg.GetFile())
	case "stderr":
		sink = zapcore.Lock(os.Stderr)
	default:
		sink = zapcore.Lock(os.Stdout)
	}

	defaultLogger.Sync()
	defaultLogger = newLogger(level, sink)
}

// ParseLevel 解析日志级别，无法识别时为 info
func ParseLevel(level string) zapcore.Level {
	if strings.EqualFold(level, "warning") {
		return zapcore.WarnLevel
	}
	parsed, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return parsed
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.zapLogger.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.zapLogger.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.zapLogger.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.zapLogger.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.zapLogger.Fatal(fmt.Sprintf(format, args...))
}

// Sync 刷新缓冲
func (l *Logger) Sync() {
	_ = l.zapLogger.Sync()
}

// With 返回附带结构化字段的子日志器，直接调用其方法，不经包级函数
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zapLogger: l.zapLogger.With(fields...).WithOptions(zap.AddCallerSkip(-1))}
}

func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }
func Info(format string, args ...interface{})  { defaultLogger.Info(format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.Warn(format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }
func Fatal(format string, args ...interface{}) { defaultLogger.Fatal(format, args...) }
func Sync()                                    { defaultLogger.Sync() }

// With 默认日志器的子日志器
func With(fields ...zap.Field) *Logger {
	return defaultLogger.With(fields...)
}
