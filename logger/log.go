package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log *zap.Logger

	// Audit 敌意客户端事件（伪造 echo、非法 JSON、未知路由等）单独走这个通道
	Audit *zap.Logger

	level   = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	auditMu sync.Mutex
)

func init() {
	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		CallerKey:    "caller",
		MessageKey:   "msg",
		LineEnding:   zapcore.DefaultLineEnding,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.CapitalColorLevelEncoder, // 彩色等级
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		level,
	)

	Log = zap.New(core, zap.AddCaller())
	Audit = newAudit(nil)
}

func auditEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "ts",
		LevelKey:    "level",
		NameKey:     "logger",
		MessageKey:  "event",
		LineEnding:  zapcore.DefaultLineEnding,
		EncodeTime:  zapcore.ISO8601TimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	})
}

func newAudit(sink io.Writer) *zap.Logger {
	ws := zapcore.AddSync(os.Stderr)
	if sink != nil {
		ws = zapcore.NewMultiWriteSyncer(ws, zapcore.AddSync(sink))
	}
	return zap.New(zapcore.NewCore(auditEncoder(), ws, zapcore.InfoLevel)).Named("audit")
}

// SetAuditSink 额外把审计日志写到 sink（例如 kafka），nil 表示只写 stderr
func SetAuditSink(sink io.Writer) {
	auditMu.Lock()
	defer auditMu.Unlock()
	Audit = newAudit(sink)
}

// SetLevel debug/info/warn/error，非法值保持不变
func SetLevel(l string) error {
	var lv zapcore.Level
	if err := lv.UnmarshalText([]byte(l)); err != nil {
		return err
	}
	level.SetLevel(lv)
	return nil
}

// 快捷方法
func Info(msg string, fields ...zap.Field) { Log.Info(msg, fields...) }
func Infof(format string, args ...interface{}) {
	Log.Info(fmt.Sprintf(format, args...))
}
func Warn(msg string, fields ...zap.Field) { Log.Warn(msg, fields...) }
func Warnf(format string, args ...interface{}) {
	Log.Warn(fmt.Sprintf(format, args...))
}
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }

func Errorf(format string, args ...interface{}) {
	Log.Error(fmt.Sprintf(format, args...))
}

func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }

// Hostile 记录一次可疑的客户端行为
func Hostile(event string, fields ...zap.Field) {
	auditMu.Lock()
	a := Audit
	auditMu.Unlock()
	a.Warn(event, fields...)
}
