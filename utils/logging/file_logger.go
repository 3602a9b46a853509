package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogDir      = "./logs"
	defaultLogFilename = "arcdna.log"
)

// RotationOptions controls the rotating file sink. Zero values fall back to
// 50 MB files, 5 backups kept for 14 days, gzip compressed.
type RotationOptions struct {
	Dir        string
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

func (o RotationOptions) withDefaults() RotationOptions {
	cpy := o
	if cpy.Dir == "" {
		cpy.Dir = defaultLogDir
	}
	if cpy.Filename == "" {
		cpy.Filename = defaultLogFilename
	}
	if cpy.MaxSize == 0 {
		cpy.MaxSize = 50
		cpy.Compress = true
	}
	if cpy.MaxBackups == 0 {
		cpy.MaxBackups = 5
	}
	if cpy.MaxAge == 0 {
		cpy.MaxAge = 14
	}
	return cpy
}

func NewRotatingFileLogger(
	debug bool,
	opts RotationOptions,
) (
	*zap.Logger,
	io.Closer,
	error,
) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, err
	}

	rot := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, opts.Filename),
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAge,
		Compress:   opts.Compress,
	}

	encCfg := zap.NewProductionEncoderConfig()
	level := zap.InfoLevel
	if debug {
		encCfg = zap.NewDevelopmentEncoderConfig()
		level = zap.DebugLevel
	}
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	enc := zapcore.NewConsoleEncoder(encCfg)

	core := zapcore.NewCore(enc, zapcore.AddSync(rot), level)
	logger := zap.New(core, zap.AddCaller(), zap.Fields(
		zap.Int("pid", os.Getpid()),
	))

	return logger, rot, nil
}
