package nativelog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLogDir          = "MEDVAULT_LOG_DIR"
	defaultLogFilePerm = 0o644
	defaultLogDirPerm  = 0o755
)

// ResolveDir picks the log directory: MEDVAULT_LOG_DIR, then configured, then ./logs.
func ResolveDir(configured string) string {
	if dir := strings.TrimSpace(os.Getenv(EnvLogDir)); dir != "" {
		return dir
	}
	if dir := strings.TrimSpace(configured); dir != "" {
		return dir
	}
	return filepath.Join(".", "logs")
}

// DailyFilename returns the log filename for the given day.
func DailyFilename(now time.Time) string {
	return "medvault_" + now.Format("2006-01-02") + ".log"
}

// Writer appends to a per-day log file, reopening when the date changes.
type Writer struct {
	mu   sync.Mutex
	dir  string
	day  string
	file *os.File
	now  func() time.Time
}

// NewWriter creates a daily file writer under dir.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, defaultLogDirPerm); err != nil {
		return nil, err
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if day := now.Format("2006-01-02"); w.file == nil || day != w.day {
		if w.file != nil {
			_ = w.file.Close()
		}
		file, err := os.OpenFile(filepath.Join(w.dir, DailyFilename(now)), os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultLogFilePerm)
		if err != nil {
			w.file = nil
			return 0, err
		}
		w.file = file
		w.day = day
	}
	return w.file.Write(p)
}

func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// ParseLevel maps a config string to a zap level, defaulting to info.
func ParseLevel(raw string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// NewZapLogger creates a zap logger writing to stdout and the daily log file.
func NewZapLogger(dir, level string) (*zap.Logger, error) {
	writer, err := NewWriter(ResolveDir(dir))
	if err != nil {
		return nil, err
	}

	atomic := zap.NewAtomicLevelAt(ParseLevel(level))
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")

	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), atomic),
		zapcore.NewCore(encoder, zapcore.AddSync(writer), atomic),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	_ = zap.RedirectStdLog(logger)
	return logger, nil
}
