// Package logging provides categorized logging for saturn.
// Every subsystem logs through a category logger so individual subsystems
// can be silenced from configuration. Logging is a no-op until Initialize
// is called.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup, config
	CategoryIndex       Category = "index"       // Expression index, occurrence tracking
	CategoryProperties  Category = "properties"  // Property hierarchy closure
	CategorySaturation  Category = "saturation"  // Scheduler and rule engine
	CategoryIncremental Category = "incremental" // Delta maintenance
	CategoryTaxonomy    Category = "taxonomy"    // Taxonomy construction
	CategoryStore       Category = "store"       // Snapshot persistence
	CategoryWatch       Category = "watch"       // Ontology file watcher
	CategoryCLI         Category = "cli"         // Command line
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string
	Format     string // "console" or "json"
	DebugMode  bool
	Categories map[string]bool
	OutputPath string // empty means stderr
}

// Logger is a category-scoped sugared zap logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	base      *zap.Logger
	opts      Options
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	configMu  sync.RWMutex
)

// Initialize builds the zap backend from opts. It may be called again to
// reconfigure; previously handed out loggers keep their old backend.
func Initialize(o Options) error {
	zc := zap.NewProductionConfig()
	if o.Format == "console" || o.Format == "" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	level, err := zapcore.ParseLevel(levelOrDefault(o.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}
	if o.DebugMode {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if o.OutputPath != "" {
		zc.OutputPaths = []string{o.OutputPath}
	}
	zc.DisableStacktrace = true

	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	Attach(logger, o)
	return nil
}

// Attach installs an already-built zap logger, e.g. the one owned by the CLI
// or an observer core in tests.
func Attach(logger *zap.Logger, o Options) {
	configMu.Lock()
	base = logger
	opts = o
	configMu.Unlock()

	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
}

// Zap returns the backend for callers that log structured fields, or a
// no-op logger before Initialize.
func Zap() *zap.Logger {
	configMu.RLock()
	defer configMu.RUnlock()
	if base == nil {
		return zap.NewNop()
	}
	return base
}

// Sync flushes buffered entries. Call at shutdown.
func Sync() {
	configMu.RLock()
	b := base
	configMu.RUnlock()
	if b != nil {
		_ = b.Sync()
	}
}

// Reset drops the backend; every logger becomes a no-op again.
func Reset() {
	Sync()
	Attach(nil, Options{})
}

func levelOrDefault(level string) string {
	switch level {
	case "":
		return "info"
	case "warning":
		return "warn"
	}
	return level
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if base == nil {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if logging is not initialized or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	configMu.RLock()
	b := base
	configMu.RUnlock()
	if b == nil {
		return &Logger{category: category}
	}
	l := &Logger{
		category: category,
		sugar:    b.With(zap.String("category", string(category))).Sugar(),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// With returns a logger carrying extra structured fields, e.g. a run id.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Enabled reports whether the logger writes anything at all.
func (l *Logger) Enabled() bool {
	return l.sugar != nil
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootWarn logs a warning to the boot category
func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warn(format, args...)
}

// Index logs to the index category
func Index(format string, args ...interface{}) {
	Get(CategoryIndex).Info(format, args...)
}

// IndexDebug logs debug to the index category
func IndexDebug(format string, args ...interface{}) {
	Get(CategoryIndex).Debug(format, args...)
}

// IndexWarn logs a warning to the index category
func IndexWarn(format string, args ...interface{}) {
	Get(CategoryIndex).Warn(format, args...)
}

// Properties logs to the properties category
func Properties(format string, args ...interface{}) {
	Get(CategoryProperties).Info(format, args...)
}

// PropertiesDebug logs debug to the properties category
func PropertiesDebug(format string, args ...interface{}) {
	Get(CategoryProperties).Debug(format, args...)
}

// Saturation logs to the saturation category
func Saturation(format string, args ...interface{}) {
	Get(CategorySaturation).Info(format, args...)
}

// SaturationDebug logs debug to the saturation category
func SaturationDebug(format string, args ...interface{}) {
	Get(CategorySaturation).Debug(format, args...)
}

// SaturationError logs an error to the saturation category
func SaturationError(format string, args ...interface{}) {
	Get(CategorySaturation).Error(format, args...)
}

// Incremental logs to the incremental category
func Incremental(format string, args ...interface{}) {
	Get(CategoryIncremental).Info(format, args...)
}

// IncrementalDebug logs debug to the incremental category
func IncrementalDebug(format string, args ...interface{}) {
	Get(CategoryIncremental).Debug(format, args...)
}

// Taxonomy logs to the taxonomy category
func Taxonomy(format string, args ...interface{}) {
	Get(CategoryTaxonomy).Info(format, args...)
}

// TaxonomyDebug logs debug to the taxonomy category
func TaxonomyDebug(format string, args ...interface{}) {
	Get(CategoryTaxonomy).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// Watch logs to the watch category
func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

// WatchError logs an error to the watch category
func WatchError(format string, args ...interface{}) {
	Get(CategoryWatch).Error(format, args...)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
