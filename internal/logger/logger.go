package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names for structured logging across neurotrace.
const (
	FieldComponent  = "component"
	FieldPatientID  = "patient_id"
	FieldReportID   = "report_id"
	FieldFile       = "file"
	FieldStage      = "stage"
	FieldRuleID     = "rule_id"
	FieldCount      = "count"
	FieldFacts      = "facts"
	FieldAlerts     = "alerts"
	FieldConflicts  = "conflicts"
	FieldScore      = "score"
	FieldSafe       = "safe"
	FieldWorkers    = "workers"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
)

// Logger is the process-wide base logger. It is a no-op until Initialize is called.
var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the base logger. Logs always go to stderr so that
// stdout stays clean for reports.
func Initialize(jsonOutput bool, verbose bool) error {
	level := zap.WarnLevel
	if verbose {
		level = zap.DebugLevel
	}

	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		zl, err := cfg.Build()
		if err != nil {
			return err
		}
		Logger = zl.Sugar()
		return nil
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.EncodeCaller = nil
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stderr),
		level,
	)
	Logger = zap.New(core).Sugar()
	return nil
}

// ComponentLogger returns a named logger for a specific component.
//
// Example:
//
//	type Engine struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewEngine() *Engine {
//	    return &Engine{logger: logger.ComponentLogger("pipeline")}
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// Sync flushes buffered log entries. Errors from syncing stderr are ignored.
func Sync() {
	_ = Logger.Sync()
}
