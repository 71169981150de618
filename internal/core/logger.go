// Package core implements functionality shared across all relay components.
package core

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init initializes zap's global logger
// After calling this, we use zap.L() directly.
func Init(pretty bool) error {
	var config zap.Config

	if pretty {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	zap.ReplaceGlobals(logger)
	return nil
}

// LogToolCall logs one connector tool invocation using zap's global logger
func LogToolCall(connectorID, tool string, duration float64, err error) {
	fields := []zap.Field{
		zap.String("connector", connectorID),
		zap.String("tool", tool),
		zap.Float64("duration_seconds", duration),
		zap.Bool("success", err == nil),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		zap.L().Error("Tool call failed", fields...)
		return
	}

	zap.L().Info("Tool call completed successfully", fields...)
}

// LogDistribution logs the result of routing one item using zap's global logger
func LogDistribution(itemID string, attempted, failed int) {
	fields := []zap.Field{
		zap.String("item", itemID),
		zap.Int("attempted", attempted),
		zap.Int("failed", failed),
	}

	if failed > 0 {
		zap.L().Warn("Distribution completed with failures", fields...)
		return
	}

	zap.L().Info("Distribution completed", fields...)
}
