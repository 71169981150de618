package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestInit_PrettyLog tests logger initialization with pretty logging
func TestInit_PrettyLog(t *testing.T) {
	err := Init(true)
	require.NoError(t, err)

	logger := zap.L()
	assert.NotNil(t, logger)

	logger.Info("Test message")
}

// TestInit_JSONLog tests logger initialization with JSON logging
func TestInit_JSONLog(t *testing.T) {
	err := Init(false)
	require.NoError(t, err)

	logger := zap.L()
	assert.NotNil(t, logger)

	logger.Info("Test message")
}

// TestLogToolCall_Success tests logging a successful tool call
func TestLogToolCall_Success(t *testing.T) {
	obs, logs := observer.New(zap.InfoLevel)
	logger := zap.New(obs)
	zap.ReplaceGlobals(logger)

	LogToolCall("todoist", "create_task", 0.42, nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "completed successfully")

	fields := entries[0].ContextMap()
	assert.Equal(t, "todoist", fields["connector"])
	assert.Equal(t, "create_task", fields["tool"])
	assert.Equal(t, true, fields["success"])
}

// TestLogToolCall_Failure tests logging a failed tool call
func TestLogToolCall_Failure(t *testing.T) {
	obs, logs := observer.New(zap.InfoLevel)
	logger := zap.New(obs)
	zap.ReplaceGlobals(logger)

	LogToolCall("notion", "create_page", 1.5, errors.New("connection reset"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "failed")

	fields := entries[0].ContextMap()
	assert.Equal(t, "notion", fields["connector"])
	assert.Equal(t, false, fields["success"])
}

// TestLogDistribution tests the distribution summary log levels
func TestLogDistribution(t *testing.T) {
	obs, logs := observer.New(zap.InfoLevel)
	logger := zap.New(obs)
	zap.ReplaceGlobals(logger)

	LogDistribution("item-1", 3, 0)
	LogDistribution("item-2", 3, 2)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(2), entries[1].ContextMap()["failed"])
}
