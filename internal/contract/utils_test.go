package contract

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/moze/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetColorTier(t *testing.T) {
	tests := []struct {
		name string
		tier schema.Tier
	}{
		{"urgent", schema.UrgentTier},
		{"watch", schema.WatchTier},
		{"stable", schema.StableTier},
		{"unknown", "someday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Should contain the plain label
			assert.Contains(t, GetColorTier(tt.tier), string(tt.tier))
		})
	}
}

func TestGetColorGrade(t *testing.T) {
	tiers := schema.DefaultTierTable()
	for _, g := range schema.AllGrades {
		assert.Contains(t, GetColorGrade(g, tiers), string(g))
	}
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "test_output.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		// Verify file was created
		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestGetDBFilePath(t *testing.T) {
	path := GetDBFilePath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, ".moze.db")

	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, homeDir), "path %s should start with home dir %s", path, homeDir)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "Facility...", TruncateText("Facility condition", 11))
	assert.Equal(t, "abcdef", TruncateText("abcdef", 3), "too narrow to truncate")
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "0.87", FormatScore(0.86666, 2))
	assert.Equal(t, "0.8667", FormatScore(0.86666, 4))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "json")
	logger.Debug("hidden")
	logger.Info("form created", "form_id", "f1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"form_id":"f1"`)

	buf.Reset()
	NewLogger(&buf, slog.LevelDebug, "text").Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestResolveLogger(t *testing.T) {
	assert.Equal(t, slog.Default(), ResolveLogger(nil))
	custom := slog.New(slog.NewTextHandler(os.Stderr, nil))
	assert.Same(t, custom, ResolveLogger(custom))
}
