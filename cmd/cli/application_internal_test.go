package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testConfigurationContentConstant  = "common:\n  log_level: debug\n  log_format: console\ntools:\n  audit:\n    fail_on: warning\n    roots:\n      - /srv/plugins\n  watch:\n    debounce: 2s\nstore:\n  cache_size: 16\n"
)

func isolateConfigurationEnvironment(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(t, workingDirectoryError)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(workingDirectory))
	})
}

func TestInitializeConfigurationAppliesEmbeddedDefaults(t *testing.T) {
	isolateConfigurationEnvironment(t)

	application := NewApplication()
	require.NoError(t, application.initializeConfiguration(application.rootCommand))

	configuration := application.configuration
	require.Equal(t, "info", configuration.Common.LogLevel)
	require.Equal(t, "structured", configuration.Common.LogFormat)
	require.Equal(t, []string{"."}, configuration.Tools.Audit.Roots)
	require.Equal(t, "full", configuration.Tools.Audit.Kind)
	require.Equal(t, "error", configuration.Tools.Audit.FailOn)
	require.True(t, configuration.Tools.Watch.Markers)
	require.Equal(t, 300*time.Millisecond, configuration.Tools.Watch.Debounce)
	require.Equal(t, 256, configuration.Store.CacheSize)
	require.Equal(t, 30*time.Second, configuration.Store.HTTPTimeout)
	require.True(t, configuration.Store.ObjectStore.UseSSL)
	require.Empty(t, configuration.Store.PostgresDSN)
}

func TestInitializeConfigurationHonorsFileEnvironmentAndFlags(t *testing.T) {
	isolateConfigurationEnvironment(t)
	configurationPath := filepath.Join(t.TempDir(), testConfigurationFileNameConstant)
	require.NoError(t, os.WriteFile(configurationPath, []byte(testConfigurationContentConstant), 0o600))
	t.Setenv("PROPAUDIT_STORE_POSTGRES_DSN", "postgres://auditor@localhost/propaudit")

	application := NewApplication()
	rootCommand := application.rootCommand
	require.NoError(t, rootCommand.PersistentFlags().Set(configFileFlagNameConstant, configurationPath))
	require.NoError(t, rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "warn"))

	require.NoError(t, application.initializeConfiguration(rootCommand))

	configuration := application.configuration
	require.Equal(t, "warn", configuration.Common.LogLevel)
	require.Equal(t, "console", configuration.Common.LogFormat)
	require.Equal(t, "warning", configuration.Tools.Audit.FailOn)
	require.Equal(t, []string{"/srv/plugins"}, configuration.Tools.Audit.Roots)
	require.Equal(t, 2*time.Second, configuration.Tools.Watch.Debounce)
	require.Equal(t, 16, configuration.Store.CacheSize)
	require.Equal(t, "postgres://auditor@localhost/propaudit", configuration.Store.PostgresDSN)
	require.Equal(t, configurationPath, application.configurationMetadata.ConfigFileUsed)
}

func TestInitializeConfigurationRejectsUnknownLogLevel(t *testing.T) {
	isolateConfigurationEnvironment(t)

	application := NewApplication()
	require.NoError(t, application.rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "verbose"))
	require.Error(t, application.initializeConfiguration(application.rootCommand))
}

func TestApplicationRegistersProjectCommands(t *testing.T) {
	application := NewApplication()

	registered := make(map[string]bool)
	for _, command := range application.rootCommand.Commands() {
		registered[command.Name()] = true
	}
	for _, commandName := range []string{"audit", "clean", "watch", "register", "unregister", "status"} {
		require.True(t, registered[commandName], commandName)
	}
}

func TestApplicationAuditsThroughRootCommand(t *testing.T) {
	isolateConfigurationEnvironment(t)
	projectRoot := filepath.Join(t.TempDir(), "core")
	require.NoError(t, os.MkdirAll(projectRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projectRoot, "plugin.xml"), []byte(`<view label="%label"/>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(projectRoot, "plugin.properties"), []byte("label=Label\nobsolete=Old\n"), 0o644))

	application := NewApplication()
	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(io.Discard)
	application.rootCommand.SetArgs([]string{"audit", "--log-level", "error", "--format", "csv", projectRoot})
	application.rootCommand.SetContext(context.Background())

	require.NoError(t, application.Execute())
	require.Contains(t, output.String(), "file,line,column,severity,violation,key,message\n")
	require.Contains(t, output.String(), "warning,unused-key,obsolete,Unused property key: obsolete")
}
