package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testStampedVersionConstant = "v2.0.0"

func stampVersion(testInstance *testing.T, version string) {
	testInstance.Helper()
	previousVersion := Version
	Version = version
	testInstance.Cleanup(func() {
		Version = previousVersion
	})
}

func TestResolveVersion(testInstance *testing.T) {
	testCases := []struct {
		name            string
		stampedVersion  string
		expectedVersion string
	}{
		{name: "stamped", stampedVersion: testStampedVersionConstant, expectedVersion: testStampedVersionConstant},
		{name: "unstamped", stampedVersion: defaultVersionConstant, expectedVersion: defaultVersionConstant},
		{name: "blank", stampedVersion: "  ", expectedVersion: defaultVersionConstant},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			stampVersion(testInstance, testCase.stampedVersion)
			require.Equal(testInstance, testCase.expectedVersion, resolveVersion(context.Background()))
		})
	}
}

func TestVersionFlagSkipsConfiguration(testInstance *testing.T) {
	application := NewApplication()
	application.versionResolver = func(context.Context) string {
		return testStampedVersionConstant
	}

	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(io.Discard)
	application.rootCommand.SetArgs([]string{"--version", "--log-level", "verbose"})

	require.NoError(testInstance, application.Execute())
	require.Equal(testInstance, "propaudit version: v2.0.0\n", output.String())
}

func TestSARIFReportCarriesResolvedVersion(testInstance *testing.T) {
	isolateConfigurationEnvironment(testInstance)
	stampVersion(testInstance, testStampedVersionConstant)

	projectRoot := filepath.Join(testInstance.TempDir(), "view")
	require.NoError(testInstance, os.MkdirAll(projectRoot, 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(projectRoot, "plugin.xml"), []byte(`<view label="%title" tooltip="%hint"/>`), 0o644))
	require.NoError(testInstance, os.WriteFile(filepath.Join(projectRoot, "plugin.properties"), []byte("title=Title\n"), 0o644))

	application := NewApplication()
	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(io.Discard)
	application.rootCommand.SetArgs([]string{"audit", "--log-level", "error", "--format", "sarif", "--fail-on", "none", projectRoot})

	require.NoError(testInstance, application.Execute())

	var report struct {
		Runs []struct {
			Tool struct {
				Driver struct {
					Name    string `json:"name"`
					Version string `json:"version"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID string `json:"ruleId"`
				Level  string `json:"level"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(testInstance, json.Unmarshal(output.Bytes(), &report))
	require.Len(testInstance, report.Runs, 1)
	require.Equal(testInstance, "propaudit", report.Runs[0].Tool.Driver.Name)
	require.Equal(testInstance, testStampedVersionConstant, report.Runs[0].Tool.Driver.Version)
	require.Len(testInstance, report.Runs[0].Results, 1)
	require.Equal(testInstance, "error", report.Runs[0].Results[0].Level)
}
