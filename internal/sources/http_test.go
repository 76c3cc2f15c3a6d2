package sources_test

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/findings"
	"github.com/temirov/propaudit/internal/keyscan"
	"github.com/temirov/propaudit/internal/sources"
)

func newPluginServer(testInstance *testing.T) *httptest.Server {
	testInstance.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/project/plugin.properties", func(responseWriter http.ResponseWriter, request *http.Request) {
		_, _ = responseWriter.Write([]byte{0xEF, 0xBB, 0xBF, 'k', '=', 'v'})
	})
	mux.HandleFunc("/broken/plugin.properties", func(responseWriter http.ResponseWriter, request *http.Request) {
		http.Error(responseWriter, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/gone/plugin.properties", func(responseWriter http.ResponseWriter, request *http.Request) {
		http.Error(responseWriter, "gone", http.StatusGone)
	})
	mux.HandleFunc("/oversized/plugin.properties", func(responseWriter http.ResponseWriter, request *http.Request) {
		_, _ = responseWriter.Write([]byte(strings.Repeat("k", 16<<20+1)))
	})
	mux.HandleFunc("/headless/", func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.Method == http.MethodHead {
			http.Error(responseWriter, "head not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch request.URL.Path {
		case "/headless/plugin.xml":
			_, _ = responseWriter.Write([]byte(`<view label="%greeting"/>`))
		case "/headless/plugin.properties":
			_, _ = responseWriter.Write([]byte("greeting=Hello\nextra=Unused\n"))
		default:
			http.NotFound(responseWriter, request)
		}
	})
	server := httptest.NewServer(mux)
	testInstance.Cleanup(server.Close)
	return server
}

func TestHTTPSourceReadsRemoteFiles(testInstance *testing.T) {
	server := newPluginServer(testInstance)
	source := sources.NewHTTPSource(server.Client(), nil)

	testCases := []struct {
		name            string
		root            string
		expectedExists  bool
		expectedContent string
		expectNotExist  bool
		expectError     bool
	}{
		{name: "present", root: server.URL + "/project", expectedExists: true, expectedContent: "k=v"},
		{name: "present_trailing_slash", root: server.URL + "/project/", expectedExists: true, expectedContent: "k=v"},
		{name: "not_found", root: server.URL + "/missing", expectNotExist: true, expectError: true},
		{name: "server_error", root: server.URL + "/broken", expectedExists: true, expectError: true},
		{name: "gone", root: server.URL + "/gone", expectNotExist: true, expectError: true},
		{name: "head_rejected", root: server.URL + "/headless", expectedExists: true, expectedContent: "greeting=Hello\nextra=Unused\n"},
		{name: "head_rejected_missing", root: server.URL + "/headless/nested", expectNotExist: true, expectError: true},
		{name: "oversized", root: server.URL + "/oversized", expectedExists: true, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			reference := keyscan.FileReference{Root: testCase.root, Name: testResourceNameConstant}
			require.Equal(testInstance, testCase.expectedExists, source.Exists(context.Background(), reference))

			content, readError := source.ReadText(context.Background(), reference)
			if !testCase.expectError {
				require.NoError(testInstance, readError)
				require.Equal(testInstance, testCase.expectedContent, content)
				return
			}
			require.Error(testInstance, readError)
			require.Equal(testInstance, testCase.expectNotExist, errors.Is(readError, fs.ErrNotExist))
		})
	}
}

func TestHTTPSourceServerFailuresReachTheEngine(testInstance *testing.T) {
	server := newPluginServer(testInstance)
	source := sources.NewHTTPSource(server.Client(), nil)

	testCases := []struct {
		name            string
		root            string
		expectedMissing int
		expectedUnused  int
	}{
		{name: "head_rejected", root: server.URL + "/headless", expectedUnused: 1},
		{name: "server_error", root: server.URL + "/broken"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			engine, engineError := audit.NewEngine(source, findings.NewMemorySink(), nil)
			require.NoError(testInstance, engineError)

			report, auditError := engine.Audit(context.Background(), audit.Project{Name: testCase.name, Root: testCase.root})
			require.NoError(testInstance, auditError)
			require.Equal(testInstance, audit.StatusCompleted, report.Status)
			require.Equal(testInstance, testCase.expectedMissing, report.MissingCount)
			require.Equal(testInstance, testCase.expectedUnused, report.UnusedCount)
		})
	}
}

func TestHTTPSourceLogsUnexpectedProbeStatus(testInstance *testing.T) {
	server := newPluginServer(testInstance)
	observedCore, observedLogs := observer.New(zap.WarnLevel)
	source := sources.NewHTTPSource(server.Client(), zap.New(observedCore))

	require.True(testInstance, source.Exists(context.Background(), keyscan.FileReference{Root: server.URL + "/broken", Name: testResourceNameConstant}))
	require.Equal(testInstance, 1, observedLogs.Len())
}
