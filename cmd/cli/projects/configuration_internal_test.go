package projects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigurationValuesUseRootKey(testInstance *testing.T) {
	values := DefaultConfigurationValues("tools")
	require.Equal(testInstance, []string{"."}, values["tools.audit.roots"])
	require.Equal(testInstance, "full", values["tools.audit.kind"])
	require.Equal(testInstance, "error", values["tools.audit.fail_on"])
	require.Equal(testInstance, 300*time.Millisecond, values["tools.watch.debounce"])
	require.Equal(testInstance, false, values["tools.watch.require_registration"])

	storeValues := DefaultStoreConfigurationValues("store")
	require.Equal(testInstance, "", storeValues["store.postgres_dsn"])
	require.Equal(testInstance, 256, storeValues["store.cache_size"])
	require.Equal(testInstance, 30*time.Second, storeValues["store.http_timeout"])
	require.Contains(testInstance, storeValues, "store.object_store.endpoint")
}

func TestConfigurationSanitizeAppliesDefaults(testInstance *testing.T) {
	auditConfiguration := AuditConfiguration{Roots: []string{" ", ""}, Kind: " AUTO ", Format: ""}.sanitize()
	require.Equal(testInstance, []string{"."}, auditConfiguration.Roots)
	require.Equal(testInstance, "auto", auditConfiguration.Kind)
	require.Equal(testInstance, "console", auditConfiguration.Format)
	require.Equal(testInstance, "error", auditConfiguration.FailOn)

	watchConfiguration := WatchConfiguration{Format: "SARIF"}.sanitize()
	require.Equal(testInstance, []string{"."}, watchConfiguration.Roots)
	require.Equal(testInstance, "sarif", watchConfiguration.Format)
	require.Equal(testInstance, 300*time.Millisecond, watchConfiguration.Debounce)
}

func TestDetermineRootsPrefersArguments(testInstance *testing.T) {
	require.Equal(testInstance, []string{"/srv/cli"}, determineRoots([]string{"/srv/cli"}, []string{"/srv/configured"}))
	require.Equal(testInstance, []string{"/srv/configured"}, determineRoots(nil, []string{"/srv/configured"}))
	require.Equal(testInstance, []string{"s3://bucket/plugin"}, determineRoots([]string{"s3://bucket/plugin"}, nil))
}
