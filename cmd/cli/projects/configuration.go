package projects

import (
	"strings"
	"time"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/findings"
	"github.com/temirov/propaudit/internal/sources"
	"github.com/temirov/propaudit/internal/watch"
)

const (
	defaultProjectRootConstant           = "."
	failOnNoneConstant                   = "none"
	auditConfigurationKeyConstant        = "audit"
	watchConfigurationKeyConstant        = "watch"
	configurationRootsKeyConstant        = "roots"
	configurationKindKeyConstant         = "kind"
	configurationFormatKeyConstant       = "format"
	configurationFailOnKeyConstant       = "fail_on"
	configurationMarkersKeyConstant      = "markers"
	configurationDebounceKeyConstant     = "debounce"
	configurationRequireRegistrationKey  = "require_registration"
	storePostgresDSNKeyConstant          = "postgres_dsn"
	storeCacheSizeKeyConstant            = "cache_size"
	storeHTTPTimeoutKeyConstant          = "http_timeout"
	storeObjectStoreEndpointKeyConstant  = "object_store.endpoint"
	storeObjectStoreRegionKeyConstant    = "object_store.region"
	storeObjectStoreAccessKeyKeyConstant = "object_store.access_key"
	storeObjectStoreSecretKeyKeyConstant = "object_store.secret_key"
	storeObjectStoreUseSSLKeyConstant    = "object_store.use_ssl"
	defaultHTTPTimeoutConstant           = 30 * time.Second
	configurationKeySeparatorConstant    = "."
)

var (
	buildKindChoices = []string{"full", "incremental", "auto"}
	formatChoices    = []string{string(findings.FormatConsole), string(findings.FormatCSV), string(findings.FormatJSON), string(findings.FormatSARIF)}
	failOnChoices    = []string{string(audit.SeverityError), string(audit.SeverityWarning), failOnNoneConstant}
)

// ToolsConfiguration captures project command configuration sections.
type ToolsConfiguration struct {
	Audit AuditConfiguration `mapstructure:"audit"`
	Watch WatchConfiguration `mapstructure:"watch"`
}

// AuditConfiguration describes configuration values shared by audit, clean, and the registration commands.
type AuditConfiguration struct {
	Roots   []string `mapstructure:"roots"`
	Kind    string   `mapstructure:"kind"`
	Format  string   `mapstructure:"format"`
	FailOn  string   `mapstructure:"fail_on"`
	Markers bool     `mapstructure:"markers"`
}

// WatchConfiguration describes configuration values for the watch command.
type WatchConfiguration struct {
	Roots               []string `mapstructure:"roots"`
	Format              string   `mapstructure:"format"`
	Markers             bool     `mapstructure:"markers"`
	watch.Configuration `mapstructure:",squash"`
}

// StoreConfiguration selects persistence and remote file sources.
type StoreConfiguration struct {
	PostgresDSN           string `mapstructure:"postgres_dsn"`
	sources.Configuration `mapstructure:",squash"`
}

// DefaultToolsConfiguration returns baseline configuration values for project commands.
func DefaultToolsConfiguration() ToolsConfiguration {
	return ToolsConfiguration{
		Audit: AuditConfiguration{
			Roots:   []string{defaultProjectRootConstant},
			Kind:    audit.BuildKindFull.String(),
			Format:  string(findings.FormatConsole),
			FailOn:  string(audit.SeverityError),
			Markers: false,
		},
		Watch: WatchConfiguration{
			Roots:   []string{defaultProjectRootConstant},
			Format:  string(findings.FormatConsole),
			Markers: true,
			Configuration: watch.Configuration{
				Debounce:            watch.DefaultDebounce,
				RequireRegistration: false,
			},
		},
	}
}

// DefaultStoreConfiguration returns baseline persistence and source settings.
func DefaultStoreConfiguration() StoreConfiguration {
	return StoreConfiguration{
		Configuration: sources.Configuration{
			ObjectStore: sources.ObjectStoreConfiguration{UseSSL: true},
			CacheSize:   sources.DefaultCacheSize,
			HTTPTimeout: defaultHTTPTimeoutConstant,
		},
	}
}

// DefaultConfigurationValues produces Viper defaults for project commands under rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultToolsConfiguration()
	auditKey := rootKey + configurationKeySeparatorConstant + auditConfigurationKeyConstant + configurationKeySeparatorConstant
	watchKey := rootKey + configurationKeySeparatorConstant + watchConfigurationKeyConstant + configurationKeySeparatorConstant
	return map[string]any{
		auditKey + configurationRootsKeyConstant:       defaults.Audit.Roots,
		auditKey + configurationKindKeyConstant:        defaults.Audit.Kind,
		auditKey + configurationFormatKeyConstant:      defaults.Audit.Format,
		auditKey + configurationFailOnKeyConstant:      defaults.Audit.FailOn,
		auditKey + configurationMarkersKeyConstant:     defaults.Audit.Markers,
		watchKey + configurationRootsKeyConstant:       defaults.Watch.Roots,
		watchKey + configurationFormatKeyConstant:      defaults.Watch.Format,
		watchKey + configurationMarkersKeyConstant:     defaults.Watch.Markers,
		watchKey + configurationDebounceKeyConstant:    defaults.Watch.Debounce,
		watchKey + configurationRequireRegistrationKey: defaults.Watch.RequireRegistration,
	}
}

// DefaultStoreConfigurationValues produces Viper defaults for the store section under rootKey.
func DefaultStoreConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultStoreConfiguration()
	storeKey := rootKey + configurationKeySeparatorConstant
	return map[string]any{
		storeKey + storePostgresDSNKeyConstant:          defaults.PostgresDSN,
		storeKey + storeCacheSizeKeyConstant:            defaults.CacheSize,
		storeKey + storeHTTPTimeoutKeyConstant:          defaults.HTTPTimeout,
		storeKey + storeObjectStoreEndpointKeyConstant:  defaults.ObjectStore.Endpoint,
		storeKey + storeObjectStoreRegionKeyConstant:    defaults.ObjectStore.Region,
		storeKey + storeObjectStoreAccessKeyKeyConstant: defaults.ObjectStore.AccessKey,
		storeKey + storeObjectStoreSecretKeyKeyConstant: defaults.ObjectStore.SecretKey,
		storeKey + storeObjectStoreUseSSLKeyConstant:    defaults.ObjectStore.UseSSL,
	}
}

// sanitize normalizes audit configuration values.
func (configuration AuditConfiguration) sanitize() AuditConfiguration {
	defaults := DefaultToolsConfiguration().Audit
	sanitized := configuration
	sanitized.Roots = trimRoots(configuration.Roots)
	if len(sanitized.Roots) == 0 {
		sanitized.Roots = append([]string{}, defaults.Roots...)
	}
	sanitized.Kind = lowerOrDefault(configuration.Kind, defaults.Kind)
	sanitized.Format = lowerOrDefault(configuration.Format, defaults.Format)
	sanitized.FailOn = lowerOrDefault(configuration.FailOn, defaults.FailOn)
	return sanitized
}

// sanitize normalizes watch configuration values.
func (configuration WatchConfiguration) sanitize() WatchConfiguration {
	defaults := DefaultToolsConfiguration().Watch
	sanitized := configuration
	sanitized.Roots = trimRoots(configuration.Roots)
	if len(sanitized.Roots) == 0 {
		sanitized.Roots = append([]string{}, defaults.Roots...)
	}
	sanitized.Format = lowerOrDefault(configuration.Format, defaults.Format)
	if sanitized.Debounce <= 0 {
		sanitized.Debounce = defaults.Debounce
	}
	return sanitized
}

func lowerOrDefault(value string, defaultValue string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if len(trimmed) == 0 {
		return defaultValue
	}
	return trimmed
}
