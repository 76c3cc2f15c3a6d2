package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/filesystem"
	"github.com/temirov/propaudit/internal/keyscan"
)

const (
	schemeSeparatorConstant             = "://"
	httpSchemeConstant                  = "http"
	httpsSchemeConstant                 = "https"
	sourceNotConfiguredMessageConstant  = "no file source configured for scheme"
	sourceNotConfiguredTemplateConstant = "%w %q"
	sourceUnavailableMessageConstant    = "file source unavailable"
	sourceSelectedMessageConstant       = "remote file source selected"
	logFieldSchemeConstant              = "scheme"
	logFieldReferenceConstant           = "reference"
)

// ErrSourceNotConfigured indicates a project root uses a scheme with no configured source.
var ErrSourceNotConfigured = errors.New(sourceNotConfiguredMessageConstant)

// Configuration selects and tunes the available file sources.
type Configuration struct {
	ObjectStore ObjectStoreConfiguration `mapstructure:"object_store"`
	CacheSize   int                      `mapstructure:"cache_size"`
	HTTPTimeout time.Duration            `mapstructure:"http_timeout"`
}

// Router dispatches each file reference to the source matching its root's scheme:
// http and https roots go to HTTP, s3 roots to the object store, and everything
// else to the local filesystem.
type Router struct {
	local   audit.FileSource
	remotes map[string]audit.FileSource
	caches  []*CachingSource
	logger  *zap.Logger
}

// NewSource builds a Router from configuration. Remote sources are wrapped in
// a CachingSource when CacheSize is positive.
func NewSource(configuration Configuration, logger *zap.Logger) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := &Router{
		local:   NewFileSystemSource(filesystem.OSFileSystem{}),
		remotes: make(map[string]audit.FileSource),
		logger:  logger,
	}

	httpTimeout := configuration.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = defaultHTTPTimeout
	}
	httpSource, wrapError := router.wrapRemote(NewHTTPSource(&http.Client{Timeout: httpTimeout}, logger), configuration.CacheSize)
	if wrapError != nil {
		return nil, wrapError
	}
	router.remotes[httpSchemeConstant] = httpSource
	router.remotes[httpsSchemeConstant] = httpSource

	if configuration.ObjectStore.Enabled() {
		objectStoreSource, objectStoreError := NewObjectStoreSource(configuration.ObjectStore)
		if objectStoreError != nil {
			return nil, objectStoreError
		}
		wrappedObjectStore, wrapObjectStoreError := router.wrapRemote(objectStoreSource, configuration.CacheSize)
		if wrapObjectStoreError != nil {
			return nil, wrapObjectStoreError
		}
		router.remotes[objectStoreSchemeConstant] = wrappedObjectStore
	}

	return router, nil
}

// NewRouter assembles a Router from explicit sources, keyed by URL scheme.
func NewRouter(local audit.FileSource, remotes map[string]audit.FileSource, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	registered := make(map[string]audit.FileSource, len(remotes))
	for scheme, source := range remotes {
		registered[strings.ToLower(scheme)] = source
	}
	return &Router{local: local, remotes: registered, logger: logger}
}

// Exists delegates to the source selected for reference. An unconfigured
// scheme reports true so that ReadText surfaces ErrSourceNotConfigured.
func (router *Router) Exists(executionContext context.Context, reference keyscan.FileReference) bool {
	source, selectionError := router.selectSource(reference)
	if selectionError != nil {
		router.logger.Warn(sourceUnavailableMessageConstant, zap.String(logFieldReferenceConstant, reference.String()), zap.Error(selectionError))
		return true
	}
	return source.Exists(executionContext, reference)
}

// ReadText delegates to the source selected for reference.
func (router *Router) ReadText(executionContext context.Context, reference keyscan.FileReference) (string, error) {
	source, selectionError := router.selectSource(reference)
	if selectionError != nil {
		return "", selectionError
	}
	return source.ReadText(executionContext, reference)
}

// Invalidate drops cached content for reference from every caching layer.
func (router *Router) Invalidate(reference keyscan.FileReference) {
	for _, cache := range router.caches {
		cache.Invalidate(reference)
	}
}

func (router *Router) wrapRemote(source audit.FileSource, cacheSize int) (audit.FileSource, error) {
	if cacheSize <= 0 {
		return source, nil
	}
	cachingSource, cacheError := NewCachingSource(source, cacheSize)
	if cacheError != nil {
		return nil, cacheError
	}
	router.caches = append(router.caches, cachingSource)
	return cachingSource, nil
}

func (router *Router) selectSource(reference keyscan.FileReference) (audit.FileSource, error) {
	scheme := rootScheme(reference.Root)
	if len(scheme) == 0 {
		return router.local, nil
	}
	source, registered := router.remotes[scheme]
	if !registered {
		return nil, fmt.Errorf(sourceNotConfiguredTemplateConstant, ErrSourceNotConfigured, scheme)
	}
	router.logger.Debug(sourceSelectedMessageConstant, zap.String(logFieldSchemeConstant, scheme), zap.String(logFieldReferenceConstant, reference.String()))
	return source, nil
}

// rootScheme returns the lower-cased URL scheme of root, or an empty string for local paths.
func rootScheme(root string) string {
	separatorIndex := strings.Index(root, schemeSeparatorConstant)
	if separatorIndex <= 0 {
		return ""
	}
	return strings.ToLower(root[:separatorIndex])
}
