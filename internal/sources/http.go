package sources

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/propaudit/internal/keyscan"
)

const (
	defaultHTTPTimeout                 = 30 * time.Second
	maximumRemoteFileSize              = 16 << 20
	remoteFileTooLargeTemplateConstant = "read %s: file exceeds %d bytes"
	httpRequestErrorTemplateConstant   = "build request for %s: %w"
	httpFetchErrorTemplateConstant     = "fetch %s: %w"
	httpStatusErrorTemplateConstant    = "fetch %s: unexpected status %d"
	httpReadErrorTemplateConstant      = "read %s: %w"
	httpProbeFailedMessageConstant     = "remote file probe failed"
	logFieldURLConstant                = "url"
	logFieldStatusConstant             = "status"
)

// HTTPSource reads project files over HTTP. A project root is a base URL and
// each file is fetched from root/name.
type HTTPSource struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPSource constructs an HTTPSource. A nil client uses a default client with a timeout.
func NewHTTPSource(client *http.Client, logger *zap.Logger) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSource{client: client, logger: logger}
}

// Exists issues a HEAD request and reports false only when the server answers
// 404 or 410. Servers rejecting HEAD are probed with GET. Any other failure
// reports true so that ReadText surfaces it.
func (source *HTTPSource) Exists(executionContext context.Context, reference keyscan.FileReference) bool {
	location := httpLocation(reference)
	statusCode, probeError := source.probe(executionContext, http.MethodHead, location)
	if probeError == nil && (statusCode == http.StatusMethodNotAllowed || statusCode == http.StatusNotImplemented) {
		statusCode, probeError = source.probe(executionContext, http.MethodGet, location)
	}
	if probeError != nil {
		source.logger.Warn(httpProbeFailedMessageConstant, zap.String(logFieldURLConstant, location), zap.Error(probeError))
		return true
	}
	if isAbsentStatus(statusCode) {
		return false
	}
	if !isSuccessStatus(statusCode) {
		source.logger.Warn(httpProbeFailedMessageConstant, zap.String(logFieldURLConstant, location), zap.Int(logFieldStatusConstant, statusCode))
	}
	return true
}

func (source *HTTPSource) probe(executionContext context.Context, method string, location string) (int, error) {
	request, requestError := http.NewRequestWithContext(executionContext, method, location, nil)
	if requestError != nil {
		return 0, fmt.Errorf(httpRequestErrorTemplateConstant, location, requestError)
	}
	response, responseError := source.client.Do(request)
	if responseError != nil {
		return 0, fmt.Errorf(httpFetchErrorTemplateConstant, location, responseError)
	}
	_ = response.Body.Close()
	return response.StatusCode, nil
}

// ReadText fetches and decodes the referenced file. A 404 or 410 response is reported as fs.ErrNotExist.
func (source *HTTPSource) ReadText(executionContext context.Context, reference keyscan.FileReference) (string, error) {
	location := httpLocation(reference)
	request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, location, nil)
	if requestError != nil {
		return "", fmt.Errorf(httpRequestErrorTemplateConstant, location, requestError)
	}
	response, responseError := source.client.Do(request)
	if responseError != nil {
		return "", fmt.Errorf(httpFetchErrorTemplateConstant, location, responseError)
	}
	defer response.Body.Close()

	if isAbsentStatus(response.StatusCode) {
		return "", fmt.Errorf(httpFetchErrorTemplateConstant, location, fs.ErrNotExist)
	}
	if !isSuccessStatus(response.StatusCode) {
		source.logger.Debug(httpProbeFailedMessageConstant, zap.String(logFieldURLConstant, location), zap.Int(logFieldStatusConstant, response.StatusCode))
		return "", fmt.Errorf(httpStatusErrorTemplateConstant, location, response.StatusCode)
	}

	raw, readError := io.ReadAll(io.LimitReader(response.Body, maximumRemoteFileSize+1))
	if readError != nil {
		return "", fmt.Errorf(httpReadErrorTemplateConstant, location, readError)
	}
	if len(raw) > maximumRemoteFileSize {
		return "", fmt.Errorf(remoteFileTooLargeTemplateConstant, location, maximumRemoteFileSize)
	}
	return decodeText(raw)
}

func httpLocation(reference keyscan.FileReference) string {
	return strings.TrimRight(reference.Root, "/") + "/" + strings.TrimLeft(reference.Name, "/")
}

func isAbsentStatus(statusCode int) bool {
	return statusCode == http.StatusNotFound || statusCode == http.StatusGone
}

func isSuccessStatus(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}
