package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/temirov/propaudit/internal/keyscan"
)

const (
	objectStoreSchemeConstant                = "s3"
	objectStoreDefaultRegionConstant         = "us-east-1"
	noSuchKeyCodeConstant                    = "NoSuchKey"
	noSuchBucketCodeConstant                 = "NoSuchBucket"
	objectStoreEndpointRequiredMessage       = "object store endpoint is required"
	objectStoreCredentialsRequiredMessage    = "object store access key and secret key are required"
	objectStoreClientErrorTemplateConstant   = "init object store client: %w"
	objectStoreLocationErrorTemplateConstant = "invalid object store root %q: %w"
	objectStoreReadErrorTemplateConstant     = "read object %s/%s: %w"
	objectStoreRootFormatMessage             = "expected s3://bucket/prefix"
)

var (
	// ErrObjectStoreEndpointRequired indicates the object store configuration lacks an endpoint.
	ErrObjectStoreEndpointRequired = errors.New(objectStoreEndpointRequiredMessage)
	// ErrObjectStoreCredentialsRequired indicates the object store configuration lacks credentials.
	ErrObjectStoreCredentialsRequired = errors.New(objectStoreCredentialsRequiredMessage)
	errObjectStoreRootFormat          = errors.New(objectStoreRootFormatMessage)
)

// ObjectStoreConfiguration describes how to reach an S3-compatible object store.
type ObjectStoreConfiguration struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether an endpoint has been configured.
func (configuration ObjectStoreConfiguration) Enabled() bool {
	return len(strings.TrimSpace(configuration.Endpoint)) > 0
}

// ObjectStoreSource reads project files from an S3-compatible bucket. A
// project root takes the form s3://bucket/prefix.
type ObjectStoreSource struct {
	client *minio.Client
}

// NewObjectStoreSource constructs an ObjectStoreSource from configuration.
func NewObjectStoreSource(configuration ObjectStoreConfiguration) (*ObjectStoreSource, error) {
	endpoint := strings.TrimSpace(configuration.Endpoint)
	if len(endpoint) == 0 {
		return nil, ErrObjectStoreEndpointRequired
	}
	accessKey := strings.TrimSpace(configuration.AccessKey)
	secretKey := strings.TrimSpace(configuration.SecretKey)
	if len(accessKey) == 0 || len(secretKey) == 0 {
		return nil, ErrObjectStoreCredentialsRequired
	}
	region := strings.TrimSpace(configuration.Region)
	if len(region) == 0 {
		region = objectStoreDefaultRegionConstant
	}

	client, clientError := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: configuration.UseSSL,
		Region: region,
	})
	if clientError != nil {
		return nil, fmt.Errorf(objectStoreClientErrorTemplateConstant, clientError)
	}
	return &ObjectStoreSource{client: client}, nil
}

// Exists reports false only when the bucket or key is missing. Any other
// failure reports true so that ReadText surfaces it.
func (source *ObjectStoreSource) Exists(executionContext context.Context, reference keyscan.FileReference) bool {
	bucketName, objectKey, locationError := objectLocation(reference)
	if locationError != nil {
		return true
	}
	_, statError := source.client.StatObject(executionContext, bucketName, objectKey, minio.StatObjectOptions{})
	return !errors.Is(translateObjectError(statError), fs.ErrNotExist)
}

// ReadText downloads and decodes the referenced object. Missing keys and
// buckets are reported as fs.ErrNotExist.
func (source *ObjectStoreSource) ReadText(executionContext context.Context, reference keyscan.FileReference) (string, error) {
	bucketName, objectKey, locationError := objectLocation(reference)
	if locationError != nil {
		return "", locationError
	}

	object, getError := source.client.GetObject(executionContext, bucketName, objectKey, minio.GetObjectOptions{})
	if getError != nil {
		return "", fmt.Errorf(objectStoreReadErrorTemplateConstant, bucketName, objectKey, translateObjectError(getError))
	}
	defer object.Close()

	raw, readError := io.ReadAll(io.LimitReader(object, maximumRemoteFileSize+1))
	if readError != nil {
		return "", fmt.Errorf(objectStoreReadErrorTemplateConstant, bucketName, objectKey, translateObjectError(readError))
	}
	if len(raw) > maximumRemoteFileSize {
		return "", fmt.Errorf(remoteFileTooLargeTemplateConstant, reference.String(), maximumRemoteFileSize)
	}
	return decodeText(raw)
}

func translateObjectError(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case noSuchKeyCodeConstant, noSuchBucketCodeConstant:
		return fs.ErrNotExist
	default:
		return err
	}
}

func objectLocation(reference keyscan.FileReference) (string, string, error) {
	bucketName, prefix, parseError := parseObjectStoreRoot(reference.Root)
	if parseError != nil {
		return "", "", parseError
	}
	return bucketName, path.Join(prefix, reference.Name), nil
}

// parseObjectStoreRoot splits s3://bucket/prefix into its bucket and key prefix.
func parseObjectStoreRoot(root string) (string, string, error) {
	parsed, parseError := url.Parse(root)
	if parseError != nil {
		return "", "", fmt.Errorf(objectStoreLocationErrorTemplateConstant, root, parseError)
	}
	if parsed.Scheme != objectStoreSchemeConstant || len(parsed.Host) == 0 {
		return "", "", fmt.Errorf(objectStoreLocationErrorTemplateConstant, root, errObjectStoreRootFormat)
	}
	return parsed.Host, strings.Trim(parsed.Path, "/"), nil
}
