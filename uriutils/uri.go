// Package uriutils computes the absolute storage paths and base URIs of feed
// sources. All functions are pure apart from reading the working directory.
package uriutils

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws/endpoints"
	"github.com/ruteri/feedsource/interfaces"
)

const relativeWithoutConfig = "relative path requires a known config location"

// ResolveAbsolutePath returns the absolute location described by rawPath.
//
// Local paths are resolved against the directory containing configPath; an
// empty rawPath denotes that directory, or the working directory when no
// configuration file is known. Remote paths are used verbatim and must be
// absolute URIs; an empty remote path yields "" so the backend can supply its
// default. The result is not trailing-slash normalized.
func ResolveAbsolutePath(configPath, rawPath string, backendType interfaces.BackendType) (string, error) {
	if !backendType.IsLocal() {
		if rawPath == "" {
			return "", nil
		}
		if !IsAbsoluteURI(rawPath) {
			return "", &interfaces.ConfigError{Type: backendType, Field: "path", Message: fmt.Sprintf("%q is not an absolute URI", rawPath)}
		}
		return rawPath, nil
	}

	rawPath = strings.TrimPrefix(rawPath, "file://")
	if filepath.IsAbs(rawPath) {
		return filepath.Clean(rawPath), nil
	}

	if configPath == "" {
		if rawPath != "" {
			return "", &interfaces.ConfigError{Type: backendType, Field: "path", Message: relativeWithoutConfig}
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to read working directory: %w", err)
		}
		return wd, nil
	}

	configDir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	if rawPath == "" {
		rawPath = "."
	}
	return filepath.Join(configDir, rawPath), nil
}

// EnsureTrailingSlash appends "/" unless uri already ends with one.
func EnsureTrailingSlash(uri string) string {
	if strings.HasSuffix(uri, "/") {
		return uri
	}
	return uri + "/"
}

// AppendSubPath joins subPath onto uri with a single separating slash and a
// trailing slash. An empty subPath returns the normalized uri.
func AppendSubPath(uri, subPath string) string {
	uri = EnsureTrailingSlash(uri)
	subPath = strings.Trim(subPath, "/")
	if subPath == "" {
		return uri
	}
	return uri + subPath + "/"
}

// ResolvePaths builds the normalized path pair of a feed. baseURI defaults
// to absolutePath; feedSubPath is appended to both.
func ResolvePaths(absolutePath, baseURI, feedSubPath string) interfaces.ResolvedPaths {
	absolutePath = filepath.ToSlash(absolutePath)
	if baseURI == "" {
		baseURI = absolutePath
	}
	return interfaces.ResolvedPaths{
		AbsolutePath: AppendSubPath(absolutePath, feedSubPath),
		BaseURI:      AppendSubPath(baseURI, feedSubPath),
	}
}

// IsAbsoluteURI reports whether s parses as a URI with a scheme and host.
func IsAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}

// ContainerURL strips the query string (the SAS token) from a container URL
// and normalizes the trailing slash.
func ContainerURL(sasURL string) (string, error) {
	u, err := url.Parse(sasURL)
	if err != nil {
		return "", fmt.Errorf("invalid SAS URL: %w", err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return EnsureTrailingSlash(u.String()), nil
}

// S3BucketURL returns the default public URL of a bucket. With a custom
// service URL the bucket is addressed path-style, otherwise virtual-host style
// on the regional S3 endpoint.
func S3BucketURL(bucketName, region, serviceURL string) (string, error) {
	if serviceURL != "" {
		return AppendSubPath(serviceURL, bucketName), nil
	}

	resolved, err := endpoints.DefaultResolver().EndpointFor(endpoints.S3ServiceID, region)
	if err != nil {
		return "", fmt.Errorf("failed to resolve S3 endpoint for region %s: %w", region, err)
	}
	u, err := url.Parse(resolved.URL)
	if err != nil {
		return "", fmt.Errorf("invalid S3 endpoint %q: %w", resolved.URL, err)
	}
	return fmt.Sprintf("https://%s.%s/", bucketName, u.Host), nil
}
