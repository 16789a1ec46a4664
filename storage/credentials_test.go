package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/ruteri/feedsource/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// MockIdentityVerifier implements IdentityVerifier for testing
type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) VerifyIdentity(ctx context.Context, creds *credentials.Credentials, region string) (string, error) {
	args := m.Called(ctx, creds, region)
	return args.String(0), args.Error(1)
}

type testResolver struct {
	resolver      *CredentialResolver
	verifier      *MockIdentityVerifier
	env           map[string]string
	profileCalls  int
	ambientCalls  int
	ambientCreds  *credentials.Credentials
	profileResult *credentials.Credentials
}

func newTestResolver(t *testing.T) *testResolver {
	t.Helper()

	credsFile := filepath.Join(t.TempDir(), "credentials")
	require.NoError(t, os.WriteFile(credsFile, []byte(
		"[shared]\naws_access_key_id = SHAREDKEY\naws_secret_access_key = SHAREDSECRET\n"), 0600))

	tr := &testResolver{
		verifier:     &MockIdentityVerifier{},
		env:          map[string]string{},
		ambientCreds: credentials.NewStaticCredentials("AMBIENTKEY", "AMBIENTSECRET", ""),
	}

	tr.resolver = &CredentialResolver{
		log:                   slog.New(slog.NewTextHandler(io.Discard, nil)),
		getenv:                func(key string) string { return tr.env[key] },
		sharedCredentialsFile: credsFile,
		profileChain: func(profile, region string) (*credentials.Credentials, error) {
			tr.profileCalls++
			if tr.profileResult == nil {
				return nil, errors.New("profile does not exist")
			}
			return tr.profileResult, nil
		},
		ambient: func(region string) (*credentials.Credentials, error) {
			tr.ambientCalls++
			return tr.ambientCreds, nil
		},
		verifier:        tr.verifier,
		identityTimeout: 5 * time.Second,
	}
	return tr
}

func objectStoreSource() *interfaces.SourceConfig {
	return &interfaces.SourceConfig{
		Name:       "feed",
		Type:       interfaces.ObjectStoreType,
		BucketName: "b",
		Region:     "us-east-1",
		Compress:   true,
	}
}

func TestCredentialResolver_ProfileFromSharedFile(t *testing.T) {
	tr := newTestResolver(t)
	tr.env[EnvAccessKeyID] = "ENVKEY"
	tr.env[EnvSecretAccessKey] = "ENVSECRET"

	src := objectStoreSource()
	src.ProfileName = "shared"
	src.AccessKeyID = "AK"
	src.SecretAccessKey = "SK"

	res, err := tr.resolver.Resolve(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, CredentialsFromProfile, res.Source)
	assert.Equal(t, 0, tr.profileCalls)

	value, err := res.Credentials.Get()
	require.NoError(t, err)
	assert.Equal(t, "SHAREDKEY", value.AccessKeyID)
	assert.Equal(t, "SHAREDSECRET", value.SecretAccessKey)
}

func TestCredentialResolver_ProfileFromChain(t *testing.T) {
	tr := newTestResolver(t)
	tr.profileResult = credentials.NewStaticCredentials("SSOKEY", "SSOSECRET", "TOKEN")

	src := objectStoreSource()
	src.ProfileName = "sso"

	res, err := tr.resolver.Resolve(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, CredentialsFromProfile, res.Source)
	assert.Equal(t, 1, tr.profileCalls)
	assert.Same(t, tr.profileResult, res.Credentials)
}

func TestCredentialResolver_UnknownProfileIsTerminal(t *testing.T) {
	tr := newTestResolver(t)
	tr.env[EnvAccessKeyID] = "ENVKEY"
	tr.env[EnvSecretAccessKey] = "ENVSECRET"
	tr.env[EnvContainerCredentialsURI] = "/v2/credentials/task"

	src := objectStoreSource()
	src.ProfileName = "missing"
	src.AccessKeyID = "AK"
	src.SecretAccessKey = "SK"

	res, err := tr.resolver.Resolve(context.Background(), src)
	assert.Nil(t, res)

	var cfgErr *interfaces.ConfigError
	require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
	assert.Equal(t, "profileName", cfgErr.Field)
	assert.Equal(t, "feed", cfgErr.Source)
	assert.Contains(t, cfgErr.Error(), "missing")

	assert.Equal(t, 1, tr.profileCalls)
	assert.Equal(t, 0, tr.ambientCalls)
	tr.verifier.AssertNotCalled(t, "VerifyIdentity", mock.Anything, mock.Anything, mock.Anything)
}

func TestCredentialResolver_ExplicitKeys(t *testing.T) {
	tr := newTestResolver(t)
	tr.env[EnvAccessKeyID] = "ENVKEY"
	tr.env[EnvSecretAccessKey] = "ENVSECRET"

	src := objectStoreSource()
	src.AccessKeyID = "AK"
	src.SecretAccessKey = "SK"

	res, err := tr.resolver.Resolve(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, CredentialsFromKeys, res.Source)

	value, err := res.Credentials.Get()
	require.NoError(t, err)
	assert.Equal(t, "AK", value.AccessKeyID)
	assert.Equal(t, "SK", value.SecretAccessKey)
}

func TestCredentialResolver_BlankKeysAreSkipped(t *testing.T) {
	tr := newTestResolver(t)
	tr.env[EnvAccessKeyID] = "ENVKEY"
	tr.env[EnvSecretAccessKey] = "ENVSECRET"

	src := objectStoreSource()
	src.AccessKeyID = "  "
	src.SecretAccessKey = "SK"

	res, err := tr.resolver.Resolve(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, CredentialsFromEnvironment, res.Source)
}

func TestCredentialResolver_EnvironmentOnly(t *testing.T) {
	tr := newTestResolver(t)
	tr.env[EnvAccessKeyID] = "ENVKEY"
	tr.env[EnvSecretAccessKey] = "ENVSECRET"
	tr.env[EnvSessionToken] = "ENVTOKEN"
	tr.env[EnvContainerCredentialsURI] = "/v2/credentials/task"

	res, err := tr.resolver.Resolve(context.Background(), objectStoreSource())
	require.NoError(t, err)
	assert.Equal(t, CredentialsFromEnvironment, res.Source)

	value, err := res.Credentials.Get()
	require.NoError(t, err)
	assert.Equal(t, "ENVKEY", value.AccessKeyID)
	assert.Equal(t, "ENVSECRET", value.SecretAccessKey)
	assert.Equal(t, "ENVTOKEN", value.SessionToken)
	assert.Equal(t, credentials.EnvProviderName, value.ProviderName)

	assert.Equal(t, 0, tr.ambientCalls)
	tr.verifier.AssertNotCalled(t, "VerifyIdentity", mock.Anything, mock.Anything, mock.Anything)
}

func TestCredentialResolver_Container(t *testing.T) {
	tr := newTestResolver(t)
	tr.env[EnvAccessKeyID] = "ENVKEY"
	tr.env[EnvContainerCredentialsURI] = "/v2/credentials/task"
	tr.env[EnvContainerAuthToken] = "token"

	res, err := tr.resolver.Resolve(context.Background(), objectStoreSource())
	require.NoError(t, err)
	assert.Equal(t, CredentialsFromContainer, res.Source)
	assert.NotNil(t, res.Credentials)

	assert.Equal(t, 0, tr.ambientCalls)
	tr.verifier.AssertNotCalled(t, "VerifyIdentity", mock.Anything, mock.Anything, mock.Anything)
}

func TestCredentialResolver_AmbientVerified(t *testing.T) {
	tr := newTestResolver(t)
	hasDeadline := mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})
	tr.verifier.On("VerifyIdentity", hasDeadline, tr.ambientCreds, "us-east-1").
		Return("arn:aws:sts::123456789012:assumed-role/feed/i-0abc", nil).Once()

	res, err := tr.resolver.Resolve(context.Background(), objectStoreSource())
	require.NoError(t, err)
	assert.Equal(t, CredentialsFromAmbient, res.Source)
	assert.Equal(t, "arn:aws:sts::123456789012:assumed-role/feed/i-0abc", res.Identity)
	assert.Same(t, tr.ambientCreds, res.Credentials)
	tr.verifier.AssertExpectations(t)
}

func TestCredentialResolver_AmbientUsesDefaultRegionForServiceURL(t *testing.T) {
	tr := newTestResolver(t)
	tr.verifier.On("VerifyIdentity", mock.Anything, mock.Anything, "us-east-1").Return("arn", nil).Once()

	src := objectStoreSource()
	src.Region = ""
	src.ServiceURL = "http://localhost:9000"

	_, err := tr.resolver.Resolve(context.Background(), src)
	require.NoError(t, err)
	tr.verifier.AssertExpectations(t)
}

func TestCredentialResolver_AmbientFailure(t *testing.T) {
	tr := newTestResolver(t)
	cause := errors.New("RequestError: send request failed")
	tr.verifier.On("VerifyIdentity", mock.Anything, mock.Anything, mock.Anything).Return("", cause).Once()

	res, err := tr.resolver.Resolve(context.Background(), objectStoreSource())
	assert.Nil(t, res)

	var credErr *interfaces.CredentialError
	require.True(t, errors.As(err, &credErr), "expected CredentialError, got %v", err)
	assert.Equal(t, "feed", credErr.Source)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "no usable credential source")
	assert.Equal(t, 1, tr.ambientCalls)
}

func TestCredentialResolver_AmbientTimeout(t *testing.T) {
	tr := newTestResolver(t)
	tr.resolver.identityTimeout = 10 * time.Millisecond
	tr.verifier.On("VerifyIdentity", mock.Anything, mock.Anything, mock.Anything).
		Return("", context.DeadlineExceeded).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).Once()

	_, err := tr.resolver.Resolve(context.Background(), objectStoreSource())

	var credErr *interfaces.CredentialError
	require.True(t, errors.As(err, &credErr))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSTSIdentityVerifier_SingleAttempt(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Inc()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	verifier := STSIdentityVerifier{Endpoint: srv.URL}
	identity, err := verifier.VerifyIdentity(ctx, credentials.NewStaticCredentials("AK", "SK", ""), "us-east-1")
	require.Error(t, err)
	assert.Empty(t, identity)
	assert.Equal(t, int32(1), attempts.Load())
}

// isolateAWSEnvironment points the SDK at empty config files and clears every
// variable that could supply credentials.
func isolateAWSEnvironment(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	for _, key := range []string{
		EnvAccessKeyID, EnvSecretAccessKey, EnvSessionToken,
		"AWS_ACCESS_KEY", "AWS_SECRET_KEY", "AWS_PROFILE", "AWS_DEFAULT_PROFILE",
		"AWS_SDK_LOAD_CONFIG", "AWS_ROLE_ARN", "AWS_WEB_IDENTITY_TOKEN_FILE",
		EnvContainerCredentialsURI, EnvContainerAuthToken, "AWS_CONTAINER_CREDENTIALS_FULL_URI",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestSessionProfileCredentials_NamedProfile(t *testing.T) {
	dir := isolateAWSEnvironment(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials"), []byte(
		"[named]\naws_access_key_id = NAMEDKEY\naws_secret_access_key = NAMEDSECRET\n"), 0600))

	creds, err := sessionProfileCredentials("named", "us-east-1")
	require.NoError(t, err)

	value, err := creds.Get()
	require.NoError(t, err)
	assert.Equal(t, "NAMEDKEY", value.AccessKeyID)
}

func TestSessionProfileCredentials_UnknownProfile(t *testing.T) {
	isolateAWSEnvironment(t)

	creds, err := sessionProfileCredentials("missing", "us-east-1")
	assert.Nil(t, creds)
	assert.Error(t, err)
}

func TestSessionProfileCredentials_RejectsContainerFallback(t *testing.T) {
	isolateAWSEnvironment(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"AccessKeyId":"TASKKEY","SecretAccessKey":"TASKSECRET","Token":"TOKEN","Expiration":"2100-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()
	t.Setenv("AWS_CONTAINER_CREDENTIALS_FULL_URI", srv.URL+"/creds")

	creds, err := sessionProfileCredentials("missing", "us-east-1")
	assert.Nil(t, creds)
	assert.Error(t, err)
}
