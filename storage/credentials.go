package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go/aws/credentials/endpointcreds"
	"github.com/aws/aws-sdk-go/aws/defaults"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/ruteri/feedsource/config"
	"github.com/ruteri/feedsource/interfaces"
)

// Environment variables consulted by the credential chain.
const (
	EnvAccessKeyID             = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey         = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken            = "AWS_SESSION_TOKEN"
	EnvContainerCredentialsURI = "AWS_CONTAINER_CREDENTIALS_RELATIVE_URI"
	EnvContainerAuthToken      = "AWS_CONTAINER_AUTHORIZATION_TOKEN"
)

const (
	// DefaultIdentityCheckTimeout bounds the STS call verifying ambient credentials.
	DefaultIdentityCheckTimeout = 30 * time.Second

	// containerCredentialsHost serves task credentials inside ECS containers.
	containerCredentialsHost = "http://169.254.170.2"

	// defaultSigningRegion is used for STS when the source only names a service URL.
	defaultSigningRegion = "us-east-1"
)

// CredentialSource names the strategy that produced a set of credentials.
type CredentialSource string

const (
	CredentialsFromProfile     CredentialSource = "profile"
	CredentialsFromKeys        CredentialSource = "explicit-keys"
	CredentialsFromEnvironment CredentialSource = "environment"
	CredentialsFromContainer   CredentialSource = "container"
	CredentialsFromAmbient     CredentialSource = "ambient"
)

// Resolution is the outcome of a credential resolution. It is not cached.
type Resolution struct {
	Credentials *credentials.Credentials
	Source      CredentialSource

	// Identity is the caller ARN, only known when the identity check ran.
	Identity string
}

// IdentityVerifier checks that credentials are usable by asking the provider
// who they belong to.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, creds *credentials.Credentials, region string) (string, error)
}

// STSIdentityVerifier verifies credentials with STS GetCallerIdentity.
// A single request is sent; failures are not retried.
type STSIdentityVerifier struct {
	// Endpoint overrides the regional STS endpoint when set.
	Endpoint string
}

// VerifyIdentity returns the ARN of the identity owning creds.
func (v STSIdentityVerifier) VerifyIdentity(ctx context.Context, creds *credentials.Credentials, region string) (string, error) {
	cfg := &aws.Config{
		Region:      aws.String(region),
		Credentials: creds,
		MaxRetries:  aws.Int(0),
	}
	if v.Endpoint != "" {
		cfg.Endpoint = aws.String(v.Endpoint)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to create AWS session: %w", err)
	}

	out, err := sts.New(sess).GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.Arn), nil
}

// credentialStrategy resolves credentials for a source. ok is false when the
// strategy's preconditions are not met; once ok is true its error is final.
type credentialStrategy struct {
	source  CredentialSource
	resolve func(ctx context.Context, src *interfaces.SourceConfig) (res *Resolution, ok bool, err error)
}

// CredentialResolver picks credentials for object-store sources. Strategies
// are tried in a fixed order and the first applicable one decides:
//
//  1. named profile (shared credentials file, then the full profile chain)
//  2. explicit accessKeyId/secretAccessKey
//  3. AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY
//  4. ECS container task credentials
//  5. ambient credentials, verified with STS GetCallerIdentity
//
// A resolver holds no mutable state and may be shared between goroutines.
type CredentialResolver struct {
	log *slog.Logger

	getenv                func(string) string
	sharedCredentialsFile string
	profileChain          func(profile, region string) (*credentials.Credentials, error)
	ambient               func(region string) (*credentials.Credentials, error)
	verifier              IdentityVerifier
	identityTimeout       time.Duration
}

// NewCredentialResolver creates a resolver reading the process environment
// and the default shared credentials file.
func NewCredentialResolver(log *slog.Logger) *CredentialResolver {
	if log == nil {
		log = slog.Default()
	}
	return &CredentialResolver{
		log:             log,
		getenv:          os.Getenv,
		profileChain:    sessionProfileCredentials,
		ambient:         sessionAmbientCredentials,
		verifier:        STSIdentityVerifier{},
		identityTimeout: DefaultIdentityCheckTimeout,
	}
}

// Resolve returns the credentials of the first applicable strategy.
func (r *CredentialResolver) Resolve(ctx context.Context, src *interfaces.SourceConfig) (*Resolution, error) {
	for _, strategy := range r.strategies() {
		res, ok, err := strategy.resolve(ctx, src)
		if !ok {
			continue
		}
		if err != nil {
			return nil, err
		}

		res.Source = strategy.source
		r.log.Debug("Resolved object store credentials",
			slog.String("source", src.Name),
			slog.String("credentials", string(res.Source)))
		return res, nil
	}

	// The ambient strategy always applies.
	return nil, &interfaces.CredentialError{Source: src.Name, Err: errors.New("no credential strategy applied")}
}

func (r *CredentialResolver) strategies() []credentialStrategy {
	return []credentialStrategy{
		{CredentialsFromProfile, r.fromProfile},
		{CredentialsFromKeys, r.fromExplicitKeys},
		{CredentialsFromEnvironment, r.fromEnvironment},
		{CredentialsFromContainer, r.fromContainer},
		{CredentialsFromAmbient, r.fromAmbient},
	}
}

func (r *CredentialResolver) fromProfile(_ context.Context, src *interfaces.SourceConfig) (*Resolution, bool, error) {
	if src.ProfileName == "" {
		return nil, false, nil
	}

	shared := credentials.NewSharedCredentials(r.sharedCredentialsFile, src.ProfileName)
	_, err := shared.Get()
	if err == nil {
		return &Resolution{Credentials: shared}, true, nil
	}
	r.log.Debug("Profile not in shared credentials file, trying profile chain",
		slog.String("profile", src.ProfileName),
		"err", err)

	chained, err := r.profileChain(src.ProfileName, signingRegion(src))
	if err == nil {
		return &Resolution{Credentials: chained}, true, nil
	}

	cfgErr := interfaces.NewConfigError(src, config.KeyProfileName, fmt.Sprintf("profile %q not found in shared credentials or profile chain", src.ProfileName))
	cfgErr.Err = err
	return nil, true, cfgErr
}

func (r *CredentialResolver) fromExplicitKeys(_ context.Context, src *interfaces.SourceConfig) (*Resolution, bool, error) {
	if isBlank(src.AccessKeyID) || isBlank(src.SecretAccessKey) {
		return nil, false, nil
	}
	return &Resolution{Credentials: credentials.NewStaticCredentials(src.AccessKeyID, src.SecretAccessKey, "")}, true, nil
}

func (r *CredentialResolver) fromEnvironment(_ context.Context, _ *interfaces.SourceConfig) (*Resolution, bool, error) {
	accessKey := r.getenv(EnvAccessKeyID)
	secretKey := r.getenv(EnvSecretAccessKey)
	if isBlank(accessKey) || isBlank(secretKey) {
		return nil, false, nil
	}

	creds := credentials.NewStaticCredentialsFromCreds(credentials.Value{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    r.getenv(EnvSessionToken),
		ProviderName:    credentials.EnvProviderName,
	})
	return &Resolution{Credentials: creds}, true, nil
}

func (r *CredentialResolver) fromContainer(_ context.Context, _ *interfaces.SourceConfig) (*Resolution, bool, error) {
	relativeURI := r.getenv(EnvContainerCredentialsURI)
	if isBlank(relativeURI) {
		return nil, false, nil
	}

	token := r.getenv(EnvContainerAuthToken)
	creds := endpointcreds.NewCredentialsClient(*defaults.Config(), defaults.Handlers(), containerCredentialsHost+relativeURI,
		func(p *endpointcreds.Provider) {
			p.AuthorizationToken = token
		})
	return &Resolution{Credentials: creds}, true, nil
}

func (r *CredentialResolver) fromAmbient(ctx context.Context, src *interfaces.SourceConfig) (*Resolution, bool, error) {
	region := signingRegion(src)

	creds, err := r.ambient(region)
	if err != nil {
		return nil, true, &interfaces.CredentialError{Source: src.Name, Err: err}
	}

	checkCtx, cancel := context.WithTimeout(ctx, r.identityTimeout)
	defer cancel()

	start := time.Now()
	identity, err := r.verifier.VerifyIdentity(checkCtx, creds, region)
	if err != nil {
		r.log.Debug("Ambient credentials failed identity check",
			slog.String("source", src.Name),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, true, &interfaces.CredentialError{Source: src.Name, Err: err}
	}

	return &Resolution{Credentials: creds, Identity: identity}, true, nil
}

// sessionProfileCredentials loads profile through the SDK's shared config
// handling, which covers SSO, assume-role and credential_process profiles.
// Credentials that only came from the instance or container fallback are
// rejected so a wrong profile name never resolves to another identity.
func sessionProfileCredentials(profile, region string) (*credentials.Credentials, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Profile:           profile,
		SharedConfigState: session.SharedConfigEnable,
		Config:            aws.Config{Region: aws.String(region)},
	})
	if err != nil {
		return nil, err
	}

	value, err := sess.Config.Credentials.Get()
	if err != nil {
		return nil, err
	}
	switch value.ProviderName {
	case ec2rolecreds.ProviderName, endpointcreds.ProviderName:
		return nil, fmt.Errorf("profile %q did not provide credentials", profile)
	}
	return sess.Config.Credentials, nil
}

func sessionAmbientCredentials(region string) (*credentials.Credentials, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:     aws.String(region),
		MaxRetries: aws.Int(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return sess.Config.Credentials, nil
}

func signingRegion(src *interfaces.SourceConfig) string {
	if src.Region != "" {
		return src.Region
	}
	return defaultSigningRegion
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
