// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// Every stage Lambda needs some subset of: AWS config, S3, SSM, the run
// ledger, secrets from Parameter Store, and startup logging. This package
// extracts the common init patterns so each Lambda's init() is a short
// composition of helpers. Only a failure to load the AWS config is fatal;
// configuration problems are collected in Problems and reported by the
// stage as an error result on every invocation.
package lambdaboot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/logging"
	"github.com/ryan-longoria/socialmedia-automation/internal/store"
)

// RunsTableEnv names the optional run ledger table.
const RunsTableEnv = "RUNS_TABLE_NAME"

// AWSClients holds the core AWS SDK clients used across Lambdas.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// S3Clients holds S3 client, presigner, and bucket name.
type S3Clients struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3 creates an S3 client and presigner for bucket. An empty bucket is
// allowed here; the stage's config validation reports it.
func InitS3(cfg aws.Config, bucket string) S3Clients {
	if bucket == "" {
		log.Warn().Msg("CONTENT_BUCKET not set")
	}
	client := s3.NewFromConfig(cfg)
	return S3Clients{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
	}
}

// InitRunStore creates the run ledger if RUNS_TABLE_NAME is set. Returns nil
// (with a warning) if not configured; a nil ledger records nothing.
func InitRunStore(cfg aws.Config) *store.RunStore {
	tableName := os.Getenv(RunsTableEnv)
	if tableName == "" {
		log.Warn().Str("envVar", RunsTableEnv).Msg("Run ledger table not set, ledger disabled")
		return nil
	}
	return store.NewRunStore(dynamodb.NewFromConfig(cfg), tableName)
}

// Problems collects configuration errors found at cold start. The zero
// value is ready to use.
type Problems struct {
	errs []error
}

// Add records err if it is non-nil.
func (p *Problems) Add(err error) {
	if err == nil {
		return
	}
	log.Error().Err(err).Msg("Invalid configuration, invocations will fail")
	p.errs = append(p.errs, err)
}

// Err joins the recorded errors, or returns nil when there are none.
func (p *Problems) Err() error {
	return errors.Join(p.errs...)
}

// Load returns v and records err in p. Used with the config loaders.
func Load[T any](p *Problems, v T, err error) T {
	p.Add(err)
	return v
}

// ParameterAPI is the subset of the SSM client used to read secrets.
type ParameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadSecret reads a SecureString parameter.
func LoadSecret(ctx context.Context, client ParameterAPI, paramName string) (string, error) {
	ssmStart := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("SSM GetParameter %s: %w", paramName, err)
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", paramName)
	}
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Secret loaded from SSM")
	return *result.Parameter.Value, nil
}

// LoadTeamsWebhook returns the Teams webhook URL: url when set, otherwise the
// value of paramName. Both empty means the channel is off and "" is
// returned.
func LoadTeamsWebhook(client ParameterAPI, url, paramName string) (string, error) {
	if url != "" || paramName == "" {
		return url, nil
	}
	return LoadSecret(context.Background(), client, paramName)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
