package datasource

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sartorproj/gochangepoint/timeseries"
)

// S3Config locates a CSV object in S3 or an S3-compatible store.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Key      string `yaml:"key"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	// Prefer the default AWS credential chain over static keys.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client from cfg and the default AWS configuration chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// S3Object reads the series from a CSV object.
type S3Object struct {
	client ObjectAPI
	bucket string
	key    string
	opts   *timeseries.CSVOptions
}

// NewS3Object returns a source for bucket/key.
func NewS3Object(client ObjectAPI, bucket, key string) (*S3Object, error) {
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 bucket and key are required")
	}
	return &S3Object{client: client, bucket: bucket, key: key, opts: timeseries.DefaultCSVOptions()}, nil
}

// Name returns the object URL.
func (o *S3Object) Name() string {
	return "s3://" + o.bucket + "/" + o.key
}

// Load downloads and parses the object.
func (o *S3Object) Load(ctx context.Context) (*timeseries.Series, error) {
	resp, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return nil, wrap(o.Name(), fmt.Errorf("get object: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	series, err := timeseries.LoadCSVFromReader(resp.Body, o.opts)
	if err != nil {
		return nil, wrap(o.Name(), err)
	}
	return series, nil
}

// Store uploads series as a "date,price" CSV object.
func (o *S3Object) Store(ctx context.Context, series *timeseries.Series) error {
	var buf bytes.Buffer
	if err := timeseries.WriteCSV(&buf, series); err != nil {
		return err
	}
	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(o.key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return wrap(o.Name(), fmt.Errorf("put object: %w", err))
	}
	return nil
}
