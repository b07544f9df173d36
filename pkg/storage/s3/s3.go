// Package s3 handles S3 offsite storage of backup artifacts.
package s3

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/supporttools/JellyGuard/pkg/config"
	"github.com/supporttools/JellyGuard/pkg/metrics"
)

// Client represents an S3 client
type Client struct {
	s3Client *s3.Client
	cfg      *config.AppConfig
}

// NewClient creates a new S3 client
func NewClient(cfg *config.AppConfig) (*Client, error) {
	if !cfg.S3.Enabled {
		return nil, fmt.Errorf("S3 storage is not enabled in configuration")
	}

	s3Client, err := getS3Client(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	return &Client{
		s3Client: s3Client,
		cfg:      cfg,
	}, nil
}

// getS3Client initializes and returns an S3 client based on configuration
func getS3Client(cfg *config.AppConfig) (*s3.Client, error) {
	ctx := context.Background()

	// Create custom HTTP client with TLS configuration
	httpClient := &http.Client{}

	// Configure TLS settings if needed
	if cfg.S3.UseSSL {
		tlsConfig := &tls.Config{}

		// Load custom CA if specified
		if cfg.S3.CustomCAPath != "" && !cfg.S3.SkipCertValidation {
			rootCAs, _ := x509.SystemCertPool()
			if rootCAs == nil {
				rootCAs = x509.NewCertPool()
			}

			// Read the custom CA certificate
			caCert, err := os.ReadFile(cfg.S3.CustomCAPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read custom CA certificate: %w", err)
			}

			// Add the custom CA to the cert pool
			if ok := rootCAs.AppendCertsFromPEM(caCert); !ok {
				return nil, fmt.Errorf("failed to append custom CA certificate")
			}

			tlsConfig.RootCAs = rootCAs
			log.Printf("Using custom CA certificate from %s", cfg.S3.CustomCAPath)
		}

		// Skip certificate validation if specified
		if cfg.S3.SkipCertValidation {
			tlsConfig.InsecureSkipVerify = true
			log.Printf("Warning: TLS certificate validation is disabled for S3 connections")
		}

		// Set up the custom transport with our TLS config
		transport := &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		httpClient.Transport = transport
	}

	// Set up common AWS SDK options
	sdkOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3.AccessKey, cfg.S3.SecretKey, "",
		)),
		awsconfig.WithHTTPClient(httpClient),
	}

	if cfg.S3.Endpoint == "" {
		// Standard AWS S3 - add region
		sdkOptions = append(sdkOptions, awsconfig.WithRegion(cfg.S3.Region))
	}

	// Create AWS config with all options
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, sdkOptions...)
	if err != nil {
		return nil, fmt.Errorf("AWS SDK config initialization error: %w", err)
	}

	// Create S3 client with custom options
	s3Options := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.S3.PathStyle
		},
	}

	// Add custom endpoint if configured
	if cfg.S3.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		})
	}

	return s3.NewFromConfig(awsCfg, s3Options...), nil
}

// objectKey returns the S3 object key for a backup identifier
func (c *Client) objectKey(identifier string) string {
	prefix := c.cfg.S3.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return fmt.Sprintf("%s%s_jellyfin.dump", prefix, identifier)
}

// UploadBackup uploads a backup artifact to S3 under its identifier key
func (c *Client) UploadBackup(ctx context.Context, backupPath, identifier string) error {
	startTime := time.Now()

	file, err := os.Open(backupPath)
	if err != nil {
		metrics.S3UploadCount.WithLabelValues("postgresql", "error").Inc()
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		metrics.S3UploadCount.WithLabelValues("postgresql", "error").Inc()
		return fmt.Errorf("failed to stat backup file: %w", err)
	}

	key := c.objectKey(identifier)
	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(fileInfo.Size()),
	})
	if err != nil {
		metrics.S3UploadCount.WithLabelValues("postgresql", "error").Inc()
		return fmt.Errorf("failed to upload %s to S3: %w", filepath.Base(backupPath), err)
	}

	metrics.S3UploadCount.WithLabelValues("postgresql", "success").Inc()
	metrics.S3UploadDuration.WithLabelValues("postgresql").Observe(time.Since(startTime).Seconds())
	metrics.BackupSize.WithLabelValues("postgresql", "s3").Set(float64(fileInfo.Size()))

	log.Printf("Uploaded backup %s to s3://%s/%s", identifier, c.cfg.S3.Bucket, key)
	return nil
}

// DeleteBackup removes the offsite copy of a backup artifact
func (c *Client) DeleteBackup(ctx context.Context, identifier string) error {
	key := c.objectKey(identifier)

	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", c.cfg.S3.Bucket, key, err)
	}

	log.Printf("Deleted offsite backup s3://%s/%s", c.cfg.S3.Bucket, key)
	return nil
}

// EnforceRetention removes offsite artifacts older than the configured
// retention duration
func (c *Client) EnforceRetention(ctx context.Context) error {
	if c.cfg.Backup.Retention.Forever {
		if c.cfg.Debug {
			log.Println("S3 backups set to keep forever, skipping retention enforcement")
		}
		return nil
	}

	duration, err := time.ParseDuration(c.cfg.Backup.Retention.Duration)
	if err != nil {
		return fmt.Errorf("invalid retention duration %q: %w", c.cfg.Backup.Retention.Duration, err)
	}

	prefix := c.cfg.S3.Prefix
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.cfg.S3.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list S3 objects: %w", err)
		}

		for _, object := range page.Contents {
			if object.LastModified == nil || object.Key == nil {
				continue
			}
			if time.Since(*object.LastModified) <= duration {
				continue
			}

			_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(c.cfg.S3.Bucket),
				Key:    object.Key,
			})
			if err != nil {
				log.Printf("Failed to remove expired S3 backup %s: %v", *object.Key, err)
				continue
			}

			log.Printf("Removed expired S3 backup: %s", *object.Key)
			metrics.BackupRetentionDeletes.WithLabelValues("postgresql", "s3").Inc()
		}
	}

	return nil
}
