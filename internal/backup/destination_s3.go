package backup

import (
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Destination stores backups in AWS S3 or S3-compatible storage
type S3Destination struct {
	config   *DestinationConfig
	s3Client *s3.S3
	uploader *s3manager.Uploader
}

// NewS3Destination creates a new S3 destination
func NewS3Destination(config *DestinationConfig) (*S3Destination, error) {
	if config.S3Bucket == "" {
		return nil, fmt.Errorf("s3 destination requires a bucket")
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.S3Region),
	}
	if config.S3AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.S3AccessKey,
			config.S3SecretKey,
			"",
		)
	}

	// Custom endpoint for S3-compatible storage (MinIO, DigitalOcean Spaces, etc.)
	if config.S3Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.S3Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	log.Printf("[S3Dest] Initialized S3 destination: bucket=%s, region=%s",
		config.S3Bucket, config.S3Region)

	return &S3Destination{
		config:   config,
		s3Client: s3.New(sess),
		uploader: s3manager.NewUploader(sess),
	}, nil
}

func (sd *S3Destination) key(filename string) string {
	return path.Join(strings.Trim(sd.config.Path, "/"), filename)
}

// Upload streams a backup archive to S3 using multipart uploads
func (sd *S3Destination) Upload(filename string, reader io.Reader, sizeBytes int64) error {
	key := sd.key(filename)
	log.Printf("[S3Dest] Uploading %s to s3://%s/%s (%d bytes)",
		filename, sd.config.S3Bucket, key, sizeBytes)

	_, err := sd.uploader.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(sd.config.S3Bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Printf("[S3Dest] Upload complete: %s", filename)
	return nil
}

// Delete removes a backup file from S3
func (sd *S3Destination) Delete(filename string) error {
	key := sd.key(filename)
	log.Printf("[S3Dest] Deleting s3://%s/%s", sd.config.S3Bucket, key)

	_, err := sd.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(sd.config.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// List returns all archives under the destination prefix
func (sd *S3Destination) List() ([]BackupFile, error) {
	prefix := strings.Trim(sd.config.Path, "/")
	if prefix != "" {
		prefix += "/"
	}

	var files []BackupFile
	err := sd.s3Client.ListObjectsV2Pages(&s3.ListObjectsV2Input{
		Bucket: aws.String(sd.config.S3Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if !isArchiveName(key) {
				continue
			}
			files = append(files, BackupFile{
				Filename:  path.Base(key),
				SizeBytes: aws.Int64Value(obj.Size),
				CreatedAt: aws.TimeValue(obj.LastModified).Unix(),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list S3 objects: %w", err)
	}
	return files, nil
}

// GetType returns the destination type
func (sd *S3Destination) GetType() string {
	return "s3"
}
