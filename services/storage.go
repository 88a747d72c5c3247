package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"case_portal_go/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Attachment is an incoming file, already opened by the caller
type Attachment struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachmentFromMultipart opens a multipart file. The caller closes the returned closer.
func AttachmentFromMultipart(fh *multipart.FileHeader) (*Attachment, io.Closer, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Attachment{Name: filepath.Base(fh.Filename), ContentType: contentType, Size: fh.Size, Body: src}, src, nil
}

// StoredObject describes a file after upload
type StoredObject struct {
	Key  string
	Size int64
	URL  string
}

// FileStore persists evidence, chat attachments and generated reports
type FileStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*StoredObject, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
	// URL is the stable address recorded in the audit log
	URL(key string) string
}

// NewFileStore picks R2 when fully configured and reachable, local disk otherwise
func NewFileStore(cfg *config.Config) FileStore {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" {
		log.Printf("Storage connection established (Local filesystem - path: %s)", cfg.UploadDir)
		return NewLocalStore(cfg.UploadDir)
	}

	r2, err := NewR2Store(cfg)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err = r2.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.R2BucketName)})
	}
	if err != nil {
		log.Printf("[WARNING] R2 storage unavailable: %v. Falling back to local storage.", err)
		return NewLocalStore(cfg.UploadDir)
	}

	log.Printf("Storage connection established (Cloudflare R2 - bucket: %s)", cfg.R2BucketName)
	return r2
}

// R2Store talks to Cloudflare R2 through the S3 API
type R2Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

func NewR2Store(cfg *config.Config) (*R2Store, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	creds := credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.R2BucketName,
		publicURL: cfg.R2PublicURL,
	}, nil
}

func (r *R2Store) Put(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*StoredObject, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to R2: %w", err)
	}
	return &StoredObject{Key: key, Size: size, URL: r.URL(key)}, nil
}

func (r *R2Store) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object from R2: %w", err)
	}
	contentType := "application/octet-stream"
	if out.ContentType != nil {
		contentType = *out.ContentType
	}
	return out.Body, contentType, nil
}

func (r *R2Store) Remove(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from R2: %w", err)
	}
	return nil
}

func (r *R2Store) SignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return req.URL, nil
}

// URL falls back to an r2:// reference when the bucket has no public domain
func (r *R2Store) URL(key string) string {
	if r.publicURL != "" {
		return strings.TrimSuffix(r.publicURL, "/") + "/" + key
	}
	return fmt.Sprintf("r2://%s/%s", r.bucket, key)
}

// LocalStore keeps files under a directory served statically
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{baseDir: baseDir}
}

func (l *LocalStore) Put(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*StoredObject, error) {
	fullPath := filepath.Join(l.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, body)
	if err != nil {
		dst.Close()
		os.Remove(fullPath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	return &StoredObject{Key: key, Size: written, URL: l.URL(key)}, nil
}

func (l *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	f, err := os.Open(filepath.Join(l.baseDir, filepath.FromSlash(key)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	return f, contentTypeFor(key), nil
}

func (l *LocalStore) Remove(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(l.baseDir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// SignedURL needs no signing on local disk
func (l *LocalStore) SignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return l.URL(key), nil
}

func (l *LocalStore) URL(key string) string {
	return "/" + path.Join(filepath.ToSlash(l.baseDir), key)
}

func contentTypeFor(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".txt":
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

// storageKey builds cases/<caseID>/<kind>/<uuid>_<unix><ext>
func storageKey(caseID, kind, originalName string) string {
	ext := filepath.Ext(originalName)
	return path.Join("cases", caseID, kind, fmt.Sprintf("%s_%d%s", uuid.New().String(), time.Now().Unix(), ext))
}

// Storage key kinds
const (
	keyKindEvidence = "evidence"
	keyKindChat     = "chat"
	keyKindReport   = "reports"
)

// ProfileImageKey is where a user's avatar is stored
func ProfileImageKey(userID, originalName string) string {
	return path.Join("profiles", userID+filepath.Ext(originalName))
}
