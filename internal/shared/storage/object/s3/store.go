// Package s3 implements the object store contract on Amazon S3 with one
// client per bucket region.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"casedocs-backend/internal/shared/storage/object"
)

const cacheControl = "max-age=86400"

// Store implements object.Store using Amazon S3.
type Store struct {
	baseCfg aws.Config
	maxTTL  time.Duration

	mu       sync.Mutex
	clients  map[string]*s3.Client
	presigns map[string]*s3.PresignClient
}

// New creates an S3-backed object store. maxTTL bounds presigned URL
// lifetimes; zero means the one-hour default.
func New(ctx context.Context, maxTTL time.Duration) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewFromConfig(cfg, maxTTL), nil
}

// NewFromConfig creates a store from an already-loaded AWS config.
func NewFromConfig(cfg aws.Config, maxTTL time.Duration) *Store {
	if maxTTL <= 0 {
		maxTTL = time.Hour
	}
	return &Store{
		baseCfg:  cfg,
		maxTTL:   maxTTL,
		clients:  map[string]*s3.Client{},
		presigns: map[string]*s3.PresignClient{},
	}
}

func (s *Store) client(region string) *s3.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[region]; ok {
		return c
	}
	c := s3.NewFromConfig(s.baseCfg, func(o *s3.Options) {
		if region != "" {
			o.Region = region
		}
	})
	s.clients[region] = c
	return c
}

func (s *Store) presign(region string) *s3.PresignClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.presigns[region]; ok {
		return p
	}
	var c *s3.Client
	if cached, ok := s.clients[region]; ok {
		c = cached
	} else {
		c = s3.NewFromConfig(s.baseCfg, func(o *s3.Options) {
			if region != "" {
				o.Region = region
			}
		})
		s.clients[region] = c
	}
	p := s3.NewPresignClient(c)
	s.presigns[region] = p
	return p
}

// Get downloads an object's contents.
func (s *Store) Get(ctx context.Context, ref object.Ref) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := s.client(ref.Region).GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object %s: %w", ref, classify(err))
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read object %s: %w", ref, classify(err))
	}
	return data, nil
}

// Put uploads data with AES256 server-side encryption.
func (s *Store) Put(ctx context.Context, ref object.Ref, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.client(ref.Region).PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(ref.Bucket),
		Key:                  aws.String(ref.Key),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String(contentType),
		CacheControl:         aws.String(cacheControl),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", ref, classify(err))
	}
	return nil
}

// Delete removes an object. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, ref object.Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.client(ref.Region).DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		classified := classify(err)
		if isNotFound(classified) {
			return nil
		}
		return fmt.Errorf("s3 delete object %s: %w", ref, classified)
	}
	return nil
}

// Copy duplicates src into dst with the given storage class. The source is
// left untouched.
func (s *Store) Copy(ctx context.Context, src, dst object.Ref, class object.StorageClass) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(dst.Bucket),
		Key:        aws.String(dst.Key),
		CopySource: aws.String(src.Bucket + "/" + src.Key),
	}
	if class != "" {
		input.StorageClass = s3types.StorageClass(class)
	}
	if _, err := s.client(dst.Region).CopyObject(ctx, input); err != nil {
		return fmt.Errorf("s3 copy object %s -> %s: %w", src, dst, classify(err))
	}
	return nil
}

// Head returns object metadata.
func (s *Store) Head(ctx context.Context, ref object.Ref) (object.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return object.Metadata{}, err
	}
	out, err := s.client(ref.Region).HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return object.Metadata{}, fmt.Errorf("s3 head object %s: %w", ref, classify(err))
	}
	meta := object.Metadata{
		SizeBytes:   aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		Checksum:    aws.ToString(out.ETag),
	}
	if out.LastModified != nil {
		meta.LastModified = *out.LastModified
	}
	return meta, nil
}

// PresignDownload computes a time-limited GET URL. No network I/O.
func (s *Store) PresignDownload(ctx context.Context, ref object.Ref, ttl time.Duration) (string, error) {
	bounded, err := object.BoundTTL(ttl, s.maxTTL)
	if err != nil {
		return "", err
	}
	req, err := s.presign(ref.Region).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	}, s3.WithPresignExpires(bounded))
	if err != nil {
		return "", fmt.Errorf("presign download %s: %w", ref, err)
	}
	return req.URL, nil
}

// PresignUpload computes a time-limited PUT URL plus the headers the
// uploader must send.
func (s *Store) PresignUpload(ctx context.Context, ref object.Ref, ttl time.Duration) (object.SignedUpload, error) {
	bounded, err := object.BoundTTL(ttl, s.maxTTL)
	if err != nil {
		return object.SignedUpload{}, err
	}
	req, err := s.presign(ref.Region).PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(ref.Bucket),
		Key:                  aws.String(ref.Key),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	}, s3.WithPresignExpires(bounded))
	if err != nil {
		return object.SignedUpload{}, fmt.Errorf("presign upload %s: %w", ref, err)
	}
	fields := make(map[string]string, len(req.SignedHeader))
	for name, values := range req.SignedHeader {
		if len(values) > 0 {
			fields[name] = values[0]
		}
	}
	return object.SignedUpload{URL: req.URL, Fields: fields}, nil
}

var _ object.Store = (*Store)(nil)
