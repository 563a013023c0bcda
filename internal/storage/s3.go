// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage keeps media binaries in an S3-compatible bucket. The
// client uses path-style addressing so it works against MinIO and Ceph as
// well as AWS.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Objects is the part of the bucket the media handlers use.
type Objects interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Options configure the bucket client.
type Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string // CDN or direct URL objects are served from
}

// Client implements Objects on one public-read bucket.
type Client struct {
	s3        *s3.Client
	bucket    string
	endpoint  string
	publicURL string
}

// New returns (nil, nil) when no endpoint or credentials are configured,
// so the CMS can start without uploads.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" || opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, nil
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}

	endpoint := strings.TrimRight(opts.Endpoint, "/")
	client := s3.New(s3.Options{
		Region:       opts.Region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		UsePathStyle: true,
	})

	return &Client{
		s3:        client,
		bucket:    opts.Bucket,
		endpoint:  endpoint,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
	}, nil
}

// Put uploads an object with a public-read ACL.
func (c *Client) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		ACL:           s3types.ObjectCannedACLPublicRead,
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

// URL returns the public address of an object.
func (c *Client) URL(key string) string {
	return PublicURL(c.publicURL, c.endpoint, c.bucket, key)
}

// PublicURL builds an object address: publicBase/key when a public base is
// configured, otherwise the path-style endpoint/bucket/key.
func PublicURL(publicBase, endpoint, bucket, key string) string {
	if publicBase != "" {
		return publicBase + "/" + key
	}
	return endpoint + "/" + bucket + "/" + key
}
