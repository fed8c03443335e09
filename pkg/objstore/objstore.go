/*
Copyright 2025 The InnoDB Cluster Operator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

// Package objstore reads and writes backup artifacts on an S3 compatible
// object store.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-logr/logr"
)

// S3API is the slice of the S3 client the store depends on.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config locates a bucket on an S3 compatible store.
type Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	Path      string
	AccessKey string
	SecretKey string
}

// Store wraps one bucket and key prefix.
type Store struct {
	api    S3API
	bucket string
	prefix string
	log    logr.Logger
}

// New builds a store from static credentials. Endpoint overrides the AWS
// default so MinIO style deployments work; path style addressing is forced
// for the same reason.
func New(ctx context.Context, cfg Config, log logr.Logger) (*Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize aws config: %v", err)
	}

	api := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if cfg.Endpoint != "" {
			options.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		options.UsePathStyle = true
	})

	return NewWithAPI(api, cfg, log), nil
}

// NewWithAPI builds a store over an existing client.
func NewWithAPI(api S3API, cfg Config, log logr.Logger) *Store {
	return &Store{
		api:    api,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Path, "/"),
		log:    log.WithName("objstore"),
	}
}

// key resolves a store-relative name to a full object key.
func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Upload writes one object under the store prefix.
func (s *Store) Upload(ctx context.Context, name string, body io.Reader) error {
	if _, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   body,
	}); err != nil {
		return fmt.Errorf("failed to upload object [%s] to bucket [%s]: %v", s.key(name), s.bucket, err)
	}

	return nil
}

// Exists reports whether one object is present under the store prefix.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to head object [%s] in bucket [%s]: %v", s.key(name), s.bucket, err)
	}

	return true, nil
}

// List returns the store-relative keys below the given sub prefix.
func (s *Store) List(ctx context.Context, subPrefix string) ([]string, error) {
	fullPrefix := s.key(subPrefix)
	if fullPrefix != "" {
		fullPrefix += "/"
	}

	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects below [%s] in bucket [%s]: %v", fullPrefix, s.bucket, err)
		}

		for _, object := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(object.Key), fullPrefix))
		}
	}

	return keys, nil
}
