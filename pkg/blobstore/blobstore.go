// Copyright 2018-2024 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package blobstore provides access to the s3 compatible object store
// backing the project zones.
package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// PartSize is the chunk size used for multipart uploads. The last part may
// be smaller.
const PartSize = 5 * 1024 * 1024

// Blobstore provides an interface to an s3 compatible blobstore
type Blobstore struct {
	client *minio.Client
	core   *minio.Core
}

// New returns a new Blobstore
func New(endpoint, accessKey, secretKey string, useSSL bool) (*Blobstore, error) {
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to setup s3 client")
	}
	core, err := minio.NewCore(endpoint, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to setup s3 core client")
	}

	return &Blobstore{
		client: client,
		core:   core,
	}, nil
}

// Download fetches an object into a local file, creating parent directories
// as needed.
func (bs *Blobstore) Download(ctx context.Context, bucket, key, filePath string) error {
	err := bs.client.FGetObject(ctx, bucket, key, filePath, minio.GetObjectOptions{})
	if err != nil {
		return errors.Wrapf(err, "could not download object '%s' from bucket '%s'", key, bucket)
	}
	return nil
}

// CopyObject performs a single server-side copy within the store and returns
// the version id of the new object. The version id is empty when the bucket
// has versioning disabled. The store rejects server-side copies of objects
// larger than 5 GB.
func (bs *Blobstore) CopyObject(ctx context.Context, dstBucket, dstKey, srcBucket, srcKey string) (string, error) {
	info, err := bs.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey},
	)
	if err != nil {
		return "", errors.Wrapf(err, "could not copy object '%s/%s' to '%s/%s'", srcBucket, srcKey, dstBucket, dstKey)
	}
	return info.VersionID, nil
}

// Upload stores a local file in the blobstore under the given key and
// returns the version id of the new object.
func (bs *Blobstore) Upload(ctx context.Context, bucket, key, filePath string) (string, error) {
	info, err := bs.client.FPutObject(ctx, bucket, key, filePath, minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return "", errors.Wrapf(err, "could not store object '%s' into bucket '%s'", key, bucket)
	}
	return info.VersionID, nil
}

// MultipartUpload stores a local file under the given key in 5 MiB parts
// using the three-step multipart protocol. Parts are numbered from 1. The
// upload is aborted on any error so the store holds no dangling parts.
func (bs *Blobstore) MultipartUpload(ctx context.Context, bucket, key, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", errors.Wrapf(err, "could not open '%s' for multipart upload", filePath)
	}
	defer f.Close()

	uploadID, err := bs.core.NewMultipartUpload(ctx, bucket, key, minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return "", errors.Wrapf(err, "could not initiate multipart upload for '%s/%s'", bucket, key)
	}

	var parts []minio.CompletePart
	buf := make([]byte, PartSize)
	for partNumber := 1; ; partNumber++ {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			part, err := bs.core.PutObjectPart(ctx, bucket, key, uploadID, partNumber, bytes.NewReader(buf[:n]), int64(n), minio.PutObjectPartOptions{})
			if err != nil {
				bs.abort(ctx, bucket, key, uploadID)
				return "", errors.Wrapf(err, "could not upload part %d of '%s/%s'", partNumber, bucket, key)
			}
			parts = append(parts, minio.CompletePart{PartNumber: part.PartNumber, ETag: part.ETag})
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			bs.abort(ctx, bucket, key, uploadID)
			return "", errors.Wrapf(err, "could not read part %d from '%s'", partNumber, filePath)
		}
	}

	info, err := bs.core.CompleteMultipartUpload(ctx, bucket, key, uploadID, parts, minio.PutObjectOptions{})
	if err != nil {
		bs.abort(ctx, bucket, key, uploadID)
		return "", errors.Wrapf(err, "could not combine %d parts of '%s/%s'", len(parts), bucket, key)
	}
	return info.VersionID, nil
}

func (bs *Blobstore) abort(ctx context.Context, bucket, key, uploadID string) {
	// nothing to act on here, a dangling upload is garbage collected by the store
	_ = bs.core.AbortMultipartUpload(ctx, bucket, key, uploadID)
}

// Delete deletes a blob from the blobstore
func (bs *Blobstore) Delete(ctx context.Context, bucket, key string) error {
	err := bs.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return errors.Wrapf(err, "could not delete object '%s' from bucket '%s'", key, bucket)
	}
	return nil
}
