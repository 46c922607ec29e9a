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

// Package dataops is the typed client for the dataops service: the bulk
// resource-lock protocol, terminal job-status reporting and the zip-preview
// store.
package dataops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/appctx"
	"github.com/pilotdataplatform/filecopy/pkg/errtypes"
	"github.com/pilotdataplatform/filecopy/pkg/httpclient"
	"github.com/pilotdataplatform/filecopy/pkg/models"
)

// Client talks to the dataops service v1 and v2 APIs.
type Client struct {
	endpointV1 string
	endpointV2 string
	client     *httpclient.Client
}

// New returns a dataops client.
func New(endpoint string, hc *httpclient.Client) *Client {
	return &Client{
		endpointV1: endpoint + "/v1",
		endpointV2: endpoint + "/v2",
		client:     hc,
	}
}

func (c *Client) do(ctx context.Context, method, u string, query url.Values, body interface{}) (*http.Response, error) {
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "error encoding request body")
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, errors.Wrap(err, "error creating request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

type lockRequest struct {
	ResourceKeys []string             `json:"resource_keys"`
	Operation    models.LockOperation `json:"operation"`
}

// LockResources acquires the given lock over all resource keys in one batch
// call. Any non-200 response means no locks are held.
func (c *Client) LockResources(ctx context.Context, resourceKeys []string, operation models.LockOperation) error {
	log := appctx.GetLogger(ctx)
	log.Info().Str("operation", string(operation)).Strs("resource_keys", resourceKeys).Msg("locking resource keys")

	res, err := c.do(ctx, http.MethodPost, c.endpointV2+"/resource/lock/bulk", nil, lockRequest{
		ResourceKeys: resourceKeys,
		Operation:    operation,
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return errtypes.InternalError(fmt.Sprintf("unable to lock resource keys %v", resourceKeys))
	}
	return nil
}

// UnlockResources releases the given lock over all resource keys. A 400
// response means the keys were not locked; unlock is idempotent so that is
// treated as success.
func (c *Client) UnlockResources(ctx context.Context, resourceKeys []string, operation models.LockOperation) error {
	log := appctx.GetLogger(ctx)
	log.Info().Str("operation", string(operation)).Strs("resource_keys", resourceKeys).Msg("unlocking resource keys")

	res, err := c.do(ctx, http.MethodDelete, c.endpointV2+"/resource/lock/bulk", nil, lockRequest{
		ResourceKeys: resourceKeys,
		Operation:    operation,
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusBadRequest {
		return errtypes.InternalError(fmt.Sprintf("unable to unlock resource keys %v", resourceKeys))
	}
	return nil
}

// Job identifies the task-stream entry updated on terminal outcome.
type Job struct {
	SessionID     string
	JobID         string
	TargetNames   []string
	TargetType    string
	ContainerCode string
	ActionType    string
}

// UpdateJob reports the terminal status of a job to the task stream.
func (c *Client) UpdateJob(ctx context.Context, job Job, status models.JobStatus) error {
	res, err := c.do(ctx, http.MethodPost, c.endpointV1+"/task-stream/", nil, map[string]interface{}{
		"session_id":     job.SessionID,
		"target_names":   job.TargetNames,
		"target_type":    job.TargetType,
		"container_code": job.ContainerCode,
		"container_type": "project",
		"action_type":    job.ActionType,
		"job_id":         job.JobID,
		"status":         status,
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return errtypes.InternalError("unable to update job " + job.JobID)
	}
	return nil
}

// GetZipPreview returns the cached archive preview for a file, or nil when
// none exists.
func (c *Client) GetZipPreview(ctx context.Context, fileID string) (map[string]interface{}, error) {
	query := url.Values{}
	query.Set("file_id", fileID)

	res, err := c.do(ctx, http.MethodGet, c.endpointV1+"/archive", query, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.StatusCode != http.StatusOK {
		return nil, errtypes.InternalError("unable to get zip preview for id " + fileID)
	}

	var preview map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&preview); err != nil {
		return nil, errors.Wrap(err, "error decoding zip preview")
	}
	return preview, nil
}

// CreateZipPreview stores an archive preview for a file.
func (c *Client) CreateZipPreview(ctx context.Context, fileID string, archivePreview interface{}) error {
	res, err := c.do(ctx, http.MethodPost, c.endpointV1+"/archive", nil, map[string]interface{}{
		"file_id":         fileID,
		"archive_preview": archivePreview,
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return errtypes.InternalError("unable to create zip preview for id " + fileID)
	}
	return nil
}
