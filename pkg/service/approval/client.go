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

// Package approval is the typed client for the approval service. Copies
// gated by a copy request report back which approved entities have actually
// been copied.
package approval

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/errtypes"
	"github.com/pilotdataplatform/filecopy/pkg/httpclient"
)

// Client talks to the approval service v1 API for one copy request.
type Client struct {
	endpointV1 string
	requestID  string
	client     *httpclient.Client
}

// New returns an approval client bound to the given copy request.
func New(endpoint, requestID string, hc *httpclient.Client) *Client {
	return &Client{
		endpointV1: endpoint + "/v1",
		requestID:  requestID,
		client:     hc,
	}
}

// UpdateCopyStatus marks one approved entity as copied. A 200 response with
// an empty result means the entity is not part of the request, which is an
// error.
func (c *Client) UpdateCopyStatus(ctx context.Context, entityID string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"entities":    []string{entityID},
		"copy_status": "copied",
	})
	if err != nil {
		return errors.Wrap(err, "error encoding request body")
	}

	u := c.endpointV1 + "/request/" + c.requestID + "/copy-status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "error creating request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return errtypes.InternalError("unable to update copy status for " + entityID)
	}

	var envelope struct {
		Result []json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return errors.Wrap(err, "error decoding response")
	}
	if len(envelope.Result) == 0 {
		return errtypes.NotFound("unable to update copy status for " + entityID + ", entity is not found")
	}
	return nil
}
