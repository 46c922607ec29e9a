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

// Package dataset is the typed client for the dataset service.
package dataset

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/errtypes"
	"github.com/pilotdataplatform/filecopy/pkg/httpclient"
)

// Version is one immutable published version of a dataset.
type Version struct {
	ID          string `json:"id"`
	DatasetCode string `json:"dataset_code"`
	Version     string `json:"version"`
	// Location points at the zipped snapshot in the object store.
	Location string `json:"location"`
	CreatedBy string `json:"created_by"`
}

// Client talks to the dataset service v1 API.
type Client struct {
	endpointV1 string
	client     *httpclient.Client
}

// New returns a dataset client.
func New(endpoint string, hc *httpclient.Client) *Client {
	return &Client{
		endpointV1: endpoint + "/v1/",
		client:     hc,
	}
}

// GetDatasetVersion returns one published dataset version.
func (c *Client) GetDatasetVersion(ctx context.Context, versionID uuid.UUID) (*Version, error) {
	u := c.endpointV1 + "dataset/versions/" + versionID.String() + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating request")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errtypes.NotFound("dataset version " + versionID.String())
	}
	if res.StatusCode != http.StatusOK {
		return nil, errtypes.InternalError("failed to get dataset version " + versionID.String())
	}

	var version Version
	if err := json.NewDecoder(res.Body).Decode(&version); err != nil {
		return nil, errors.Wrap(err, "error decoding dataset version")
	}
	return &version, nil
}
