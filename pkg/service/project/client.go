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

// Package project is the typed client for the project service.
package project

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/errtypes"
	"github.com/pilotdataplatform/filecopy/pkg/httpclient"
)

// Project is the container every pipeline operation runs against.
type Project struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Client talks to the project service v1 API.
type Client struct {
	endpointV1 string
	client     *httpclient.Client
}

// New returns a project client.
func New(endpoint string, hc *httpclient.Client) *Client {
	return &Client{
		endpointV1: endpoint + "/v1/",
		client:     hc,
	}
}

// GetProjectByCode returns the project with the given code.
func (c *Client) GetProjectByCode(ctx context.Context, code string) (*Project, error) {
	u := c.endpointV1 + "projects/" + code + "/"
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
		return nil, errtypes.NotFound("unable to get project by code " + code)
	}
	if res.StatusCode != http.StatusOK {
		return nil, errtypes.InternalError("unable to get project by code " + code)
	}

	var project Project
	if err := json.NewDecoder(res.Body).Decode(&project); err != nil {
		return nil, errors.Wrap(err, "error decoding project")
	}
	return &project, nil
}
