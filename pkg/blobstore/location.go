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

package blobstore

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Location is a parsed object-store reference of the form
// <scheme>://<endpoint>/<bucket>/<object-path>.
type Location struct {
	Endpoint string
	Bucket   string
	Key      string
}

// ParseLocation splits a location uri into its endpoint, bucket and object
// path.
func ParseLocation(uri string) (*Location, error) {
	_, rest, ok := strings.Cut(uri, "//")
	if !ok {
		return nil, errors.Errorf("malformed location uri %q", uri)
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return nil, errors.Errorf("malformed location uri %q", uri)
	}

	return &Location{
		Endpoint: parts[0],
		Bucket:   parts[1],
		Key:      parts[2],
	}, nil
}

// FormatLocation renders the canonical minio:// location uri for an object.
func FormatLocation(endpoint, bucket, key string) string {
	return fmt.Sprintf("minio://%s/%s/%s", endpoint, bucket, key)
}
