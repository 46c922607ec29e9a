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

package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotdataplatform/filecopy/pkg/errtypes"
	"github.com/pilotdataplatform/filecopy/pkg/httpclient"
)

func TestGetDatasetVersion(t *testing.T) {
	versionID := uuid.MustParse("e6b9448a-f263-46e5-9e3f-2d0e68bd977c")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/dataset/versions/"+versionID.String()+"/", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{
			"id": "` + versionID.String() + `",
			"dataset_code": "dataset",
			"version": "1.0",
			"location": "minio://minio:9000/bucket-dataset/versions/snapshot.zip",
			"created_by": "admin"
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, httpclient.New())
	version, err := c.GetDatasetVersion(context.Background(), versionID)
	require.NoError(t, err)

	assert.Equal(t, "dataset", version.DatasetCode)
	assert.Equal(t, "1.0", version.Version)
	assert.Equal(t, "minio://minio:9000/bucket-dataset/versions/snapshot.zip", version.Location)
}

func TestGetDatasetVersionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, httpclient.New())
	_, err := c.GetDatasetVersion(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Implements(t, (*errtypes.IsNotFound)(nil), err)
}
