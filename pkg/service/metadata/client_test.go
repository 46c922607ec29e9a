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

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotdataplatform/filecopy/pkg/errtypes"
	"github.com/pilotdataplatform/filecopy/pkg/httpclient"
	"github.com/pilotdataplatform/filecopy/pkg/models"
)

type fakeBlob struct {
	copies     []string
	downloads  []string
	multiparts []string
	version    string
	err        error
}

func (f *fakeBlob) Download(_ context.Context, bucket, key, filePath string) error {
	f.downloads = append(f.downloads, bucket+"/"+key)
	return f.err
}

func (f *fakeBlob) CopyObject(_ context.Context, dstBucket, dstKey, srcBucket, srcKey string) (string, error) {
	f.copies = append(f.copies, srcBucket+"/"+srcKey+" -> "+dstBucket+"/"+dstKey)
	return f.version, f.err
}

func (f *fakeBlob) MultipartUpload(_ context.Context, bucket, key, filePath string) (string, error) {
	f.multiparts = append(f.multiparts, bucket+"/"+key)
	return f.version, f.err
}

func (f *fakeBlob) Upload(_ context.Context, bucket, key, filePath string) (string, error) {
	return f.version, f.err
}

func result(v interface{}) []byte {
	data, _ := json.Marshal(map[string]interface{}{"result": v})
	return data
}

func newClient(t *testing.T, handler http.Handler) (*Client, *fakeBlob) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	blob := &fakeBlob{version: "v-1"}
	return New(srv.URL, httpclient.New(httpclient.Token("secret")), blob, "minio.internal:9000", "/tmp/filecopy"), blob
}

func TestGetItemsByIDs(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/items/batch/", r.URL.Path)
		assert.Equal(t, []string{"a", "b"}, r.URL.Query()["ids"])
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write(result([]*models.Node{{ID: "a", Name: "a.txt"}, {ID: "b", Name: "b"}}))
	}))

	nodes, err := c.GetItemsByIDs(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	assert.Equal(t, "a.txt", nodes["a"].Name)
}

func TestGetItemsByIDsMissingNode(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(result([]*models.Node{{ID: "a"}}))
	}))

	_, err := c.GetItemsByIDs(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Implements(t, (*errtypes.IsNotFound)(nil), err)
}

func TestRegisterNodeFileCollisionRetriesWithSuffix(t *testing.T) {
	var names []string
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		names = append(names, payload["name"].(string))

		if len(names) == 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.Write(result(&models.Node{ID: "new", Name: payload["name"].(string), Status: models.ItemStatusRegistered}))
	}))

	source := &models.Node{ID: "src", Name: "a.txt", Type: models.ResourceTypeFile}
	parent := &models.Node{ID: "dst", Name: "dst"}

	node, err := c.RegisterNode(context.Background(), "P", source, parent,
		models.ResourceTypeFile, models.ItemStatusRegistered, models.ZoneCore, WithCollisionSuffix(1660000000))
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "a_1660000000.txt"}, names)
	assert.Equal(t, "a_1660000000.txt", node.Name)
}

func TestRegisterNodeFileSecondCollisionFails(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	source := &models.Node{ID: "src", Name: "a.txt", Type: models.ResourceTypeFile}
	parent := &models.Node{ID: "dst", Name: "dst"}

	_, err := c.RegisterNode(context.Background(), "P", source, parent,
		models.ResourceTypeFile, models.ItemStatusRegistered, models.ZoneCore, WithCollisionSuffix(1660000000))
	require.Error(t, err)
	assert.Implements(t, (*errtypes.IsAlreadyExists)(nil), err)
}

func TestRegisterNodeFolderCollisionReusesExisting(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusConflict)
		case http.MethodGet:
			assert.Equal(t, "sub", r.URL.Query().Get("name"))
			assert.Equal(t, "admin/dst", r.URL.Query().Get("parent_path"))
			w.Write(result(&models.Node{ID: "existing", Name: "sub", Status: models.ItemStatusActive}))
		}
	}))

	source := &models.Node{ID: "src", Name: "sub", Type: models.ResourceTypeFolder}
	parent := &models.Node{ID: "dst", ParentPath: "admin", Name: "dst"}

	node, err := c.RegisterFolder(context.Background(), "P", source, parent, models.ZoneCore)
	require.NoError(t, err)
	assert.Equal(t, "existing", node.ID)
}

func TestUpdateCopiedFileNodeServerSideCopy(t *testing.T) {
	c, blob := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ACTIVE", payload["status"])
		assert.Equal(t, "v-1", payload["version"])
		assert.Equal(t, "minio://minio.internal:9000/core-P/admin/dst/a.txt", payload["location_uri"])

		w.Write(result(&models.Node{ID: "new", Name: "a.txt", ParentPath: "admin/dst", Status: models.ItemStatusActive}))
	}))

	source := &models.Node{
		ID: "src", Name: "a.txt", ParentPath: "admin/src", Type: models.ResourceTypeFile, Size: 10,
		Storage: models.Storage{LocationURI: "minio://minio.internal:9000/gr-P/admin/src/a.txt"},
	}
	registered := &models.Node{ID: "new", Name: "a.txt", ParentPath: "admin/dst", Status: models.ItemStatusRegistered}

	node, version, err := c.UpdateCopiedFileNode(context.Background(), "P", registered, source, []string{"copied-to-core"})
	require.NoError(t, err)
	assert.Equal(t, "v-1", version)
	assert.Equal(t, models.ItemStatusActive, node.Status)
	assert.Equal(t, []string{"gr-P/admin/src/a.txt -> core-P/admin/dst/a.txt"}, blob.copies)
	assert.Empty(t, blob.multiparts)
}

func TestUpdateCopiedFileNodeLargeFileUsesMultipart(t *testing.T) {
	c, blob := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(result(&models.Node{ID: "new", Status: models.ItemStatusActive}))
	}))

	source := &models.Node{
		ID: "src", Name: "big.bin", ParentPath: "admin/src", Type: models.ResourceTypeFile, Size: LargeFileThreshold,
		Storage: models.Storage{LocationURI: "minio://minio.internal:9000/gr-P/admin/src/big.bin"},
	}
	registered := &models.Node{ID: "new", Name: "big.bin", ParentPath: "admin/dst", Status: models.ItemStatusRegistered}

	_, _, err := c.UpdateCopiedFileNode(context.Background(), "P", registered, source, nil)
	require.NoError(t, err)
	assert.Empty(t, blob.copies)
	assert.Equal(t, []string{"gr-P/admin/src/big.bin"}, blob.downloads)
	assert.Equal(t, []string{"core-P/admin/dst/big.bin"}, blob.multiparts)
}

func TestMoveNodeToTrash(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "ARCHIVED", r.URL.Query().Get("status"))
		w.Write(result([]*models.Node{
			{ID: "sub", Type: models.ResourceTypeFolder, Status: models.ItemStatusArchived},
			{ID: "b", Type: models.ResourceTypeFile, Status: models.ItemStatusArchived},
		}))
	}))

	trashed, err := c.MoveNodeToTrash(context.Background(), "sub")
	require.NoError(t, err)
	assert.Len(t, trashed, 2)
	assert.Len(t, trashed.FilterFiles(), 1)
}

func TestRemoveRegisteredNodesSkipsPromoted(t *testing.T) {
	var deleted []string
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted = append(deleted, r.URL.Query().Get("id"))
		w.Write(result(nil))
	}))

	err := c.RemoveRegisteredNodes(context.Background(), map[string]*models.Node{
		"a": {ID: "reg-a", Status: models.ItemStatusRegistered},
		"b": {ID: "active-b", Status: models.ItemStatusActive},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"reg-a"}, deleted)
}

func TestGetNodesTree(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/item/root/":
			w.Write(result(&models.Node{ID: "root", Name: "src", ParentPath: "admin", Zone: models.ZoneGreenroom, ContainerCode: "P"}))
		case "/v1/items/search/":
			assert.Equal(t, "admin/src", r.URL.Query().Get("parent_path"))
			assert.Equal(t, "ACTIVE", r.URL.Query().Get("status"))
			assert.Equal(t, "false", r.URL.Query().Get("recursive"))
			w.Write(result([]*models.Node{{ID: "a"}, {ID: "sub"}}))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	nodes, err := c.GetNodesTree(context.Background(), "root", false)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].ID)
}

func TestRegisterNodesSharesCollisionTimestamp(t *testing.T) {
	var requests int
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write(result(&models.Node{ID: fmt.Sprintf("new-%d", requests), Name: payload["name"].(string), Status: models.ItemStatusRegistered}))
	}))

	parent := &models.Node{ID: "dst", Name: "dst"}
	plan := []*models.NodeToRegister{
		{Source: &models.Node{ID: "a", Name: "a.txt", Type: models.ResourceTypeFile}, DestinationParent: parent},
		{Source: &models.Node{ID: "b", Name: "b.txt", Type: models.ResourceTypeFile}, DestinationParent: parent},
	}

	registered, err := c.RegisterNodes(context.Background(), plan, "P", 1660000000)
	require.NoError(t, err)
	assert.Len(t, registered, 2)
	assert.Equal(t, 2, requests)
}
