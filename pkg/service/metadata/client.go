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

// Package metadata is the typed client for the metadata service, the
// authoritative registry of items in a project's hierarchical namespace.
// It also owns the byte-movement step of a file copy because promoting a
// registered placeholder to ACTIVE and copying its object data form one
// logical operation.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/appctx"
	"github.com/pilotdataplatform/filecopy/pkg/blobstore"
	"github.com/pilotdataplatform/filecopy/pkg/errtypes"
	"github.com/pilotdataplatform/filecopy/pkg/httpclient"
	"github.com/pilotdataplatform/filecopy/pkg/models"
)

// LargeFileThreshold is the source size in bytes above which a server-side
// copy is replaced by download plus multipart upload. The store rejects
// single-call copies of larger objects.
const LargeFileThreshold = int64(5e9)

// ObjectCopier is the subset of the blobstore the client needs to move
// object data during a copy.
type ObjectCopier interface {
	Download(ctx context.Context, bucket, key, filePath string) error
	CopyObject(ctx context.Context, dstBucket, dstKey, srcBucket, srcKey string) (string, error)
	MultipartUpload(ctx context.Context, bucket, key, filePath string) (string, error)
	Upload(ctx context.Context, bucket, key, filePath string) (string, error)
}

// Client talks to the metadata service v1 API.
type Client struct {
	endpointV1    string
	client        *httpclient.Client
	blob          ObjectCopier
	minioEndpoint string
	tempDir       string
}

// New returns a metadata client. The minio endpoint is used to render the
// location uri of promoted items, tempDir is the scratch space for
// large-file copies.
func New(endpoint string, hc *httpclient.Client, blob ObjectCopier, minioEndpoint, tempDir string) *Client {
	return &Client{
		endpointV1:    endpoint + "/v1/",
		client:        hc,
		blob:          blob,
		minioEndpoint: minioEndpoint,
		tempDir:       tempDir,
	}
}

type resultEnvelope struct {
	Result json.RawMessage `json:"result"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	u := c.endpointV1 + path
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

func decodeResult(res *http.Response, out interface{}) error {
	defer res.Body.Close()

	var envelope resultEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return errors.Wrap(err, "error decoding response")
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(envelope.Result, out), "error decoding result")
}

// GetItemByID returns a single node.
func (c *Client) GetItemByID(ctx context.Context, id string) (*models.Node, error) {
	nodes, err := c.GetItemsByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return nodes[id], nil
}

// GetItemsByIDs returns the nodes for all given ids, keyed by id. Missing
// ids are an error: the caller asked for nodes it believes exist.
func (c *Client) GetItemsByIDs(ctx context.Context, ids []string) (map[string]*models.Node, error) {
	query := url.Values{}
	for _, id := range ids {
		query.Add("ids", id)
	}

	res, err := c.do(ctx, http.MethodGet, "items/batch/", query, nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, errtypes.InternalError(fmt.Sprintf("unable to get nodes by ids %v", ids))
	}

	var list models.NodeList
	if err := decodeResult(res, &list); err != nil {
		return nil, err
	}
	if len(list) != len(ids) {
		return nil, errtypes.NotFound(fmt.Sprintf("number of returned nodes does not match number of requested ids %v", ids))
	}

	nodes := make(map[string]*models.Node, len(list))
	for _, n := range list {
		nodes[n.ID] = n
	}
	return nodes, nil
}

// GetNodesTree returns the ACTIVE children under the given folder, one level
// deep unless recursive is set. Order is the one the service returns.
func (c *Client) GetNodesTree(ctx context.Context, startFolderID string, recursive bool) (models.NodeList, error) {
	res, err := c.do(ctx, http.MethodGet, "item/"+startFolderID+"/", nil, nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, errtypes.InternalError("unable to get parent folder starting from " + startFolderID)
	}

	var parent models.Node
	if err := decodeResult(res, &parent); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("status", string(models.ItemStatusActive))
	query.Set("zone", strconv.Itoa(int(parent.Zone)))
	query.Set("container_code", parent.ContainerCode)
	query.Set("parent_path", parent.DisplayPath())
	query.Set("recursive", strconv.FormatBool(recursive))
	query.Set("page_size", "1000")

	res, err = c.do(ctx, http.MethodGet, "items/search/", query, nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, errtypes.InternalError("unable to get nodes tree starting from " + startFolderID)
	}

	var nodes models.NodeList
	if err := decodeResult(res, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// UpdateNode applies a partial update to a node.
func (c *Client) UpdateNode(ctx context.Context, node *models.Node, update map[string]interface{}) error {
	query := url.Values{}
	query.Set("id", node.ID)

	res, err := c.do(ctx, http.MethodPut, "item/", query, update)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return errtypes.InternalError("unable to update node with node id " + node.ID)
	}
	return nil
}

// UpdateCopiedFileNode copies the object data of sourceFile and promotes the
// registered placeholder to ACTIVE with the destination location and the new
// object version. Returns the promoted node and the version id.
func (c *Client) UpdateCopiedFileNode(ctx context.Context, project string, node, sourceFile *models.Node, systemTags []string) (*models.Node, string, error) {
	location := c.FormatLocation(project, models.ZoneCore, node.DisplayPath())

	src, err := blobstore.ParseLocation(sourceFile.Storage.LocationURI)
	if err != nil {
		return nil, "", err
	}
	dst, err := blobstore.ParseLocation(location)
	if err != nil {
		return nil, "", err
	}

	versionID, err := c.copyObjectData(ctx, sourceFile, src, dst)
	if err != nil {
		return nil, "", err
	}

	payload := map[string]interface{}{
		"status":       models.ItemStatusActive,
		"location_uri": location,
		"system_tags":  systemTags,
		"version":      versionID,
	}

	query := url.Values{}
	query.Set("id", node.ID)

	res, err := c.do(ctx, http.MethodPut, "item/", query, payload)
	if err != nil {
		return nil, "", err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, "", errtypes.InternalError("unable to update node with node id " + node.ID)
	}

	var updated models.Node
	if err := decodeResult(res, &updated); err != nil {
		return nil, "", err
	}
	return &updated, versionID, nil
}

func (c *Client) copyObjectData(ctx context.Context, sourceFile *models.Node, src, dst *blobstore.Location) (string, error) {
	log := appctx.GetLogger(ctx)

	if sourceFile.Size < LargeFileThreshold {
		log.Info().Str("source", src.Bucket+"/"+src.Key).Str("destination", dst.Bucket+"/"+dst.Key).Msg("copying object server-side")
		return c.blob.CopyObject(ctx, dst.Bucket, dst.Key, src.Bucket, src.Key)
	}

	tempPath := fmt.Sprintf("%s%d", c.tempDir, models.Timestamp())
	tempFilePath := tempPath + "/" + sourceFile.Name
	defer os.RemoveAll(tempPath)

	log.Info().Str("source", src.Bucket+"/"+src.Key).Str("temp", tempFilePath).Msg("copying object through local disk")
	if err := c.blob.Download(ctx, src.Bucket, src.Key, tempFilePath); err != nil {
		return "", err
	}
	return c.blob.MultipartUpload(ctx, dst.Bucket, dst.Key, tempFilePath)
}

type registerOptions struct {
	suffix   string
	location string
	version  string
}

// RegisterOption tweaks a node registration.
type RegisterOption func(*registerOptions)

// WithCollisionSuffix sets the timestamp suffix appended to a file name on
// the single retry after a name collision.
func WithCollisionSuffix(ts int64) RegisterOption {
	return func(o *registerOptions) {
		o.suffix = strconv.FormatInt(ts, 10)
	}
}

// WithLocation sets the storage location of the registered node. Used by the
// dataset share, which uploads the bytes before registering the item.
func WithLocation(locationURI, version string) RegisterOption {
	return func(o *registerOptions) {
		o.location = locationURI
		o.version = version
	}
}

// RegisterNode creates a node under parent in the given zone. A 409 for a
// file triggers one retry with the suffix appended before the extension; a
// second collision is fatal. A 409 for a folder resolves to the existing
// folder under the same parent.
func (c *Client) RegisterNode(ctx context.Context, project string, source, parent *models.Node, itemType models.ResourceType, status models.ItemStatus, zone models.ZoneType, opts ...RegisterOption) (*models.Node, error) {
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	payload := map[string]interface{}{
		"parent":         parent.ID,
		"parent_path":    parent.DisplayPath(),
		"type":           itemType,
		"zone":           zone,
		"name":           source.Name,
		"size":           source.Size,
		"owner":          source.Owner,
		"container_code": project,
		"container_type": "project",
		"tags":           source.Tags(),
		"status":         status,
	}
	if o.location != "" {
		payload["location_uri"] = o.location
		payload["version"] = o.version
	}
	if attributes := source.Attributes(); len(attributes) > 0 {
		for templateID, values := range attributes {
			payload["attribute_template_id"] = templateID
			payload["attributes"] = values
			break
		}
	}

	res, err := c.do(ctx, http.MethodPost, "item/", nil, payload)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusConflict {
		res.Body.Close()

		if itemType == models.ResourceTypeFolder {
			return c.GetNodeByFullPath(ctx, source.Name, parent.DisplayPath(), project, zone)
		}

		if o.suffix == "" {
			return nil, errtypes.AlreadyExists(source.Name)
		}
		payload["name"] = models.AppendSuffix(source.Name, o.suffix)
		res, err = c.do(ctx, http.MethodPost, "item/", nil, payload)
		if err != nil {
			return nil, err
		}
		if res.StatusCode == http.StatusConflict {
			res.Body.Close()
			return nil, errtypes.AlreadyExists(fmt.Sprintf("%v", payload["name"]))
		}
	}

	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, errtypes.InternalError(fmt.Sprintf("unable to register node %q under %q", source.Name, parent.DisplayPath()))
	}

	var node models.Node
	if err := decodeResult(res, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// RegisterFolder creates an ACTIVE folder node.
func (c *Client) RegisterFolder(ctx context.Context, project string, source, parent *models.Node, zone models.ZoneType) (*models.Node, error) {
	return c.RegisterNode(ctx, project, source, parent, models.ResourceTypeFolder, models.ItemStatusActive, zone)
}

// RegisterNodes registers a placeholder file node for every pair of the
// prepared plan and returns them keyed by source id. Placeholders share one
// collision timestamp so a rerun of the same job produces the same names.
func (c *Client) RegisterNodes(ctx context.Context, plan []*models.NodeToRegister, project string, ts int64) (map[string]*models.Node, error) {
	registered := make(map[string]*models.Node, len(plan))
	for _, pair := range plan {
		node, err := c.RegisterNode(ctx, project, pair.Source, pair.DestinationParent,
			models.ResourceTypeFile, models.ItemStatusRegistered, models.ZoneCore, WithCollisionSuffix(ts))
		if err != nil {
			return registered, errors.Wrap(err, "unable to register nodes")
		}
		registered[pair.Source.ID] = node
	}
	return registered, nil
}

// GetNameFolder returns the ACTIVE name folder of a user in the given zone.
func (c *Client) GetNameFolder(ctx context.Context, username, project string, zone models.ZoneType) (*models.Node, error) {
	query := url.Values{}
	query.Set("name", username)
	query.Set("container_code", project)
	query.Set("container_type", "project")
	query.Set("zone", strconv.Itoa(int(zone)))
	query.Set("status", string(models.ItemStatusActive))

	res, err := c.do(ctx, http.MethodGet, "item/", query, nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, errtypes.NotFound(fmt.Sprintf("folder %s/%d/%s does not exist", project, zone, username))
	}

	var node models.Node
	if err := decodeResult(res, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// GetNodeByFullPath returns the ACTIVE node with the given name under
// parentPath.
func (c *Client) GetNodeByFullPath(ctx context.Context, name, parentPath, project string, zone models.ZoneType) (*models.Node, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("parent_path", parentPath)
	query.Set("container_code", project)
	query.Set("container_type", "project")
	query.Set("zone", strconv.Itoa(int(zone)))
	query.Set("status", string(models.ItemStatusActive))

	res, err := c.do(ctx, http.MethodGet, "item/", query, nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, errtypes.NotFound(fmt.Sprintf("item %s/%s does not exist", parentPath, name))
	}

	var node models.Node
	if err := decodeResult(res, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// MoveNodeToTrash archives a node and its whole subtree server-side and
// returns the archived nodes.
func (c *Client) MoveNodeToTrash(ctx context.Context, id string) (models.NodeList, error) {
	query := url.Values{}
	query.Set("id", id)
	query.Set("status", string(models.ItemStatusArchived))

	res, err := c.do(ctx, http.MethodPatch, "item/", query, nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, errtypes.InternalError("unable to patch node with node id " + id)
	}

	var trashed models.NodeList
	if err := decodeResult(res, &trashed); err != nil {
		return nil, err
	}
	return trashed, nil
}

// RemoveRegisteredNodes deletes every placeholder that is still in
// REGISTERED state. Promoted nodes are left alone; they are valid content.
func (c *Client) RemoveRegisteredNodes(ctx context.Context, registered map[string]*models.Node) error {
	for _, node := range registered {
		if node.Status != models.ItemStatusRegistered {
			continue
		}

		query := url.Values{}
		query.Set("id", node.ID)

		res, err := c.do(ctx, http.MethodDelete, "item/", query, nil)
		if err != nil {
			return err
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return errtypes.InternalError("unable to delete node with node id " + node.ID)
		}
	}
	return nil
}

// FormatLocation renders the location uri for an object path in the given
// project zone.
func (c *Client) FormatLocation(project string, zone models.ZoneType, displayPath string) string {
	bucket := "gr-" + project
	if zone == models.ZoneCore {
		bucket = "core-" + project
	}
	return blobstore.FormatLocation(c.minioEndpoint, bucket, displayPath)
}
