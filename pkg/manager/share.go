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

package manager

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/appctx"
	"github.com/pilotdataplatform/filecopy/pkg/models"
	"github.com/pilotdataplatform/filecopy/pkg/service/metadata"
)

// ShareMetadata is the slice of the metadata service the dataset share
// needs: node registration plus location rendering.
type ShareMetadata interface {
	RegisterFolder(ctx context.Context, project string, source, parent *models.Node, zone models.ZoneType) (*models.Node, error)
	RegisterNode(ctx context.Context, project string, source, parent *models.Node, itemType models.ResourceType, status models.ItemStatus, zone models.ZoneType, opts ...metadata.RegisterOption) (*models.Node, error)
	FormatLocation(project string, zone models.ZoneType, displayPath string) string
}

// Uploader writes a local file into the object store.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, filePath string) (string, error)
}

// ShareDatasetManager imports an extracted dataset version archive into a
// project zone. The walk runs over the local filesystem: each directory is
// presented as a synthetic node whose path fields hold the local path.
type ShareDatasetManager struct {
	metadata ShareMetadata
	blob     Uploader
	project  string
	zone     models.ZoneType
	operator string
}

// NewShareDataset returns a manager importing into the given project zone.
func NewShareDataset(md ShareMetadata, blob Uploader, project string, zone models.ZoneType, operator string) *ShareDatasetManager {
	return &ShareDatasetManager{
		metadata: md,
		blob:     blob,
		project:  project,
		zone:     zone,
		operator: operator,
	}
}

// localPath joins the path fields without the leading-slash trimming that
// DisplayPath applies, so absolute extraction directories stay intact.
func localPath(node *models.Node) string {
	if node.ParentPath == "" {
		return node.Name
	}
	return node.ParentPath + "/" + node.Name
}

// GetTree lists one level of the extracted archive as synthetic nodes.
func (m *ShareDatasetManager) GetTree(ctx context.Context, source *models.Node) (models.NodeList, error) {
	dir := localPath(source)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "error reading extracted dataset directory")
	}

	nodes := make(models.NodeList, 0, len(entries))
	for _, entry := range entries {
		node := &models.Node{
			Name:       entry.Name(),
			ParentPath: dir,
			Owner:      m.operator,
			Type:       models.ResourceTypeFolder,
		}
		if !entry.IsDir() {
			info, err := entry.Info()
			if err != nil {
				return nil, errors.Wrapf(err, "error reading extracted dataset file %q", entry.Name())
			}
			node.Type = models.ResourceTypeFile
			node.Size = info.Size()
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ExcludeNodes excludes nothing; the whole archive is imported.
func (m *ShareDatasetManager) ExcludeNodes(nodes models.NodeList) map[string]struct{} {
	return map[string]struct{}{}
}

// ProcessFile uploads the local file and registers it as an ACTIVE item
// with the uploaded object location.
func (m *ShareDatasetManager) ProcessFile(ctx context.Context, file, destination *models.Node) error {
	log := appctx.GetLogger(ctx)

	bucket := "gr-" + m.project
	if m.zone == models.ZoneCore {
		bucket = "core-" + m.project
	}
	key := destination.DisplayPath() + "/" + file.Name

	log.Info().Str("file", localPath(file)).Str("object", bucket+"/"+key).Msg("uploading dataset version file")

	versionID, err := m.blob.Upload(ctx, bucket, key, localPath(file))
	if err != nil {
		return err
	}

	location := m.metadata.FormatLocation(m.project, m.zone, key)
	_, err = m.metadata.RegisterNode(ctx, m.project, file, destination, models.ResourceTypeFile, models.ItemStatusActive, m.zone,
		metadata.WithLocation(location, versionID))
	return err
}

// ProcessFolder registers the folder in the destination and returns it as
// the recursion target.
func (m *ShareDatasetManager) ProcessFolder(ctx context.Context, folder, destinationParent *models.Node) (*models.Node, error) {
	return m.metadata.RegisterFolder(ctx, m.project, folder, destinationParent, m.zone)
}
