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

	"github.com/pilotdataplatform/filecopy/pkg/activity"
	"github.com/pilotdataplatform/filecopy/pkg/appctx"
	"github.com/pilotdataplatform/filecopy/pkg/blobstore"
	"github.com/pilotdataplatform/filecopy/pkg/models"
)

// DeletePreparationManager walks the source subtree ahead of a delete and
// accumulates the write-lock set. It has no side effects in the metadata
// service.
type DeletePreparationManager struct {
	metadata     Tree
	includeIDs   map[string]struct{}
	sourceBucket string

	writeLockPaths []string
}

// NewDeletePreparation returns a preparation manager for a delete.
func NewDeletePreparation(md Tree, sourceBucket string, includeIDs []string) *DeletePreparationManager {
	return &DeletePreparationManager{
		metadata:     md,
		includeIDs:   toSet(includeIDs),
		sourceBucket: sourceBucket,
	}
}

// GetTree fetches one level of children under source.
func (m *DeletePreparationManager) GetTree(ctx context.Context, source *models.Node) (models.NodeList, error) {
	return m.metadata.GetNodesTree(ctx, source.ID, false)
}

// ExcludeNodes drops ids outside the explicit include set.
func (m *DeletePreparationManager) ExcludeNodes(nodes models.NodeList) map[string]struct{} {
	excluded := make(map[string]struct{})
	excludeByInclude(m.includeIDs, nodes.IDs(), excluded)
	return excluded
}

// ProcessFile records the file in the write-lock set.
func (m *DeletePreparationManager) ProcessFile(ctx context.Context, file, destination *models.Node) error {
	m.writeLockPaths = append(m.writeLockPaths, m.sourceBucket+"/"+file.DisplayPath())
	return nil
}

// ProcessFolder records the folder in the write-lock set. Delete has no
// destination tree, the recursion target passes through unchanged.
func (m *DeletePreparationManager) ProcessFolder(ctx context.Context, folder, destinationParent *models.Node) (*models.Node, error) {
	m.writeLockPaths = append(m.writeLockPaths, m.sourceBucket+"/"+folder.DisplayPath())
	return destinationParent, nil
}

// WriteLockPaths returns the lock keys of every visited node.
func (m *DeletePreparationManager) WriteLockPaths() []string { return m.writeLockPaths }

// DeleteMetadata is the slice of the metadata service the delete execute
// phase needs.
type DeleteMetadata interface {
	MoveNodeToTrash(ctx context.Context, id string) (models.NodeList, error)
}

// DedupCache evicts upload-dedup entries of archived nodes.
type DedupCache interface {
	Evict(ctx context.Context, node *models.Node) error
}

// BlobRemover deletes object bytes from the store.
type BlobRemover interface {
	Delete(ctx context.Context, bucket, key string) error
}

// DeleteManager runs the execute phase of a delete: recursive server-side
// archival per include id, one delete activity event and one dedup cache
// eviction per archived file.
type DeleteManager struct {
	metadata   DeleteMetadata
	cache      DedupCache
	producer   ActivityEmitter
	blob       BlobRemover
	operator   string
	includeIDs []string
}

// NewDelete returns an execute-phase delete manager. When blob is non-nil the
// object bytes of every archived file are removed from the store as well;
// otherwise archival is purely logical and the bytes stay restorable.
func NewDelete(md DeleteMetadata, cache DedupCache, producer ActivityEmitter, blob BlobRemover, operator string, includeIDs []string) *DeleteManager {
	return &DeleteManager{
		metadata:   md,
		cache:      cache,
		producer:   producer,
		blob:       blob,
		operator:   operator,
		includeIDs: includeIDs,
	}
}

// ArchiveNodes moves every include id into the trash bin recursively and
// emits the per-file fan-out for each archived file.
func (m *DeleteManager) ArchiveNodes(ctx context.Context) error {
	log := appctx.GetLogger(ctx)

	for _, id := range m.includeIDs {
		log.Info().Str("node_id", id).Msg("moving node into trash bin recursively")

		trashed, err := m.metadata.MoveNodeToTrash(ctx, id)
		if err != nil {
			return err
		}

		for _, archived := range trashed.FilterFiles() {
			if err := m.producer.EmitFileOperation(ctx, activity.TypeDelete, archived, m.operator, nil); err != nil {
				return err
			}
			if err := m.cache.Evict(ctx, archived); err != nil {
				return err
			}
			if err := m.removeObjectData(ctx, archived); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *DeleteManager) removeObjectData(ctx context.Context, archived *models.Node) error {
	if m.blob == nil {
		return nil
	}
	loc, err := blobstore.ParseLocation(archived.Storage.LocationURI)
	if err != nil {
		return err
	}
	return m.blob.Delete(ctx, loc.Bucket, loc.Key)
}
