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
	"github.com/pilotdataplatform/filecopy/pkg/models"
)

// CopyPreparationMetadata is the slice of the metadata service the copy
// preparation needs: the tree walk plus eager destination folder creation.
type CopyPreparationMetadata interface {
	Tree
	RegisterFolder(ctx context.Context, project string, source, parent *models.Node, zone models.ZoneType) (*models.Node, error)
}

// CopyPreparationManager walks the source subtree ahead of a copy. It
// accumulates the read-lock set and the file registration plan, and eagerly
// creates destination folders so the walk can recurse into them. Folder
// creation is idempotent; a name collision resolves to the existing folder.
type CopyPreparationManager struct {
	metadata     CopyPreparationMetadata
	approved     map[string]struct{}
	includeIDs   map[string]struct{}
	project      string
	sourceBucket string

	plan          []*models.NodeToRegister
	sourceFiles   map[string]*models.Node
	sourceFolders map[string]*models.Node
	readLockPaths []string
}

// NewCopyPreparation returns a preparation manager. A nil approvedEntities
// slice means no approval gate; an empty one approves nothing.
func NewCopyPreparation(md CopyPreparationMetadata, project, sourceBucket string, approvedEntities, includeIDs []string) *CopyPreparationManager {
	return &CopyPreparationManager{
		metadata:      md,
		approved:      toSet(approvedEntities),
		includeIDs:    toSet(includeIDs),
		project:       project,
		sourceBucket:  sourceBucket,
		sourceFiles:   make(map[string]*models.Node),
		sourceFolders: make(map[string]*models.Node),
	}
}

// GetTree fetches one level of children under source.
func (m *CopyPreparationManager) GetTree(ctx context.Context, source *models.Node) (models.NodeList, error) {
	return m.metadata.GetNodesTree(ctx, source.ID, false)
}

// ExcludeNodes drops ids outside the approval gate and ids outside the
// explicit include set. The two filters compose by intersection.
func (m *CopyPreparationManager) ExcludeNodes(nodes models.NodeList) map[string]struct{} {
	ids := nodes.IDs()
	excluded := make(map[string]struct{})
	if m.approved != nil {
		excludeMissing(m.approved, ids, excluded)
	}
	excludeByInclude(m.includeIDs, ids, excluded)
	return excluded
}

func (m *CopyPreparationManager) isApproved(node *models.Node) bool {
	if m.approved == nil {
		return true
	}
	_, ok := m.approved[node.ID]
	return ok
}

// ProcessFile records the file in the registration plan and the lock set.
func (m *CopyPreparationManager) ProcessFile(ctx context.Context, file, destination *models.Node) error {
	if !m.isApproved(file) {
		return nil
	}

	log := appctx.GetLogger(ctx)
	log.Info().Str("file", file.String()).Str("destination", destination.String()).Msg("preparing file copy")

	m.readLockPaths = append(m.readLockPaths, m.sourceBucket+"/"+file.DisplayPath())
	m.plan = append(m.plan, &models.NodeToRegister{Source: file, DestinationParent: destination})
	m.sourceFiles[file.ID] = file
	return nil
}

// ProcessFolder creates the destination counterpart as an ACTIVE folder and
// returns it as the recursion target.
func (m *CopyPreparationManager) ProcessFolder(ctx context.Context, folder, destinationParent *models.Node) (*models.Node, error) {
	log := appctx.GetLogger(ctx)
	log.Info().Str("folder", folder.String()).Str("destination_parent", destinationParent.String()).Msg("preparing folder copy")

	node, err := m.metadata.RegisterFolder(ctx, m.project, folder, destinationParent, models.ZoneCore)
	if err != nil {
		return nil, err
	}

	m.sourceFolders[folder.ID] = folder
	m.readLockPaths = append(m.readLockPaths, m.sourceBucket+"/"+folder.DisplayPath())
	return node, nil
}

// Plan returns the accumulated file registrations in visit order.
func (m *CopyPreparationManager) Plan() []*models.NodeToRegister { return m.plan }

// SourceFiles returns the visited files keyed by id.
func (m *CopyPreparationManager) SourceFiles() map[string]*models.Node { return m.sourceFiles }

// SourceFolders returns the visited folders keyed by id.
func (m *CopyPreparationManager) SourceFolders() map[string]*models.Node { return m.sourceFolders }

// ReadLockPaths returns the lock keys of every visited node.
func (m *CopyPreparationManager) ReadLockPaths() []string { return m.readLockPaths }

// CopyMetadata is the slice of the metadata service the execute phase
// needs: byte movement with promotion plus partial node updates.
type CopyMetadata interface {
	UpdateCopiedFileNode(ctx context.Context, project string, node, sourceFile *models.Node, systemTags []string) (*models.Node, string, error)
	UpdateNode(ctx context.Context, node *models.Node, update map[string]interface{}) error
}

// PreviewStore transfers cached zip previews from source to copied items.
type PreviewStore interface {
	GetZipPreview(ctx context.Context, fileID string) (map[string]interface{}, error)
	CreateZipPreview(ctx context.Context, fileID string, archivePreview interface{}) error
}

// CopyApproval updates the per-entity copy status of an approval request.
type CopyApproval interface {
	UpdateCopyStatus(ctx context.Context, entityID string) error
}

// CopyManager runs the execute phase of a copy over the plan the
// preparation produced.
type CopyManager struct {
	metadata   CopyMetadata
	previews   PreviewStore
	approval   CopyApproval
	producer   ActivityEmitter
	systemTags []string
	project    string
	operator   string
}

// NewCopy returns an execute-phase copy manager. approval may be nil when
// the copy is not gated by an approval request.
func NewCopy(md CopyMetadata, previews PreviewStore, approval CopyApproval, producer ActivityEmitter, systemTags []string, project, operator string) *CopyManager {
	return &CopyManager{
		metadata:   md,
		previews:   previews,
		approval:   approval,
		producer:   producer,
		systemTags: systemTags,
		project:    project,
		operator:   operator,
	}
}

// ProcessFiles copies and promotes every planned file in plan order. The
// registered map is updated in place with the promoted nodes so the
// rollback sweep sees their ACTIVE status.
func (m *CopyManager) ProcessFiles(ctx context.Context, plan []*models.NodeToRegister, registered map[string]*models.Node) error {
	for _, pair := range plan {
		source := pair.Source
		promoted, err := m.processFile(ctx, source, registered[source.ID])
		if err != nil {
			return err
		}
		registered[source.ID] = promoted
	}
	return nil
}

func (m *CopyManager) processFile(ctx context.Context, source, placeholder *models.Node) (*models.Node, error) {
	log := appctx.GetLogger(ctx)
	log.Info().Str("source", source.String()).Str("placeholder", placeholder.String()).Msg("copying file")

	promoted, versionID, err := m.metadata.UpdateCopiedFileNode(ctx, m.project, placeholder, source, m.systemTags)
	if err != nil {
		return nil, err
	}

	if err := m.transferZipPreview(ctx, source.ID, promoted.ID); err != nil {
		return nil, err
	}

	update := map[string]interface{}{
		"system_tags": m.systemTags,
		"version":     versionID,
	}
	if err := m.metadata.UpdateNode(ctx, source, update); err != nil {
		return nil, err
	}

	if err := m.producer.EmitFileOperation(ctx, activity.TypeCopy, source, m.operator, promoted); err != nil {
		return nil, err
	}

	if m.approval != nil {
		if err := m.approval.UpdateCopyStatus(ctx, source.ID); err != nil {
			return nil, err
		}
	}
	return promoted, nil
}

// transferZipPreview carries the cached archive preview over to the copy.
func (m *CopyManager) transferZipPreview(ctx context.Context, sourceID, destinationID string) error {
	preview, err := m.previews.GetZipPreview(ctx, sourceID)
	if err != nil {
		return err
	}
	if preview == nil {
		return nil
	}
	return m.previews.CreateZipPreview(ctx, destinationID, preview["archive_preview"])
}

// ProcessFolders rewrites the system tags on every visited source folder.
func (m *CopyManager) ProcessFolders(ctx context.Context, sourceFolders map[string]*models.Node) error {
	update := map[string]interface{}{"system_tags": m.systemTags}
	for _, folder := range sourceFolders {
		if err := m.metadata.UpdateNode(ctx, folder, update); err != nil {
			return err
		}
	}
	return nil
}
