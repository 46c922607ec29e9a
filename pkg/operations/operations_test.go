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

package operations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/activity"
	"github.com/pilotdataplatform/filecopy/pkg/errtypes"
	"github.com/pilotdataplatform/filecopy/pkg/manager"
	"github.com/pilotdataplatform/filecopy/pkg/models"
	"github.com/pilotdataplatform/filecopy/pkg/service/dataops"
	"github.com/pilotdataplatform/filecopy/pkg/service/dataset"
	"github.com/pilotdataplatform/filecopy/pkg/service/metadata"
	"github.com/pilotdataplatform/filecopy/pkg/service/project"

	"github.com/google/uuid"
)

type fakeMetadata struct {
	items       map[string]*models.Node
	trees       map[string]models.NodeList
	trashed     map[string]models.NodeList
	nameFolders map[string]*models.Node

	failCopyOf string

	folders    []string
	registered map[string]*models.Node
	updates    map[string][]map[string]interface{}
	trashCalls []string
	swept      []string
	shared     []string
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{
		items:       map[string]*models.Node{},
		trees:       map[string]models.NodeList{},
		trashed:     map[string]models.NodeList{},
		nameFolders: map[string]*models.Node{},
		registered:  map[string]*models.Node{},
		updates:     map[string][]map[string]interface{}{},
	}
}

func (f *fakeMetadata) GetNodesTree(ctx context.Context, startFolderID string, recursive bool) (models.NodeList, error) {
	return f.trees[startFolderID], nil
}

func (f *fakeMetadata) GetItemByID(ctx context.Context, id string) (*models.Node, error) {
	node, ok := f.items[id]
	if !ok {
		return nil, errtypes.NotFound(id)
	}
	return node, nil
}

func (f *fakeMetadata) GetItemsByIDs(ctx context.Context, ids []string) (map[string]*models.Node, error) {
	nodes := make(map[string]*models.Node, len(ids))
	for _, id := range ids {
		node, ok := f.items[id]
		if !ok {
			return nil, errtypes.NotFound(id)
		}
		nodes[id] = node
	}
	return nodes, nil
}

func (f *fakeMetadata) RegisterFolder(ctx context.Context, project string, source, parent *models.Node, zone models.ZoneType) (*models.Node, error) {
	node := &models.Node{
		ID:         "dst-" + source.Name,
		ParentPath: parent.DisplayPath(),
		Name:       source.Name,
		Type:       models.ResourceTypeFolder,
		Status:     models.ItemStatusActive,
		Zone:       zone,
	}
	f.folders = append(f.folders, node.DisplayPath())
	return node, nil
}

func (f *fakeMetadata) RegisterNode(ctx context.Context, project string, source, parent *models.Node, itemType models.ResourceType, status models.ItemStatus, zone models.ZoneType, opts ...metadata.RegisterOption) (*models.Node, error) {
	f.shared = append(f.shared, parent.DisplayPath()+"/"+source.Name)
	return &models.Node{
		ID:         "shared-" + source.Name,
		ParentPath: parent.DisplayPath(),
		Name:       source.Name,
		Type:       itemType,
		Status:     status,
		Zone:       zone,
	}, nil
}

func (f *fakeMetadata) RegisterNodes(ctx context.Context, plan []*models.NodeToRegister, project string, ts int64) (map[string]*models.Node, error) {
	registered := make(map[string]*models.Node, len(plan))
	for _, pair := range plan {
		node := &models.Node{
			ID:         "reg-" + pair.Source.ID,
			ParentPath: pair.DestinationParent.DisplayPath(),
			Name:       pair.Source.Name,
			Type:       models.ResourceTypeFile,
			Status:     models.ItemStatusRegistered,
			Zone:       models.ZoneCore,
		}
		registered[pair.Source.ID] = node
		f.registered[pair.Source.ID] = node
	}
	return registered, nil
}

func (f *fakeMetadata) RemoveRegisteredNodes(ctx context.Context, registered map[string]*models.Node) error {
	for _, node := range registered {
		if node.Status == models.ItemStatusRegistered {
			f.swept = append(f.swept, node.ID)
		}
	}
	return nil
}

func (f *fakeMetadata) UpdateCopiedFileNode(ctx context.Context, project string, node, sourceFile *models.Node, systemTags []string) (*models.Node, string, error) {
	if sourceFile.ID == f.failCopyOf {
		return nil, "", errors.New("object copy failed")
	}
	promoted := *node
	promoted.Status = models.ItemStatusActive
	return &promoted, "v-" + sourceFile.ID, nil
}

func (f *fakeMetadata) UpdateNode(ctx context.Context, node *models.Node, update map[string]interface{}) error {
	f.updates[node.ID] = append(f.updates[node.ID], update)
	return nil
}

func (f *fakeMetadata) MoveNodeToTrash(ctx context.Context, id string) (models.NodeList, error) {
	f.trashCalls = append(f.trashCalls, id)
	return f.trashed[id], nil
}

func (f *fakeMetadata) GetNameFolder(ctx context.Context, username, project string, zone models.ZoneType) (*models.Node, error) {
	node, ok := f.nameFolders[username]
	if !ok {
		return nil, errtypes.NotFound(username)
	}
	return node, nil
}

func (f *fakeMetadata) FormatLocation(project string, zone models.ZoneType, displayPath string) string {
	return "minio://minio:9000/" + zoneBucket(project, zone) + "/" + displayPath
}

type fakeDataops struct {
	failLock bool

	locked   [][]string
	unlocked [][]string
	lockOps  []models.LockOperation
	jobs     []dataops.Job
	statuses []models.JobStatus
	previews map[string]interface{}
	created  map[string]interface{}
}

func (f *fakeDataops) LockResources(ctx context.Context, resourceKeys []string, operation models.LockOperation) error {
	if f.failLock {
		return errtypes.InternalError("lock contention")
	}
	f.locked = append(f.locked, resourceKeys)
	f.lockOps = append(f.lockOps, operation)
	return nil
}

func (f *fakeDataops) UnlockResources(ctx context.Context, resourceKeys []string, operation models.LockOperation) error {
	f.unlocked = append(f.unlocked, resourceKeys)
	return nil
}

func (f *fakeDataops) UpdateJob(ctx context.Context, job dataops.Job, status models.JobStatus) error {
	f.jobs = append(f.jobs, job)
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeDataops) GetZipPreview(ctx context.Context, fileID string) (map[string]interface{}, error) {
	preview, ok := f.previews[fileID]
	if !ok {
		return nil, nil
	}
	return map[string]interface{}{"archive_preview": preview}, nil
}

func (f *fakeDataops) CreateZipPreview(ctx context.Context, fileID string, archivePreview interface{}) error {
	if f.created == nil {
		f.created = map[string]interface{}{}
	}
	f.created[fileID] = archivePreview
	return nil
}

type fakeDatasets struct {
	version *dataset.Version
}

func (f *fakeDatasets) GetDatasetVersion(ctx context.Context, versionID uuid.UUID) (*dataset.Version, error) {
	if f.version == nil {
		return nil, errtypes.NotFound(versionID.String())
	}
	return f.version, nil
}

type fakeProjects struct{}

func (f *fakeProjects) GetProjectByCode(ctx context.Context, code string) (*project.Project, error) {
	return &project.Project{ID: "project-id", Code: code, Name: code}, nil
}

type fakeProducer struct {
	failOn string
	events []string
}

func (f *fakeProducer) EmitFileOperation(ctx context.Context, activityType activity.Type, input *models.Node, operator string, output *models.Node) error {
	if input.ID == f.failOn {
		return errors.New("send failed")
	}
	f.events = append(f.events, string(activityType)+":"+input.ID)
	return nil
}

type fakeDedup struct {
	evicted []string
}

func (f *fakeDedup) Evict(ctx context.Context, node *models.Node) error {
	f.evicted = append(f.evicted, node.Name)
	return nil
}

type fakeBlob struct {
	objects  map[string][]byte
	uploaded []string
	removed  []string
}

func (f *fakeBlob) Download(ctx context.Context, bucket, key, filePath string) error {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return errtypes.NotFound(bucket + "/" + key)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0o600)
}

func (f *fakeBlob) Upload(ctx context.Context, bucket, key, filePath string) (string, error) {
	f.uploaded = append(f.uploaded, bucket+"/"+key)
	return "v-" + filepath.Base(key), nil
}

func (f *fakeBlob) Delete(ctx context.Context, bucket, key string) error {
	f.removed = append(f.removed, bucket+"/"+key)
	return nil
}

type fakeNotifier struct {
	status models.PipelineStatus
	sent   []models.PipelineStatus
}

func (f *fakeNotifier) SetStatus(status models.PipelineStatus) { f.status = status }

func (f *fakeNotifier) SendNotifications(ctx context.Context) error {
	f.sent = append(f.sent, f.status)
	return nil
}

type fakeApproval struct {
	requestID string
	entities  []string
}

func (f *fakeApproval) UpdateCopyStatus(ctx context.Context, entityID string) error {
	f.entities = append(f.entities, entityID)
	return nil
}

type testPipeline struct {
	*Pipeline

	metadata *fakeMetadata
	dataops  *fakeDataops
	datasets *fakeDatasets
	producer *fakeProducer
	dedup    *fakeDedup
	blob     *fakeBlob
	notifier *fakeNotifier
	approval *fakeApproval
}

func newTestPipeline(tempDir string) *testPipeline {
	tp := &testPipeline{
		metadata: newFakeMetadata(),
		dataops:  &fakeDataops{},
		datasets: &fakeDatasets{},
		producer: &fakeProducer{},
		dedup:    &fakeDedup{},
		blob:     &fakeBlob{},
		notifier: &fakeNotifier{status: models.PipelineStatusSuccess},
		approval: &fakeApproval{},
	}
	tp.Pipeline = &Pipeline{
		Metadata: tp.metadata,
		Dataops:  tp.dataops,
		Datasets: tp.datasets,
		Projects: &fakeProjects{},
		Producer: tp.producer,
		Dedup:    tp.dedup,
		Blob:     tp.blob,
		Notifier: func(includeNodes []*models.Node, source, destination *models.Node, action models.PipelineAction) Notifier {
			return tp.notifier
		},
		Approval: func(requestID string) manager.CopyApproval {
			tp.approval.requestID = requestID
			return tp.approval
		},
		ApprovedCopyTag: "copied-to-core",
		TempDir:         tempDir,
	}
	return tp
}

func testFile(id, parentPath, name string, size int64) *models.Node {
	return &models.Node{
		ID:            id,
		ParentPath:    parentPath,
		Name:          name,
		Type:          models.ResourceTypeFile,
		Size:          size,
		ContainerCode: "testproject",
		Storage:       models.Storage{LocationURI: fmt.Sprintf("minio://minio:9000/gr-testproject/%s/%s", parentPath, name)},
	}
}

func testFolder(id, parentPath, name string) *models.Node {
	return &models.Node{
		ID:            id,
		ParentPath:    parentPath,
		Name:          name,
		Type:          models.ResourceTypeFolder,
		ContainerCode: "testproject",
	}
}
