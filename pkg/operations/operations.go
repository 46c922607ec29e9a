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

// Package operations holds the top-level pipeline drivers. Each driver wires
// the preparation and execute managers into the two-phase protocol: prepare,
// lock, register, commit, always release, sweep leftover placeholders,
// report the terminal job status and fan out notifications.
package operations

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/appctx"
	"github.com/pilotdataplatform/filecopy/pkg/manager"
	"github.com/pilotdataplatform/filecopy/pkg/models"
	"github.com/pilotdataplatform/filecopy/pkg/service/dataops"
	"github.com/pilotdataplatform/filecopy/pkg/service/dataset"
	"github.com/pilotdataplatform/filecopy/pkg/service/project"
)

// Task-stream action types of the three pipelines.
const (
	actionTypeTransfer = "data_transfer"
	actionTypeDelete   = "data_delete"
	actionTypeImport   = "data_import"
)

// Metadata is the full slice of the metadata service the drivers and their
// managers consume.
type Metadata interface {
	manager.CopyPreparationMetadata
	manager.CopyMetadata
	manager.DeleteMetadata
	manager.ShareMetadata

	GetItemByID(ctx context.Context, id string) (*models.Node, error)
	GetItemsByIDs(ctx context.Context, ids []string) (map[string]*models.Node, error)
	RegisterNodes(ctx context.Context, plan []*models.NodeToRegister, project string, ts int64) (map[string]*models.Node, error)
	RemoveRegisteredNodes(ctx context.Context, registered map[string]*models.Node) error
	GetNameFolder(ctx context.Context, username, project string, zone models.ZoneType) (*models.Node, error)
}

// Dataops covers the lock protocol, job reporting and the zip-preview store.
type Dataops interface {
	manager.PreviewStore

	LockResources(ctx context.Context, resourceKeys []string, operation models.LockOperation) error
	UnlockResources(ctx context.Context, resourceKeys []string, operation models.LockOperation) error
	UpdateJob(ctx context.Context, job dataops.Job, status models.JobStatus) error
}

// Datasets resolves published dataset versions for the share pipeline.
type Datasets interface {
	GetDatasetVersion(ctx context.Context, versionID uuid.UUID) (*dataset.Version, error)
}

// Projects resolves the project a pipeline runs against.
type Projects interface {
	GetProjectByCode(ctx context.Context, code string) (*project.Project, error)
}

// Blobstore is the object-store surface the drivers use directly.
type Blobstore interface {
	manager.Uploader
	manager.BlobRemover

	Download(ctx context.Context, bucket, key, filePath string) error
}

// Notifier sends the pipeline notifications of one operation.
type Notifier interface {
	SetStatus(status models.PipelineStatus)
	SendNotifications(ctx context.Context) error
}

// NewNotifier builds a notifier for the resolved operation context. The
// include nodes become the notification targets.
type NewNotifier func(includeNodes []*models.Node, source, destination *models.Node, action models.PipelineAction) Notifier

// NewApproval builds an approval client bound to one approval request.
type NewApproval func(requestID string) manager.CopyApproval

// Pipeline bundles the remote dependencies of the three drivers. All fields
// are required unless noted on the operation using them.
type Pipeline struct {
	Metadata Metadata
	Dataops  Dataops
	Datasets Datasets
	Projects Projects
	Producer manager.ActivityEmitter
	Dedup    manager.DedupCache
	Blob     Blobstore

	Notifier NewNotifier
	Approval NewApproval

	// ApprovedCopyTag is the system tag written on everything a copy touches.
	ApprovedCopyTag string
	// TempDir is the scratch root for dataset version extraction.
	TempDir string
	// DeleteObjectData removes object bytes during archival. Off by default
	// so archived nodes stay restorable from the trash bin.
	DeleteObjectData bool
}

// parseRequestInfo unpacks the approval context {request_id: [entity ids]}.
func parseRequestInfo(requestInfo string) (string, []string, error) {
	var request map[string][]string
	if err := json.Unmarshal([]byte(requestInfo), &request); err != nil {
		return "", nil, errors.Wrap(err, "error decoding request info")
	}
	for requestID, entities := range request {
		return requestID, entities, nil
	}
	return "", nil, errors.New("request info holds no request id")
}

// jobTargets derives the task-stream target names and type from the include
// nodes, in include order.
func jobTargets(includeIDs []string, includeNodes map[string]*models.Node) ([]string, string) {
	names := make([]string, 0, len(includeNodes))
	targetType := ""
	for _, id := range includeIDs {
		node, ok := includeNodes[id]
		if !ok {
			continue
		}
		names = append(names, node.DisplayPath())
		targetType = string(node.Type)
	}
	if len(names) > 1 {
		targetType = "batch"
	}
	return names, targetType
}

// orderedNodes returns the include nodes in include order.
func orderedNodes(includeIDs []string, includeNodes map[string]*models.Node) []*models.Node {
	nodes := make([]*models.Node, 0, len(includeNodes))
	for _, id := range includeIDs {
		if node, ok := includeNodes[id]; ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// reportFailure runs the failure path: failure notification and FAILED job
// status. Its own failures are logged and swallowed, the primary error has
// already decided the outcome.
func (p *Pipeline) reportFailure(ctx context.Context, notifier Notifier, job dataops.Job) {
	log := appctx.GetLogger(ctx)

	if notifier != nil {
		notifier.SetStatus(models.PipelineStatusFailure)
		if err := notifier.SendNotifications(ctx); err != nil {
			log.Error().Err(err).Msg("error sending failure notifications")
		}
	}
	if err := p.Dataops.UpdateJob(ctx, job, models.JobStatusFailed); err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("error reporting failed job status")
	}
}

func zoneBucket(projectCode string, zone models.ZoneType) string {
	if zone == models.ZoneCore {
		return "core-" + projectCode
	}
	return "gr-" + projectCode
}
