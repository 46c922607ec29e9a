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

	"github.com/pilotdataplatform/filecopy/pkg/appctx"
	"github.com/pilotdataplatform/filecopy/pkg/manager"
	"github.com/pilotdataplatform/filecopy/pkg/models"
	"github.com/pilotdataplatform/filecopy/pkg/service/dataops"
	"github.com/pilotdataplatform/filecopy/pkg/traverser"
)

// DeleteRequest describes one logical-delete job.
type DeleteRequest struct {
	SourceID    string
	IncludeIDs  []string
	SessionID   string
	JobID       string
	ProjectCode string
	Operator    string
}

// Delete archives the include subtrees recursively. Object bytes stay in
// the store; archival is a metadata transition plus event fan-out.
func (p *Pipeline) Delete(ctx context.Context, req DeleteRequest) error {
	log := appctx.GetLogger(ctx)

	sourceFolder, err := p.Metadata.GetItemByID(ctx, req.SourceID)
	if err != nil {
		return err
	}

	includeNodes, err := p.Metadata.GetItemsByIDs(ctx, req.IncludeIDs)
	if err != nil {
		return err
	}

	targetNames, targetType := jobTargets(req.IncludeIDs, includeNodes)
	job := dataops.Job{
		SessionID:     req.SessionID,
		JobID:         req.JobID,
		TargetNames:   targetNames,
		TargetType:    targetType,
		ContainerCode: req.ProjectCode,
		ActionType:    actionTypeDelete,
	}
	notifier := p.Notifier(orderedNodes(req.IncludeIDs, includeNodes), sourceFolder, nil, models.PipelineActionDelete)

	log.Info().
		Str("project_code", req.ProjectCode).
		Str("operator", req.Operator).
		Strs("node_ids", req.IncludeIDs).
		Str("source_id", req.SourceID).
		Str("source_path", sourceFolder.DisplayPath()).
		Msg("attempting to move items into the trash bin")

	if err := p.runDelete(ctx, req, sourceFolder, job, notifier); err != nil {
		log.Error().Err(err).Str("job_id", req.JobID).Msg("delete operation failed")
		p.reportFailure(ctx, notifier, job)
		return err
	}

	log.Info().
		Str("project_code", req.ProjectCode).
		Str("operator", req.Operator).
		Strs("node_ids", req.IncludeIDs).
		Msg("successfully moved items into the trash bin")
	return nil
}

func (p *Pipeline) runDelete(ctx context.Context, req DeleteRequest, sourceFolder *models.Node, job dataops.Job, notifier Notifier) error {
	log := appctx.GetLogger(ctx)

	proj, err := p.Projects.GetProjectByCode(ctx, req.ProjectCode)
	if err != nil {
		return err
	}

	prep := manager.NewDeletePreparation(p.Metadata, zoneBucket(proj.Code, sourceFolder.Zone), req.IncludeIDs)
	if err := traverser.New(prep).Traverse(ctx, sourceFolder, nil); err != nil {
		return err
	}

	err = func() error {
		if err := p.Dataops.LockResources(ctx, prep.WriteLockPaths(), models.LockOperationWrite); err != nil {
			return err
		}
		defer func() {
			if err := p.Dataops.UnlockResources(ctx, prep.WriteLockPaths(), models.LockOperationWrite); err != nil {
				log.Error().Err(err).Msg("error releasing write locks")
			}
		}()

		var remover manager.BlobRemover
		if p.DeleteObjectData {
			remover = p.Blob
		}
		deleteManager := manager.NewDelete(p.Metadata, p.Dedup, p.Producer, remover, req.Operator, req.IncludeIDs)
		return deleteManager.ArchiveNodes(ctx)
	}()
	if err != nil {
		return err
	}

	if err := p.Dataops.UpdateJob(ctx, job, models.JobStatusSucceed); err != nil {
		return err
	}
	return notifier.SendNotifications(ctx)
}
