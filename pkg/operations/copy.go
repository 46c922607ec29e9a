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
	"github.com/pilotdataplatform/filecopy/pkg/errtypes"
	"github.com/pilotdataplatform/filecopy/pkg/manager"
	"github.com/pilotdataplatform/filecopy/pkg/models"
	"github.com/pilotdataplatform/filecopy/pkg/service/dataops"
	"github.com/pilotdataplatform/filecopy/pkg/traverser"
)

// CopyRequest describes one copy job from the green into the core zone.
type CopyRequest struct {
	SourceID      string
	DestinationID string
	IncludeIDs    []string
	SessionID     string
	JobID         string
	ProjectCode   string
	Operator      string
	// RequestInfo is the optional approval context as raw JSON of the form
	// {request_id: [approved entity id, ...]}.
	RequestInfo string
}

// Copy copies the include subtrees from the green zone into the core zone.
// Placeholders are registered before any byte movement; on failure every
// placeholder still in REGISTERED state is swept while promoted nodes stay.
func (p *Pipeline) Copy(ctx context.Context, req CopyRequest) error {
	log := appctx.GetLogger(ctx)

	nodes, err := p.Metadata.GetItemsByIDs(ctx, []string{req.SourceID, req.DestinationID})
	if err != nil {
		return err
	}
	sourceFolder := nodes[req.SourceID]
	destinationFolder := nodes[req.DestinationID]

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
		ActionType:    actionTypeTransfer,
	}
	notifier := p.Notifier(orderedNodes(req.IncludeIDs, includeNodes), sourceFolder, destinationFolder, models.PipelineActionCopy)

	log.Info().
		Str("project_code", req.ProjectCode).
		Str("operator", req.Operator).
		Strs("node_ids", req.IncludeIDs).
		Str("source_id", sourceFolder.ID).
		Str("destination_id", destinationFolder.ID).
		Msg("attempting to copy items recursively")

	if err := p.runCopy(ctx, req, sourceFolder, destinationFolder, job, notifier); err != nil {
		log.Error().Err(err).Str("job_id", req.JobID).Msg("copy operation failed")
		p.reportFailure(ctx, notifier, job)
		return err
	}

	log.Info().
		Str("project_code", req.ProjectCode).
		Str("operator", req.Operator).
		Strs("node_ids", req.IncludeIDs).
		Msg("successfully copied items recursively")
	return nil
}

func (p *Pipeline) runCopy(ctx context.Context, req CopyRequest, sourceFolder, destinationFolder *models.Node, job dataops.Job, notifier Notifier) error {
	log := appctx.GetLogger(ctx)

	var approval manager.CopyApproval
	var approvedEntities []string
	if req.RequestInfo != "" {
		requestID, entities, err := parseRequestInfo(req.RequestInfo)
		if err != nil {
			return err
		}
		approval = p.Approval(requestID)
		approvedEntities = entities
	}

	if destinationFolder.IsArchived() {
		return errtypes.BadRequest("destination is already in the trash bin")
	}

	proj, err := p.Projects.GetProjectByCode(ctx, req.ProjectCode)
	if err != nil {
		return err
	}

	prep := manager.NewCopyPreparation(p.Metadata, proj.Code, zoneBucket(proj.Code, models.ZoneGreenroom), approvedEntities, req.IncludeIDs)
	if err := traverser.New(prep).Traverse(ctx, sourceFolder, destinationFolder); err != nil {
		return err
	}

	ts := models.Timestamp()
	registered := map[string]*models.Node{}

	err = func() error {
		if err := p.Dataops.LockResources(ctx, prep.ReadLockPaths(), models.LockOperationRead); err != nil {
			return err
		}
		defer func() {
			if err := p.Dataops.UnlockResources(ctx, prep.ReadLockPaths(), models.LockOperationRead); err != nil {
				log.Error().Err(err).Msg("error releasing read locks")
			}
			if err := p.Metadata.RemoveRegisteredNodes(ctx, registered); err != nil {
				log.Error().Err(err).Msg("error sweeping registered placeholders")
			}
		}()

		registered, err = p.Metadata.RegisterNodes(ctx, prep.Plan(), proj.Code, ts)
		if err != nil {
			return err
		}

		copyManager := manager.NewCopy(p.Metadata, p.Dataops, approval, p.Producer, []string{p.ApprovedCopyTag}, proj.Code, req.Operator)
		if err := copyManager.ProcessFiles(ctx, prep.Plan(), registered); err != nil {
			return err
		}
		return copyManager.ProcessFolders(ctx, prep.SourceFolders())
	}()
	if err != nil {
		return err
	}

	if err := p.Dataops.UpdateJob(ctx, job, models.JobStatusSucceed); err != nil {
		return err
	}
	return notifier.SendNotifications(ctx)
}
