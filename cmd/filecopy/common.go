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

package main

import (
	"context"
	"strings"

	"github.com/pilotdataplatform/filecopy/pkg/activity"
	"github.com/pilotdataplatform/filecopy/pkg/appctx"
	"github.com/pilotdataplatform/filecopy/pkg/blobstore"
	"github.com/pilotdataplatform/filecopy/pkg/config"
	"github.com/pilotdataplatform/filecopy/pkg/dedup"
	"github.com/pilotdataplatform/filecopy/pkg/errtypes"
	"github.com/pilotdataplatform/filecopy/pkg/httpclient"
	"github.com/pilotdataplatform/filecopy/pkg/log"
	"github.com/pilotdataplatform/filecopy/pkg/manager"
	"github.com/pilotdataplatform/filecopy/pkg/models"
	"github.com/pilotdataplatform/filecopy/pkg/operations"
	"github.com/pilotdataplatform/filecopy/pkg/service/approval"
	"github.com/pilotdataplatform/filecopy/pkg/service/dataops"
	"github.com/pilotdataplatform/filecopy/pkg/service/dataset"
	"github.com/pilotdataplatform/filecopy/pkg/service/metadata"
	"github.com/pilotdataplatform/filecopy/pkg/service/notification"
	"github.com/pilotdataplatform/filecopy/pkg/service/project"
)

// runtime bundles everything a subcommand needs to run one job.
type runtime struct {
	settings *config.Settings
	pipeline *operations.Pipeline
	producer *activity.Producer
	cache    *dedup.Cache
}

// newRuntime loads the settings and wires the remote clients. The access
// token is injected as a bearer token on every service call.
func newRuntime(accessToken, projectCode, operator string) (*runtime, error) {
	settings, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if settings.LoggingFormat != "" {
		log.Mode = settings.LoggingFormat
	}

	blob, err := blobstore.New(settings.S3Endpoint(), settings.S3AccessKey, settings.S3SecretKey, settings.S3InternalHTTPS)
	if err != nil {
		return nil, err
	}

	hc := httpclient.New(httpclient.Token(accessToken))
	md := metadata.New(settings.MetadataService, hc, blob, settings.S3Endpoint(), settings.TempDir)
	producer := activity.NewProducer(settings.KafkaURL)
	cache := dedup.New(settings.RedisAddr(), settings.RedisUser, settings.RedisPassword)

	pipeline := &operations.Pipeline{
		Metadata: md,
		Dataops:  dataops.New(settings.DataopsService, hc),
		Datasets: dataset.New(settings.DatasetService, hc),
		Projects: project.New(settings.ProjectService, hc),
		Producer: producer,
		Dedup:    cache,
		Blob:     blob,
		Notifier: func(includeNodes []*models.Node, source, destination *models.Node, action models.PipelineAction) operations.Notifier {
			return notification.New(settings.NotificationService, hc, includeNodes, source, destination, projectCode, action, operator)
		},
		Approval: func(requestID string) manager.CopyApproval {
			return approval.New(settings.ApprovalService, requestID, hc)
		},
		ApprovedCopyTag:  settings.CopiedWithApprovalTag,
		TempDir:          settings.TempDir,
		DeleteObjectData: settings.DeleteObjectData,
	}

	return &runtime{
		settings: settings,
		pipeline: pipeline,
		producer: producer,
		cache:    cache,
	}, nil
}

// commandContext returns the job-scoped context every pipeline call runs
// under.
func (r *runtime) commandContext(sessionID, jobID string) context.Context {
	logger := log.New("filecopy", r.settings.LoggingLevel)
	ctx := appctx.WithLogger(context.Background(), &logger)
	return appctx.WithJob(ctx, sessionID, jobID)
}

// close flushes the activity producer and releases the redis pool. It must
// run on every exit path so buffered events are not lost.
func (r *runtime) close(ctx context.Context) {
	log := appctx.GetLogger(ctx)
	if err := r.producer.Close(); err != nil {
		log.Error().Err(err).Msg("error closing activity producer")
	}
	if err := r.cache.Close(); err != nil {
		log.Error().Err(err).Msg("error closing dedup cache")
	}
}

func requireFlags(flags map[string]string) error {
	for name, value := range flags {
		if value == "" {
			return errtypes.BadRequest("missing required option --" + name)
		}
	}
	return nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
