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
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/operations"
)

func shareDatasetVersionCommand() *command {
	cmd := newCommand("share-dataset-version")
	cmd.Description = func() string { return "imports a dataset version into a project's green zone" }

	versionID := cmd.String("version-id", "", "uuid of the dataset version")
	projectCode := cmd.String("destination-project-code", "", "code of the destination project")
	jobID := cmd.String("job-id", "", "job id reported to the task stream")
	sessionID := cmd.String("session-id", "", "session id reported to the task stream")
	operator := cmd.String("operator", "", "user performing the operation")
	accessToken := cmd.String("access-token", "", "bearer token used on every service call")

	cmd.Action = func() error {
		err := requireFlags(map[string]string{
			"version-id":               *versionID,
			"destination-project-code": *projectCode,
			"job-id":                   *jobID,
			"session-id":               *sessionID,
			"operator":                 *operator,
			"access-token":             *accessToken,
		})
		if err != nil {
			return err
		}

		version, err := uuid.Parse(*versionID)
		if err != nil {
			return errors.Wrap(err, "invalid version id")
		}

		rt, err := newRuntime(*accessToken, *projectCode, *operator)
		if err != nil {
			return err
		}
		ctx := rt.commandContext(*sessionID, *jobID)
		defer rt.close(ctx)

		return rt.pipeline.ShareDatasetVersion(ctx, operations.ShareRequest{
			VersionID:              version,
			DestinationProjectCode: *projectCode,
			SessionID:              *sessionID,
			JobID:                  *jobID,
			Operator:               *operator,
		})
	}
	return cmd
}
