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
	"github.com/pilotdataplatform/filecopy/pkg/operations"
)

func copyCommand() *command {
	cmd := newCommand("copy")
	cmd.Description = func() string { return "copies a subtree from the green zone into the core zone" }

	sourceID := cmd.String("source-id", "", "id of the source folder")
	destinationID := cmd.String("destination-id", "", "id of the destination folder")
	includeIDs := cmd.String("include-ids", "", "comma separated ids of the top-level nodes to copy")
	jobID := cmd.String("job-id", "", "job id reported to the task stream")
	sessionID := cmd.String("session-id", "", "session id reported to the task stream")
	projectCode := cmd.String("project-code", "", "code of the project")
	operator := cmd.String("operator", "", "user performing the operation")
	requestInfo := cmd.String("request-info", "", "approval context as json {request_id: [entity id, ...]}")
	accessToken := cmd.String("access-token", "", "bearer token used on every service call")

	cmd.Action = func() error {
		err := requireFlags(map[string]string{
			"source-id":      *sourceID,
			"destination-id": *destinationID,
			"include-ids":    *includeIDs,
			"job-id":         *jobID,
			"session-id":     *sessionID,
			"project-code":   *projectCode,
			"operator":       *operator,
			"access-token":   *accessToken,
		})
		if err != nil {
			return err
		}

		rt, err := newRuntime(*accessToken, *projectCode, *operator)
		if err != nil {
			return err
		}
		ctx := rt.commandContext(*sessionID, *jobID)
		defer rt.close(ctx)

		return rt.pipeline.Copy(ctx, operations.CopyRequest{
			SourceID:      *sourceID,
			DestinationID: *destinationID,
			IncludeIDs:    splitIDs(*includeIDs),
			SessionID:     *sessionID,
			JobID:         *jobID,
			ProjectCode:   *projectCode,
			Operator:      *operator,
			RequestInfo:   *requestInfo,
		})
	}
	return cmd
}
