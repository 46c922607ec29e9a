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

// Package notification posts pipeline notifications, fanned out by the
// involvement role of each recipient.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/errtypes"
	"github.com/pilotdataplatform/filecopy/pkg/httpclient"
	"github.com/pilotdataplatform/filecopy/pkg/models"
)

// Location describes the source or destination folder of an operation.
type Location struct {
	ID   string          `json:"id"`
	Path string          `json:"path"`
	Zone models.ZoneType `json:"zone"`
}

// Target is one top-level item the operation was invoked on.
type Target struct {
	ID   string              `json:"id"`
	Name string              `json:"name"`
	Type models.ResourceType `json:"type"`
}

// PipelineNotification is the payload sent per recipient.
type PipelineNotification struct {
	Type              models.NotificationType `json:"type"`
	RecipientUsername string                  `json:"recipient_username"`
	InvolvedAs        models.InvolvementType  `json:"involved_as"`
	Action            models.PipelineAction   `json:"action"`
	Status            models.PipelineStatus   `json:"status"`
	InitiatorUsername string                  `json:"initiator_username"`
	ProjectCode       string                  `json:"project_code"`
	Source            Location                `json:"source"`
	Destination       *Location               `json:"destination"`
	Targets           []Target                `json:"targets"`
}

// Client sends pipeline notifications for one operation. The include nodes,
// source and destination are fixed at construction; only the status changes
// when the operation fails.
type Client struct {
	endpoint          string
	client            *httpclient.Client
	includeNodes      []*models.Node
	sourceFolder      *models.Node
	destinationFolder *models.Node
	projectCode       string
	action            models.PipelineAction
	status            models.PipelineStatus
	operator          string
}

// New returns a notification client for one operation. destinationFolder is
// nil for delete.
func New(endpoint string, hc *httpclient.Client, includeNodes []*models.Node, sourceFolder, destinationFolder *models.Node, projectCode string, action models.PipelineAction, operator string) *Client {
	return &Client{
		endpoint:          endpoint + "/v1/all/notifications/",
		client:            hc,
		includeNodes:      includeNodes,
		sourceFolder:      sourceFolder,
		destinationFolder: destinationFolder,
		projectCode:       projectCode,
		action:            action,
		status:            models.PipelineStatusSuccess,
		operator:          operator,
	}
}

// SetStatus switches the outcome carried by subsequent notifications.
func (c *Client) SetStatus(status models.PipelineStatus) {
	c.status = status
}

func location(node *models.Node) Location {
	return Location{ID: node.ID, Path: node.DisplayPath(), Zone: node.Zone}
}

func (c *Client) targets() []Target {
	targets := make([]Target, 0, len(c.includeNodes))
	for _, node := range c.includeNodes {
		targets = append(targets, Target{ID: node.ID, Name: node.Name, Type: node.Type})
	}
	return targets
}

// involvement is an ordered recipient list: the initiator always, the owner
// of the source subtree when different, and the receiver when different
// from both and a destination exists.
type involvement struct {
	role     models.InvolvementType
	username string
}

func (c *Client) involvements() []involvement {
	involvers := []involvement{{models.InvolvementInitiator, c.operator}}

	owner := c.sourceFolder.OwnerSegment()
	if owner != c.operator {
		involvers = append(involvers, involvement{models.InvolvementOwner, owner})
	}

	if c.destinationFolder != nil {
		receiver := c.destinationFolder.OwnerSegment()
		if receiver != owner && receiver != c.operator {
			involvers = append(involvers, involvement{models.InvolvementReceiver, receiver})
		}
	}

	return involvers
}

// SendNotifications posts one notification per involved recipient. The
// service answers 204 on success.
func (c *Client) SendNotifications(ctx context.Context) error {
	source := location(c.sourceFolder)
	var destination *Location
	if c.destinationFolder != nil {
		d := location(c.destinationFolder)
		destination = &d
	}
	targets := c.targets()

	payload := []PipelineNotification{}
	for _, involved := range c.involvements() {
		payload = append(payload, PipelineNotification{
			Type:              models.NotificationTypePipeline,
			RecipientUsername: involved.username,
			InvolvedAs:        involved.role,
			Action:            c.action,
			Status:            c.status,
			InitiatorUsername: c.operator,
			ProjectCode:       c.projectCode,
			Source:            source,
			Destination:       destination,
			Targets:           targets,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "error encoding notifications")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "error creating request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusNoContent {
		return errtypes.InternalError("unable to create notifications for file " + string(c.action))
	}
	return nil
}
