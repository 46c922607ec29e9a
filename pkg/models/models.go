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

// Package models holds the value records shared by the pipeline operations:
// metadata items, their enumerations and the pending-registration pairs
// carried from the prepare phase into the execute phase.
package models

import (
	"path"
	"strings"
	"time"
)

// ResourceType is the type of an entity in the project namespace.
type ResourceType string

const (
	ResourceTypeFolder    ResourceType = "folder"
	ResourceTypeFile      ResourceType = "file"
	ResourceTypeContainer ResourceType = "Container"
)

// ZoneType is the integer zone id of a project partition.
type ZoneType int

const (
	ZoneGreenroom ZoneType = 0
	ZoneCore      ZoneType = 1
)

// ItemStatus is the lifecycle state of a metadata item.
//
// REGISTERED items are reserved placeholders that are not yet visible as user
// content, ACTIVE items are materialized and ARCHIVED items are logically
// deleted.
type ItemStatus string

const (
	ItemStatusRegistered ItemStatus = "REGISTERED"
	ItemStatusActive     ItemStatus = "ACTIVE"
	ItemStatusArchived   ItemStatus = "ARCHIVED"
)

// Storage describes where the bytes of a file item live.
type Storage struct {
	LocationURI string `json:"location_uri"`
	Version     string `json:"version"`
}

// Extra holds the per-template metadata attached to an item.
type Extra struct {
	Tags       []string                          `json:"tags"`
	SystemTags []string                          `json:"system_tags,omitempty"`
	Attributes map[string]map[string]interface{} `json:"attributes,omitempty"`
}

// Extended wraps the extra metadata the way the metadata service returns it.
type Extended struct {
	Extra Extra `json:"extra"`
}

// Node is one entity in the project's hierarchical namespace.
//
// Unknown fields returned by the metadata service are tolerated on ingress
// and never round-tripped.
type Node struct {
	ID            string       `json:"id"`
	Parent        string       `json:"parent,omitempty"`
	ParentPath    string       `json:"parent_path,omitempty"`
	Name          string       `json:"name"`
	Type          ResourceType `json:"type"`
	Zone          ZoneType     `json:"zone"`
	Status        ItemStatus   `json:"status"`
	ContainerCode string       `json:"container_code,omitempty"`
	ContainerType string       `json:"container_type,omitempty"`
	Size          int64        `json:"size,omitempty"`
	Owner         string       `json:"owner,omitempty"`
	RestorePath   string       `json:"restore_path,omitempty"`
	Extended      Extended     `json:"extended,omitempty"`
	Storage       Storage      `json:"storage,omitempty"`
}

// IsFile reports whether the node is a file.
func (n *Node) IsFile() bool { return n.Type == ResourceTypeFile }

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.Type == ResourceTypeFolder }

// IsArchived reports whether the node has been logically deleted.
func (n *Node) IsArchived() bool { return n.Status == ItemStatusArchived }

// Tags returns the user tags attached to the node.
func (n *Node) Tags() []string { return n.Extended.Extra.Tags }

// Attributes returns the attribute-template metadata attached to the node.
func (n *Node) Attributes() map[string]map[string]interface{} {
	return n.Extended.Extra.Attributes
}

// DisplayPath returns the "/"-joined path from the project root to the node.
// The invariant parent_path(child) == display_path(parent) holds across the
// metadata service.
func (n *Node) DisplayPath() string {
	p := n.Name
	if n.ParentPath != "" {
		p = n.ParentPath + "/" + n.Name
	}
	return strings.TrimPrefix(p, "/")
}

// OwnerSegment returns the first segment of the display path, which by
// convention is the name folder of the owning user.
func (n *Node) OwnerSegment() string {
	p := n.DisplayPath()
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i]
	}
	return p
}

// String implements fmt.Stringer for log output.
func (n *Node) String() string { return n.ID + " | " + n.Name }

// NodeList is an ordered sequence of nodes as returned by the metadata
// service. Order is preserved; no additional sorting is applied.
type NodeList []*Node

// IDs returns the set of ids contained in the list.
func (l NodeList) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(l))
	for _, n := range l {
		ids[n.ID] = struct{}{}
	}
	return ids
}

// FilterFiles returns the file nodes of the list, order preserved.
func (l NodeList) FilterFiles() NodeList {
	files := NodeList{}
	for _, n := range l {
		if n.IsFile() {
			files = append(files, n)
		}
	}
	return files
}

// NodeToRegister pairs a source file with the destination parent it will be
// registered under. The pair is produced during prepare and consumed during
// execute.
type NodeToRegister struct {
	Source            *Node
	DestinationParent *Node
}

// LockOperation is the mode of a bulk resource lock.
type LockOperation string

const (
	LockOperationRead  LockOperation = "read"
	LockOperationWrite LockOperation = "write"
)

// JobStatus is the terminal status reported for a job.
type JobStatus string

const (
	JobStatusSucceed JobStatus = "SUCCEED"
	JobStatusFailed  JobStatus = "FAILED"
)

// PipelineAction identifies the pipeline operation in notifications.
type PipelineAction string

const (
	PipelineActionCopy   PipelineAction = "copy"
	PipelineActionDelete PipelineAction = "delete"
)

// PipelineStatus is the outcome carried by a pipeline notification.
type PipelineStatus string

const (
	PipelineStatusSuccess PipelineStatus = "success"
	PipelineStatusFailure PipelineStatus = "failure"
)

// InvolvementType is the role a notification recipient played in the
// operation.
type InvolvementType string

const (
	InvolvementInitiator InvolvementType = "initiator"
	InvolvementOwner     InvolvementType = "owner"
	InvolvementReceiver  InvolvementType = "receiver"
)

// NotificationType is the kind of notification sent out.
type NotificationType string

const (
	NotificationTypePipeline    NotificationType = "pipeline"
	NotificationTypeCopyRequest NotificationType = "copy-request"
)

// Timestamp returns the current unix timestamp in seconds.
func Timestamp() int64 {
	return time.Now().Unix()
}

// AppendSuffix inserts a suffix into a filename before its full extension
// chain, so "data.tar.gz" with suffix "1660000000" becomes
// "data_1660000000.tar.gz". Names without an extension get the suffix
// appended.
func AppendSuffix(filename, suffix string) string {
	base := path.Base(filename)
	dir := path.Dir(filename)

	ext := ""
	stem := base
	if i := strings.Index(base, "."); i > 0 {
		stem = base[:i]
		ext = base[i:]
	}

	renamed := stem + "_" + suffix + ext
	if dir == "." {
		return renamed
	}
	return dir + "/" + renamed
}
