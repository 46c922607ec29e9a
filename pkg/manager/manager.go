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

// Package manager holds the per-operation strategies the traverser drives
// during the prepare phase plus the execute-phase managers that consume
// what the preparation accumulated.
package manager

import (
	"context"

	"github.com/pilotdataplatform/filecopy/pkg/activity"
	"github.com/pilotdataplatform/filecopy/pkg/models"
)

// Tree is the slice of the metadata service the managers use to fetch one
// level of children at a time.
type Tree interface {
	GetNodesTree(ctx context.Context, startFolderID string, recursive bool) (models.NodeList, error)
}

// ActivityEmitter publishes one item-activity event per file operation.
type ActivityEmitter interface {
	EmitFileOperation(ctx context.Context, activityType activity.Type, input *models.Node, operator string, output *models.Node) error
}

func toSet(ids []string) map[string]struct{} {
	if ids == nil {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func isSubset(sub, super map[string]struct{}) bool {
	for id := range sub {
		if _, ok := super[id]; !ok {
			return false
		}
	}
	return true
}

// excludeMissing marks every id of the level that is not in keep.
func excludeMissing(keep, ids, excluded map[string]struct{}) {
	for id := range ids {
		if _, ok := keep[id]; !ok {
			excluded[id] = struct{}{}
		}
	}
}

// excludeByInclude applies an explicit include set to one level. When the
// include set is not a subset of the level's ids the filter is a no-op, so
// include ids only take effect at the level where they all live, which is
// the top of the walk.
func excludeByInclude(include, ids, excluded map[string]struct{}) {
	if include == nil || !isSubset(include, ids) {
		return
	}
	excludeMissing(include, ids, excluded)
}
