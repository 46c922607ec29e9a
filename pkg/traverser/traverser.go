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

// Package traverser drives a pre-order walk over a source subtree and
// delegates all work to a per-operation visitor.
package traverser

import (
	"context"

	"github.com/pilotdataplatform/filecopy/pkg/models"
)

// Visitor is the per-operation strategy invoked by the traverser. GetTree
// fetches one level of children, ExcludeNodes prunes it, ProcessFolder
// returns the destination counterpart the walk recurses into.
type Visitor interface {
	GetTree(ctx context.Context, source *models.Node) (models.NodeList, error)
	ExcludeNodes(nodes models.NodeList) map[string]struct{}
	ProcessFile(ctx context.Context, file *models.Node, destination *models.Node) error
	ProcessFolder(ctx context.Context, folder *models.Node, destinationParent *models.Node) (*models.Node, error)
}

// Traverser walks a subtree depth-first in pre-order. Children are visited
// in the order the metadata service returns them; archived nodes are skipped
// at every level. The traverser performs no I/O of its own.
type Traverser struct {
	visitor Visitor
}

// New returns a traverser driven by the given visitor.
func New(visitor Visitor) *Traverser {
	return &Traverser{visitor: visitor}
}

// Traverse walks the subtree rooted at source. The first error from the
// visitor aborts the walk and is returned unchanged.
func (t *Traverser) Traverse(ctx context.Context, source, destination *models.Node) error {
	nodes, err := t.visitor.GetTree(ctx, source)
	if err != nil {
		return err
	}

	excluded := t.visitor.ExcludeNodes(nodes)

	for _, node := range nodes {
		if _, ok := excluded[node.ID]; ok {
			continue
		}
		if node.IsArchived() {
			continue
		}

		switch {
		case node.IsFile():
			if err := t.visitor.ProcessFile(ctx, node, destination); err != nil {
				return err
			}
		case node.IsFolder():
			counterpart, err := t.visitor.ProcessFolder(ctx, node, destination)
			if err != nil {
				return err
			}
			if err := t.Traverse(ctx, node, counterpart); err != nil {
				return err
			}
		}
	}

	return nil
}
