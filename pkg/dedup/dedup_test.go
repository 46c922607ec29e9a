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

package dedup

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotdataplatform/filecopy/pkg/models"
)

func TestKey(t *testing.T) {
	green := &models.Node{
		Zone:          models.ZoneGreenroom,
		ContainerCode: "testproject",
		ParentPath:    "admin/folder",
		Name:          "file.txt",
	}
	assert.Equal(t, "greenroom/testproject/admin/folder/file.txt", Key(green))

	core := &models.Node{
		Zone:          models.ZoneCore,
		ContainerCode: "testproject",
		ParentPath:    "admin",
		Name:          "file.txt",
	}
	assert.Equal(t, "core/testproject/admin/file.txt", Key(core))

	archived := &models.Node{
		Zone:          models.ZoneGreenroom,
		ContainerCode: "testproject",
		ParentPath:    "__TRASHED__",
		RestorePath:   "admin/folder",
		Name:          "file.txt",
		Status:        models.ItemStatusArchived,
	}
	assert.Equal(t, "greenroom/testproject/admin/folder/file.txt", Key(archived))
}

func TestEvict(t *testing.T) {
	srv := miniredis.RunT(t)
	cache := New(srv.Addr(), "", "")
	defer cache.Close()

	node := &models.Node{
		Zone:          models.ZoneGreenroom,
		ContainerCode: "testproject",
		ParentPath:    "admin",
		Name:          "file.txt",
	}

	require.NoError(t, srv.Set(Key(node), "cached"))
	require.NoError(t, cache.Evict(context.Background(), node))
	assert.False(t, srv.Exists(Key(node)))
}

func TestEvictMissingKey(t *testing.T) {
	srv := miniredis.RunT(t)
	cache := New(srv.Addr(), "", "")
	defer cache.Close()

	node := &models.Node{
		Zone:          models.ZoneCore,
		ContainerCode: "testproject",
		ParentPath:    "admin",
		Name:          "never-uploaded.txt",
	}
	assert.NoError(t, cache.Evict(context.Background(), node))
}
