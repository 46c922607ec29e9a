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

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayPath(t *testing.T) {
	tests := []struct {
		name     string
		node     *Node
		expected string
	}{
		{"root name folder", &Node{Name: "admin"}, "admin"},
		{"nested", &Node{ParentPath: "admin/src", Name: "a.txt"}, "admin/src/a.txt"},
		{"absolute parent path", &Node{ParentPath: "/admin", Name: "src"}, "admin/src"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.node.DisplayPath())
		})
	}
}

func TestOwnerSegment(t *testing.T) {
	assert.Equal(t, "admin", (&Node{ParentPath: "admin/src", Name: "a.txt"}).OwnerSegment())
	assert.Equal(t, "admin", (&Node{Name: "admin"}).OwnerSegment())
}

func TestAppendSuffix(t *testing.T) {
	tests := []struct {
		filename string
		suffix   string
		expected string
	}{
		{"a.txt", "1660000000", "a_1660000000.txt"},
		{"archive.tar.gz", "7", "archive_7.tar.gz"},
		{"noext", "7", "noext_7"},
		{".env", "7", ".env_7"},
		{"dir/a.txt", "7", "dir/a_7.txt"},
	}

	for _, tc := range tests {
		t.Run(tc.filename, func(t *testing.T) {
			assert.Equal(t, tc.expected, AppendSuffix(tc.filename, tc.suffix))
		})
	}
}

func TestNodeListIDs(t *testing.T) {
	l := NodeList{
		{ID: "a", Type: ResourceTypeFile},
		{ID: "b", Type: ResourceTypeFolder},
		{ID: "c", Type: ResourceTypeFile},
	}

	ids := l.IDs()
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, "b")

	files := l.FilterFiles()
	assert.Len(t, files, 2)
	assert.Equal(t, "a", files[0].ID)
	assert.Equal(t, "c", files[1].ID)
}

func TestNodePredicates(t *testing.T) {
	file := &Node{Type: ResourceTypeFile, Status: ItemStatusActive}
	assert.True(t, file.IsFile())
	assert.False(t, file.IsFolder())
	assert.False(t, file.IsArchived())

	folder := &Node{Type: ResourceTypeFolder, Status: ItemStatusArchived}
	assert.True(t, folder.IsFolder())
	assert.True(t, folder.IsArchived())
}
