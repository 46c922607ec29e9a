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

package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	l, err := ParseLocation("minio://minio.internal:9000/gr-project/admin/src/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "minio.internal:9000", l.Endpoint)
	assert.Equal(t, "gr-project", l.Bucket)
	assert.Equal(t, "admin/src/a.txt", l.Key)
}

func TestParseLocationMalformed(t *testing.T) {
	for _, uri := range []string{"", "gr-project/a.txt", "minio://endpoint", "minio://endpoint/bucket"} {
		_, err := ParseLocation(uri)
		assert.Error(t, err, uri)
	}
}

func TestFormatLocation(t *testing.T) {
	uri := FormatLocation("minio.internal:9000", "core-project", "admin/dst/a.txt")
	assert.Equal(t, "minio://minio.internal:9000/core-project/admin/dst/a.txt", uri)

	l, err := ParseLocation(uri)
	require.NoError(t, err)
	assert.Equal(t, "core-project", l.Bucket)
}
