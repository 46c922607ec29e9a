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

package operations

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pilotdataplatform/filecopy/pkg/appctx"
	"github.com/pilotdataplatform/filecopy/pkg/blobstore"
	"github.com/pilotdataplatform/filecopy/pkg/manager"
	"github.com/pilotdataplatform/filecopy/pkg/models"
	"github.com/pilotdataplatform/filecopy/pkg/service/dataops"
	"github.com/pilotdataplatform/filecopy/pkg/traverser"
)

// ShareRequest describes one dataset version import job.
type ShareRequest struct {
	VersionID              uuid.UUID
	DestinationProjectCode string
	SessionID              string
	JobID                  string
	Operator               string
}

// ShareDatasetVersion downloads the zipped snapshot of a dataset version,
// extracts it and imports the tree under a new folder inside the operator's
// green-zone name folder. The archive is fully extracted before any upload
// or registration happens.
func (p *Pipeline) ShareDatasetVersion(ctx context.Context, req ShareRequest) error {
	log := appctx.GetLogger(ctx)

	version, err := p.Datasets.GetDatasetVersion(ctx, req.VersionID)
	if err != nil {
		return err
	}

	shareID := time.Now().UTC().Format("2006-01-02") + "-" + fmt.Sprintf("%d", models.Timestamp())
	folderName := fmt.Sprintf("%s-v%s-%s", version.DatasetCode, version.Version, shareID)

	job := dataops.Job{
		SessionID:     req.SessionID,
		JobID:         req.JobID,
		TargetNames:   []string{folderName},
		TargetType:    string(models.ResourceTypeFile),
		ContainerCode: req.DestinationProjectCode,
		ActionType:    actionTypeImport,
	}

	log.Info().
		Str("version_id", req.VersionID.String()).
		Str("dataset_code", version.DatasetCode).
		Str("project_code", req.DestinationProjectCode).
		Str("operator", req.Operator).
		Msg("attempting to import dataset version")

	if err := p.runShare(ctx, req, version.Location, folderName); err != nil {
		log.Error().Err(err).Str("job_id", req.JobID).Msg("dataset version import failed")
		p.reportFailure(ctx, nil, job)
		return err
	}

	if err := p.Dataops.UpdateJob(ctx, job, models.JobStatusSucceed); err != nil {
		log.Error().Err(err).Str("job_id", req.JobID).Msg("error reporting succeeded job status")
		return err
	}

	log.Info().
		Str("version_id", req.VersionID.String()).
		Str("destination_folder", folderName).
		Msg("successfully imported dataset version")
	return nil
}

func (p *Pipeline) runShare(ctx context.Context, req ShareRequest, versionLocation, folderName string) error {
	log := appctx.GetLogger(ctx)

	nameFolder, err := p.Metadata.GetNameFolder(ctx, req.Operator, req.DestinationProjectCode, models.ZoneGreenroom)
	if err != nil {
		return err
	}

	destination := &models.Node{Name: folderName, Owner: req.Operator}
	destinationFolder, err := p.Metadata.RegisterFolder(ctx, req.DestinationProjectCode, destination, nameFolder, models.ZoneGreenroom)
	if err != nil {
		return err
	}

	location, err := blobstore.ParseLocation(versionLocation)
	if err != nil {
		return err
	}

	extractPath := filepath.Join(p.TempDir, folderName)
	zipPath := extractPath + ".zip"
	defer func() {
		os.Remove(zipPath)
		os.RemoveAll(extractPath)
	}()

	if err := p.Blob.Download(ctx, location.Bucket, location.Key, zipPath); err != nil {
		return err
	}
	log.Info().Str("zip", zipPath).Msg("dataset version downloaded")

	if err := extractZip(zipPath, extractPath); err != nil {
		return err
	}
	log.Info().Str("directory", extractPath).Msg("dataset version extracted")

	shareManager := manager.NewShareDataset(p.Metadata, p.Blob, req.DestinationProjectCode, models.ZoneGreenroom, req.Operator)
	root := &models.Node{
		Name:       filepath.Base(extractPath),
		ParentPath: filepath.Dir(extractPath),
		Type:       models.ResourceTypeFolder,
	}
	return traverser.New(shareManager).Traverse(ctx, root, destinationFolder)
}

// extractZip unpacks the archive into destDir, refusing entries that would
// escape it.
func extractZip(zipPath, destDir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return errors.Wrap(err, "error opening dataset version archive")
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrap(err, "error creating extraction directory")
	}

	for _, file := range reader.File {
		target := filepath.Join(destDir, file.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return errors.Errorf("archive entry %q escapes the extraction directory", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrap(err, "error creating archive directory")
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrap(err, "error creating archive directory")
		}
		if err := extractFile(file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(file *zip.File, target string) error {
	in, err := file.Open()
	if err != nil {
		return errors.Wrap(err, "error opening archive entry")
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "error creating extracted file")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrap(err, "error writing extracted file")
	}
	return nil
}
