// Copyright 2025 Blink Labs Software
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

package database

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/numbat/database/types"
)

// CommitTimestampError reports that the last commit reached only one of the
// two stores
type CommitTimestampError struct {
	MetadataTimestamp int64
	BlobTimestamp     int64
}

func (e CommitTimestampError) Error() string {
	return fmt.Sprintf(
		"stores out of step: metadata committed at %d, blob at %d",
		e.MetadataTimestamp,
		e.BlobTimestamp,
	)
}

// commitTimestamps reads the commit stamp of both stores. A store that was
// never stamped reads as zero.
func (d *Database) commitTimestamps() (int64, int64, error) {
	metadataTs, err := d.metadata.GetCommitTimestamp()
	if err != nil {
		return 0, 0, fmt.Errorf("read metadata commit timestamp: %w", err)
	}
	blobTs, err := d.blob.GetCommitTimestamp()
	if err != nil {
		if !errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, 0, fmt.Errorf("read blob commit timestamp: %w", err)
		}
		blobTs = 0
	}
	return metadataTs, blobTs, nil
}

func (d *Database) checkCommitTimestamp() error {
	metadataTs, blobTs, err := d.commitTimestamps()
	if err != nil {
		return err
	}
	if metadataTs > 0 && metadataTs != blobTs {
		return CommitTimestampError{
			MetadataTimestamp: metadataTs,
			BlobTimestamp:     blobTs,
		}
	}
	return nil
}

// stampCommit writes the same commit stamp into both halves of txn
func (d *Database) stampCommit(txn *Txn, timestamp int64) error {
	if err := d.metadata.SetCommitTimestamp(timestamp, txn.Metadata()); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if err := d.blob.SetCommitTimestamp(timestamp, txn.Blob()); err != nil {
		return fmt.Errorf("blob: %w", err)
	}
	return nil
}
