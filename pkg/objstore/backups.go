/*
Copyright 2025 The InnoDB Cluster Operator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package objstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const (
	// MetadataSuffix marks the object whose presence defines a backup.
	MetadataSuffix = ".metadata"

	// ChecksumSuffix marks a completed backup.
	ChecksumSuffix = ".md5"

	// LogSuffix marks the engine output of a backup run. A log without a
	// checksum means the run failed.
	LogSuffix = ".backup.log"
)

const (
	// BackupFinished backup completed and its checksum was written
	BackupFinished = "finished"
	// BackupFailed backup wrote a log but never a checksum
	BackupFailed = "failed"
	// BackupInProgress backup announced itself and has produced nothing else yet
	BackupInProgress = "in progress"
)

// BackupRecord describes one backup found in the store. The ID is the
// RFC3339 timestamp the backup was started at.
type BackupRecord struct {
	ID     string
	Type   string
	Status string
}

// ListBackups classifies every backup below the store prefix. A backup
// exists once its metadata object does; the checksum and log objects decide
// its status.
func (s *Store) ListBackups(ctx context.Context) ([]BackupRecord, error) {
	keys, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}

	exists := make(map[string]struct{})
	finished := make(map[string]struct{})
	logged := make(map[string]struct{})

	for _, key := range keys {
		switch {
		case strings.HasSuffix(key, MetadataSuffix):
			exists[strings.TrimSuffix(key, MetadataSuffix)] = struct{}{}
		case strings.HasSuffix(key, ChecksumSuffix):
			finished[strings.TrimSuffix(key, ChecksumSuffix)] = struct{}{}
		case strings.HasSuffix(key, LogSuffix):
			logged[strings.TrimSuffix(key, LogSuffix)] = struct{}{}
		}
	}

	records := make([]BackupRecord, 0, len(exists))
	for id := range exists {
		record := BackupRecord{
			ID:     id,
			Type:   "physical",
			Status: BackupInProgress,
		}

		if _, ok := finished[id]; ok {
			record.Status = BackupFinished
		} else if _, ok := logged[id]; ok {
			record.Status = BackupFailed
		}

		records = append(records, record)
	}

	// newest first, the IDs are RFC3339 timestamps
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID > records[j].ID
	})

	return records, nil
}

// FormatBackupsTable renders records the way the list-backups action prints
// them.
func FormatBackupsTable(records []BackupRecord) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%-21s | %-11s | %s\n", "backup-id", "backup-type", "backup-status"))
	b.WriteString(strings.Repeat("-", 52))
	b.WriteString("\n")

	for _, record := range records {
		b.WriteString(fmt.Sprintf("%-21s | %-11s | %s\n", record.ID, record.Type, record.Status))
	}

	return b.String()
}
