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

package innodbbackup

import (
	"errors"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/objstore"
)

// handleBackup runs one physical backup end to end: precondition chain,
// target pinning, the streamed engine command, and the checksum verification.
// The offline flag and the advisory lock are undone for every outcome.
func (r *ReconcileInnodbBackup) handleBackup(syncCtx *syncContext, backupPassword string) (runErr error) {
	instance := syncCtx.instance
	cluster := syncCtx.cluster
	admin := syncCtx.admin
	ctx := syncCtx.ctx

	// a member in offline mode means another backup is mid flight somewhere
	// in the cluster, engine state is the source of truth because any
	// operator replica could have started it
	hidden, err := admin.FindHiddenInstance(ctx)
	if err != nil {
		return err
	}
	if hidden != "" {
		return fmt.Errorf("backup already in progress on [%s]", hidden)
	}

	infos := admin.GetClusterInfos(ctx, len(cluster.Spec.Member))

	primaryAddr := infos.GetPrimary()
	if primaryAddr == "" {
		return fmt.Errorf("innodb cluster [%s] has no online primary", cluster.Name)
	}

	target, err := pickBackupTarget(cluster, infos, primaryAddr)
	if err != nil {
		return err
	}

	// the advisory lock on the primary serializes create attempts that raced
	// past the offline probe, it lives on this session until released
	session, err := admin.AcquireBackupLock(ctx, primaryAddr)
	if err != nil {
		return err
	}

	backupID := time.Now().UTC().Format(time.RFC3339)
	now := metav1.Now()
	instance.Status.State = icv1alpha1.BackupStateRunning
	instance.Status.BackupID = backupID
	instance.Status.Instance = target.Name
	instance.Status.StartTime = &now
	meta.SetStatusCondition(&instance.Status.Conditions, newRunningBackupCondition(backupID))
	// flush before the stream blocks the pass so watchers see Running
	r.persistStatus(syncCtx)
	r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "starting backup [%s] from instance [%s]", backupID, target.Name)

	defer func() {
		// undoing the offline flag must run for every outcome, a member left
		// offline blocks all future backups
		if err := admin.SetOfflineMode(ctx, memberAddress(target), false); err != nil {
			runErr = errors.Join(runErr, err)
		}
		if err := admin.ReleaseBackupLock(ctx, session); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}()

	// offline mode hides the member from routing while it serves the stream
	if err := admin.SetOfflineMode(ctx, memberAddress(target), true); err != nil {
		return err
	}

	if err := r.uploadMetadata(syncCtx, backupID, target.Name); err != nil {
		return err
	}

	stdout, stderr, execErr := r.streamBackup(syncCtx, target, backupPassword, backupID)

	// the engine output goes up for every outcome, a log without a checksum
	// is how a failed run shows in list-backups
	logBody := fmt.Sprintf("Stdout:\n%s\n\nStderr:\n%s\n", stdout, stderr)
	if err := syncCtx.store.Upload(ctx, backupID+objstore.LogSuffix, strings.NewReader(logBody)); err != nil {
		syncCtx.reqLogger.Error(err, "failed to upload backup log")
	}

	if execErr != nil {
		return fmt.Errorf("backup command failed on [%s]: %v", target.Name, execErr)
	}

	// xbcloud writes the checksum object only once every chunk is uploaded
	finished, err := syncCtx.store.Exists(ctx, backupID+objstore.ChecksumSuffix)
	if err != nil {
		return err
	}
	if !finished {
		return fmt.Errorf("backup [%s] left no checksum in object storage", backupID)
	}

	return nil
}

// pickBackupTarget returns the member the backup streams from. Secondaries
// are preferred in ordinal order so the write node keeps serving; a single
// member cluster has no choice but its primary.
func pickBackupTarget(cluster *icv1alpha1.InnodbCluster, infos *innodbutil.ClusterInfos, primaryAddr string) (*icv1alpha1.CommonNode, error) {
	if len(cluster.Spec.Member) == 1 {
		node := cluster.Spec.Member[0]
		if state := memberState(infos, node); state != innodbutil.MysqlOnlineState {
			return nil, fmt.Errorf("member [%s] cannot serve a backup in state [%s]", node.Name, state)
		}

		return node, nil
	}

	for _, node := range cluster.Spec.Member {
		addr := memberAddress(node)
		if addr == primaryAddr {
			continue
		}

		if info, ok := infos.Infos[addr]; ok && info.State == innodbutil.MysqlOnlineState {
			return node, nil
		}
	}

	return nil, fmt.Errorf("innodb cluster [%s] has no online secondary to back up from", cluster.Name)
}

// streamBackup executes the xtrabackup pipeline inside the target pod. The
// stream goes straight to object storage, nothing is staged locally.
func (r *ReconcileInnodbBackup) streamBackup(syncCtx *syncContext, target *icv1alpha1.CommonNode, backupPassword, backupID string) (string, string, error) {
	pod := &corev1.Pod{}
	if err := r.client.Get(syncCtx.ctx, types.NamespacedName{
		Namespace: syncCtx.instance.Namespace,
		Name:      target.Name,
	}, pod); err != nil {
		return "", "", fmt.Errorf("failed to fetch pod [%s]: %w", target.Name, err)
	}

	script := backupScript(syncCtx.storeCfg, syncCtx.cluster, target, backupPassword, backupID)

	return r.exec.ExecCommandInContainerWithTimeout(pod, mysqlContainerName, backupStreamTimeout, "sh", "-c", script)
}

// uploadMetadata announces the backup in object storage before any data
// flows. Its presence is what makes the backup exist for list-backups.
func (r *ReconcileInnodbBackup) uploadMetadata(syncCtx *syncContext, backupID, instanceName string) error {
	body := fmt.Sprintf("cluster-name: %s\ninstance: %s\nstarted-at: %s\n",
		syncCtx.cluster.Name, instanceName, backupID)

	return syncCtx.store.Upload(syncCtx.ctx, backupID+objstore.MetadataSuffix, strings.NewReader(body))
}

// resolveInterrupted settles a backup found Running at entry, the previous
// pass died mid stream. The checksum object is the only durable truth about
// the outcome. The interrupted pass never reached its cleanup, so the member
// is un-hidden here or every future backup stays blocked on the offline probe.
func (r *ReconcileInnodbBackup) resolveInterrupted(syncCtx *syncContext) (bool, error) {
	instance := syncCtx.instance

	finished, err := syncCtx.store.Exists(syncCtx.ctx, instance.Status.BackupID+objstore.ChecksumSuffix)
	if err != nil {
		return false, err
	}

	for _, node := range syncCtx.cluster.Spec.Member {
		if node.Name != instance.Status.Instance {
			continue
		}

		if err := syncCtx.admin.SetOfflineMode(syncCtx.ctx, memberAddress(node), false); err != nil {
			return false, err
		}
	}

	return finished, nil
}

// persistStatus flushes the status mid pass.
func (r *ReconcileInnodbBackup) persistStatus(syncCtx *syncContext) {
	if err := r.client.Status().Update(syncCtx.ctx, syncCtx.instance); err != nil {
		syncCtx.reqLogger.Error(err, "failed to update innodb backup status")
	}
}
