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

package innodbrestore

import (
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/objstore"
)

const (
	stepStopServer      = "stop-server"
	stepFetchBackup     = "fetch-backup"
	stepPrepareBackup   = "prepare-backup"
	stepWipeDataDir     = "wipe-data-dir"
	stepMoveBack        = "move-back"
	stepRestartServer   = "restart-server"
	stepRecreateCluster = "recreate-cluster"
	stepRescanCluster   = "rescan-cluster"
)

// restoreStep is one stage of the restore sequence. A recoverable step leaves
// the original data directory untouched, so failing it still allows the old
// server to come back.
type restoreStep struct {
	name        string
	recoverable bool
	run         func(*syncContext) error
}

// restoreSteps returns the sequence in execution order. Everything up to the
// prepare runs against the staging directory only; the wipe is the point of
// no return.
func (r *ReconcileInnodbRestore) restoreSteps(configPassword string) []restoreStep {
	return []restoreStep{
		{name: stepStopServer, recoverable: true, run: r.stopServer},
		{name: stepFetchBackup, recoverable: true, run: r.fetchBackup},
		{name: stepPrepareBackup, recoverable: true, run: r.prepareBackup},
		{name: stepWipeDataDir, recoverable: false, run: r.wipeDataDir},
		{name: stepMoveBack, recoverable: false, run: r.moveBack},
		{name: stepRestartServer, recoverable: false, run: r.restartServer},
		{name: stepRecreateCluster, recoverable: false, run: func(syncCtx *syncContext) error {
			return r.recreateCluster(syncCtx, configPassword)
		}},
		{name: stepRescanCluster, recoverable: false, run: r.rescanCluster},
	}
}

// handleRestore runs one restore end to end: precondition checks, then the
// ordered step sequence. Each step name is persisted before the step runs so
// a crashed pass leaves behind how far it came.
func (r *ReconcileInnodbRestore) handleRestore(syncCtx *syncContext, configPassword string) error {
	instance := syncCtx.instance
	cluster := syncCtx.cluster

	// restoring replaces the data of every member; with more than one the
	// extras would be left on a diverged timeline, refuse instead
	if len(cluster.Spec.Member) != 1 {
		return fmt.Errorf("innodb cluster [%s] runs %d members, a restore needs exactly one", cluster.Name, len(cluster.Spec.Member))
	}

	if err := r.validateBackup(syncCtx); err != nil {
		return err
	}

	now := metav1.Now()
	instance.Status.State = icv1alpha1.RestoreStateRunning
	instance.Status.StartTime = &now
	r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "starting restore of backup [%s] into innodb cluster [%s]", instance.Spec.BackupID, cluster.Name)

	for _, step := range r.restoreSteps(configPassword) {
		instance.Status.Step = step.name
		meta.SetStatusCondition(&instance.Status.Conditions, newRunningRestoreCondition(instance.Spec.BackupID, step.name))
		r.persistStatus(syncCtx)

		if err := step.run(syncCtx); err != nil {
			recoverable := step.recoverable
			instance.Status.FailedStep = step.name
			instance.Status.Recoverable = &recoverable

			if recoverable {
				r.recoverMember(syncCtx)
			}

			return fmt.Errorf("restore step [%s] failed: %v", step.name, err)
		}
	}

	return nil
}

// validateBackup requires the backup to exist and be finished. Anything else
// would restore a torn dataset.
func (r *ReconcileInnodbRestore) validateBackup(syncCtx *syncContext) error {
	records, err := syncCtx.store.ListBackups(syncCtx.ctx)
	if err != nil {
		return err
	}

	backupID := syncCtx.instance.Spec.BackupID
	for _, record := range records {
		if record.ID != backupID {
			continue
		}

		if record.Status != objstore.BackupFinished {
			return fmt.Errorf("backup [%s] is %s, only finished backups can be restored", backupID, record.Status)
		}

		return nil
	}

	return fmt.Errorf("backup [%s] not found in object storage", backupID)
}

func (r *ReconcileInnodbRestore) stopServer(syncCtx *syncContext) error {
	if err := r.runScript(syncCtx, 0, stopServerScript()); err != nil {
		return fmt.Errorf("failed to stop mysqld on [%s]: %v", restoreTarget(syncCtx).Name, err)
	}

	return nil
}

func (r *ReconcileInnodbRestore) fetchBackup(syncCtx *syncContext) error {
	script := fetchScript(syncCtx.storeCfg, syncCtx.instance.Spec.BackupID)
	if err := r.runScript(syncCtx, restoreFetchTimeout, script); err != nil {
		return fmt.Errorf("failed to fetch backup [%s]: %v", syncCtx.instance.Spec.BackupID, err)
	}

	return nil
}

func (r *ReconcileInnodbRestore) prepareBackup(syncCtx *syncContext) error {
	if err := r.runScript(syncCtx, restorePrepareTimeout, prepareScript()); err != nil {
		return fmt.Errorf("failed to prepare backup [%s]: %v", syncCtx.instance.Spec.BackupID, err)
	}

	return nil
}

func (r *ReconcileInnodbRestore) wipeDataDir(syncCtx *syncContext) error {
	if err := r.runScript(syncCtx, 0, wipeDataDirScript()); err != nil {
		return fmt.Errorf("failed to wipe data directory on [%s]: %v", restoreTarget(syncCtx).Name, err)
	}

	return nil
}

func (r *ReconcileInnodbRestore) moveBack(syncCtx *syncContext) error {
	if err := r.runScript(syncCtx, 0, moveBackScript()); err != nil {
		return fmt.Errorf("failed to move backup [%s] into the data directory: %v", syncCtx.instance.Spec.BackupID, err)
	}

	return nil
}

// restartServer brings mysqld back over the restored data and waits for it to
// accept connections. mysqld replays the redo log before it listens, the
// first dials fail until recovery completes.
func (r *ReconcileInnodbRestore) restartServer(syncCtx *syncContext) error {
	node := restoreTarget(syncCtx)

	if err := r.runScript(syncCtx, 0, cleanupTempScript()+" && "+startServerScript()); err != nil {
		return fmt.Errorf("failed to start mysqld on [%s]: %v", node.Name, err)
	}

	return r.waitServerOnline(syncCtx)
}

func (r *ReconcileInnodbRestore) waitServerOnline(syncCtx *syncContext) error {
	addr := memberAddress(restoreTarget(syncCtx))

	deadline := time.Now().Add(serverStartTimeout)
	for {
		err := syncCtx.admin.Connections().Reconnect(addr)
		if err == nil {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("server [%s] did not accept connections within %s: %v", addr, serverStartTimeout, err)
		}

		select {
		case <-syncCtx.ctx.Done():
			return syncCtx.ctx.Err()
		case <-time.After(serverStartInterval):
		}
	}
}

// recreateCluster bootstraps a fresh group on the restored member. The
// restored data still carries the old group metadata, so the member must not
// rejoin anything, it becomes the whole cluster.
func (r *ReconcileInnodbRestore) recreateCluster(syncCtx *syncContext, configPassword string) error {
	cluster := syncCtx.cluster
	addr := memberAddress(restoreTarget(syncCtx))

	return syncCtx.admin.CreateCluster(syncCtx.ctx, addr, cluster.Spec.Secret.ServerConfig, configPassword)
}

// rescanCluster grades the rebuilt cluster on what the group actually
// reports: exactly the restored member, online.
func (r *ReconcileInnodbRestore) rescanCluster(syncCtx *syncContext) error {
	node := restoreTarget(syncCtx)

	members, err := syncCtx.admin.GetGroupMembers(syncCtx.ctx, memberAddress(node))
	if err != nil {
		return err
	}

	if len(members) != 1 {
		return fmt.Errorf("restored cluster [%s] reports %d group members, want only [%s]", syncCtx.cluster.Name, len(members), node.Name)
	}

	if members[0].State != innodbutil.MysqlOnlineState {
		return fmt.Errorf("restored member [%s] is in state [%s], not %s", node.Name, members[0].State, innodbutil.MysqlOnlineState)
	}

	return nil
}

// recoverMember puts the member back the way it was before the run: the
// staging directory goes away and mysqld starts over the untouched datadir.
// The resource is settling Failed either way, so errors are only logged.
func (r *ReconcileInnodbRestore) recoverMember(syncCtx *syncContext) {
	if err := r.runScript(syncCtx, 0, cleanupTempScript()+" && "+startServerScript()); err != nil {
		syncCtx.reqLogger.Error(err, "failed to recover member after restore failure")
	}
}

// resolveInterrupted settles a restore found Running at entry, a previous
// pass died mid run. The step persisted before the crash bounds the damage:
// up to the prepare the original data is still in place, from the wipe on the
// member cannot be brought back automatically.
func (r *ReconcileInnodbRestore) resolveInterrupted(syncCtx *syncContext) error {
	instance := syncCtx.instance
	step := instance.Status.Step

	// the final step is a read only probe, re-running it answers whether the
	// interrupted run had already brought the cluster back
	if step == stepRescanCluster {
		if err := r.rescanCluster(syncCtx); err == nil {
			return nil
		}
	}

	recoverable := r.stepRecoverable(step)
	instance.Status.FailedStep = step
	instance.Status.Recoverable = recoverable

	if recoverable != nil && *recoverable {
		r.recoverMember(syncCtx)
	}

	return fmt.Errorf("restore was interrupted during step [%s]", step)
}

// stepRecoverable reports whether the named step leaves the original data
// intact. Unknown names return nil, nothing is promised about the member.
func (r *ReconcileInnodbRestore) stepRecoverable(name string) *bool {
	for _, step := range r.restoreSteps("") {
		if step.name == name {
			recoverable := step.recoverable
			return &recoverable
		}
	}

	return nil
}

// runScript executes one shell script inside the member's mysql container.
func (r *ReconcileInnodbRestore) runScript(syncCtx *syncContext, timeout time.Duration, script string) error {
	node := restoreTarget(syncCtx)

	pod := &corev1.Pod{}
	if err := r.client.Get(syncCtx.ctx, types.NamespacedName{
		Namespace: syncCtx.instance.Namespace,
		Name:      node.Name,
	}, pod); err != nil {
		return fmt.Errorf("failed to fetch pod [%s]: %w", node.Name, err)
	}

	var stdout, stderr string
	var err error
	if timeout > 0 {
		stdout, stderr, err = r.exec.ExecCommandInContainerWithTimeout(pod, mysqlContainerName, timeout, "sh", "-c", script)
	} else {
		stdout, stderr, err = r.exec.ExecCommandInContainer(pod, mysqlContainerName, "sh", "-c", script)
	}

	if err != nil {
		syncCtx.reqLogger.Info("restore command failed", "script", script, "stdout", stdout, "stderr", stderr)
		return err
	}

	return nil
}

// persistStatus flushes the status mid pass.
func (r *ReconcileInnodbRestore) persistStatus(syncCtx *syncContext) {
	if err := r.client.Status().Update(syncCtx.ctx, syncCtx.instance); err != nil {
		syncCtx.reqLogger.Error(err, "failed to update innodb restore status")
	}
}
