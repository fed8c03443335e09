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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
)

func TestFailedBackupConditionPermissionDenied(t *testing.T) {
	// an RBAC refusal carries its own reason and tells the operator what
	// to grant, anything else keeps the generic failure reason
	forbidden := fmt.Errorf("failed to fetch secret [mysql-secret]: %w",
		apierrors.NewForbidden(corev1.Resource("secrets"), "mysql-secret", errors.New("no access granted")))

	condition := newFailedBackupCondition(forbidden)
	assert.Equal(t, PermissionBlocked, condition.Reason)
	assert.Contains(t, condition.Message, "RBAC")

	condition = newFailedBackupCondition(errors.New("stream broke"))
	assert.Equal(t, CreateBackupFailed, condition.Reason)
}

func testRequest() reconcile.Request {
	return reconcile.Request{
		NamespacedName: types.NamespacedName{Namespace: "default", Name: "mysql-backup"},
	}
}

func TestReconcileInstanceNotFound(t *testing.T) {
	r, _ := newTestReconciler(nil)

	result, err := r.Reconcile(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, reconcile.Result{}, result)
}

func TestReconcileTerminalStateIsStable(t *testing.T) {
	ctx := context.Background()

	instance := newTestBackup(icv1alpha1.BackupStateSucceeded)
	r, k8sClient := newTestReconciler(nil, instance)

	result, err := r.Reconcile(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, reconcile.Result{}, result)

	updated := &icv1alpha1.InnodbBackup{}
	require.NoError(t, k8sClient.Get(ctx, testRequest().NamespacedName, updated))
	assert.Equal(t, icv1alpha1.BackupStateSucceeded, updated.Status.State)
}

func TestReconcileFreshBackupTurnsPending(t *testing.T) {
	ctx := context.Background()

	instance := newTestBackup("")
	r, k8sClient := newTestReconciler(nil, instance)

	result, err := r.Reconcile(ctx, testRequest())
	require.NoError(t, err)
	assert.True(t, result.Requeue)

	updated := &icv1alpha1.InnodbBackup{}
	require.NoError(t, k8sClient.Get(ctx, testRequest().NamespacedName, updated))
	assert.Equal(t, icv1alpha1.BackupStatePending, updated.Status.State)

	condition := meta.FindStatusCondition(updated.Status.Conditions, icv1alpha1.ConditionTypeBackupReady)
	require.NotNil(t, condition)
	assert.Equal(t, CreateBackupPending, condition.Reason)
}

func TestReconcileSkipAnnotationDefers(t *testing.T) {
	ctx := context.Background()

	instance := newTestBackup("")
	instance.Annotations = map[string]string{icv1alpha1.SkipReconcileKey: "true"}
	r, k8sClient := newTestReconciler(nil, instance)

	result, err := r.Reconcile(ctx, testRequest())
	require.NoError(t, err)
	assert.True(t, result.Requeue)
	assert.Equal(t, requeueAfter, result.RequeueAfter)

	// the lifecycle never started
	updated := &icv1alpha1.InnodbBackup{}
	require.NoError(t, k8sClient.Get(ctx, testRequest().NamespacedName, updated))
	assert.Equal(t, icv1alpha1.BackupState(""), updated.Status.State)
}

func TestReconcileMissingClusterRequeues(t *testing.T) {
	ctx := context.Background()

	instance := newTestBackup(icv1alpha1.BackupStatePending)
	r, k8sClient := newTestReconciler(nil, instance)

	result, err := r.Reconcile(ctx, testRequest())
	require.NoError(t, err)
	assert.True(t, result.Requeue)
	assert.Equal(t, requeueAfter, result.RequeueAfter)

	updated := &icv1alpha1.InnodbBackup{}
	require.NoError(t, k8sClient.Get(ctx, testRequest().NamespacedName, updated))
	assert.Equal(t, icv1alpha1.BackupStatePending, updated.Status.State)
}

func TestReconcileMissingSecretSetsCondition(t *testing.T) {
	ctx := context.Background()

	instance := newTestBackup(icv1alpha1.BackupStatePending)
	cluster := newTestCluster(3)
	r, k8sClient := newTestReconciler(nil, instance, cluster)

	result, err := r.Reconcile(ctx, testRequest())
	require.NoError(t, err)
	assert.True(t, result.Requeue)

	updated := &icv1alpha1.InnodbBackup{}
	require.NoError(t, k8sClient.Get(ctx, testRequest().NamespacedName, updated))
	assert.Equal(t, icv1alpha1.BackupStatePending, updated.Status.State)

	condition := meta.FindStatusCondition(updated.Status.Conditions, icv1alpha1.ConditionTypeBackupReady)
	require.NotNil(t, condition)
	assert.Equal(t, CreateBackupFailed, condition.Reason)
}

func TestReconcileMissingStorageSecretSetsCondition(t *testing.T) {
	setupTestAESKey(t)
	ctx := context.Background()

	instance := newTestBackup(icv1alpha1.BackupStatePending)
	cluster := newTestCluster(3)
	secret := newTestSecret(t, "mysql-secret", map[string]string{
		"clusterAdmin": "adminpw",
		"backup":       "backuppw",
	})

	r, k8sClient := newTestReconciler(nil, instance, cluster, secret)

	result, err := r.Reconcile(ctx, testRequest())
	require.NoError(t, err)
	assert.True(t, result.Requeue)

	updated := &icv1alpha1.InnodbBackup{}
	require.NoError(t, k8sClient.Get(ctx, testRequest().NamespacedName, updated))
	assert.Equal(t, icv1alpha1.BackupStatePending, updated.Status.State)

	condition := meta.FindStatusCondition(updated.Status.Conditions, icv1alpha1.ConditionTypeBackupReady)
	require.NotNil(t, condition)
	assert.Equal(t, CreateBackupFailed, condition.Reason)
}

func TestReconcilePendingFailsWhenEngineUnreachable(t *testing.T) {
	setupTestAESKey(t)
	ctx := context.Background()

	instance := newTestBackup(icv1alpha1.BackupStatePending)
	cluster := newTestCluster(3)
	secret := newTestSecret(t, "mysql-secret", map[string]string{
		"clusterAdmin": "adminpw",
		"backup":       "backuppw",
	})
	storageSecret := newTestSecret(t, "backup-storage-secret", map[string]string{
		s3AccessKeyName: "test-access-key",
		s3SecretKeyName: "test-secret-key",
	})

	r, k8sClient := newTestReconciler(nil, instance, cluster, secret, storageSecret)

	// no engine answers, the probe sees no primary and the run settles Failed
	result, err := r.Reconcile(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, reconcile.Result{}, result)

	updated := &icv1alpha1.InnodbBackup{}
	require.NoError(t, k8sClient.Get(ctx, testRequest().NamespacedName, updated))
	assert.Equal(t, icv1alpha1.BackupStateFailed, updated.Status.State)
	assert.NotNil(t, updated.Status.CompletionTime)

	condition := meta.FindStatusCondition(updated.Status.Conditions, icv1alpha1.ConditionTypeBackupReady)
	require.NotNil(t, condition)
	assert.Equal(t, CreateBackupFailed, condition.Reason)
	assert.Contains(t, condition.Message, "no online primary")
}
