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
	"fmt"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/k8sutil"
	"github.com/upmio/innodb-cluster-operator/pkg/objstore"
)

const (
	appName      = "innodb-backup"
	ErrSynced    = "ErrSynced"
	Synced       = "Synced"
	requeueAfter = 10 * time.Second

	CreateBackupPending = "CreateBackupPending"
	CreateBackupRunning = "CreateBackupRunning"
	CreateBackupSucceed = "CreateBackupSucceed"
	CreateBackupFailed  = "CreateBackupFailed"
	PermissionBlocked   = "PermissionBlocked"

	mysqlContainerName = "mysql"

	// xtrabackup keeps its checkpoint files outside the datadir so the
	// stream carries nothing but server data
	backupLSNDir = "/tmp/xtrabackup_lsndir"

	// the stream blocks the reconcile for the whole run, large datasets
	// take hours
	backupStreamTimeout = 6 * time.Hour
)

// key names inside the storage secret
const (
	s3AccessKeyName = "access-key-id"
	s3SecretKeyName = "secret-access-key"
)

// ReconcileInnodbBackup reconciles an InnodbBackup object
type ReconcileInnodbBackup struct {
	client   client.Client
	scheme   *runtime.Scheme
	recorder record.EventRecorder
	logger   logr.Logger
	exec     k8sutil.IExec
}

// blank assignment to verify that ReconcileInnodbBackup implements reconcile.Reconciler
var _ reconcile.Reconciler = &ReconcileInnodbBackup{}

// syncCtx
type syncContext struct {
	instance  *icv1alpha1.InnodbBackup
	cluster   *icv1alpha1.InnodbCluster
	admin     innodbutil.IClusterAdmin
	store     *objstore.Store
	storeCfg  objstore.Config
	ctx       context.Context
	reqLogger logr.Logger
}

// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbbackups,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbbackups/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbclusters,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=pods,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=pods/exec,verbs=create

// Reconcile reconcile innodb backup
func (r *ReconcileInnodbBackup) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	reqLogger := r.logger.WithValues("namespace", req.Namespace, "name", req.Name)
	reqLogger.Info("starting reconciliation for innodb backup")
	startTime := time.Now()
	defer func() {
		reqLogger.Info("finished reconciliation", "duration", time.Since(startTime))
	}()

	// Fetch the InnodbBackup instance
	instance := &icv1alpha1.InnodbBackup{}
	if err := r.client.Get(ctx, req.NamespacedName, instance); err != nil {
		if errors.IsNotFound(err) {
			reqLogger.Info("innodb backup resource not found, probably deleted.")
			return reconcile.Result{}, nil
		}

		reqLogger.Error(err, "failed to fetch innodb backup resource")
		return reconcile.Result{}, err
	}

	// one resource runs one backup, terminal states never rerun
	switch instance.Status.State {
	case icv1alpha1.BackupStateSucceeded, icv1alpha1.BackupStateFailed:
		return reconcile.Result{}, nil
	}

	if value, found := instance.GetAnnotations()[icv1alpha1.SkipReconcileKey]; found && value != "false" {
		reqLogger.Info("reconciliation is skipped for this resource")

		return reconcile.Result{
			Requeue:      true,
			RequeueAfter: requeueAfter,
		}, nil
	}

	oldStatus := instance.Status.DeepCopy()

	// stamp the acceptance before touching the cluster so the resource shows
	// its lifecycle from the first pass
	if instance.Status.State == "" {
		instance.Status.State = icv1alpha1.BackupStatePending
		meta.SetStatusCondition(&instance.Status.Conditions, newPendingBackupCondition())
		r.updateInstanceIfNeed(ctx, instance, oldStatus, reqLogger)

		return reconcile.Result{Requeue: true}, nil
	}

	// Fetch the InnodbCluster the backup streams from
	cluster := &icv1alpha1.InnodbCluster{}
	if err := r.client.Get(ctx, types.NamespacedName{
		Namespace: instance.Namespace,
		Name:      instance.Spec.ClusterName,
	}, cluster); err != nil {
		if errors.IsNotFound(err) {
			r.recorder.Eventf(instance, corev1.EventTypeWarning, ErrSynced, "innodb cluster [%s] not found", instance.Spec.ClusterName)

			return reconcile.Result{
				Requeue:      true,
				RequeueAfter: requeueAfter,
			}, nil
		}

		reqLogger.Error(err, "failed to fetch innodb cluster resource")
		return reconcile.Result{}, err
	}

	if len(cluster.Spec.Member) == 0 {
		r.recorder.Eventf(instance, corev1.EventTypeWarning, ErrSynced, "innodb cluster [%s] has no members", instance.Spec.ClusterName)

		return reconcile.Result{
			Requeue:      true,
			RequeueAfter: requeueAfter,
		}, nil
	}

	syncCtx := &syncContext{
		instance:  instance,
		cluster:   cluster,
		ctx:       ctx,
		reqLogger: reqLogger,
	}

	adminPassword, backupPassword, err := decryptSecret(r.client, cluster)
	if err != nil {
		meta.SetStatusCondition(&instance.Status.Conditions, newFailedBackupCondition(err))
		r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, err.Error())
		r.updateInstanceIfNeed(ctx, instance, oldStatus, reqLogger)

		if errors.IsForbidden(err) {
			// a 403 needs an RBAC change, not a retry
			return reconcile.Result{}, nil
		}

		return reconcile.Result{
			Requeue:      true,
			RequeueAfter: requeueAfter,
		}, nil
	}

	store, storeCfg, err := newObjectStore(ctx, r.client, instance, reqLogger)
	if err != nil {
		meta.SetStatusCondition(&instance.Status.Conditions, newFailedBackupCondition(err))
		r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, err.Error())
		r.updateInstanceIfNeed(ctx, instance, oldStatus, reqLogger)

		if errors.IsForbidden(err) {
			return reconcile.Result{}, nil
		}

		return reconcile.Result{
			Requeue:      true,
			RequeueAfter: requeueAfter,
		}, nil
	}
	syncCtx.store = store
	syncCtx.storeCfg = storeCfg

	admin := newClusterAdmin(cluster, adminPassword, reqLogger)
	defer admin.Close()
	syncCtx.admin = admin

	switch instance.Status.State {
	case icv1alpha1.BackupStatePending:
		r.finishBackup(syncCtx, r.handleBackup(syncCtx, backupPassword))

	case icv1alpha1.BackupStateRunning:
		// a Running resource at entry means a previous pass died mid stream
		finished, err := r.resolveInterrupted(syncCtx)
		if err != nil {
			meta.SetStatusCondition(&instance.Status.Conditions, newFailedBackupCondition(err))
			r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, err.Error())
			r.updateInstanceIfNeed(ctx, instance, oldStatus, reqLogger)

			if errors.IsForbidden(err) {
				return reconcile.Result{}, nil
			}

			return reconcile.Result{
				Requeue:      true,
				RequeueAfter: requeueAfter,
			}, nil
		}

		if finished {
			r.finishBackup(syncCtx, nil)
		} else {
			r.finishBackup(syncCtx, fmt.Errorf("backup [%s] was interrupted before its checksum was written", instance.Status.BackupID))
		}
	}

	r.updateInstanceIfNeed(ctx, instance, oldStatus, reqLogger)

	return reconcile.Result{}, nil
}

// finishBackup settles the resource in a terminal state.
func (r *ReconcileInnodbBackup) finishBackup(syncCtx *syncContext, runErr error) {
	instance := syncCtx.instance

	now := metav1.Now()
	instance.Status.CompletionTime = &now

	if runErr != nil {
		instance.Status.State = icv1alpha1.BackupStateFailed
		meta.SetStatusCondition(&instance.Status.Conditions, newFailedBackupCondition(runErr))
		r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, runErr.Error())
		return
	}

	instance.Status.State = icv1alpha1.BackupStateSucceeded
	meta.SetStatusCondition(&instance.Status.Conditions, newSucceedBackupCondition(instance.Status.BackupID))
	r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "backup [%s] completed from instance [%s]", instance.Status.BackupID, instance.Status.Instance)
}

func Setup(mgr ctrl.Manager) error {
	clientset, err := kubernetes.NewForConfig(mgr.GetConfig())
	if err != nil {
		return err
	}

	r := &ReconcileInnodbBackup{
		client:   mgr.GetClient(),
		scheme:   mgr.GetScheme(),
		recorder: mgr.GetEventRecorderFor(appName),
		logger:   ctrl.Log.WithName(appName),
		exec:     k8sutil.NewRemoteExec(clientset.CoreV1().RESTClient(), mgr.GetConfig(), ctrl.Log.WithName(appName)),
	}

	return ctrl.NewControllerManagedBy(mgr).
		For(&icv1alpha1.InnodbBackup{}).
		WithOptions(
			controller.Options{MaxConcurrentReconciles: 10},
		).
		Complete(r)
}
