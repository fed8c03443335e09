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
	"context"
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
	appName      = "innodb-restore"
	ErrSynced    = "ErrSynced"
	Synced       = "Synced"
	requeueAfter = 10 * time.Second

	RestorePending = "RestorePending"
	RestoreRunning = "RestoreRunning"
	RestoreSucceed = "RestoreSucceed"
	RestoreFailed  = "RestoreFailed"

	// RestoreBlocked marks the cluster condition left behind by a
	// non-recoverable failure.
	RestoreBlocked = "RestoreBlocked"

	PermissionBlocked = "PermissionBlocked"

	mysqlContainerName = "mysql"

	// the fetched backup is staged and prepared here before it replaces the
	// datadir
	restoreTempDir = "/tmp/xtrabackup_restore"

	mysqlDataDir = "/var/lib/mysql"

	// fetching pulls the full dataset from object storage, prepare replays
	// the redo log over it; both block the reconcile
	restoreFetchTimeout   = 6 * time.Hour
	restorePrepareTimeout = 2 * time.Hour
)

// key names inside the storage secret
const (
	s3AccessKeyName = "access-key-id"
	s3SecretKeyName = "secret-access-key"
)

var (
	serverStartTimeout  = 30 * time.Second
	serverStartInterval = 5 * time.Second
)

// ReconcileInnodbRestore reconciles an InnodbRestore object
type ReconcileInnodbRestore struct {
	client   client.Client
	scheme   *runtime.Scheme
	recorder record.EventRecorder
	logger   logr.Logger
	exec     k8sutil.IExec
}

// blank assignment to verify that ReconcileInnodbRestore implements reconcile.Reconciler
var _ reconcile.Reconciler = &ReconcileInnodbRestore{}

// syncCtx
type syncContext struct {
	instance  *icv1alpha1.InnodbRestore
	cluster   *icv1alpha1.InnodbCluster
	admin     innodbutil.IClusterAdmin
	store     *objstore.Store
	storeCfg  objstore.Config
	ctx       context.Context
	reqLogger logr.Logger
}

// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbrestores,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbrestores/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbclusters,verbs=get;list;watch
// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbclusters/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=pods,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=pods/exec,verbs=create

// Reconcile reconcile innodb restore
func (r *ReconcileInnodbRestore) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	reqLogger := r.logger.WithValues("namespace", req.Namespace, "name", req.Name)
	reqLogger.Info("starting reconciliation for innodb restore")
	startTime := time.Now()
	defer func() {
		reqLogger.Info("finished reconciliation", "duration", time.Since(startTime))
	}()

	// Fetch the InnodbRestore instance
	instance := &icv1alpha1.InnodbRestore{}
	if err := r.client.Get(ctx, req.NamespacedName, instance); err != nil {
		if errors.IsNotFound(err) {
			reqLogger.Info("innodb restore resource not found, probably deleted.")
			return reconcile.Result{}, nil
		}

		reqLogger.Error(err, "failed to fetch innodb restore resource")
		return reconcile.Result{}, err
	}

	// one resource runs one restore, terminal states never rerun
	switch instance.Status.State {
	case icv1alpha1.RestoreStateSucceeded, icv1alpha1.RestoreStateFailed:
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
		instance.Status.State = icv1alpha1.RestoreStatePending
		meta.SetStatusCondition(&instance.Status.Conditions, newPendingRestoreCondition())
		r.updateInstanceIfNeed(ctx, instance, oldStatus, reqLogger)

		return reconcile.Result{Requeue: true}, nil
	}

	// Fetch the InnodbCluster the backup is restored into
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

	adminPassword, configPassword, err := decryptSecret(r.client, cluster)
	if err != nil {
		meta.SetStatusCondition(&instance.Status.Conditions, newFailedRestoreCondition(err))
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
		meta.SetStatusCondition(&instance.Status.Conditions, newFailedRestoreCondition(err))
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
	case icv1alpha1.RestoreStatePending:
		r.finishRestore(syncCtx, r.handleRestore(syncCtx, configPassword))

	case icv1alpha1.RestoreStateRunning:
		// a Running resource at entry means a previous pass died mid run
		r.finishRestore(syncCtx, r.resolveInterrupted(syncCtx))
	}

	r.updateInstanceIfNeed(ctx, instance, oldStatus, reqLogger)

	return reconcile.Result{}, nil
}

// finishRestore settles the resource in a terminal state. A non-recoverable
// failure additionally marks the cluster blocked; a success clears any such
// mark from an earlier attempt.
func (r *ReconcileInnodbRestore) finishRestore(syncCtx *syncContext, runErr error) {
	instance := syncCtx.instance

	now := metav1.Now()
	instance.Status.CompletionTime = &now
	instance.Status.Step = ""

	if runErr != nil {
		instance.Status.State = icv1alpha1.RestoreStateFailed
		meta.SetStatusCondition(&instance.Status.Conditions, newFailedRestoreCondition(runErr))
		r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, runErr.Error())

		if instance.Status.Recoverable != nil && !*instance.Status.Recoverable {
			r.markCluster(syncCtx, newClusterBlockedCondition(instance, runErr))
		}
		return
	}

	instance.Status.State = icv1alpha1.RestoreStateSucceeded
	meta.SetStatusCondition(&instance.Status.Conditions, newSucceedRestoreCondition(instance.Spec.BackupID))
	r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "backup [%s] restored into innodb cluster [%s]", instance.Spec.BackupID, syncCtx.cluster.Name)

	r.markCluster(syncCtx, newClusterRestoredCondition(instance))
}

// markCluster writes the restore outcome onto the cluster resource so the
// topology surface shows it without chasing restore objects.
func (r *ReconcileInnodbRestore) markCluster(syncCtx *syncContext, condition metav1.Condition) {
	cluster := syncCtx.cluster

	meta.SetStatusCondition(&cluster.Status.Conditions, condition)
	if err := r.client.Status().Update(syncCtx.ctx, cluster); err != nil {
		syncCtx.reqLogger.Error(err, "failed to update innodb cluster status")
	}
}

func Setup(mgr ctrl.Manager) error {
	clientset, err := kubernetes.NewForConfig(mgr.GetConfig())
	if err != nil {
		return err
	}

	r := &ReconcileInnodbRestore{
		client:   mgr.GetClient(),
		scheme:   mgr.GetScheme(),
		recorder: mgr.GetEventRecorderFor(appName),
		logger:   ctrl.Log.WithName(appName),
		exec:     k8sutil.NewRemoteExec(clientset.CoreV1().RESTClient(), mgr.GetConfig(), ctrl.Log.WithName(appName)),
	}

	return ctrl.NewControllerManagedBy(mgr).
		For(&icv1alpha1.InnodbRestore{}).
		WithOptions(
			controller.Options{MaxConcurrentReconciles: 10},
		).
		Complete(r)
}
