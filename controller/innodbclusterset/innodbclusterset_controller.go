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

package innodbclusterset

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/databag"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
)

const (
	appName      = "innodb-cluster-set"
	ErrSynced    = "ErrSynced"
	Synced       = "Synced"
	requeueAfter = 10 * time.Second

	SyncReplicationFailed  = "SyncReplicationFailed"
	SyncReplicationSucceed = "SyncReplicationSucceed"
	PairingBlocked         = "PairingBlocked"
	PermissionBlocked      = "PermissionBlocked"

	finalizer = "upm.syntropycloud.io/innodbclusterset-finalizer"
)

// peer databag keys of the local cluster this controller resets when the
// replica cluster is absorbed into the set.
const (
	unitsAddedKey           = "units-added-to-cluster"
	unitInitializedKey      = "unit-initialized"
	clusterSetDomainNameKey = "cluster-set-domain-name"
)

// ReconcileInnodbClusterSet reconciles an InnodbClusterSet object
type ReconcileInnodbClusterSet struct {
	client   client.Client
	scheme   *runtime.Scheme
	recorder record.EventRecorder
	logger   logr.Logger
}

// blank assignment to verify that ReconcileInnodbClusterSet implements reconcile.Reconciler
var _ reconcile.Reconciler = &ReconcileInnodbClusterSet{}

// syncCtx
type syncContext struct {
	instance  *icv1alpha1.InnodbClusterSet
	cluster   *icv1alpha1.InnodbCluster
	admin     innodbutil.IClusterAdmin
	bag       *databag.RelationBag
	peerBag   *databag.PeerBag
	ctx       context.Context
	reqLogger logr.Logger
}

// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbclustersets,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbclustersets/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbclustersets/finalizers,verbs=update
// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbclusters,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=configmaps,verbs=get;list;watch;create;update;patch;delete

// Reconcile reconcile innodb cluster set
func (r *ReconcileInnodbClusterSet) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	reqLogger := r.logger.WithValues("namespace", req.Namespace, "name", req.Name)
	reqLogger.Info("starting reconciliation for innodb cluster set")
	startTime := time.Now()
	defer func() {
		reqLogger.Info("finished reconciliation", "duration", time.Since(startTime))
	}()

	// Fetch the InnodbClusterSet instance
	instance := &icv1alpha1.InnodbClusterSet{}
	if err := r.client.Get(ctx, req.NamespacedName, instance); err != nil {
		if errors.IsNotFound(err) {
			reqLogger.Info("innodb cluster set resource not found, probably deleted.")
			return reconcile.Result{}, nil
		}

		reqLogger.Error(err, "failed to fetch innodb cluster set resource")
		return reconcile.Result{}, err
	}

	// Fetch the local InnodbCluster the pairing acts for
	cluster := &icv1alpha1.InnodbCluster{}
	if err := r.client.Get(ctx, types.NamespacedName{
		Namespace: instance.Namespace,
		Name:      instance.Spec.ClusterName,
	}, cluster); err != nil {
		if errors.IsNotFound(err) {
			r.recorder.Eventf(instance, corev1.EventTypeWarning, ErrSynced, "local innodb cluster [%s] not found", instance.Spec.ClusterName)

			return reconcile.Result{
				Requeue:      true,
				RequeueAfter: requeueAfter,
			}, nil
		}

		reqLogger.Error(err, "failed to fetch local innodb cluster resource")
		return reconcile.Result{}, err
	}

	if len(cluster.Spec.Member) == 0 {
		r.recorder.Eventf(instance, corev1.EventTypeWarning, ErrSynced, "local innodb cluster [%s] has no members", instance.Spec.ClusterName)

		return reconcile.Result{
			Requeue:      true,
			RequeueAfter: requeueAfter,
		}, nil
	}

	syncCtx := &syncContext{
		instance:  instance,
		cluster:   cluster,
		bag:       newRelationBag(r.client, instance),
		peerBag:   newLocalPeerBag(r.client, cluster),
		ctx:       ctx,
		reqLogger: reqLogger,
	}

	oldStatus := instance.Status.DeepCopy()

	adminPassword, configPassword, err := decryptSecret(r.client, instance)
	if err != nil {
		meta.SetStatusCondition(&instance.Status.Conditions, newFailedSyncReplicationCondition(err))
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

	admin := newClusterAdmin(instance, cluster, adminPassword, reqLogger)
	defer admin.Close()
	syncCtx.admin = admin

	// unpairing runs through the finalizer so the other side is told before
	// the resource goes away
	if !instance.GetDeletionTimestamp().IsZero() {
		return r.reconcileDeletion(syncCtx, configPassword)
	}

	if !controllerutil.ContainsFinalizer(instance, finalizer) {
		controllerutil.AddFinalizer(instance, finalizer)
		if err := r.client.Update(ctx, instance); err != nil {
			reqLogger.Error(err, "failed to add finalizer")
			return reconcile.Result{}, err
		}
	}

	if value, found := instance.GetAnnotations()[icv1alpha1.SkipReconcileKey]; !found || value == "false" {
		var handleErr error
		switch instance.Spec.Role {
		case icv1alpha1.InnodbClusterSetRolePrimary:
			handleErr = r.handlePrimarySide(syncCtx, configPassword)
		case icv1alpha1.InnodbClusterSetRoleReplica:
			handleErr = r.handleReplicaSide(syncCtx)
		default:
			handleErr = fmt.Errorf("unknown cluster set role [%s]", instance.Spec.Role)
		}

		if handleErr != nil {
			meta.SetStatusCondition(&instance.Status.Conditions, newFailedSyncReplicationCondition(handleErr))
			r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, handleErr.Error())

			if errors.IsForbidden(handleErr) {
				// a 403 needs an RBAC change, not a retry
				r.updateInstanceIfNeed(ctx, instance, oldStatus, reqLogger)
				return reconcile.Result{}, nil
			}
		} else {
			meta.SetStatusCondition(&instance.Status.Conditions, newSucceedSyncReplicationCondition())
		}
	}

	r.updateInstanceIfNeed(ctx, instance, oldStatus, reqLogger)

	return reconcile.Result{
		Requeue:      true,
		RequeueAfter: requeueAfter,
	}, nil
}

// reconcileDeletion tears the pairing down. It requeues without removing the
// finalizer while the other side still holds this cluster in the set.
func (r *ReconcileInnodbClusterSet) reconcileDeletion(syncCtx *syncContext, configPassword string) (reconcile.Result, error) {
	instance := syncCtx.instance
	ctx := syncCtx.ctx

	if !controllerutil.ContainsFinalizer(instance, finalizer) {
		return reconcile.Result{}, nil
	}

	var (
		done bool
		err  error
	)
	switch instance.Spec.Role {
	case icv1alpha1.InnodbClusterSetRolePrimary:
		done, err = r.finalizePrimarySide(syncCtx)
	case icv1alpha1.InnodbClusterSetRoleReplica:
		done, err = r.finalizeReplicaSide(syncCtx, configPassword)
	default:
		done = true
	}

	if err != nil {
		r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, err.Error())

		return reconcile.Result{
			Requeue:      true,
			RequeueAfter: requeueAfter,
		}, nil
	}

	if !done {
		syncCtx.reqLogger.Info("unpairing deferred, waiting for the other side")

		return reconcile.Result{
			Requeue:      true,
			RequeueAfter: requeueAfter,
		}, nil
	}

	controllerutil.RemoveFinalizer(instance, finalizer)
	if err := r.client.Update(ctx, instance); err != nil {
		syncCtx.reqLogger.Error(err, "failed to remove finalizer")
		return reconcile.Result{}, err
	}

	return reconcile.Result{}, nil
}

func Setup(mgr ctrl.Manager) error {
	r := &ReconcileInnodbClusterSet{
		client:   mgr.GetClient(),
		scheme:   mgr.GetScheme(),
		recorder: mgr.GetEventRecorderFor(appName),
		logger:   ctrl.Log.WithName(appName),
	}

	return ctrl.NewControllerManagedBy(mgr).
		For(&icv1alpha1.InnodbClusterSet{}).
		WithOptions(
			controller.Options{MaxConcurrentReconciles: 10},
		).
		Complete(r)
}
