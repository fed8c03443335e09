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

package innodbcluster

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/databag"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/k8sutil"
)

const (
	appName      = "innodb-cluster"
	ErrSynced    = "ErrSynced"
	Synced       = "Synced"
	requeueAfter = 10 * time.Second

	SyncTopologyFailed  = "SyncTopologyFailed"
	SyncTopologySucceed = "SyncTopologySucceed"

	SyncResourceFailed  = "SyncResourceFailed"
	SyncResourceSucceed = "SyncResourceSucceed"

	UpgradeFailed  = "UpgradeFailed"
	UpgradeSucceed = "UpgradeSucceed"
	UpgradeBlocked = "UpgradeBlocked"

	PermissionBlocked = "PermissionBlocked"

	defaultKey   = "innodb-cluster-operator.innodbcluster.name"
	roleLabelKey = "innodb-cluster-operator.innodbcluster.role"
)

// peer databag keys, app scope.
const (
	clusterNameKey          = "cluster-name"
	clusterSetDomainNameKey = "cluster-set-domain-name"
	unitsAddedKey           = "units-added-to-cluster"
	upgradeStackKey         = "upgrade-stack"
	tlsSecretHashKey        = "tls-secret-hash"
)

// peer databag keys, unit scope.
const (
	unitInitializedKey = "unit-initialized"
	unitStatusKey      = "unit-status"
	memberStateKey     = "member-state"
	memberRoleKey      = "member-role"
	upgradeStateKey    = "upgrade-state"
	upgradeAttemptsKey = "upgrade-attempts"
	tlsEnabledKey      = "tls-enabled"
)

// ReconcileInnodbCluster reconciles an InnodbCluster object
type ReconcileInnodbCluster struct {
	client      client.Client
	scheme      *runtime.Scheme
	recorder    record.EventRecorder
	logger      logr.Logger
	statefulSet k8sutil.IStatefulSetControl
}

// blank assignment to verify that ReconcileInnodbCluster implements reconcile.Reconciler
var _ reconcile.Reconciler = &ReconcileInnodbCluster{}

// syncCtx
type syncContext struct {
	instance  *icv1alpha1.InnodbCluster
	admin     innodbutil.IClusterAdmin
	bag       *databag.PeerBag
	ctx       context.Context
	reqLogger logr.Logger
}

// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbclusters,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbclusters/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=upm.syntropycloud.io,resources=innodbclusters/finalizers,verbs=update
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=configmaps,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=pods,verbs=get;list;watch;update;patch;delete
// +kubebuilder:rbac:groups=apps,resources=statefulsets,verbs=get;list;watch;update;patch

// Reconcile reconcile innodb cluster
func (r *ReconcileInnodbCluster) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	reqLogger := r.logger.WithValues("namespace", req.Namespace, "name", req.Name)
	reqLogger.Info("starting reconciliation for innodb cluster")
	startTime := time.Now()
	defer func() {
		reqLogger.Info("finished reconciliation", "duration", time.Since(startTime))
	}()

	// Fetch the InnodbCluster instance
	instance := &icv1alpha1.InnodbCluster{}
	if err := r.client.Get(ctx, req.NamespacedName, instance); err != nil {
		if errors.IsNotFound(err) {
			reqLogger.Info("innodb cluster resource not found, probably deleted.")
			return reconcile.Result{}, nil
		}

		reqLogger.Error(err, "failed to fetch innodb cluster resource")
		return reconcile.Result{}, err
	}

	//check innodb cluster instance is valid
	if len(instance.Spec.Member) == 0 {
		r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, "innodb cluster needs at least one member")

		return reconcile.Result{
			Requeue:      true,
			RequeueAfter: requeueAfter,
		}, nil
	}

	syncCtx := &syncContext{
		instance:  instance,
		reqLogger: reqLogger,
		ctx:       ctx,
		bag:       newPeerBag(r.client, instance),
	}

	oldStatus := instance.Status.DeepCopy()
	instance.Status = buildDefaultTopologyStatus(instance)

	// a kubernetes 403 anywhere below means the service account lacks an
	// RBAC rule, retrying cannot fix that
	var permissionErr error

	//Get the passwords of the cluster admin and the recovery channel users.
	adminPassword, configPassword, err := decryptSecret(r.client, instance)
	if err != nil {
		meta.SetStatusCondition(&instance.Status.Conditions, newFailedSyncTopologyCondition(err))
		r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, err.Error())
		if errors.IsForbidden(err) {
			permissionErr = err
		}
	} else {
		// Initialize the InnoDB ClusterAdmin
		admin := newClusterAdmin(instance, adminPassword, reqLogger)
		defer admin.Close()

		if value, found := instance.GetAnnotations()[icv1alpha1.SkipReconcileKey]; !found || value == "false" {
			syncCtx.admin = admin
			if err := r.handleMembership(syncCtx, instance.Spec.Secret.ServerConfig, configPassword); err != nil {
				meta.SetStatusCondition(&instance.Status.Conditions, newFailedSyncTopologyCondition(err))
				r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, err.Error())
				if errors.IsForbidden(err) && permissionErr == nil {
					permissionErr = err
				}
			} else {
				meta.SetStatusCondition(&instance.Status.Conditions, newSucceedSyncTopologyCondition())
			}

			if err := r.handleUpgrade(syncCtx); err != nil {
				meta.SetStatusCondition(&instance.Status.Conditions, newFailedUpgradeCondition(err))
				r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, err.Error())
				if errors.IsForbidden(err) && permissionErr == nil {
					permissionErr = err
				}
			}
		}
		r.generateTopologyStatusByClusterInfo(syncCtx, admin.GetClusterInfos(ctx, len(instance.Spec.Member)))
	}

	if err := r.handleResources(syncCtx); err != nil {
		meta.SetStatusCondition(&instance.Status.Conditions, newFailedSyncResourceCondition(err))
		instance.Status.Ready = false
		r.recorder.Event(instance, corev1.EventTypeWarning, ErrSynced, err.Error())
		if errors.IsForbidden(err) && permissionErr == nil {
			permissionErr = err
		}
	} else {
		meta.SetStatusCondition(&instance.Status.Conditions, newSucceedSyncResourceCondition())
	}

	r.updateInstanceIfNeed(ctx, instance, oldStatus, reqLogger)

	if permissionErr != nil {
		reqLogger.Error(permissionErr, "kubernetes denied access, waiting for an RBAC or resource change instead of retrying")
		return reconcile.Result{}, nil
	}

	return reconcile.Result{
		Requeue:      true,
		RequeueAfter: requeueAfter,
	}, nil
}

func Setup(mgr ctrl.Manager) error {
	r := &ReconcileInnodbCluster{
		client:      mgr.GetClient(),
		scheme:      mgr.GetScheme(),
		recorder:    mgr.GetEventRecorderFor(appName),
		logger:      ctrl.Log.WithName(appName),
		statefulSet: k8sutil.NewStatefulSetController(mgr.GetClient()),
	}

	if err := mgr.GetFieldIndexer().IndexField(context.Background(), &corev1.Pod{}, fmt.Sprintf("%s.%s", "metadata.labels.", defaultKey), func(o client.Object) []string {
		pod := o.(*corev1.Pod)
		if val, ok := pod.Labels[defaultKey]; ok {
			return []string{val}
		}
		return nil
	}); err != nil {
		return err
	}

	// Predicate to trigger reconciliation only on pod phase changes
	updatePred := predicate.Funcs{
		// Only allow updates when the status.phase of the pod changes
		UpdateFunc: func(e event.UpdateEvent) bool {
			oldObj := e.ObjectOld.(*corev1.Pod)
			newObj := e.ObjectNew.(*corev1.Pod)

			return oldObj.Status.Phase != newObj.Status.Phase
		},

		// Allow to create events
		CreateFunc: func(e event.CreateEvent) bool {
			return true
		},

		// Allow to delete events
		DeleteFunc: func(e event.DeleteEvent) bool {
			return true
		},

		// Allow to generic events (e.g., external triggers)
		GenericFunc: func(e event.GenericEvent) bool {
			return true
		},
	}

	return ctrl.NewControllerManagedBy(mgr).
		For(&icv1alpha1.InnodbCluster{}).
		Watches(&corev1.Pod{},
			handler.EnqueueRequestsFromMapFunc(podMapFunc),
			builder.WithPredicates(updatePred), // Apply the predicate
		).
		WithOptions(
			controller.Options{MaxConcurrentReconciles: 10},
		).
		Complete(r)
}
