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
	"errors"
	"fmt"
	"reflect"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/utils"
)

// permissionMessage turns a kubernetes 403 into a condition message telling
// the operator which grant is missing. These failures never heal on retry.
func permissionMessage(err error) string {
	return fmt.Sprintf("%v; grant the controller service account the missing RBAC rule, reconciliation resumes on the next resource change", err)
}

func (r *ReconcileInnodbClusterSet) updateInstanceIfNeed(ctx context.Context,
	instance *icv1alpha1.InnodbClusterSet,
	oldStatus *icv1alpha1.InnodbClusterSetStatus,
	reqLogger logr.Logger) {

	if compareStatus(&instance.Status, oldStatus, reqLogger) {
		if err := r.client.Status().Update(ctx, instance); err != nil {
			reqLogger.Error(err, "failed to update innodb cluster set status")
		}
	}
}

func compareStatus(new, old *icv1alpha1.InnodbClusterSetStatus, reqLogger logr.Logger) bool {

	if utils.CompareStringValue("State", string(old.State), string(new.State), reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.State changed: the old one is %s, new one is %s", old.State, new.State))
		return true
	}

	if utils.CompareStringValue("RemoteClusterName", old.RemoteClusterName, new.RemoteClusterName, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.RemoteClusterName changed: the old one is %s, new one is %s", old.RemoteClusterName, new.RemoteClusterName))
		return true
	}

	if old.Ready != new.Ready {
		reqLogger.Info(fmt.Sprintf("found status.Ready changed: the old one is %v, new one is %v", old.Ready, new.Ready))
		return true
	}

	if !reflect.DeepEqual(new.Conditions, old.Conditions) {
		reqLogger.Info(fmt.Sprintf("found status.Conditions changed: the old one is %#v, new one is %#v", old.Conditions, new.Conditions))
		return true
	}

	return false
}

// newSucceedSyncReplicationCondition creates a condition when sync replication succeed.
func newSucceedSyncReplicationCondition() metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeReplicationReady,
		Status:  metav1.ConditionTrue,
		Message: "Successfully sync replication",
		Reason:  SyncReplicationSucceed,
	}
}

// newFailedSyncReplicationCondition creates a condition when sync replication
// failed. Refused pairings carry the blocked reason so operators know a retry
// will not help without intervention.
func newFailedSyncReplicationCondition(err error) metav1.Condition {
	reason := SyncReplicationFailed
	message := err.Error()
	switch {
	case errors.Is(err, errPairingBlocked):
		reason = PairingBlocked
	case apierrors.IsForbidden(err):
		reason = PermissionBlocked
		message = permissionMessage(err)
	}

	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeReplicationReady,
		Status:  metav1.ConditionFalse,
		Message: message,
		Reason:  reason,
	}
}
