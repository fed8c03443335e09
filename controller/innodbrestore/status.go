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

func (r *ReconcileInnodbRestore) updateInstanceIfNeed(ctx context.Context,
	instance *icv1alpha1.InnodbRestore,
	oldStatus *icv1alpha1.InnodbRestoreStatus,
	reqLogger logr.Logger) {

	if compareStatus(&instance.Status, oldStatus, reqLogger) {
		if err := r.client.Status().Update(ctx, instance); err != nil {
			reqLogger.Error(err, "failed to update innodb restore status")
		}
	}
}

func compareStatus(new, old *icv1alpha1.InnodbRestoreStatus, reqLogger logr.Logger) bool {

	if utils.CompareStringValue("State", string(old.State), string(new.State), reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.State changed: the old one is %s, new one is %s", old.State, new.State))
		return true
	}

	if utils.CompareStringValue("Step", old.Step, new.Step, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.Step changed: the old one is %s, new one is %s", old.Step, new.Step))
		return true
	}

	if utils.CompareStringValue("FailedStep", old.FailedStep, new.FailedStep, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.FailedStep changed: the old one is %s, new one is %s", old.FailedStep, new.FailedStep))
		return true
	}

	if !reflect.DeepEqual(new.Recoverable, old.Recoverable) {
		reqLogger.Info(fmt.Sprintf("found status.Recoverable changed: the old one is %v, new one is %v", old.Recoverable, new.Recoverable))
		return true
	}

	if !reflect.DeepEqual(new.StartTime, old.StartTime) {
		reqLogger.Info(fmt.Sprintf("found status.StartTime changed: the old one is %v, new one is %v", old.StartTime, new.StartTime))
		return true
	}

	if !reflect.DeepEqual(new.CompletionTime, old.CompletionTime) {
		reqLogger.Info(fmt.Sprintf("found status.CompletionTime changed: the old one is %v, new one is %v", old.CompletionTime, new.CompletionTime))
		return true
	}

	if !reflect.DeepEqual(new.Conditions, old.Conditions) {
		reqLogger.Info(fmt.Sprintf("found status.Conditions changed: the old one is %#v, new one is %#v", old.Conditions, new.Conditions))
		return true
	}

	return false
}

// newPendingRestoreCondition creates a condition when the restore is accepted.
func newPendingRestoreCondition() metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeRestoreReady,
		Status:  metav1.ConditionFalse,
		Message: "restore accepted, preconditions not yet checked",
		Reason:  RestorePending,
	}
}

// newRunningRestoreCondition creates a condition naming the step underway.
func newRunningRestoreCondition(backupID, step string) metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeRestoreReady,
		Status:  metav1.ConditionFalse,
		Message: fmt.Sprintf("restore of backup [%s] is running step [%s]", backupID, step),
		Reason:  RestoreRunning,
	}
}

// newSucceedRestoreCondition creates a condition when the restore completed.
func newSucceedRestoreCondition(backupID string) metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeRestoreReady,
		Status:  metav1.ConditionTrue,
		Message: fmt.Sprintf("Successfully restored backup [%s]", backupID),
		Reason:  RestoreSucceed,
	}
}

// newFailedRestoreCondition creates a condition when the restore failed.
func newFailedRestoreCondition(err error) metav1.Condition {
	reason := RestoreFailed
	message := err.Error()
	if apierrors.IsForbidden(err) {
		reason = PermissionBlocked
		message = permissionMessage(err)
	}

	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeRestoreReady,
		Status:  metav1.ConditionFalse,
		Message: message,
		Reason:  reason,
	}
}

// newClusterBlockedCondition is written onto the cluster after a
// non-recoverable failure, its member is left stopped with partial data.
func newClusterBlockedCondition(instance *icv1alpha1.InnodbRestore, err error) metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeRestoreReady,
		Status:  metav1.ConditionFalse,
		Message: fmt.Sprintf("restore [%s] of backup [%s] failed and the member data needs manual recovery: %v", instance.Name, instance.Spec.BackupID, err),
		Reason:  RestoreBlocked,
	}
}

// newClusterRestoredCondition is written onto the cluster after a completed
// restore, clearing any blocked mark from earlier attempts.
func newClusterRestoredCondition(instance *icv1alpha1.InnodbRestore) metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeRestoreReady,
		Status:  metav1.ConditionTrue,
		Message: fmt.Sprintf("restore [%s] completed, backup [%s] is in place", instance.Name, instance.Spec.BackupID),
		Reason:  RestoreSucceed,
	}
}
