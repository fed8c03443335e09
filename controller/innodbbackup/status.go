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

func (r *ReconcileInnodbBackup) updateInstanceIfNeed(ctx context.Context,
	instance *icv1alpha1.InnodbBackup,
	oldStatus *icv1alpha1.InnodbBackupStatus,
	reqLogger logr.Logger) {

	if compareStatus(&instance.Status, oldStatus, reqLogger) {
		if err := r.client.Status().Update(ctx, instance); err != nil {
			reqLogger.Error(err, "failed to update innodb backup status")
		}
	}
}

func compareStatus(new, old *icv1alpha1.InnodbBackupStatus, reqLogger logr.Logger) bool {

	if utils.CompareStringValue("State", string(old.State), string(new.State), reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.State changed: the old one is %s, new one is %s", old.State, new.State))
		return true
	}

	if utils.CompareStringValue("BackupID", old.BackupID, new.BackupID, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.BackupID changed: the old one is %s, new one is %s", old.BackupID, new.BackupID))
		return true
	}

	if utils.CompareStringValue("Instance", old.Instance, new.Instance, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.Instance changed: the old one is %s, new one is %s", old.Instance, new.Instance))
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

// newPendingBackupCondition creates a condition when the backup is accepted.
func newPendingBackupCondition() metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeBackupReady,
		Status:  metav1.ConditionFalse,
		Message: "backup accepted, preconditions not yet checked",
		Reason:  CreateBackupPending,
	}
}

// newRunningBackupCondition creates a condition while the stream runs.
func newRunningBackupCondition(backupID string) metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeBackupReady,
		Status:  metav1.ConditionFalse,
		Message: fmt.Sprintf("backup [%s] is streaming to object storage", backupID),
		Reason:  CreateBackupRunning,
	}
}

// newSucceedBackupCondition creates a condition when the backup completed.
func newSucceedBackupCondition(backupID string) metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeBackupReady,
		Status:  metav1.ConditionTrue,
		Message: fmt.Sprintf("Successfully created backup [%s]", backupID),
		Reason:  CreateBackupSucceed,
	}
}

// newFailedBackupCondition creates a condition when the backup failed.
func newFailedBackupCondition(err error) metav1.Condition {
	reason := CreateBackupFailed
	message := err.Error()
	if apierrors.IsForbidden(err) {
		reason = PermissionBlocked
		message = permissionMessage(err)
	}

	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeBackupReady,
		Status:  metav1.ConditionFalse,
		Message: message,
		Reason:  reason,
	}
}
