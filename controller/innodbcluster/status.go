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
	"errors"
	"fmt"
	"reflect"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/utils"
)

// permissionMessage turns a kubernetes 403 into a condition message telling
// the operator which grant is missing. These failures never heal on retry.
func permissionMessage(err error) string {
	return fmt.Sprintf("%v; grant the controller service account the missing RBAC rule, reconciliation resumes on the next resource change", err)
}

func (r *ReconcileInnodbCluster) updateInstanceIfNeed(ctx context.Context,
	instance *icv1alpha1.InnodbCluster,
	oldStatus *icv1alpha1.InnodbClusterStatus,
	reqLogger logr.Logger) {

	if compareStatus(&instance.Status, oldStatus, reqLogger) {
		if err := r.client.Status().Update(ctx, instance); err != nil {
			reqLogger.Error(err, "failed to update innodb cluster status")
		}
	}
}

func compareStatus(new, old *icv1alpha1.InnodbClusterStatus, reqLogger logr.Logger) bool {

	if old.Ready != new.Ready {
		reqLogger.Info(fmt.Sprintf("found status.Ready changed: the old one is %v, new one is %v", old.Ready, new.Ready))
		return true
	}

	if utils.CompareStringValue("ClusterStatus", old.ClusterStatus, new.ClusterStatus, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.ClusterStatus changed: the old one is %s, new one is %s", old.ClusterStatus, new.ClusterStatus))
		return true
	}

	if utils.CompareStringValue("Primary", old.Primary, new.Primary, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.Primary changed: the old one is %s, new one is %s", old.Primary, new.Primary))
		return true
	}

	if utils.CompareInt32("ReadyMembers", int32(old.ReadyMembers), int32(new.ReadyMembers), reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.ReadyMembers changed: the old one is %d, new one is %d", old.ReadyMembers, new.ReadyMembers))
		return true
	}

	if len(old.Topology) != len(new.Topology) {
		reqLogger.Info(fmt.Sprintf("found the length of status.Topology changed: the old one is %d, new one is %d", len(old.Topology), len(new.Topology)))
		return true
	}

	for nodeName, nodeA := range new.Topology {
		if nodeB, ok := old.Topology[nodeName]; !ok {
			reqLogger.Info(fmt.Sprintf("found node %s in new status.Topology but not in old status.Topology", nodeName))
			return true
		} else if compareNodes(nodeA, nodeB, reqLogger) {
			return true
		}
	}

	if compareUpgrade(new.Upgrade, old.Upgrade, reqLogger) {
		return true
	}

	if !reflect.DeepEqual(new.Conditions, old.Conditions) {
		reqLogger.Info(fmt.Sprintf("found status.Conditions changed: the old one is %#v, new one is %#v", old.Conditions, new.Conditions))
		return true
	}

	return false
}

func compareNodes(nodeA, nodeB *icv1alpha1.InnodbClusterNode, reqLogger logr.Logger) bool {
	if utils.CompareStringValue("Node.Host", nodeA.Host, nodeB.Host, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.Topology[Node].Host changed: the old one is %v, new one is %v", nodeB.Host, nodeA.Host))
		return true
	}

	if utils.CompareInt32("Node.Port", int32(nodeA.Port), int32(nodeB.Port), reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.Topology[Node].Port changed: the old one is %d, new one is %d", nodeB.Port, nodeA.Port))
		return true
	}

	if utils.CompareStringValue("Node.Role", string(nodeA.Role), string(nodeB.Role), reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.Topology[Node].Role changed: the old one is %s, new one is %s", nodeB.Role, nodeA.Role))
		return true
	}

	if utils.CompareStringValue("Node.Status", string(nodeA.Status), string(nodeB.Status), reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.Topology[Node].Status changed: the old one is %s, new one is %s", nodeB.Status, nodeA.Status))
		return true
	}

	if utils.CompareStringValue("Node.MemberState", nodeA.MemberState, nodeB.MemberState, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.Topology[Node].MemberState changed: the old one is %s, new one is %s", nodeB.MemberState, nodeA.MemberState))
		return true
	}

	if utils.CompareStringValue("Node.Version", nodeA.Version, nodeB.Version, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.Topology[Node].Version changed: the old one is %s, new one is %s", nodeB.Version, nodeA.Version))
		return true
	}

	if utils.CompareStringValue("Node.GtidExecuted", nodeA.GtidExecuted, nodeB.GtidExecuted, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.Topology[Node].GtidExecuted changed: the old one is %v, new one is %v", nodeB.GtidExecuted, nodeA.GtidExecuted))
		return true
	}

	if nodeA.ReadOnly != nodeB.ReadOnly {
		reqLogger.Info(fmt.Sprintf("found status.Topology[Node].ReadOnly changed: the old one is %v, new one is %v", nodeB.ReadOnly, nodeA.ReadOnly))
		return true
	}

	if nodeA.OfflineMode != nodeB.OfflineMode {
		reqLogger.Info(fmt.Sprintf("found status.Topology[Node].OfflineMode changed: the old one is %v, new one is %v", nodeB.OfflineMode, nodeA.OfflineMode))
		return true
	}

	if nodeA.Hidden != nodeB.Hidden {
		reqLogger.Info(fmt.Sprintf("found status.Topology[Node].Hidden changed: the old one is %v, new one is %v", nodeB.Hidden, nodeA.Hidden))
		return true
	}

	return false
}

func compareUpgrade(new, old *icv1alpha1.UpgradeStatus, reqLogger logr.Logger) bool {
	if (new == nil) != (old == nil) {
		reqLogger.Info("found status.Upgrade presence changed")
		return true
	}

	if new == nil {
		return false
	}

	if new.Phase != old.Phase {
		reqLogger.Info(fmt.Sprintf("found status.Upgrade.Phase changed: the old one is %s, new one is %s", old.Phase, new.Phase))
		return true
	}

	if utils.CompareStringValue("Upgrade.TargetVersion", old.TargetVersion, new.TargetVersion, reqLogger) {
		reqLogger.Info(fmt.Sprintf("found status.Upgrade.TargetVersion changed: the old one is %s, new one is %s", old.TargetVersion, new.TargetVersion))
		return true
	}

	if !reflect.DeepEqual(new.PendingOrdinals, old.PendingOrdinals) {
		reqLogger.Info(fmt.Sprintf("found status.Upgrade.PendingOrdinals changed: the old one is %v, new one is %v", old.PendingOrdinals, new.PendingOrdinals))
		return true
	}

	return false
}

func buildDefaultTopologyStatus(instance *icv1alpha1.InnodbCluster) icv1alpha1.InnodbClusterStatus {
	status := icv1alpha1.InnodbClusterStatus{}
	status.Topology = make(icv1alpha1.InnodbClusterTopology)

	status.Conditions = instance.Status.Conditions

	// upgrade campaign bookkeeping must survive probe failures
	status.Upgrade = instance.Status.Upgrade

	status.ClusterStatus = innodbutil.ClusterInfoUnset

	for _, node := range instance.Spec.Member {
		status.Topology[node.Name] = &icv1alpha1.InnodbClusterNode{
			Host:         node.Host,
			Port:         node.Port,
			Role:         icv1alpha1.InnodbClusterMemberRoleNone,
			Status:       icv1alpha1.NodeStatusKO,
			MemberState:  innodbutil.MysqlUnreachableState,
			Version:      "",
			GtidExecuted: "",
			ReadOnly:     false,
			OfflineMode:  false,
			Hidden:       false,
		}
	}

	return status
}

func (r *ReconcileInnodbCluster) generateTopologyStatusByClusterInfo(syncCtx *syncContext, infos *innodbutil.ClusterInfos) {
	instance := syncCtx.instance

	allNodeReady := true
	readyMembers := 0

	for _, node := range instance.Spec.Member {
		addr := memberAddress(node)
		if nodeInfo, ok := infos.Infos[addr]; ok {
			instance.Status.Topology[node.Name].Role = nodeInfo.GetRole()
			instance.Status.Topology[node.Name].Status = icv1alpha1.NodeStatusOK
			instance.Status.Topology[node.Name].MemberState = nodeInfo.State
			instance.Status.Topology[node.Name].Version = nodeInfo.Version
			instance.Status.Topology[node.Name].GtidExecuted = nodeInfo.GtidExecuted

			instance.Status.Topology[node.Name].ReadOnly = nodeInfo.ReadOnly
			instance.Status.Topology[node.Name].OfflineMode = nodeInfo.OfflineMode
			instance.Status.Topology[node.Name].Hidden = nodeInfo.OfflineMode

			if nodeInfo.State == innodbutil.MysqlOnlineState {
				readyMembers++
			}
		} else {
			allNodeReady = false
		}
	}

	instance.Status.ClusterStatus = infos.Status
	instance.Status.Primary = infos.GetPrimary()
	instance.Status.ReadyMembers = readyMembers

	if infos.Status == innodbutil.ClusterInfoConsistent && allNodeReady {
		instance.Status.Ready = true
	}
}

// newSucceedSyncTopologyCondition creates a condition when sync topology succeed.
func newSucceedSyncTopologyCondition() metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeTopologyReady,
		Status:  metav1.ConditionTrue,
		Message: "Successfully sync topology",
		Reason:  SyncTopologySucceed,
	}
}

// newFailedSyncTopologyCondition creates a condition when sync topology failed.
func newFailedSyncTopologyCondition(err error) metav1.Condition {
	reason := SyncTopologyFailed
	message := err.Error()
	if apierrors.IsForbidden(err) {
		reason = PermissionBlocked
		message = permissionMessage(err)
	}

	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeTopologyReady,
		Status:  metav1.ConditionFalse,
		Message: message,
		Reason:  reason,
	}
}

// newSucceedSyncResourceCondition creates a condition when sync resource succeed.
func newSucceedSyncResourceCondition() metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeResourceReady,
		Status:  metav1.ConditionTrue,
		Message: "Successfully sync resource",
		Reason:  SyncResourceSucceed,
	}
}

// newFailedSyncResourceCondition creates a condition when sync resource failed.
func newFailedSyncResourceCondition(err error) metav1.Condition {
	reason := SyncResourceFailed
	message := err.Error()
	if apierrors.IsForbidden(err) {
		reason = PermissionBlocked
		message = permissionMessage(err)
	}

	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeResourceReady,
		Status:  metav1.ConditionFalse,
		Message: message,
		Reason:  reason,
	}
}

// newSucceedUpgradeCondition creates a condition when an upgrade campaign completes.
func newSucceedUpgradeCondition(targetVersion string) metav1.Condition {
	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeUpgradeReady,
		Status:  metav1.ConditionTrue,
		Message: fmt.Sprintf("Successfully upgraded all members to %s", targetVersion),
		Reason:  UpgradeSucceed,
	}
}

// newFailedUpgradeCondition creates a condition when an upgrade step failed.
// Version incompatibilities and refused pre-upgrade checks carry the blocked
// reason so operators know a retry will not help without intervention.
func newFailedUpgradeCondition(err error) metav1.Condition {
	reason := UpgradeFailed
	message := err.Error()
	switch {
	case errors.Is(err, innodbutil.ErrIncompatibleVersion) || errors.Is(err, errUpgradeBlocked):
		reason = UpgradeBlocked
	case apierrors.IsForbidden(err):
		reason = PermissionBlocked
		message = permissionMessage(err)
	}

	return metav1.Condition{
		Type:    icv1alpha1.ConditionTypeUpgradeReady,
		Status:  metav1.ConditionFalse,
		Message: message,
		Reason:  reason,
	}
}
