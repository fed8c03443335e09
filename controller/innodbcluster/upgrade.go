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
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"k8s.io/apimachinery/pkg/api/meta"

	corev1 "k8s.io/api/core/v1"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/databag"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
)

// errUpgradeBlocked marks a refused pre-upgrade check. Blocked campaigns are
// never armed, nothing needs rolling back.
var errUpgradeBlocked = errors.New("pre-upgrade check refused")

const (
	upgradeStateIdle      = "idle"
	upgradeStateUpgrading = "upgrading"
	upgradeStateCompleted = "completed"
	upgradeStateFailed    = "failed"

	// maxRejoinAttempts bounds how many requeue rounds a restarted member may
	// take to come back online before its upgrade counts as failed.
	maxRejoinAttempts = 10
)

// handleUpgrade drives the rolling-upgrade campaign. A campaign is armed by
// the pre-upgrade-check annotation, recorded as an ordinal stack in the app
// databag and drained one member per requeue round, highest ordinal first.
// The StatefulSet partition is the only restart primitive used.
func (r *ReconcileInnodbCluster) handleUpgrade(syncCtx *syncContext) error {
	stack, found, err := r.loadUpgradeStack(syncCtx)
	if err != nil {
		return err
	}

	if !found {
		return r.maybeStartCampaign(syncCtx)
	}

	return r.continueCampaign(syncCtx, stack)
}

func (r *ReconcileInnodbCluster) maybeStartCampaign(syncCtx *syncContext) error {
	instance := syncCtx.instance
	ctx := syncCtx.ctx
	admin := syncCtx.admin

	if _, armed := instance.GetAnnotations()[icv1alpha1.PreUpgradeCheckKey]; !armed {
		return nil
	}

	target := instance.Spec.Version
	infos := admin.GetClusterInfos(ctx, len(instance.Spec.Member))

	needUpgrade := false
	onlineCount := 0
	for _, node := range infos.Infos {
		if node.State == innodbutil.MysqlOnlineState {
			onlineCount++
		}
		if node.Version != "" && !innodbutil.SameServerVersion(node.Version, target) {
			needUpgrade = true
		}
	}

	if !needUpgrade {
		r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "all members already run version %s, no upgrade needed", target)
		return r.clearAnnotations(syncCtx, icv1alpha1.PreUpgradeCheckKey)
	}

	// fail closed: a degraded cluster must not start restarting members
	if onlineCount < len(instance.Spec.Member) {
		return fmt.Errorf("%w: only %d of %d members are online", errUpgradeBlocked, onlineCount, len(instance.Spec.Member))
	}

	// the seed member upgrades last, pin the primary there so writes survive
	// every other restart
	seed := instance.Spec.Member[0]
	seedAddr := memberAddress(seed)
	primaryAddr := infos.GetPrimary()
	if primaryAddr == "" {
		return fmt.Errorf("%w: cluster has no primary", errUpgradeBlocked)
	}

	if primaryAddr != seedAddr {
		seedNode, ok := infos.Infos[seedAddr]
		if !ok || seedNode.ID == "" {
			return fmt.Errorf("%w: seed member [%s] is not part of the group", errUpgradeBlocked, seedAddr)
		}

		if err := admin.SetClusterPrimary(ctx, primaryAddr, seedNode.ID); err != nil {
			return err
		}

		r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "pinned primary to seed member [%s] for upgrade", seedAddr)
	}

	// slow shutdown flushes everything to disk, the upgraded binary must not
	// replay redo logs from a different version
	var errs []error
	for addr := range infos.Infos {
		if err := admin.SetSlowShutdown(ctx, addr); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	ordinals, err := memberOrdinals(instance)
	if err != nil {
		return err
	}

	if err := r.statefulSet.SetPartition(instance.Namespace, instance.Spec.StatefulSetName, int32(ordinals[0])); err != nil {
		return err
	}

	if err := r.persistUpgradeStack(syncCtx, ordinals); err != nil {
		return err
	}

	instance.Status.Upgrade = &icv1alpha1.UpgradeStatus{
		Phase:           icv1alpha1.UpgradePhaseChecked,
		TargetVersion:   target,
		PendingOrdinals: ordinals,
	}

	r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "pre-upgrade check passed, upgrading %d members to %s", len(ordinals), target)
	return nil
}

func (r *ReconcileInnodbCluster) continueCampaign(syncCtx *syncContext, stack []int) error {
	instance := syncCtx.instance
	ctx := syncCtx.ctx
	admin := syncCtx.admin
	bag := syncCtx.bag
	target := instance.Spec.Version

	if len(stack) == 0 {
		return r.finishCampaign(syncCtx)
	}

	instance.Status.Upgrade = &icv1alpha1.UpgradeStatus{
		Phase:           icv1alpha1.UpgradePhaseUpgrading,
		TargetVersion:   target,
		PendingOrdinals: stack,
	}

	ordinal := stack[0]
	node := memberByOrdinal(instance, ordinal)
	if node == nil {
		return fmt.Errorf("upgrade stack lists ordinal %d but the spec has no such member", ordinal)
	}

	addr := memberAddress(node)
	unitBag := bag.ForUnit(node.Name)

	state, _, err := unitBag.UnitGet(ctx, node.Name, upgradeStateKey)
	if err != nil {
		return err
	}

	if state == upgradeStateFailed {
		if _, found := instance.GetAnnotations()[icv1alpha1.ResumeUpgradeKey]; !found {
			// halted, wait for the resume-upgrade annotation
			instance.Status.Upgrade.Phase = icv1alpha1.UpgradePhaseFailed
			return nil
		}

		if err := unitBag.UnitSet(ctx, upgradeAttemptsKey, "0"); err != nil {
			return err
		}
		if err := r.clearAnnotations(syncCtx, icv1alpha1.ResumeUpgradeKey); err != nil {
			return err
		}

		r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "resumed upgrade campaign at member [%s]", node.Name)
		state = upgradeStateIdle
	}

	if state != upgradeStateUpgrading {
		if err := unitBag.UnitSet(ctx, upgradeStateKey, upgradeStateUpgrading); err != nil {
			return err
		}
	}

	infos := admin.GetClusterInfos(ctx, len(instance.Spec.Member))
	nodeInfo, reachable := infos.Infos[addr]

	if !reachable || nodeInfo.Version == "" || !innodbutil.SameServerVersion(nodeInfo.Version, target) {
		// the pod has not restarted under the target image yet
		syncCtx.reqLogger.Info("waiting for member to restart with target version", "member", node.Name, "target", target)
		return nil
	}

	// the restarted binary must be a legal step from what the rest of the
	// group still runs
	if checkAddr := pickVersionCheckAddr(infos, addr); checkAddr != "" {
		if err := admin.CheckServerUpgradable(ctx, checkAddr, nodeInfo.Version); err != nil {
			if errors.Is(err, innodbutil.ErrIncompatibleVersion) {
				if setErr := unitBag.UnitSet(ctx, upgradeStateKey, upgradeStateFailed); setErr != nil {
					return errors.Join(err, setErr)
				}
				instance.Status.Upgrade.Phase = icv1alpha1.UpgradePhaseFailed

				return fmt.Errorf("member [%s] runs an incompatible version: %w; roll back spec.version and the image, then annotate %s to continue",
					node.Name, err, icv1alpha1.ResumeUpgradeKey)
			}
			return err
		}
	}

	if nodeInfo.State != innodbutil.MysqlOnlineState {
		return r.burnRejoinAttempt(syncCtx, unitBag, node)
	}

	// upgraded and back online, pop the stack and release the next ordinal
	if err := unitBag.UnitSet(ctx, upgradeStateKey, upgradeStateCompleted); err != nil {
		return err
	}
	if err := unitBag.UnitDelete(ctx, upgradeAttemptsKey); err != nil {
		return err
	}

	stack = stack[1:]
	if err := r.persistUpgradeStack(syncCtx, stack); err != nil {
		return err
	}
	instance.Status.Upgrade.PendingOrdinals = stack

	if len(stack) > 0 {
		if err := r.statefulSet.SetPartition(instance.Namespace, instance.Spec.StatefulSetName, int32(stack[0])); err != nil {
			return err
		}
	}

	r.recorder.Eventf(instance, corev1.EventTypeNormal, UpgradeSucceed, "member [%s] upgraded to %s, %d remaining", node.Name, nodeInfo.Version, len(stack))
	return nil
}

// burnRejoinAttempt spends one round of the fixed-interval rejoin budget of
// the member currently upgrading.
func (r *ReconcileInnodbCluster) burnRejoinAttempt(syncCtx *syncContext, unitBag *databag.PeerBag, node *icv1alpha1.CommonNode) error {
	ctx := syncCtx.ctx

	attempts := 0
	if value, found, err := unitBag.UnitGet(ctx, node.Name, upgradeAttemptsKey); err != nil {
		return err
	} else if found {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("unit databag key %q holds %q, not a number: %v", upgradeAttemptsKey, value, err)
		}
		attempts = parsed
	}

	attempts++

	if attempts >= maxRejoinAttempts {
		if err := unitBag.UnitSet(ctx, upgradeStateKey, upgradeStateFailed); err != nil {
			return err
		}
		syncCtx.instance.Status.Upgrade.Phase = icv1alpha1.UpgradePhaseFailed

		return fmt.Errorf("member [%s] did not rejoin the cluster after %d attempts; inspect it, then annotate %s to continue",
			node.Name, maxRejoinAttempts, icv1alpha1.ResumeUpgradeKey)
	}

	if err := unitBag.UnitSet(ctx, upgradeAttemptsKey, strconv.Itoa(attempts)); err != nil {
		return err
	}

	syncCtx.reqLogger.Info("waiting for upgraded member to rejoin", "member", node.Name, "attempt", attempts)
	return nil
}

func (r *ReconcileInnodbCluster) finishCampaign(syncCtx *syncContext) error {
	instance := syncCtx.instance
	ctx := syncCtx.ctx
	bag := syncCtx.bag

	if err := r.statefulSet.SetPartition(instance.Namespace, instance.Spec.StatefulSetName, 0); err != nil {
		return err
	}

	for _, node := range instance.Spec.Member {
		unitBag := bag.ForUnit(node.Name)
		if err := unitBag.UnitSet(ctx, upgradeStateKey, upgradeStateIdle); err != nil {
			return err
		}
		if err := unitBag.UnitDelete(ctx, upgradeAttemptsKey); err != nil {
			return err
		}
	}

	if err := bag.AppDelete(ctx, upgradeStackKey); err != nil {
		return err
	}

	if err := r.clearAnnotations(syncCtx, icv1alpha1.PreUpgradeCheckKey, icv1alpha1.ResumeUpgradeKey); err != nil {
		return err
	}

	instance.Status.Upgrade = &icv1alpha1.UpgradeStatus{Phase: icv1alpha1.UpgradePhaseIdle}
	meta.SetStatusCondition(&instance.Status.Conditions, newSucceedUpgradeCondition(instance.Spec.Version))

	r.recorder.Eventf(instance, corev1.EventTypeNormal, UpgradeSucceed, "upgrade campaign completed, all members run %s", instance.Spec.Version)
	return nil
}

func (r *ReconcileInnodbCluster) loadUpgradeStack(syncCtx *syncContext) ([]int, bool, error) {
	value, found, err := syncCtx.bag.AppGet(syncCtx.ctx, upgradeStackKey)
	if err != nil || !found {
		return nil, false, err
	}

	var stack []int
	if err := json.Unmarshal([]byte(value), &stack); err != nil {
		return nil, false, fmt.Errorf("app databag key %q holds invalid JSON %q: %v", upgradeStackKey, value, err)
	}

	return stack, true, nil
}

func (r *ReconcileInnodbCluster) persistUpgradeStack(syncCtx *syncContext, stack []int) error {
	if stack == nil {
		stack = []int{}
	}

	encoded, err := json.Marshal(stack)
	if err != nil {
		return err
	}

	return syncCtx.bag.AppSet(syncCtx.ctx, upgradeStackKey, string(encoded))
}

func (r *ReconcileInnodbCluster) clearAnnotations(syncCtx *syncContext, keys ...string) error {
	instance := syncCtx.instance
	annotations := instance.GetAnnotations()

	changed := false
	for _, key := range keys {
		if _, found := annotations[key]; found {
			delete(annotations, key)
			changed = true
		}
	}

	if !changed {
		return nil
	}

	return r.client.Update(syncCtx.ctx, instance)
}

// memberOrdinals returns every member ordinal, highest first, the order the
// rolling upgrade drains them in.
func memberOrdinals(instance *icv1alpha1.InnodbCluster) ([]int, error) {
	ordinals := make([]int, 0, len(instance.Spec.Member))

	for _, node := range instance.Spec.Member {
		ordinal, err := node.Ordinal()
		if err != nil {
			return nil, err
		}
		ordinals = append(ordinals, ordinal)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(ordinals)))
	return ordinals, nil
}

func memberByOrdinal(instance *icv1alpha1.InnodbCluster, ordinal int) *icv1alpha1.CommonNode {
	for _, node := range instance.Spec.Member {
		if current, err := node.Ordinal(); err == nil && current == ordinal {
			return node
		}
	}

	return nil
}

// pickVersionCheckAddr returns an online member other than the one upgrading
// to compare versions against, preferring the primary. Empty when the
// upgrading member is the only one, single-member clusters have nothing to
// be incompatible with.
func pickVersionCheckAddr(infos *innodbutil.ClusterInfos, upgradingAddr string) string {
	if primary := infos.GetPrimary(); primary != "" && primary != upgradingAddr {
		return primary
	}

	addrs := make([]string, 0, len(infos.Infos))
	for addr := range infos.Infos {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		if addr == upgradingAddr {
			continue
		}
		if infos.Infos[addr].State == innodbutil.MysqlOnlineState {
			return addr
		}
	}

	return ""
}
