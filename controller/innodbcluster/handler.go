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
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/databag"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/k8sutil"
)

const (
	unitStatusNormal   = "normal"
	unitStatusRemoving = "removing"
)

// memberAction is the single step the membership path runs for one member in
// one reconciliation.
type memberAction int

const (
	// actionNone the member is converged, run nothing.
	actionNone memberAction = iota
	// actionWait the member cannot make progress yet, try again next requeue.
	actionWait
	// actionCreateCluster bootstrap the group on the seed member.
	actionCreateCluster
	// actionJoin add (or re-add) the member to the formed group.
	actionJoin
	// actionMarkRemoving record the departure of a member that already left the group.
	actionMarkRemoving
	// actionRemove take a departing member out of the group, then record the departure.
	actionRemove
)

func (a memberAction) String() string {
	switch a {
	case actionNone:
		return "none"
	case actionWait:
		return "wait"
	case actionCreateCluster:
		return "create-cluster"
	case actionJoin:
		return "join"
	case actionMarkRemoving:
		return "mark-removing"
	case actionRemove:
		return "remove"
	}
	return "unknown"
}

// memberFacts is everything decideMemberAction may look at for one member.
type memberFacts struct {
	// desired the spec still lists the member.
	desired bool
	// seedMember the member is the first spec entry, the only one allowed to bootstrap.
	seedMember bool
	// clusterFormed some member of the group is online.
	clusterFormed bool
	// reachable the probe answered for this member.
	reachable bool
	// state group replication member state as probed.
	state string
	// role group replication member role as probed.
	role string
	// unitInitialized the member joined the group at some point.
	unitInitialized bool
	// removing the member departure was already recorded.
	removing bool
}

// decideMemberAction maps the probed and recorded facts of one member to the
// at most one action the driver runs for it. It performs no I/O, converged
// facts must map to actionNone so a quiet cluster sees zero engine commands.
func decideMemberAction(f memberFacts) memberAction {
	if !f.desired {
		switch {
		case f.removing:
			return actionNone
		case f.reachable && (f.state == innodbutil.MysqlOnlineState || f.state == innodbutil.MysqlRecoveringState):
			return actionRemove
		default:
			return actionMarkRemoving
		}
	}

	if !f.reachable {
		return actionWait
	}

	// a member re-added after a recorded departure starts over as uninitialized
	if f.removing || !f.unitInitialized {
		if f.seedMember && !f.clusterFormed {
			return actionCreateCluster
		}
		if f.clusterFormed {
			return actionJoin
		}
		return actionWait
	}

	switch f.state {
	case innodbutil.MysqlOnlineState:
		return actionNone
	case innodbutil.MysqlOfflineState, innodbutil.MysqlMissingState:
		return actionJoin
	default:
		// recovering members finish on their own, error members need operator attention
		return actionWait
	}
}

func (r *ReconcileInnodbCluster) handleMembership(syncCtx *syncContext, replicationUser, replicationPassword string) error {
	instance := syncCtx.instance
	ctx := syncCtx.ctx
	admin := syncCtx.admin

	if err := r.ensureAppDefaults(syncCtx); err != nil {
		return err
	}

	infos := admin.GetClusterInfos(ctx, len(instance.Spec.Member))

	if infos.Status == innodbutil.ClusterInfoInconsistent {
		return fmt.Errorf("cluster status is inconsistent, please verify manually")
	}

	if err := r.ensureGroupConfig(syncCtx, infos); err != nil {
		return err
	}

	clusterFormed := false
	for _, node := range infos.Infos {
		if node.State == innodbutil.MysqlOnlineState {
			clusterFormed = true
			break
		}
	}

	var errs []error

	for i, node := range instance.Spec.Member {
		facts, err := r.gatherMemberFacts(syncCtx, node, i == 0, clusterFormed, infos)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		action := decideMemberAction(facts)
		syncCtx.reqLogger.V(4).Info("decided member action", "member", node.Name, "action", action.String())

		if err := r.runMemberAction(syncCtx, node, facts, action, replicationUser, replicationPassword); err != nil {
			errs = append(errs, err)
		}
	}

	if err := r.removeDepartedMembers(syncCtx, infos); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ensureAppDefaults publishes the cluster identity into the app section of
// the peer databag. Members and the cluster-set controller read it from
// there, never from the spec directly.
func (r *ReconcileInnodbCluster) ensureAppDefaults(syncCtx *syncContext) error {
	instance := syncCtx.instance
	ctx := syncCtx.ctx
	bag := syncCtx.bag

	if value, found, err := bag.AppGet(ctx, clusterNameKey); err != nil {
		return err
	} else if !found || value != instance.Spec.ClusterName {
		if err := bag.AppSet(ctx, clusterNameKey, instance.Spec.ClusterName); err != nil {
			return err
		}
	}

	domainName := instance.Spec.ClusterSetDomainName
	if domainName == "" {
		domainName = fmt.Sprintf("%s-set", instance.Spec.ClusterName)
	}

	if value, found, err := bag.AppGet(ctx, clusterSetDomainNameKey); err != nil {
		return err
	} else if !found || value != domainName {
		if err := bag.AppSet(ctx, clusterSetDomainNameKey, domainName); err != nil {
			return err
		}
	}

	return nil
}

// ensureGroupConfig keeps group_replication_group_seeds and the ip allowlist
// aligned with the member list on every reachable member.
func (r *ReconcileInnodbCluster) ensureGroupConfig(syncCtx *syncContext, infos *innodbutil.ClusterInfos) error {
	instance := syncCtx.instance
	ctx := syncCtx.ctx
	admin := syncCtx.admin

	var (
		errs                []error
		seedList, allowList []string
	)

	for _, node := range instance.Spec.Member {
		seedList = append(seedList, fmt.Sprintf("%s:%d", node.Host, 33061))
		allowList = append(allowList, node.Host)
	}
	seeds := strings.Join(seedList, ",")
	allow := strings.Join(allowList, ",")

	for addr := range infos.Infos {
		if err := admin.EnsureGroupSeeds(ctx, addr, seeds, allow); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *ReconcileInnodbCluster) gatherMemberFacts(syncCtx *syncContext, node *icv1alpha1.CommonNode, seedMember, clusterFormed bool, infos *innodbutil.ClusterInfos) (memberFacts, error) {
	ctx := syncCtx.ctx
	bag := syncCtx.bag

	facts := memberFacts{
		desired:       true,
		seedMember:    seedMember,
		clusterFormed: clusterFormed,
	}

	if nodeInfo, ok := infos.Infos[memberAddress(node)]; ok {
		facts.reachable = true
		facts.state = nodeInfo.State
		facts.role = nodeInfo.Role
	}

	if value, found, err := bag.UnitGet(ctx, node.Name, unitInitializedKey); err != nil {
		return facts, err
	} else {
		facts.unitInitialized = found && value == "true"
	}

	if value, found, err := bag.UnitGet(ctx, node.Name, unitStatusKey); err != nil {
		return facts, err
	} else {
		facts.removing = found && value == unitStatusRemoving
	}

	return facts, nil
}

func (r *ReconcileInnodbCluster) runMemberAction(syncCtx *syncContext, node *icv1alpha1.CommonNode, facts memberFacts, action memberAction, replicationUser, replicationPassword string) error {
	instance := syncCtx.instance
	ctx := syncCtx.ctx
	admin := syncCtx.admin
	addr := memberAddress(node)
	unitBag := syncCtx.bag.ForUnit(node.Name)

	switch action {
	case actionNone:
		return r.recordMemberState(syncCtx, node, facts)

	case actionWait:
		syncCtx.reqLogger.Info("member cannot make progress yet, waiting", "member", node.Name, "state", facts.state)
		return nil

	case actionCreateCluster:
		syncCtx.reqLogger.Info(fmt.Sprintf("no cluster formed yet, bootstrapping on seed member [%s]", addr))

		if err := admin.CreateCluster(ctx, addr, replicationUser, replicationPassword); err != nil {
			return err
		}

		if err := r.markUnitJoined(syncCtx, unitBag, node); err != nil {
			return err
		}

		r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "created cluster on [%s] successfully", addr)
		return nil

	case actionJoin:
		// members with a configured recovery channel restart replication,
		// fresh members configure the channel first
		if facts.unitInitialized && !facts.removing {
			syncCtx.reqLogger.Info(fmt.Sprintf("found [%s] in unexpected %s state, attempting to rejoin group", addr, facts.state))

			if err := admin.RejoinInstance(ctx, addr); err != nil {
				return err
			}

			r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "[%s] rejoined cluster successfully", addr)
			return nil
		}

		// an online member with a cleared flag is already in the group, only
		// the bookkeeping is missing
		if facts.state == innodbutil.MysqlOnlineState {
			return r.markUnitJoined(syncCtx, unitBag, node)
		}

		if err := admin.JoinInstance(ctx, addr, replicationUser, replicationPassword); err != nil {
			return err
		}

		if err := r.markUnitJoined(syncCtx, unitBag, node); err != nil {
			return err
		}

		r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "[%s] joined cluster successfully", addr)
		return nil

	case actionMarkRemoving, actionRemove:
		// desired members never reach these, departures are handled in
		// removeDepartedMembers where the group view is available
		return nil
	}

	return nil
}

// markUnitJoined records a completed bootstrap or join in the unit section
// and counts it cluster-wide.
func (r *ReconcileInnodbCluster) markUnitJoined(syncCtx *syncContext, unitBag *databag.PeerBag, node *icv1alpha1.CommonNode) error {
	ctx := syncCtx.ctx

	if err := unitBag.UnitSet(ctx, unitInitializedKey, "true"); err != nil {
		return err
	}

	if err := unitBag.UnitSet(ctx, unitStatusKey, unitStatusNormal); err != nil {
		return err
	}

	return r.incrementUnitsAdded(syncCtx)
}

func (r *ReconcileInnodbCluster) incrementUnitsAdded(syncCtx *syncContext) error {
	ctx := syncCtx.ctx
	bag := syncCtx.bag

	count := 0
	if value, found, err := bag.AppGet(ctx, unitsAddedKey); err != nil {
		return err
	} else if found {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("app databag key %q holds %q, not a number: %v", unitsAddedKey, value, err)
		}
		count = parsed
	}

	return bag.AppSet(ctx, unitsAddedKey, strconv.Itoa(count+1))
}

// recordMemberState mirrors the probed state and role of a converged member
// into its unit section so other controllers can read them without an engine
// connection.
func (r *ReconcileInnodbCluster) recordMemberState(syncCtx *syncContext, node *icv1alpha1.CommonNode, facts memberFacts) error {
	ctx := syncCtx.ctx
	unitBag := syncCtx.bag.ForUnit(node.Name)

	if err := unitBag.UnitSet(ctx, memberStateKey, facts.state); err != nil {
		return err
	}

	return unitBag.UnitSet(ctx, memberRoleKey, facts.role)
}

// removeDepartedMembers prunes group members the spec no longer lists. The
// group view comes from an online member, which also sees departed members
// this reconciler holds no connection for.
func (r *ReconcileInnodbCluster) removeDepartedMembers(syncCtx *syncContext, infos *innodbutil.ClusterInfos) error {
	instance := syncCtx.instance
	ctx := syncCtx.ctx
	admin := syncCtx.admin

	viewAddr := infos.GetPrimary()
	if viewAddr == "" {
		for addr, node := range infos.Infos {
			if node.State == innodbutil.MysqlOnlineState {
				viewAddr = addr
				break
			}
		}
	}
	if viewAddr == "" {
		// without a live group view there is nothing to prune
		return nil
	}

	desired := make(map[string]struct{}, len(instance.Spec.Member))
	for _, node := range instance.Spec.Member {
		desired[memberAddress(node)] = struct{}{}
	}

	groupMembers, err := admin.GetGroupMembers(ctx, viewAddr)
	if err != nil {
		return err
	}

	var errs []error

	for _, member := range groupMembers {
		addr := net.JoinHostPort(member.Host, strconv.Itoa(member.Port))
		if _, ok := desired[addr]; ok {
			continue
		}

		unitName := unitNameFromHost(member.Host)
		unitBag := syncCtx.bag.ForUnit(unitName)

		facts := memberFacts{
			reachable: true,
			state:     member.State,
			role:      member.Role,
		}

		if value, found, err := unitBag.UnitGet(ctx, unitName, unitStatusKey); err != nil {
			errs = append(errs, err)
			continue
		} else {
			facts.removing = found && value == unitStatusRemoving
		}

		switch decideMemberAction(facts) {
		case actionNone:
			continue

		case actionMarkRemoving:
			// the member already left or cannot be reached, record the
			// departure so later events no-op
			if err := unitBag.UnitSet(ctx, unitStatusKey, unitStatusRemoving); err != nil {
				errs = append(errs, err)
			}
			continue

		case actionRemove:
			// a departing primary hands over before it leaves
			if member.Role == innodbutil.MysqlPrimaryRole {
				survivor := pickSurvivor(infos, groupMembers, desired)
				if survivor == nil {
					errs = append(errs, fmt.Errorf("cannot remove primary [%s]: no online member left to promote", addr))
					continue
				}

				if err := admin.SetClusterPrimary(ctx, viewAddr, survivor.ID); err != nil {
					errs = append(errs, err)
					continue
				}

				r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced,
					"switched primary to [%s] before removing [%s]", net.JoinHostPort(survivor.Host, strconv.Itoa(survivor.Port)), addr)
			}

			if err := admin.RemoveInstance(ctx, addr); err != nil {
				errs = append(errs, err)
				continue
			}

			if err := unitBag.UnitSet(ctx, unitStatusKey, unitStatusRemoving); err != nil {
				errs = append(errs, err)
				continue
			}

			r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "removed [%s] from cluster", addr)
		}
	}

	return errors.Join(errs...)
}

// pickSurvivor returns the online desired member with the most advanced
// executed GTID set as the new primary, nil when none qualifies. Members
// whose GTID the probe could not read lose the election to any member with
// one; when nobody reports a GTID the first in address order wins.
func pickSurvivor(infos *innodbutil.ClusterInfos, groupMembers []*innodbutil.ClusterNodeInfo, desired map[string]struct{}) *innodbutil.ClusterNodeInfo {
	sort.Slice(groupMembers, func(i, j int) bool {
		if groupMembers[i].Host == groupMembers[j].Host {
			return groupMembers[i].Port < groupMembers[j].Port
		}
		return groupMembers[i].Host < groupMembers[j].Host
	})

	candidates := innodbutil.NewClusterInfos()
	byAddr := make(map[string]*innodbutil.ClusterNodeInfo, len(groupMembers))
	var fallback *innodbutil.ClusterNodeInfo

	for _, member := range groupMembers {
		addr := net.JoinHostPort(member.Host, strconv.Itoa(member.Port))
		if _, ok := desired[addr]; !ok {
			continue
		}
		if member.State != innodbutil.MysqlOnlineState {
			continue
		}

		if fallback == nil {
			fallback = member
		}
		byAddr[addr] = member
		if node, ok := infos.Infos[addr]; ok && node.GtidExecuted != "" {
			candidates.Infos[addr] = node
		}
	}

	if elected := candidates.ElectPrimary(); elected != "" {
		return byAddr[elected]
	}

	return fallback
}

func (r *ReconcileInnodbCluster) handleResources(syncCtx *syncContext) error {
	instance := syncCtx.instance

	var errs []error
	// set pod labels, including the role label services and routers select on
	for _, node := range instance.Spec.Member {
		if err := r.ensurePodLabels(syncCtx, node.Name); err != nil {
			errs = append(errs, err)
		}
	}

	if err := r.ensureTLS(syncCtx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (r *ReconcileInnodbCluster) ensurePodLabels(syncCtx *syncContext, podName string) error {
	ctx := syncCtx.ctx
	instance := syncCtx.instance
	namespace := instance.Namespace
	instanceName := instance.Name

	foundPod := &corev1.Pod{}
	if err := r.client.Get(ctx, types.NamespacedName{
		Name:      podName,
		Namespace: namespace,
	}, foundPod); err != nil {
		return fmt.Errorf("failed to fetch pod [%s]: %w", podName, err)
	}

	roleValue := "none"
	if node, ok := instance.Status.Topology[podName]; ok {
		switch node.Role {
		case icv1alpha1.InnodbClusterMemberRolePrimary:
			roleValue = "primary"
		case icv1alpha1.InnodbClusterMemberRoleSecondary:
			roleValue = "secondary"
		}
	}

	needUpdate := false

	if foundPod.Labels == nil {
		foundPod.Labels = map[string]string{}
	}

	if instanceValue, ok := foundPod.Labels[defaultKey]; !ok || instanceValue != instanceName {
		foundPod.Labels[defaultKey] = instanceName
		needUpdate = true
	}

	if currentRole, ok := foundPod.Labels[roleLabelKey]; !ok || currentRole != roleValue {
		foundPod.Labels[roleLabelKey] = roleValue
		needUpdate = true
	}

	if needUpdate {
		if err := r.client.Update(ctx, foundPod); err != nil {
			return fmt.Errorf("failed to update pod [%s]: %w", podName, err)
		}
		r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "pod [%s] update labels '%s' successfully", podName, defaultKey)
	}

	return nil
}

// ensureTLS reloads the server certificates on every member whenever the
// content of spec.tlsSecret rotates. The detected rotation is recorded as a
// content hash in the app section so an unchanged secret costs nothing.
func (r *ReconcileInnodbCluster) ensureTLS(syncCtx *syncContext) error {
	instance := syncCtx.instance
	ctx := syncCtx.ctx
	bag := syncCtx.bag

	if instance.Spec.TLSSecret == "" {
		return nil
	}

	data, err := k8sutil.GetSecretData(r.client, instance.Spec.TLSSecret, instance.Namespace, []string{corev1.TLSCertKey, corev1.TLSPrivateKeyKey})
	if err != nil {
		return err
	}

	hash := tlsSecretHash(data)

	current, found, err := bag.AppGet(ctx, tlsSecretHashKey)
	if err != nil {
		return err
	}
	if found && current == hash {
		return nil
	}

	if syncCtx.admin == nil {
		return fmt.Errorf("tls secret changed but no engine connection is available to reload it")
	}

	var errs []error
	for _, node := range instance.Spec.Member {
		addr := memberAddress(node)
		if err := syncCtx.admin.ReloadTLS(ctx, addr); err != nil {
			errs = append(errs, err)
			continue
		}

		if err := bag.ForUnit(node.Name).UnitSet(ctx, tlsEnabledKey, "true"); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	if err := bag.AppSet(ctx, tlsSecretHashKey, hash); err != nil {
		return err
	}

	r.recorder.Event(instance, corev1.EventTypeNormal, Synced, "reloaded TLS certificates on all members")
	return nil
}

func tlsSecretHash(data map[string][]byte) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, key := range keys {
		h.Write([]byte(key))
		h.Write(data[key])
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}
