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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
)

func TestMemberOrdinalsHighestFirst(t *testing.T) {
	instance := newTestCluster(3)

	ordinals, err := memberOrdinals(instance)
	require.NoError(t, err)

	if diff := cmp.Diff([]int{2, 1, 0}, ordinals); diff != "" {
		t.Errorf("unexpected ordinal order (-want +got):\n%s", diff)
	}
}

func TestMemberOrdinalsRejectsUnnumberedMembers(t *testing.T) {
	instance := newTestCluster(2)
	instance.Spec.Member[1].Name = "mysql"

	_, err := memberOrdinals(instance)
	assert.Error(t, err)
}

func TestUpgradeStackRoundTrip(t *testing.T) {
	instance := newTestCluster(3)
	r, _, _ := newTestReconciler()
	syncCtx := newTestSyncContext(r, instance, &fakeClusterAdmin{})

	_, found, err := r.loadUpgradeStack(syncCtx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, r.persistUpgradeStack(syncCtx, []int{2, 1, 0}))

	stack, found, err := r.loadUpgradeStack(syncCtx)
	require.NoError(t, err)
	require.True(t, found)
	if diff := cmp.Diff([]int{2, 1, 0}, stack); diff != "" {
		t.Errorf("unexpected stack (-want +got):\n%s", diff)
	}

	// an empty stack stays distinguishable from no stack at all
	require.NoError(t, r.persistUpgradeStack(syncCtx, nil))
	stack, found, err = r.loadUpgradeStack(syncCtx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, stack)
}

func upgradeTestInfos(memberCount int, version string) *innodbutil.ClusterInfos {
	infos := innodbutil.NewClusterInfos()
	infos.Status = innodbutil.ClusterInfoConsistent

	for i := 0; i < memberCount; i++ {
		role := innodbutil.MysqlSecondaryRole
		if i == 0 {
			role = innodbutil.MysqlPrimaryRole
		}
		infos.Infos[testAddr(i)] = onlineNode(i, role, version)
	}

	return infos
}

func TestHandleUpgradeBlockedWhenDegraded(t *testing.T) {
	instance := newTestCluster(3)
	instance.Annotations = map[string]string{icv1alpha1.PreUpgradeCheckKey: "true"}

	infos := upgradeTestInfos(3, "8.0.34")
	infos.Infos[testAddr(2)].State = innodbutil.MysqlUnreachableState
	infos.Status = innodbutil.ClusterInfoPartial

	r, statefulSet, _ := newTestReconciler(instance)
	admin := &fakeClusterAdmin{infos: infos}
	syncCtx := newTestSyncContext(r, instance, admin)

	err := r.handleUpgrade(syncCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUpgradeBlocked))

	// fail closed: no stack written, no partition touched
	_, found, loadErr := r.loadUpgradeStack(syncCtx)
	require.NoError(t, loadErr)
	assert.False(t, found)
	assert.Empty(t, statefulSet.partitions)
}

func TestHandleUpgradeCampaignDrainsHighestFirst(t *testing.T) {
	instance := newTestCluster(3)
	instance.Annotations = map[string]string{icv1alpha1.PreUpgradeCheckKey: "true"}

	infos := upgradeTestInfos(3, "8.0.34")
	r, statefulSet, _ := newTestReconciler(instance)
	admin := &fakeClusterAdmin{infos: infos}
	syncCtx := newTestSyncContext(r, instance, admin)

	// arming pass: check passes, stack persisted, partition raised to the top
	require.NoError(t, r.handleUpgrade(syncCtx))

	stack, found, err := r.loadUpgradeStack(syncCtx)
	require.NoError(t, err)
	require.True(t, found)
	if diff := cmp.Diff([]int{2, 1, 0}, stack); diff != "" {
		t.Errorf("unexpected armed stack (-want +got):\n%s", diff)
	}
	require.Equal(t, []int32{2}, statefulSet.partitions)
	require.NotNil(t, instance.Status.Upgrade)
	assert.Equal(t, icv1alpha1.UpgradePhaseChecked, instance.Status.Upgrade.Phase)

	// every member set up for a slow shutdown exactly once
	slowShutdowns := 0
	for _, call := range admin.calls {
		if strings.HasPrefix(call, "SetSlowShutdown") {
			slowShutdowns++
		}
	}
	assert.Equal(t, 3, slowShutdowns)

	// members restart under the new image one by one, highest ordinal first
	for _, step := range []struct {
		ordinal       int
		wantStack     []int
		wantPartition []int32
	}{
		{ordinal: 2, wantStack: []int{1, 0}, wantPartition: []int32{2, 1}},
		{ordinal: 1, wantStack: []int{0}, wantPartition: []int32{2, 1, 0}},
	} {
		infos.Infos[testAddr(step.ordinal)].Version = "8.0.36"

		require.NoError(t, r.handleUpgrade(syncCtx))

		stack, _, err := r.loadUpgradeStack(syncCtx)
		require.NoError(t, err)
		if diff := cmp.Diff(step.wantStack, stack); diff != "" {
			t.Errorf("ordinal %d: unexpected stack (-want +got):\n%s", step.ordinal, diff)
		}
		assert.Equal(t, step.wantPartition, statefulSet.partitions)

		state, _, err := syncCtx.bag.UnitGet(syncCtx.ctx, fmt.Sprintf("mysql-%d", step.ordinal), upgradeStateKey)
		require.NoError(t, err)
		assert.Equal(t, upgradeStateCompleted, state)
	}

	// last member, then the finishing pass clears everything
	infos.Infos[testAddr(0)].Version = "8.0.36"
	require.NoError(t, r.handleUpgrade(syncCtx))

	stack, _, err = r.loadUpgradeStack(syncCtx)
	require.NoError(t, err)
	assert.Empty(t, stack)

	require.NoError(t, r.handleUpgrade(syncCtx))

	_, found, err = r.loadUpgradeStack(syncCtx)
	require.NoError(t, err)
	assert.False(t, found, "the drained stack must be removed")
	assert.Equal(t, int32(0), statefulSet.partitions[len(statefulSet.partitions)-1])
	assert.Equal(t, icv1alpha1.UpgradePhaseIdle, instance.Status.Upgrade.Phase)

	for i := 0; i < 3; i++ {
		state, _, err := syncCtx.bag.UnitGet(syncCtx.ctx, fmt.Sprintf("mysql-%d", i), upgradeStateKey)
		require.NoError(t, err)
		assert.Equal(t, upgradeStateIdle, state)
	}
}

func TestHandleUpgradeRejoinBudgetExhausts(t *testing.T) {
	instance := newTestCluster(3)
	instance.Annotations = map[string]string{icv1alpha1.PreUpgradeCheckKey: "true"}

	infos := upgradeTestInfos(3, "8.0.34")
	r, _, _ := newTestReconciler(instance)
	admin := &fakeClusterAdmin{infos: infos}
	syncCtx := newTestSyncContext(r, instance, admin)

	require.NoError(t, r.handleUpgrade(syncCtx))

	// the top member restarted with the right version but never comes online
	infos.Infos[testAddr(2)].Version = "8.0.36"
	infos.Infos[testAddr(2)].State = innodbutil.MysqlRecoveringState

	var err error
	for i := 0; i < maxRejoinAttempts-1; i++ {
		err = r.handleUpgrade(syncCtx)
		require.NoError(t, err, "attempt %d must still be within budget", i+1)
	}

	err = r.handleUpgrade(syncCtx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not rejoin")
	assert.Equal(t, icv1alpha1.UpgradePhaseFailed, instance.Status.Upgrade.Phase)

	state, _, stateErr := syncCtx.bag.UnitGet(syncCtx.ctx, "mysql-2", upgradeStateKey)
	require.NoError(t, stateErr)
	assert.Equal(t, upgradeStateFailed, state)

	// halted: more rounds change nothing until the resume annotation shows up
	stackBefore, _, err := r.loadUpgradeStack(syncCtx)
	require.NoError(t, err)
	require.NoError(t, r.handleUpgrade(syncCtx))
	stackAfter, _, err := r.loadUpgradeStack(syncCtx)
	require.NoError(t, err)
	if diff := cmp.Diff(stackBefore, stackAfter); diff != "" {
		t.Errorf("halted campaign must not move (-before +after):\n%s", diff)
	}

	// resume-upgrade re-arms the member and the campaign proceeds
	instance.Annotations[icv1alpha1.ResumeUpgradeKey] = "true"
	infos.Infos[testAddr(2)].State = innodbutil.MysqlOnlineState

	require.NoError(t, r.handleUpgrade(syncCtx))
	require.NoError(t, r.handleUpgrade(syncCtx))

	stack, _, err := r.loadUpgradeStack(syncCtx)
	require.NoError(t, err)
	if diff := cmp.Diff([]int{1, 0}, stack); diff != "" {
		t.Errorf("unexpected stack after resume (-want +got):\n%s", diff)
	}
}

func TestHandleUpgradeIncompatibleVersionIsFatal(t *testing.T) {
	instance := newTestCluster(2)
	instance.Annotations = map[string]string{icv1alpha1.PreUpgradeCheckKey: "true"}
	instance.Spec.Version = "8.0.30"

	infos := upgradeTestInfos(2, "8.0.34")
	r, _, _ := newTestReconciler(instance)
	admin := &fakeClusterAdmin{infos: infos}
	syncCtx := newTestSyncContext(r, instance, admin)

	require.NoError(t, r.handleUpgrade(syncCtx))

	// the restarted member reports the downgraded version
	infos.Infos[testAddr(1)].Version = "8.0.30"
	admin.upgradableErr = fmt.Errorf("%w: downgrade from 8.0.34 to 8.0.30", innodbutil.ErrIncompatibleVersion)

	err := r.handleUpgrade(syncCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, innodbutil.ErrIncompatibleVersion))
	assert.Contains(t, err.Error(), "roll back")
	assert.Equal(t, icv1alpha1.UpgradePhaseFailed, instance.Status.Upgrade.Phase)

	state, _, stateErr := syncCtx.bag.UnitGet(syncCtx.ctx, "mysql-1", upgradeStateKey)
	require.NoError(t, stateErr)
	assert.Equal(t, upgradeStateFailed, state)
}

func TestHandleUpgradeNoopWithoutAnnotation(t *testing.T) {
	instance := newTestCluster(3)

	infos := upgradeTestInfos(3, "8.0.34")
	r, statefulSet, _ := newTestReconciler(instance)
	admin := &fakeClusterAdmin{infos: infos}
	syncCtx := newTestSyncContext(r, instance, admin)

	require.NoError(t, r.handleUpgrade(syncCtx))

	_, found, err := r.loadUpgradeStack(syncCtx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, statefulSet.partitions)
	assert.Empty(t, admin.calls)
}
