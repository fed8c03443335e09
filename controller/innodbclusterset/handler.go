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
	"bytes"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	kubeErrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/k8sutil"
)

// errPairingBlocked marks a pairing the operator must untangle by hand, a
// retry cannot help.
var errPairingBlocked = errors.New("pairing refused")

// handlePrimarySide drives the offering side of the pairing: share the sync
// credentials, create the replica cluster once the replica publishes its
// endpoint, then watch it recover.
func (r *ReconcileInnodbClusterSet) handlePrimarySide(syncCtx *syncContext, configPassword string) error {
	instance := syncCtx.instance
	cluster := syncCtx.cluster
	ctx := syncCtx.ctx
	admin := syncCtx.admin
	bag := syncCtx.bag

	infos := admin.GetClusterInfos(ctx, len(cluster.Spec.Member))
	primaryAddr := infos.GetPrimary()
	if primaryAddr == "" {
		syncCtx.reqLogger.Info("local cluster has no online primary yet, deferring pairing")
		return nil
	}

	// chained pairings are disallowed: a cluster that already replicates
	// inside a set cannot offer itself as a source
	channelState, err := admin.GetClusterSetChannelState(ctx, primaryAddr)
	if err != nil {
		return err
	}
	if channelState != innodbutil.ClusterSetChannelUnset {
		return fmt.Errorf("%w: cluster [%s] already replicates inside a cluster set", errPairingBlocked, cluster.Spec.ClusterName)
	}

	if _, found, err := bag.Get(ctx, secretIDKey); err != nil {
		return err
	} else if !found {
		secretName, err := r.ensureSyncSecret(syncCtx)
		if err != nil {
			return err
		}

		if err := bag.Set(ctx, secretIDKey, secretName); err != nil {
			return err
		}

		r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "shared sync credentials through secret [%s]", secretName)
	}

	local, err := bag.Section(ctx)
	if err != nil {
		return err
	}
	remote, err := bag.PeerSection(ctx)
	if err != nil {
		return err
	}

	var probe clusterSetProbe
	endpoint := remote[endpointKey]
	if endpoint != "" && local[replicaStateKey] == replicaStateInitialized {
		probe = probeReplicaCluster(syncCtx, endpoint)
	}

	state := deriveState(local, remote, probe)
	instance.Status.State = state
	instance.Status.Ready = state == icv1alpha1.ClusterSetStateReady
	if name := remote[clusterNameKey]; name != "" {
		instance.Status.RemoteClusterName = name
	}

	switch state {
	case icv1alpha1.ClusterSetStateSyncing:
		syncCtx.reqLogger.Info("waiting for the replica side to publish its endpoint")

	case icv1alpha1.ClusterSetStateInitializing:
		donor := pickDonor(infos, primaryAddr)
		if err := r.createReplicaCluster(syncCtx, endpoint, donor, remote, configPassword); err != nil {
			return err
		}
		instance.Status.State = icv1alpha1.ClusterSetStateRecovering

	case icv1alpha1.ClusterSetStateRecovering:
		syncCtx.reqLogger.Info("replica cluster members still joining", "cluster", instance.Status.RemoteClusterName)
	}

	return nil
}

// createReplicaCluster points the replication channel of the replica endpoint
// at the donor and starts it, absorbing the remote cluster into the set.
func (r *ReconcileInnodbClusterSet) createReplicaCluster(syncCtx *syncContext, endpoint, donor string, remote map[string]string, configPassword string) error {
	instance := syncCtx.instance
	ctx := syncCtx.ctx
	admin := syncCtx.admin

	donorHost, donorPort, err := splitAddress(donor)
	if err != nil {
		return err
	}

	if err := admin.SetClusterSetChannel(ctx, endpoint, donorHost, donorPort, instance.Spec.Secret.ServerConfig, configPassword); err != nil {
		return err
	}

	if err := admin.StartClusterSetChannel(ctx, endpoint); err != nil {
		return err
	}

	if err := syncCtx.bag.Set(ctx, replicaStateKey, replicaStateInitialized); err != nil {
		return err
	}

	r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced,
		"created replica cluster [%s] at [%s] from donor [%s]", remote[clusterNameKey], endpoint, donor)

	return nil
}

// ensureSyncSecret copies the two synced credential entries into a dedicated
// secret the replica side learns about through secret-id. Values stay
// AES-encrypted, both operators hold the same key.
func (r *ReconcileInnodbClusterSet) ensureSyncSecret(syncCtx *syncContext) (string, error) {
	instance := syncCtx.instance
	ctx := syncCtx.ctx

	name := fmt.Sprintf("%s-sync-credentials", instance.Name)

	found := &corev1.Secret{}
	err := r.client.Get(ctx, types.NamespacedName{Namespace: instance.Namespace, Name: name}, found)
	if err == nil {
		return name, nil
	}
	if !kubeErrors.IsNotFound(err) {
		return "", err
	}

	data, err := k8sutil.GetSecretData(r.client, instance.Spec.Secret.Name, instance.Namespace,
		[]string{instance.Spec.Secret.ClusterAdmin, instance.Spec.Secret.ServerConfig})
	if err != nil {
		return "", err
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:            name,
			Namespace:       instance.Namespace,
			OwnerReferences: icv1alpha1.DefaultInnodbClusterSetOwnerReferences(instance),
		},
		Data: data,
	}

	if err := r.client.Create(ctx, secret); err != nil {
		return "", err
	}

	return name, nil
}

// handleReplicaSide drives the absorbed side of the pairing: take over the
// shared credentials, dissolve the local formation, publish the endpoint and
// hand the members back to the membership path once the set absorbed them.
func (r *ReconcileInnodbClusterSet) handleReplicaSide(syncCtx *syncContext) error {
	instance := syncCtx.instance
	cluster := syncCtx.cluster
	ctx := syncCtx.ctx
	bag := syncCtx.bag

	local, err := bag.Section(ctx)
	if err != nil {
		return err
	}
	remote, err := bag.PeerSection(ctx)
	if err != nil {
		return err
	}

	firstMember := cluster.Spec.Member[0]
	firstAddr := memberAddress(firstMember)

	var probe clusterSetProbe
	if remote[replicaStateKey] == replicaStateInitialized {
		probe = probeReplicaCluster(syncCtx, firstAddr)
	}

	state := deriveState(local, remote, probe)

	// the one-shot membership reset fires on the absorption edge; the stored
	// status keeps the pre-absorption state until the reset lands, so a
	// failed reset is retried next round
	if pairingAbsorbed(state) && !pairingAbsorbed(instance.Status.State) {
		if err := r.resetMembershipBookkeeping(syncCtx); err != nil {
			return err
		}

		r.recorder.Event(instance, corev1.EventTypeNormal, Synced,
			"cluster absorbed into the set, secondaries will rejoin through the membership path")
	}

	instance.Status.State = state
	instance.Status.Ready = state == icv1alpha1.ClusterSetStateReady

	switch state {
	case icv1alpha1.ClusterSetStateSyncing:
		if err := r.syncSharedCredentials(syncCtx, remote[secretIDKey]); err != nil {
			return err
		}

		if err := r.publishReplicaFacts(syncCtx, firstMember); err != nil {
			return err
		}
		instance.Status.State = icv1alpha1.ClusterSetStateInitializing

	case icv1alpha1.ClusterSetStateInitializing:
		syncCtx.reqLogger.Info("waiting for the primary side to create the replica cluster")

	case icv1alpha1.ClusterSetStateRecovering:
		syncCtx.reqLogger.Info("replica cluster members still joining")
	}

	return nil
}

// syncSharedCredentials makes the local cluster authenticate with the same
// credentials as the primary cluster. The engine rewrite targets the first
// member only: every other member receives the synced accounts through the
// clone it takes when rejoining the set.
func (r *ReconcileInnodbClusterSet) syncSharedCredentials(syncCtx *syncContext, secretID string) error {
	instance := syncCtx.instance
	cluster := syncCtx.cluster
	ctx := syncCtx.ctx
	admin := syncCtx.admin

	if secretID == "" {
		return fmt.Errorf("pairing bag carries no secret-id yet")
	}

	keys := []string{instance.Spec.Secret.ClusterAdmin, instance.Spec.Secret.ServerConfig}

	shared, err := k8sutil.GetSecretData(r.client, secretID, instance.Namespace, keys)
	if err != nil {
		return err
	}

	localData, err := k8sutil.GetSecretData(r.client, instance.Spec.Secret.Name, instance.Namespace, keys)
	if err != nil {
		return err
	}

	if credentialsEqual(shared, localData) {
		return nil
	}

	passwords, err := k8sutil.DecryptSecretPasswords(r.client, secretID, instance.Namespace, keys)
	if err != nil {
		return err
	}

	// stop the local formation first so no new connections are dialed after
	// the password flips under the running admin
	if err := admin.DissolveCluster(ctx); err != nil {
		return err
	}
	r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "dissolved local cluster [%s] for absorption", cluster.Spec.ClusterName)

	firstAddr := memberAddress(cluster.Spec.Member[0])
	if err := admin.SetSyncedUserPasswords(ctx, firstAddr, passwords); err != nil {
		return err
	}

	// keep the secret in lockstep so the next reconciliation authenticates
	// with the synced password
	if err := r.storeSyncedCredentials(syncCtx, shared); err != nil {
		return err
	}

	r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "synced credentials from secret [%s]", secretID)

	return nil
}

func (r *ReconcileInnodbClusterSet) storeSyncedCredentials(syncCtx *syncContext, shared map[string][]byte) error {
	instance := syncCtx.instance
	ctx := syncCtx.ctx

	secret := &corev1.Secret{}
	if err := r.client.Get(ctx, types.NamespacedName{
		Namespace: instance.Namespace,
		Name:      instance.Spec.Secret.Name,
	}, secret); err != nil {
		return err
	}

	if secret.Data == nil {
		secret.Data = map[string][]byte{}
	}
	for key, value := range shared {
		secret.Data[key] = value
	}

	return r.client.Update(ctx, secret)
}

// publishReplicaFacts shares the facts the primary side needs to absorb this
// cluster: where to reach it, what to call it and how to label the instance.
func (r *ReconcileInnodbClusterSet) publishReplicaFacts(syncCtx *syncContext, firstMember *icv1alpha1.CommonNode) error {
	instance := syncCtx.instance
	cluster := syncCtx.cluster
	ctx := syncCtx.ctx
	bag := syncCtx.bag

	endpoint := memberAddress(firstMember)

	if err := bag.Set(ctx, endpointKey, endpoint); err != nil {
		return err
	}
	if err := bag.Set(ctx, nodeLabelKey, firstMember.Name); err != nil {
		return err
	}
	if err := bag.Set(ctx, clusterNameKey, cluster.Spec.ClusterName); err != nil {
		return err
	}

	r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "published endpoint [%s] for absorption into the cluster set", endpoint)

	return nil
}

// resetMembershipBookkeeping resets the local peer databag so the ordinary
// membership path rejoins the secondaries into the freshly created replica
// cluster. The first member is already inside, it keeps its flag.
func (r *ReconcileInnodbClusterSet) resetMembershipBookkeeping(syncCtx *syncContext) error {
	cluster := syncCtx.cluster
	ctx := syncCtx.ctx
	peerBag := syncCtx.peerBag

	if err := peerBag.AppSet(ctx, unitsAddedKey, "1"); err != nil {
		return err
	}

	for _, node := range cluster.Spec.Member[1:] {
		if err := peerBag.ForUnit(node.Name).UnitDelete(ctx, unitInitializedKey); err != nil {
			return err
		}
	}

	return nil
}

// finalizePrimarySide removes the replica cluster from the set if one was
// ever created, then retires the pairing bag. The bag lifecycle belongs to
// the primary side.
func (r *ReconcileInnodbClusterSet) finalizePrimarySide(syncCtx *syncContext) (bool, error) {
	instance := syncCtx.instance
	ctx := syncCtx.ctx
	admin := syncCtx.admin
	bag := syncCtx.bag

	local, err := bag.Section(ctx)
	if err != nil {
		return false, err
	}
	remote, err := bag.PeerSection(ctx)
	if err != nil {
		return false, err
	}

	endpoint := remote[endpointKey]
	if local[replicaStateKey] == replicaStateInitialized && endpoint != "" {
		if err := admin.ResetClusterSetChannel(ctx, endpoint); err != nil {
			return false, err
		}

		r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "removed replica cluster [%s] from the cluster set", remote[clusterNameKey])
	}

	if err := bag.Destroy(ctx); err != nil {
		return false, err
	}

	return true, nil
}

// finalizeReplicaSide restores the local cluster's independence. It defers
// while the primary side still holds this cluster in the set.
func (r *ReconcileInnodbClusterSet) finalizeReplicaSide(syncCtx *syncContext, configPassword string) (bool, error) {
	instance := syncCtx.instance
	cluster := syncCtx.cluster
	ctx := syncCtx.ctx
	admin := syncCtx.admin

	firstAddr := memberAddress(cluster.Spec.Member[0])

	channelState, err := admin.GetClusterSetChannelState(ctx, firstAddr)
	if err != nil {
		return false, err
	}

	restored := false
	switch channelState {
	case innodbutil.ClusterSetChannelOn, innodbutil.ClusterSetChannelConnecting:
		// still held in the set, the primary side dissolves us first
		return false, nil

	case innodbutil.ClusterSetChannelOff:
		if err := admin.ResetClusterSetChannel(ctx, firstAddr); err != nil {
			return false, err
		}
		restored = true
	}

	infos := admin.GetClusterInfos(ctx, len(cluster.Spec.Member))
	if infos.GetPrimary() == "" {
		if err := admin.CreateCluster(ctx, firstAddr, instance.Spec.Secret.ServerConfig, configPassword); err != nil {
			return false, err
		}

		r.recorder.Eventf(instance, corev1.EventTypeNormal, Synced, "recreated [%s] as a standalone single member cluster", cluster.Spec.ClusterName)
		restored = true
	}

	if restored {
		// a fresh cluster set domain is re-derived by the membership path
		if err := syncCtx.peerBag.AppDelete(ctx, clusterSetDomainNameKey); err != nil {
			return false, err
		}
		if err := syncCtx.peerBag.AppSet(ctx, unitsAddedKey, "1"); err != nil {
			return false, err
		}
	}

	if err := syncCtx.bag.Clear(ctx); err != nil {
		return false, err
	}

	return true, nil
}

// probeReplicaCluster grades the replica cluster through its own group view.
// A failed probe counts as not recovered yet.
func probeReplicaCluster(syncCtx *syncContext, addr string) clusterSetProbe {
	members, err := syncCtx.admin.GetGroupMembers(syncCtx.ctx, addr)
	if err != nil {
		syncCtx.reqLogger.V(4).Info("replica cluster probe failed", "addr", addr, "error", err.Error())
		return clusterSetProbe{}
	}

	probe := clusterSetProbe{membersTotal: len(members)}
	for _, member := range members {
		if member.State == innodbutil.MysqlOnlineState {
			probe.membersOnline++
		}
	}

	return probe
}

func credentialsEqual(a, b map[string][]byte) bool {
	if len(a) != len(b) {
		return false
	}

	for key, value := range a {
		if !bytes.Equal(value, b[key]) {
			return false
		}
	}

	return true
}
