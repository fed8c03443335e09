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
	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
)

// relation bag keys. The primary section carries secret-id and replica-state,
// the replica section carries cluster-name, endpoint and node-label. Key names
// never collide across sections, so derivation can work on the merged view.
const (
	secretIDKey     = "secret-id"
	replicaStateKey = "replica-state"
	clusterNameKey  = "cluster-name"
	endpointKey     = "endpoint"
	nodeLabelKey    = "node-label"

	replicaStateInitialized = "initialized"
)

// clusterSetProbe is the live group view of the replica cluster. Members the
// group has not admitted yet do not count, so a freshly absorbed single-node
// replica cluster grades Ready once its clone finishes.
type clusterSetProbe struct {
	membersTotal  int
	membersOnline int
}

// deriveState computes the replication state of a pairing from both relation
// sections and a live probe. It is recomputed on every reconciliation and
// never stored, so both sides always agree on what the raw facts mean.
func deriveState(localSide, remoteSide map[string]string, probe clusterSetProbe) icv1alpha1.ClusterSetState {
	facts := make(map[string]string, len(localSide)+len(remoteSide))
	for key, value := range localSide {
		facts[key] = value
	}
	for key, value := range remoteSide {
		facts[key] = value
	}

	if len(facts) == 0 {
		return icv1alpha1.ClusterSetStateNone
	}

	if facts[replicaStateKey] == replicaStateInitialized {
		if probe.membersTotal > 0 && probe.membersOnline == probe.membersTotal {
			return icv1alpha1.ClusterSetStateReady
		}

		return icv1alpha1.ClusterSetStateRecovering
	}

	if facts[endpointKey] != "" {
		return icv1alpha1.ClusterSetStateInitializing
	}

	if facts[secretIDKey] != "" {
		return icv1alpha1.ClusterSetStateSyncing
	}

	return icv1alpha1.ClusterSetStateNone
}

// pairingAbsorbed reports whether a state means the replica cluster has been
// created inside the set.
func pairingAbsorbed(state icv1alpha1.ClusterSetState) bool {
	return state == icv1alpha1.ClusterSetStateRecovering || state == icv1alpha1.ClusterSetStateReady
}
