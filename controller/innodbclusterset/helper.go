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
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/databag"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/k8sutil"
)

// newClusterAdmin builds and returns a new innodbutil.IClusterAdmin over the
// local cluster's member list. The remote endpoint is reached through the
// connection map's auto-connect on demand.
func newClusterAdmin(instance *icv1alpha1.InnodbClusterSet, cluster *icv1alpha1.InnodbCluster, password string, reqLogger logr.Logger) innodbutil.IClusterAdmin {
	nodesAddrs := make([]string, 0)

	for _, node := range cluster.Spec.Member {
		nodesAddrs = append(nodesAddrs, memberAddress(node))
		reqLogger.V(4).Info("append innodb cluster admin node addr", "host", node.Host, "port", node.Port)
	}

	adminConfig := innodbutil.AdminOptions{
		ConnectionTimeout: 2,
		Username:          instance.Spec.Secret.ClusterAdmin,
		Password:          password,
	}

	return innodbutil.NewClusterAdmin(nodesAddrs, &adminConfig, reqLogger)
}

// newRelationBag returns the pairing bag acting for this side of the relation.
func newRelationBag(c client.Client, instance *icv1alpha1.InnodbClusterSet) *databag.RelationBag {
	return databag.NewRelationBag(c, instance.Namespace, instance.Spec.RelationBagName, instance.Spec.Role)
}

// newLocalPeerBag returns the peer databag of the local cluster. The cluster
// set controller resets membership bookkeeping there when the replica cluster
// is absorbed, so it carries the leader identity.
func newLocalPeerBag(c client.Client, cluster *icv1alpha1.InnodbCluster) *databag.PeerBag {
	return databag.NewPeerBag(
		c,
		cluster.Namespace,
		fmt.Sprintf("%s-peer-databag", cluster.Name),
		databag.Identity{Leader: true},
		icv1alpha1.DefaultInnodbClusterOwnerReferences(cluster),
	)
}

// decryptSecret returns the current cluster admin password and the replication
// channel password.
func decryptSecret(client client.Client, instance *icv1alpha1.InnodbClusterSet) (string, string, error) {
	passwords, err := k8sutil.DecryptSecretPasswords(
		client,
		instance.Spec.Secret.Name,
		instance.Namespace,
		[]string{instance.Spec.Secret.ClusterAdmin, instance.Spec.Secret.ServerConfig},
	)
	if err != nil {
		return "", "", err
	}

	return passwords[instance.Spec.Secret.ClusterAdmin], passwords[instance.Spec.Secret.ServerConfig], nil
}

func memberAddress(node *icv1alpha1.CommonNode) string {
	return net.JoinHostPort(node.Host, strconv.Itoa(node.Port))
}

// splitAddress breaks host:port into the pieces the replication channel
// configuration wants.
func splitAddress(addr string) (string, int, error) {
	host, portValue, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("unable to split host and port from address: %s", addr)
	}

	port, err := strconv.Atoi(portValue)
	if err != nil {
		return "", 0, fmt.Errorf("unable to parse port from address: %s", addr)
	}

	return host, port, nil
}

// pickDonor prefers an online secondary so the primary keeps serving writes
// while the replica cluster seeds from the donor.
func pickDonor(infos *innodbutil.ClusterInfos, primaryAddr string) string {
	addrs := make([]string, 0, len(infos.Infos))
	for addr := range infos.Infos {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		node := infos.Infos[addr]
		if node.Role == innodbutil.MysqlSecondaryRole && node.State == innodbutil.MysqlOnlineState {
			return addr
		}
	}

	return primaryAddr
}
