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
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/databag"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/k8sutil"
)

// newClusterAdmin builds and returns a new innodbutil.IClusterAdmin from the member list
func newClusterAdmin(instance *icv1alpha1.InnodbCluster, password string, reqLogger logr.Logger) innodbutil.IClusterAdmin {
	nodesAddrs := make([]string, 0)

	for _, node := range instance.Spec.Member {
		nodesAddrs = append(nodesAddrs, net.JoinHostPort(node.Host, strconv.Itoa(node.Port)))
		reqLogger.V(4).Info("append innodb cluster admin node addr", "host", node.Host, "port", node.Port)
	}

	adminConfig := innodbutil.AdminOptions{
		ConnectionTimeout: 2,
		Username:          instance.Spec.Secret.ClusterAdmin,
		Password:          password,
	}

	return innodbutil.NewClusterAdmin(nodesAddrs, &adminConfig, reqLogger)
}

// newPeerBag returns the peer databag of the cluster. The controller performs
// app-scope writes, so the bag carries the leader identity; unit writes go
// through ForUnit.
func newPeerBag(c client.Client, instance *icv1alpha1.InnodbCluster) *databag.PeerBag {
	return databag.NewPeerBag(
		c,
		instance.Namespace,
		fmt.Sprintf("%s-peer-databag", instance.Name),
		databag.Identity{Leader: true},
		icv1alpha1.DefaultInnodbClusterOwnerReferences(instance),
	)
}

// decryptSecret returns the current cluster admin password and the recovery channel password.
func decryptSecret(client client.Client, instance *icv1alpha1.InnodbCluster) (string, string, error) {
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

// unitNameFromHost extracts the pod name from a member host of the form
// <pod>.<headless-service>.<namespace>.svc.<domain>.
func unitNameFromHost(host string) string {
	return strings.Split(host, ".")[0]
}

func podMapFunc(_ context.Context, o client.Object) []reconcile.Request {
	pod := o.(*corev1.Pod)

	// Get InnodbCluster's name from pod labels
	name, exists := pod.Labels[defaultKey]
	if !exists {
		return nil
	}

	// return reconcile request
	return []reconcile.Request{
		{
			NamespacedName: types.NamespacedName{
				Namespace: pod.Namespace,
				Name:      name,
			},
		},
	}
}
