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
	"strings"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
)

// fakeClusterAdmin scripts the engine view for handler tests and records
// every mutating call in order. Methods the tests never reach fall through
// to the embedded nil interface and panic loudly.
type fakeClusterAdmin struct {
	innodbutil.IClusterAdmin

	infos        *innodbutil.ClusterInfos
	groupMembers []*innodbutil.ClusterNodeInfo

	upgradableErr error
	primaryErr    error

	calls []string
}

func (f *fakeClusterAdmin) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeClusterAdmin) Close() {}

func (f *fakeClusterAdmin) GetClusterInfos(_ context.Context, _ int) *innodbutil.ClusterInfos {
	if f.infos == nil {
		return innodbutil.NewClusterInfos()
	}
	return f.infos
}

func (f *fakeClusterAdmin) GetGroupMembers(_ context.Context, _ string) ([]*innodbutil.ClusterNodeInfo, error) {
	return f.groupMembers, nil
}

func (f *fakeClusterAdmin) EnsureGroupSeeds(_ context.Context, _, _, _ string) error {
	return nil
}

func (f *fakeClusterAdmin) CreateCluster(_ context.Context, addr, _, _ string) error {
	f.record("CreateCluster(%s)", addr)
	return nil
}

func (f *fakeClusterAdmin) JoinInstance(_ context.Context, addr, _, _ string) error {
	f.record("JoinInstance(%s)", addr)
	return nil
}

func (f *fakeClusterAdmin) RejoinInstance(_ context.Context, addr string) error {
	f.record("RejoinInstance(%s)", addr)
	return nil
}

func (f *fakeClusterAdmin) RemoveInstance(_ context.Context, addr string) error {
	f.record("RemoveInstance(%s)", addr)
	return nil
}

func (f *fakeClusterAdmin) SetClusterPrimary(_ context.Context, addr, memberID string) error {
	if f.primaryErr != nil {
		return f.primaryErr
	}
	f.record("SetClusterPrimary(%s,%s)", addr, memberID)
	return nil
}

func (f *fakeClusterAdmin) SetSlowShutdown(_ context.Context, addr string) error {
	f.record("SetSlowShutdown(%s)", addr)
	return nil
}

func (f *fakeClusterAdmin) CheckServerUpgradable(_ context.Context, addr, targetVersion string) error {
	f.record("CheckServerUpgradable(%s,%s)", addr, targetVersion)
	return f.upgradableErr
}

func (f *fakeClusterAdmin) ReloadTLS(_ context.Context, addr string) error {
	f.record("ReloadTLS(%s)", addr)
	return nil
}

// mutationCalls filters the call log down to topology-changing commands.
func (f *fakeClusterAdmin) mutationCalls() []string {
	var out []string
	for _, call := range f.calls {
		for _, prefix := range []string{"CreateCluster", "JoinInstance", "RejoinInstance", "RemoveInstance", "SetClusterPrimary"} {
			if strings.HasPrefix(call, prefix) {
				out = append(out, call)
				break
			}
		}
	}
	return out
}

type fakeStatefulSetControl struct {
	partitions []int32
	setErr     error
}

func (f *fakeStatefulSetControl) GetStatefulSet(namespace, name string) (*appsv1.StatefulSet, error) {
	return nil, nil
}

func (f *fakeStatefulSetControl) GetPartition(namespace, name string) (int32, error) {
	if len(f.partitions) == 0 {
		return 0, nil
	}
	return f.partitions[len(f.partitions)-1], nil
}

func (f *fakeStatefulSetControl) SetPartition(namespace, name string, partition int32) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.partitions = append(f.partitions, partition)
	return nil
}

func (f *fakeStatefulSetControl) SetContainerImage(namespace, name, container, image string) error {
	return nil
}

const testDomain = "mysql-headless.default.svc.cluster.local"

func testHost(ordinal int) string {
	return fmt.Sprintf("mysql-%d.%s", ordinal, testDomain)
}

func testAddr(ordinal int) string {
	return fmt.Sprintf("%s:3306", testHost(ordinal))
}

func newTestCluster(memberCount int) *icv1alpha1.InnodbCluster {
	members := make(icv1alpha1.CommonNodes, 0, memberCount)
	for i := 0; i < memberCount; i++ {
		members = append(members, &icv1alpha1.CommonNode{
			Name: fmt.Sprintf("mysql-%d", i),
			Host: testHost(i),
			Port: 3306,
		})
	}

	return &icv1alpha1.InnodbCluster{
		ObjectMeta: metav1.ObjectMeta{
			Name:            "mysql",
			Namespace:       "default",
			UID:             "test-uid",
			ResourceVersion: "1",
		},
		Spec: icv1alpha1.InnodbClusterSpec{
			ClusterName:     "cluster1",
			StatefulSetName: "mysql",
			Version:         "8.0.36",
			Secret: icv1alpha1.InnodbClusterSecret{
				Name:         "mysql-secret",
				Mysql:        "mysql",
				ClusterAdmin: "clusterAdmin",
				ServerConfig: "serverConfig",
				Monitor:      "monitor",
				Backup:       "backup",
			},
			Member: members,
		},
	}
}

// onlineNode builds a probed member entry in the ONLINE state.
func onlineNode(ordinal int, role, version string) *innodbutil.ClusterNode {
	return &innodbutil.ClusterNode{
		ClusterNodeInfo: &innodbutil.ClusterNodeInfo{
			ID:    fmt.Sprintf("uuid-%d", ordinal),
			Host:  testHost(ordinal),
			Port:  3306,
			Role:  role,
			State: innodbutil.MysqlOnlineState,
		},
		Version: version,
	}
}

func newTestReconciler(objs ...client.Object) (*ReconcileInnodbCluster, *fakeStatefulSetControl, client.Client) {
	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		panic(err)
	}
	if err := icv1alpha1.AddToScheme(scheme); err != nil {
		panic(err)
	}

	k8sClient := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(objs...).
		WithStatusSubresource(&icv1alpha1.InnodbCluster{}).
		Build()

	statefulSet := &fakeStatefulSetControl{}

	return &ReconcileInnodbCluster{
		client:      k8sClient,
		scheme:      scheme,
		recorder:    record.NewFakeRecorder(64),
		logger:      logr.Discard(),
		statefulSet: statefulSet,
	}, statefulSet, k8sClient
}

func newTestSyncContext(r *ReconcileInnodbCluster, instance *icv1alpha1.InnodbCluster, admin innodbutil.IClusterAdmin) *syncContext {
	return &syncContext{
		instance:  instance,
		admin:     admin,
		bag:       newPeerBag(r.client, instance),
		ctx:       context.Background(),
		reqLogger: logr.Discard(),
	}
}
