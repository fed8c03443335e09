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
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/databag"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/utils"
)

// fakeClusterAdmin scripts the engine view for pairing tests and records
// every mutating call in order. Methods the tests never reach fall through
// to the embedded nil interface and panic loudly.
type fakeClusterAdmin struct {
	innodbutil.IClusterAdmin

	infos        *innodbutil.ClusterInfos
	groupMembers []*innodbutil.ClusterNodeInfo
	groupErr     error

	channelState string
	channelErr   error

	dissolveErr error
	createErr   error

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
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	return f.groupMembers, nil
}

func (f *fakeClusterAdmin) GetClusterSetChannelState(_ context.Context, _ string) (string, error) {
	if f.channelErr != nil {
		return "", f.channelErr
	}
	return f.channelState, nil
}

func (f *fakeClusterAdmin) SetClusterSetChannel(_ context.Context, addr, sourceHost string, sourcePort int, _, _ string) error {
	f.record("SetClusterSetChannel(%s,%s:%d)", addr, sourceHost, sourcePort)
	return nil
}

func (f *fakeClusterAdmin) StartClusterSetChannel(_ context.Context, addr string) error {
	f.record("StartClusterSetChannel(%s)", addr)
	return nil
}

func (f *fakeClusterAdmin) StopClusterSetChannel(_ context.Context, addr string) error {
	f.record("StopClusterSetChannel(%s)", addr)
	return nil
}

func (f *fakeClusterAdmin) ResetClusterSetChannel(_ context.Context, addr string) error {
	f.record("ResetClusterSetChannel(%s)", addr)
	return nil
}

func (f *fakeClusterAdmin) SetSyncedUserPasswords(_ context.Context, addr string, passwords map[string]string) error {
	f.record("SetSyncedUserPasswords(%s,%d users)", addr, len(passwords))
	return nil
}

func (f *fakeClusterAdmin) DissolveCluster(_ context.Context) error {
	if f.dissolveErr != nil {
		return f.dissolveErr
	}
	f.record("DissolveCluster()")
	return nil
}

func (f *fakeClusterAdmin) CreateCluster(_ context.Context, addr, _, _ string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.record("CreateCluster(%s)", addr)
	return nil
}

// callsWithPrefix filters the call log down to one command.
func (f *fakeClusterAdmin) callsWithPrefix(prefix string) []string {
	var out []string
	for _, call := range f.calls {
		if strings.HasPrefix(call, prefix) {
			out = append(out, call)
		}
	}
	return out
}

const (
	testDomain   = "mysql-headless.default.svc.cluster.local"
	testBagName  = "pairing-bag"
	testEndpoint = "replica-0.replica-headless.default.svc.cluster.local:3306"
)

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
			UID:             "test-cluster-uid",
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

func newTestClusterSet(role icv1alpha1.InnodbClusterSetRole) *icv1alpha1.InnodbClusterSet {
	return &icv1alpha1.InnodbClusterSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:            "mysql-set",
			Namespace:       "default",
			UID:             "test-set-uid",
			ResourceVersion: "1",
		},
		Spec: icv1alpha1.InnodbClusterSetSpec{
			Role:            role,
			ClusterName:     "mysql",
			RelationBagName: testBagName,
			Secret: icv1alpha1.InnodbClusterSetSecret{
				Name:         "mysql-secret",
				ClusterAdmin: "clusterAdmin",
				ServerConfig: "serverConfig",
			},
		},
	}
}

// onlineNode builds a probed member entry in the ONLINE state.
func onlineNode(ordinal int, role string) *innodbutil.ClusterNode {
	return &innodbutil.ClusterNode{
		ClusterNodeInfo: &innodbutil.ClusterNodeInfo{
			ID:    fmt.Sprintf("uuid-%d", ordinal),
			Host:  testHost(ordinal),
			Port:  3306,
			Role:  role,
			State: innodbutil.MysqlOnlineState,
		},
	}
}

// groupMember builds a group view entry for the replica cluster probe.
func groupMember(id, state string) *innodbutil.ClusterNodeInfo {
	return &innodbutil.ClusterNodeInfo{
		ID:    id,
		Host:  "replica-0.replica-headless.default.svc.cluster.local",
		Port:  3306,
		State: state,
	}
}

// setupTestAESKey wires the process-wide encryption key the secret helpers
// decrypt with.
func setupTestAESKey(t *testing.T) {
	t.Helper()

	require.NoError(t, os.Setenv(utils.AESKeyEnvVar, "bec62eddcb834ece8488c88263a5f248"))
	require.NoError(t, utils.ValidateAndSetAESKey())
}

func encryptValue(t *testing.T, plaintext string) []byte {
	t.Helper()

	encrypted, err := utils.AES_CTR_Encrypt([]byte(plaintext))
	require.NoError(t, err)
	return []byte(encrypted)
}

func newTestSecret(t *testing.T, name string, values map[string]string) *corev1.Secret {
	t.Helper()

	data := map[string][]byte{}
	for key, value := range values {
		data[key] = encryptValue(t, value)
	}

	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:            name,
			Namespace:       "default",
			ResourceVersion: "1",
		},
		Data: data,
	}
}

func newTestReconciler(objs ...client.Object) (*ReconcileInnodbClusterSet, client.Client) {
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
		WithStatusSubresource(&icv1alpha1.InnodbClusterSet{}).
		Build()

	return &ReconcileInnodbClusterSet{
		client:   k8sClient,
		scheme:   scheme,
		recorder: record.NewFakeRecorder(64),
		logger:   logr.Discard(),
	}, k8sClient
}

func newTestSyncContext(r *ReconcileInnodbClusterSet, instance *icv1alpha1.InnodbClusterSet, cluster *icv1alpha1.InnodbCluster, admin innodbutil.IClusterAdmin) *syncContext {
	return &syncContext{
		instance:  instance,
		cluster:   cluster,
		admin:     admin,
		bag:       newRelationBag(r.client, instance),
		peerBag:   newLocalPeerBag(r.client, cluster),
		ctx:       context.Background(),
		reqLogger: logr.Discard(),
	}
}

// remoteBag opens the pairing bag as the other side so tests can script what
// the peer published.
func remoteBag(r *ReconcileInnodbClusterSet, instance *icv1alpha1.InnodbClusterSet) *databag.RelationBag {
	side := icv1alpha1.InnodbClusterSetRolePrimary
	if instance.Spec.Role == icv1alpha1.InnodbClusterSetRolePrimary {
		side = icv1alpha1.InnodbClusterSetRoleReplica
	}

	return databag.NewRelationBag(r.client, instance.Namespace, instance.Spec.RelationBagName, side)
}
