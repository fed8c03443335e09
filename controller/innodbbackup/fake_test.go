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

package innodbbackup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/objstore"
	"github.com/upmio/innodb-cluster-operator/pkg/utils"
)

// fakeClusterAdmin scripts the engine view for backup tests and records
// every mutating call in order. Methods the tests never reach fall through
// to the embedded nil interface and panic loudly.
type fakeClusterAdmin struct {
	innodbutil.IClusterAdmin

	infos *innodbutil.ClusterInfos

	hiddenAddr string
	hiddenErr  error

	lockErr    error
	releaseErr error

	// offlineDisableErr fails only the cleanup direction so tests can prove
	// cleanup failures surface without breaking the stream itself
	offlineEnableErr  error
	offlineDisableErr error

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

func (f *fakeClusterAdmin) FindHiddenInstance(_ context.Context) (string, error) {
	if f.hiddenErr != nil {
		return "", f.hiddenErr
	}
	return f.hiddenAddr, nil
}

func (f *fakeClusterAdmin) AcquireBackupLock(_ context.Context, addr string) (innodbutil.ISession, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	f.record("AcquireBackupLock(%s)", addr)
	return &fakeSession{}, nil
}

func (f *fakeClusterAdmin) ReleaseBackupLock(_ context.Context, _ innodbutil.ISession) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.record("ReleaseBackupLock()")
	return nil
}

func (f *fakeClusterAdmin) SetOfflineMode(_ context.Context, addr string, enabled bool) error {
	if enabled && f.offlineEnableErr != nil {
		return f.offlineEnableErr
	}
	if !enabled && f.offlineDisableErr != nil {
		return f.offlineDisableErr
	}
	f.record("SetOfflineMode(%s,%v)", addr, enabled)
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

// fakeSession stands in for the pinned connection holding the advisory lock.
type fakeSession struct {
	closed bool
}

func (s *fakeSession) Exec(_ context.Context, _ string, _ ...any) (sql.Result, error) {
	return nil, nil
}

func (s *fakeSession) QueryRow(_ context.Context, _ interface{}, _ string, _ ...any) error {
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// fakeExec captures the scripts the controller would run inside pods. onExec
// stands in for xbcloud side effects such as writing the checksum object.
type fakeExec struct {
	stdout string
	stderr string
	err    error

	onExec func()

	pods    []string
	scripts []string
}

func (f *fakeExec) ExecCommandInContainer(pod *corev1.Pod, _ string, cmd ...string) (string, string, error) {
	return f.run(pod, cmd...)
}

func (f *fakeExec) ExecCommandInContainerWithTimeout(pod *corev1.Pod, _ string, _ time.Duration, cmd ...string) (string, string, error) {
	return f.run(pod, cmd...)
}

func (f *fakeExec) run(pod *corev1.Pod, cmd ...string) (string, string, error) {
	f.pods = append(f.pods, pod.Name)
	f.scripts = append(f.scripts, strings.Join(cmd, " "))
	if f.onExec != nil {
		f.onExec()
	}
	return f.stdout, f.stderr, f.err
}

// fakeS3 is an in memory object store.
type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(params.Key)]; !ok {
		return nil, &types.NotFound{}
	}

	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)

	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	contents := make([]types.Object, 0, len(keys))
	for _, key := range keys {
		contents = append(contents, types.Object{Key: aws.String(key)})
	}

	return &s3.ListObjectsV2Output{
		Contents:    contents,
		IsTruncated: aws.Bool(false),
	}, nil
}

// completeUpload stands in for xbcloud finishing: it writes the checksum
// object for every backup announced so far.
func completeUpload(api *fakeS3) func() {
	return func() {
		for key := range api.objects {
			if strings.HasSuffix(key, objstore.MetadataSuffix) {
				api.objects[strings.TrimSuffix(key, objstore.MetadataSuffix)+objstore.ChecksumSuffix] = []byte("digest")
			}
		}
	}
}

const (
	testDomain = "mysql-headless.default.svc.cluster.local"
	testBucket = "innodb-backups"
	testPrefix = "prod/mysql"
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

func newTestBackup(state icv1alpha1.BackupState) *icv1alpha1.InnodbBackup {
	return &icv1alpha1.InnodbBackup{
		ObjectMeta: metav1.ObjectMeta{
			Name:            "mysql-backup",
			Namespace:       "default",
			UID:             "test-backup-uid",
			ResourceVersion: "1",
		},
		Spec: icv1alpha1.InnodbBackupSpec{
			ClusterName: "mysql",
			Storage: icv1alpha1.BackupStorage{
				S3: &icv1alpha1.S3Storage{
					Bucket:     testBucket,
					Endpoint:   "http://minio.default.svc.cluster.local:9000",
					Region:     "us-east-1",
					Path:       testPrefix,
					SecretName: "backup-storage-secret",
				},
			},
		},
		Status: icv1alpha1.InnodbBackupStatus{
			State: state,
		},
	}
}

func testPod(name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:            name,
			Namespace:       "default",
			ResourceVersion: "1",
		},
	}
}

// memberNode builds a probed member entry for the given ordinal.
func memberNode(ordinal int, role, state string) *innodbutil.ClusterNode {
	return &innodbutil.ClusterNode{
		ClusterNodeInfo: &innodbutil.ClusterNodeInfo{
			ID:    fmt.Sprintf("uuid-%d", ordinal),
			Host:  testHost(ordinal),
			Port:  3306,
			Role:  role,
			State: state,
		},
	}
}

// clusterView assembles the probe result the fake admin hands out.
func clusterView(nodes ...*innodbutil.ClusterNode) *innodbutil.ClusterInfos {
	infos := innodbutil.NewClusterInfos()
	for _, node := range nodes {
		infos.Infos[fmt.Sprintf("%s:%d", node.Host, node.Port)] = node
	}
	infos.Status = innodbutil.ClusterInfoConsistent

	return infos
}

// healthyView is the common three member layout: ordinal 0 primary, the rest
// online secondaries.
func healthyView(memberCount int) *innodbutil.ClusterInfos {
	nodes := make([]*innodbutil.ClusterNode, 0, memberCount)
	nodes = append(nodes, memberNode(0, innodbutil.MysqlPrimaryRole, innodbutil.MysqlOnlineState))
	for i := 1; i < memberCount; i++ {
		nodes = append(nodes, memberNode(i, innodbutil.MysqlSecondaryRole, innodbutil.MysqlOnlineState))
	}

	return clusterView(nodes...)
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

func newTestReconciler(fx *fakeExec, objs ...client.Object) (*ReconcileInnodbBackup, client.Client) {
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
		WithStatusSubresource(&icv1alpha1.InnodbBackup{}).
		Build()

	if fx == nil {
		fx = &fakeExec{}
	}

	return &ReconcileInnodbBackup{
		client:   k8sClient,
		scheme:   scheme,
		recorder: record.NewFakeRecorder(64),
		logger:   logr.Discard(),
		exec:     fx,
	}, k8sClient
}

// newTestStore opens a store over the in memory object store using the same
// bucket and prefix the test backups carry.
func newTestStore(api *fakeS3) (*objstore.Store, objstore.Config) {
	cfg := objstore.Config{
		Bucket:    testBucket,
		Endpoint:  "http://minio.default.svc.cluster.local:9000",
		Region:    "us-east-1",
		Path:      testPrefix,
		AccessKey: "test-access-key",
		SecretKey: "test-secret-key",
	}

	return objstore.NewWithAPI(api, cfg, logr.Discard()), cfg
}

func newTestSyncContext(r *ReconcileInnodbBackup, instance *icv1alpha1.InnodbBackup, cluster *icv1alpha1.InnodbCluster, admin innodbutil.IClusterAdmin, api *fakeS3) *syncContext {
	store, cfg := newTestStore(api)

	return &syncContext{
		instance:  instance,
		cluster:   cluster,
		admin:     admin,
		store:     store,
		storeCfg:  cfg,
		ctx:       context.Background(),
		reqLogger: logr.Discard(),
	}
}

// objectKey resolves a store-relative name the way the store does.
func objectKey(name string) string {
	return testPrefix + "/" + name
}
