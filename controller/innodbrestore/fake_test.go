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

package innodbrestore

import (
	"context"
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

// fakeClusterAdmin scripts the engine view for restore tests and records
// every call in order. Methods the tests never reach fall through to the
// embedded nil interface and panic loudly.
type fakeClusterAdmin struct {
	innodbutil.IClusterAdmin

	createErr error

	groupMembers []*innodbutil.ClusterNodeInfo
	groupErr     error

	cnx *fakeConnections

	calls []string
}

func newFakeAdmin() *fakeClusterAdmin {
	admin := &fakeClusterAdmin{}
	admin.cnx = &fakeConnections{admin: admin}
	return admin
}

func (f *fakeClusterAdmin) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeClusterAdmin) Close() {}

func (f *fakeClusterAdmin) Connections() innodbutil.IAdminConnections {
	return f.cnx
}

func (f *fakeClusterAdmin) CreateCluster(_ context.Context, addr, replicationUser, _ string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.record("CreateCluster(%s,%s)", addr, replicationUser)
	return nil
}

func (f *fakeClusterAdmin) GetGroupMembers(_ context.Context, addr string) ([]*innodbutil.ClusterNodeInfo, error) {
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	f.record("GetGroupMembers(%s)", addr)
	return f.groupMembers, nil
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

// fakeConnections scripts the dial-and-ping the controller performs while the
// restored server replays its redo log. reconnectErrs is consumed in order,
// an exhausted queue connects.
type fakeConnections struct {
	innodbutil.IAdminConnections

	admin *fakeClusterAdmin

	reconnectErrs []error
}

func (f *fakeConnections) Reconnect(addr string) error {
	f.admin.record("Reconnect(%s)", addr)

	if len(f.reconnectErrs) == 0 {
		return nil
	}

	err := f.reconnectErrs[0]
	f.reconnectErrs = f.reconnectErrs[1:]
	return err
}

// fakeExec captures the scripts the controller would run inside pods. failOn
// fails only the scripts containing it, so one step can break while the
// recovery commands still work.
type fakeExec struct {
	stdout string
	stderr string
	err    error

	failOn  string
	failErr error

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
	script := strings.Join(cmd, " ")
	f.pods = append(f.pods, pod.Name)
	f.scripts = append(f.scripts, script)

	if f.failOn != "" && strings.Contains(script, f.failOn) {
		return f.stdout, f.stderr, f.failErr
	}

	return f.stdout, f.stderr, f.err
}

// scriptsWithSubstring filters the executed scripts down to one command.
func (f *fakeExec) scriptsWithSubstring(substring string) []string {
	var out []string
	for _, script := range f.scripts {
		if strings.Contains(script, substring) {
			out = append(out, script)
		}
	}
	return out
}

// fakeS3 is an in memory object store.
type fakeS3 struct {
	objects map[string][]byte
	listErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
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
	if f.listErr != nil {
		return nil, f.listErr
	}

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

const (
	testDomain   = "mysql-headless.default.svc.cluster.local"
	testBucket   = "innodb-backups"
	testPrefix   = "prod/mysql"
	testBackupID = "2025-08-20T04:00:00Z"
)

func testHost(ordinal int) string {
	return fmt.Sprintf("mysql-%d.%s", ordinal, testDomain)
}

func testAddr(ordinal int) string {
	return fmt.Sprintf("%s:3306", testHost(ordinal))
}

func objectKey(name string) string {
	return testPrefix + "/" + name
}

// seedBackup plants the artifacts of one backup. Finished backups carry a
// checksum, failed ones only a log.
func seedBackup(api *fakeS3, backupID, status string) {
	api.objects[objectKey(backupID+objstore.MetadataSuffix)] = []byte("cluster-name: mysql\n")

	switch status {
	case objstore.BackupFinished:
		api.objects[objectKey(backupID+objstore.ChecksumSuffix)] = []byte("digest")
		api.objects[objectKey(backupID+objstore.LogSuffix)] = []byte("log")
	case objstore.BackupFailed:
		api.objects[objectKey(backupID+objstore.LogSuffix)] = []byte("log")
	}
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

func newTestRestore(state icv1alpha1.RestoreState) *icv1alpha1.InnodbRestore {
	return &icv1alpha1.InnodbRestore{
		ObjectMeta: metav1.ObjectMeta{
			Name:            "mysql-restore",
			Namespace:       "default",
			UID:             "test-restore-uid",
			ResourceVersion: "1",
		},
		Spec: icv1alpha1.InnodbRestoreSpec{
			ClusterName: "mysql",
			BackupID:    testBackupID,
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
		Status: icv1alpha1.InnodbRestoreStatus{
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

// groupMember builds one row of the group view the engine reports.
func groupMember(ordinal int, role, state string) *innodbutil.ClusterNodeInfo {
	member := innodbutil.NewDefaultClusterNodeInfo()
	member.ID = fmt.Sprintf("uuid-%d", ordinal)
	member.Host = testHost(ordinal)
	member.Port = 3306
	member.Role = role
	member.State = state
	return member
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

func newTestReconciler(fx *fakeExec, objs ...client.Object) (*ReconcileInnodbRestore, client.Client) {
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
		WithStatusSubresource(&icv1alpha1.InnodbRestore{}, &icv1alpha1.InnodbCluster{}).
		Build()

	if fx == nil {
		fx = &fakeExec{}
	}

	return &ReconcileInnodbRestore{
		client:   k8sClient,
		scheme:   scheme,
		recorder: record.NewFakeRecorder(64),
		logger:   logr.Discard(),
		exec:     fx,
	}, k8sClient
}

// newTestStore opens a store over the in memory object store using the same
// bucket and prefix the test restores carry.
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

func newTestSyncContext(r *ReconcileInnodbRestore, instance *icv1alpha1.InnodbRestore, cluster *icv1alpha1.InnodbCluster, admin innodbutil.IClusterAdmin, api *fakeS3) *syncContext {
	store, cfg := newTestStore(api)

	return &syncContext{
		instance:  instance,
		cluster:   cluster,
		admin:     admin,
		store:     store,
		storeCfg:  cfg,
		ctx:       context.TODO(),
		reqLogger: logr.Discard(),
	}
}

// shrinkServerWait makes the post-restart connection poll fit a unit test.
func shrinkServerWait(t *testing.T) {
	t.Helper()

	oldTimeout, oldInterval := serverStartTimeout, serverStartInterval
	serverStartTimeout = 30 * time.Millisecond
	serverStartInterval = 5 * time.Millisecond
	t.Cleanup(func() {
		serverStartTimeout, serverStartInterval = oldTimeout, oldInterval
	})
}
