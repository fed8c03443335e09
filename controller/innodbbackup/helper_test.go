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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
)

func TestPickBackupTargetPrefersFirstOnlineSecondary(t *testing.T) {
	cluster := newTestCluster(3)
	infos := healthyView(3)

	target, err := pickBackupTarget(cluster, infos, testAddr(0))
	require.NoError(t, err)
	assert.Equal(t, "mysql-1", target.Name)
}

func TestPickBackupTargetSkipsUnhealthySecondaries(t *testing.T) {
	cluster := newTestCluster(3)
	infos := clusterView(
		memberNode(0, innodbutil.MysqlPrimaryRole, innodbutil.MysqlOnlineState),
		memberNode(1, innodbutil.MysqlSecondaryRole, innodbutil.MysqlRecoveringState),
		memberNode(2, innodbutil.MysqlSecondaryRole, innodbutil.MysqlOnlineState),
	)

	target, err := pickBackupTarget(cluster, infos, testAddr(0))
	require.NoError(t, err)
	assert.Equal(t, "mysql-2", target.Name)
}

func TestPickBackupTargetNeverPicksThePrimary(t *testing.T) {
	cluster := newTestCluster(2)
	infos := clusterView(
		memberNode(0, innodbutil.MysqlPrimaryRole, innodbutil.MysqlOnlineState),
		memberNode(1, innodbutil.MysqlSecondaryRole, innodbutil.MysqlOfflineState),
	)

	_, err := pickBackupTarget(cluster, infos, testAddr(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no online secondary")
}

func TestPickBackupTargetSingleMember(t *testing.T) {
	cluster := newTestCluster(1)

	target, err := pickBackupTarget(cluster, healthyView(1), testAddr(0))
	require.NoError(t, err)
	assert.Equal(t, "mysql-0", target.Name)

	_, err = pickBackupTarget(cluster, clusterView(
		memberNode(0, innodbutil.MysqlPrimaryRole, innodbutil.MysqlErrorState),
	), testAddr(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot serve a backup in state [ERROR]")
}

func TestMemberStateUnknownMemberIsMissing(t *testing.T) {
	cluster := newTestCluster(2)
	infos := healthyView(1)

	assert.Equal(t, innodbutil.MysqlOnlineState, memberState(infos, cluster.Spec.Member[0]))
	assert.Equal(t, innodbutil.MysqlMissingState, memberState(infos, cluster.Spec.Member[1]))
}

func TestBackupScript(t *testing.T) {
	cluster := newTestCluster(3)
	_, cfg := newTestStore(newFakeS3())

	script := backupScript(cfg, cluster, cluster.Spec.Member[1], "backup-pw", "2025-08-25T10:00:00Z")

	// credentials for both ends of the pipe
	assert.True(t, strings.HasPrefix(script, "ACCESS_KEY_ID=test-access-key SECRET_ACCESS_KEY=test-secret-key "))
	assert.Contains(t, script, "--user=backup --password=backup-pw")

	// the stream reads from the target member and lands under the prefix
	assert.Contains(t, script, "--host="+testHost(1))
	assert.Contains(t, script, "| xbcloud put")
	assert.Contains(t, script, "--md5")
	assert.Contains(t, script, "--s3-bucket="+testBucket)
	assert.Contains(t, script, "--s3-endpoint=http://minio.default.svc.cluster.local:9000")
	assert.True(t, strings.HasSuffix(script, " "+testPrefix+"/2025-08-25T10:00:00Z"))
}
