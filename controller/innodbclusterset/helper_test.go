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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
)

func TestPickDonorPrefersOnlineSecondary(t *testing.T) {
	infos := onlineInfos(innodbutil.MysqlPrimaryRole, innodbutil.MysqlSecondaryRole, innodbutil.MysqlSecondaryRole)

	assert.Equal(t, testAddr(1), pickDonor(infos, testAddr(0)))
}

func TestPickDonorSkipsUnhealthySecondaries(t *testing.T) {
	infos := onlineInfos(innodbutil.MysqlPrimaryRole, innodbutil.MysqlSecondaryRole, innodbutil.MysqlSecondaryRole)
	infos.Infos[testAddr(1)].State = innodbutil.MysqlRecoveringState

	assert.Equal(t, testAddr(2), pickDonor(infos, testAddr(0)))
}

func TestPickDonorFallsBackToPrimary(t *testing.T) {
	infos := onlineInfos(innodbutil.MysqlPrimaryRole)

	assert.Equal(t, testAddr(0), pickDonor(infos, testAddr(0)))
}

func TestSplitAddress(t *testing.T) {
	host, port, err := splitAddress("mysql-0.mysql-headless.default.svc.cluster.local:3306")
	require.NoError(t, err)
	assert.Equal(t, "mysql-0.mysql-headless.default.svc.cluster.local", host)
	assert.Equal(t, 3306, port)

	_, _, err = splitAddress("no-port-here")
	assert.Error(t, err)

	_, _, err = splitAddress("host:notaport")
	assert.Error(t, err)
}
