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

package innodbutil

const (
	getGroupReplicationMembersSQL    = `SELECT MEMBER_ID, MEMBER_ROLE, MEMBER_STATE FROM performance_schema.replication_group_members WHERE MEMBER_HOST=? and MEMBER_PORT=?`
	getAllGroupReplicationMembersSQL = `SELECT MEMBER_ID, MEMBER_HOST, MEMBER_PORT, MEMBER_ROLE, MEMBER_STATE FROM performance_schema.replication_group_members`
	getReadOnlySQL                   = `SELECT @@READ_ONLY`
	getSuperReadOnlySQL              = `SELECT @@SUPER_READ_ONLY`
	getOfflineModeSQL                = `SELECT @@OFFLINE_MODE`
	getGtidExecutedSQL               = `SELECT @@gtid_executed`
	getVersionSql                    = `SELECT VERSION();`

	getGroupReplicationSeeds     = `SELECT @@group_replication_group_seeds`
	setGroupReplicationSeeds     = `SET GLOBAL group_replication_group_seeds=?`
	getGroupReplicationAllowList = `SELECT @@group_replication_ip_allowlist`
	setGroupReplicationAllowList = `SET GLOBAL group_replication_ip_allowlist=?`

	setReadOnlySQL      = `SET GLOBAL READ_ONLY = ?`
	setSuperReadOnlySQL = `SET GLOBAL SUPER_READ_ONLY = ?`
	setOfflineModeSQL   = `SET GLOBAL OFFLINE_MODE = ?`
	setSlowShutdownSQL  = `SET GLOBAL innodb_fast_shutdown = 0`

	setGroupReplicationBootStrapON  = `SET GLOBAL group_replication_bootstrap_group=ON`
	setGroupReplicationBootStrapOFF = `SET GLOBAL group_replication_bootstrap_group=OFF`

	startGroupReplicationSQL = `START GROUP_REPLICATION`
	stopGroupReplicationSQL  = `STOP GROUP_REPLICATION`
	setGroupReplicationSQL   = `CHANGE REPLICATION SOURCE TO
    SOURCE_USER = ?,
    SOURCE_PASSWORD = ? FOR CHANNEL 'group_replication_recovery'`
	resetRecoveryChannelSQL = `RESET REPLICA ALL FOR CHANNEL 'group_replication_recovery'`

	setAsPrimarySQL = `SELECT group_replication_set_as_primary(?)`

	setClusterSetChannelSQL = `CHANGE REPLICATION SOURCE TO
    SOURCE_HOST = ?,
    SOURCE_PORT = ?,
    SOURCE_USER = ?,
    SOURCE_PASSWORD = ?,
    SOURCE_AUTO_POSITION = 1 FOR CHANNEL 'clusterset_replication'`
	startClusterSetChannelSQL    = `START REPLICA FOR CHANNEL 'clusterset_replication'`
	stopClusterSetChannelSQL     = `STOP REPLICA FOR CHANNEL 'clusterset_replication'`
	resetClusterSetChannelSQL    = `RESET REPLICA ALL FOR CHANNEL 'clusterset_replication'`
	getClusterSetChannelStateSQL = `SELECT SERVICE_STATE FROM performance_schema.replication_connection_status WHERE CHANNEL_NAME='clusterset_replication'`

	alterUserPasswordSQL = `ALTER USER ?@'%' IDENTIFIED BY ?`

	reloadTLSSQL = `ALTER INSTANCE RELOAD TLS`

	acquireBackupLockSQL = `SELECT GET_LOCK('innodb_cluster_backup', 0)`
	releaseBackupLockSQL = `SELECT RELEASE_LOCK('innodb_cluster_backup')`
)
