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

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
)

// ErrIncompatibleVersion reports a server version the running instance can
// never upgrade to. Campaigns must halt instead of retrying when they see it.
var ErrIncompatibleVersion = errors.New("incompatible server version")

// IClusterAdmin mysql innodb cluster admin interface
type IClusterAdmin interface {
	// Connections returns the connection map of all clients
	Connections() IAdminConnections

	// Close the admin connections
	Close()

	// GetMemberState returns the group replication state and role the member
	// at addr reports for itself.
	GetMemberState(ctx context.Context, addr string) (string, string, error)

	// GetClusterInfos return the ClusterInfos for all nodes
	GetClusterInfos(ctx context.Context, memberCount int) *ClusterInfos

	// GetGroupMembers returns every member the group at addr currently knows,
	// including members this admin holds no connection to.
	GetGroupMembers(ctx context.Context, addr string) ([]*ClusterNodeInfo, error)

	CreateCluster(ctx context.Context, addr, replicationUser, replicationPassword string) error

	JoinInstance(ctx context.Context, addr, replicationUser, replicationPassword string) error

	RejoinInstance(ctx context.Context, addr string) error

	RemoveInstance(ctx context.Context, addr string) error

	SetClusterPrimary(ctx context.Context, addr, memberID string) error

	CheckServerUpgradable(ctx context.Context, addr, targetVersion string) error

	EnsureGroupSeeds(ctx context.Context, addr, seeds, allowList string) error

	StopGroupReplication(ctx context.Context, addr string) error

	SetOfflineMode(ctx context.Context, addr string, enabled bool) error

	SetSlowShutdown(ctx context.Context, addr string) error

	DissolveCluster(ctx context.Context) error

	// FindHiddenInstance returns the address of the first member running with
	// offline_mode enabled, or an empty string when none is.
	FindHiddenInstance(ctx context.Context) (string, error)

	// AcquireBackupLock takes the cluster-wide backup advisory lock on addr.
	// The lock lives on the returned session and is held until
	// ReleaseBackupLock is called with it.
	AcquireBackupLock(ctx context.Context, addr string) (ISession, error)

	ReleaseBackupLock(ctx context.Context, session ISession) error

	SetClusterSetChannel(ctx context.Context, addr, sourceHost string, sourcePort int, replicationUser, replicationPassword string) error

	StartClusterSetChannel(ctx context.Context, addr string) error

	StopClusterSetChannel(ctx context.Context, addr string) error

	ResetClusterSetChannel(ctx context.Context, addr string) error

	GetClusterSetChannelState(ctx context.Context, addr string) (string, error)

	SetSyncedUserPasswords(ctx context.Context, addr string, passwords map[string]string) error

	ReloadTLS(ctx context.Context, addr string) error
}

// ClusterAdmin wraps innodb cluster admin logic
type ClusterAdmin struct {
	cnx IAdminConnections
	log logr.Logger
}

// NewClusterAdmin returns new IClusterAdmin instance
// at the same time it connects to all MySQL members thanks to the address list
func NewClusterAdmin(addrs []string, options *AdminOptions, log logr.Logger) IClusterAdmin {
	a := &ClusterAdmin{
		log: log.WithName("innodb_util"),
	}

	// perform initial connections
	a.cnx = NewAdminConnections(addrs, options, log)

	return a
}

// Connections returns the connection map of all clients
func (a *ClusterAdmin) Connections() IAdminConnections {
	return a.cnx
}

// Close used to close all possible resources instance by the ClusterAdmin
func (a *ClusterAdmin) Close() {
	a.Connections().Reset()
}

// GetMemberState returns the state and role the member at addr reports for
// itself in performance_schema.replication_group_members. A member that lost
// its own row reports OFFLINE with an UNKNOWN role.
func (a *ClusterAdmin) GetMemberState(ctx context.Context, addr string) (string, string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", fmt.Errorf("unable to split host and port from address: %s", addr)
	}

	portInt, err := strconv.Atoi(port)
	if err != nil {
		return "", "", fmt.Errorf("failed to convert port from string to int")
	}

	nodeInfo, err := a.getClusterNodeInfos(ctx, addr, host, portInt)
	if err != nil {
		return "", "", err
	}

	if nodeInfo == nil {
		return MysqlOfflineState, MysqlUnknownRole, nil
	}

	return nodeInfo.State, nodeInfo.Role, nil
}

// GetClusterInfos return the member infos for all nodes
func (a *ClusterAdmin) GetClusterInfos(ctx context.Context, memberCount int) *ClusterInfos {
	infos := NewClusterInfos()

	var (
		primaryCount int
		primaryAddr  string
	)

	for addr := range a.Connections().GetAll() {

		node, err := a.getClusterNode(ctx, addr)

		if err != nil {
			a.log.Error(err, "failed to gather innodb cluster information")
			continue
		}

		// issue if there is two or more primary node, how to handel the cluster info
		if node.Role == MysqlPrimaryRole && node.State == MysqlOnlineState {
			primaryCount++
			primaryAddr = addr
		}

		infos.Infos[addr] = node
	}

	switch {
	case primaryCount == 1:
		for addr, node := range infos.Infos {

			if node.Role == MysqlPrimaryRole {
				continue
			}

			nodeInfo, err := a.getClusterNodeInfos(ctx, primaryAddr, node.Host, node.Port)
			if err != nil {
				a.log.Error(err, "failed to gather innodb cluster information")
				continue
			}

			if nodeInfo == nil {
				infos.Infos[addr].State = MysqlMissingState
				infos.Infos[addr].Role = MysqlUnknownRole
			}
		}
	case primaryCount > 1:
		infos.Status = ClusterInfoInconsistent
		return infos
	}

	onlineNodeCount := 0
	offlineNodeCount := 0
	recoveringNodeCount := 0
	for _, node := range infos.Infos {
		switch node.State {
		case MysqlOnlineState:
			onlineNodeCount++
		case MysqlRecoveringState:
			recoveringNodeCount++
		case MysqlOfflineState:
			offlineNodeCount++
		}
	}

	quorum := (memberCount / 2) + 1

	switch {
	case onlineNodeCount == 0 && recoveringNodeCount == 0 && offlineNodeCount == memberCount:
		infos.Status = ClusterInfoUnset
	case onlineNodeCount == memberCount && recoveringNodeCount == 0 && offlineNodeCount == 0:
		infos.Status = ClusterInfoConsistent
	case (onlineNodeCount+recoveringNodeCount) >= 0 && (onlineNodeCount+recoveringNodeCount) < quorum:
		infos.Status = ClusterInfoUnavailable
	case (onlineNodeCount+recoveringNodeCount) <= memberCount && (onlineNodeCount+recoveringNodeCount) >= quorum:
		infos.Status = ClusterInfoPartial
	}

	return infos
}

// GetGroupMembers returns the full membership view of the group as seen from
// addr. Members the spec no longer lists still show up here, which is how
// scale-in targets are discovered.
func (a *ClusterAdmin) GetGroupMembers(ctx context.Context, addr string) ([]*ClusterNodeInfo, error) {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return nil, err
	}

	rows, err := c.Query(ctx, getAllGroupReplicationMembersSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query replication group members on [%s]: %v", addr, err)
	}
	defer func() { _ = rows.Close() }()

	var members []*ClusterNodeInfo
	for rows.Next() {
		member := NewDefaultClusterNodeInfo()
		if err := rows.Scan(&member.ID, &member.Host, &member.Port, &member.Role, &member.State); err != nil {
			return nil, fmt.Errorf("failed to scan group replication members on [%s]: %v", addr, err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

func (a *ClusterAdmin) getClusterNodeInfos(ctx context.Context, addr, host string, port int) (*ClusterNodeInfo, error) {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return nil, err
	}

	nodeInfo := NewDefaultClusterNodeInfo()
	nodeInfo.Host = host
	nodeInfo.Port = port

	if rows, err := c.Query(ctx, getGroupReplicationMembersSQL, host, port); err != nil {
		return nil, fmt.Errorf("failed to query replication group member (host=%s, port=%d) on [%s]: %v", host, port, addr, err)
	} else {
		defer func() { _ = rows.Close() }()

		if !rows.Next() {
			a.log.Info(fmt.Sprintf("no row (host=%s, port=%d) found in performance_schema.replication_group_members on [%s]", host, port, addr))

			return nil, nil
		} else {

			if err = rows.Scan(&nodeInfo.ID, &nodeInfo.Role, &nodeInfo.State); err != nil {
				return nil, fmt.Errorf("failed to scan group replication members on [%s]: %v", addr, err)
			}

		}
	}

	return nodeInfo, nil
}

func (a *ClusterAdmin) getClusterNode(ctx context.Context, addr string) (*ClusterNode, error) {

	c, err := a.cnx.Get(addr)
	if err != nil {
		return nil, err
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to split host and port from address: %s", addr)
	}

	portInt, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("failed to convert port from string to int")
	}

	node := NewDefaultClusterNode()
	node.Host = host
	node.Port = portInt

	nodeInfo, err := a.getClusterNodeInfos(ctx, addr, host, portInt)
	if err != nil {
		return node, err
	}

	if nodeInfo != nil {
		node.ClusterNodeInfo = nodeInfo
	}

	var flag string

	if err = c.QueryRow(ctx, &flag, getReadOnlySQL); err != nil {
		return nil, fmt.Errorf("failed to get 'read_only' variables on [%s]: %v", addr, err)
	} else {
		switch flag {
		case "1":
			node.ReadOnly = true
		case "0":
			node.ReadOnly = false
		}
	}

	if err = c.QueryRow(ctx, &flag, getSuperReadOnlySQL); err != nil {
		return nil, fmt.Errorf("failed to get 'super_read_only' variables on [%s]: %v", addr, err)
	} else {
		switch flag {
		case "1":
			node.SuperReadOnly = true
		case "0":
			node.SuperReadOnly = false
		}
	}

	if err = c.QueryRow(ctx, &flag, getOfflineModeSQL); err != nil {
		return nil, fmt.Errorf("failed to get 'offline_mode' variables on [%s]: %v", addr, err)
	} else {
		switch flag {
		case "1":
			node.OfflineMode = true
		case "0":
			node.OfflineMode = false
		}
	}

	if err = c.QueryRow(ctx, &node.GtidExecuted, getGtidExecutedSQL); err != nil {
		return node, fmt.Errorf("failed to execute 'SELECT @@gtid_executed' on [%s]: %v ", addr, err)
	}

	if err = c.QueryRow(ctx, &node.Version, getVersionSql); err != nil {
		return node, fmt.Errorf("failed to execute 'SELECT VERSION()' on [%s]: %v ", addr, err)
	}

	return node, nil
}

func (a *ClusterAdmin) EnsureGroupSeeds(ctx context.Context, addr, seeds, allowList string) error {

	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	var currentSeeds string
	if err = c.QueryRow(ctx, &currentSeeds, getGroupReplicationSeeds); err != nil {
		return fmt.Errorf("failed to execute 'SELECT @@group_replication_group_seeds' on '%s', %v", addr, err)
	}

	if currentSeeds != seeds {
		if _, err = c.Exec(ctx, setGroupReplicationSeeds, seeds); err != nil {
			return fmt.Errorf("failed to set 'group_replication_group_seeds=%s' on '%s', %v", seeds, addr, err)
		}
	}

	var currentAllowList string
	if err = c.QueryRow(ctx, &currentAllowList, getGroupReplicationAllowList); err != nil {
		return fmt.Errorf("failed to execute 'SELECT @@group_replication_ip_allowlist' on '%s', %v", addr, err)
	}

	if currentAllowList != allowList {
		if _, err = c.Exec(ctx, setGroupReplicationAllowList, allowList); err != nil {
			return fmt.Errorf("failed to set 'group_replication_ip_allowlist=%s' on '%s', %v", allowList, addr, err)
		}
	}

	return nil
}

// CreateCluster bootstraps a fresh group on addr. The instance becomes the
// single online primary; other members join afterwards through JoinInstance.
func (a *ClusterAdmin) CreateCluster(ctx context.Context, addr, replicationUser, replicationPassword string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if err := a.StopGroupReplication(ctx, addr); err != nil {
		return err
	}

	if _, err := c.Exec(ctx, setGroupReplicationSQL, replicationUser, replicationPassword); err != nil {
		return fmt.Errorf("failed to execute 'CHANGE REPLICATION SOURCE TO...' on [%s]: %v", addr, err)
	}

	if _, err := c.Exec(ctx, setGroupReplicationBootStrapON); err != nil {
		return fmt.Errorf("failed to set 'group_replication_bootstrap_group=ON' on [%s]: %v", addr, err)
	}

	if err := a.StartGroupReplication(ctx, addr); err != nil {
		return err
	}

	if _, err := c.Exec(ctx, setGroupReplicationBootStrapOFF); err != nil {
		return fmt.Errorf("failed to set 'group_replication_bootstrap_group=OFF' on [%s]: %v", addr, err)
	}

	return nil
}

// JoinInstance adds the instance at addr to an already bootstrapped group.
func (a *ClusterAdmin) JoinInstance(ctx context.Context, addr, replicationUser, replicationPassword string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if _, err := c.Exec(ctx, setGroupReplicationSQL, replicationUser, replicationPassword); err != nil {
		return fmt.Errorf("failed to execute 'CHANGE REPLICATION SOURCE TO...' on [%s]: %v", addr, err)
	}

	if err := a.StartGroupReplication(ctx, addr); err != nil {
		return err
	}

	return nil
}

// RejoinInstance restarts group replication on a member whose recovery
// channel is already configured.
func (a *ClusterAdmin) RejoinInstance(ctx context.Context, addr string) error {
	return a.StartGroupReplication(ctx, addr)
}

// RemoveInstance takes the member at addr out of the group and drops its
// recovery channel configuration.
func (a *ClusterAdmin) RemoveInstance(ctx context.Context, addr string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if err := a.StopGroupReplication(ctx, addr); err != nil {
		return err
	}

	if _, err := c.Exec(ctx, resetRecoveryChannelSQL); err != nil {
		return fmt.Errorf("failed to execute 'RESET REPLICA ALL FOR CHANNEL...' on [%s]: %v", addr, err)
	}

	return nil
}

// SetClusterPrimary promotes the member identified by memberID. The statement
// runs on addr, which must be an online member.
func (a *ClusterAdmin) SetClusterPrimary(ctx context.Context, addr, memberID string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	var out string
	if err := c.QueryRow(ctx, &out, setAsPrimarySQL, memberID); err != nil {
		return fmt.Errorf("failed to execute 'group_replication_set_as_primary(%s)' on [%s]: %v", memberID, addr, err)
	}

	return nil
}

// CheckServerUpgradable verifies the server at addr can move to
// targetVersion. Downgrades and major-version jumps larger than one are
// rejected with ErrIncompatibleVersion.
func (a *ClusterAdmin) CheckServerUpgradable(ctx context.Context, addr, targetVersion string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	var currentVersion string
	if err = c.QueryRow(ctx, &currentVersion, getVersionSql); err != nil {
		return fmt.Errorf("failed to execute 'SELECT VERSION()' on [%s]: %v ", addr, err)
	}

	current, err := parseServerVersion(currentVersion)
	if err != nil {
		return fmt.Errorf("failed to parse server version %q on [%s]: %v", currentVersion, addr, err)
	}

	target, err := parseServerVersion(targetVersion)
	if err != nil {
		return fmt.Errorf("failed to parse target version %q: %v", targetVersion, err)
	}

	switch {
	case target.less(current):
		return fmt.Errorf("%w: downgrade from %s to %s", ErrIncompatibleVersion, currentVersion, targetVersion)
	case target.major-current.major > 1:
		return fmt.Errorf("%w: cannot skip major versions from %s to %s", ErrIncompatibleVersion, currentVersion, targetVersion)
	}

	return nil
}

// StartGroupReplication start group replication
func (a *ClusterAdmin) StartGroupReplication(ctx context.Context, addr string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if _, err := c.Exec(ctx, startGroupReplicationSQL); err != nil {
		return fmt.Errorf("failed to execute 'START GROUP_REPLICATION' on [%s]: %v", addr, err)
	}

	return nil
}

// StopGroupReplication stop group replication
func (a *ClusterAdmin) StopGroupReplication(ctx context.Context, addr string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if _, err := c.Exec(ctx, stopGroupReplicationSQL); err != nil {
		return fmt.Errorf("failed to execute 'STOP GROUP_REPLICATION' on [%s]: %v", addr, err)
	}

	return nil
}

// SetOfflineMode toggles offline_mode on addr. An offline member keeps its
// data but refuses regular client connections, which takes it out of routing.
func (a *ClusterAdmin) SetOfflineMode(ctx context.Context, addr string, enabled bool) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if enabled {
		if _, err := c.Exec(ctx, setOfflineModeSQL, "ON"); err != nil {
			return fmt.Errorf("failed to set 'OFFLINE_MODE=ON' on [%s]: %v", addr, err)
		}
	} else {
		if _, err := c.Exec(ctx, setOfflineModeSQL, "OFF"); err != nil {
			return fmt.Errorf("failed to set 'OFFLINE_MODE=OFF' on [%s]: %v", addr, err)
		}
	}

	return nil
}

// SetSlowShutdown forces a full purge and change-buffer merge on shutdown so
// the datadir is clean before a version swap.
func (a *ClusterAdmin) SetSlowShutdown(ctx context.Context, addr string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if _, err := c.Exec(ctx, setSlowShutdownSQL); err != nil {
		return fmt.Errorf("failed to set 'innodb_fast_shutdown=0' on [%s]: %v", addr, err)
	}

	return nil
}

// DissolveCluster stops group replication on every reachable member.
func (a *ClusterAdmin) DissolveCluster(ctx context.Context) error {
	var errs []error
	for addr := range a.Connections().GetAll() {
		if err := a.StopGroupReplication(ctx, addr); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// FindHiddenInstance scans every member for offline_mode. Unlike the info
// gathering paths a query failure is returned instead of skipped, a hidden
// member must never go unnoticed.
func (a *ClusterAdmin) FindHiddenInstance(ctx context.Context) (string, error) {
	for addr, c := range a.Connections().GetAll() {
		var flag string
		if err := c.QueryRow(ctx, &flag, getOfflineModeSQL); err != nil {
			return "", fmt.Errorf("failed to get 'offline_mode' variables on [%s]: %v", addr, err)
		}

		if flag == "1" {
			return addr, nil
		}
	}

	return "", nil
}

// AcquireBackupLock takes the backup advisory lock on addr without waiting.
// The lock is scoped to the returned session and survives until
// ReleaseBackupLock closes it.
func (a *ClusterAdmin) AcquireBackupLock(ctx context.Context, addr string) (ISession, error) {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return nil, err
	}

	session, err := c.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session on [%s]: %v", addr, err)
	}

	var acquired string
	if err := session.QueryRow(ctx, &acquired, acquireBackupLockSQL); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("failed to execute \"GET_LOCK('innodb_cluster_backup', 0)\" on [%s]: %v", addr, err)
	}

	if acquired != "1" {
		_ = session.Close()
		return nil, fmt.Errorf("backup lock already held on [%s]", addr)
	}

	return session, nil
}

// ReleaseBackupLock drops the backup advisory lock and closes the holding
// session.
func (a *ClusterAdmin) ReleaseBackupLock(ctx context.Context, session ISession) error {
	defer func() { _ = session.Close() }()

	var released string
	if err := session.QueryRow(ctx, &released, releaseBackupLockSQL); err != nil {
		return fmt.Errorf("failed to execute \"RELEASE_LOCK('innodb_cluster_backup')\": %v", err)
	}

	return nil
}

type serverVersion struct {
	major int
	minor int
	patch int
}

func (v serverVersion) less(other serverVersion) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	return v.patch < other.patch
}

// SameServerVersion reports whether two version strings name the same server
// release, ignoring build suffixes. Unparseable strings never match.
func SameServerVersion(a, b string) bool {
	va, err := parseServerVersion(a)
	if err != nil {
		return false
	}

	vb, err := parseServerVersion(b)
	if err != nil {
		return false
	}

	return va == vb
}

// parseServerVersion parses a MySQL version string, tolerating build
// suffixes such as "8.0.34-debug".
func parseServerVersion(version string) (serverVersion, error) {
	if idx := strings.IndexAny(version, "-+"); idx >= 0 {
		version = version[:idx]
	}

	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return serverVersion{}, fmt.Errorf("version %q is not in major.minor[.patch] form", version)
	}

	var (
		v   serverVersion
		err error
	)

	if v.major, err = strconv.Atoi(parts[0]); err != nil {
		return serverVersion{}, fmt.Errorf("invalid major version in %q: %v", version, err)
	}

	if v.minor, err = strconv.Atoi(parts[1]); err != nil {
		return serverVersion{}, fmt.Errorf("invalid minor version in %q: %v", version, err)
	}

	if len(parts) > 2 {
		if v.patch, err = strconv.Atoi(parts[2]); err != nil {
			return serverVersion{}, fmt.Errorf("invalid patch version in %q: %v", version, err)
		}
	}

	return v, nil
}
