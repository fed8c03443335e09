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
	"strings"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
)

const (
	// DefaultMysqlPort define the default MySQL Port
	DefaultMysqlPort = 3306
)

const (
	// ClusterInfoUnset status of the cluster info: no data set
	ClusterInfoUnset = "Unset"

	// ClusterInfoInconsistent status of the cluster info: nodesinfos is not consistent between nodes
	ClusterInfoInconsistent = "Inconsistent"

	// ClusterInfoConsistent status of the cluster info: nodeinfos is complete and consistent between nodes
	ClusterInfoConsistent = "Consistent"

	// ClusterInfoPartial status of the cluster info: data is not complete (some nodes didn't respond) but cluster is avaiable
	ClusterInfoPartial = "Partial"

	// ClusterInfoUnavailable status of the cluster info: data is not complete (some nodes didn't respond) but cluster is unavailable
	ClusterInfoUnavailable = "Unavailable"
)

const (
	// MysqlPrimaryRole mysql role primary
	MysqlPrimaryRole = "PRIMARY"
	// MysqlSecondaryRole mysql role secondary
	MysqlSecondaryRole = "SECONDARY"
	// MysqlUnknownRole mysql role unknown
	MysqlUnknownRole = "UNKNOWN"
)

const (
	MysqlOnlineState      = "ONLINE"
	MysqlOfflineState     = "OFFLINE"
	MysqlUnreachableState = "UNREACHABLE"
	MysqlRecoveringState  = "RECOVERING"
	MysqlErrorState       = "ERROR"
	MysqlMissingState     = "MISSING"
)

// ClusterInfos represents the node infos for all nodes of the cluster
type ClusterInfos struct {
	Infos  map[string]*ClusterNode
	Status string
}

type ClusterNodeInfo struct {
	ID    string
	Host  string
	Port  int
	Role  string
	State string
}

type ClusterNode struct {
	*ClusterNodeInfo
	ReadOnly      bool
	SuperReadOnly bool
	OfflineMode   bool
	GtidExecuted  string
	Version       string
}

// NewClusterInfos returns an instance of ClusterInfos
func NewClusterInfos() *ClusterInfos {
	return &ClusterInfos{
		Infos:  make(map[string]*ClusterNode),
		Status: ClusterInfoUnset,
	}
}

// NewDefaultClusterNodeInfo builds and returns new default ClusterNodeInfo instance
func NewDefaultClusterNodeInfo() *ClusterNodeInfo {
	return &ClusterNodeInfo{
		Port:  DefaultMysqlPort,
		Role:  MysqlUnknownRole,
		State: MysqlOfflineState,
	}
}

// NewDefaultClusterNode builds and returns new defaultNode instance
func NewDefaultClusterNode() *ClusterNode {
	return &ClusterNode{
		ClusterNodeInfo: NewDefaultClusterNodeInfo(),
	}
}

// compareGTID compares two GTID strings
func compareGTID(gtid1, gtid2 string) bool {
	gtid1Parts := strings.Split(gtid1, "-")
	gtid2Parts := strings.Split(gtid2, "-")

	for i := 0; i < len(gtid1Parts) && i < len(gtid2Parts); i++ {
		if gtid1Parts[i] > gtid2Parts[i] {
			return true
		} else if gtid1Parts[i] < gtid2Parts[i] {
			return false
		}
	}

	// If the preceding parts are identical, the longer GTID is considered greater
	if len(gtid1Parts) > len(gtid2Parts) {
		return true
	} else if len(gtid1Parts) < len(gtid2Parts) {
		return false
	}

	return false
}

// GetRole return the InnoDB Cluster member role
func (n *ClusterNode) GetRole() icv1alpha1.InnodbClusterMemberRole {
	switch n.Role {
	case MysqlPrimaryRole:
		return icv1alpha1.InnodbClusterMemberRolePrimary
	case MysqlSecondaryRole:
		return icv1alpha1.InnodbClusterMemberRoleSecondary
	}

	return icv1alpha1.InnodbClusterMemberRoleNone
}

// GetPrimary returns the address of the online primary member, or an empty
// string when the cluster has none.
func (c *ClusterInfos) GetPrimary() string {
	for addr, node := range c.Infos {
		if node.Role == MysqlPrimaryRole && node.State == MysqlOnlineState {
			return addr
		}
	}

	return ""
}

func (c *ClusterInfos) ElectPrimary() string {
	var primaryAddr string
	var maxGTID string

	for addr, node := range c.Infos {
		// Skip nodes without GTID
		if node.GtidExecuted == "" {
			continue
		}

		// Update the candidate node (primaryAddr) with the largest GTID among all nodes
		if maxGTID == "" || compareGTID(node.GtidExecuted, maxGTID) {
			maxGTID = node.GtidExecuted
			primaryAddr = addr
		}

	}
	return primaryAddr
}
