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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// InnodbClusterSecret defines the secret information of InnodbCluster
type InnodbClusterSecret struct {
	// Name is the name of the secret resource which store authentication information for MySQL.
	Name string `json:"name"`

	// Mysql is the key of the secret, which contains the value used to connect to MySQL.
	// +kubebuilder:default:=mysql
	Mysql string `json:"mysql"`

	// ClusterAdmin is the key of the secret, which contains the value used to administer the InnoDB Cluster.
	// +kubebuilder:default:=clusterAdmin
	ClusterAdmin string `json:"clusterAdmin"`

	// ServerConfig is the key of the secret, which contains the value used to configure group replication recovery channels.
	// +kubebuilder:default:=serverConfig
	ServerConfig string `json:"serverConfig"`

	// Monitor is the key of the secret, which contains the value used by monitoring probes.
	// +kubebuilder:default:=monitor
	Monitor string `json:"monitor"`

	// Backup is the key of the secret, which contains the value used by physical backups.
	// +kubebuilder:default:=backup
	Backup string `json:"backup"`
}

// InnodbClusterSpec defines the desired state of InnodbCluster
type InnodbClusterSpec struct {

	// ClusterName is the InnoDB Cluster name registered in the group metadata.
	// +kubebuilder:validation:MaxLength=63
	ClusterName string `json:"clusterName"`

	// ClusterSetDomainName is the cluster-set domain this cluster belongs to.
	// Defaults to "<clusterName>-set" when omitted.
	// +optional
	ClusterSetDomainName string `json:"clusterSetDomainName,omitempty"`

	// StatefulSetName is the name of the StatefulSet running the MySQL member
	// pods, it must be in the same namespace as the InnodbCluster object. The
	// rolling-upgrade partition is applied to this StatefulSet.
	StatefulSetName string `json:"statefulSetName"`

	// Version is the desired MySQL server version. Changing it arms a
	// rolling-upgrade campaign once the pre-upgrade check passes.
	Version string `json:"version"`

	// Secret is the reference to the secret resource containing authentication information, it must be in the same namespace as the InnodbCluster object.
	Secret InnodbClusterSecret `json:"secret"`

	// Member is a list of nodes in the InnoDB Cluster topology, ordered by
	// StatefulSet ordinal.
	Member CommonNodes `json:"member"`

	// TLSSecret is the name of a kubernetes.io/tls secret whose key pair the
	// members serve. Rotating the secret content triggers a TLS reload on
	// every member.
	// +optional
	TLSSecret string `json:"tlsSecret,omitempty"`
}

type InnodbClusterNode struct {
	// Host indicates the host of the MySQL member.
	Host string `json:"host"`

	// Port indicates the port of the MySQL member.
	Port int `json:"port"`

	// Role represents the role of the member in the cluster (e.g., primary, secondary).
	Role InnodbClusterMemberRole `json:"role"`

	// Ready indicates whether the member is ready for reads and writes.
	Status NodeStatus `json:"status"`

	// MemberState indicates the group replication member_state of the member.
	MemberState string `json:"memberState"`

	// Version indicates the server version the member currently runs.
	Version string `json:"version"`

	// GtidExecuted indicates the gtid_executed of the member.
	GtidExecuted string `json:"gtidExecuted"`

	// ReadOnly specifies whether the member is read-only.
	ReadOnly bool `json:"readonly"`

	// OfflineMode specifies whether the member currently refuses ordinary client connections.
	OfflineMode bool `json:"offlineMode"`

	// Hidden specifies whether the member is hidden from routing, e.g. while a
	// physical backup streams from it.
	Hidden bool `json:"hidden"`
}

type InnodbClusterTopology map[string]*InnodbClusterNode

// UpgradePhase describes where a rolling-upgrade campaign stands.
type UpgradePhase string

const (
	// UpgradePhaseIdle no campaign is armed.
	UpgradePhaseIdle UpgradePhase = "Idle"
	// UpgradePhaseChecked the pre-upgrade check passed and the stack is armed.
	UpgradePhaseChecked UpgradePhase = "Checked"
	// UpgradePhaseUpgrading members are being restarted highest ordinal first.
	UpgradePhaseUpgrading UpgradePhase = "Upgrading"
	// UpgradePhaseFailed a member failed its upgrade; awaiting resume.
	UpgradePhaseFailed UpgradePhase = "Failed"
)

// UpgradeStatus reports the rolling-upgrade campaign progress.
type UpgradeStatus struct {
	// Phase is the campaign phase.
	Phase UpgradePhase `json:"phase"`

	// TargetVersion is the version the campaign upgrades to.
	// +optional
	TargetVersion string `json:"targetVersion,omitempty"`

	// PendingOrdinals lists the member ordinals not yet upgraded, highest
	// first. Mirrors the persisted upgrade stack.
	// +optional
	PendingOrdinals []int `json:"pendingOrdinals,omitempty"`
}

// InnodbClusterStatus defines the observed state of InnodbCluster
type InnodbClusterStatus struct {
	// Topology indicates the current InnoDB Cluster topology.
	Topology InnodbClusterTopology `json:"topology"`

	// ClusterStatus summarizes group health: Consistent, Partial, Inconsistent or Unavailable.
	ClusterStatus string `json:"clusterStatus"`

	// Primary is the address of the current primary member.
	Primary string `json:"primary,omitempty"`

	// ReadyMembers counts members in the ONLINE state.
	ReadyMembers int `json:"readyMembers"`

	// Ready indicates whether this InnodbCluster object is ready or not.
	Ready bool `json:"ready"`

	// Upgrade reports the rolling-upgrade campaign progress, if any.
	// +optional
	Upgrade *UpgradeStatus `json:"upgrade,omitempty"`

	// Represents a list of detailed status of the InnodbCluster object.
	// Each condition in the list provides real-time information about certain aspect of the InnodbCluster object.
	//
	// This field is crucial for administrators and developers to monitor and respond to changes within the InnodbCluster.
	// It provides a history of state transitions and a snapshot of the current state that can be used for
	// automated logic or direct inspection.
	//
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// InnodbCluster is the Schema for the InnoDB Cluster API
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=ic
// +kubebuilder:printcolumn:name="READY",type=boolean,JSONPath=`.status.ready`
// +kubebuilder:printcolumn:name="STATUS",type=string,JSONPath=`.status.clusterStatus`
// +kubebuilder:printcolumn:name="PRIMARY",type=string,JSONPath=`.status.primary`
// +kubebuilder:printcolumn:name="AGE",type="date",JSONPath=".metadata.creationTimestamp"
type InnodbCluster struct {
	// The metadata for the API version and kind of the InnodbCluster.
	metav1.TypeMeta `json:",inline"`

	// The metadata for the InnodbCluster object, including name, namespace, labels, and annotations.
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Defines the desired state of the InnodbCluster.
	Spec InnodbClusterSpec `json:"spec,omitempty"`

	// Populated by the system, it represents the current information about the InnodbCluster.
	Status InnodbClusterStatus `json:"status,omitempty"`
}

// InnodbClusterList contains a list of InnodbCluster
// +kubebuilder:object:root=true
type InnodbClusterList struct {
	// Contains the metadata for the API objects, including the Kind and Version of the object.
	metav1.TypeMeta `json:",inline"`

	// Contains the metadata for the list objects, including the continue and remainingItemCount for the list.
	metav1.ListMeta `json:"metadata,omitempty"`

	// Contains the list of InnodbCluster.
	Items []InnodbCluster `json:"items"`
}

func init() {
	SchemeBuilder.Register(&InnodbCluster{}, &InnodbClusterList{})
}
