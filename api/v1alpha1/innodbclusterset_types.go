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

// ClusterSetState enumerates the derived replication states of a cluster-set
// pairing. The state is recomputed from relation data and a live probe on
// every reconciliation; it is never the source of truth.
type ClusterSetState string

const (
	// ClusterSetStateSyncing credentials are shared, the replica has not yet
	// published its endpoint.
	ClusterSetStateSyncing ClusterSetState = "Syncing"
	// ClusterSetStateInitializing the replica endpoint is known and the
	// replica cluster has not been created yet.
	ClusterSetStateInitializing ClusterSetState = "Initializing"
	// ClusterSetStateRecovering the replica cluster exists and its members are
	// still joining.
	ClusterSetStateRecovering ClusterSetState = "Recovering"
	// ClusterSetStateReady the replica cluster is fully online.
	ClusterSetStateReady ClusterSetState = "Ready"
	// ClusterSetStateNone no pairing is established.
	ClusterSetStateNone ClusterSetState = "None"
)

// InnodbClusterSetSecret defines the secret information of InnodbClusterSet
type InnodbClusterSetSecret struct {
	// Name is the name of the secret resource which store authentication information for MySQL.
	Name string `json:"name"`

	// ClusterAdmin is the key of the secret, which contains the value used to administer the local InnoDB Cluster.
	// +kubebuilder:default:=clusterAdmin
	ClusterAdmin string `json:"clusterAdmin"`

	// ServerConfig is the key of the secret, which contains the value used to configure cluster-set replication channels.
	// +kubebuilder:default:=serverConfig
	ServerConfig string `json:"serverConfig"`
}

// InnodbClusterSetSpec defines the desired state of InnodbClusterSet
type InnodbClusterSetSpec struct {

	// Role selects which side of the pairing this cluster takes. Immutable.
	Role InnodbClusterSetRole `json:"role"`

	// ClusterName is the name of the local InnodbCluster object, it must be in
	// the same namespace as the InnodbClusterSet object.
	ClusterName string `json:"clusterName"`

	// RelationBagName is the name of the ConfigMap both sides of the pairing
	// exchange replication facts through. Each side writes only its own
	// section.
	RelationBagName string `json:"relationBagName"`

	// Secret is the reference to the secret resource containing authentication information, it must be in the same namespace as the InnodbClusterSet object.
	Secret InnodbClusterSetSecret `json:"secret"`
}

// InnodbClusterSetStatus defines the observed state of InnodbClusterSet
type InnodbClusterSetStatus struct {
	// State is the derived replication state of the pairing.
	State ClusterSetState `json:"state"`

	// RemoteClusterName records the replica cluster name once known. The
	// primary side uses it to tear the replica cluster down on unpairing.
	// +optional
	RemoteClusterName string `json:"remoteClusterName,omitempty"`

	// Ready indicates whether this InnodbClusterSet object is ready or not.
	Ready bool `json:"ready"`

	// Represents a list of detailed status of the InnodbClusterSet object.
	// Each condition in the list provides real-time information about certain aspect of the InnodbClusterSet object.
	//
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// InnodbClusterSet is the Schema for the InnoDB ClusterSet API
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=ics
// +kubebuilder:printcolumn:name="ROLE",type=string,JSONPath=`.spec.role`
// +kubebuilder:printcolumn:name="STATE",type=string,JSONPath=`.status.state`
// +kubebuilder:printcolumn:name="READY",type=boolean,JSONPath=`.status.ready`
// +kubebuilder:printcolumn:name="AGE",type="date",JSONPath=".metadata.creationTimestamp"
type InnodbClusterSet struct {
	// The metadata for the API version and kind of the InnodbClusterSet.
	metav1.TypeMeta `json:",inline"`

	// The metadata for the InnodbClusterSet object, including name, namespace, labels, and annotations.
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Defines the desired state of the InnodbClusterSet.
	Spec InnodbClusterSetSpec `json:"spec,omitempty"`

	// Populated by the system, it represents the current information about the InnodbClusterSet.
	Status InnodbClusterSetStatus `json:"status,omitempty"`
}

// InnodbClusterSetList contains a list of InnodbClusterSet
// +kubebuilder:object:root=true
type InnodbClusterSetList struct {
	// Contains the metadata for the API objects, including the Kind and Version of the object.
	metav1.TypeMeta `json:",inline"`

	// Contains the metadata for the list objects, including the continue and remainingItemCount for the list.
	metav1.ListMeta `json:"metadata,omitempty"`

	// Contains the list of InnodbClusterSet.
	Items []InnodbClusterSet `json:"items"`
}

func init() {
	SchemeBuilder.Register(&InnodbClusterSet{}, &InnodbClusterSetList{})
}
