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

// RestoreState enumerates the lifecycle of an InnodbRestore run.
type RestoreState string

const (
	// RestoreStatePending the restore has not started yet.
	RestoreStatePending RestoreState = "Pending"
	// RestoreStateRunning the restore sequence is executing.
	RestoreStateRunning RestoreState = "Running"
	// RestoreStateSucceeded the data was restored and the cluster recreated.
	RestoreStateSucceeded RestoreState = "Succeeded"
	// RestoreStateFailed the restore failed; status.recoverable tells whether
	// the member kept its original data.
	RestoreStateFailed RestoreState = "Failed"
)

// InnodbRestoreSpec defines the desired state of InnodbRestore
type InnodbRestoreSpec struct {

	// ClusterName is the name of the InnodbCluster object to restore into, it
	// must be in the same namespace as the InnodbRestore object and must run
	// exactly one member.
	ClusterName string `json:"clusterName"`

	// BackupID identifies the backup to restore, as reported by the backup
	// that produced it.
	BackupID string `json:"backupID"`

	// Storage locates the object storage the backup is fetched from.
	Storage BackupStorage `json:"storage"`
}

// InnodbRestoreStatus defines the observed state of InnodbRestore
type InnodbRestoreStatus struct {
	// State is the restore lifecycle state.
	State RestoreState `json:"state"`

	// Recoverable is set on failure. True means the failure happened before
	// the data directory was wiped and the member restarted with its original
	// data; false means the member is left stopped and needs operator
	// intervention.
	// +optional
	Recoverable *bool `json:"recoverable,omitempty"`

	// Step names the restore step currently executing. It is persisted before
	// the step runs, so after an operator crash it tells how far the
	// interrupted run progressed.
	// +optional
	Step string `json:"step,omitempty"`

	// FailedStep names the restore step that failed.
	// +optional
	FailedStep string `json:"failedStep,omitempty"`

	// StartTime is when the restore sequence started.
	// +optional
	StartTime *metav1.Time `json:"startTime,omitempty"`

	// CompletionTime is when the restore reached a terminal state.
	// +optional
	CompletionTime *metav1.Time `json:"completionTime,omitempty"`

	// Represents a list of detailed status of the InnodbRestore object.
	//
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// InnodbRestore is the Schema for the InnoDB Cluster restore API
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=ir
// +kubebuilder:printcolumn:name="CLUSTER",type=string,JSONPath=`.spec.clusterName`
// +kubebuilder:printcolumn:name="BACKUPID",type=string,JSONPath=`.spec.backupID`
// +kubebuilder:printcolumn:name="STATE",type=string,JSONPath=`.status.state`
// +kubebuilder:printcolumn:name="AGE",type="date",JSONPath=".metadata.creationTimestamp"
type InnodbRestore struct {
	// The metadata for the API version and kind of the InnodbRestore.
	metav1.TypeMeta `json:",inline"`

	// The metadata for the InnodbRestore object, including name, namespace, labels, and annotations.
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Defines the desired state of the InnodbRestore.
	Spec InnodbRestoreSpec `json:"spec,omitempty"`

	// Populated by the system, it represents the current information about the InnodbRestore.
	Status InnodbRestoreStatus `json:"status,omitempty"`
}

// InnodbRestoreList contains a list of InnodbRestore
// +kubebuilder:object:root=true
type InnodbRestoreList struct {
	// Contains the metadata for the API objects, including the Kind and Version of the object.
	metav1.TypeMeta `json:",inline"`

	// Contains the metadata for the list objects, including the continue and remainingItemCount for the list.
	metav1.ListMeta `json:"metadata,omitempty"`

	// Contains the list of InnodbRestore.
	Items []InnodbRestore `json:"items"`
}

func init() {
	SchemeBuilder.Register(&InnodbRestore{}, &InnodbRestoreList{})
}
