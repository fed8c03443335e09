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

// BackupState enumerates the lifecycle of an InnodbBackup run.
type BackupState string

const (
	// BackupStatePending the backup has not started yet.
	BackupStatePending BackupState = "Pending"
	// BackupStateRunning the backup is streaming to object storage.
	BackupStateRunning BackupState = "Running"
	// BackupStateSucceeded the backup completed and its digest was verified.
	BackupStateSucceeded BackupState = "Succeeded"
	// BackupStateFailed the backup failed; see conditions for the reason.
	BackupStateFailed BackupState = "Failed"
)

// InnodbBackupSpec defines the desired state of InnodbBackup
type InnodbBackupSpec struct {

	// ClusterName is the name of the InnodbCluster object to back up, it must
	// be in the same namespace as the InnodbBackup object.
	ClusterName string `json:"clusterName"`

	// Storage locates the object storage the backup streams to.
	Storage BackupStorage `json:"storage"`
}

// InnodbBackupStatus defines the observed state of InnodbBackup
type InnodbBackupStatus struct {
	// State is the backup lifecycle state.
	State BackupState `json:"state"`

	// BackupID identifies the backup in object storage. RFC3339 timestamp of
	// the backup start.
	// +optional
	BackupID string `json:"backupID,omitempty"`

	// Instance records which cluster member the backup streamed from.
	// +optional
	Instance string `json:"instance,omitempty"`

	// StartTime is when the backup command started.
	// +optional
	StartTime *metav1.Time `json:"startTime,omitempty"`

	// CompletionTime is when the backup reached a terminal state.
	// +optional
	CompletionTime *metav1.Time `json:"completionTime,omitempty"`

	// Represents a list of detailed status of the InnodbBackup object.
	//
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// InnodbBackup is the Schema for the InnoDB Cluster backup API
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=ib
// +kubebuilder:printcolumn:name="CLUSTER",type=string,JSONPath=`.spec.clusterName`
// +kubebuilder:printcolumn:name="STATE",type=string,JSONPath=`.status.state`
// +kubebuilder:printcolumn:name="BACKUPID",type=string,JSONPath=`.status.backupID`
// +kubebuilder:printcolumn:name="AGE",type="date",JSONPath=".metadata.creationTimestamp"
type InnodbBackup struct {
	// The metadata for the API version and kind of the InnodbBackup.
	metav1.TypeMeta `json:",inline"`

	// The metadata for the InnodbBackup object, including name, namespace, labels, and annotations.
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Defines the desired state of the InnodbBackup.
	Spec InnodbBackupSpec `json:"spec,omitempty"`

	// Populated by the system, it represents the current information about the InnodbBackup.
	Status InnodbBackupStatus `json:"status,omitempty"`
}

// InnodbBackupList contains a list of InnodbBackup
// +kubebuilder:object:root=true
type InnodbBackupList struct {
	// Contains the metadata for the API objects, including the Kind and Version of the object.
	metav1.TypeMeta `json:",inline"`

	// Contains the metadata for the list objects, including the continue and remainingItemCount for the list.
	metav1.ListMeta `json:"metadata,omitempty"`

	// Contains the list of InnodbBackup.
	Items []InnodbBackup `json:"items"`
}

func init() {
	SchemeBuilder.Register(&InnodbBackup{}, &InnodbBackupList{})
}
