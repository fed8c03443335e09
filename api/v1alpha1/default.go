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
	"fmt"
	"strconv"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// NodeStatus defines node status
type NodeStatus string

const (
	// NodeStatusOK Status OK
	NodeStatusOK NodeStatus = "Healthy"
	// NodeStatusKO Status KO
	NodeStatusKO NodeStatus = "Failed"
)

const SkipReconcileKey = "innodb-cluster-operator.skip.reconcile"

const (
	// PreUpgradeCheckKey marks an InnodbCluster for a pre-upgrade health check.
	// The controller runs the check, records the result as a condition and, on
	// success, arms the rolling-upgrade campaign.
	PreUpgradeCheckKey = "upm.syntropycloud.io/pre-upgrade-check"

	// ResumeUpgradeKey resumes a halted rolling-upgrade campaign after the
	// operator has resolved the failure on the stuck member.
	ResumeUpgradeKey = "upm.syntropycloud.io/resume-upgrade"
)

// CommonNode information for node to connect
type CommonNode struct {
	// Name specifies the identifier of node
	Name string `json:"name"`

	// Host specifies the ip or hostname of node
	Host string `json:"host"`

	// Port specifies the port of node
	Port int `json:"port"`
}

// CommonNodes array Node
type CommonNodes []*CommonNode

// Ordinal extracts the trailing ordinal from the node name, following the
// StatefulSet pod naming convention <name>-<ordinal>.
func (n *CommonNode) Ordinal() (int, error) {
	idx := strings.LastIndex(n.Name, "-")
	if idx < 0 || idx == len(n.Name)-1 {
		return 0, fmt.Errorf("node name %q carries no ordinal suffix", n.Name)
	}

	ordinal, err := strconv.Atoi(n.Name[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("node name %q carries no ordinal suffix: %v", n.Name, err)
	}

	return ordinal, nil
}

// InnodbClusterMemberRole defines the member role inside an InnoDB Cluster
type InnodbClusterMemberRole string

const (
	// InnodbClusterMemberRolePrimary InnodbCluster Primary member role
	InnodbClusterMemberRolePrimary InnodbClusterMemberRole = "Primary"
	// InnodbClusterMemberRoleSecondary InnodbCluster Secondary member role
	InnodbClusterMemberRoleSecondary InnodbClusterMemberRole = "Secondary"
	// InnodbClusterMemberRoleNone InnodbCluster None member role
	InnodbClusterMemberRoleNone InnodbClusterMemberRole = "None"
)

// InnodbClusterSetRole defines which side of a cluster-set pairing a cluster
// takes.
// +kubebuilder:validation:Enum=Primary;Replica
type InnodbClusterSetRole string

const (
	// InnodbClusterSetRolePrimary InnodbClusterSet Primary side role
	InnodbClusterSetRolePrimary InnodbClusterSetRole = "Primary"
	// InnodbClusterSetRoleReplica InnodbClusterSet Replica side role
	InnodbClusterSetRoleReplica InnodbClusterSetRole = "Replica"
)

// S3Storage defines an S3-compatible object storage location.
type S3Storage struct {
	// Bucket is the bucket holding backup objects.
	Bucket string `json:"bucket"`

	// Endpoint is the S3-compatible endpoint URL.
	Endpoint string `json:"endpoint"`

	// Region is the bucket region.
	// +kubebuilder:default:=us-east-1
	Region string `json:"region,omitempty"`

	// Path is the object key prefix under which backups are stored.
	// +optional
	Path string `json:"path,omitempty"`

	// SecretName is the name of the secret resource holding the access-key-id
	// and secret-access-key entries, it must be in the same namespace as the
	// referencing object.
	SecretName string `json:"secretName"`
}

// BackupStorage wraps the supported storage backends. Exactly one backend
// must be set.
type BackupStorage struct {
	// S3 locates the backup objects on an S3-compatible store.
	S3 *S3Storage `json:"s3"`
}

const (
	ConditionTypeTopologyReady    = "TopologyReady"
	ConditionTypeResourceReady    = "ResourceReady"
	ConditionTypeReplicationReady = "ReplicationReady"
	ConditionTypeUpgradeReady     = "UpgradeReady"
	ConditionTypeBackupReady      = "BackupReady"
	ConditionTypeRestoreReady     = "RestoreReady"
)

func DefaultInnodbClusterOwnerReferences(instance *InnodbCluster) []metav1.OwnerReference {
	return []metav1.OwnerReference{
		*metav1.NewControllerRef(instance, schema.GroupVersionKind{
			Group:   GroupVersion.Group,
			Version: GroupVersion.Version,
			Kind:    "InnodbCluster",
		}),
	}
}

func DefaultInnodbClusterSetOwnerReferences(instance *InnodbClusterSet) []metav1.OwnerReference {
	return []metav1.OwnerReference{
		*metav1.NewControllerRef(instance, schema.GroupVersionKind{
			Group:   GroupVersion.Group,
			Version: GroupVersion.Version,
			Kind:    "InnodbClusterSet",
		}),
	}
}
