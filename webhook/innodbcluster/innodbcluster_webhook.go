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

package innodbcluster

import (
	"context"
	"fmt"
	"net"
	"strings"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	"github.com/upmio/innodb-cluster-operator/api/v1alpha1"
)

// log is for logging in this package.
var innodbclusterlog = ctrl.Log.WithName("innodb-cluster").WithValues("version", "v1alpha1")

type innodbClusterAdmission struct {
}

// Setup will setup the manager to manage the webhooks
func Setup(mgr ctrl.Manager) error {
	return ctrl.NewWebhookManagedBy(mgr).
		For(&v1alpha1.InnodbCluster{}).
		WithValidator(&innodbClusterAdmission{}).
		WithDefaulter(&innodbClusterAdmission{}).
		Complete()
}

//+kubebuilder:webhook:path=/mutate-upm-syntropycloud-io-v1alpha1-innodbcluster,mutating=true,failurePolicy=fail,sideEffects=None,groups=upm.syntropycloud.io,resources=innodbclusters,verbs=create;update,versions=v1alpha1,name=minnodbcluster.kb.io,admissionReviewVersions=v1

var _ webhook.CustomDefaulter = &innodbClusterAdmission{}

// Default implements webhook.Defaulter so a webhook will be registered for the type
func (r *innodbClusterAdmission) Default(ctx context.Context, obj runtime.Object) error {
	instance := obj.(*v1alpha1.InnodbCluster)
	innodbclusterlog.Info("default", "name", instance.Name)

	// Set default secret key names
	if instance.Spec.Secret.Mysql == "" {
		instance.Spec.Secret.Mysql = "mysql"
	}
	if instance.Spec.Secret.ClusterAdmin == "" {
		instance.Spec.Secret.ClusterAdmin = "clusterAdmin"
	}
	if instance.Spec.Secret.ServerConfig == "" {
		instance.Spec.Secret.ServerConfig = "serverConfig"
	}
	if instance.Spec.Secret.Monitor == "" {
		instance.Spec.Secret.Monitor = "monitor"
	}
	if instance.Spec.Secret.Backup == "" {
		instance.Spec.Secret.Backup = "backup"
	}

	// The cluster-set domain defaults to the cluster name, same fallback the
	// reconciler applies when publishing relation data.
	if instance.Spec.ClusterSetDomainName == "" && instance.Spec.ClusterName != "" {
		instance.Spec.ClusterSetDomainName = fmt.Sprintf("%s-set", instance.Spec.ClusterName)
	}

	return nil
}

// TODO(user): change verbs to "verbs=create;update;delete" if you want to enable deletion validation.
//+kubebuilder:webhook:path=/validate-upm-syntropycloud-io-v1alpha1-innodbcluster,mutating=false,failurePolicy=fail,sideEffects=None,groups=upm.syntropycloud.io,resources=innodbclusters,verbs=create;update,versions=v1alpha1,name=vinnodbcluster.kb.io,admissionReviewVersions=v1

var _ webhook.CustomValidator = &innodbClusterAdmission{}

// ValidateCreate implements webhook.Validator so a webhook will be registered for the type
func (r *innodbClusterAdmission) ValidateCreate(ctx context.Context, newObj runtime.Object) (warnings admission.Warnings, err error) {
	instance := newObj.(*v1alpha1.InnodbCluster)
	innodbclusterlog.Info("validate create", "name", instance.Name)

	return r.validateInnodbCluster(instance)
}

// ValidateUpdate implements webhook.Validator so a webhook will be registered for the type
func (r *innodbClusterAdmission) ValidateUpdate(ctx context.Context, oldObj runtime.Object, newObj runtime.Object) (warnings admission.Warnings, err error) {
	instance := newObj.(*v1alpha1.InnodbCluster)

	innodbclusterlog.Info("validate update", "name", instance.Name)

	oldIC := oldObj.(*v1alpha1.InnodbCluster)

	// Validate the new object
	warnings, err = r.validateInnodbCluster(instance)
	if err != nil {
		return warnings, err
	}

	// Additional update-specific validations
	var allErrs field.ErrorList

	// The registered cluster name is the group's identity, it cannot move
	if oldIC.Spec.ClusterName != instance.Spec.ClusterName {
		allErrs = append(allErrs, field.Invalid(
			field.NewPath("spec").Child("clusterName"),
			instance.Spec.ClusterName,
			"cluster name cannot be changed after creation",
		))
	}

	// Secret reference should not change
	if oldIC.Spec.Secret.Name != instance.Spec.Secret.Name {
		allErrs = append(allErrs, field.Invalid(
			field.NewPath("spec").Child("secret").Child("name"),
			instance.Spec.Secret.Name,
			"secret reference cannot be changed after creation",
		))
	}

	// Warn about changing cluster members
	if len(oldIC.Spec.Member) != len(instance.Spec.Member) {
		warnings = append(warnings, "Changing cluster members may cause group reconfiguration and temporary unavailability.")
	}

	// Warn about arming a rolling upgrade
	if oldIC.Spec.Version != instance.Spec.Version {
		warnings = append(warnings, "Changing the version arms a rolling upgrade once the pre-upgrade check passes. Members restart highest ordinal first.")
	}

	if len(allErrs) > 0 {
		return warnings, allErrs.ToAggregate()
	}

	return warnings, nil
}

// ValidateDelete implements webhook.Validator so a webhook will be registered for the type
func (r *innodbClusterAdmission) ValidateDelete(ctx context.Context, obj runtime.Object) (warnings admission.Warnings, err error) {
	instance := obj.(*v1alpha1.InnodbCluster)

	innodbclusterlog.Info("validate delete", "name", instance.Name)

	// Add warning about potential data loss
	warnings = append(warnings, "Deleting InnodbCluster will stop managing the InnoDB Cluster but won't affect existing MySQL instances. Ensure proper cleanup if needed.")

	return warnings, nil
}

// validateInnodbCluster performs comprehensive validation of InnodbCluster spec
func (r *innodbClusterAdmission) validateInnodbCluster(instance *v1alpha1.InnodbCluster) (admission.Warnings, error) {
	var allErrs field.ErrorList
	var warnings admission.Warnings

	// Validate the registered cluster name
	if instance.Spec.ClusterName == "" {
		allErrs = append(allErrs, field.Required(
			field.NewPath("spec").Child("clusterName"),
			"cluster name is required",
		))
	} else if !isValidClusterName(instance.Spec.ClusterName) {
		allErrs = append(allErrs, field.Invalid(
			field.NewPath("spec").Child("clusterName"),
			instance.Spec.ClusterName,
			"cluster name must start with a letter and contain only alphanumerics, hyphens and underscores (63 characters max)",
		))
	}

	// Validate the StatefulSet reference
	if instance.Spec.StatefulSetName == "" {
		allErrs = append(allErrs, field.Required(
			field.NewPath("spec").Child("statefulSetName"),
			"statefulset name is required",
		))
	}

	// Validate the desired server version
	if instance.Spec.Version == "" {
		allErrs = append(allErrs, field.Required(
			field.NewPath("spec").Child("version"),
			"server version is required",
		))
	}

	// Validate cluster members
	if len(instance.Spec.Member) == 0 {
		allErrs = append(allErrs, field.Required(
			field.NewPath("spec").Child("member"),
			"at least one cluster member is required",
		))
	} else {
		// Group replication tolerates failures only from 3 members up
		if len(instance.Spec.Member) < 3 {
			warnings = append(warnings, "InnoDB Cluster requires at least 3 members for proper fault tolerance and automatic failover.")
		}

		// Group replication has a maximum of 9 members
		if len(instance.Spec.Member) > 9 {
			allErrs = append(allErrs, field.Invalid(
				field.NewPath("spec").Child("member"),
				len(instance.Spec.Member),
				"InnoDB Cluster supports a maximum of 9 members",
			))
		}

		for i, member := range instance.Spec.Member {
			fieldPath := field.NewPath("spec").Child("member").Index(i)
			if err := r.validateCommonNode("member", member, fieldPath); err != nil {
				allErrs = append(allErrs, err...)
			}

			// Backup target ordering and the upgrade stack walk members by
			// their StatefulSet ordinal, names without one cannot be managed.
			if member.Name != "" {
				if _, err := member.Ordinal(); err != nil {
					allErrs = append(allErrs, field.Invalid(
						fieldPath.Child("name"),
						member.Name,
						"member name must end in a StatefulSet ordinal, e.g. mysql-0",
					))
				}
			}
		}

		// Check for duplicate member names
		if err := r.validateUniqueNodeNames(instance); err != nil {
			allErrs = append(allErrs, err...)
		}
	}

	// Validate secret configuration
	if err := r.validateSecret(instance); err != nil {
		allErrs = append(allErrs, err...)
	}

	if len(allErrs) > 0 {
		return warnings, allErrs.ToAggregate()
	}

	return warnings, nil
}

// validateCommonNode validates common node fields
func (r *innodbClusterAdmission) validateCommonNode(nodeType string, node *v1alpha1.CommonNode, fieldPath *field.Path) field.ErrorList {
	var allErrs field.ErrorList

	// Validate name
	if node.Name == "" {
		allErrs = append(allErrs, field.Required(
			fieldPath.Child("name"),
			fmt.Sprintf("%s node name is required", nodeType),
		))
	}

	// Validate host
	if node.Host == "" {
		allErrs = append(allErrs, field.Required(
			fieldPath.Child("host"),
			fmt.Sprintf("%s node host is required", nodeType),
		))
	} else {
		// Basic host validation (IP address or hostname)
		if net.ParseIP(node.Host) == nil && !isValidHostname(node.Host) {
			allErrs = append(allErrs, field.Invalid(
				fieldPath.Child("host"),
				node.Host,
				"host must be a valid IP address or hostname",
			))
		}
	}

	// Validate port
	if node.Port <= 0 || node.Port > 65535 {
		allErrs = append(allErrs, field.Invalid(
			fieldPath.Child("port"),
			node.Port,
			"port must be between 1 and 65535",
		))
	}

	return allErrs
}

// validateUniqueNodeNames ensures all cluster member names are unique
func (r *innodbClusterAdmission) validateUniqueNodeNames(instance *v1alpha1.InnodbCluster) field.ErrorList {
	var allErrs field.ErrorList
	nodeNames := make(map[string]bool)

	// Check member names
	for i, member := range instance.Spec.Member {
		if member.Name != "" {
			if nodeNames[member.Name] {
				allErrs = append(allErrs, field.Invalid(
					field.NewPath("spec").Child("member").Index(i).Child("name"),
					member.Name,
					"cluster member names must be unique",
				))
			}
			nodeNames[member.Name] = true
		}
	}

	return allErrs
}

// validateSecret validates secret configuration
func (r *innodbClusterAdmission) validateSecret(instance *v1alpha1.InnodbCluster) field.ErrorList {
	var allErrs field.ErrorList
	secretPath := field.NewPath("spec").Child("secret")

	if instance.Spec.Secret.Name == "" {
		allErrs = append(allErrs, field.Required(
			secretPath.Child("name"),
			"secret name is required",
		))
	}

	if instance.Spec.Secret.Mysql == "" {
		allErrs = append(allErrs, field.Required(
			secretPath.Child("mysql"),
			"mysql secret key is required",
		))
	}

	if instance.Spec.Secret.ClusterAdmin == "" {
		allErrs = append(allErrs, field.Required(
			secretPath.Child("clusterAdmin"),
			"clusterAdmin secret key is required",
		))
	}

	if instance.Spec.Secret.ServerConfig == "" {
		allErrs = append(allErrs, field.Required(
			secretPath.Child("serverConfig"),
			"serverConfig secret key is required",
		))
	}

	if instance.Spec.Secret.Monitor == "" {
		allErrs = append(allErrs, field.Required(
			secretPath.Child("monitor"),
			"monitor secret key is required",
		))
	}

	if instance.Spec.Secret.Backup == "" {
		allErrs = append(allErrs, field.Required(
			secretPath.Child("backup"),
			"backup secret key is required",
		))
	}

	return allErrs
}

// isValidClusterName checks the name registered in the group metadata. The
// name doubles as the default cluster-set domain prefix, so it follows the
// DNS label character set.
func isValidClusterName(name string) bool {
	if len(name) == 0 || len(name) > 63 {
		return false
	}

	first := rune(name[0])
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')) {
		return false
	}

	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			return false
		}
	}

	return true
}

// isValidHostname performs basic hostname validation according to DNS specifications.
// This function validates hostnames used for database connections to ensure compatibility
// with DNS resolution and network protocols.
func isValidHostname(hostname string) bool {
	// RFC 1035: DNS names have a maximum length of 255 octets in wire format.
	// Since each label requires a length prefix byte and the name ends with a zero byte,
	// the maximum displayable length is 253 characters (255 - 1 length byte - 1 zero byte).
	// Empty hostnames are also invalid.
	if len(hostname) == 0 || len(hostname) > 253 {
		return false
	}

	// Split hostname into labels (parts separated by dots) and validate each one.
	// DNS labels are the individual components of a domain name (e.g., "mysql", "example", "com").
	for _, part := range strings.Split(hostname, ".") {
		// RFC 1035: Each label must be between 1-63 characters.
		// Empty labels (e.g., "example..com") and labels longer than 63 chars are invalid.
		// The 63-character limit comes from the 6-bit length field in DNS label encoding.
		if len(part) == 0 || len(part) > 63 {
			return false
		}

		// RFC 952 & RFC 1123: Valid hostname characters are letters, digits, and hyphens.
		// This character set ensures compatibility across all DNS implementations and
		// network protocols that may need to resolve this hostname.
		for _, r := range part {
			if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-') {
				return false
			}
		}

		// RFC 952: Labels cannot start or end with a hyphen.
		// This prevents ambiguity in parsing and ensures compatibility with older systems
		// that might interpret leading/trailing hyphens as command-line options.
		if strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return false
		}
	}

	return true
}
