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
	"context"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	"github.com/upmio/innodb-cluster-operator/api/v1alpha1"
)

// log is for logging in this package.
var innodbclustersetlog = ctrl.Log.WithName("innodb-cluster-set").WithValues("version", "v1alpha1")

type innodbClusterSetAdmission struct {
}

// Setup will setup the manager to manage the webhooks
func Setup(mgr ctrl.Manager) error {
	return ctrl.NewWebhookManagedBy(mgr).
		For(&v1alpha1.InnodbClusterSet{}).
		WithValidator(&innodbClusterSetAdmission{}).
		WithDefaulter(&innodbClusterSetAdmission{}).
		Complete()
}

//+kubebuilder:webhook:path=/mutate-upm-syntropycloud-io-v1alpha1-innodbclusterset,mutating=true,failurePolicy=fail,sideEffects=None,groups=upm.syntropycloud.io,resources=innodbclustersets,verbs=create;update,versions=v1alpha1,name=minnodbclusterset.kb.io,admissionReviewVersions=v1

var _ webhook.CustomDefaulter = &innodbClusterSetAdmission{}

// Default implements webhook.Defaulter so a webhook will be registered for the type
func (r *innodbClusterSetAdmission) Default(ctx context.Context, obj runtime.Object) error {
	instance := obj.(*v1alpha1.InnodbClusterSet)
	innodbclustersetlog.Info("default", "name", instance.Name)

	// Set default secret key names. The relation bag name gets no default:
	// both sides of the pairing must name the same ConfigMap, and each side
	// has its own object name to derive one from.
	if instance.Spec.Secret.ClusterAdmin == "" {
		instance.Spec.Secret.ClusterAdmin = "clusterAdmin"
	}
	if instance.Spec.Secret.ServerConfig == "" {
		instance.Spec.Secret.ServerConfig = "serverConfig"
	}

	return nil
}

// TODO(user): change verbs to "verbs=create;update;delete" if you want to enable deletion validation.
//+kubebuilder:webhook:path=/validate-upm-syntropycloud-io-v1alpha1-innodbclusterset,mutating=false,failurePolicy=fail,sideEffects=None,groups=upm.syntropycloud.io,resources=innodbclustersets,verbs=create;update,versions=v1alpha1,name=vinnodbclusterset.kb.io,admissionReviewVersions=v1

var _ webhook.CustomValidator = &innodbClusterSetAdmission{}

// ValidateCreate implements webhook.Validator so a webhook will be registered for the type
func (r *innodbClusterSetAdmission) ValidateCreate(ctx context.Context, newObj runtime.Object) (warnings admission.Warnings, err error) {
	instance := newObj.(*v1alpha1.InnodbClusterSet)
	innodbclustersetlog.Info("validate create", "name", instance.Name)

	return r.validateInnodbClusterSet(instance)
}

// ValidateUpdate implements webhook.Validator so a webhook will be registered for the type
func (r *innodbClusterSetAdmission) ValidateUpdate(ctx context.Context, oldObj runtime.Object, newObj runtime.Object) (warnings admission.Warnings, err error) {
	instance := newObj.(*v1alpha1.InnodbClusterSet)

	innodbclustersetlog.Info("validate update", "name", instance.Name)

	oldICS := oldObj.(*v1alpha1.InnodbClusterSet)

	// Validate the new object
	warnings, err = r.validateInnodbClusterSet(instance)
	if err != nil {
		return warnings, err
	}

	// Additional update-specific validations
	var allErrs field.ErrorList

	// The role decides which side of the pairing this cluster takes; swapping
	// sides is a switchover, not an edit
	if oldICS.Spec.Role != instance.Spec.Role {
		allErrs = append(allErrs, field.Invalid(
			field.NewPath("spec").Child("role"),
			instance.Spec.Role,
			"role cannot be changed after creation, unpair and re-create instead",
		))
	}

	// Secret reference should not change
	if oldICS.Spec.Secret.Name != instance.Spec.Secret.Name {
		allErrs = append(allErrs, field.Invalid(
			field.NewPath("spec").Child("secret").Child("name"),
			instance.Spec.Secret.Name,
			"secret reference cannot be changed after creation",
		))
	}

	// Warn about re-targeting the pairing
	if oldICS.Spec.RelationBagName != instance.Spec.RelationBagName {
		warnings = append(warnings, "Changing the relation bag severs the established pairing. Replication already configured on the MySQL side keeps running unmanaged.")
	}

	if oldICS.Spec.ClusterName != instance.Spec.ClusterName {
		warnings = append(warnings, "Changing the cluster reference re-targets the pairing to a different InnodbCluster. The previous cluster keeps its replication configuration.")
	}

	if len(allErrs) > 0 {
		return warnings, allErrs.ToAggregate()
	}

	return warnings, nil
}

// ValidateDelete implements webhook.Validator so a webhook will be registered for the type
func (r *innodbClusterSetAdmission) ValidateDelete(ctx context.Context, obj runtime.Object) (warnings admission.Warnings, err error) {
	instance := obj.(*v1alpha1.InnodbClusterSet)

	innodbclustersetlog.Info("validate delete", "name", instance.Name)

	// Add warning about teardown during finalization
	warnings = append(warnings, "Deleting InnodbClusterSet unpairs the cluster-set during finalization: the primary side dissolves the replica cluster. Ensure the replica data is no longer needed.")

	return warnings, nil
}

// validateInnodbClusterSet performs comprehensive validation of InnodbClusterSet spec
func (r *innodbClusterSetAdmission) validateInnodbClusterSet(instance *v1alpha1.InnodbClusterSet) (admission.Warnings, error) {
	var allErrs field.ErrorList
	var warnings admission.Warnings

	// Validate the pairing role
	switch instance.Spec.Role {
	case v1alpha1.InnodbClusterSetRolePrimary, v1alpha1.InnodbClusterSetRoleReplica:
	case "":
		allErrs = append(allErrs, field.Required(
			field.NewPath("spec").Child("role"),
			"role is required",
		))
	default:
		allErrs = append(allErrs, field.NotSupported(
			field.NewPath("spec").Child("role"),
			instance.Spec.Role,
			[]string{string(v1alpha1.InnodbClusterSetRolePrimary), string(v1alpha1.InnodbClusterSetRoleReplica)},
		))
	}

	// Validate the local cluster reference
	if instance.Spec.ClusterName == "" {
		allErrs = append(allErrs, field.Required(
			field.NewPath("spec").Child("clusterName"),
			"cluster name is required",
		))
	}

	// Validate the relation bag reference
	if instance.Spec.RelationBagName == "" {
		allErrs = append(allErrs, field.Required(
			field.NewPath("spec").Child("relationBagName"),
			"relation bag name is required",
		))
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

// validateSecret validates secret configuration
func (r *innodbClusterSetAdmission) validateSecret(instance *v1alpha1.InnodbClusterSet) field.ErrorList {
	var allErrs field.ErrorList
	secretPath := field.NewPath("spec").Child("secret")

	if instance.Spec.Secret.Name == "" {
		allErrs = append(allErrs, field.Required(
			secretPath.Child("name"),
			"secret name is required",
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

	return allErrs
}
