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

package innodbrestore

import (
	"context"
	"net/url"
	"reflect"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	"github.com/upmio/innodb-cluster-operator/api/v1alpha1"
)

// log is for logging in this package.
var innodbrestorelog = ctrl.Log.WithName("innodb-restore").WithValues("version", "v1alpha1")

type innodbRestoreAdmission struct {
}

// Setup will setup the manager to manage the webhooks
func Setup(mgr ctrl.Manager) error {
	return ctrl.NewWebhookManagedBy(mgr).
		For(&v1alpha1.InnodbRestore{}).
		WithValidator(&innodbRestoreAdmission{}).
		WithDefaulter(&innodbRestoreAdmission{}).
		Complete()
}

//+kubebuilder:webhook:path=/mutate-upm-syntropycloud-io-v1alpha1-innodbrestore,mutating=true,failurePolicy=fail,sideEffects=None,groups=upm.syntropycloud.io,resources=innodbrestores,verbs=create;update,versions=v1alpha1,name=minnodbrestore.kb.io,admissionReviewVersions=v1

var _ webhook.CustomDefaulter = &innodbRestoreAdmission{}

// Default implements webhook.Defaulter so a webhook will be registered for the type
func (r *innodbRestoreAdmission) Default(ctx context.Context, obj runtime.Object) error {
	instance := obj.(*v1alpha1.InnodbRestore)
	innodbrestorelog.Info("default", "name", instance.Name)

	if instance.Spec.Storage.S3 != nil && instance.Spec.Storage.S3.Region == "" {
		instance.Spec.Storage.S3.Region = "us-east-1"
	}

	return nil
}

// TODO(user): change verbs to "verbs=create;update;delete" if you want to enable deletion validation.
//+kubebuilder:webhook:path=/validate-upm-syntropycloud-io-v1alpha1-innodbrestore,mutating=false,failurePolicy=fail,sideEffects=None,groups=upm.syntropycloud.io,resources=innodbrestores,verbs=create;update,versions=v1alpha1,name=vinnodbrestore.kb.io,admissionReviewVersions=v1

var _ webhook.CustomValidator = &innodbRestoreAdmission{}

// ValidateCreate implements webhook.Validator so a webhook will be registered for the type
func (r *innodbRestoreAdmission) ValidateCreate(ctx context.Context, newObj runtime.Object) (warnings admission.Warnings, err error) {
	instance := newObj.(*v1alpha1.InnodbRestore)
	innodbrestorelog.Info("validate create", "name", instance.Name)

	warnings, err = r.validateInnodbRestore(instance)
	if err != nil {
		return warnings, err
	}

	// The single-member precondition is checked against the live cluster by
	// the controller; admission can only remind the operator what is coming
	warnings = append(warnings, "A restore replaces the member's data directory with the backup content. The referenced cluster must be scaled to exactly one member before the restore starts.")

	return warnings, nil
}

// ValidateUpdate implements webhook.Validator so a webhook will be registered for the type
func (r *innodbRestoreAdmission) ValidateUpdate(ctx context.Context, oldObj runtime.Object, newObj runtime.Object) (warnings admission.Warnings, err error) {
	instance := newObj.(*v1alpha1.InnodbRestore)

	innodbrestorelog.Info("validate update", "name", instance.Name)

	oldIR := oldObj.(*v1alpha1.InnodbRestore)

	// Validate the new object
	warnings, err = r.validateInnodbRestore(instance)
	if err != nil {
		return warnings, err
	}

	// A restore runs once; the spec is frozen so a mid-run edit cannot swap
	// the backup being applied
	var allErrs field.ErrorList

	if oldIR.Spec.ClusterName != instance.Spec.ClusterName {
		allErrs = append(allErrs, field.Invalid(
			field.NewPath("spec").Child("clusterName"),
			instance.Spec.ClusterName,
			"cluster reference cannot be changed after creation",
		))
	}

	if oldIR.Spec.BackupID != instance.Spec.BackupID {
		allErrs = append(allErrs, field.Invalid(
			field.NewPath("spec").Child("backupID"),
			instance.Spec.BackupID,
			"backup reference cannot be changed after creation",
		))
	}

	if !reflect.DeepEqual(oldIR.Spec.Storage, instance.Spec.Storage) {
		allErrs = append(allErrs, field.Invalid(
			field.NewPath("spec").Child("storage"),
			instance.Spec.Storage,
			"storage configuration cannot be changed after creation",
		))
	}

	if len(allErrs) > 0 {
		return warnings, allErrs.ToAggregate()
	}

	return warnings, nil
}

// ValidateDelete implements webhook.Validator so a webhook will be registered for the type
func (r *innodbRestoreAdmission) ValidateDelete(ctx context.Context, obj runtime.Object) (warnings admission.Warnings, err error) {
	instance := obj.(*v1alpha1.InnodbRestore)

	innodbrestorelog.Info("validate delete", "name", instance.Name)

	warnings = append(warnings, "Deleting InnodbRestore does not undo a restore already applied to the member's data directory.")

	return warnings, nil
}

// validateInnodbRestore performs comprehensive validation of InnodbRestore spec
func (r *innodbRestoreAdmission) validateInnodbRestore(instance *v1alpha1.InnodbRestore) (admission.Warnings, error) {
	var allErrs field.ErrorList
	var warnings admission.Warnings

	// Validate the cluster reference
	if instance.Spec.ClusterName == "" {
		allErrs = append(allErrs, field.Required(
			field.NewPath("spec").Child("clusterName"),
			"cluster name is required",
		))
	}

	// Validate the backup reference
	if instance.Spec.BackupID == "" {
		allErrs = append(allErrs, field.Required(
			field.NewPath("spec").Child("backupID"),
			"backup ID is required",
		))
	} else if _, err := time.Parse(time.RFC3339, instance.Spec.BackupID); err != nil {
		allErrs = append(allErrs, field.Invalid(
			field.NewPath("spec").Child("backupID"),
			instance.Spec.BackupID,
			"backup ID must be the RFC3339 timestamp identifying the backup, e.g. 2025-08-20T04:00:00Z",
		))
	}

	// Validate storage configuration
	if err := validateStorage(&instance.Spec.Storage, field.NewPath("spec").Child("storage")); err != nil {
		allErrs = append(allErrs, err...)
	}

	if len(allErrs) > 0 {
		return warnings, allErrs.ToAggregate()
	}

	return warnings, nil
}

// validateStorage validates the object storage location the backup is read
// from.
func validateStorage(storage *v1alpha1.BackupStorage, storagePath *field.Path) field.ErrorList {
	var allErrs field.ErrorList

	if storage.S3 == nil {
		allErrs = append(allErrs, field.Required(
			storagePath.Child("s3"),
			"s3 storage configuration is required",
		))
		return allErrs
	}

	s3Path := storagePath.Child("s3")

	if storage.S3.Bucket == "" {
		allErrs = append(allErrs, field.Required(
			s3Path.Child("bucket"),
			"bucket is required",
		))
	}

	if storage.S3.Endpoint == "" {
		allErrs = append(allErrs, field.Required(
			s3Path.Child("endpoint"),
			"endpoint is required",
		))
	} else if parsed, err := url.Parse(storage.S3.Endpoint); err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		allErrs = append(allErrs, field.Invalid(
			s3Path.Child("endpoint"),
			storage.S3.Endpoint,
			"endpoint must be an http or https URL",
		))
	}

	if storage.S3.SecretName == "" {
		allErrs = append(allErrs, field.Required(
			s3Path.Child("secretName"),
			"secret name is required",
		))
	}

	return allErrs
}
