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

package innodbbackup

import (
	"context"
	"net/url"
	"reflect"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	"github.com/upmio/innodb-cluster-operator/api/v1alpha1"
)

// log is for logging in this package.
var innodbbackuplog = ctrl.Log.WithName("innodb-backup").WithValues("version", "v1alpha1")

type innodbBackupAdmission struct {
}

// Setup will setup the manager to manage the webhooks
func Setup(mgr ctrl.Manager) error {
	return ctrl.NewWebhookManagedBy(mgr).
		For(&v1alpha1.InnodbBackup{}).
		WithValidator(&innodbBackupAdmission{}).
		WithDefaulter(&innodbBackupAdmission{}).
		Complete()
}

//+kubebuilder:webhook:path=/mutate-upm-syntropycloud-io-v1alpha1-innodbbackup,mutating=true,failurePolicy=fail,sideEffects=None,groups=upm.syntropycloud.io,resources=innodbbackups,verbs=create;update,versions=v1alpha1,name=minnodbbackup.kb.io,admissionReviewVersions=v1

var _ webhook.CustomDefaulter = &innodbBackupAdmission{}

// Default implements webhook.Defaulter so a webhook will be registered for the type
func (r *innodbBackupAdmission) Default(ctx context.Context, obj runtime.Object) error {
	instance := obj.(*v1alpha1.InnodbBackup)
	innodbbackuplog.Info("default", "name", instance.Name)

	if instance.Spec.Storage.S3 != nil && instance.Spec.Storage.S3.Region == "" {
		instance.Spec.Storage.S3.Region = "us-east-1"
	}

	return nil
}

// TODO(user): change verbs to "verbs=create;update;delete" if you want to enable deletion validation.
//+kubebuilder:webhook:path=/validate-upm-syntropycloud-io-v1alpha1-innodbbackup,mutating=false,failurePolicy=fail,sideEffects=None,groups=upm.syntropycloud.io,resources=innodbbackups,verbs=create;update,versions=v1alpha1,name=vinnodbbackup.kb.io,admissionReviewVersions=v1

var _ webhook.CustomValidator = &innodbBackupAdmission{}

// ValidateCreate implements webhook.Validator so a webhook will be registered for the type
func (r *innodbBackupAdmission) ValidateCreate(ctx context.Context, newObj runtime.Object) (warnings admission.Warnings, err error) {
	instance := newObj.(*v1alpha1.InnodbBackup)
	innodbbackuplog.Info("validate create", "name", instance.Name)

	return r.validateInnodbBackup(instance)
}

// ValidateUpdate implements webhook.Validator so a webhook will be registered for the type
func (r *innodbBackupAdmission) ValidateUpdate(ctx context.Context, oldObj runtime.Object, newObj runtime.Object) (warnings admission.Warnings, err error) {
	instance := newObj.(*v1alpha1.InnodbBackup)

	innodbbackuplog.Info("validate update", "name", instance.Name)

	oldIB := oldObj.(*v1alpha1.InnodbBackup)

	// Validate the new object
	warnings, err = r.validateInnodbBackup(instance)
	if err != nil {
		return warnings, err
	}

	// A backup runs once; the spec is frozen so a mid-run edit cannot
	// redirect the upload
	var allErrs field.ErrorList

	if oldIB.Spec.ClusterName != instance.Spec.ClusterName {
		allErrs = append(allErrs, field.Invalid(
			field.NewPath("spec").Child("clusterName"),
			instance.Spec.ClusterName,
			"cluster reference cannot be changed after creation",
		))
	}

	if !reflect.DeepEqual(oldIB.Spec.Storage, instance.Spec.Storage) {
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
func (r *innodbBackupAdmission) ValidateDelete(ctx context.Context, obj runtime.Object) (warnings admission.Warnings, err error) {
	instance := obj.(*v1alpha1.InnodbBackup)

	innodbbackuplog.Info("validate delete", "name", instance.Name)

	// Deleting the object never deletes the artifacts
	warnings = append(warnings, "Deleting InnodbBackup removes only the record of the run. Objects already uploaded to storage are kept, use the list-backups tooling to manage them.")

	return warnings, nil
}

// validateInnodbBackup performs comprehensive validation of InnodbBackup spec
func (r *innodbBackupAdmission) validateInnodbBackup(instance *v1alpha1.InnodbBackup) (admission.Warnings, error) {
	var allErrs field.ErrorList
	var warnings admission.Warnings

	// Validate the cluster reference
	if instance.Spec.ClusterName == "" {
		allErrs = append(allErrs, field.Required(
			field.NewPath("spec").Child("clusterName"),
			"cluster name is required",
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

// validateStorage validates the object storage location shared by backup and
// restore specs.
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
