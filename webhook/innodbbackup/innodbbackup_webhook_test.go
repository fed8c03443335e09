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
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/upmio/innodb-cluster-operator/api/v1alpha1"
)

func TestInnodbBackupWebhook(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "InnodbBackup Webhook Suite")
}

var _ = Describe("InnodbBackup Webhook", func() {

	var iba = innodbBackupAdmission{}
	var instance *v1alpha1.InnodbBackup

	BeforeEach(func() {
		instance = &v1alpha1.InnodbBackup{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "test-innodb-backup",
				Namespace: "default",
			},
			Spec: v1alpha1.InnodbBackupSpec{
				ClusterName: "mysql",
				Storage: v1alpha1.BackupStorage{
					S3: &v1alpha1.S3Storage{
						Bucket:     "innodb-backups",
						Endpoint:   "http://minio.default.svc.cluster.local:9000",
						Region:     "us-east-1",
						Path:       "prod/mysql",
						SecretName: "backup-storage-secret",
					},
				},
			},
		}
	})

	Context("When creating InnodbBackup under Defaulting Webhook", func() {
		It("Should fill in the default region", func() {
			instance.Spec.Storage.S3.Region = ""

			err := iba.Default(context.TODO(), instance)
			Expect(err).NotTo(HaveOccurred())

			Expect(instance.Spec.Storage.S3.Region).To(Equal("us-east-1"))
		})

		It("Should not override an existing region", func() {
			instance.Spec.Storage.S3.Region = "eu-west-1"

			err := iba.Default(context.TODO(), instance)
			Expect(err).NotTo(HaveOccurred())

			Expect(instance.Spec.Storage.S3.Region).To(Equal("eu-west-1"))
		})

		It("Should tolerate a missing s3 section", func() {
			instance.Spec.Storage.S3 = nil

			err := iba.Default(context.TODO(), instance)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("When creating InnodbBackup under Validating Webhook", func() {
		It("Should accept a valid InnodbBackup", func() {
			warnings, err := iba.ValidateCreate(context.TODO(), instance)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(HaveLen(0))
		})

		It("Should deny if cluster name is empty", func() {
			instance.Spec.ClusterName = ""

			_, err := iba.ValidateCreate(context.TODO(), instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("cluster name is required"))
		})

		It("Should deny if s3 storage is missing", func() {
			instance.Spec.Storage.S3 = nil

			_, err := iba.ValidateCreate(context.TODO(), instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("s3 storage configuration is required"))
		})

		It("Should deny if bucket is empty", func() {
			instance.Spec.Storage.S3.Bucket = ""

			_, err := iba.ValidateCreate(context.TODO(), instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("bucket is required"))
		})

		It("Should deny if endpoint is not a URL", func() {
			instance.Spec.Storage.S3.Endpoint = "minio.default.svc.cluster.local:9000"

			_, err := iba.ValidateCreate(context.TODO(), instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("endpoint must be an http or https URL"))
		})

		It("Should deny if storage secret name is empty", func() {
			instance.Spec.Storage.S3.SecretName = ""

			_, err := iba.ValidateCreate(context.TODO(), instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("secret name is required"))
		})
	})

	Context("When updating InnodbBackup under Validating Webhook", func() {
		It("Should deny if cluster reference is changed", func() {
			oldInstance := instance.DeepCopy()
			instance.Spec.ClusterName = "other-mysql"

			_, err := iba.ValidateUpdate(context.TODO(), oldInstance, instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("cluster reference cannot be changed after creation"))
		})

		It("Should deny if storage is changed", func() {
			oldInstance := instance.DeepCopy()
			instance.Spec.Storage.S3.Bucket = "other-bucket"

			_, err := iba.ValidateUpdate(context.TODO(), oldInstance, instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("storage configuration cannot be changed after creation"))
		})

		It("Should accept an unchanged spec", func() {
			oldInstance := instance.DeepCopy()

			warnings, err := iba.ValidateUpdate(context.TODO(), oldInstance, instance)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(HaveLen(0))
		})
	})

	Context("When deleting InnodbBackup under Validating Webhook", func() {
		It("Should warn that storage objects are kept", func() {
			warnings, err := iba.ValidateDelete(context.TODO(), instance)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0]).To(ContainSubstring("Objects already uploaded to storage are kept"))
		})
	})
})
