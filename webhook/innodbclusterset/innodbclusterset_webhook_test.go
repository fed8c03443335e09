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
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/upmio/innodb-cluster-operator/api/v1alpha1"
)

func TestInnodbClusterSetWebhook(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "InnodbClusterSet Webhook Suite")
}

var _ = Describe("InnodbClusterSet Webhook", func() {

	var icsa = innodbClusterSetAdmission{}
	var instance *v1alpha1.InnodbClusterSet

	BeforeEach(func() {
		instance = &v1alpha1.InnodbClusterSet{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "test-innodb-cluster-set",
				Namespace: "default",
			},
			Spec: v1alpha1.InnodbClusterSetSpec{
				Role:            v1alpha1.InnodbClusterSetRolePrimary,
				ClusterName:     "mysql",
				RelationBagName: "mysql-pairing",
				Secret: v1alpha1.InnodbClusterSetSecret{
					Name:         "mysql-secret",
					ClusterAdmin: "clusterAdmin",
					ServerConfig: "serverConfig",
				},
			},
		}
	})

	Context("When creating InnodbClusterSet under Defaulting Webhook", func() {
		It("Should fill in the default values for secret keys", func() {
			instance.Spec.Secret = v1alpha1.InnodbClusterSetSecret{
				Name: "mysql-secret",
			}

			err := icsa.Default(context.TODO(), instance)
			Expect(err).NotTo(HaveOccurred())

			Expect(instance.Spec.Secret.ClusterAdmin).To(Equal("clusterAdmin"))
			Expect(instance.Spec.Secret.ServerConfig).To(Equal("serverConfig"))
		})

		It("Should not default the relation bag name", func() {
			instance.Spec.RelationBagName = ""

			err := icsa.Default(context.TODO(), instance)
			Expect(err).NotTo(HaveOccurred())

			Expect(instance.Spec.RelationBagName).To(BeEmpty())
		})
	})

	Context("When creating InnodbClusterSet under Validating Webhook", func() {
		It("Should accept a valid InnodbClusterSet", func() {
			warnings, err := icsa.ValidateCreate(context.TODO(), instance)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(HaveLen(0))
		})

		It("Should deny if role is empty", func() {
			instance.Spec.Role = ""

			_, err := icsa.ValidateCreate(context.TODO(), instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("role is required"))
		})

		It("Should deny an unknown role", func() {
			instance.Spec.Role = "Observer"

			_, err := icsa.ValidateCreate(context.TODO(), instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("supported values"))
		})

		It("Should deny if cluster name is empty", func() {
			instance.Spec.ClusterName = ""

			_, err := icsa.ValidateCreate(context.TODO(), instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("cluster name is required"))
		})

		It("Should deny if relation bag name is empty", func() {
			instance.Spec.RelationBagName = ""

			_, err := icsa.ValidateCreate(context.TODO(), instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("relation bag name is required"))
		})

		It("Should deny if secret name is empty", func() {
			instance.Spec.Secret.Name = ""

			_, err := icsa.ValidateCreate(context.TODO(), instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("secret name is required"))
		})
	})

	Context("When updating InnodbClusterSet under Validating Webhook", func() {
		It("Should deny if role is changed", func() {
			oldInstance := instance.DeepCopy()
			instance.Spec.Role = v1alpha1.InnodbClusterSetRoleReplica

			_, err := icsa.ValidateUpdate(context.TODO(), oldInstance, instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("role cannot be changed after creation"))
		})

		It("Should deny if secret name is changed", func() {
			oldInstance := instance.DeepCopy()
			instance.Spec.Secret.Name = "new-secret"

			_, err := icsa.ValidateUpdate(context.TODO(), oldInstance, instance)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("secret reference cannot be changed after creation"))
		})

		It("Should warn when changing the relation bag", func() {
			oldInstance := instance.DeepCopy()
			instance.Spec.RelationBagName = "another-pairing"

			warnings, err := icsa.ValidateUpdate(context.TODO(), oldInstance, instance)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0]).To(ContainSubstring("severs the established pairing"))
		})

		It("Should warn when changing the cluster reference", func() {
			oldInstance := instance.DeepCopy()
			instance.Spec.ClusterName = "other-mysql"

			warnings, err := icsa.ValidateUpdate(context.TODO(), oldInstance, instance)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0]).To(ContainSubstring("re-targets the pairing"))
		})
	})

	Context("When deleting InnodbClusterSet under Validating Webhook", func() {
		It("Should provide warning about teardown", func() {
			warnings, err := icsa.ValidateDelete(context.TODO(), instance)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0]).To(ContainSubstring("dissolves the replica cluster"))
		})
	})
})
