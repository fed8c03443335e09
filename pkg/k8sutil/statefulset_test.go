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

package k8sutil

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

var _ = Describe("StatefulSet Control", func() {
	var (
		k8sClient client.Client
		scheme    *runtime.Scheme
		ctx       context.Context
		control   IStatefulSetControl
	)

	newStatefulSet := func() *appsv1.StatefulSet {
		return &appsv1.StatefulSet{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "mysql",
				Namespace: "default",
			},
			Spec: appsv1.StatefulSetSpec{
				Replicas: ptr.To(int32(3)),
				Template: corev1.PodTemplateSpec{
					Spec: corev1.PodSpec{
						Containers: []corev1.Container{
							{Name: "mysql", Image: "mysql:8.0.36"},
							{Name: "exporter", Image: "mysqld-exporter:0.15"},
						},
					},
				},
			},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		scheme = runtime.NewScheme()
		Expect(appsv1.AddToScheme(scheme)).To(Succeed())
		Expect(corev1.AddToScheme(scheme)).To(Succeed())
		k8sClient = fake.NewClientBuilder().WithScheme(scheme).Build()
		control = NewStatefulSetController(k8sClient)

		Expect(k8sClient.Create(ctx, newStatefulSet())).To(Succeed())
	})

	Describe("GetPartition", func() {
		It("should return zero when the update strategy is unset", func() {
			partition, err := control.GetPartition("default", "mysql")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(partition).To(Equal(int32(0)))
		})

		It("should return the configured partition", func() {
			Expect(control.SetPartition("default", "mysql", 2)).To(Succeed())

			partition, err := control.GetPartition("default", "mysql")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(partition).To(Equal(int32(2)))
		})

		It("should return error when the statefulset does not exist", func() {
			_, err := control.GetPartition("default", "nonexistent")
			Expect(err).Should(HaveOccurred())
		})
	})

	Describe("SetPartition", func() {
		It("should force the rolling update strategy", func() {
			Expect(control.SetPartition("default", "mysql", 1)).To(Succeed())

			sts, err := control.GetStatefulSet("default", "mysql")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(sts.Spec.UpdateStrategy.Type).To(Equal(appsv1.RollingUpdateStatefulSetStrategyType))
			Expect(sts.Spec.UpdateStrategy.RollingUpdate.Partition).To(Equal(ptr.To(int32(1))))
		})
	})

	Describe("SetContainerImage", func() {
		It("should update only the named container", func() {
			Expect(control.SetContainerImage("default", "mysql", "mysql", "mysql:8.0.37")).To(Succeed())

			sts, err := control.GetStatefulSet("default", "mysql")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(sts.Spec.Template.Spec.Containers[0].Image).To(Equal("mysql:8.0.37"))
			Expect(sts.Spec.Template.Spec.Containers[1].Image).To(Equal("mysqld-exporter:0.15"))
		})

		It("should return error when the container is missing", func() {
			err := control.SetContainerImage("default", "mysql", "router", "mysql-router:8.0.37")
			Expect(err).Should(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to found container"))
		})
	})
})
