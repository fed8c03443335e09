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
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/util/retry"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// IStatefulSetControl defines the interface that drives rolling upgrades
// through the StatefulSet update strategy.
type IStatefulSetControl interface {
	// GetStatefulSet get the StatefulSet running the cluster members.
	GetStatefulSet(namespace, name string) (*appsv1.StatefulSet, error)
	// GetPartition returns the rolling update partition, 0 when unset.
	GetPartition(namespace, name string) (int32, error)
	// SetPartition sets the rolling update partition. Pods with an ordinal
	// greater than or equal to the partition are recreated from the current
	// pod template, lower ordinals stay on the old revision.
	SetPartition(namespace, name string, partition int32) error
	// SetContainerImage updates the image of the named container in the pod
	// template.
	SetContainerImage(namespace, name, container, image string) error
}

type StatefulSetController struct {
	client client.Client
}

// NewStatefulSetController creates a concrete implementation of the
// IStatefulSetControl.
func NewStatefulSetController(client client.Client) IStatefulSetControl {
	return &StatefulSetController{client: client}
}

// GetStatefulSet implement the IStatefulSetControl.Interface.
func (s *StatefulSetController) GetStatefulSet(namespace, name string) (*appsv1.StatefulSet, error) {
	sts := &appsv1.StatefulSet{}
	err := s.client.Get(context.TODO(), types.NamespacedName{
		Name:      name,
		Namespace: namespace,
	}, sts)
	return sts, err
}

// GetPartition implement the IStatefulSetControl.Interface.
func (s *StatefulSetController) GetPartition(namespace, name string) (int32, error) {
	sts, err := s.GetStatefulSet(namespace, name)
	if err != nil {
		return 0, err
	}

	rollingUpdate := sts.Spec.UpdateStrategy.RollingUpdate
	if rollingUpdate == nil || rollingUpdate.Partition == nil {
		return 0, nil
	}
	return *rollingUpdate.Partition, nil
}

// SetPartition implement the IStatefulSetControl.Interface.
func (s *StatefulSetController) SetPartition(namespace, name string, partition int32) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		sts, err := s.GetStatefulSet(namespace, name)
		if err != nil {
			return err
		}

		sts.Spec.UpdateStrategy = appsv1.StatefulSetUpdateStrategy{
			Type: appsv1.RollingUpdateStatefulSetStrategyType,
			RollingUpdate: &appsv1.RollingUpdateStatefulSetStrategy{
				Partition: ptr.To(partition),
			},
		}
		return s.client.Update(context.TODO(), sts)
	})
}

// SetContainerImage implement the IStatefulSetControl.Interface.
func (s *StatefulSetController) SetContainerImage(namespace, name, container, image string) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		sts, err := s.GetStatefulSet(namespace, name)
		if err != nil {
			return err
		}

		for i := range sts.Spec.Template.Spec.Containers {
			if sts.Spec.Template.Spec.Containers[i].Name != container {
				continue
			}
			if sts.Spec.Template.Spec.Containers[i].Image == image {
				return nil
			}
			sts.Spec.Template.Spec.Containers[i].Image = image
			return s.client.Update(context.TODO(), sts)
		}
		return fmt.Errorf("failed to found container %s in statefulset [%s]", container, name)
	})
}
