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

// Package databag stores the coordination state clusters exchange during
// reconciliation. A bag is a sectioned key-value view over one ConfigMap;
// every section has exactly one legitimate writer and the bag enforces that
// ownership on the write path.
package databag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// TypeLabelKey marks a ConfigMap as a databag and names its flavor.
	TypeLabelKey = "innodb-cluster-operator/databag.type"

	peerBagType     = "peer"
	relationBagType = "relation"

	appSection  = "app"
	unitSection = "unit"
)

var (
	// ErrNotLeader rejects app section writes from a non-leader identity.
	ErrNotLeader = errors.New("app databag writes require leadership")

	// ErrNotOwner rejects writes to a section owned by another writer.
	ErrNotOwner = errors.New("databag section is owned by another writer")
)

// store carries the ConfigMap plumbing shared by the bag flavors.
type store struct {
	client    client.Client
	namespace string
	name      string
	bagType   string
	ownerRefs []metav1.OwnerReference
}

func (s *store) fetch(ctx context.Context) (*corev1.ConfigMap, error) {
	foundConfigMap := &corev1.ConfigMap{}

	err := s.client.Get(ctx, types.NamespacedName{
		Name:      s.name,
		Namespace: s.namespace,
	}, foundConfigMap)
	if err != nil {
		return nil, err
	}

	return foundConfigMap, nil
}

func (s *store) get(ctx context.Context, key string) (string, bool, error) {
	foundConfigMap, err := s.fetch(ctx)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("failed to fetch databag [%s]: %w", s.name, err)
	}

	value, ok := foundConfigMap.Data[key]
	return value, ok, nil
}

func (s *store) section(ctx context.Context, prefix string) (map[string]string, error) {
	foundConfigMap, err := s.fetch(ctx)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return map[string]string{}, nil
		}

		return nil, fmt.Errorf("failed to fetch databag [%s]: %w", s.name, err)
	}

	values := make(map[string]string)
	for key, value := range foundConfigMap.Data {
		if strings.HasPrefix(key, prefix) {
			values[strings.TrimPrefix(key, prefix)] = value
		}
	}

	return values, nil
}

func (s *store) set(ctx context.Context, key, value string) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		foundConfigMap, err := s.fetch(ctx)
		if err != nil {
			if apierrors.IsNotFound(err) {
				return s.client.Create(ctx, &corev1.ConfigMap{
					ObjectMeta: metav1.ObjectMeta{
						Name:      s.name,
						Namespace: s.namespace,
						Labels: map[string]string{
							TypeLabelKey: s.bagType,
						},
						OwnerReferences: s.ownerRefs,
					},
					Data: map[string]string{key: value},
				})
			}

			return fmt.Errorf("failed to fetch databag [%s]: %w", s.name, err)
		}

		if foundConfigMap.Data == nil {
			foundConfigMap.Data = make(map[string]string)
		}

		if current, ok := foundConfigMap.Data[key]; ok && current == value {
			return nil
		}

		foundConfigMap.Data[key] = value
		return s.client.Update(ctx, foundConfigMap)
	})
}

func (s *store) delete(ctx context.Context, key string) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		foundConfigMap, err := s.fetch(ctx)
		if err != nil {
			if apierrors.IsNotFound(err) {
				return nil
			}

			return fmt.Errorf("failed to fetch databag [%s]: %w", s.name, err)
		}

		if _, ok := foundConfigMap.Data[key]; !ok {
			return nil
		}

		delete(foundConfigMap.Data, key)
		return s.client.Update(ctx, foundConfigMap)
	})
}

func (s *store) deleteSection(ctx context.Context, prefix string) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		foundConfigMap, err := s.fetch(ctx)
		if err != nil {
			if apierrors.IsNotFound(err) {
				return nil
			}

			return fmt.Errorf("failed to fetch databag [%s]: %w", s.name, err)
		}

		changed := false
		for key := range foundConfigMap.Data {
			if strings.HasPrefix(key, prefix) {
				delete(foundConfigMap.Data, key)
				changed = true
			}
		}

		if !changed {
			return nil
		}

		return s.client.Update(ctx, foundConfigMap)
	})
}

func (s *store) destroy(ctx context.Context) error {
	foundConfigMap, err := s.fetch(ctx)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("failed to fetch databag [%s]: %w", s.name, err)
	}

	if err := s.client.Delete(ctx, foundConfigMap); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete databag [%s]: %w", s.name, err)
	}

	return nil
}

func sectionKey(section, key string) string {
	return section + "." + key
}

func sortedKeys(values map[string]struct{}) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}
