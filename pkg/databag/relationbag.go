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

package databag

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/client"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
)

// RelationBag is the pairing bag two clusters share while negotiating
// cluster-set replication. Each side writes its own section and reads the
// other side's. The bag ConfigMap carries no owner references, the primary
// side controls its lifecycle through Destroy.
type RelationBag struct {
	store
	side icv1alpha1.InnodbClusterSetRole
}

// NewRelationBag returns a relation bag over the named ConfigMap acting for
// one side of the pairing.
func NewRelationBag(c client.Client, namespace, name string, side icv1alpha1.InnodbClusterSetRole) *RelationBag {
	return &RelationBag{
		store: store{
			client:    c,
			namespace: namespace,
			name:      name,
			bagType:   relationBagType,
		},
		side: side,
	}
}

func (b *RelationBag) ownSection() (string, error) {
	switch b.side {
	case icv1alpha1.InnodbClusterSetRolePrimary:
		return "primary", nil
	case icv1alpha1.InnodbClusterSetRoleReplica:
		return "replica", nil
	}

	return "", ErrNotOwner
}

func (b *RelationBag) peerSection() (string, error) {
	switch b.side {
	case icv1alpha1.InnodbClusterSetRolePrimary:
		return "replica", nil
	case icv1alpha1.InnodbClusterSetRoleReplica:
		return "primary", nil
	}

	return "", ErrNotOwner
}

// Set writes a key into the bag's own section.
func (b *RelationBag) Set(ctx context.Context, key, value string) error {
	section, err := b.ownSection()
	if err != nil {
		return err
	}

	return b.set(ctx, sectionKey(section, key), value)
}

// Get reads a key from the bag's own section.
func (b *RelationBag) Get(ctx context.Context, key string) (string, bool, error) {
	section, err := b.ownSection()
	if err != nil {
		return "", false, err
	}

	return b.get(ctx, sectionKey(section, key))
}

// Delete removes a key from the bag's own section.
func (b *RelationBag) Delete(ctx context.Context, key string) error {
	section, err := b.ownSection()
	if err != nil {
		return err
	}

	return b.delete(ctx, sectionKey(section, key))
}

// PeerGet reads a key from the other side's section.
func (b *RelationBag) PeerGet(ctx context.Context, key string) (string, bool, error) {
	section, err := b.peerSection()
	if err != nil {
		return "", false, err
	}

	return b.get(ctx, sectionKey(section, key))
}

// Section returns all keys this side has published.
func (b *RelationBag) Section(ctx context.Context) (map[string]string, error) {
	section, err := b.ownSection()
	if err != nil {
		return nil, err
	}

	return b.section(ctx, section+".")
}

// PeerSection returns all keys the other side published.
func (b *RelationBag) PeerSection(ctx context.Context) (map[string]string, error) {
	section, err := b.peerSection()
	if err != nil {
		return nil, err
	}

	return b.section(ctx, section+".")
}

// Clear drops the bag's own section, announcing departure to the other side.
func (b *RelationBag) Clear(ctx context.Context) error {
	section, err := b.ownSection()
	if err != nil {
		return err
	}

	return b.deleteSection(ctx, section+".")
}

// Destroy removes the backing ConfigMap. The pairing lifecycle belongs to the
// primary side; replicas must Clear instead.
func (b *RelationBag) Destroy(ctx context.Context) error {
	if b.side != icv1alpha1.InnodbClusterSetRolePrimary {
		return ErrNotOwner
	}

	return b.destroy(ctx)
}
