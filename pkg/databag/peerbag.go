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
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Identity names the actor a peer bag performs writes for. Unit is the member
// whose section the actor may write; Leader additionally grants the app
// section.
type Identity struct {
	Unit   string
	Leader bool
}

// PeerBag is the shared state bag of one cluster. The app section carries
// cluster-wide state, each unit section carries the state of one member.
// Reads are open; writes are checked against the bag's identity.
type PeerBag struct {
	store
	identity Identity
}

// NewPeerBag returns a peer bag over the named ConfigMap acting as identity.
// The ConfigMap is created on first write with the given owner references.
func NewPeerBag(c client.Client, namespace, name string, identity Identity, ownerRefs []metav1.OwnerReference) *PeerBag {
	return &PeerBag{
		store: store{
			client:    c,
			namespace: namespace,
			name:      name,
			bagType:   peerBagType,
			ownerRefs: ownerRefs,
		},
		identity: identity,
	}
}

// ForUnit derives a bag acting for the given unit. Leadership carries over.
func (b *PeerBag) ForUnit(unit string) *PeerBag {
	return &PeerBag{
		store:    b.store,
		identity: Identity{Unit: unit, Leader: b.identity.Leader},
	}
}

// AppGet reads a key from the app section.
func (b *PeerBag) AppGet(ctx context.Context, key string) (string, bool, error) {
	return b.get(ctx, sectionKey(appSection, key))
}

// AppSet writes a key into the app section. Only the leader may write it.
func (b *PeerBag) AppSet(ctx context.Context, key, value string) error {
	if !b.identity.Leader {
		return ErrNotLeader
	}

	return b.set(ctx, sectionKey(appSection, key), value)
}

// AppDelete removes a key from the app section. Only the leader may write it.
func (b *PeerBag) AppDelete(ctx context.Context, key string) error {
	if !b.identity.Leader {
		return ErrNotLeader
	}

	return b.delete(ctx, sectionKey(appSection, key))
}

// UnitGet reads a key from any unit's section.
func (b *PeerBag) UnitGet(ctx context.Context, unit, key string) (string, bool, error) {
	return b.get(ctx, sectionKey(unitSection, unit+"."+key))
}

// UnitSet writes a key into the section of the unit the bag acts for.
func (b *PeerBag) UnitSet(ctx context.Context, key, value string) error {
	if b.identity.Unit == "" {
		return ErrNotOwner
	}

	return b.set(ctx, sectionKey(unitSection, b.identity.Unit+"."+key), value)
}

// UnitDelete removes a key from the section of the unit the bag acts for.
func (b *PeerBag) UnitDelete(ctx context.Context, key string) error {
	if b.identity.Unit == "" {
		return ErrNotOwner
	}

	return b.delete(ctx, sectionKey(unitSection, b.identity.Unit+"."+key))
}

// UnitSection returns all keys of one unit's section.
func (b *PeerBag) UnitSection(ctx context.Context, unit string) (map[string]string, error) {
	return b.section(ctx, sectionKey(unitSection, unit+"."))
}

// PurgeUnit drops the whole section of a departed unit. Only the leader may
// purge.
func (b *PeerBag) PurgeUnit(ctx context.Context, unit string) error {
	if !b.identity.Leader {
		return ErrNotLeader
	}

	return b.deleteSection(ctx, sectionKey(unitSection, unit+"."))
}

// Units lists the units holding at least one key in the bag.
func (b *PeerBag) Units(ctx context.Context) ([]string, error) {
	values, err := b.section(ctx, unitSection+".")
	if err != nil {
		return nil, err
	}

	units := make(map[string]struct{})
	for key := range values {
		if idx := strings.Index(key, "."); idx > 0 {
			units[key[:idx]] = struct{}{}
		}
	}

	return sortedKeys(units), nil
}
