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

package innodbutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	// ClusterSetChannelOn replication channel io thread is connected
	ClusterSetChannelOn = "ON"
	// ClusterSetChannelOff replication channel is configured but stopped
	ClusterSetChannelOff = "OFF"
	// ClusterSetChannelConnecting replication channel io thread is still connecting
	ClusterSetChannelConnecting = "CONNECTING"
	// ClusterSetChannelUnset replication channel is not configured
	ClusterSetChannelUnset = ""
)

// SetClusterSetChannel points the asynchronous cluster-set channel of the
// member at addr to the donor endpoint of the primary cluster.
func (a *ClusterAdmin) SetClusterSetChannel(ctx context.Context, addr, sourceHost string, sourcePort int, replicationUser, replicationPassword string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if _, err := c.Exec(ctx, setClusterSetChannelSQL, sourceHost, sourcePort, replicationUser, replicationPassword); err != nil {
		return fmt.Errorf("failed to execute 'CHANGE REPLICATION SOURCE TO...' for channel 'clusterset_replication' on [%s]: %v", addr, err)
	}

	return nil
}

// StartClusterSetChannel start the cluster-set replication channel
func (a *ClusterAdmin) StartClusterSetChannel(ctx context.Context, addr string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if _, err := c.Exec(ctx, startClusterSetChannelSQL); err != nil {
		return fmt.Errorf("failed to execute 'START REPLICA' for channel 'clusterset_replication' on [%s]: %v", addr, err)
	}

	return nil
}

// StopClusterSetChannel stop the cluster-set replication channel
func (a *ClusterAdmin) StopClusterSetChannel(ctx context.Context, addr string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if _, err := c.Exec(ctx, stopClusterSetChannelSQL); err != nil {
		return fmt.Errorf("failed to execute 'STOP REPLICA' for channel 'clusterset_replication' on [%s]: %v", addr, err)
	}

	return nil
}

// ResetClusterSetChannel drops the cluster-set channel configuration so the
// cluster can later be re-paired from scratch.
func (a *ClusterAdmin) ResetClusterSetChannel(ctx context.Context, addr string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if err := a.StopClusterSetChannel(ctx, addr); err != nil {
		return err
	}

	if _, err := c.Exec(ctx, resetClusterSetChannelSQL); err != nil {
		return fmt.Errorf("failed to execute 'RESET REPLICA ALL' for channel 'clusterset_replication' on [%s]: %v", addr, err)
	}

	return nil
}

// GetClusterSetChannelState returns the io thread state of the cluster-set
// channel on addr. ClusterSetChannelUnset means the channel was never
// configured there.
func (a *ClusterAdmin) GetClusterSetChannelState(ctx context.Context, addr string) (string, error) {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return "", err
	}

	var state string
	if err := c.QueryRow(ctx, &state, getClusterSetChannelStateSQL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ClusterSetChannelUnset, nil
		}

		return "", fmt.Errorf("failed to query channel 'clusterset_replication' state on [%s]: %v", addr, err)
	}

	return state, nil
}

// SetSyncedUserPasswords rewrites the passwords of accounts that arrived on
// the replica through the donor snapshot, so both clusters share one set of
// credentials. The statement text never carries the password thanks to
// client side interpolation.
func (a *ClusterAdmin) SetSyncedUserPasswords(ctx context.Context, addr string, passwords map[string]string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	for user, password := range passwords {
		if _, err := c.Exec(ctx, alterUserPasswordSQL, user, password); err != nil {
			return fmt.Errorf("failed to alter password of user '%s' on [%s]: %v", user, addr, err)
		}
	}

	return nil
}

// ReloadTLS makes the server re-read its certificate and key files without a
// restart.
func (a *ClusterAdmin) ReloadTLS(ctx context.Context, addr string) error {
	c, err := a.cnx.Get(addr)
	if err != nil {
		return err
	}

	if _, err := c.Exec(ctx, reloadTLSSQL); err != nil {
		return fmt.Errorf("failed to execute 'ALTER INSTANCE RELOAD TLS' on [%s]: %v", addr, err)
	}

	return nil
}
