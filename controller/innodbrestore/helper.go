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
	"fmt"
	"net"
	"path"
	"strconv"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	icv1alpha1 "github.com/upmio/innodb-cluster-operator/api/v1alpha1"
	"github.com/upmio/innodb-cluster-operator/pkg/innodbutil"
	"github.com/upmio/innodb-cluster-operator/pkg/k8sutil"
	"github.com/upmio/innodb-cluster-operator/pkg/objstore"
)

// newClusterAdmin builds and returns a new innodbutil.IClusterAdmin over the
// cluster's member list.
func newClusterAdmin(cluster *icv1alpha1.InnodbCluster, password string, reqLogger logr.Logger) innodbutil.IClusterAdmin {
	nodesAddrs := make([]string, 0)

	for _, node := range cluster.Spec.Member {
		nodesAddrs = append(nodesAddrs, memberAddress(node))
		reqLogger.V(4).Info("append innodb cluster admin node addr", "host", node.Host, "port", node.Port)
	}

	adminConfig := innodbutil.AdminOptions{
		ConnectionTimeout: 2,
		Username:          cluster.Spec.Secret.ClusterAdmin,
		Password:          password,
	}

	return innodbutil.NewClusterAdmin(nodesAddrs, &adminConfig, reqLogger)
}

// decryptSecret returns the cluster admin password and the recovery channel
// password from the cluster's credential secret.
func decryptSecret(client client.Client, cluster *icv1alpha1.InnodbCluster) (string, string, error) {
	passwords, err := k8sutil.DecryptSecretPasswords(
		client,
		cluster.Spec.Secret.Name,
		cluster.Namespace,
		[]string{cluster.Spec.Secret.ClusterAdmin, cluster.Spec.Secret.ServerConfig},
	)
	if err != nil {
		return "", "", err
	}

	return passwords[cluster.Spec.Secret.ClusterAdmin], passwords[cluster.Spec.Secret.ServerConfig], nil
}

// newObjectStore builds the store the backup is fetched from. The access keys
// live in their own secret, encrypted like every other credential.
func newObjectStore(ctx context.Context, c client.Client, instance *icv1alpha1.InnodbRestore, reqLogger logr.Logger) (*objstore.Store, objstore.Config, error) {
	s3 := instance.Spec.Storage.S3
	if s3 == nil {
		return nil, objstore.Config{}, fmt.Errorf("spec.storage.s3 must be set")
	}

	credentials, err := k8sutil.DecryptSecretPasswords(
		c,
		s3.SecretName,
		instance.Namespace,
		[]string{s3AccessKeyName, s3SecretKeyName},
	)
	if err != nil {
		return nil, objstore.Config{}, err
	}

	cfg := objstore.Config{
		Bucket:    s3.Bucket,
		Endpoint:  s3.Endpoint,
		Region:    s3.Region,
		Path:      s3.Path,
		AccessKey: credentials[s3AccessKeyName],
		SecretKey: credentials[s3SecretKeyName],
	}

	store, err := objstore.New(ctx, cfg, reqLogger)
	if err != nil {
		return nil, objstore.Config{}, err
	}

	return store, cfg, nil
}

// restoreTarget is the member the backup lands on. handleRestore refuses to
// run with anything but one member, so the first entry is the whole cluster.
func restoreTarget(syncCtx *syncContext) *icv1alpha1.CommonNode {
	return syncCtx.cluster.Spec.Member[0]
}

func stopServerScript() string {
	return "supervisorctl stop mysqld"
}

func startServerScript() string {
	return "supervisorctl start mysqld"
}

// fetchScript stages the backup from object storage: xbcloud pulls the
// chunks and xbstream unpacks them into the staging directory.
func fetchScript(cfg objstore.Config, backupID string) string {
	backupPath := path.Join(cfg.Path, backupID)

	return fmt.Sprintf("rm -rf %s && mkdir -p %s && "+
		"ACCESS_KEY_ID=%s SECRET_ACCESS_KEY=%s "+
		"xbcloud get --storage=s3 --parallel=10 --curl-retriable-errors=7"+
		" --s3-region=%s --s3-bucket=%s --s3-endpoint=%s %s"+
		" | xbstream -x -C %s --parallel=4",
		restoreTempDir, restoreTempDir,
		cfg.AccessKey, cfg.SecretKey,
		cfg.Region, cfg.Bucket, cfg.Endpoint, backupPath,
		restoreTempDir)
}

// prepareScript replays the redo log captured during the backup so the
// staged files are consistent before they replace the datadir.
func prepareScript() string {
	return fmt.Sprintf("xtrabackup --prepare --no-version-check --rollback-prepared-trx --target-dir=%s", restoreTempDir)
}

func wipeDataDirScript() string {
	return fmt.Sprintf("find %s -mindepth 1 -delete", mysqlDataDir)
}

func moveBackScript() string {
	return fmt.Sprintf("xtrabackup --move-back --no-version-check --target-dir=%s --datadir=%s && chown -R mysql:mysql %s",
		restoreTempDir, mysqlDataDir, mysqlDataDir)
}

func cleanupTempScript() string {
	return fmt.Sprintf("rm -rf %s", restoreTempDir)
}

func memberAddress(node *icv1alpha1.CommonNode) string {
	return net.JoinHostPort(node.Host, strconv.Itoa(node.Port))
}
