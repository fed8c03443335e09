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

// decryptSecret returns the cluster admin password and the backup user
// password from the cluster's credential secret.
func decryptSecret(client client.Client, cluster *icv1alpha1.InnodbCluster) (string, string, error) {
	passwords, err := k8sutil.DecryptSecretPasswords(
		client,
		cluster.Spec.Secret.Name,
		cluster.Namespace,
		[]string{cluster.Spec.Secret.ClusterAdmin, cluster.Spec.Secret.Backup},
	)
	if err != nil {
		return "", "", err
	}

	return passwords[cluster.Spec.Secret.ClusterAdmin], passwords[cluster.Spec.Secret.Backup], nil
}

// newObjectStore builds the store the backup artifacts go to. The access keys
// live in their own secret, encrypted like every other credential.
func newObjectStore(ctx context.Context, c client.Client, instance *icv1alpha1.InnodbBackup, reqLogger logr.Logger) (*objstore.Store, objstore.Config, error) {
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

// backupScript renders the pipeline executed inside the target pod.
// xtrabackup reads from the local server and xbcloud uploads the stream
// chunk by chunk; on success xbcloud writes the md5 object next to the data.
func backupScript(cfg objstore.Config, cluster *icv1alpha1.InnodbCluster, target *icv1alpha1.CommonNode, backupPassword, backupID string) string {
	backupPath := path.Join(cfg.Path, backupID)

	return fmt.Sprintf("ACCESS_KEY_ID=%s SECRET_ACCESS_KEY=%s "+
		"xtrabackup --backup --stream=xbstream --no-version-check --lock-ddl"+
		" --host=%s --port=%d --user=%s --password=%s"+
		" --xtra-lsndir=%s"+
		" | xbcloud put --storage=s3 --md5 --parallel=10 --curl-retriable-errors=7"+
		" --s3-region=%s --s3-bucket=%s --s3-endpoint=%s %s",
		cfg.AccessKey, cfg.SecretKey,
		target.Host, target.Port, cluster.Spec.Secret.Backup, backupPassword,
		backupLSNDir,
		cfg.Region, cfg.Bucket, cfg.Endpoint, backupPath)
}

func memberAddress(node *icv1alpha1.CommonNode) string {
	return net.JoinHostPort(node.Host, strconv.Itoa(node.Port))
}

// memberState reports the group replication state the probe saw for node, or
// MISSING when the probe holds nothing for it.
func memberState(infos *innodbutil.ClusterInfos, node *icv1alpha1.CommonNode) string {
	if info, ok := infos.Infos[memberAddress(node)]; ok {
		return info.State
	}

	return innodbutil.MysqlMissingState
}
