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

package webhook

import (
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/upmio/innodb-cluster-operator/webhook/innodbbackup"
	"github.com/upmio/innodb-cluster-operator/webhook/innodbcluster"
	"github.com/upmio/innodb-cluster-operator/webhook/innodbclusterset"
	"github.com/upmio/innodb-cluster-operator/webhook/innodbrestore"
)

// Setup creates all webhooks and adds them to the supplied manager.
func Setup(mgr ctrl.Manager) error {
	for _, setup := range []func(ctrl.Manager) error{
		innodbcluster.Setup,
		innodbclusterset.Setup,
		innodbbackup.Setup,
		innodbrestore.Setup,
	} {
		if err := setup(mgr); err != nil {
			return err
		}
	}
	return nil
}
