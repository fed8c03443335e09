package main

import (
	"github.com/upmio/innodb-cluster-operator/tool/cmd"
)

func main() {
	cmd.Execute()
}
