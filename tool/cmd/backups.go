package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/upmio/innodb-cluster-operator/pkg/objstore"
)

var (
	bucket, endpoint, region, prefix string
	accessKey, secretKey             string
)

// listBackupsCmd inspects the backup artifacts the operator wrote to object
// storage, classified the same way the restore controller validates them.
var listBackupsCmd = &cobra.Command{
	Use:   "list-backups",
	Short: "List the backups stored under an S3 prefix with their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if bucket == "" {
			return fmt.Errorf("--bucket is required")
		}
		if endpoint == "" {
			return fmt.Errorf("--endpoint is required")
		}

		// flags win over the environment, same precedence as the AES key
		if accessKey == "" {
			accessKey = os.Getenv("ACCESS_KEY_ID")
		}
		if secretKey == "" {
			secretKey = os.Getenv("SECRET_ACCESS_KEY")
		}
		if accessKey == "" || secretKey == "" {
			return fmt.Errorf("access credentials are required, pass --access-key/--secret-key or set ACCESS_KEY_ID/SECRET_ACCESS_KEY")
		}

		cfg := objstore.Config{
			Bucket:    bucket,
			Endpoint:  endpoint,
			Region:    region,
			Path:      prefix,
			AccessKey: accessKey,
			SecretKey: secretKey,
		}

		store, err := objstore.New(cmd.Context(), cfg, zap.New(zap.UseDevMode(false)))
		if err != nil {
			return fmt.Errorf("failed to open object storage: %v", err)
		}

		records, err := store.ListBackups(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list backups: %v", err)
		}

		fmt.Print(objstore.FormatBackupsTable(records))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listBackupsCmd)

	listBackupsCmd.Flags().StringVar(&bucket, "bucket", "", "Bucket holding the backup objects")
	listBackupsCmd.Flags().StringVar(&endpoint, "endpoint", "", "S3-compatible endpoint URL")
	listBackupsCmd.Flags().StringVar(&region, "region", "us-east-1", "Bucket region")
	listBackupsCmd.Flags().StringVar(&prefix, "path", "", "Object key prefix the backups are stored under")
	listBackupsCmd.Flags().StringVar(&accessKey, "access-key", "", "Access key ID (falls back to ACCESS_KEY_ID)")
	listBackupsCmd.Flags().StringVar(&secretKey, "secret-key", "", "Secret access key (falls back to SECRET_ACCESS_KEY)")
}
