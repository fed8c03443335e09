package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/upmio/innodb-cluster-operator/pkg/utils"
	"github.com/upmio/innodb-cluster-operator/pkg/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "innodb-cluster-tool",
	Short:         "Companion tool for the InnoDB Cluster operator: credential encryption and backup inspection",
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	plaintext, key, file, username, base64Text string
)

var stdout bool

// setAESKey wires the key into the encryption helpers. The flag wins over an
// AES_SECRET_KEY already present in the environment.
func setAESKey() error {
	if key != "" {
		if len(key) != 32 {
			return fmt.Errorf("AES key must be exactly 32 characters, got %d characters", len(key))
		}
		if err := os.Setenv(utils.AESKeyEnvVar, key); err != nil {
			return err
		}
	}

	return utils.ValidateAndSetAESKey()
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt an encrypted credential file or base64 ciphertext",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setAESKey(); err != nil {
			return err
		}

		if file != "" && base64Text != "" {
			return fmt.Errorf("cannot specify both --file and --base64")
		}

		switch {
		case file != "":
			encryptedBytes, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read file %s: %v", file, err)
			}

			decrypted, err := utils.AES_CTR_DecryptFromBytes(encryptedBytes)
			if err != nil {
				return fmt.Errorf("failed to decrypt file %s: %v", file, err)
			}

			fmt.Printf("File: %s\n", file)
			fmt.Printf("Decrypted: %s\n", string(decrypted))

		case base64Text != "":
			decrypted, err := utils.AES_CTR_Decrypt(base64Text)
			if err != nil {
				return fmt.Errorf("failed to decrypt ciphertext: %v", err)
			}

			fmt.Printf("Ciphertext: %s\n", base64Text)
			fmt.Printf("Decrypted: %s\n", string(decrypted))

		default:
			return fmt.Errorf("one of --file or --base64 is required")
		}

		return nil
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a credential the way the operator expects secret values",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setAESKey(); err != nil {
			return err
		}

		if plaintext == "" {
			return fmt.Errorf("--plaintext is required")
		}

		encryptedBytes, err := utils.AES_CTR_EncryptToBytes([]byte(plaintext))
		if err != nil {
			return err
		}

		if stdout {
			// Output to stdout
			_, err = os.Stdout.Write(encryptedBytes)
			return err
		}

		if username == "" {
			return fmt.Errorf("--username is required for binary file output")
		}

		// Output to file
		filename := fmt.Sprintf("%s.bin", username)
		err = os.WriteFile(filename, encryptedBytes, 0644)
		if err != nil {
			return fmt.Errorf("failed to write file %s: %v", filename, err)
		}
		fmt.Printf("Plaintext: %s\n", plaintext)
		fmt.Printf("Encrypted and saved to: %s\n", filename)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(encryptCmd)

	encryptCmd.Flags().StringVarP(&plaintext, "plaintext", "p", "", "Plaintext to encrypt")
	encryptCmd.Flags().StringVarP(&key, "key", "k", "", "AES encryption key (32 characters required, falls back to AES_SECRET_KEY)")
	encryptCmd.Flags().StringVarP(&username, "username", "u", "", "Username for binary file output")
	encryptCmd.Flags().BoolVar(&stdout, "stdout", false, "Output encrypted data to stdout instead of file")

	decryptCmd.Flags().StringVarP(&file, "file", "f", "", "Binary file to decrypt")
	decryptCmd.Flags().StringVarP(&base64Text, "base64", "b", "", "Base64 ciphertext to decrypt")
	decryptCmd.Flags().StringVarP(&key, "key", "k", "", "AES encryption key (32 characters required, falls back to AES_SECRET_KEY)")
}
