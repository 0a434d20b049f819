package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"finnguide/internal/infra/config"
)

const configKeyEnv = "FINNGUIDE_CONFIG_KEY"

func newEncryptCmd() *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "encrypt [value]",
		Short: "Encrypt a secret for use as an api_key in config.yaml",
		Long: "Encrypt a value with the " + configKeyEnv + " passphrase. The output can be\n" +
			"pasted into config.yaml; it is decrypted on load when the same passphrase is set.\n" +
			"Without an argument the value is read from stdin.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				passphrase = os.Getenv(configKeyEnv)
			}
			if passphrase == "" {
				return fmt.Errorf("no passphrase: set %s or pass --key", configKeyEnv)
			}

			var value string
			if len(args) == 1 {
				value = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read value: %w", err)
				}
				value = strings.TrimRight(line, "\r\n")
			}
			if value == "" {
				return errors.New("value must not be empty")
			}

			encrypted, err := config.EncryptValue(value, passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.SecretPrefix+encrypted)
			return nil
		},
	}
	cmd.Flags().StringVar(&passphrase, "key", "", "passphrase, defaults to $"+configKeyEnv)
	return cmd
}
