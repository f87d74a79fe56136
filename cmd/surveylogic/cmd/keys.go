package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/surveylogic/internal/core/auth"
	"github.com/solatis/surveylogic/internal/core/config"
	"github.com/solatis/surveylogic/internal/core/db"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an API key under the newest HMAC secret",
	Long: `Issues an API key for a client and prints it once. Only the key's HMAC
hash is stored, so a lost key cannot be recovered; revoke it and issue another.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, _ := cmd.Flags().GetString("client")
		name, _ := cmd.Flags().GetString("name")

		authenticator, closeDB, err := openAuthenticator(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		issued, err := authenticator.CreateAPIKey(cmd.Context(), clientID, name)
		if err != nil {
			return err
		}
		logger.Info("issued API key", "api_key_id", issued.APIKeyID, "client_id", issued.ClientID, "secret_id", issued.SecretID)
		fmt.Fprintf(cmd.OutOrStdout(), "api_key_id: %s\napi_key:    %s\n", issued.APIKeyID, issued.Key)
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		authenticator, closeDB, err := openAuthenticator(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := authenticator.RevokeAPIKey(cmd.Context(), args[0]); err != nil {
			return err
		}
		logger.Info("revoked API key", "api_key_id", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCreateCmd, keysRevokeCmd)
	keysCreateCmd.Flags().String("client", "", "client the key authenticates as (required)")
	keysCreateCmd.Flags().String("name", "", "human-readable key label")
	keysCreateCmd.MarkFlagRequired("client")
}

func openAuthenticator(cmd *cobra.Command) (*auth.Authenticator, func(), error) {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}

	database, err := openDatabase(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}

	return auth.NewAuthenticator(secrets, queries), func() { database.Close() }, nil
}
