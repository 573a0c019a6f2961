package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/pquerna/otp"
	otptotp "github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"smartlock-service/config"
	"smartlock-service/internal/app"
	"smartlock-service/internal/domain"
	"smartlock-service/internal/infra"
	"smartlock-service/internal/usecase"
	"smartlock-service/pkg/totp"
)

// openLocal は設定ファイルと環境変数からストアを開く。
// サーバーと同じストアを直接操作するため、実行中のサーバーとの同時書き込みに注意する。
func openLocal(ctx context.Context) (*config.Config, clockwork.Clock, *usecase.CredentialService, func(), error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	clock := infra.NewWallClock(ctx, clockwork.NewRealClock(), cfg.FactoryTime)
	credentials, closeFn, err := app.OpenCredentials(ctx, cfg, clock)
	if err != nil {
		if closeFn != nil {
			closeFn()
		}
		return nil, nil, nil, nil, err
	}
	return cfg, clock, credentials, closeFn, nil
}

// provisionCmd は秘密鍵とリカバリーコードを生成し、登録用URIを表示するコマンド。
func provisionCmd() *cobra.Command {
	var noQR bool
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision the secret and recovery codes and print the enrollment URI",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, credentials, closeFn, err := openLocal(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := credentials.Provision(ctx)
			if err != nil {
				return fmt.Errorf("provisioning failed: %w", err)
			}

			uri, err := enrollmentURI(cfg.DeviceName, result.Secret)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				data, err := json.MarshalIndent(map[string]any{
					"otpauth_uri":      uri,
					"recovery_codes":   result.RecoveryCodes,
					"secret_created":   result.SecretCreated,
					"recovery_created": result.RecoveryCreated,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding output: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if result.SecretCreated {
				fmt.Fprintln(out, "Generated a new secret.")
			}
			fmt.Fprintf(out, "Enrollment URI: %s\n", uri)
			if !noQR {
				qr, err := qrcode.New(uri, qrcode.Medium)
				if err != nil {
					return fmt.Errorf("rendering QR code: %w", err)
				}
				fmt.Fprint(out, qr.ToSmallString(false))
			}

			if result.RecoveryCreated {
				fmt.Fprintln(out, "Generated new recovery codes.")
			}
			fmt.Fprintf(out, "Recovery codes (%d remaining):\n", result.RecoveryCodes.Remaining())
			for i, code := range result.RecoveryCodes {
				if code == domain.ConsumedRecoveryCode {
					code = "(used)"
				}
				fmt.Fprintf(out, "  %d. %s\n", i+1, code)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "Do not render the enrollment QR code")
	return cmd
}

// enrollmentURI は認証アプリ登録用のotpauth URIを生成する。
func enrollmentURI(deviceName string, secret domain.Secret) (string, error) {
	key, err := otptotp.Generate(otptotp.GenerateOpts{
		Issuer:      deviceName,
		AccountName: deviceName,
		Period:      uint(totp.Period / time.Second),
		Secret:      secret.Bytes(),
		SecretSize:  uint(len(secret.Bytes())),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("building enrollment URI: %w", err)
	}
	return key.URL(), nil
}

// codeCmd は現在のTOTPコードを表示するコマンド。
func codeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code",
		Short: "Print the current TOTP code from the stored secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, clock, credentials, closeFn, err := openLocal(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			secret, err := credentials.GetSecret(ctx)
			if err != nil {
				return fmt.Errorf("failed to read secret: %w", err)
			}

			now := clock.Now()
			code := totp.Generate(secret.Bytes(), now)
			step := int64(totp.Period / time.Second)
			remaining := step - now.Unix()%step

			if output == "json" {
				fmt.Fprintf(cmd.OutOrStdout(), "{\"code\":%q,\"valid_for\":%d}\n", code, remaining)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (valid for %ds)\n", code, remaining)
			return nil
		},
	}
}

// eraseCmd はストアの内容をすべて消去するコマンド。
func eraseCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase the secret, recovery codes and audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("erase is destructive, pass --yes to confirm")
			}
			ctx := cmd.Context()
			_, _, credentials, closeFn, err := openLocal(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := credentials.Erase(ctx); err != nil {
				return fmt.Errorf("erase failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Store erased. Run provision to create new credentials.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm erasing the store")
	return cmd
}

// printLocalLogs はストアから直接監査ログを読んで表示する。
func printLocalLogs(ctx context.Context, w io.Writer) error {
	_, _, credentials, closeFn, err := openLocal(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := credentials.ReadLogs(ctx)
	if err != nil {
		return fmt.Errorf("failed to read logs: %w", err)
	}
	for _, entry := range entries {
		fmt.Fprintln(w, entry.String())
	}
	return nil
}
