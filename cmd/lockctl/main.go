// Package main はCLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	rootCmd := &cobra.Command{
		Use:   "lockctl",
		Short: "Smart Lock CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("LOCKCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set LOCKCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(provisionCmd())
	rootCmd.AddCommand(codeCmd())
	rootCmd.AddCommand(eraseCmd())
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lockctl version %s\n", version)
		},
	}
}

// submitCmd はコードを入力特性に書き込むコマンド。
func submitCmd() *cobra.Command {
	var asHex bool
	cmd := &cobra.Command{
		Use:   "submit <code>",
		Short: "Submit a TOTP or recovery code to the lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set LOCKCTL_API_URL)")
			}

			payload, err := encodePayload(args[0], asHex)
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s/v1/characteristics/input", apiURL)
			resp, err := httpClient.Post(url, "application/octet-stream", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			// 拒否(403)も判定結果として表示する
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusForbidden {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var result struct {
				Decision string `json:"decision"`
				State    string `json:"state"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Printf("%s (lock: %s)\n", result.Decision, result.State)
			if resp.StatusCode == http.StatusForbidden {
				return fmt.Errorf("access denied")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asHex, "hex", false, "Send the code as 3 raw bytes decoded from 6 hex digits")
	return cmd
}

// encodePayload は送信するペイロードを組み立てる。
func encodePayload(code string, asHex bool) ([]byte, error) {
	if !asHex {
		return []byte(code), nil
	}
	b, err := hex.DecodeString(code)
	if err != nil {
		return nil, fmt.Errorf("invalid hex code: %w", err)
	}
	if len(b) != 3 {
		return nil, fmt.Errorf("hex code must decode to 3 bytes, got %d", len(b))
	}
	return b, nil
}

// statusCmd は施錠状態を表示するコマンド。
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the lock state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set LOCKCTL_API_URL)")
			}

			url := fmt.Sprintf("%s/v1/lock", apiURL)
			resp, err := httpClient.Get(url)
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var result struct {
				DeviceName    string `json:"device_name"`
				State         string `json:"state"`
				RelockPending bool   `json:"relock_pending"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Printf("Device:  %s\n", result.DeviceName)
			fmt.Printf("State:   %s\n", result.State)
			if result.RelockPending {
				fmt.Println("Relock:  pending")
			}
			return nil
		},
	}
}

// logsCmd は監査ログを表示するコマンド。
func logsCmd() *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if local {
				return printLocalLogs(cmd.Context(), cmd.OutOrStdout())
			}
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set LOCKCTL_API_URL)")
			}

			url := fmt.Sprintf("%s/v1/logs", apiURL)
			resp, err := httpClient.Get(url)
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}
			fmt.Print(string(body))
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Read the audit log directly from the configured store")
	return cmd
}

// handleErrorResponse はエラーレスポンスを処理する。
func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("Error: %s", errResp.Message)
	}
	return fmt.Errorf("Error: server returned status %d", statusCode)
}
