package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	internalssh "crawlwatch/internal/ssh"
)

var (
	sshKeysPath    string
	sshHostKeyPath string
	sshKeysJSON    bool
)

// keyPaths prefers the flags and falls back to the config and data directory
func keyPaths() (hostKey, authorizedKeys string, err error) {
	if sshKeysPath == "" || sshHostKeyPath == "" {
		env, err := loadRuntime()
		if err != nil {
			return "", "", err
		}
		hostKey, authorizedKeys = env.sshPaths()
	}
	if sshHostKeyPath != "" {
		hostKey = sshHostKeyPath
	}
	if sshKeysPath != "" {
		authorizedKeys = sshKeysPath
	}
	return hostKey, authorizedKeys, nil
}

// onAuthorizedKeys resolves the authorized_keys path before running fn
func onAuthorizedKeys(fn func(cmd *cobra.Command, path string, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_, path, err := keyPaths()
		if err != nil {
			return err
		}
		return fn(cmd, path, args)
	}
}

// readKeyArg accepts a key string, a .pub file path, or "-" for stdin
func readKeyArg(arg string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	switch {
	case arg == "-":
		data, err = io.ReadAll(stdin)
	case strings.HasPrefix(arg, "ssh-") || strings.HasPrefix(arg, "ecdsa-"):
		return strings.TrimSpace(arg), nil
	default:
		if _, statErr := os.Stat(arg); statErr != nil {
			return strings.TrimSpace(arg), nil
		}
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

var sshKeysCmd = &cobra.Command{
	Use:   "ssh-keys",
	Short: "Manage who may open the dashboard over SSH",
	Long: `List, add and remove the public keys accepted by 'crawlwatch ssh-server'.
A running server picks up changes on the next login.`,
}

var sshKeysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List authorized public keys",
	RunE: onAuthorizedKeys(func(cmd *cobra.Command, path string, _ []string) error {
		entries, err := internalssh.ListAuthorizedKeys(path)
		if err != nil {
			return fmt.Errorf("failed to list keys: %w", err)
		}

		out := cmd.OutOrStdout()
		if sshKeysJSON {
			type row struct {
				Fingerprint string `json:"fingerprint"`
				Type        string `json:"type"`
				Comment     string `json:"comment,omitempty"`
			}
			rows := make([]row, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, row{e.Fingerprint, e.Type, e.Comment})
			}
			return writeJSON(out, rows)
		}
		if len(entries) == 0 {
			fmt.Fprintf(out, "No keys in %s\nAdd one with: crawlwatch ssh-keys add ~/.ssh/id_ed25519.pub\n", path)
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FINGERPRINT\tTYPE\tCOMMENT")
		for _, e := range entries {
			comment := e.Comment
			if comment == "" {
				comment = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Fingerprint, e.Type, comment)
		}
		return w.Flush()
	}),
}

var sshKeysAddCmd = &cobra.Command{
	Use:   "add <key | file.pub | ->",
	Short: "Authorize a public key",
	Long: `Authorize a public key. Pass the key itself, a public key file such as
~/.ssh/id_ed25519.pub, or - to read it from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: onAuthorizedKeys(func(cmd *cobra.Command, path string, args []string) error {
		key, err := readKeyArg(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		entry, err := internalssh.AddAuthorizedKey(path, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Authorized %s key %s\n", entry.Type, entry.Fingerprint)
		return nil
	}),
}

var sshKeysRemoveCmd = &cobra.Command{
	Use:   "remove <fingerprint>",
	Short: "Revoke a public key by fingerprint",
	Long:  "Revoke a key. 'crawlwatch ssh-keys list' shows fingerprints; the SHA256: prefix is optional.",
	Args:  cobra.ExactArgs(1),
	RunE: onAuthorizedKeys(func(cmd *cobra.Command, path string, args []string) error {
		if err := internalssh.RemoveAuthorizedKey(path, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s\n", args[0])
		return nil
	}),
}

var sshKeysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty authorized_keys file",
	RunE: func(cmd *cobra.Command, args []string) error {
		hostKey, authKeys, err := keyPaths()
		if err != nil {
			return err
		}
		res, err := internalssh.InitKeys(hostKey, authKeys)
		if err != nil {
			return err
		}

		state := "exists"
		if res.Created {
			state = "created"
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "authorized_keys: %s (%s)\n", res.AuthorizedKeysPath, state)
		fmt.Fprintf(out, "host key:        %s (generated on first server start)\n", res.HostKeyPath)
		return nil
	},
}

func init() {
	sshKeysCmd.PersistentFlags().StringVar(&sshKeysPath, "authorized-keys", "", "authorized_keys file (default <data dir>/ssh/authorized_keys)")
	sshKeysInitCmd.Flags().StringVar(&sshHostKeyPath, "host-key", "", "SSH host key (default <data dir>/ssh/ssh_host_key)")
	sshKeysListCmd.Flags().BoolVar(&sshKeysJSON, "json", false, "print keys as JSON")

	sshKeysCmd.AddCommand(sshKeysListCmd, sshKeysAddCmd, sshKeysRemoveCmd, sshKeysInitCmd)
}
