package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"crawlwatch/internal/api"
)

var (
	accountPassword string
	accountsJSON    bool
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage crawler accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List crawler accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadRuntime()
		if err != nil {
			return err
		}
		client, err := env.client()
		if err != nil {
			return err
		}
		accounts, err := client.Accounts(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if accountsJSON {
			return writeJSON(out, accounts)
		}
		if len(accounts) == 0 {
			fmt.Fprintln(out, "No accounts configured.")
			fmt.Fprintln(out, "Add one with: crawlwatch accounts add <username>")
			return nil
		}

		loc := env.cfg.GetLocation()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tSTATUS\tLAST CRAWL")
		fmt.Fprintln(w, "--------\t------\t----------")
		for _, a := range accounts {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.Username, a.Status, describeTime(a.LastCrawl, loc))
		}
		return w.Flush()
	},
}

var accountsAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Validate and add a crawler account",
	Long: `Validate credentials with the crawler and add the account. The password is
read from --password, or from stdin when the flag is omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.TrimSpace(args[0])
		password := accountPassword
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if username == "" || password == "" {
			return fmt.Errorf("username and password are required")
		}

		return withClient(func(c *api.Client) error {
			if err := c.AddAccount(cmd.Context(), api.Credentials{Username: username, Password: password}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s added\n", username)
			return nil
		})
	},
}

var accountsEnableCmd = &cobra.Command{
	Use:   "enable <username>",
	Short: "Enable an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *api.Client) error {
			if err := c.EnableAccount(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s enabled\n", args[0])
			return nil
		})
	},
}

var accountsDisableCmd = &cobra.Command{
	Use:   "disable <username>",
	Short: "Disable an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *api.Client) error {
			if err := c.DisableAccount(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s disabled\n", args[0])
			return nil
		})
	},
}

var accountsEnableAllCmd = &cobra.Command{
	Use:   "enable-all",
	Short: "Enable every account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "All accounts enabled", func(c *api.Client) error {
			return c.EnableAll(cmd.Context())
		})
	},
}

var accountsDisableAllCmd = &cobra.Command{
	Use:   "disable-all",
	Short: "Disable every account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, "All accounts disabled", func(c *api.Client) error {
			return c.DisableAll(cmd.Context())
		})
	},
}

var accountsDeleteYes bool

var accountsDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]
		if !accountsDeleteYes {
			fmt.Fprintf(cmd.ErrOrStderr(), "Delete account %s? [y/N] ", username)
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
				return nil
			}
		}
		return withClient(func(c *api.Client) error {
			if err := c.DeleteAccount(cmd.Context(), username); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s deleted\n", username)
			return nil
		})
	},
}

var accountsTestCmd = &cobra.Command{
	Use:   "test <username>",
	Short: "Run a test crawl for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *api.Client) error {
			res, err := c.TestAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Succeeded() {
				fmt.Fprintf(out, "Test crawl for %s succeeded\n", args[0])
				return nil
			}
			msg := res.Message
			if msg == "" {
				msg = res.TestResult
			}
			return fmt.Errorf("test crawl for %s failed: %s", args[0], msg)
		})
	},
}

func init() {
	accountsListCmd.Flags().BoolVar(&accountsJSON, "json", false, "print raw JSON")
	accountsAddCmd.Flags().StringVar(&accountPassword, "password", "", "account password (read from stdin if omitted)")
	accountsDeleteCmd.Flags().BoolVarP(&accountsDeleteYes, "yes", "y", false, "skip confirmation")

	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsEnableCmd)
	accountsCmd.AddCommand(accountsDisableCmd)
	accountsCmd.AddCommand(accountsEnableAllCmd)
	accountsCmd.AddCommand(accountsDisableAllCmd)
	accountsCmd.AddCommand(accountsDeleteCmd)
	accountsCmd.AddCommand(accountsTestCmd)
}

// withClient loads the config and hands a client to fn
func withClient(fn func(*api.Client) error) error {
	env, err := loadRuntime()
	if err != nil {
		return err
	}
	client, err := env.client()
	if err != nil {
		return err
	}
	return fn(client)
}
