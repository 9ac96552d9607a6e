package main

import (
	"log"

	"github.com/spf13/cobra"

	internalssh "crawlwatch/internal/ssh"
)

var (
	sshListen         string
	sshHostKey        string
	sshAuthorizedKeys string
)

var sshCmd = &cobra.Command{
	Use:   "ssh-server",
	Short: "Serve the dashboard over SSH",
	Long: `Start an SSH server that serves the crawler dashboard. Every session gets
its own dashboard and its own push channel connection.

  ssh -p 2222 user@localhost

Clients authenticate with a public key from the authorized_keys file; manage
it with 'crawlwatch ssh-keys'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadRuntime()
		if err != nil {
			return err
		}

		hostKey, authKeys := env.sshPaths()
		if sshHostKey != "" {
			hostKey = sshHostKey
		}
		if sshAuthorizedKeys != "" {
			authKeys = sshAuthorizedKeys
		}
		listen := sshListen
		if !cmd.Flags().Changed("listen") && env.cfg.SSH.ListenAddr != "" {
			listen = env.cfg.SSH.ListenAddr
		}

		dashboard := env.dashboardConfig(nil)
		store, err := env.openHistory()
		if err != nil {
			log.Printf("Warning: history unavailable: %v", err)
		} else {
			defer store.Close()
			dashboard.History = store
		}

		config := internalssh.SSHConfig{
			ListenAddr:         listen,
			HostKeyPath:        hostKey,
			AuthorizedKeysPath: authKeys,
			Dashboard:          dashboard,
		}

		server, err := internalssh.NewServer(config)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		log.Printf("SSH server listening on %s", config.ListenAddr)
		return internalssh.ListenAndServe(ctx, server)
	},
}

func init() {
	sshCmd.Flags().StringVar(&sshListen, "listen", internalssh.DefaultListenAddr, "SSH listen address")
	sshCmd.Flags().StringVar(&sshHostKey, "host-key", "", "path to SSH host key (default: <data dir>/ssh/ssh_host_key)")
	sshCmd.Flags().StringVar(&sshAuthorizedKeys, "authorized-keys", "", "path to authorized_keys file (default: <data dir>/ssh/authorized_keys)")
}
