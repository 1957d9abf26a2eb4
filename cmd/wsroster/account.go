package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meszmate/wsroster/internal/config"
	"github.com/meszmate/wsroster/internal/xmpp"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage configured accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace an account",
	Long: `Add an account to accounts.toml. An existing account with the same
bare JID is replaced.`,
	RunE: runAccountAdd,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured accounts",
	RunE:  runAccountList,
}

var newAccount config.Account

func init() {
	f := accountAddCmd.Flags()
	f.StringVar(&newAccount.JID, "jid", "", "account address, optionally with a resource")
	f.StringVar(&newAccount.Password, "password", "", "account password")
	f.StringVar(&newAccount.ServiceURL, "service-url", "", "service address; ws(s):// is used as given, http(s):// gets /xmpp-websocket")
	f.StringVar(&newAccount.Resource, "resource", "", "resource to bind (default: generated)")
	f.IntVar(&newAccount.TimeoutMs, "timeout-ms", 0, "handshake timeout in milliseconds (0 disables)")
	f.BoolVar(&newAccount.AutoReconnect, "auto-reconnect", true, "reconnect after the connection drops")
	f.IntVar(&newAccount.ReconnectIntervalMs, "reconnect-interval-ms", int(xmpp.DefaultReconnectInterval.Milliseconds()), "delay between reconnect attempts")
	_ = accountAddCmd.MarkFlagRequired("jid")
	_ = accountAddCmd.MarkFlagRequired("service-url")

	accountCmd.AddCommand(accountAddCmd, accountListCmd)
}

func runAccountAdd(cmd *cobra.Command, args []string) error {
	if err := newAccount.Validate(); err != nil {
		return err
	}

	accounts, err := loadAccounts()
	if err != nil {
		return err
	}
	accounts.Upsert(newAccount)
	if err := saveAccounts(accounts); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved account %s (%s)\n", newAccount.JID, xmpp.WebSocketURL(newAccount.ServiceURL))
	return nil
}

func runAccountList(cmd *cobra.Command, args []string) error {
	accounts, err := loadAccounts()
	if err != nil {
		return err
	}
	if len(accounts.Accounts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts configured")
		return nil
	}
	for _, a := range accounts.Accounts {
		reconnect := "off"
		if a.AutoReconnect {
			reconnect = "on"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\treconnect:%s\n", a.JID, xmpp.WebSocketURL(a.ServiceURL), reconnect)
	}
	return nil
}
