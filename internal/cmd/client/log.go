package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cacheclient "github.com/rzbill/logcache/internal/client"
	"github.com/rzbill/logcache/internal/logstore"
)

// NewLogCommand constructs the `log` command group. Every subcommand runs one
// session: attach, the operation, then DISCONNECT.
func NewLogCommand() *cobra.Command {
	logCmd := &cobra.Command{Use: "log", Short: "Line-protocol operations on a service log"}
	logCmd.PersistentFlags().StringP("service", "s", "", "Service name")
	logCmd.PersistentFlags().Bool("subscribe", false, "Attach with SUBSCRIBE instead of CONNECT")
	_ = logCmd.MarkPersistentFlagRequired("service")

	logCmd.AddCommand(
		newLogAddCommand(),
		newLogPipeCommand(),
		newLogStatCommand(),
		newLogGetCommand(),
		newLogFlushCommand(),
		newLogUnsubscribeCommand(),
	)
	return logCmd
}

func sessionFlags(cmd *cobra.Command) (service string, subscribe bool) {
	service, _ = cmd.Flags().GetString("service")
	subscribe, _ = cmd.Flags().GetBool("subscribe")
	return service, subscribe
}

// timestampFlag returns --time, defaulting to now.
func timestampFlag(cmd *cobra.Command) string {
	if ts, _ := cmd.Flags().GetString("time"); ts != "" {
		return ts
	}
	return logstore.FormatTime(time.Now())
}

// newLogAddCommand constructs the `log add` subcommand.
func newLogAddCommand() *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Append one record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, subscribe := sessionFlags(cmd)
			ts := timestampFlag(cmd)
			return withSession(cmd.Context(), service, subscribe, func(c *cacheclient.Client) error {
				if err := c.Add(ts, strings.Join(args, " ")); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "log added")
				return nil
			})
		},
	}
	addCmd.Flags().String("time", "", "Record timestamp (default now, "+logstore.TimeLayout+")")
	return addCmd
}

// newLogPipeCommand constructs the `log pipe` subcommand.
func newLogPipeCommand() *cobra.Command {
	pipeCmd := &cobra.Command{
		Use:   "pipe",
		Short: "Append every line read from stdin, stamped with the current time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, subscribe := sessionFlags(cmd)
			flush, _ := cmd.Flags().GetBool("flush")
			return withSession(cmd.Context(), service, subscribe, func(c *cacheclient.Client) error {
				sc := bufio.NewScanner(cmd.InOrStdin())
				n := 0
				for sc.Scan() {
					line := strings.TrimRight(sc.Text(), "\r")
					if line == "" {
						continue
					}
					if err := c.Add(logstore.FormatTime(time.Now()), line); err != nil {
						return fmt.Errorf("line %d: %w", n+1, err)
					}
					n++
				}
				if err := sc.Err(); err != nil {
					return err
				}
				if flush {
					if err := c.Flush(); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added: %d\n", n)
				return nil
			})
		},
	}
	pipeCmd.Flags().Bool("flush", false, "Flush after the last line")
	return pipeCmd
}

// newLogStatCommand constructs the `log stat` subcommand.
func newLogStatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Show server time, memory held and record count",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, subscribe := sessionFlags(cmd)
			return withSession(cmd.Context(), service, subscribe, func(c *cacheclient.Client) error {
				st, err := c.Stat()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "time=%s memory=%dKB logs=%d\n", st.Time, st.MemoryKB, st.Records)
				return nil
			})
		},
	}
}

// newLogGetCommand constructs the `log get` subcommand.
func newLogGetCommand() *cobra.Command {
	getCmd := &cobra.Command{
		Use:     "get",
		Aliases: []string{"getlogs"},
		Short:   "Print records, optionally within [--start, --end]",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, subscribe := sessionFlags(cmd)
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			asJSON, _ := cmd.Flags().GetBool("json")
			if start == "" && end != "" {
				return fmt.Errorf("--end requires --start")
			}
			return withSession(cmd.Context(), service, subscribe, func(c *cacheclient.Client) error {
				recs, err := c.GetLogs(start, end)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					for _, r := range recs {
						_ = enc.Encode(toRecordOut(r))
					}
					return nil
				}
				for _, r := range recs {
					fmt.Fprintf(out, "%s %s\n", r.Timestamp(), r.Text())
				}
				return nil
			})
		},
	}
	getCmd.Flags().String("start", "", "Earliest timestamp (inclusive)")
	getCmd.Flags().String("end", "", "Latest timestamp (inclusive)")
	getCmd.Flags().Bool("json", false, "Print one JSON object per record")
	return getCmd
}

// newLogFlushCommand constructs the `log flush` subcommand.
func newLogFlushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Persist unflushed records to the service file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, subscribe := sessionFlags(cmd)
			return withSession(cmd.Context(), service, subscribe, func(c *cacheclient.Client) error {
				if err := c.Flush(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "flushed")
				return nil
			})
		},
	}
}

// newLogUnsubscribeCommand constructs the `log unsubscribe` subcommand.
func newLogUnsubscribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe",
		Short: "Flush and remove the service from the cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, subscribe := sessionFlags(cmd)
			c, err := attach(cmd.Context(), service, subscribe)
			if err != nil {
				return err
			}
			if err := c.Unsubscribe(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "unsubscribed")
			return nil
		},
	}
}
