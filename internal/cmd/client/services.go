package client

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// NewServicesCommand constructs the `services` command group, served by the
// admin HTTP API.
func NewServicesCommand(baseURL BaseURLFunc) *cobra.Command {
	svcCmd := &cobra.Command{Use: "services", Short: "Inspect cached services over the admin API"}
	svcCmd.AddCommand(
		newServicesListCommand(baseURL),
		newServicesLogsCommand(baseURL),
	)
	return svcCmd
}

// printBody copies an API response to out and fails on a non-2xx status.
func printBody(out io.Writer, resp *http.Response) error {
	defer resp.Body.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status: %s", resp.Status)
	}
	return nil
}

// newServicesListCommand constructs the `services list` subcommand.
func newServicesListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List services with their stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, baseURL()+"/v1/services", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			return printBody(cmd.OutOrStdout(), resp)
		},
	}
}

// newServicesLogsCommand constructs the `services logs` subcommand.
func newServicesLogsCommand(baseURL BaseURLFunc) *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Query a service's records with an optional CEL filter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("service")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			q := url.Values{}
			q.Set("name", name)
			if start != "" {
				q.Set("start", start)
			}
			if end != "" {
				q.Set("end", end)
			}
			if filter != "" {
				q.Set("filter", filter)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, baseURL()+"/v1/services/logs?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			return printBody(cmd.OutOrStdout(), resp)
		},
	}
	logsCmd.Flags().StringP("service", "s", "", "Service name")
	logsCmd.Flags().String("start", "", "Earliest timestamp (inclusive)")
	logsCmd.Flags().String("end", "", "Latest timestamp (inclusive)")
	logsCmd.Flags().String("filter", "", `CEL filter, e.g. text.contains("ERROR")`)
	logsCmd.Flags().Int("limit", 0, "Maximum records (0 = all)")
	_ = logsCmd.MarkFlagRequired("service")
	return logsCmd
}

// NewHealthCommand constructs the `health` command, which queries the gRPC
// health service.
func NewHealthCommand() *cobra.Command {
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, _ := cmd.Flags().GetString("grpc-service")
			asJSON, _ := cmd.Flags().GetBool("json")
			conn, err := dialGRPC()
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()
			res, err := healthpb.NewHealthClient(conn).Check(cmd.Context(), &healthpb.HealthCheckRequest{Service: service})
			if err != nil {
				return err
			}
			if asJSON {
				b, err := protojson.Marshal(res)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "status:", res.GetStatus())
			}
			if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("server not serving")
			}
			return nil
		},
	}
	healthCmd.Flags().String("grpc-service", "", "Health service name (empty checks the whole server)")
	healthCmd.Flags().Bool("json", false, "Print the response as protobuf JSON")
	return healthCmd
}
