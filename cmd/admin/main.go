// cmd/admin is the operator CLI, adapted from the teacher's kvcli:
// instead of raw KV put/get, it drives the domain operations an
// operator needs against a running instance — publish a behavior
// event, inspect an order, list live WebSocket sessions, force-expire
// an idempotency key.
//
// Usage:
//
//	medcore-admin record-behavior <course_id> <action>  --server http://localhost:8080 --token ...
//	medcore-admin order <order_id>                      --server http://localhost:8080 --token ...
//	medcore-admin sessions                              --server http://localhost:8080 --token ...
//	medcore-admin expire-idempotency <key>              --server http://localhost:8080 --token ...
//	medcore-admin send <client_id> <message>            --server http://localhost:8080 --token ...
//	medcore-admin broadcast <message>                   --server http://localhost:8080 --token ...
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"medschool-core/internal/adminclient"
)

var (
	serverAddr string
	adminToken string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "medcore-admin",
		Short: "Operator CLI for medschool-core",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:8080", "service address")
	root.PersistentFlags().StringVarP(&adminToken, "token", "t",
		"", "bearer token: the admin token for sessions and expire-idempotency, a user JWT for the other commands")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(recordBehaviorCmd(), orderCmd(), sessionsCmd(), expireIdempotencyCmd(), sendCmd(), broadcastCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── record-behavior ──────────────────────────────────────────────────────────

func recordBehaviorCmd() *cobra.Command {
	var actionValue float64
	var hasValue bool

	cmd := &cobra.Command{
		Use:   "record-behavior <course_id> <action>",
		Short: "Publish one behavior event on a user's behalf",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adminclient.New(serverAddr, adminToken, timeout)
			var value *float64
			if hasValue {
				value = &actionValue
			}
			accepted, err := c.RecordBehavior(context.Background(), args[0], args[1], value)
			if err != nil {
				return err
			}
			fmt.Printf("accepted=%v\n", accepted)
			return nil
		},
	}
	cmd.Flags().Float64Var(&actionValue, "value", 0, "explicit action value, overriding the default weight")
	cmd.Flags().BoolVar(&hasValue, "has-value", false, "set to send --value instead of the default weight")
	return cmd
}

// ─── order ────────────────────────────────────────────────────────────────────

func orderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order <order_id>",
		Short: "Inspect one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adminclient.New(serverAddr, adminToken, timeout)
			order, err := c.GetOrder(context.Background(), args[0])
			if err != nil {
				return err
			}
			prettyPrint(order)
			return nil
		},
	}
}

// ─── sessions ─────────────────────────────────────────────────────────────────

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List live WebSocket sessions on this replica",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adminclient.New(serverAddr, adminToken, timeout)
			ids, err := c.ListSessions(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(ids)
			return nil
		},
	}
}

// ─── expire-idempotency ───────────────────────────────────────────────────────

func expireIdempotencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-idempotency <key>",
		Short: "Force-expire an idempotency key stuck behind a crashed winner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adminclient.New(serverAddr, adminToken, timeout)
			if err := c.ForceExpireIdempotencyKey(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("expired %q\n", args[0])
			return nil
		},
	}
}

// ─── send ─────────────────────────────────────────────────────────────────────

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <client_id> <message>",
		Short: "Deliver a message to one connected WebSocket client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adminclient.New(serverAddr, adminToken, timeout)
			delivered, err := c.SendTo(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("delivered=%v\n", delivered)
			return nil
		},
	}
}

// ─── broadcast ────────────────────────────────────────────────────────────────

func broadcastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast <message>",
		Short: "Fan a message out to every connected WebSocket client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adminclient.New(serverAddr, adminToken, timeout)
			recipients, err := c.Broadcast(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("recipients=%d\n", recipients)
			return nil
		},
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
