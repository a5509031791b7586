package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/celerix-dev/celerix-lock/pkg/sdk"
)

func main() {
	addr := pflag.StringP("addr", "a", "", "lock address (default $"+sdk.AddrEnv+" or "+sdk.DefaultAddr+")")
	timeout := pflag.DurationP("timeout", "t", 15*time.Second, "overall request timeout")
	pflag.Usage = printUsage
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	var client *sdk.Client
	var err error
	if *addr != "" {
		client, err = sdk.Connect(*addr)
	} else {
		client, err = sdk.FromEnv()
	}
	if err != nil {
		log.Fatalf("Failed to configure client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	command := strings.ToLower(args[0])
	args = args[1:]

	switch command {
	case "unlock":
		if len(args) < 1 {
			log.Fatal("Usage: celerix-lock unlock <pin> [name]")
		}
		name := "CLI"
		if len(args) > 1 {
			name = strings.Join(args[1:], " ")
		}
		if err := client.Unlock(ctx, args[0], name); err != nil {
			log.Fatal(err)
		}
		fmt.Println("OK")

	case "status":
		st, err := client.Status(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(st)

	case "settings":
		if len(args) < 3 {
			log.Fatal("Usage: celerix-lock settings <name> <pin> key=value...")
		}
		values, err := parseSettings(args[2:])
		if err != nil {
			log.Fatal(err)
		}
		if err := client.UpdateSettings(ctx, args[0], args[1], values); err != nil {
			log.Fatal(err)
		}
		fmt.Println("OK")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

// textSettings are always sent as strings so a numeric pin stays a pin.
var textSettings = map[string]bool{"lock_name": true, "pin": true}

// parseSettings reads key=value pairs. Values that parse as JSON keep
// their type, anything else is sent as a string.
func parseSettings(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		var val any = v
		if !textSettings[k] {
			if err := json.Unmarshal([]byte(v), &val); err != nil {
				val = v
			}
		}
		values[k] = val
	}
	return values, nil
}

func printUsage() {
	fmt.Println("Celerix Lock CLI - Interface for the lock's local API")
	fmt.Println("\nUsage:")
	fmt.Println("  celerix-lock [flags] unlock <pin> [name]")
	fmt.Println("  celerix-lock [flags] status")
	fmt.Println("  celerix-lock [flags] settings <name> <pin> key=value...")
	fmt.Println("\nFlags:")
	pflag.PrintDefaults()
	fmt.Println("\nEnvironment Variables:")
	fmt.Printf("  %s    Address of the lock (default: %s)\n", sdk.AddrEnv, sdk.DefaultAddr)
}

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(bytes))
}
