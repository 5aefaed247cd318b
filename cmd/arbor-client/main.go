// Command arbor-client is the interactive session shell: it authenticates
// to a Directory, then reads commands from stdin until EXIT.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/arborfs/arbor/internal/cli/prompt"
	"github.com/arborfs/arbor/internal/client"
)

const usage = "usage: arbor-client <directory_ip> <directory_port>"

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	ip := os.Args[1]
	port, err := strconv.Atoi(os.Args[2])
	if err != nil || port < 1025 || port > 65535 {
		fmt.Fprintln(os.Stderr, "arbor-client: directory port must be an integer in [1025, 65535]")
		os.Exit(1)
	}

	identity, err := prompt.InputRequired("identity")
	if err != nil {
		if prompt.IsAborted(err) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "arbor-client: %v\n", err)
		os.Exit(1)
	}

	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	c := client.New(addr, identity, os.Stdout)

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "arbor-client: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	if err := c.Run(ctx, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "arbor-client: %v\n", err)
		os.Exit(1)
	}
}
