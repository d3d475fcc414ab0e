// Package main provides an interactive framed message client CLI.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vitalvas/goframed"
)

func main() {
	var (
		server   = flag.String("server", "localhost:9000", "Server address (host:port)")
		secret   = flag.String("secret", "", "Shared secret presented on the server's auth prompt")
		timeout  = flag.Duration("timeout", 30*time.Second, "Connection timeout")
		useTLS   = flag.Bool("tls", false, "Use TLS")
		insecure = flag.Bool("insecure", false, "Skip TLS certificate verification")
	)
	flag.Parse()

	opts := []goframed.ClientOption{
		goframed.WithTimeout(*timeout),
		goframed.WithMessageHandler(func(msg *goframed.Message) {
			fmt.Printf("<- [status %d] %s\n", msg.Status, string(msg.Payload))
		}),
		goframed.WithDisconnectedHandler(func() {
			log.Println("Disconnected from server")
			os.Exit(0)
		}),
	}

	if *secret != "" {
		opts = append(opts, goframed.WithSecret(*secret))
	}

	if *useTLS {
		opts = append(opts, goframed.WithTLSConfig(
			goframed.NewTLSClientConfig("", *insecure)))
	}

	client := goframed.NewClient(*server, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	log.Printf("Connected to %s. Type a line to send it; Ctrl-D to exit.", *server)

	if *secret != "" {
		authCtx, authCancel := context.WithTimeout(context.Background(), *timeout)
		defer authCancel()
		if err := client.WaitAuthenticated(authCtx); err != nil {
			log.Fatalf("Authentication did not complete: %v", err)
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := client.Send([]byte(line)); err != nil {
			log.Fatalf("Send failed: %v", err)
		}
	}
}
