package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/happyhackingspace/workbox"
	"github.com/happyhackingspace/workbox/pkg/llm"
)

func main() {
	dir := flag.String("dir", ".", "Directory to load as the workspace")
	readPath := flag.String("read", "", "Read a file from the workspace and exit")
	listPath := flag.Bool("list", false, "List the workspace root and exit")
	background := flag.Bool("background", false, "Run the command in the background")
	timeout := flag.Duration("timeout", 5*time.Minute, "Command timeout")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `workbox - Run shell commands against a simulated workspace

Usage:
  workbox [flags] <command>
  echo "make test" | workbox [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  workbox 'grep -r TODO src/'
  workbox -dir ~/project 'go test ./...'
  workbox -read main.go
  workbox -background 'sleep 30 && make build'

Environment Variables:
  ANTHROPIC_API_KEY - Enables LLM-backed read summaries and edit reapply
`)
	}

	flag.Parse()

	if *version {
		fmt.Println("workbox version 0.1.0")
		return
	}

	opts := []workbox.Option{}
	if *verbose {
		logger, err := workbox.NewDevelopmentLogger()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		opts = append(opts, workbox.WithLogger(logger))
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		svc, err := llm.NewAnthropic("", "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, workbox.WithLLM(svc))
	}

	ws, err := workbox.Open(*dir, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer ws.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch {
	case *readPath != "":
		err = readFile(ctx, ws, *readPath)
	case *listPath:
		err = listRoot(ws)
	default:
		err = runCommand(ctx, ws, *background)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getCommand(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	return "", nil
}

func runCommand(ctx context.Context, ws *workbox.Workspace, background bool) error {
	command, err := getCommand(flag.Args())
	if err != nil {
		return err
	}
	if command == "" {
		flag.Usage()
		os.Exit(1)
	}

	result, err := ws.RunCommand(ctx, command, background)
	if err != nil {
		return err
	}

	if result.Background {
		fmt.Printf("Started in background (pid %d)\n", result.PID)
		return nil
	}
	if result.Stdout != "" {
		fmt.Print(result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprint(os.Stderr, result.Stderr)
	}
	return nil
}

func readFile(ctx context.Context, ws *workbox.Workspace, path string) error {
	result, err := ws.ReadFile(ctx, path, 1, 250, false)
	if err != nil {
		return err
	}
	for _, line := range result.Content {
		fmt.Print(line)
	}
	if result.TruncationSummary != "" {
		fmt.Fprintf(os.Stderr, "\n[%s]\n", result.TruncationSummary)
	}
	return nil
}

func listRoot(ws *workbox.Workspace) error {
	entries, err := ws.ListDirectory("")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDirectory {
			fmt.Printf("%-10s %s/\n", "-", e.Name)
			continue
		}
		fmt.Printf("%-10d %s\n", e.SizeBytes, e.Name)
	}
	return nil
}
