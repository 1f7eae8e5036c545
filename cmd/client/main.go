package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"orderdesk/internal/config"
	"orderdesk/internal/feed"
	"orderdesk/internal/remote"
	"orderdesk/internal/session"
	"orderdesk/internal/terminal"
)

func main() {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatal(err)
	}

	fs := flag.NewFlagSet("orderdesk", flag.ExitOnError)
	serverURL := fs.String("server", cfg.ServerURL, "orderdesk server URL")
	email := fs.String("email", "", "sign in with this e-mail")
	register := fs.Bool("register", false, "create the account before signing in")
	timezone := fs.String("timezone", "", "IANA time zone used to display dates")
	verbose := fs.BoolP("verbose", "v", false, "log connection errors to stderr")
	_ = fs.Parse(os.Args[1:])

	if *timezone != "" {
		loc, err := time.LoadLocation(*timezone)
		if err != nil {
			log.Fatalf("invalid --timezone: %v", err)
		}
		cfg.Location = loc
	}
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	client, err := remote.New(*serverURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx := context.Background()
	in := bufio.NewReader(os.Stdin)
	console := terminal.NewConsole(os.Stdout)
	app := &terminal.App{
		In:       in,
		Console:  console,
		Password: terminal.TerminalPassword(int(os.Stdin.Fd()), in, console),
		Session:  session.NewManager(client),
		Orders:   client,
		Feed:     feed.New(client, feed.WithLocation(cfg.Location)),
		Location: cfg.Location,
		Email:    *email,
		Whoami: func(ctx context.Context) (string, error) {
			me, err := client.Me(ctx)
			return me.Email, err
		},
	}
	if *register {
		app.Register = client.Register
	}

	if err := app.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = client.SignOut(ctx)
}
