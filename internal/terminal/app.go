package terminal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
	"orderdesk/internal/feed"
	"orderdesk/internal/model"
	"orderdesk/internal/remote"
	"orderdesk/internal/session"
	"orderdesk/internal/view"
)

// PasswordFunc reads a password after printing label.
type PasswordFunc func(label string) (string, error)

// TerminalPassword reads from fd without echo when fd is a terminal and falls
// back to a plain line read otherwise.
func TerminalPassword(fd int, in *bufio.Reader, console *Console) PasswordFunc {
	return func(label string) (string, error) {
		if !term.IsTerminal(fd) {
			return prompt(in, console, label)
		}
		console.Printf("%s", label)
		raw, err := term.ReadPassword(fd)
		console.Println()
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

// Register creates an account before the first sign in.
type Register func(ctx context.Context, email, password string) error

type App struct {
	In       *bufio.Reader
	Console  *Console
	Password PasswordFunc
	Session  *session.Manager
	Orders   Orders
	Feed     *feed.Synchronizer
	Location *time.Location

	// Whoami, when set, checks the session against the server on entering
	// the home screen and returns the signed in e-mail.
	Whoami func(ctx context.Context) (string, error)

	// Email prefills the sign in prompt when set.
	Email    string
	Register Register
}

var errQuit = errors.New("quit")

// Run alternates between the sign in screen and the home screen until the
// operator quits or input ends.
func (a *App) Run(ctx context.Context) error {
	a.Session.OnChange(func(s session.State) {
		if s.IsSubmitting {
			a.Console.Println("Entrando...")
		}
	})

	for {
		if err := a.signIn(ctx); err != nil {
			return quitToNil(err)
		}
		if err := a.home(ctx); err != nil {
			return quitToNil(err)
		}
	}
}

func quitToNil(err error) error {
	if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (a *App) signIn(ctx context.Context) error {
	for !a.Session.State().Authenticated {
		email := a.Email
		if email == "" {
			var err error
			if email, err = prompt(a.In, a.Console, "E-mail: "); err != nil {
				return err
			}
		}
		password, err := a.Password("Senha: ")
		if err != nil {
			return err
		}

		if a.Register != nil && email != "" && password != "" {
			if err := a.Register(ctx, email, password); err != nil {
				a.Console.Printf("Não foi possivel cadastrar: %v\n", err)
				a.Email = ""
				continue
			}
			a.Register = nil
		}

		if err := a.Session.SignIn(ctx, email, password); err != nil {
			alert := session.AlertFor(err)
			a.Console.Printf("%s: %s\n", alert.Title, alert.Message)
			a.Email = ""
		}
	}
	return nil
}

const homeHelp = "Comandos: open | closed | new | detail <id> | close <id> | logout | quit\n"

func (a *App) home(ctx context.Context) error {
	var expireOnce sync.Once
	checkAuth := func(err error) {
		if !errors.Is(err, remote.ErrUnauthorized) {
			return
		}
		expireOnce.Do(func() {
			a.Session.Expire()
			a.Console.Println("Sessão expirada. Entre novamente.")
		})
	}
	signedIn := func() bool { return a.Session.State().Authenticated }

	if a.Whoami != nil {
		email, err := a.Whoami(ctx)
		switch {
		case errors.Is(err, remote.ErrUnauthorized):
			checkAuth(err)
			return nil
		case err != nil:
			a.Console.Printf("Não foi possivel verificar a sessão: %v\n", err)
		default:
			a.Console.Printf("Conectado como %s\n", email)
		}
	}

	removeWatch := a.Feed.Observe(func(st feed.State) {
		if st.Err != nil {
			checkAuth(st.Err)
		}
	})
	defer removeWatch()

	nav := NewNavigator(ctx, a.In, a.Console, a.Orders, a.Location)
	nav.OnError = checkAuth
	ctrl := view.NewController(a.Feed, nav, NewRenderer(a.Console))
	defer ctrl.Close()

	if err := ctrl.Start(); err != nil {
		return err
	}
	a.Console.Printf("%s", homeHelp)

	for signedIn() {
		line, err := prompt(a.In, a.Console, "> ")
		if err != nil {
			return err
		}
		if !signedIn() {
			break
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "":
		case "open":
			_ = ctrl.SetStatusFilter(model.StatusOpen)
		case "closed":
			_ = ctrl.SetStatusFilter(model.StatusClosed)
		case "new":
			ctrl.OpenCreate()
		case "detail":
			if arg == "" {
				a.Console.Println("Uso: detail <id>")
				continue
			}
			ctrl.OpenDetail(arg)
		case "close":
			if arg == "" {
				a.Console.Println("Uso: close <id>")
				continue
			}
			if _, err := a.Orders.CloseOrder(ctx, arg); err != nil {
				a.Console.Printf("Não foi possivel finalizar o serviço: %v\n", err)
				checkAuth(err)
			}
		case "logout":
			if err := a.Session.SignOut(ctx); err != nil {
				alert := session.AlertFor(err)
				a.Console.Printf("%s: %s\n", alert.Title, alert.Message)
				continue
			}
			return nil
		case "quit", "exit":
			return errQuit
		default:
			a.Console.Printf("%s", homeHelp)
		}
	}
	return nil
}
