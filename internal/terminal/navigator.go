package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"orderdesk/internal/feed"
	"orderdesk/internal/model"
)

// Orders is the order command surface of the remote store.
type Orders interface {
	CreateOrder(ctx context.Context, client, title, description string) (model.Order, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	CloseOrder(ctx context.Context, id string) (model.Order, error)
}

// Navigator runs the create form and the detail screen inline.
type Navigator struct {
	ctx      context.Context
	in       *bufio.Reader
	console  *Console
	orders   Orders
	location *time.Location

	// OnError, when set, sees every failed remote call.
	OnError func(error)
}

func NewNavigator(ctx context.Context, in *bufio.Reader, console *Console, orders Orders, loc *time.Location) *Navigator {
	return &Navigator{ctx: ctx, in: in, console: console, orders: orders, location: loc}
}

func (n *Navigator) GoToNew() {
	client, err := prompt(n.in, n.console, "Cliente: ")
	if err != nil {
		return
	}
	title, err := prompt(n.in, n.console, "Título: ")
	if err != nil {
		return
	}
	description, err := prompt(n.in, n.console, "Descrição: ")
	if err != nil {
		return
	}

	order, err := n.orders.CreateOrder(n.ctx, client, title, description)
	if err != nil {
		n.console.Printf("Não foi possivel criar o serviço: %v\n", err)
		n.failed(err)
		return
	}
	n.console.Printf("Serviço %s criado.\n", order.ID)
}

func (n *Navigator) GoToDetail(orderID string) {
	order, err := n.orders.GetOrder(n.ctx, orderID)
	if err != nil {
		n.console.Printf("Não foi possivel abrir o serviço %s: %v\n", orderID, err)
		n.failed(err)
		return
	}
	n.console.Printf("%s", FormatDetail(order, n.location))
}

func (n *Navigator) failed(err error) {
	if n.OnError != nil {
		n.OnError(err)
	}
}

func FormatDetail(o model.Order, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n-- Serviço %s --\n", o.ID)
	fmt.Fprintf(&b, "Cliente:   %s\n", o.Client)
	fmt.Fprintf(&b, "Título:    %s\n", o.Title)
	if o.Description != "" {
		fmt.Fprintf(&b, "Descrição: %s\n", o.Description)
	}
	fmt.Fprintf(&b, "Situação:  %s\n", statusLabel(o.Status))
	fmt.Fprintf(&b, "Criado em: %s\n", feed.FormatWhen(time.UnixMilli(o.CreatedAt), loc))
	if o.ClosedAt > 0 {
		fmt.Fprintf(&b, "Finalizado em: %s\n", feed.FormatWhen(time.UnixMilli(o.ClosedAt), loc))
	}
	return b.String()
}

func prompt(in *bufio.Reader, console *Console, label string) (string, error) {
	console.Printf("%s", label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
