package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/klind25/finchan"
)

// bank is a toy in-memory account and file store used to demonstrate the
// channel. One instance is shared by all connections.
type bank struct {
	sync.Mutex
	balances map[int64]float64
	files    map[string]string
}

func newBank() *bank {
	return &bank{
		balances: make(map[int64]float64),
		files:    make(map[string]string),
	}
}

func (b *bank) handle(req *finchan.Request) *finchan.Response {
	b.Lock()
	defer b.Unlock()

	switch req.Type {
	case finchan.Deposit:
		b.balances[req.UserID] += req.Amount
		return &finchan.Response{Success: true, Balance: b.balances[req.UserID], Message: "deposited"}

	case finchan.Withdraw:
		if b.balances[req.UserID] < req.Amount {
			return &finchan.Response{Success: false, Balance: b.balances[req.UserID], Message: "insufficient funds"}
		}
		b.balances[req.UserID] -= req.Amount
		return &finchan.Response{Success: true, Balance: b.balances[req.UserID], Message: "withdrawn"}

	case finchan.Balance:
		return &finchan.Response{Success: true, Balance: b.balances[req.UserID], Message: "OK"}

	case finchan.Upload:
		b.files[req.Filename] = req.Data
		return &finchan.Response{Success: true, Message: "stored"}

	case finchan.Download:
		data, ok := b.files[req.Filename]
		if !ok {
			return &finchan.Response{Success: false, Message: "no such file"}
		}
		return &finchan.Response{Success: true, Data: data, Message: "OK"}

	default:
		return &finchan.Response{Success: false, Message: "unsupported operation"}
	}
}

func runClient(port int) {
	ch, err := finchan.Dial("localhost", port)
	if err != nil {
		slog.Error("dial failed", "error", err)
		return
	}
	defer ch.Close()

	requests := []*finchan.Request{
		{Type: finchan.Deposit, UserID: 42, Amount: 100.50},
		{Type: finchan.Withdraw, UserID: 42, Amount: 25},
		{Type: finchan.Balance, UserID: 42},
		{Type: finchan.Upload, Filename: "statement.txt", Data: "hello"},
		{Type: finchan.Download, Filename: "statement.txt"},
	}

	for _, req := range requests {
		resp, err := ch.SendRequest(req)
		if err != nil {
			slog.Error("round failed", "op", req.Type, "error", err)
			return
		}
		slog.Info("round complete", "op", req.Type,
			"success", resp.Success, "balance", resp.Balance, "message", resp.Message)
	}

	// Tell the server to end this connection's loop.
	if err := ch.WriteFrame(mustEncode(&finchan.Request{Type: finchan.Quit})); err != nil {
		slog.Error("quit failed", "error", err)
	}
}

func mustEncode(req *finchan.Request) []byte {
	payload, err := finchan.EncodeRequest(req)
	if err != nil {
		panic(err)
	}
	return payload
}

func main() {
	listener, err := finchan.Listen("127.0.0.1", 9000)
	if err != nil {
		slog.Error("listen failed", "error", err)
		os.Exit(1)
	}

	server := finchan.NewServer(listener)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, finchan.RequestHandler(newBank().handle))
	}()

	runClient(listener.Port())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			slog.Error("server stopped", "error", err)
		}
	}
}
