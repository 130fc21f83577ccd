package session

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Observer receives connection-level events from every client a [Store] opens.
// Implementations must be cheap and must not call back into the store.
type Observer interface {
	DialFailed(ctx context.Context, addr string, err error)
	CommandDone(ctx context.Context, name string, elapsed time.Duration, err error)
}

// NewObserverHook adapts an [Observer] to the go-redis hook chain. redis.Nil
// replies are not treated as failures, and the handshake go-redis runs on
// every new connection (HELLO, AUTH, SELECT, CLIENT SETINFO and
// CLIENT MAINT_NOTIFICATIONS) is not reported.
func NewObserverHook(obs Observer) redis.Hook {
	return observerHook{obs: obs}
}

type observerHook struct {
	obs Observer
}

func (h observerHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.obs.DialFailed(ctx, addr, err)
		}
		return conn, err
	}
}

func (h observerHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if isConnInit(cmd) {
			return next(ctx, cmd)
		}
		start := time.Now()
		err := next(ctx, cmd)
		h.obs.CommandDone(ctx, cmd.Name(), time.Since(start), commandErr(err))
		return err
	}
}

func (h observerHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if allConnInit(cmds) {
			return next(ctx, cmds)
		}
		start := time.Now()
		err := next(ctx, cmds)
		h.obs.CommandDone(ctx, "pipeline", time.Since(start), commandErr(err))
		return err
	}
}

func commandErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// isConnInit reports whether cmd belongs to the connection handshake rather
// than to a store operation.
func isConnInit(cmd redis.Cmder) bool {
	switch strings.ToLower(cmd.Name()) {
	case "hello", "auth", "select", "readonly":
		return true
	case "client":
		args := cmd.Args()
		if len(args) < 2 {
			return false
		}
		sub, _ := args[1].(string)
		switch strings.ToLower(sub) {
		case "setinfo", "setname", "maint_notifications":
			return true
		}
	}
	return false
}

func allConnInit(cmds []redis.Cmder) bool {
	if len(cmds) == 0 {
		return false
	}
	for _, cmd := range cmds {
		if !isConnInit(cmd) {
			return false
		}
	}
	return true
}
