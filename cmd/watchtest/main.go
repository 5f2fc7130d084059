// Command watchtest opens many realtime connections for one account, signs
// one of them out and checks that every other connection hears about it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"kinship/internal/client"
	"kinship/internal/middleware"
	"kinship/internal/notifications"
)

type metrics struct {
	signIns   atomic.Int64
	connected atomic.Int64
	signedOut atomic.Int64
	failures  atomic.Int64
}

func main() {
	base := flag.String("base", "http://localhost:8375", "API base URL")
	email := flag.String("email", "alice@example.com", "Account email")
	password := flag.String("password", "Kinship#2026", "Account password")
	clients := flag.Int("clients", 20, "Concurrent sessions")
	wait := flag.Duration("wait", 10*time.Second, "How long to wait for sign-out events")
	flag.Parse()

	log := middleware.Logger
	c, err := client.New(*base)
	if err != nil {
		log.Error("bad base url", slog.String("error", err.Error()))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		m        metrics
		wg       sync.WaitGroup
		sessions = make([]*client.Session, *clients)
	)
	for i := range sessions {
		s := c.NewSession()
		if err := s.SignIn(ctx, *email, *password, false); err != nil {
			m.failures.Add(1)
			log.Error("sign in failed", slog.Int("client", i), slog.String("error", client.UserMessage(err)))
			continue
		}
		m.signIns.Add(1)
		sessions[i] = s
	}
	if m.signIns.Load() < 2 {
		log.Error("need at least two signed-in sessions")
		os.Exit(1)
	}

	watchCtx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()
	for i, s := range sessions {
		if s == nil {
			continue
		}
		wg.Add(1)
		go func(i int, s *client.Session) {
			defer wg.Done()
			wctx, wcancel := context.WithCancel(watchCtx)
			defer wcancel()
			m.connected.Add(1)
			err := s.Watch(wctx, func(evt notifications.Event) {
				if evt.Type == notifications.EventSignedOut {
					m.signedOut.Add(1)
					wcancel()
				}
			})
			if err != nil && wctx.Err() == nil {
				m.failures.Add(1)
				log.Warn("watch ended", slog.Int("client", i), slog.String("error", err.Error()))
			}
		}(i, s)
	}

	// Give sockets a moment to register before signing out.
	time.Sleep(time.Second)
	var leader *client.Session
	for _, s := range sessions {
		if s != nil {
			leader = s
			break
		}
	}
	if err := leader.SignOut(ctx); err != nil {
		log.Error("sign out failed", slog.String("error", err.Error()))
	}

	wg.Wait()
	fmt.Printf("sign-ins=%d connected=%d signed_out_events=%d failures=%d\n",
		m.signIns.Load(), m.connected.Load(), m.signedOut.Load(), m.failures.Load())
	if m.signedOut.Load() < m.signIns.Load()-1 {
		os.Exit(1)
	}
}
