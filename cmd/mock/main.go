package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bili_checkin/internal/mockapi"
)

// 本地联调：把 provider 的三个 base url 和 pushPlus.endpoint 指向这里即可。
func main() {
	addr := flag.String("addr", ":8080", "listen address")
	sessdata := flag.String("sessdata", "mock_sessdata", "SESSDATA accepted by the mock")
	csrf := flag.String("csrf", "mock_csrf", "bili_jct accepted by the mock")
	coins := flag.Float64("coins", 10, "starting coin balance")
	pushToken := flag.String("push-token", "mock_token", "PushPlus token accepted by /send")
	flag.Parse()

	m := mockapi.New("BV1GJ411x7h7", "BV1xx411c7mD", "BV1uT4y1P7CX", "BV1Qs411H7wq", "BV1ab411c7XK", "BV17x411w7KC")
	m.AddUser(mockapi.User{
		SESSDATA: *sessdata,
		CSRF:     *csrf,
		Name:     "mock_user",
		Mid:      10001,
		Level:    3,
		Exp:      1200,
		Coins:    *coins,
	})
	m.SetPushToken(*pushToken)

	server := &http.Server{
		Addr:              *addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	log.Printf("mock api listening on %s (cookie: SESSDATA=%s; bili_jct=%s)", *addr, *sessdata, *csrf)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("mock server: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
	log.Printf("mock api stopped, %d calls served, %d pushes received", m.TotalCalls(), len(m.Pushes()))
}
