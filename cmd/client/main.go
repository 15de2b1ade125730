package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchparty/internal/client"
	"github.com/sharetube/watchparty/internal/playback"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
)

type clientConfig struct {
	Server         string
	Username       string
	Video          string
	Room           string
	StorePath      string
	LogLevel       string
	ReconnectDelay time.Duration
	InitDelay      time.Duration
}

func loadConfig() clientConfig {
	_ = godotenv.Load()

	pflag.String("server", "ws://localhost:80/api/v1/ws", "Websocket endpoint of the server")
	pflag.String("username", "", "Display name in the room")
	pflag.String("video", "", "Video url, creates a room and hosts it")
	pflag.String("room", "", "Room code to join as a guest")
	pflag.String("store", "watchparty-client.db", "File remembering the current room for rejoin, empty to disable")
	pflag.String("log-level", "INFO", "Logging level")
	pflag.Duration("reconnect-delay", client.DefaultReconnectDelay, "Wait between reconnect attempts")
	pflag.Duration("init-delay", 200*time.Millisecond, "Simulated player start up time")
	pflag.Parse()

	viper.SetEnvPrefix("WATCHPARTY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.BindPFlags(pflag.CommandLine)

	return clientConfig{
		Server:         viper.GetString("server"),
		Username:       viper.GetString("username"),
		Video:          viper.GetString("video"),
		Room:           viper.GetString("room"),
		StorePath:      viper.GetString("store"),
		LogLevel:       viper.GetString("log-level"),
		ReconnectDelay: viper.GetDuration("reconnect-delay"),
		InitDelay:      viper.GetDuration("init-delay"),
	}
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		log.Fatal(err)
	}

	return slog.New(&ctxlogger.ContextHandler{
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}),
	})
}

func printStatus(st client.Status) {
	role := "guest"
	if st.IsHost {
		role = "host"
	}
	fmt.Printf("room=%s role=%s video=%s/%s player=%s playing=%t time=%.2f rate=%.2f synced=%t diff=%.2f participants=%d\n",
		st.RoomCode, role, st.Platform, st.VideoID, st.Backend, st.IsPlaying,
		st.LocalTime, st.PlaybackRate, st.Sync.IsSynced, st.Sync.Diff, len(st.Participants))
	if st.LastError != "" {
		fmt.Printf("last error: %s\n", st.LastError)
	}
}

// readCommands forwards stdin lines to the client until ctx ends or stdin
// closes.
func readCommands(ctx context.Context, c *client.Client, stop context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "play":
			err = c.Play(ctx)
		case "pause":
			err = c.Pause(ctx)
		case "seek":
			if len(fields) != 2 {
				fmt.Println("usage: seek <seconds>")
				continue
			}
			seconds, parseErr := strconv.ParseFloat(fields[1], 64)
			if parseErr != nil || seconds < 0 {
				fmt.Println("usage: seek <seconds>")
				continue
			}
			err = c.Seek(ctx, seconds)
		case "leave":
			err = c.Leave(ctx)
		case "status":
			printStatus(c.Status())
		case "quit", "exit":
			stop()
			return
		default:
			fmt.Println("commands: play, pause, seek <seconds>, leave, status, quit")
		}

		if err != nil {
			return
		}
	}
}

func main() {
	cfg := loadConfig()
	if cfg.Username == "" {
		log.Fatal("username is required")
	}

	logger := newLogger(cfg.LogLevel)

	var store *client.Store
	if cfg.StorePath != "" {
		var err error
		store, err = client.OpenStore(cfg.StorePath)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	factory := &playback.SimulatedFactory{Clock: clock, InitDelay: cfg.InitDelay}

	c := client.New(client.Config{
		ServerURL:      cfg.Server,
		Username:       cfg.Username,
		VideoURL:       cfg.Video,
		RoomCode:       cfg.Room,
		ReconnectDelay: cfg.ReconnectDelay,
	}, factory.New, store, clock, logger)

	go readCommands(ctx, c, stop)

	if err := c.Run(ctx); err != nil {
		logger.Error("client stopped", "error", err)
	}
}
