package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"time"

	"github.com/caleywoods/wayfindr/internal/api"
	"github.com/caleywoods/wayfindr/internal/app"
	"github.com/caleywoods/wayfindr/internal/client"
	"github.com/caleywoods/wayfindr/internal/command"
	"github.com/caleywoods/wayfindr/internal/config"
	"github.com/caleywoods/wayfindr/internal/session"
	"github.com/caleywoods/wayfindr/internal/transport/websocket"
	"github.com/google/uuid"
)

const binaryName = "wayfindr"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	playerFlag := flag.String("player", "", "player id (overrides client.playerId)")
	saveFlag := flag.String("save", "", "play the named single-player save instead of joining a server")
	serverFlag := flag.String("server", "", "websocket URL (overrides client.serverUrl)")
	flag.Parse()

	a, err := app.Init(app.Options{Binary: binaryName, ConfigDir: *configDir})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(ctx)
	}()
	logger := a.Logger

	clientCfg := config.GetClientConfig()
	if *playerFlag != "" {
		clientCfg.PlayerID = *playerFlag
	}
	if *saveFlag != "" {
		clientCfg.SaveName = *saveFlag
	}
	if *serverFlag != "" {
		clientCfg.ServerURL = *serverFlag
	}

	player, err := uuid.Parse(clientCfg.PlayerID)
	if err != nil {
		player = uuid.New()
		logger.Warn("No valid player id configured, using a random one", "player", player)
	}

	store, err := a.OpenStore()
	if err != nil {
		return err
	}
	reg := a.Registry(store)
	sess := session.NewContext(player)
	a.TrackSession(sess.Key)

	d, err := a.Dispatcher("dispatcher")
	if err != nil {
		return err
	}
	defer d.Close()

	agent := client.New(reg, sess, d, client.Options{Logger: a.SlogManager.Component("client")})

	var remote *api.Client
	var editor command.Editor
	if clientCfg.SaveName != "" {
		agent.OnJoin(session.SinglePlayerKey(clientCfg.SaveName))
	} else {
		u, err := url.Parse(clientCfg.ServerURL)
		if err != nil {
			return fmt.Errorf("invalid server URL: %w", err)
		}
		agent.OnJoin(session.MultiplayerKey(u.Host))
		editor = agent

		remote = api.New(clientCfg.APIURL)
		if err := remote.Healthcheck(); err != nil {
			logger.Warn("Server API is offline", "url", clientCfg.APIURL, "error", err)
		} else {
			logger.Info("Server API is online", "url", clientCfg.APIURL)
		}

		var conn *websocket.Client
		conn = websocket.NewClient(websocket.ClientConfig{
			URL:          clientCfg.ServerURL,
			Player:       player,
			MaxBackoff:   clientCfg.MaxReconnect,
			OnMessage:    agent.Receive,
			OnConnect:    func() { agent.Attach(conn) },
			OnDisconnect: agent.OnDisconnect,
		}, a.SlogManager.Component("websocket"))
		defer conn.Close()

		if err := conn.Dial(); err != nil {
			logger.Error("Failed to connect, playing offline", "url", clientCfg.ServerURL, "error", err)
			fmt.Println("Offline: shared waypoints will not sync")
		}
	}

	sh := newShell(d, reg, agent, remote, os.Stdout)
	cmds := command.NewService(command.Dependencies{
		Registry:  reg,
		Editor:    editor,
		Position:  sh.position,
		Target:    sh.lookAt,
		Dimension: sh.dimension,
		Yaw:       sh.heading,
		Rand:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	})
	cmds.Register(d)

	fmt.Printf("wayfindr %s as %s (type help)\n", sess.Key(), player)
	return sh.run(os.Stdin)
}
