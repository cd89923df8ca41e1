// Command syncrtd runs a standalone syncrt node exposing a WebSocket
// endpoint for full-duplex peers and an HTTP long-poll endpoint for peers
// that cannot hold one open (§4.8, §6.4).
package main

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nwillc/syncrt/pkg/syncrt"
	"github.com/nwillc/syncrt/pkg/syncrt/definition"
	"github.com/nwillc/syncrt/pkg/syncrt/transport"
	"github.com/nwillc/syncrt/pkg/syncrt/types"
	"github.com/nwillc/syncrt/synctest"
)

var (
	listenAddr        string
	peerName          string
	heartbeatInterval time.Duration
	ephemeralTTL      time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "syncrtd",
		Short: "Run a syncrt document synchronization node",
		RunE:  run,
	}

	root.Flags().StringVar(&listenAddr, "listen", ":8088", "address to listen on")
	root.Flags().StringVar(&peerName, "name", "", "this node's peer name (default: generated)")
	root.Flags().DurationVar(&heartbeatInterval, "heartbeat-interval", 10*time.Second, "ephemeral broadcast heartbeat interval")
	root.Flags().DurationVar(&ephemeralTTL, "ephemeral-ttl", 30*time.Second, "ephemeral entry time-to-live")

	viper.SetEnvPrefix("SYNCRT")
	viper.AutomaticEnv()
	viper.SetConfigName("syncrtd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/syncrt")
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			fmt.Fprintf(os.Stderr, "syncrtd: reading config: %v\n", err)
		}
	}
	_ = viper.BindPFlag("listen", root.Flags().Lookup("listen"))
	_ = viper.BindPFlag("name", root.Flags().Lookup("name"))
	_ = viper.BindPFlag("heartbeat-interval", root.Flags().Lookup("heartbeat-interval"))
	_ = viper.BindPFlag("ephemeral-ttl", root.Flags().Lookup("ephemeral-ttl"))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := definition.NewDefaultLogger()

	name := viper.GetString("name")
	if name == "" {
		name = "syncrtd-" + uuid.NewString()[:8]
	}
	identity := types.Identity{
		PeerID: types.PeerID(uuid.NewString()),
		Name:   name,
		Type:   types.PeerTypeService,
	}

	registry := prometheus.NewRegistry()
	metrics := definition.NewMetrics(registry)

	cfg := syncrt.DefaultConfig(identity, synctest.NewFakeDoc)
	cfg.Logger = log
	cfg.Metrics = metrics
	cfg.HeartbeatInterval = viper.GetDuration("heartbeat-interval")
	cfg.EphemeralTTL = viper.GetDuration("ephemeral-ttl")

	var sync_ *syncrt.Synchronizer
	send := func(channelID types.ChannelID, msg types.WireMessage) error {
		return sendOnAnyAdapter(channelID, msg)
	}
	sync_ = syncrt.NewSynchronizer(cfg, send)
	defer sync_.Stop()

	longpoll := transport.NewLongPollAdapter(sync_, log)
	registerAdapter(longpoll)

	upgrader := websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Errorf("websocket upgrade failed: %v", err)
			return
		}
		channelID := types.ChannelID(uuid.NewString())
		adapter := transport.NewWebSocketAdapter(channelID, conn, sync_, log)
		registerWebSocketAdapter(channelID, adapter)
		go adapter.Run()
	})
	mux.HandleFunc("/longpoll/open", longpoll.HandleOpen)
	mux.HandleFunc("/longpoll/send", longpoll.HandleSend)
	mux.HandleFunc("/longpoll/poll", longpoll.HandlePoll)
	mux.HandleFunc("/longpoll/close", longpoll.HandleClose)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := viper.GetString("listen")
	log.Infof("syncrtd %s listening on %s", identity.Name, addr)
	return http.ListenAndServe(addr, mux)
}

// The handful of lines below route an outbound Send to whichever adapter
// registered channelID, without needing syncrt itself to know about
// transport — a tiny process-wide registry, acceptable at the scale of a
// single demo binary.
var (
	adapterMu  sync.Mutex
	wsAdapters = map[types.ChannelID]*transport.WebSocketAdapter{}
	lpAdapter  *transport.LongPollAdapter
)

func registerAdapter(a *transport.LongPollAdapter) {
	adapterMu.Lock()
	defer adapterMu.Unlock()
	lpAdapter = a
}

func registerWebSocketAdapter(channelID types.ChannelID, a *transport.WebSocketAdapter) {
	adapterMu.Lock()
	defer adapterMu.Unlock()
	wsAdapters[channelID] = a
}

func sendOnAnyAdapter(channelID types.ChannelID, msg types.WireMessage) error {
	adapterMu.Lock()
	a, ok := wsAdapters[channelID]
	lp := lpAdapter
	adapterMu.Unlock()

	if ok {
		return a.Send(channelID, msg)
	}
	if lp != nil {
		return lp.Send(channelID, msg)
	}
	return fmt.Errorf("syncrtd: no adapter registered for channel %s", channelID)
}
