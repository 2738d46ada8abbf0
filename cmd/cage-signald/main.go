// Command cage-signald runs the standalone rendezvous process: it
// assigns VAddrs and distributes peer endpoint URIs for one or more
// overlay runs sharing this signaling server.
package main

import (
	"flag"
	"os"

	"github.com/graybat-go/cage/pkg/cage/definition"
	"github.com/graybat-go/cage/pkg/cage/signaling"
)

func main() {
	uri := flag.String("uri", "tcp://0.0.0.0:5555", "endpoint URI the signaling server binds")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log := definition.NewDefaultLogger("signald")
	log.ToggleDebug(*debug)

	srv, err := signaling.NewServer(*uri, log)
	if err != nil {
		log.Fatalf("cage-signald: failed to bind %s: %v", *uri, err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Infof("cage-signald: listening on %s", *uri)
	if err := srv.Serve(); err != nil {
		log.Fatalf("cage-signald: serve loop exited: %v", err)
		os.Exit(1)
	}
}
