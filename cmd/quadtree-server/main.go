package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/tidwall/redlog"

	"github.com/zycbobby/quadtree/controller"
)

var version = "0.0.1"

func main() {
	var host string
	var port int
	var loglevel string

	flag.StringVar(&host, "h", "", "Bind host")
	flag.IntVar(&port, "p", 7461, "Bind port")
	flag.StringVar(&loglevel, "loglevel", "notice", "Log level [quiet,warning,notice,verbose,debug]")
	flag.Parse()

	log := redlog.New(os.Stderr)
	switch strings.ToLower(loglevel) {
	default:
		log.Warningf("invalid loglevel '%v'", loglevel)
		os.Exit(1)
	case "quiet":
		log = redlog.New(ioutil.Discard)
	case "warning":
		log.SetLevel(3)
	case "notice":
		log.SetLevel(2)
	case "verbose":
		log.SetLevel(1)
	case "debug":
		log.SetLevel(0)
	}

	log.Printf("quadtree server %s", version)

	addr := fmt.Sprintf("%s:%d", host, port)
	c := controller.New(log.Sub('C'))
	if err := c.ListenAndServe(addr); err != nil {
		log.Warningf("%v", err)
		os.Exit(1)
	}
}
