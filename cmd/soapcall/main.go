package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	soapclient "github.com/dcu/soapwrap"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("app", "soapcall").Logger()

	wsdl := flag.String("wsdl", "", "WSDL location (URL or file path)")
	configPath := flag.String("config", "", "TOML file with client options")
	debug := flag.Bool("debug", false, "print calls, results and the raw exchange")
	list := flag.Bool("list", false, "list the operations of the service and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s -wsdl URL [flags] operation [args...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *wsdl == "" || (!*list && flag.NArg() == 0) {
		flag.Usage()
		os.Exit(2)
	}

	opts := soapclient.Options{}
	if *configPath != "" {
		loaded, err := soapclient.LoadOptions(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load options")
		}
		opts = loaded
	}

	soapclient.SetDebug(*debug)
	soapclient.SetDebugOutput(os.Stderr)

	client, err := soapclient.New(*wsdl, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open client")
	}

	if *list {
		for _, op := range client.ListOperations() {
			fmt.Println(op)
		}
		return
	}

	var args interface{}
	switch rest := flag.Args()[1:]; len(rest) {
	case 0:
	case 1:
		args = rest[0]
	default:
		values := make([]interface{}, len(rest))
		for i, a := range rest {
			values[i] = a
		}
		args = values
	}

	result, err := client.Call(flag.Arg(0), args)
	if err != nil {
		if fault, ok := soapclient.AsFault(err); ok {
			log.Fatal().Str("code", fault.Code).Str("detail", fault.Detail).Msg(fault.String)
		}
		log.Fatal().Err(err).Msg("call failed")
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode result")
	}
	fmt.Println(string(out))
}
