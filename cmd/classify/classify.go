package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/krau/fruitlens/config"
	"github.com/krau/fruitlens/logging"
	"github.com/krau/fruitlens/server"
	"github.com/krau/fruitlens/service"
)

func main() {
	parser := argparse.NewParser("classify", "Classify an image with the configured ImageNet model")
	input := parser.String("i", "input", &argparse.Options{Help: "Image file (JPEG or PNG)", Required: true})
	topK := parser.Int("k", "top", &argparse.Options{Help: "Number of classes to print", Default: 5})
	configFile := parser.String("c", "config", &argparse.Options{Help: "Config file", Default: config.FileName})
	asJSON := parser.Flag("", "json", &argparse.Options{Help: "Print JSON instead of a table"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil && !config.IsNotFound(err) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logs := logging.Setup("warn", cfg.LogFile)
	defer logs.Close()

	data, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	clf, release, err := server.LoadClassifier(context.Background(), cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	res, err := clf.Classify(data, *topK)
	release()
	if errors.Is(err, service.ErrDecode) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *input, err)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	fmt.Printf("%s %dx%d\n", res.Format, res.Width, res.Height)
	for i, p := range res.Predictions {
		fmt.Printf("%2d. %-30s %6.2f%%\n", i+1, p.DisplayLabel(), p.Percent())
	}
}
