//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

// fy-tool exercises the parsing pipeline from the command line: it
// dumps the event stream in the test suite format, decodes documents
// and runs path queries against them.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	fyaml "github.com/pantoniou/libfyaml-go"
)

var (
	testsuite    = flag.Bool("testsuite", false, "dump the event stream in test suite format")
	ypath        = flag.String("ypath", "", "run a path query against each document")
	resolve      = flag.Bool("resolve", false, "resolve aliases and reject duplicate keys")
	jsonMode     = flag.Bool("json", false, "force JSON mode")
	single       = flag.Bool("single", false, "accept a single document only")
	comments     = flag.Bool("comments", false, "parse comments")
	quiet        = flag.Bool("quiet", false, "suppress diagnostics")
	colorFlag    = flag.String("color", "auto", "colorize diagnostics (auto, on, off)")
	scenarioFlag = flag.String("scenario", "balanced", "allocation scenario (balanced, fastest, conserve-memory)")
	allocDump    = flag.Bool("alloc-dump", false, "dump allocator state after loading")
	yamlVersion  = flag.String("yaml-version", "auto", "default YAML version (auto, 1.1, 1.2, 1.3)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [file ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fy-tool:", err)
		os.Exit(2)
	}

	files := flag.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}

	rc := 0
	for _, file := range files {
		if err := run(file, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "fy-tool:", err)
			rc = 1
		}
	}
	os.Exit(rc)
}

func buildConfig() (fyaml.ParseConfig, error) {
	cfg := fyaml.ParseConfig{
		ResolveDocument: *resolve,
		ParseComments:   *comments,
		SingleDocument:  *single,
		YPathAliases:    true,
		Quiet:           *quiet,
	}
	if *jsonMode {
		cfg.JSONMode = fyaml.JSON_FORCE
	}

	switch *colorFlag {
	case "auto":
		cfg.Color = fyaml.COLOR_AUTO
	case "on":
		cfg.Color = fyaml.COLOR_ON
	case "off":
		cfg.Color = fyaml.COLOR_OFF
	default:
		return cfg, fmt.Errorf("unknown color mode %q", *colorFlag)
	}

	switch *scenarioFlag {
	case "balanced":
		cfg.AllocScenario = fyaml.SCENARIO_BALANCED
	case "fastest":
		cfg.AllocScenario = fyaml.SCENARIO_FASTEST
	case "conserve-memory":
		cfg.AllocScenario = fyaml.SCENARIO_CONSERVE_MEMORY
	default:
		return cfg, fmt.Errorf("unknown scenario %q", *scenarioFlag)
	}

	switch *yamlVersion {
	case "auto":
		cfg.DefaultVersion = fyaml.VERSION_AUTO
	case "1.1":
		cfg.DefaultVersion = fyaml.VERSION_1_1
	case "1.2":
		cfg.DefaultVersion = fyaml.VERSION_1_2
	case "1.3":
		cfg.DefaultVersion = fyaml.VERSION_1_3
	default:
		return cfg, fmt.Errorf("unknown YAML version %q", *yamlVersion)
	}

	return cfg, nil
}

func input(file string) *fyaml.Input {
	if file == "-" {
		return fyaml.FromStream("<stdin>", os.Stdin)
	}
	return fyaml.FromFile(file)
}

func run(file string, cfg fyaml.ParseConfig) error {
	p, err := fyaml.NewParser(cfg)
	if err != nil {
		return err
	}
	defer p.Destroy()

	if err = p.PushInput(input(file)); err != nil {
		return err
	}

	if *testsuite {
		out, err := fyaml.EventStream(p)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	docs, err := p.Load()
	if err != nil {
		return err
	}
	if *allocDump {
		p.AllocatorDump(os.Stderr)
	}
	if *ypath == "" {
		// Validation only.
		return nil
	}

	for i, doc := range docs {
		nodes, err := doc.Path(*ypath)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			fmt.Printf("%d: %s\n", i, renderNode(n))
		}
	}
	return nil
}

func renderNode(n *fyaml.Node) string {
	switch n.Type() {
	case fyaml.NODE_STRING:
		s, _ := n.String()
		return s
	case fyaml.NODE_ALIAS:
		if target, ok := n.AliasTarget(); ok {
			return renderNode(target)
		}
	}
	return fmt.Sprintf("%v", n.Interface())
}
