package main

import "flag"

// Options holds CLI options for the node.
type Options struct {
    ConfigPath string
    GRPCAddr   string
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
    fs := flag.NewFlagSet("meshnode", flag.ExitOnError)
    var opts Options
    fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    fs.StringVar(&opts.GRPCAddr, "grpc-addr", ":9090", "address the control-surface gRPC server listens on")
    _ = fs.Parse(args)
    return opts
}
