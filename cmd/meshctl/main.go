package main

import (
    "fmt"
    "os"
)

// meshctl is the operator CLI for a running meshnode: it dials the
// node's control-surface gRPC server and issues one request, or watches
// one of its status streams until interrupted.
func main() {
    if len(os.Args) < 2 {
        usage()
        os.Exit(2)
    }

    cmd, args := os.Args[1], os.Args[2:]
    switch cmd {
    case "send":
        runSend(args)
    case "sos":
        runSOS(args)
    case "announce":
        runAnnounce(args)
    case "watch":
        runWatch(args)
    case "help", "-h", "--help":
        usage()
    default:
        fmt.Fprintf(os.Stderr, "meshctl: unknown command %q\n\n", cmd)
        usage()
        os.Exit(2)
    }
}

func usage() {
    fmt.Fprint(os.Stderr, `meshctl: operator CLI for a running meshnode

Usage:
  meshctl send     --addr <host:port> --dest <mesh_id> --message <text>
  meshctl sos      --addr <host:port> --message <text>
  meshctl announce --addr <host:port> [--lat 0] [--lon 0]
  meshctl watch    --addr <host:port> --stream incoming|updates|status

`)
}

func fatalf(format string, a ...any) {
    fmt.Fprintf(os.Stderr, format+"\n", a...)
    os.Exit(1)
}
