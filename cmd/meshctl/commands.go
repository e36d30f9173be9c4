package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "io"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    grpcgw "github.com/pradeepkb1906/MeshTalk/pkg/gateway/grpc"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
)

func runSend(args []string) {
    fs := flag.NewFlagSet("send", flag.ExitOnError)
    addr := fs.String("addr", "localhost:9090", "meshnode control-surface address")
    dest := fs.String("dest", protocol.Broadcast, "destination mesh_id, or the broadcast id")
    message := fs.String("message", "", "message text to send")
    kind := fs.String("kind", "text", "content kind: text|image|file|audio|location")
    timeout := fs.Duration("timeout", 5*time.Second, "dial/call timeout")
    _ = fs.Parse(args)

    if *message == "" {
        fatalf("send: --message is required")
    }

    client, closeFn, err := dial(*addr, *timeout)
    if err != nil {
        fatalf("dial %s: %v", *addr, err)
    }
    defer closeFn()

    ctx, cancel := context.WithTimeout(context.Background(), *timeout)
    defer cancel()

    resp, err := client.SendMessage(ctx, &grpcgw.SendMessageRequest{
        DestinationID: *dest,
        Content:       *message,
        ContentKind:   parseContentKind(*kind),
    })
    if err != nil {
        fatalf("send message: %v", err)
    }
    fmt.Printf("sent packet_id=%s status=%s\n", resp.Message.PacketID, resp.Message.Status)
}

func runSOS(args []string) {
    fs := flag.NewFlagSet("sos", flag.ExitOnError)
    addr := fs.String("addr", "localhost:9090", "meshnode control-surface address")
    message := fs.String("message", "SOS", "SOS message body")
    timeout := fs.Duration("timeout", 5*time.Second, "dial/call timeout")
    _ = fs.Parse(args)

    client, closeFn, err := dial(*addr, *timeout)
    if err != nil {
        fatalf("dial %s: %v", *addr, err)
    }
    defer closeFn()

    ctx, cancel := context.WithTimeout(context.Background(), *timeout)
    defer cancel()

    resp, err := client.SendSOS(ctx, &grpcgw.SendSOSRequest{Message: *message})
    if err != nil {
        fatalf("send sos: %v", err)
    }
    fmt.Printf("sos broadcast packet_id=%s status=%s\n", resp.Message.PacketID, resp.Message.Status)
}

func runAnnounce(args []string) {
    fs := flag.NewFlagSet("announce", flag.ExitOnError)
    addr := fs.String("addr", "localhost:9090", "meshnode control-surface address")
    lat := fs.Float64("lat", 0, "latitude to attach, 0 to omit a fix")
    lon := fs.Float64("lon", 0, "longitude to attach, 0 to omit a fix")
    timeout := fs.Duration("timeout", 5*time.Second, "dial/call timeout")
    _ = fs.Parse(args)

    client, closeFn, err := dial(*addr, *timeout)
    if err != nil {
        fatalf("dial %s: %v", *addr, err)
    }
    defer closeFn()

    ctx, cancel := context.WithTimeout(context.Background(), *timeout)
    defer cancel()

    if _, err := client.BroadcastPeerAnnouncement(ctx, &grpcgw.BroadcastPeerAnnouncementRequest{
        Latitude:  *lat,
        Longitude: *lon,
    }); err != nil {
        fatalf("broadcast peer announcement: %v", err)
    }
    fmt.Println("peer announcement broadcast")
}

func runWatch(args []string) {
    fs := flag.NewFlagSet("watch", flag.ExitOnError)
    addr := fs.String("addr", "localhost:9090", "meshnode control-surface address")
    stream := fs.String("stream", "updates", "stream to watch: incoming|updates|status")
    timeout := fs.Duration("dial-timeout", 5*time.Second, "dial timeout")
    _ = fs.Parse(args)

    client, closeFn, err := dial(*addr, *timeout)
    if err != nil {
        fatalf("dial %s: %v", *addr, err)
    }
    defer closeFn()

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
    go func() { <-sigCh; cancel() }()

    switch *stream {
    case "incoming":
        s, err := client.StreamIncoming(ctx)
        if err != nil {
            fatalf("stream incoming: %v", err)
        }
        for {
            evt, err := s.Recv()
            if err == io.EOF || ctx.Err() != nil {
                return
            }
            if err != nil {
                fatalf("stream incoming: %v", err)
            }
            printJSON(evt)
        }

    case "updates":
        s, err := client.StreamUpdates(ctx)
        if err != nil {
            fatalf("stream updates: %v", err)
        }
        for {
            evt, err := s.Recv()
            if err == io.EOF || ctx.Err() != nil {
                return
            }
            if err != nil {
                fatalf("stream updates: %v", err)
            }
            printJSON(evt)
        }

    case "status":
        s, err := client.StreamConnectionStatus(ctx)
        if err != nil {
            fatalf("stream connection status: %v", err)
        }
        for {
            evt, err := s.Recv()
            if err == io.EOF || ctx.Err() != nil {
                return
            }
            if err != nil {
                fatalf("stream connection status: %v", err)
            }
            printJSON(evt)
        }

    default:
        fatalf("watch: unknown --stream %q (want incoming|updates|status)", *stream)
    }
}

func parseContentKind(s string) protocol.ContentKind {
    switch strings.ToLower(s) {
    case "text":
        return protocol.ContentText
    case "image":
        return protocol.ContentImage
    case "file":
        return protocol.ContentFile
    case "audio":
        return protocol.ContentAudio
    case "location":
        return protocol.ContentLocation
    default:
        return protocol.ContentText
    }
}

func printJSON(v any) {
    b, err := json.Marshal(v)
    if err != nil {
        fmt.Printf("%+v\n", v)
        return
    }
    fmt.Println(string(b))
}
