package main


import (
    "bufio"
    "context"
    "encoding/json"
    "log"
    "os"
    "os/signal"
    "syscall"

    "github.com/docopt/docopt-go"

    "github.com/opencord/gateway/gateway"
)


const GatewayCtlVersion = "0.0.1"


var Out *log.Logger
var Err *log.Logger

func init() {
    Out = log.New(os.Stdout, "", 0)
    Err = log.New(os.Stderr, "", log.Ldate | log.Ltime | log.Lshortfile)
}


func main() {
    usage := `Gateway control.

The default url is:
    gateway_url: wss://gateway.discord.gg/?v=10&encoding=json

Usage:
    gatewayctl tail [--gateway_url=<gateway_url>] --token=<token>
        [--intents=<intents>]
        [--event_count=<event_count>]
    gatewayctl replay <file>
        [--max_messages=<max_messages>]

Options:
    -h --help                        Show this screen.
    --version                        Show version.
    --gateway_url=<gateway_url>
    --token=<token>                  Your bot token.
    --intents=<intents>              Intents bitset as an integer.
    --event_count=<event_count>      Print this many notifications then exit.
    --max_messages=<max_messages>    Message cache size for the replay.`

    opts, err := docopt.ParseArgs(usage, os.Args[1:], GatewayCtlVersion)
    if err != nil {
        panic(err)
    }

    if tail_, _ := opts.Bool("tail"); tail_ {
        tail(opts)
    } else if replay_, _ := opts.Bool("replay"); replay_ {
        replay(opts)
    }
}


// connect one shard and print every notification
func tail(opts docopt.Opts) {
    token, _ := opts.String("--token")

    gatewayUrl := "wss://gateway.discord.gg/?v=10&encoding=json"
    if gatewayUrl_, err := opts.String("--gateway_url"); err == nil {
        gatewayUrl = gatewayUrl_
    }

    var eventCount int
    if eventCount_, err := opts.Int("--event_count"); err == nil {
        eventCount = eventCount_
    } else {
        eventCount = -1
    }

    cancelCtx, cancel := context.WithCancel(context.Background())
    defer cancel()

    done := make(chan struct{})
    remaining := eventCount
    sink := &gateway.NotificationSink{
        Dispatch: func(event string, args ...any) {
            Out.Printf("%s %v", event, args)
            if 0 < remaining {
                remaining -= 1
                if remaining == 0 {
                    close(done)
                }
            }
        },
    }

    settings := gateway.DefaultStateSettings()
    if intents_, err := opts.Int("--intents"); err == nil {
        settings.Intents = gateway.Intents(intents_)
    }

    mux := gateway.NewShardMux()
    state, err := gateway.NewState(cancelCtx, sink, mux, settings)
    if err != nil {
        Err.Printf("invalid settings (%s)", err)
        return
    }

    conn := gateway.NewGatewayConnWithDefaults(cancelCtx, state, gatewayUrl, token, 0)
    defer conn.Close()
    mux.Add(0, conn)

    sig := make(chan os.Signal, 1)
    signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
    select {
    case <- sig:
    case <- done:
    }
}


type replayLine struct {
    Type    string          `json:"t"`
    ShardId int             `json:"s"`
    Data    json.RawMessage `json:"d"`
}


type replayChunker struct {
}

func (self *replayChunker) RequestMemberChunks(ctx context.Context, shardId int, request *gateway.MemberChunkRequest) error {
    // a recorded stream already contains its chunk responses
    return nil
}


// feed a recorded event stream into the state engine and print what the
// cache holds at the end
func replay(opts docopt.Opts) {
    path, _ := opts.String("<file>")

    file, err := os.Open(path)
    if err != nil {
        Err.Printf("cannot open %s (%s)", path, err)
        return
    }
    defer file.Close()

    cancelCtx, cancel := context.WithCancel(context.Background())
    defer cancel()

    eventCounts := map[string]int{}
    sink := &gateway.NotificationSink{
        Dispatch: func(event string, args ...any) {
            eventCounts[event] += 1
        },
    }

    settings := gateway.DefaultStateSettings()
    if maxMessages_, err := opts.Int("--max_messages"); err == nil {
        settings.MaxMessages = maxMessages_
    }
    chunkGuilds := false
    settings.ChunkGuildsAtStartup = &chunkGuilds

    state, err := gateway.NewState(cancelCtx, sink, &replayChunker{}, settings)
    if err != nil {
        Err.Printf("invalid settings (%s)", err)
        return
    }

    lineCount := 0
    scanner := bufio.NewScanner(file)
    scanner.Buffer(make([]byte, 0, 1024 * 1024), 16 * 1024 * 1024)
    for scanner.Scan() {
        line := scanner.Bytes()
        if len(line) == 0 {
            continue
        }
        var event replayLine
        if err := json.Unmarshal(line, &event); err != nil {
            Err.Printf("skipping malformed line %d (%s)", lineCount + 1, err)
            continue
        }
        state.Dispatch(event.ShardId, event.Type, event.Data)
        lineCount += 1
    }
    if err := scanner.Err(); err != nil {
        Err.Printf("read error (%s)", err)
        return
    }

    store := state.Store()
    memberCount := 0
    for _, guild := range store.Guilds() {
        memberCount += len(guild.Members())
    }

    Out.Printf("replayed %d events", lineCount)
    Out.Printf("guilds: %d", len(store.Guilds()))
    Out.Printf("cached members: %d", memberCount)
    Out.Printf("users: %d", len(store.Users()))
    Out.Printf("private channels: %d", store.PrivateChannelCount())
    Out.Printf("messages: %d", len(store.Messages()))
    for event, count := range eventCounts {
        Out.Printf("  %s: %d", event, count)
    }
}
