package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

type recordedEvent struct {
	event string
	args  []any
}

type eventCollector struct {
	mutex  sync.Mutex
	events []*recordedEvent
	signal chan string
}

func newEventCollector() (*NotificationSink, *eventCollector) {
	collector := &eventCollector{
		signal: make(chan string, 1024),
	}
	sink := &NotificationSink{
		Dispatch: func(event string, args ...any) {
			collector.mutex.Lock()
			collector.events = append(collector.events, &recordedEvent{
				event: event,
				args:  args,
			})
			collector.mutex.Unlock()
			select {
			case collector.signal <- event:
			default:
			}
		},
	}
	return sink, collector
}

func (self *eventCollector) count(event string) int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	count := 0
	for _, recorded := range self.events {
		if recorded.event == event {
			count += 1
		}
	}
	return count
}

func (self *eventCollector) last(event string) *recordedEvent {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	for i := len(self.events) - 1; 0 <= i; i -= 1 {
		if self.events[i].event == event {
			return self.events[i]
		}
	}
	return nil
}

func (self *eventCollector) waitFor(t *testing.T, event string, timeout time.Duration) {
	if 0 < self.count(event) {
		return
	}
	endTime := time.Now().Add(timeout)
	for {
		remaining := time.Until(endTime)
		if remaining <= 0 {
			t.Fatalf("timeout waiting for %s", event)
		}
		select {
		case seen := <-self.signal:
			if seen == event {
				return
			}
		case <-time.After(remaining):
			t.Fatalf("timeout waiting for %s", event)
		}
	}
}

type capturingChunker struct {
	mutex    sync.Mutex
	requests []*MemberChunkRequest
}

func (self *capturingChunker) RequestMemberChunks(ctx context.Context, shardID int, request *MemberChunkRequest) error {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.requests = append(self.requests, request)
	return nil
}

func (self *capturingChunker) requestCount() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return len(self.requests)
}

func (self *capturingChunker) lastRequest() *MemberChunkRequest {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if len(self.requests) == 0 {
		return nil
	}
	return self.requests[len(self.requests)-1]
}

func testStateSettings() *StateSettings {
	settings := DefaultStateSettings()
	settings.Intents = DefaultIntents() | IntentGuildMembers | IntentGuildPresences | IntentMessageContent
	settings.GuildReadyTimeout = 50 * time.Millisecond
	return settings
}

func newTestState(t *testing.T, settings *StateSettings) (*State, *eventCollector, *capturingChunker) {
	sink, collector := newEventCollector()
	chunker := &capturingChunker{}
	state, err := NewState(context.Background(), sink, chunker, settings)
	assert.Equal(t, err, nil)
	return state, collector, chunker
}

func readyPayload(guildIDs ...Snowflake) json.RawMessage {
	guilds := ""
	for i, guildID := range guildIDs {
		if 0 < i {
			guilds += ","
		}
		guilds += fmt.Sprintf(`{"id":"%s","unavailable":true}`, guildID)
	}
	return json.RawMessage(fmt.Sprintf(
		`{"v":10,"user":{"id":"1","username":"me","discriminator":"0"},"session_id":"session-a","application":{"id":"900","flags":565248},"guilds":[%s]}`,
		guilds,
	))
}

func guildCreatePayload(guildID Snowflake, memberCount int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":"%s","name":"guild %s","member_count":%d,`+
			`"members":[{"user":{"id":"1","username":"me","discriminator":"0"},"joined_at":"2024-01-02T03:04:05Z"}],`+
			`"channels":[{"id":"%d","type":0,"name":"general"}],`+
			`"roles":[{"id":"%d","name":"everyone"}]}`,
		guildID, guildID, memberCount, int64(guildID)+1, int64(guildID),
	))
}

func TestReadyLifecycle(t *testing.T) {
	state, collector, _ := newTestState(t, testStateSettings())

	state.Dispatch(0, "READY", readyPayload(10))
	assert.Equal(t, 1, collector.count("connect"))
	assert.Equal(t, "session-a", state.SessionID(0))
	assert.NotEqual(t, state.SelfUser(), nil)
	assert.Equal(t, Snowflake(1), state.SelfUser().ID)
	assert.Equal(t, Snowflake(900), state.ApplicationID())
	assert.Equal(t, int64(565248), state.ApplicationFlags())

	// the handshake seeds an unavailable stub
	stub := state.Store().Guild(10)
	assert.NotEqual(t, stub, nil)
	assert.Equal(t, true, stub.Unavailable)

	// small guild, presences intent set, no backfill needed
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))

	collector.waitFor(t, "ready", 2*time.Second)
	assert.Equal(t, 1, collector.count("ready"))
	assert.Equal(t, 1, collector.count("guild_available"))
	assert.Equal(t, 0, collector.count("guild_join"))

	guild := state.Store().Guild(10)
	assert.NotEqual(t, guild, nil)
	assert.Equal(t, false, guild.Unavailable)
	assert.Equal(t, 1, guild.MemberCount())
}

func TestReadyJoinVersusAvailable(t *testing.T) {
	state, collector, _ := newTestState(t, testStateSettings())

	state.Dispatch(0, "READY", readyPayload(10))
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))
	// guild 20 was never part of the handshake, it is a genuine join
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(20, 1))

	collector.waitFor(t, "ready", 2*time.Second)
	assert.Equal(t, 1, collector.count("guild_available"))
	assert.Equal(t, 1, collector.count("guild_join"))
}

func TestReadySupersededHandshake(t *testing.T) {
	state, collector, _ := newTestState(t, testStateSettings())

	state.Dispatch(0, "READY", readyPayload(10))
	// a second handshake before readiness cancels the first coordinator
	// and resets the cache
	state.Dispatch(0, "READY", readyPayload(20))

	assert.Equal(t, state.Store().Guild(10), nil)
	assert.NotEqual(t, state.Store().Guild(20), nil)

	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(20, 1))
	collector.waitFor(t, "ready", 2*time.Second)
	assert.Equal(t, 1, collector.count("ready"))
}

func TestResumed(t *testing.T) {
	state, collector, _ := newTestState(t, testStateSettings())

	state.Dispatch(0, "RESUMED", json.RawMessage(`{}`))
	assert.Equal(t, 1, collector.count("resumed"))
}

func TestUnknownEventDiscarded(t *testing.T) {
	state, collector, _ := newTestState(t, testStateSettings())

	state.Dispatch(0, "NOT_A_REAL_EVENT", json.RawMessage(`{"id":"1"}`))
	collector.mutex.Lock()
	total := len(collector.events)
	collector.mutex.Unlock()
	assert.Equal(t, 0, total)
}

func TestShardedReady(t *testing.T) {
	sink, collector := newEventCollector()
	chunker := &capturingChunker{}
	state, err := NewShardedState(context.Background(), sink, chunker, []int{0, 1}, testStateSettings())
	assert.Equal(t, err, nil)

	state.Dispatch(0, "READY", readyPayload(10))
	state.Dispatch(1, "READY", json.RawMessage(
		`{"v":10,"user":{"id":"1","username":"me","discriminator":"0"},"session_id":"session-b","guilds":[{"id":"21","unavailable":true}]}`,
	))
	assert.Equal(t, 2, collector.count("shard_connect"))
	assert.Equal(t, "session-a", state.SessionID(0))
	assert.Equal(t, "session-b", state.SessionID(1))

	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))
	state.Dispatch(1, "GUILD_CREATE", guildCreatePayload(21, 1))

	// readiness cannot fire before the launch gate opens
	select {
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, 0, collector.count("ready"))

	state.ShardsLaunched()
	collector.waitFor(t, "ready", 2*time.Second)
	assert.Equal(t, 1, collector.count("ready"))
	assert.Equal(t, 2, collector.count("shard_ready"))
	assert.Equal(t, 0, state.Store().Guild(10).ShardID)
	assert.Equal(t, 1, state.Store().Guild(21).ShardID)
}

func TestShardedResumed(t *testing.T) {
	sink, collector := newEventCollector()
	chunker := &capturingChunker{}
	state, err := NewShardedState(context.Background(), sink, chunker, []int{0, 1}, testStateSettings())
	assert.Equal(t, err, nil)

	state.Dispatch(1, "RESUMED", json.RawMessage(`{}`))
	assert.Equal(t, 1, collector.count("resumed"))
	assert.Equal(t, 1, collector.count("shard_resumed"))
	assert.Equal(t, 1, collector.last("shard_resumed").args[0])
}
