package gateway

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"
)

// member chunk requests are limited to 110 per minute per shard, two pages
// per request
const shardGroupRequestsPerMinute = 110

// ShardedState coordinates readiness across multiple gateway connections.
// Each shard runs its own handshake, all shards feed one shared readiness
// coordinator, and the terminal ready notification fires once after every
// shard's guild burst has settled.
type ShardedState struct {
	*State

	shardIDs []int

	launched     chan struct{}
	launchedOnce sync.Once
}

func NewShardedStateWithDefaults(
	ctx context.Context,
	sink *NotificationSink,
	chunker Chunker,
	shardIDs []int,
) (*ShardedState, error) {
	return NewShardedState(ctx, sink, chunker, shardIDs, DefaultStateSettings())
}

func NewShardedState(
	ctx context.Context,
	sink *NotificationSink,
	chunker Chunker,
	shardIDs []int,
	settings *StateSettings,
) (*ShardedState, error) {
	state, err := NewState(ctx, sink, chunker, settings)
	if err != nil {
		return nil, err
	}

	sharded := &ShardedState{
		State:    state,
		shardIDs: shardIDs,
		launched: make(chan struct{}),
	}
	state.parsers["READY"] = sharded.parseShardReady
	state.parsers["RESUMED"] = sharded.parseShardResumed

	return sharded, nil
}

func (self *ShardedState) ShardIDs() []int {
	return self.shardIDs
}

// ShardsLaunched unblocks the readiness coordinator. Call it once after the
// last shard has been started so that readiness cannot fire with shards
// still pending their handshake.
func (self *ShardedState) ShardsLaunched() {
	self.launchedOnce.Do(func() {
		close(self.launched)
	})
}

// a shard handshake joins the shared readiness coordinator. the first
// handshake creates it, later handshakes reuse its collection queue.
func (self *ShardedState) parseShardReady(shardID int, data json.RawMessage) {
	var payload ReadyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		glog.Warningf("[ready]malformed READY payload from shard %d = %s\n", shardID, err)
		return
	}

	var coordinatorCtx context.Context
	var coordinatorSignal chan *guildAnnouncement

	self.mutex.Lock()
	if self.readySignal == nil {
		readyCtx, readyCancel := context.WithCancel(self.ctx)
		self.readySignal = make(chan *guildAnnouncement, self.config.readyQueueSize)
		self.readyCancel = readyCancel
		coordinatorCtx = readyCtx
		coordinatorSignal = self.readySignal
	}
	self.user = newUser(&payload.User)
	self.sessionIDs[shardID] = payload.SessionID
	if payload.Application != nil {
		self.applicationID = payload.Application.ID
		self.applicationFlags = payload.Application.Flags
	}
	self.mutex.Unlock()

	self.storeUser(&payload.User)

	for i := range payload.Guilds {
		guild := self.addGuildFromPayload(&payload.Guilds[i], shardID)
		if handle := self.store().VoiceHandle(guild.ID); handle != nil {
			handle.RebindShard(shardID)
		}
	}

	// a re-identify replaces the guild objects this shard owns. cached
	// messages still point at the old graph.
	self.updateMessageReferences()

	self.emit("connect")
	self.emit("shard_connect", shardID)

	if coordinatorSignal != nil {
		go self.delayShardedReady(coordinatorCtx, coordinatorSignal)
	}
}

func (self *ShardedState) parseShardResumed(shardID int, data json.RawMessage) {
	self.emit("resumed")
	self.emit("shard_resumed", shardID)
}

// rebinds cached messages whose guild was replaced by a shard re-identify
func (self *ShardedState) updateMessageReferences() {
	store := self.store()
	for _, message := range store.Messages() {
		if message.Guild == nil {
			continue
		}
		guild := store.Guild(message.Guild.ID)
		if guild == nil || guild == message.Guild {
			continue
		}
		channel := guild.resolveChannel(message.ChannelID)
		message.rebindCachedReferences(guild, channel)
	}
}

func waitChunkRequests(ctx context.Context, requests []*ChunkRequest) error {
	for _, request := range requests {
		if request == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-request.Complete():
		}
	}
	return nil
}

// the sharded readiness coordinator. unlike the single connection variant,
// guilds that need no backfill are also held back and published with their
// shard group, so that shard_ready fires with the group complete.
func (self *ShardedState) delayShardedReady(ctx context.Context, signal chan *guildAnnouncement) {
	select {
	case <-ctx.Done():
		return
	case <-self.launched:
	}

	maxConcurrency := 2 * len(self.shardIDs)
	if maxConcurrency < 2 {
		maxConcurrency = 2
	}

	processed := []*pendingBackfill{}
	bucket := []*ChunkRequest{}

	collecting := true
	for collecting {
		select {
		case <-ctx.Done():
			return
		case announcement := <-signal:
			guild := announcement.guild
			backfill := &pendingBackfill{
				announcement: announcement,
			}
			if self.guildNeedsChunking(guild) {
				glog.V(2).Infof("[ready]guild %s requires chunking, will be done in the background\n", guild.ID)
				if maxConcurrency <= len(bucket) {
					waitCtx, cancel := context.WithTimeout(ctx, time.Duration(maxConcurrency)*70*time.Second)
					err := waitChunkRequests(waitCtx, bucket)
					cancel()
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						glog.Warningf(
							"[ready]shard %d failed to wait for chunks from a sub-bucket with length %d\n",
							guild.ShardID,
							len(bucket),
						)
					}
					bucket = nil
				}
				request, err := self.chunkGuild(ctx, guild, self.config.memberCacheFlags.Has(MemberCacheJoined))
				if err != nil {
					glog.Warningf("[ready]chunk request failed for guild %s = %s\n", guild.ID, err)
				} else {
					bucket = append(bucket, request)
					backfill.request = request
				}
			}
			processed = append(processed, backfill)
		case <-time.After(self.config.guildReadyTimeout):
			collecting = false
		}
	}

	sort.SliceStable(processed, func(i int, j int) bool {
		return processed[i].announcement.guild.ShardID < processed[j].announcement.guild.ShardID
	})

	index := 0
	for index < len(processed) {
		shardID := processed[index].announcement.guild.ShardID
		group := []*pendingBackfill{}
		for index < len(processed) && processed[index].announcement.guild.ShardID == shardID {
			group = append(group, processed[index])
			index += 1
		}

		requests := []*ChunkRequest{}
		for _, backfill := range group {
			if backfill.request != nil {
				requests = append(requests, backfill.request)
			}
		}
		timeout := 61 * time.Second * time.Duration(len(group)) / shardGroupRequestsPerMinute
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		err := waitChunkRequests(waitCtx, requests)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			glog.Warningf(
				"[ready]shard %d failed to wait for chunks (timeout=%.2f) for %d guilds\n",
				shardID,
				timeout.Seconds(),
				len(group),
			)
			for _, request := range requests {
				self.dropChunkRequest(request)
			}
		}

		for _, backfill := range group {
			if !backfill.announcement.joined {
				self.emit("guild_available", backfill.announcement.guild)
			} else {
				self.emit("guild_join", backfill.announcement.guild)
			}
		}
		self.emit("shard_ready", shardID)
	}

	if ctx.Err() != nil {
		return
	}

	self.finishReady(signal)
	self.callHandlers("ready")
	self.emit("ready")
}
