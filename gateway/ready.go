package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"
)

// individual drain timeout for a startup backfill. a slow guild is published
// with a possibly incomplete member cache rather than holding up readiness.
const GuildDrainTimeout = 5 * time.Second

// one "guild became available" signal from the handshake burst
type guildAnnouncement struct {
	guild *Guild
	// first time seen vs previously flagged unavailable
	joined bool
}

func (self *State) guildNeedsChunking(guild *Guild) bool {
	// with presences enabled, small guilds already arrive with their full
	// member list
	return self.config.chunkGuilds &&
		!guild.Chunked() &&
		!(self.config.intents.Has(IntentGuildPresences) && !guild.Large)
}

// hands a guild announcement to the running readiness coordinator. returns
// false when no coordinator is collecting (or its queue is saturated) and
// the caller must classify the guild itself.
func (self *State) announceGuild(announcement *guildAnnouncement) bool {
	self.mutex.Lock()
	signal := self.readySignal
	self.mutex.Unlock()

	if signal == nil {
		return false
	}
	select {
	case signal <- announcement:
		return true
	default:
		return false
	}
}

func (self *State) parseReady(shardID int, data json.RawMessage) {
	var payload ReadyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		glog.Warningf("[ready]malformed READY payload = %s\n", err)
		return
	}

	// a superseding handshake cancels the prior coordinator outright
	self.mutex.Lock()
	if self.readyCancel != nil {
		self.readyCancel()
		self.readyCancel = nil
	}
	self.mutex.Unlock()

	self.clear()

	readyCtx, readyCancel := context.WithCancel(self.ctx)
	signal := make(chan *guildAnnouncement, self.config.readyQueueSize)

	self.mutex.Lock()
	self.readyCancel = readyCancel
	self.readySignal = signal
	self.user = newUser(&payload.User)
	self.sessionIDs[shardID] = payload.SessionID
	if payload.Application != nil {
		self.applicationID = payload.Application.ID
		self.applicationFlags = payload.Application.Flags
	}
	self.mutex.Unlock()

	self.storeUser(&payload.User)

	for i := range payload.Guilds {
		self.addGuildFromPayload(&payload.Guilds[i], shardID)
	}

	self.emit("connect")

	go self.delayReady(readyCtx, signal)
}

func (self *State) parseResumed(shardID int, data json.RawMessage) {
	self.emit("resumed")
}

type pendingBackfill struct {
	announcement *guildAnnouncement
	// nil when the guild needed no backfill at announcement time
	request *ChunkRequest
}

// the readiness coordinator. collects the burst of guild announcements
// following the handshake, backfills members where required, then publishes
// the terminal ready notification exactly once.
func (self *State) delayReady(ctx context.Context, signal chan *guildAnnouncement) {
	pending := []*pendingBackfill{}

	collecting := true
	for collecting {
		select {
		case <-ctx.Done():
			return
		case announcement := <-signal:
			guild := announcement.guild
			if self.guildNeedsChunking(guild) {
				request, err := self.chunkGuild(ctx, guild, self.config.memberCacheFlags.Has(MemberCacheJoined))
				if err != nil {
					glog.Warningf("[ready]chunk request failed for guild %s = %s\n", guild.ID, err)
				}
				pending = append(pending, &pendingBackfill{
					announcement: announcement,
					request:      request,
				})
			} else if !announcement.joined {
				self.emit("guild_available", guild)
			} else {
				self.emit("guild_join", guild)
			}
		case <-time.After(self.config.guildReadyTimeout):
			// no further guilds announced within the idle window
			collecting = false
		}
	}

	for _, backfill := range pending {
		if backfill.request != nil {
			waitCtx, cancel := context.WithTimeout(ctx, GuildDrainTimeout)
			_, err := backfill.request.Wait(waitCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				guild := backfill.announcement.guild
				glog.Warningf(
					"[ready]shard %d timed out waiting for chunks for guild %s\n",
					guild.ShardID,
					guild.ID,
				)
				self.dropChunkRequest(backfill.request)
			}
		}
		if !backfill.announcement.joined {
			self.emit("guild_available", backfill.announcement.guild)
		} else {
			self.emit("guild_join", backfill.announcement.guild)
		}
	}

	if ctx.Err() != nil {
		return
	}

	self.finishReady(signal)
	self.callHandlers("ready")
	self.emit("ready")
}

// discards the collection queue once the coordinator is done with it
func (self *State) finishReady(signal chan *guildAnnouncement) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.readySignal == signal {
		self.readySignal = nil
		self.readyCancel = nil
	}
}

// the direct path for a guild announced outside a readiness cycle
func (self *State) chunkAndDispatch(guild *Guild, joined bool) {
	_, err := self.ChunkGuild(self.ctx, guild)
	if err != nil {
		glog.Warningf("[ready]backfill failed for guild %s = %s\n", guild.ID, err)
	}
	if !joined {
		self.emit("guild_available", guild)
	} else {
		self.emit("guild_join", guild)
	}
}
