package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
)

const (
	// ad hoc member queries
	QueryMembersTimeout = 30 * time.Second
	// implicit whole guild backfills
	ChunkGuildTimeout = 60 * time.Second
)

// ChunkRequest tracks one in-flight bulk member request. pages are
// correlated back by (guild id, nonce); the buffered result resolves every
// waiter at once when the final page arrives.
type ChunkRequest struct {
	guildID Snowflake
	nonce   string
	cache   bool

	resolver func(Snowflake) *Guild

	mutex  sync.Mutex
	buffer []*Member

	// closed exactly once on completion
	complete chan struct{}
	resolved bool
}

func newChunkRequest(guildID Snowflake, resolver func(Snowflake) *Guild, cache bool) *ChunkRequest {
	return &ChunkRequest{
		guildID:  guildID,
		nonce:    NewNonce(),
		cache:    cache,
		resolver: resolver,
		complete: make(chan struct{}),
	}
}

func (self *ChunkRequest) GuildID() Snowflake {
	return self.guildID
}

func (self *ChunkRequest) Nonce() string {
	return self.nonce
}

func (self *ChunkRequest) addMembers(members []*Member) {
	self.mutex.Lock()
	self.buffer = append(self.buffer, members...)
	self.mutex.Unlock()

	if !self.cache {
		return
	}
	guild := self.resolver(self.guildID)
	if guild == nil {
		return
	}
	for _, member := range members {
		// never overwrite a richer cached record with a chunk page's
		// leaner one
		existing := guild.Member(member.User.ID)
		if existing == nil || existing.JoinedAt.IsZero() {
			guild.addMember(member)
		}
	}
}

func (self *ChunkRequest) resolve() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.resolved {
		return
	}
	self.resolved = true
	close(self.complete)
}

// broadcast completion signal. one write, many readers.
func (self *ChunkRequest) Complete() <-chan struct{} {
	return self.complete
}

func (self *ChunkRequest) members() []*Member {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return append([]*Member{}, self.buffer...)
}

// blocks until the request resolves or ctx expires. the caller bounds the
// wait; expiry leaves no waiter registration behind.
func (self *ChunkRequest) Wait(ctx context.Context) ([]*Member, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-self.complete:
		return self.members(), nil
	}
}

// routes a chunk page to its request. a page is attributed only when both
// guild id and nonce match exactly; unmatched pages are dropped since the
// remote side may multiplex.
func (self *State) processChunkRequests(guildID Snowflake, nonce string, members []*Member, complete bool) {
	self.mutex.Lock()
	matched := []*ChunkRequest{}
	for key, request := range self.chunkRequests {
		if request.guildID == guildID && request.nonce == nonce {
			matched = append(matched, request)
			if complete {
				delete(self.chunkRequests, key)
				if self.guildChunkRequests[guildID] == request {
					delete(self.guildChunkRequests, guildID)
				}
			}
		}
	}
	self.mutex.Unlock()

	if len(matched) == 0 {
		glog.V(2).Infof("[chunk]unmatched page for guild %s nonce %s. discarding\n", guildID, nonce)
		return
	}

	for _, request := range matched {
		request.addMembers(members)
		if complete {
			request.resolve()
		}
	}
}

func (self *State) dropChunkRequest(request *ChunkRequest) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	delete(self.chunkRequests, request.nonce)
	if self.guildChunkRequests[request.guildID] == request {
		delete(self.guildChunkRequests, request.guildID)
	}
}

func (self *State) guildResolver(guildID Snowflake) *Guild {
	return self.store().Guild(guildID)
}

// starts (or joins) the implicit whole guild backfill. at most one such
// request exists per guild id.
func (self *State) chunkGuild(ctx context.Context, guild *Guild, cache bool) (*ChunkRequest, error) {
	self.mutex.Lock()
	request, ok := self.guildChunkRequests[guild.ID]
	if !ok {
		request = newChunkRequest(guild.ID, self.guildResolver, cache)
		self.guildChunkRequests[guild.ID] = request
		self.chunkRequests[request.nonce] = request
	}
	self.mutex.Unlock()

	if !ok {
		err := self.chunker.RequestMemberChunks(ctx, guild.ShardID, &MemberChunkRequest{
			GuildID: guild.ID,
			Nonce:   request.nonce,
		})
		if err != nil {
			self.dropChunkRequest(request)
			return nil, err
		}
	}
	return request, nil
}

// ChunkGuild fetches the guild's full member list, bounded by
// ChunkGuildTimeout.
func (self *State) ChunkGuild(ctx context.Context, guild *Guild) ([]*Member, error) {
	request, err := self.chunkGuild(ctx, guild, self.config.memberCacheFlags.Has(MemberCacheJoined))
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, ChunkGuildTimeout)
	defer cancel()

	members, err := request.Wait(waitCtx)
	if err != nil {
		self.dropChunkRequest(request)
		if ctx.Err() != nil {
			// the caller's context ended, not the page timeout
			return nil, fmt.Errorf("wait for member chunks for guild %s: %w", guild.ID, ctx.Err())
		}
		glog.Warningf("[chunk]timed out waiting for chunks for guild %s\n", guild.ID)
		return nil, fmt.Errorf("timed out waiting for member chunks for guild %s", guild.ID)
	}
	return members, nil
}

// QueryMembers runs an ad hoc member query. multiple concurrent requests
// per guild are allowed, distinguished by nonce. a timeout is surfaced to
// the caller as a distinct failure and the registration is removed.
func (self *State) QueryMembers(
	ctx context.Context,
	guild *Guild,
	query string,
	limit int,
	userIDs []Snowflake,
	cache bool,
	presences bool,
) ([]*Member, error) {
	request := newChunkRequest(guild.ID, self.guildResolver, cache)

	self.mutex.Lock()
	self.chunkRequests[request.nonce] = request
	self.mutex.Unlock()

	err := self.chunker.RequestMemberChunks(ctx, guild.ShardID, &MemberChunkRequest{
		GuildID:   guild.ID,
		Query:     query,
		Limit:     limit,
		Presences: presences,
		UserIDs:   userIDs,
		Nonce:     request.nonce,
	})
	if err != nil {
		self.dropChunkRequest(request)
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, QueryMembersTimeout)
	defer cancel()

	members, err := request.Wait(waitCtx)
	if err != nil {
		self.dropChunkRequest(request)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("wait for member chunks for guild %s: %w", guild.ID, ctx.Err())
		}
		glog.Warningf(
			"[chunk]timed out waiting for chunks with query %q and limit %d for guild %s\n",
			query,
			limit,
			guild.ID,
		)
		return nil, fmt.Errorf("timed out waiting for member chunks for guild %s", guild.ID)
	}
	return members, nil
}
