package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/golang/glog"
)

// outward facing publish function. fire and forget; called in the exact
// order the triggering events were dispatched on a connection, except for
// completions deferred to background tasks.
type DispatchFunc func(event string, args ...any)

// awaited hook, used for auxiliary bookkeeping before the engine continues
type HookFunc func(ctx context.Context) error

type NotificationSink struct {
	Dispatch DispatchFunc

	// synchronous callbacks invoked exactly once per readiness cycle
	Handlers map[string]func()

	// asynchronous callables awaited before continuing
	Hooks map[string]HookFunc
}

// Chunker issues a bulk member request against a specific shard's transport
// handle. replies arrive later as GUILD_MEMBERS_CHUNK events carrying the
// request nonce.
type Chunker interface {
	RequestMemberChunks(ctx context.Context, shardID int, request *MemberChunkRequest) error
}

type MemberChunkRequest struct {
	GuildID   Snowflake   `json:"guild_id"`
	Query     string      `json:"query"`
	Limit     int         `json:"limit"`
	Presences bool        `json:"presences"`
	UserIDs   []Snowflake `json:"user_ids,omitempty"`
	Nonce     string      `json:"nonce"`
}

type parserFunc func(shardID int, data json.RawMessage)

// State turns the raw event stream into a consistent queryable object graph
// and re-emits each event as a domain notification after the cache has been
// updated.
type State struct {
	ctx context.Context

	config *stateConfig

	sink    *NotificationSink
	chunker Chunker

	// static event type to handler mapping, assembled once at construction
	parsers map[string]parserFunc

	mutex sync.Mutex

	user             *User
	applicationID    Snowflake
	applicationFlags int64
	sessionIDs       map[int]string

	entityStore *EntityStore

	chunkRequests map[string]*ChunkRequest
	// at most one implicit whole guild backfill per guild id
	guildChunkRequests map[Snowflake]*ChunkRequest

	components ComponentRouter
	modals     ModalRouter

	readyCancel context.CancelFunc
	readySignal chan *guildAnnouncement
}

func NewStateWithDefaults(ctx context.Context, sink *NotificationSink, chunker Chunker) (*State, error) {
	return NewState(ctx, sink, chunker, DefaultStateSettings())
}

func NewState(ctx context.Context, sink *NotificationSink, chunker Chunker, settings *StateSettings) (*State, error) {
	config, err := settings.validate()
	if err != nil {
		return nil, err
	}

	state := &State{
		ctx:     ctx,
		config:  config,
		sink:    sink,
		chunker: chunker,
	}
	state.parsers = state.buildParsers()
	state.clear()

	return state, nil
}

// resets all volatile cache state. persistent registries (component and
// modal routers) are untouched.
func (self *State) clear() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	self.user = nil
	self.sessionIDs = map[int]string{}
	self.entityStore = newEntityStore(self.config.privateChannelCap, self.config.maxMessages)
	self.chunkRequests = map[string]*ChunkRequest{}
	self.guildChunkRequests = map[Snowflake]*ChunkRequest{}
}

func (self *State) store() *EntityStore {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.entityStore
}

func (self *State) Store() *EntityStore {
	return self.store()
}

func (self *State) Intents() Intents {
	return self.config.intents
}

func (self *State) MemberCacheFlags() MemberCacheFlags {
	return self.config.memberCacheFlags
}

func (self *State) AllowedMentions() *AllowedMentions {
	return self.config.allowedMentions
}

func (self *State) MaxMessages() int {
	return self.config.maxMessages
}

// the authenticated self user, recorded at handshake
func (self *State) SelfUser() *User {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.user
}

func (self *State) selfID() Snowflake {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.user == nil {
		return 0
	}
	return self.user.ID
}

func (self *State) ApplicationID() Snowflake {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.applicationID
}

func (self *State) ApplicationFlags() int64 {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.applicationFlags
}

func (self *State) SessionID(shardID int) string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.sessionIDs[shardID]
}

func (self *State) emit(event string, args ...any) {
	if self.sink == nil || self.sink.Dispatch == nil {
		return
	}
	self.sink.Dispatch(event, args...)
}

func (self *State) callHandlers(key string) {
	if self.sink == nil {
		return
	}
	if handler, ok := self.sink.Handlers[key]; ok {
		handler()
	}
}

func (self *State) callHooks(ctx context.Context, key string) error {
	if self.sink == nil {
		return nil
	}
	if hook, ok := self.sink.Hooks[key]; ok {
		return hook(ctx)
	}
	return nil
}

func (self *State) componentRouter() ComponentRouter {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.components
}

func (self *State) modalRouter() ModalRouter {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.modals
}

// returns the cached user, or constructs one. transient records (partial
// discriminator sentinel, or member caching disabled) are constructed but
// never inserted into the store.
func (self *State) storeUser(data *UserPayload) *User {
	store := self.store()
	if existing := store.User(data.ID); existing != nil {
		return existing
	}
	user := newUser(data)
	if self.cachesUsers() && user.Discriminator != discriminatorSentinel {
		store.addUser(user)
	}
	return user
}

func (self *State) derefUser(userID Snowflake) {
	if !self.cachesUsers() {
		return
	}
	self.store().removeUser(userID)
}

func (self *State) cachesUsers() bool {
	return self.config.intents.Has(IntentGuildMembers) && !self.config.memberCacheFlags.Empty()
}

func (self *State) newMember(guild *Guild, data *MemberPayload) *Member {
	member := &Member{
		GuildID: guild.ID,
	}
	if data.User != nil {
		member.User = self.storeUser(data.User)
	}
	member.update(data)
	return member
}

func (self *State) storeEmoji(guild *Guild, data *EmojiPayload) *Emoji {
	emoji := &Emoji{
		GuildID:  guild.ID,
		ID:       data.ID,
		Name:     data.Name,
		Animated: data.Animated,
	}
	self.store().addEmoji(emoji)
	return emoji
}

func (self *State) storeSticker(guild *Guild, data *StickerPayload) *Sticker {
	sticker := &Sticker{
		GuildID: guild.ID,
		ID:      data.ID,
		Name:    data.Name,
	}
	self.store().addSticker(sticker)
	return sticker
}

// applies a guild payload in place, hydrating the nested collections
func (self *State) hydrateGuild(guild *Guild, data *GuildPayload) {
	guild.mutex.Lock()
	if data.Name != "" {
		guild.Name = data.Name
	}
	if !data.OwnerID.IsZero() {
		guild.OwnerID = data.OwnerID
	}
	guild.Unavailable = data.Unavailable != nil && *data.Unavailable
	guild.Large = data.Large
	if data.MemberCount != 0 {
		guild.memberCount = data.MemberCount
	}
	guild.mutex.Unlock()

	for i := range data.Roles {
		role := &Role{GuildID: guild.ID}
		role.update(&data.Roles[i])
		guild.addRole(role)
	}
	for i := range data.Channels {
		channel := newChannel(&data.Channels[i])
		channel.GuildID = guild.ID
		guild.addChannel(channel)
	}
	for i := range data.Threads {
		thread := newChannel(&data.Threads[i])
		thread.GuildID = guild.ID
		guild.addThread(thread)
	}
	for i := range data.Members {
		if data.Members[i].User == nil {
			continue
		}
		guild.addMember(self.newMember(guild, &data.Members[i]))
	}
	for i := range data.Presences {
		if member := guild.Member(data.Presences[i].User.ID); member != nil {
			member.presenceUpdate(&data.Presences[i])
		}
	}
	if data.Emojis != nil {
		emojis := make([]*Emoji, 0, len(data.Emojis))
		for i := range data.Emojis {
			emojis = append(emojis, self.storeEmoji(guild, &data.Emojis[i]))
		}
		guild.mutex.Lock()
		guild.emojis = emojis
		guild.mutex.Unlock()
	}
	if data.Stickers != nil {
		stickers := make([]*Sticker, 0, len(data.Stickers))
		for i := range data.Stickers {
			stickers = append(stickers, self.storeSticker(guild, &data.Stickers[i]))
		}
		guild.mutex.Lock()
		guild.stickers = stickers
		guild.mutex.Unlock()
	}
	for i := range data.StageInstances {
		instance := &StageInstance{
			GuildID: guild.ID,
			ID:      data.StageInstances[i].ID,
		}
		instance.update(&data.StageInstances[i])
		guild.addStageInstance(instance)
	}
	for i := range data.GuildScheduledEvents {
		event := &data.GuildScheduledEvents[i]
		guild.addScheduledEvent(&ScheduledEvent{
			GuildID:         guild.ID,
			ID:              event.ID,
			ChannelID:       event.ChannelID,
			CreatorID:       event.CreatorID,
			Name:            event.Name,
			Status:          event.Status,
			SubscriberCount: event.UserCount,
		})
	}
	for i := range data.VoiceStates {
		guild.updateVoiceState(&data.VoiceStates[i])
	}
}

func (self *State) addGuildFromPayload(data *GuildPayload, shardID int) *Guild {
	guild := newGuild(data.ID, shardID)
	self.hydrateGuild(guild, data)
	self.store().addGuild(guild)
	return guild
}

// resolves the channel an event refers to. either a guild channel/thread or
// a private channel; nil when the reference is unknown.
func (self *State) resolveChannel(guildID Snowflake, channelID Snowflake) (*Channel, *Guild) {
	store := self.store()
	if !guildID.IsZero() {
		if guild := store.Guild(guildID); guild != nil {
			return guild.resolveChannel(channelID), guild
		}
		return nil, nil
	}
	return store.PrivateChannel(channelID), nil
}

func (self *State) addDMChannel(data *ChannelPayload) *Channel {
	channel := newChannel(data)
	if 0 < len(data.Recipients) {
		recipient := self.storeUser(&data.Recipients[0])
		if channel.Type == ChannelTypeDM {
			channel.Recipient = recipient
		} else {
			for i := range data.Recipients {
				channel.Recipients = append(channel.Recipients, self.storeUser(&data.Recipients[i]))
			}
		}
	}
	self.store().addPrivateChannel(channel)
	return channel
}

// the entry point for decoded events from a shard's transport
func (self *State) Dispatch(shardID int, eventType string, data json.RawMessage) {
	parser, ok := self.parsers[eventType]
	if !ok {
		// protocol may add new types before the client recognizes them
		glog.V(2).Infof("[state]unknown event type %s. discarding\n", eventType)
		return
	}
	parser(shardID, data)
}

// spawns a background task whose panic or error is contained at the task
// boundary and logged with context, never crashing the dispatch loop
func (self *State) spawnLogged(info string, task func() error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				glog.Errorf("[state]panic during %s = %v\n", info, r)
			}
		}()
		if err := task(); err != nil {
			glog.Errorf("[state]error during %s = %s\n", info, err)
		}
	}()
}
