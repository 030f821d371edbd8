package gateway

import (
	"fmt"
	"time"

	"github.com/golang/glog"
)

type Intents uint64

const (
	IntentGuilds Intents = 1 << iota
	IntentGuildMembers
	IntentGuildModeration
	IntentGuildEmojisAndStickers
	IntentGuildIntegrations
	IntentGuildWebhooks
	IntentGuildInvites
	IntentGuildVoiceStates
	IntentGuildPresences
	IntentGuildMessages
	IntentGuildMessageReactions
	IntentGuildMessageTyping
	IntentDirectMessages
	IntentDirectMessageReactions
	IntentDirectMessageTyping
	IntentMessageContent
	IntentGuildScheduledEvents
)

func DefaultIntents() Intents {
	// everything except the privileged member/presence/content intents
	return IntentGuilds |
		IntentGuildModeration |
		IntentGuildEmojisAndStickers |
		IntentGuildIntegrations |
		IntentGuildWebhooks |
		IntentGuildInvites |
		IntentGuildVoiceStates |
		IntentGuildMessages |
		IntentGuildMessageReactions |
		IntentGuildMessageTyping |
		IntentDirectMessages |
		IntentDirectMessageReactions |
		IntentDirectMessageTyping |
		IntentGuildScheduledEvents
}

func (self Intents) Has(intent Intents) bool {
	return self&intent == intent
}

// controls which events are allowed to insert members into a guild's member map
type MemberCacheFlags uint8

const (
	MemberCacheVoice MemberCacheFlags = 1 << iota
	MemberCacheJoined
)

func MemberCacheFlagsFromIntents(intents Intents) MemberCacheFlags {
	flags := MemberCacheFlags(0)
	if intents.Has(IntentGuildVoiceStates) {
		flags |= MemberCacheVoice
	}
	if intents.Has(IntentGuildMembers) {
		flags |= MemberCacheJoined
	}
	return flags
}

func (self MemberCacheFlags) Has(flag MemberCacheFlags) bool {
	return self&flag == flag
}

func (self MemberCacheFlags) Empty() bool {
	return self == 0
}

func (self MemberCacheFlags) VoiceOnly() bool {
	return self == MemberCacheVoice
}

func (self MemberCacheFlags) verifyIntents(intents Intents) error {
	if self.Has(MemberCacheVoice) && !intents.Has(IntentGuildVoiceStates) {
		return fmt.Errorf("MemberCacheVoice requires the voice states intent")
	}
	if self.Has(MemberCacheJoined) && !intents.Has(IntentGuildMembers) {
		return fmt.Errorf("MemberCacheJoined requires the members intent")
	}
	return nil
}

// outbound mention policy attached to sent messages. the engine only carries
// it; the rest layer consumes it.
type AllowedMentions struct {
	Parse       []string    `json:"parse"`
	Users       []Snowflake `json:"users,omitempty"`
	Roles       []Snowflake `json:"roles,omitempty"`
	RepliedUser bool        `json:"replied_user"`
}

type StateSettings struct {
	// capacity of the message ring. <= 0 resets to the default.
	// set DisableMessageCache to turn message caching off entirely.
	MaxMessages         int
	DisableMessageCache bool

	// idle window after the last guild announcement before the readiness
	// coordinator begins draining
	GuildReadyTimeout time.Duration

	Intents Intents

	// nil means derive from intents
	ChunkGuildsAtStartup *bool

	// zero value means derive from intents
	MemberCacheFlags    MemberCacheFlags
	SetMemberCacheFlags bool

	AllowedMentions *AllowedMentions

	PrivateChannelCap int

	// capacity of the per-connection guild announcement queue
	ReadyQueueSize int
}

func DefaultStateSettings() *StateSettings {
	return &StateSettings{
		MaxMessages:       DefaultMaxMessages,
		GuildReadyTimeout: 2 * time.Second,
		Intents:           DefaultIntents(),
		PrivateChannelCap: DefaultPrivateChannelCap,
		ReadyQueueSize:    DefaultReadyQueueSize,
	}
}

const (
	DefaultMaxMessages       = 1000
	DefaultPrivateChannelCap = 128
	DefaultReadyQueueSize    = 1024
)

// resolved, validated form of the settings. construction fails eagerly so the
// engine never starts in an inconsistent configuration.
func (self *StateSettings) validate() (*stateConfig, error) {
	maxMessages := self.MaxMessages
	if self.DisableMessageCache {
		maxMessages = 0
	} else if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}

	if self.GuildReadyTimeout < 0 {
		return nil, fmt.Errorf("GuildReadyTimeout cannot be negative: %s", self.GuildReadyTimeout)
	}
	guildReadyTimeout := self.GuildReadyTimeout
	if guildReadyTimeout == 0 {
		guildReadyTimeout = 2 * time.Second
	}

	intents := self.Intents
	if intents == 0 {
		intents = DefaultIntents()
	}
	if !intents.Has(IntentGuilds) {
		glog.Warningf("[state]guilds intent is disabled. this may cause state related issues\n")
	}

	chunkGuilds := intents.Has(IntentGuildMembers)
	if self.ChunkGuildsAtStartup != nil {
		chunkGuilds = *self.ChunkGuildsAtStartup
	}
	if chunkGuilds && !intents.Has(IntentGuildMembers) {
		return nil, fmt.Errorf("the members intent must be enabled to chunk guilds at startup")
	}

	cacheFlags := self.MemberCacheFlags
	if !self.SetMemberCacheFlags {
		cacheFlags = MemberCacheFlagsFromIntents(intents)
	} else if err := cacheFlags.verifyIntents(intents); err != nil {
		return nil, err
	}

	privateChannelCap := self.PrivateChannelCap
	if privateChannelCap <= 0 {
		privateChannelCap = DefaultPrivateChannelCap
	}

	readyQueueSize := self.ReadyQueueSize
	if readyQueueSize <= 0 {
		readyQueueSize = DefaultReadyQueueSize
	}

	return &stateConfig{
		maxMessages:       maxMessages,
		guildReadyTimeout: guildReadyTimeout,
		intents:           intents,
		chunkGuilds:       chunkGuilds,
		memberCacheFlags:  cacheFlags,
		allowedMentions:   self.AllowedMentions,
		privateChannelCap: privateChannelCap,
		readyQueueSize:    readyQueueSize,
	}, nil
}

type stateConfig struct {
	maxMessages       int
	guildReadyTimeout time.Duration
	intents           Intents
	chunkGuilds       bool
	memberCacheFlags  MemberCacheFlags
	allowedMentions   *AllowedMentions
	privateChannelCap int
	readyQueueSize    int
}
