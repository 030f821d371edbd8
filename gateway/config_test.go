package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestSettingsDefaults(t *testing.T) {
	settings := &StateSettings{}
	config, err := settings.validate()
	assert.Equal(t, err, nil)
	assert.Equal(t, DefaultMaxMessages, config.maxMessages)
	assert.Equal(t, 2*time.Second, config.guildReadyTimeout)
	assert.Equal(t, DefaultIntents(), config.intents)
	assert.Equal(t, DefaultPrivateChannelCap, config.privateChannelCap)
	assert.Equal(t, DefaultReadyQueueSize, config.readyQueueSize)
	// no members intent, no startup chunking
	assert.Equal(t, false, config.chunkGuilds)
}

func TestSettingsNegativeReadyTimeout(t *testing.T) {
	settings := DefaultStateSettings()
	settings.GuildReadyTimeout = -1 * time.Second
	_, err := settings.validate()
	assert.NotEqual(t, err, nil)
}

func TestSettingsChunkingRequiresMembersIntent(t *testing.T) {
	settings := DefaultStateSettings()
	settings.Intents = IntentGuilds
	chunkGuilds := true
	settings.ChunkGuildsAtStartup = &chunkGuilds
	_, err := settings.validate()
	assert.NotEqual(t, err, nil)
}

func TestSettingsMemberCacheFlagsVerify(t *testing.T) {
	settings := DefaultStateSettings()
	settings.Intents = IntentGuilds
	settings.MemberCacheFlags = MemberCacheJoined
	settings.SetMemberCacheFlags = true
	_, err := settings.validate()
	assert.NotEqual(t, err, nil)

	settings.Intents = IntentGuilds | IntentGuildMembers
	config, err := settings.validate()
	assert.Equal(t, err, nil)
	assert.Equal(t, MemberCacheJoined, config.memberCacheFlags)
}

func TestSettingsDerivedMemberCacheFlags(t *testing.T) {
	settings := DefaultStateSettings()
	settings.Intents = IntentGuilds | IntentGuildVoiceStates
	config, err := settings.validate()
	assert.Equal(t, err, nil)
	assert.Equal(t, MemberCacheVoice, config.memberCacheFlags)
	assert.Equal(t, true, config.memberCacheFlags.VoiceOnly())
}

func TestSettingsDisabledMessageCache(t *testing.T) {
	settings := DefaultStateSettings()
	settings.DisableMessageCache = true

	sink, _ := newEventCollector()
	state, err := NewState(context.Background(), sink, &capturingChunker{}, settings)
	assert.Equal(t, err, nil)
	assert.Equal(t, false, state.Store().CachesMessages())
	assert.Equal(t, 0, state.MaxMessages())
}
