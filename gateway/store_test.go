package gateway

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func testPrivateChannel(channelID Snowflake, userID Snowflake) *Channel {
	return &Channel{
		ID:   channelID,
		Type: ChannelTypeDM,
		Recipient: &User{
			ID: userID,
		},
	}
}

func testMessage(messageID Snowflake, guild *Guild) *Message {
	return &Message{
		ID:    messageID,
		Guild: guild,
		Author: &User{
			ID: 1,
		},
	}
}

func TestPrivateChannelEviction(t *testing.T) {
	store := newEntityStore(3, DefaultMaxMessages)

	for i := 1; i <= 3; i += 1 {
		store.addPrivateChannel(testPrivateChannel(Snowflake(i), Snowflake(100+i)))
	}
	assert.Equal(t, 3, store.PrivateChannelCount())

	// a lookup refreshes recency
	assert.NotEqual(t, store.PrivateChannel(1), nil)

	store.addPrivateChannel(testPrivateChannel(4, 104))
	assert.Equal(t, 3, store.PrivateChannelCount())

	// channel 2 was the least recently used
	assert.Equal(t, store.PrivateChannel(2), nil)
	assert.NotEqual(t, store.PrivateChannel(1), nil)
	assert.NotEqual(t, store.PrivateChannel(3), nil)
	assert.NotEqual(t, store.PrivateChannel(4), nil)

	// the recipient index follows the eviction
	assert.Equal(t, store.PrivateChannelByUser(102), nil)
	assert.NotEqual(t, store.PrivateChannelByUser(101), nil)
	assert.Equal(t, Snowflake(4), store.PrivateChannelByUser(104).ID)
}

func TestPrivateChannelReAddRefreshes(t *testing.T) {
	store := newEntityStore(2, DefaultMaxMessages)

	store.addPrivateChannel(testPrivateChannel(1, 101))
	store.addPrivateChannel(testPrivateChannel(2, 102))
	// re-adding an existing id refreshes it instead of growing the lru
	store.addPrivateChannel(testPrivateChannel(1, 101))
	store.addPrivateChannel(testPrivateChannel(3, 103))

	assert.Equal(t, 2, store.PrivateChannelCount())
	assert.NotEqual(t, store.PrivateChannel(1), nil)
	assert.Equal(t, store.PrivateChannel(2), nil)
	assert.NotEqual(t, store.PrivateChannel(3), nil)
}

func TestMessageRingEviction(t *testing.T) {
	store := newEntityStore(DefaultPrivateChannelCap, 3)
	assert.Equal(t, true, store.CachesMessages())

	for i := 1; i <= 4; i += 1 {
		store.addMessage(testMessage(Snowflake(i), nil))
	}

	messages := store.Messages()
	assert.Equal(t, 3, len(messages))
	// the oldest message fell off
	assert.Equal(t, store.Message(1), nil)
	assert.Equal(t, Snowflake(2), messages[0].ID)
	assert.Equal(t, Snowflake(4), messages[2].ID)
}

func TestMessageCacheDisabled(t *testing.T) {
	store := newEntityStore(DefaultPrivateChannelCap, 0)
	assert.Equal(t, false, store.CachesMessages())

	store.addMessage(testMessage(1, nil))
	assert.Equal(t, store.Message(1), nil)
	assert.Equal(t, 0, len(store.Messages()))
}

func TestRemoveGuildMessages(t *testing.T) {
	store := newEntityStore(DefaultPrivateChannelCap, 10)
	guildA := newGuild(10, 0)
	guildB := newGuild(20, 0)

	store.addMessage(testMessage(1, guildA))
	store.addMessage(testMessage(2, guildB))
	store.addMessage(testMessage(3, guildA))
	store.addMessage(testMessage(4, nil))

	store.removeGuildMessages(guildA)

	messages := store.Messages()
	assert.Equal(t, 2, len(messages))
	// evictions preserve the remaining order
	assert.Equal(t, Snowflake(2), messages[0].ID)
	assert.Equal(t, Snowflake(4), messages[1].ID)
}

func TestRemoveGuildCascade(t *testing.T) {
	store := newEntityStore(DefaultPrivateChannelCap, DefaultMaxMessages)
	guild := newGuild(10, 0)
	store.addGuild(guild)

	emoji := &Emoji{
		GuildID: 10,
		ID:      500,
		Name:    "blob",
	}
	sticker := &Sticker{
		GuildID: 10,
		ID:      600,
		Name:    "peek",
	}
	store.addEmoji(emoji)
	store.addSticker(sticker)
	guild.mutex.Lock()
	guild.emojis = []*Emoji{emoji}
	guild.stickers = []*Sticker{sticker}
	guild.mutex.Unlock()

	store.removeGuild(guild)

	assert.Equal(t, store.Guild(10), nil)
	assert.Equal(t, store.Emoji(500), nil)
	assert.Equal(t, store.Sticker(600), nil)
}
