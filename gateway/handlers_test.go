package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

// a state past its readiness cycle, with startup chunking off so guild
// events apply synchronously
func newReadyTestState(t *testing.T) (*State, *eventCollector) {
	settings := testStateSettings()
	chunkGuilds := false
	settings.ChunkGuildsAtStartup = &chunkGuilds
	state, collector, _ := newTestState(t, settings)
	state.Dispatch(0, "READY", readyPayload())
	collector.waitFor(t, "ready", 2*time.Second)
	return state, collector
}

func messagePayload(messageID Snowflake, channelID Snowflake, guildID Snowflake, authorID Snowflake, content string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":"%s","channel_id":"%s","guild_id":"%s","content":"%s","timestamp":"2024-05-01T10:00:00Z",`+
			`"author":{"id":"%s","username":"author-%s","discriminator":"1234"}}`,
		messageID, channelID, guildID, content, authorID, authorID,
	))
}

func TestMessageLifecycle(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))

	state.Dispatch(0, "MESSAGE_CREATE", messagePayload(100, 11, 10, 50, "hello"))
	assert.Equal(t, 1, collector.count("message"))
	message := state.Store().Message(100)
	assert.NotEqual(t, message, nil)
	assert.Equal(t, "hello", message.Content)
	assert.NotEqual(t, message.Guild, nil)
	assert.Equal(t, Snowflake(100), state.Store().Guild(10).Channel(11).LastMessageID)

	state.Dispatch(0, "MESSAGE_UPDATE", messagePayload(100, 11, 10, 50, "edited"))
	assert.Equal(t, 1, collector.count("message_edit"))
	assert.Equal(t, "edited", state.Store().Message(100).Content)
	before := collector.last("message_edit").args[0].(*Message)
	assert.Equal(t, "hello", before.Content)

	state.Dispatch(0, "MESSAGE_DELETE", json.RawMessage(`{"id":"100","channel_id":"11","guild_id":"10"}`))
	assert.Equal(t, 1, collector.count("message_delete"))
	assert.Equal(t, state.Store().Message(100), nil)
	raw := collector.last("raw_message_delete").args[0].(*MessageDeleteEvent)
	assert.NotEqual(t, raw.CachedMessage, nil)

	// deleting an uncached message still surfaces the raw notification
	state.Dispatch(0, "MESSAGE_DELETE", json.RawMessage(`{"id":"999","channel_id":"11","guild_id":"10"}`))
	assert.Equal(t, 2, collector.count("raw_message_delete"))
	assert.Equal(t, 1, collector.count("message_delete"))
}

func TestBulkMessageDeletePartialMatch(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))
	state.Dispatch(0, "MESSAGE_CREATE", messagePayload(100, 11, 10, 50, "a"))
	state.Dispatch(0, "MESSAGE_CREATE", messagePayload(101, 11, 10, 50, "b"))

	state.Dispatch(0, "MESSAGE_DELETE_BULK", json.RawMessage(
		`{"ids":["101","999"],"channel_id":"11","guild_id":"10"}`,
	))

	raw := collector.last("raw_bulk_message_delete").args[0].(*MessageDeleteBulkEvent)
	assert.Equal(t, 1, len(raw.CachedMessages))
	assert.Equal(t, Snowflake(101), raw.CachedMessages[0].ID)
	assert.Equal(t, 1, collector.count("bulk_message_delete"))
	assert.Equal(t, state.Store().Message(101), nil)
	assert.NotEqual(t, state.Store().Message(100), nil)
}

func reactionPayload(messageID Snowflake, userID Snowflake, emojiName string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"user_id":"%s","channel_id":"11","message_id":"%s","guild_id":"10","emoji":{"id":null,"name":"%s"},`+
			`"member":{"user":{"id":"%s","username":"user-%s","discriminator":"0001"},"joined_at":"2024-01-01T00:00:00Z"}}`,
		userID, messageID, emojiName, userID, userID,
	))
}

func TestReactions(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))
	state.Dispatch(0, "MESSAGE_CREATE", messagePayload(100, 11, 10, 50, "hello"))
	message := state.Store().Message(100)

	state.Dispatch(0, "MESSAGE_REACTION_ADD", reactionPayload(100, 60, "up"))
	assert.Equal(t, 1, len(message.Reactions))
	assert.Equal(t, 1, message.Reactions[0].Count)
	assert.Equal(t, false, message.Reactions[0].Me)
	assert.Equal(t, 1, collector.count("reaction_add"))

	// the self user's reaction flips Me
	state.Dispatch(0, "MESSAGE_REACTION_ADD", reactionPayload(100, 1, "up"))
	assert.Equal(t, 1, len(message.Reactions))
	assert.Equal(t, 2, message.Reactions[0].Count)
	assert.Equal(t, true, message.Reactions[0].Me)

	state.Dispatch(0, "MESSAGE_REACTION_REMOVE", json.RawMessage(
		`{"user_id":"60","channel_id":"11","message_id":"100","guild_id":"10","emoji":{"id":null,"name":"up"}}`,
	))
	assert.Equal(t, 1, message.Reactions[0].Count)
	assert.Equal(t, true, message.Reactions[0].Me)

	state.Dispatch(0, "MESSAGE_REACTION_REMOVE", json.RawMessage(
		`{"user_id":"1","channel_id":"11","message_id":"100","guild_id":"10","emoji":{"id":null,"name":"up"}}`,
	))
	assert.Equal(t, 0, len(message.Reactions))

	// removing from an empty reaction set is a no-op
	state.Dispatch(0, "MESSAGE_REACTION_REMOVE", json.RawMessage(
		`{"user_id":"60","channel_id":"11","message_id":"100","guild_id":"10","emoji":{"id":null,"name":"up"}}`,
	))
	assert.Equal(t, 0, len(message.Reactions))
}

func memberAddPayload(guildID Snowflake, userID Snowflake) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"guild_id":"%s","user":{"id":"%s","username":"user-%s","discriminator":"0001"},"joined_at":"2024-03-01T00:00:00Z"}`,
		guildID, userID, userID,
	))
}

func TestMemberEvents(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))
	guild := state.Store().Guild(10)

	state.Dispatch(0, "GUILD_MEMBER_ADD", memberAddPayload(10, 70))
	assert.Equal(t, 1, collector.count("member_join"))
	assert.NotEqual(t, guild.Member(70), nil)
	assert.Equal(t, 2, guild.MemberCount())

	state.Dispatch(0, "GUILD_MEMBER_UPDATE", json.RawMessage(
		`{"guild_id":"10","nick":"nick","user":{"id":"70","username":"user-70","discriminator":"0001"}}`,
	))
	assert.Equal(t, 1, collector.count("member_update"))
	assert.Equal(t, "nick", guild.Member(70).Nick)

	state.Dispatch(0, "GUILD_MEMBER_REMOVE", json.RawMessage(
		`{"guild_id":"10","user":{"id":"70","username":"user-70","discriminator":"0001"}}`,
	))
	assert.Equal(t, 1, collector.count("member_remove"))
	assert.Equal(t, 1, collector.count("raw_member_remove"))
	assert.Equal(t, guild.Member(70), nil)
	assert.Equal(t, 1, guild.MemberCount())

	// removal of an uncached member only surfaces the raw notification
	state.Dispatch(0, "GUILD_MEMBER_REMOVE", json.RawMessage(
		`{"guild_id":"10","user":{"id":"999","username":"user-999","discriminator":"0001"}}`,
	))
	assert.Equal(t, 1, collector.count("member_remove"))
	assert.Equal(t, 2, collector.count("raw_member_remove"))
}

func TestPresenceIsolation(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))
	state.Dispatch(0, "GUILD_MEMBER_ADD", memberAddPayload(10, 70))

	// a presence for a guild this connection does not know is discarded
	state.Dispatch(0, "PRESENCE_UPDATE", json.RawMessage(
		`{"user":{"id":"70"},"guild_id":"999","status":"online"}`,
	))
	assert.Equal(t, 0, collector.count("presence_update"))

	state.Dispatch(0, "PRESENCE_UPDATE", json.RawMessage(
		`{"user":{"id":"70"},"guild_id":"10","status":"online"}`,
	))
	assert.Equal(t, 1, collector.count("presence_update"))
	assert.Equal(t, "online", state.Store().Guild(10).Member(70).Status)
	// a partial user record never produces a user update
	assert.Equal(t, 0, collector.count("user_update"))
}

func TestGuildDeleteCascade(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", json.RawMessage(
		`{"id":"10","name":"guild","member_count":1,`+
			`"channels":[{"id":"11","type":0,"name":"general"}],`+
			`"emojis":[{"id":"500","name":"blob"}],`+
			`"stickers":[{"id":"600","name":"peek"}]}`,
	))
	state.Dispatch(0, "MESSAGE_CREATE", messagePayload(100, 11, 10, 50, "hello"))

	assert.NotEqual(t, state.Store().Emoji(500), nil)
	assert.NotEqual(t, state.Store().Sticker(600), nil)

	// an outage keeps the guild cached
	state.Dispatch(0, "GUILD_DELETE", json.RawMessage(`{"id":"10","unavailable":true}`))
	assert.Equal(t, 1, collector.count("guild_unavailable"))
	assert.NotEqual(t, state.Store().Guild(10), nil)

	state.Dispatch(0, "GUILD_DELETE", json.RawMessage(`{"id":"10"}`))
	assert.Equal(t, 1, collector.count("guild_remove"))
	assert.Equal(t, state.Store().Guild(10), nil)
	assert.Equal(t, state.Store().Emoji(500), nil)
	assert.Equal(t, state.Store().Sticker(600), nil)
	assert.Equal(t, state.Store().Message(100), nil)
}

func TestGuildEmojisUpdate(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", json.RawMessage(
		`{"id":"10","name":"guild","member_count":1,"emojis":[{"id":"500","name":"blob"}]}`,
	))

	state.Dispatch(0, "GUILD_EMOJIS_UPDATE", json.RawMessage(
		`{"guild_id":"10","emojis":[{"id":"501","name":"wave"}]}`,
	))
	assert.Equal(t, 1, collector.count("guild_emojis_update"))
	// the replaced set leaves the global map
	assert.Equal(t, state.Store().Emoji(500), nil)
	assert.NotEqual(t, state.Store().Emoji(501), nil)
	emojis := state.Store().Guild(10).Emojis()
	assert.Equal(t, 1, len(emojis))
	assert.Equal(t, "wave", emojis[0].Name)
}

func TestScheduledEventSubscribers(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))
	state.Dispatch(0, "GUILD_MEMBER_ADD", memberAddPayload(10, 70))
	guild := state.Store().Guild(10)

	state.Dispatch(0, "GUILD_SCHEDULED_EVENT_CREATE", json.RawMessage(
		`{"id":"800","guild_id":"10","name":"launch","status":1,"user_count":5}`,
	))
	assert.Equal(t, 1, collector.count("scheduled_event_create"))
	assert.Equal(t, 5, guild.ScheduledEvent(800).SubscriberCount)

	state.Dispatch(0, "GUILD_SCHEDULED_EVENT_USER_ADD", json.RawMessage(
		`{"guild_scheduled_event_id":"800","user_id":"70","guild_id":"10"}`,
	))
	assert.Equal(t, 6, guild.ScheduledEvent(800).SubscriberCount)
	assert.Equal(t, 1, collector.count("scheduled_event_user_add"))

	state.Dispatch(0, "GUILD_SCHEDULED_EVENT_USER_REMOVE", json.RawMessage(
		`{"guild_scheduled_event_id":"800","user_id":"70","guild_id":"10"}`,
	))
	assert.Equal(t, 5, guild.ScheduledEvent(800).SubscriberCount)
	assert.Equal(t, 1, collector.count("scheduled_event_user_remove"))

	state.Dispatch(0, "GUILD_SCHEDULED_EVENT_DELETE", json.RawMessage(
		`{"id":"800","guild_id":"10"}`,
	))
	assert.Equal(t, guild.ScheduledEvent(800), nil)
	assert.Equal(t, 1, collector.count("scheduled_event_delete"))
}

func TestChannelEvents(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))
	guild := state.Store().Guild(10)

	state.Dispatch(0, "CHANNEL_CREATE", json.RawMessage(
		`{"id":"12","type":0,"guild_id":"10","name":"news"}`,
	))
	assert.Equal(t, 1, collector.count("guild_channel_create"))
	assert.NotEqual(t, guild.Channel(12), nil)

	state.Dispatch(0, "CHANNEL_UPDATE", json.RawMessage(
		`{"id":"12","type":0,"guild_id":"10","name":"renamed"}`,
	))
	assert.Equal(t, 1, collector.count("guild_channel_update"))
	assert.Equal(t, "renamed", guild.Channel(12).Name)

	state.Dispatch(0, "CHANNEL_DELETE", json.RawMessage(
		`{"id":"12","type":0,"guild_id":"10"}`,
	))
	assert.Equal(t, 1, collector.count("guild_channel_delete"))
	assert.Equal(t, guild.Channel(12), nil)

	// events for channels of unknown guilds are discarded
	state.Dispatch(0, "CHANNEL_CREATE", json.RawMessage(
		`{"id":"13","type":0,"guild_id":"999","name":"orphan"}`,
	))
	assert.Equal(t, 1, collector.count("guild_channel_create"))
}

func TestThreadEvents(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))
	guild := state.Store().Guild(10)

	state.Dispatch(0, "THREAD_CREATE", json.RawMessage(
		`{"id":"13","type":11,"guild_id":"10","name":"topic","owner_id":"1","newly_created":true,`+
			`"thread_metadata":{"archived":false,"create_timestamp":"2024-06-01T00:00:00Z"}}`,
	))
	assert.Equal(t, 1, collector.count("thread_create"))
	thread := guild.Thread(13)
	assert.NotEqual(t, thread, nil)

	// archiving removes the thread from the active set
	state.Dispatch(0, "THREAD_UPDATE", json.RawMessage(
		`{"id":"13","type":11,"guild_id":"10","name":"topic","thread_metadata":{"archived":true}}`,
	))
	assert.Equal(t, 1, collector.count("thread_update"))
	assert.Equal(t, guild.Thread(13), nil)

	state.Dispatch(0, "THREAD_DELETE", json.RawMessage(
		`{"id":"13","type":11,"guild_id":"10"}`,
	))
	assert.Equal(t, 1, collector.count("raw_thread_delete"))
	assert.Equal(t, 0, collector.count("thread_delete"))
}

func TestUserUpdate(t *testing.T) {
	state, _ := newReadyTestState(t)

	state.Dispatch(0, "USER_UPDATE", json.RawMessage(
		`{"id":"1","username":"renamed","discriminator":"0"}`,
	))
	assert.Equal(t, "renamed", state.SelfUser().Username)
}

func TestVoiceStateUpdate(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))
	state.Dispatch(0, "GUILD_MEMBER_ADD", memberAddPayload(10, 70))
	guild := state.Store().Guild(10)

	state.Dispatch(0, "VOICE_STATE_UPDATE", json.RawMessage(
		`{"guild_id":"10","channel_id":"11","user_id":"70","session_id":"vs-1"}`,
	))
	assert.Equal(t, 1, collector.count("voice_state_update"))
	assert.NotEqual(t, guild.VoiceState(70), nil)

	state.Dispatch(0, "VOICE_STATE_UPDATE", json.RawMessage(
		`{"guild_id":"10","channel_id":null,"user_id":"70","session_id":"vs-1"}`,
	))
	assert.Equal(t, 2, collector.count("voice_state_update"))
	assert.Equal(t, guild.VoiceState(70), nil)
	// joined members stay cached after leaving voice
	assert.NotEqual(t, guild.Member(70), nil)
}

func TestInteractionRouting(t *testing.T) {
	state, collector := newReadyTestState(t)

	routed := []string{}
	state.SetComponentRouter(&recordingComponentRouter{
		dispatched: &routed,
	})

	state.Dispatch(0, "INTERACTION_CREATE", json.RawMessage(
		`{"id":"700","type":3,"data":{"custom_id":"confirm","component_type":2},`+
			`"user":{"id":"70","username":"user-70","discriminator":"0001"}}`,
	))
	assert.Equal(t, 1, collector.count("interaction"))
	assert.Equal(t, []string{"confirm"}, routed)
}

type recordingComponentRouter struct {
	dispatched *[]string
}

func (self *recordingComponentRouter) DispatchComponent(componentType int, customID string, interaction *InteractionPayload) {
	*self.dispatched = append(*self.dispatched, customID)
}

func (self *recordingComponentRouter) TracksMessage(messageID Snowflake) bool {
	return false
}

func (self *recordingComponentRouter) UpdateFromMessage(messageID Snowflake, components []byte) {
}

// the same user object backs members of guilds on different shards, and
// each shard mutates it from its own dispatch loop
func TestConcurrentPresenceUpdates(t *testing.T) {
	state, _ := newReadyTestState(t)
	for _, guildID := range []Snowflake{10, 20} {
		state.Dispatch(0, "GUILD_CREATE", json.RawMessage(fmt.Sprintf(
			`{"id":"%s","name":"guild","member_count":1,`+
				`"members":[{"user":{"id":"2","username":"shared","discriminator":"1234"},"joined_at":"2024-01-02T03:04:05Z"}]}`,
			guildID,
		)))
	}
	assert.Equal(t, true, state.Store().Guild(10).Member(2).User == state.Store().Guild(20).Member(2).User)

	var group sync.WaitGroup
	for shardID, guildID := range map[int]Snowflake{0: 10, 1: 20} {
		group.Add(1)
		go func(shardID int, guildID Snowflake) {
			defer group.Done()
			for i := 0; i < 50; i += 1 {
				state.Dispatch(shardID, "PRESENCE_UPDATE", json.RawMessage(fmt.Sprintf(
					`{"guild_id":"%s","status":"online","user":{"id":"2","username":"name-%d-%d","discriminator":"1234"}}`,
					guildID, shardID, i,
				)))
			}
		}(shardID, guildID)
	}
	group.Wait()

	username := state.Store().Guild(10).Member(2).User.Username
	assert.Equal(t, true, username == "name-0-49" || username == "name-1-49")
}

func TestAutoModEvents(t *testing.T) {
	state, collector := newReadyTestState(t)
	state.Dispatch(0, "GUILD_CREATE", guildCreatePayload(10, 1))

	state.Dispatch(0, "AUTO_MODERATION_RULE_CREATE", json.RawMessage(
		`{"id":"700","guild_id":"10","name":"no spam","creator_id":"1","trigger_type":3,"enabled":true}`,
	))
	assert.Equal(t, 1, collector.count("automod_rule_create"))
	rule := collector.last("automod_rule_create").args[0].(*AutoModRulePayload)
	assert.Equal(t, "no spam", rule.Name)
	assert.Equal(t, true, rule.Enabled)

	state.Dispatch(0, "AUTO_MODERATION_RULE_DELETE", json.RawMessage(
		`{"id":"700","guild_id":"10","name":"no spam"}`,
	))
	assert.Equal(t, 1, collector.count("automod_rule_delete"))

	state.Dispatch(0, "AUTO_MODERATION_ACTION_EXECUTION", json.RawMessage(
		`{"guild_id":"10","rule_id":"700","user_id":"2","channel_id":"11","matched_keyword":"spam"}`,
	))
	assert.Equal(t, 1, collector.count("automod_action"))
	assert.Equal(t, Snowflake(10), collector.last("automod_action").args[0].(*Guild).ID)

	// unknown guild references are discarded
	state.Dispatch(0, "AUTO_MODERATION_ACTION_EXECUTION", json.RawMessage(
		`{"guild_id":"99","rule_id":"700","user_id":"2"}`,
	))
	assert.Equal(t, 1, collector.count("automod_action"))
}

func TestEntitlementEvents(t *testing.T) {
	state, collector := newReadyTestState(t)

	state.Dispatch(0, "ENTITLEMENT_CREATE", json.RawMessage(
		`{"id":"800","sku_id":"801","application_id":"900","user_id":"2","type":8}`,
	))
	assert.Equal(t, 1, collector.count("entitlement_create"))
	entitlement := collector.last("entitlement_create").args[0].(*EntitlementPayload)
	assert.Equal(t, Snowflake(801), entitlement.SkuID)

	state.Dispatch(0, "ENTITLEMENT_DELETE", json.RawMessage(
		`{"id":"800","sku_id":"801","application_id":"900","user_id":"2","type":8,"deleted":true}`,
	))
	assert.Equal(t, 1, collector.count("entitlement_delete"))
}

func TestAppCommandPermissionsUpdate(t *testing.T) {
	state, collector := newReadyTestState(t)

	state.Dispatch(0, "APPLICATION_COMMAND_PERMISSIONS_UPDATE", json.RawMessage(
		`{"id":"850","application_id":"900","guild_id":"10"}`,
	))
	assert.Equal(t, 1, collector.count("raw_app_command_permissions_update"))
}
