package gateway

import (
	"encoding/json"
	"time"

	"github.com/golang/glog"
)

// raw notification bodies that carry the cache state matched at dispatch
// time

type MessageDeleteEvent struct {
	MessageDeletePayload
	CachedMessage *Message
}

type MessageDeleteBulkEvent struct {
	MessageDeleteBulkPayload
	CachedMessages []*Message
}

type MessageUpdateEvent struct {
	MessagePayload
	CachedMessage *Message
}

func decodeEvent[T any](eventType string, data json.RawMessage) (*T, bool) {
	payload := new(T)
	if err := json.Unmarshal(data, payload); err != nil {
		glog.Warningf("[state]malformed %s payload = %s\n", eventType, err)
		return nil, false
	}
	return payload, true
}

func dropUnknown(eventType string, kind string, id Snowflake) {
	glog.V(2).Infof("[state]%s referencing an unknown %s id %s. discarding\n", eventType, kind, id)
}

// the static event type to handler mapping, assembled once at construction.
// no runtime reflection over method names.
func (self *State) buildParsers() map[string]parserFunc {
	return map[string]parserFunc{
		"READY":                              self.parseReady,
		"RESUMED":                            self.parseResumed,
		"MESSAGE_CREATE":                     self.parseMessageCreate,
		"MESSAGE_UPDATE":                     self.parseMessageUpdate,
		"MESSAGE_DELETE":                     self.parseMessageDelete,
		"MESSAGE_DELETE_BULK":                self.parseMessageDeleteBulk,
		"MESSAGE_REACTION_ADD":               self.parseMessageReactionAdd,
		"MESSAGE_REACTION_REMOVE":            self.parseMessageReactionRemove,
		"MESSAGE_REACTION_REMOVE_ALL":        self.parseMessageReactionRemoveAll,
		"MESSAGE_REACTION_REMOVE_EMOJI":      self.parseMessageReactionRemoveEmoji,
		"MESSAGE_POLL_VOTE_ADD":              self.parseMessagePollVoteAdd,
		"MESSAGE_POLL_VOTE_REMOVE":           self.parseMessagePollVoteRemove,
		"INTERACTION_CREATE":                 self.parseInteractionCreate,
		"PRESENCE_UPDATE":                    self.parsePresenceUpdate,
		"USER_UPDATE":                        self.parseUserUpdate,
		"TYPING_START":                       self.parseTypingStart,
		"INVITE_CREATE":                      self.parseInviteCreate,
		"INVITE_DELETE":                      self.parseInviteDelete,
		"CHANNEL_CREATE":                     self.parseChannelCreate,
		"CHANNEL_UPDATE":                     self.parseChannelUpdate,
		"CHANNEL_DELETE":                     self.parseChannelDelete,
		"CHANNEL_PINS_UPDATE":                self.parseChannelPinsUpdate,
		"THREAD_CREATE":                      self.parseThreadCreate,
		"THREAD_UPDATE":                      self.parseThreadUpdate,
		"THREAD_DELETE":                      self.parseThreadDelete,
		"THREAD_LIST_SYNC":                   self.parseThreadListSync,
		"THREAD_MEMBER_UPDATE":               self.parseThreadMemberUpdate,
		"THREAD_MEMBERS_UPDATE":              self.parseThreadMembersUpdate,
		"GUILD_CREATE":                       self.parseGuildCreate,
		"GUILD_UPDATE":                       self.parseGuildUpdate,
		"GUILD_DELETE":                       self.parseGuildDelete,
		"GUILD_MEMBER_ADD":                   self.parseGuildMemberAdd,
		"GUILD_MEMBER_UPDATE":                self.parseGuildMemberUpdate,
		"GUILD_MEMBER_REMOVE":                self.parseGuildMemberRemove,
		"GUILD_MEMBERS_CHUNK":                self.parseGuildMembersChunk,
		"GUILD_EMOJIS_UPDATE":                self.parseGuildEmojisUpdate,
		"GUILD_STICKERS_UPDATE":              self.parseGuildStickersUpdate,
		"GUILD_ROLE_CREATE":                  self.parseGuildRoleCreate,
		"GUILD_ROLE_UPDATE":                  self.parseGuildRoleUpdate,
		"GUILD_ROLE_DELETE":                  self.parseGuildRoleDelete,
		"GUILD_BAN_ADD":                      self.parseGuildBanAdd,
		"GUILD_BAN_REMOVE":                   self.parseGuildBanRemove,
		"GUILD_INTEGRATIONS_UPDATE":          self.parseGuildIntegrationsUpdate,
		"INTEGRATION_CREATE":                 self.parseIntegrationCreate,
		"INTEGRATION_UPDATE":                 self.parseIntegrationUpdate,
		"INTEGRATION_DELETE":                 self.parseIntegrationDelete,
		"GUILD_AUDIT_LOG_ENTRY_CREATE":       self.parseGuildAuditLogEntryCreate,
		"GUILD_SCHEDULED_EVENT_CREATE":       self.parseScheduledEventCreate,
		"GUILD_SCHEDULED_EVENT_UPDATE":       self.parseScheduledEventUpdate,
		"GUILD_SCHEDULED_EVENT_DELETE":       self.parseScheduledEventDelete,
		"GUILD_SCHEDULED_EVENT_USER_ADD":     self.parseScheduledEventUserAdd,
		"GUILD_SCHEDULED_EVENT_USER_REMOVE":  self.parseScheduledEventUserRemove,
		"STAGE_INSTANCE_CREATE":              self.parseStageInstanceCreate,
		"STAGE_INSTANCE_UPDATE":              self.parseStageInstanceUpdate,
		"STAGE_INSTANCE_DELETE":              self.parseStageInstanceDelete,
		"VOICE_STATE_UPDATE":                 self.parseVoiceStateUpdate,
		"VOICE_SERVER_UPDATE":                self.parseVoiceServerUpdate,
		"VOICE_CHANNEL_STATUS_UPDATE":        self.parseVoiceChannelStatusUpdate,
		"WEBHOOKS_UPDATE":                    self.parseWebhooksUpdate,
		"AUTO_MODERATION_RULE_CREATE":        self.parseAutoModRuleCreate,
		"AUTO_MODERATION_RULE_UPDATE":        self.parseAutoModRuleUpdate,
		"AUTO_MODERATION_RULE_DELETE":        self.parseAutoModRuleDelete,
		"AUTO_MODERATION_ACTION_EXECUTION":   self.parseAutoModActionExecution,
		"ENTITLEMENT_CREATE":                 self.parseEntitlementCreate,
		"ENTITLEMENT_UPDATE":                 self.parseEntitlementUpdate,
		"ENTITLEMENT_DELETE":                 self.parseEntitlementDelete,

		"APPLICATION_COMMAND_PERMISSIONS_UPDATE": self.parseAppCommandPermissionsUpdate,
	}
}

func (self *State) createMessage(channel *Channel, guild *Guild, data *MessagePayload) *Message {
	author := self.storeUser(&data.Author)
	message := &Message{
		ID:        data.ID,
		ChannelID: data.ChannelID,
		Guild:     guild,
		Channel:   channel,
		Author:    author,
		Content:   data.Content,
		Timestamp: parseTimestamp(data.Timestamp),
		Pinned:    data.Pinned,
	}
	if data.EditedTimestamp != "" {
		message.EditedTimestamp = parseTimestamp(data.EditedTimestamp)
	}
	if guild != nil {
		if member := guild.Member(author.ID); member != nil {
			message.Member = member
		} else if data.Member != nil {
			member := &Member{
				GuildID: guild.ID,
				User:    author,
			}
			member.update(data.Member)
			message.Member = member
		}
	}
	for i := range data.Reactions {
		r := &data.Reactions[i]
		message.Reactions = append(message.Reactions, &Reaction{
			EmojiID:   r.Emoji.ID,
			EmojiName: r.Emoji.Name,
			Animated:  r.Emoji.Animated,
			Count:     r.Count,
			Me:        r.Me,
		})
	}
	if data.Poll != nil {
		self.store().addPoll(newPoll(data.ID, data.Poll))
	}
	return message
}

func (self *State) parseMessageCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[MessagePayload]("MESSAGE_CREATE", data)
	if !ok {
		return
	}

	channel, guild := self.resolveChannel(payload.GuildID, payload.ChannelID)
	message := self.createMessage(channel, guild, payload)
	self.emit("message", message)
	self.store().addMessage(message)
	if channel != nil {
		channel.LastMessageID = message.ID
	}
}

func (self *State) parseMessageUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[MessagePayload]("MESSAGE_UPDATE", data)
	if !ok {
		return
	}

	event := &MessageUpdateEvent{MessagePayload: *payload}
	message := self.store().Message(payload.ID)
	if message != nil {
		older := copyMessage(message)
		event.CachedMessage = older
		self.emit("raw_message_edit", event)
		message.update(payload)
		// coerce the before value to reference the updated author
		older.Author = message.Author
		self.emit("message_edit", older, message)
	} else {
		if payload.Poll != nil {
			self.store().addPoll(newPoll(payload.ID, payload.Poll))
		}
		self.emit("raw_message_edit", event)
	}

	if payload.Components != nil {
		if router := self.componentRouter(); router != nil && router.TracksMessage(payload.ID) {
			router.UpdateFromMessage(payload.ID, payload.Components)
		}
	}
}

func (self *State) parseMessageDelete(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[MessageDeletePayload]("MESSAGE_DELETE", data)
	if !ok {
		return
	}

	store := self.store()
	found := store.Message(payload.ID)
	event := &MessageDeleteEvent{
		MessageDeletePayload: *payload,
		CachedMessage:        found,
	}
	self.emit("raw_message_delete", event)
	if found != nil {
		self.emit("message_delete", found)
		store.removeMessage(found)
	}
}

func (self *State) parseMessageDeleteBulk(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[MessageDeleteBulkPayload]("MESSAGE_DELETE_BULK", data)
	if !ok {
		return
	}

	store := self.store()
	deleted := map[Snowflake]bool{}
	for _, id := range payload.IDs {
		deleted[id] = true
	}
	found := []*Message{}
	for _, message := range store.Messages() {
		if deleted[message.ID] {
			found = append(found, message)
		}
	}

	event := &MessageDeleteBulkEvent{
		MessageDeleteBulkPayload: *payload,
		CachedMessages:           found,
	}
	self.emit("raw_bulk_message_delete", event)
	if 0 < len(found) {
		self.emit("bulk_message_delete", found)
		for _, message := range found {
			store.removeMessage(message)
		}
	}
}

func (self *State) reactionMember(guildID Snowflake, data *MemberPayload) *Member {
	if data == nil || data.User == nil {
		return nil
	}
	guild := self.store().Guild(guildID)
	if guild == nil {
		return nil
	}
	return self.newMember(guild, data)
}

func (self *State) parseMessageReactionAdd(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ReactionActionPayload]("MESSAGE_REACTION_ADD", data)
	if !ok {
		return
	}

	member := self.reactionMember(payload.GuildID, payload.Member)
	self.emit("raw_reaction_add", payload, member)

	message := self.store().Message(payload.MessageID)
	if message == nil {
		return
	}
	reaction := message.addReaction(&payload.Emoji, payload.UserID, self.selfID())
	if member != nil {
		self.emit("reaction_add", reaction, member)
	} else if user := self.reactionUser(message, payload.UserID); user != nil {
		self.emit("reaction_add", reaction, user)
	}
}

func (self *State) parseMessageReactionRemove(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ReactionActionPayload]("MESSAGE_REACTION_REMOVE", data)
	if !ok {
		return
	}

	self.emit("raw_reaction_remove", payload)

	message := self.store().Message(payload.MessageID)
	if message == nil {
		return
	}
	// eventual consistency: the reaction may already be gone
	reaction := message.removeReaction(&payload.Emoji, payload.UserID, self.selfID())
	if reaction == nil {
		return
	}
	if user := self.reactionUser(message, payload.UserID); user != nil {
		self.emit("reaction_remove", reaction, user)
	}
}

func (self *State) parseMessageReactionRemoveAll(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ReactionClearPayload]("MESSAGE_REACTION_REMOVE_ALL", data)
	if !ok {
		return
	}

	self.emit("raw_reaction_clear", payload)

	message := self.store().Message(payload.MessageID)
	if message == nil {
		return
	}
	old := message.Reactions
	message.Reactions = nil
	self.emit("reaction_clear", message, old)
}

func (self *State) parseMessageReactionRemoveEmoji(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ReactionClearPayload]("MESSAGE_REACTION_REMOVE_EMOJI", data)
	if !ok {
		return
	}

	self.emit("raw_reaction_clear_emoji", payload)

	message := self.store().Message(payload.MessageID)
	if message == nil {
		return
	}
	if reaction := message.clearEmoji(&payload.Emoji); reaction != nil {
		self.emit("reaction_clear_emoji", reaction)
	}
}

// the acting user of a reaction: a cached member when the message is in a
// guild, the global user otherwise
func (self *State) reactionUser(message *Message, userID Snowflake) any {
	if message.Guild != nil {
		if member := message.Guild.Member(userID); member != nil {
			return member
		}
		return nil
	}
	if user := self.store().User(userID); user != nil {
		return user
	}
	return nil
}

func (self *State) pollVoteUser(payload *PollVotePayload) any {
	if guild := self.store().Guild(payload.GuildID); guild != nil {
		if member := guild.Member(payload.UserID); member != nil {
			return member
		}
		return nil
	}
	if user := self.store().User(payload.UserID); user != nil {
		return user
	}
	return nil
}

func (self *State) parseMessagePollVoteAdd(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[PollVotePayload]("MESSAGE_POLL_VOTE_ADD", data)
	if !ok {
		return
	}

	user := self.pollVoteUser(payload)
	self.emit("raw_poll_vote_add", payload)

	poll := self.store().Poll(payload.MessageID)
	if poll == nil {
		return
	}
	answer := poll.Answer(payload.AnswerID)
	if answer != nil {
		poll.addVote(payload.AnswerID)
	}
	if user != nil && answer != nil {
		self.emit("poll_vote_add", poll, user, answer)
	}
}

func (self *State) parseMessagePollVoteRemove(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[PollVotePayload]("MESSAGE_POLL_VOTE_REMOVE", data)
	if !ok {
		return
	}

	user := self.pollVoteUser(payload)
	self.emit("raw_poll_vote_remove", payload)

	poll := self.store().Poll(payload.MessageID)
	if poll == nil {
		return
	}
	answer := poll.Answer(payload.AnswerID)
	if answer != nil {
		poll.removeVote(payload.AnswerID)
	}
	if user != nil && answer != nil {
		self.emit("poll_vote_remove", poll, user, answer)
	}
}

func (self *State) parseInteractionCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[InteractionPayload]("INTERACTION_CREATE", data)
	if !ok {
		return
	}

	if payload.Type == InteractionTypeComponent && payload.Data != nil {
		if router := self.componentRouter(); router != nil {
			router.DispatchComponent(payload.Data.ComponentType, payload.Data.CustomID, payload)
		}
	}
	if payload.Type == InteractionTypeModalSubmit && payload.Data != nil {
		if router := self.modalRouter(); router != nil {
			userID := Snowflake(0)
			if payload.User != nil {
				userID = payload.User.ID
			} else if payload.Member != nil && payload.Member.User != nil {
				userID = payload.Member.User.ID
			}
			customID := payload.Data.CustomID
			// modal handlers await user code and must not stall the
			// dispatch loop
			self.spawnLogged("modal submit interaction", func() error {
				return router.DispatchModal(self.ctx, userID, customID, payload)
			})
		}
	}

	self.emit("interaction", payload)
}

func (self *State) parsePresenceUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[PresencePayload]("PRESENCE_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("PRESENCE_UPDATE", "guild", payload.GuildID)
		return
	}
	member := guild.Member(payload.User.ID)
	if member == nil {
		dropUnknown("PRESENCE_UPDATE", "member", payload.User.ID)
		return
	}

	old := copyMember(member)
	userBefore, userAfter := member.presenceUpdate(payload)
	if userBefore != nil {
		self.emit("user_update", userBefore, userAfter)
	}
	self.emit("presence_update", old, member)
}

func (self *State) parseUserUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[UserPayload]("USER_UPDATE", data)
	if !ok {
		return
	}

	// the self user is always cached when this arrives
	self.mutex.Lock()
	user := self.user
	self.mutex.Unlock()
	if user != nil {
		user.update(payload)
	}
	if ref := self.store().User(payload.ID); ref != nil {
		ref.update(payload)
	}
}

func (self *State) parseTypingStart(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[TypingStartPayload]("TYPING_START", data)
	if !ok {
		return
	}

	member := self.reactionMember(payload.GuildID, payload.Member)
	self.emit("raw_typing", payload, member)

	channel, guild := self.resolveChannel(payload.GuildID, payload.ChannelID)
	if channel == nil {
		return
	}
	var user any
	if member != nil {
		user = member
	} else if guild != nil {
		if m := guild.Member(payload.UserID); m != nil {
			user = m
		}
	} else if u := self.store().User(payload.UserID); u != nil {
		user = u
	}
	if user != nil {
		self.emit("typing", channel, user, time.Unix(payload.Timestamp, 0))
	}
}

func (self *State) parseInviteCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[InvitePayload]("INVITE_CREATE", data)
	if !ok {
		return
	}
	self.emit("invite_create", payload)
}

func (self *State) parseInviteDelete(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[InvitePayload]("INVITE_DELETE", data)
	if !ok {
		return
	}
	self.emit("invite_delete", payload)
}

func (self *State) parseChannelCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ChannelPayload]("CHANNEL_CREATE", data)
	if !ok {
		return
	}

	if payload.Type.IsPrivate() {
		channel := self.addDMChannel(payload)
		self.emit("private_channel_create", channel)
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("CHANNEL_CREATE", "guild", payload.GuildID)
		return
	}
	channel := newChannel(payload)
	guild.addChannel(channel)
	self.emit("guild_channel_create", channel)
}

func (self *State) parseChannelUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ChannelPayload]("CHANNEL_UPDATE", data)
	if !ok {
		return
	}

	if payload.Type == ChannelTypeGroupDM {
		channel := self.store().PrivateChannel(payload.ID)
		if channel == nil {
			dropUnknown("CHANNEL_UPDATE", "channel", payload.ID)
			return
		}
		old := copyChannel(channel)
		channel.update(payload)
		self.emit("private_channel_update", old, channel)
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("CHANNEL_UPDATE", "guild", payload.GuildID)
		return
	}
	channel := guild.Channel(payload.ID)
	if channel == nil {
		dropUnknown("CHANNEL_UPDATE", "channel", payload.ID)
		return
	}
	old := copyChannel(channel)
	channel.update(payload)
	self.emit("guild_channel_update", old, channel)
}

func (self *State) parseChannelDelete(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ChannelPayload]("CHANNEL_DELETE", data)
	if !ok {
		return
	}

	if payload.Type.IsPrivate() {
		if channel := self.store().PrivateChannel(payload.ID); channel != nil {
			self.store().removePrivateChannel(channel)
			self.emit("private_channel_delete", channel)
		}
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		return
	}
	if channel := guild.removeChannel(payload.ID); channel != nil {
		self.emit("guild_channel_delete", channel)
	}
}

func (self *State) parseChannelPinsUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ChannelPinsUpdatePayload]("CHANNEL_PINS_UPDATE", data)
	if !ok {
		return
	}

	channel, guild := self.resolveChannel(payload.GuildID, payload.ChannelID)
	if channel == nil {
		dropUnknown("CHANNEL_PINS_UPDATE", "channel", payload.ChannelID)
		return
	}
	channel.LastPinAt = parseTimestamp(payload.LastPinTimestamp)
	if guild == nil {
		self.emit("private_channel_pins_update", channel, channel.LastPinAt)
	} else {
		self.emit("guild_channel_pins_update", channel, channel.LastPinAt)
	}
}

func (self *State) parseThreadCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ChannelPayload]("THREAD_CREATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("THREAD_CREATE", "guild", payload.GuildID)
		return
	}

	if cached := guild.Thread(payload.ID); cached != nil {
		self.emit("thread_join", cached)
		return
	}

	thread := newChannel(payload)
	thread.GuildID = guild.ID
	guild.addThread(thread)
	if payload.NewlyCreated {
		joinedAt := time.Time{}
		if payload.ThreadMetadata != nil {
			joinedAt = parseTimestamp(payload.ThreadMetadata.CreateTimestamp)
		}
		thread.addThreadMember(&ThreadMember{
			ThreadID: thread.ID,
			UserID:   payload.OwnerID,
			JoinedAt: joinedAt,
		})
		self.emit("thread_create", thread)
	}
}

func (self *State) parseThreadUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ChannelPayload]("THREAD_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("THREAD_UPDATE", "guild", payload.GuildID)
		return
	}

	thread := guild.Thread(payload.ID)
	if thread != nil {
		old := copyChannel(thread)
		thread.update(payload)
		if thread.Archived {
			guild.removeThread(thread.ID)
		}
		self.emit("thread_update", old, thread)
	} else {
		thread = newChannel(payload)
		thread.GuildID = guild.ID
		if !thread.Archived {
			guild.addThread(thread)
		}
		self.emit("thread_join", thread)
	}
	self.emit("raw_thread_update", payload, thread)
}

func (self *State) parseThreadDelete(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ChannelPayload]("THREAD_DELETE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("THREAD_DELETE", "guild", payload.GuildID)
		return
	}

	thread := guild.Thread(payload.ID)
	self.emit("raw_thread_delete", payload, thread)
	if thread != nil {
		guild.removeThread(thread.ID)
		self.emit("thread_delete", thread)
	}
}

func (self *State) parseThreadListSync(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ThreadListSyncPayload]("THREAD_LIST_SYNC", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("THREAD_LIST_SYNC", "guild", payload.GuildID)
		return
	}

	var previous map[Snowflake]*Channel
	if payload.ChannelIDs == nil {
		// the entire guild is being synced, all previous thread data is
		// overwritten
		previous = guild.clearThreads()
	} else {
		channelIDs := map[Snowflake]bool{}
		for _, id := range payload.ChannelIDs {
			channelIDs[id] = true
		}
		previous = guild.filterThreads(channelIDs)
	}

	threads := map[Snowflake]*Channel{}
	for i := range payload.Threads {
		thread := newChannel(&payload.Threads[i])
		thread.GuildID = guild.ID
		guild.addThread(thread)
		threads[thread.ID] = thread
	}

	for i := range payload.Members {
		memberData := &payload.Members[i]
		// the payload id is the thread id
		if thread, ok := threads[memberData.ID]; ok {
			thread.addThreadMember(&ThreadMember{
				ThreadID: thread.ID,
				UserID:   memberData.UserID,
				JoinedAt: parseTimestamp(memberData.JoinTimestamp),
			})
		}
	}

	for _, thread := range threads {
		if _, ok := previous[thread.ID]; !ok {
			self.emit("thread_join", thread)
		}
		delete(previous, thread.ID)
	}
	for _, thread := range previous {
		self.emit("thread_remove", thread)
	}
}

func (self *State) parseThreadMemberUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ThreadMemberUpdatePayload]("THREAD_MEMBER_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("THREAD_MEMBER_UPDATE", "guild", payload.GuildID)
		return
	}
	thread := guild.Thread(payload.ID)
	if thread == nil {
		dropUnknown("THREAD_MEMBER_UPDATE", "thread", payload.ID)
		return
	}

	member := &ThreadMember{
		ThreadID: thread.ID,
		UserID:   payload.UserID,
		JoinedAt: parseTimestamp(payload.JoinTimestamp),
	}
	thread.Me = member
	thread.addThreadMember(member)
}

func (self *State) parseThreadMembersUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ThreadMembersUpdatePayload]("THREAD_MEMBERS_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("THREAD_MEMBERS_UPDATE", "guild", payload.GuildID)
		return
	}
	thread := guild.Thread(payload.ID)
	if thread == nil {
		dropUnknown("THREAD_MEMBERS_UPDATE", "thread", payload.ID)
		return
	}

	selfID := self.selfID()
	for i := range payload.AddedMembers {
		memberData := &payload.AddedMembers[i]
		member := &ThreadMember{
			ThreadID: thread.ID,
			UserID:   memberData.UserID,
			JoinedAt: parseTimestamp(memberData.JoinTimestamp),
		}
		thread.addThreadMember(member)
		if member.UserID != selfID {
			self.emit("thread_member_join", member)
		} else {
			thread.Me = member
			self.emit("thread_join", thread)
		}
	}

	for _, userID := range payload.RemovedMemberIDs {
		member := thread.popThreadMember(userID)
		if userID != selfID {
			self.emit("raw_thread_member_remove", payload, userID)
			if member != nil {
				self.emit("thread_member_remove", member)
			}
		} else {
			thread.Me = nil
			self.emit("thread_remove", thread)
		}
	}
}

// a GUILD_CREATE either flips a cached unavailable guild back to available
// or introduces a brand new one
func (self *State) getCreateGuild(payload *GuildPayload, shardID int) (*Guild, bool) {
	if payload.Unavailable != nil && !*payload.Unavailable {
		if guild := self.store().Guild(payload.ID); guild != nil {
			self.hydrateGuild(guild, payload)
			return guild, false
		}
	}
	joined := self.store().Guild(payload.ID) == nil
	return self.addGuildFromPayload(payload, shardID), joined
}

func (self *State) parseGuildCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildPayload]("GUILD_CREATE", data)
	if !ok {
		return
	}

	if payload.Unavailable != nil && *payload.Unavailable {
		// joined a guild that is itself unavailable. nothing to do yet.
		return
	}

	guild, joined := self.getCreateGuild(payload, shardID)
	announcement := &guildAnnouncement{
		guild:  guild,
		joined: joined,
	}

	// a running readiness coordinator takes over from here
	if self.announceGuild(announcement) {
		return
	}

	if self.guildNeedsChunking(guild) {
		go self.chunkAndDispatch(guild, joined)
		return
	}

	if !joined {
		self.emit("guild_available", guild)
	} else {
		self.emit("guild_join", guild)
	}
}

func (self *State) parseGuildUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildPayload]("GUILD_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.ID)
	if guild == nil {
		dropUnknown("GUILD_UPDATE", "guild", payload.ID)
		return
	}
	old := copyGuild(guild)
	self.hydrateGuild(guild, payload)
	self.emit("guild_update", old, guild)
}

func (self *State) parseGuildDelete(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildPayload]("GUILD_DELETE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.ID)
	if guild == nil {
		dropUnknown("GUILD_DELETE", "guild", payload.ID)
		return
	}

	if payload.Unavailable != nil && *payload.Unavailable {
		// the guild is still joined, just unreachable
		guild.mutex.Lock()
		guild.Unavailable = true
		guild.mutex.Unlock()
		self.emit("guild_unavailable", guild)
		return
	}

	store := self.store()
	store.removeGuildMessages(guild)
	store.removeGuild(guild)
	self.emit("guild_remove", guild)
}

func (self *State) parseGuildMemberAdd(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[MemberPayload]("GUILD_MEMBER_ADD", data)
	if !ok || payload.User == nil {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_MEMBER_ADD", "guild", payload.GuildID)
		return
	}

	member := self.newMember(guild, payload)
	if self.config.memberCacheFlags.Has(MemberCacheJoined) {
		guild.addMember(member)
	}
	guild.adjustMemberCount(1)
	self.emit("member_join", member)
}

func (self *State) parseGuildMemberUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[MemberPayload]("GUILD_MEMBER_UPDATE", data)
	if !ok || payload.User == nil {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_MEMBER_UPDATE", "guild", payload.GuildID)
		return
	}

	member := guild.Member(payload.User.ID)
	if member != nil {
		old := copyMember(member)
		member.update(payload)
		userBefore, userAfter := member.updateInnerUser(payload.User)
		if userBefore != nil {
			self.emit("user_update", userBefore, userAfter)
		}
		self.emit("member_update", old, member)
		return
	}

	if self.config.memberCacheFlags.Has(MemberCacheJoined) {
		member = self.newMember(guild, payload)
		guild.addMember(member)
	} else {
		dropUnknown("GUILD_MEMBER_UPDATE", "member", payload.User.ID)
	}
}

func (self *State) parseGuildMemberRemove(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildMemberRemovePayload]("GUILD_MEMBER_REMOVE", data)
	if !ok {
		return
	}

	user := self.storeUser(&payload.User)

	guild := self.store().Guild(payload.GuildID)
	if guild != nil {
		guild.adjustMemberCount(-1)
		if member := guild.removeMember(user.ID); member != nil {
			self.emit("member_remove", member)
		}
	} else {
		dropUnknown("GUILD_MEMBER_REMOVE", "guild", payload.GuildID)
	}
	self.emit("raw_member_remove", payload, user)
}

func (self *State) parseGuildMembersChunk(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildMembersChunkPayload]("GUILD_MEMBERS_CHUNK", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_MEMBERS_CHUNK", "guild", payload.GuildID)
		return
	}

	members := make([]*Member, 0, len(payload.Members))
	byID := map[Snowflake]*Member{}
	for i := range payload.Members {
		if payload.Members[i].User == nil {
			continue
		}
		member := self.newMember(guild, &payload.Members[i])
		members = append(members, member)
		byID[member.User.ID] = member
	}
	glog.V(2).Infof("[chunk]processed a chunk of %d members for guild %s\n", len(members), payload.GuildID)

	for i := range payload.Presences {
		if member, ok := byID[payload.Presences[i].User.ID]; ok {
			member.presenceUpdate(&payload.Presences[i])
		}
	}

	complete := payload.ChunkIndex+1 == payload.ChunkCount
	self.processChunkRequests(payload.GuildID, payload.Nonce, members, complete)
}

func (self *State) parseGuildEmojisUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildEmojisUpdatePayload]("GUILD_EMOJIS_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_EMOJIS_UPDATE", "guild", payload.GuildID)
		return
	}

	before := guild.Emojis()
	for _, emoji := range before {
		self.store().removeEmoji(emoji.ID)
	}
	after := make([]*Emoji, 0, len(payload.Emojis))
	for i := range payload.Emojis {
		after = append(after, self.storeEmoji(guild, &payload.Emojis[i]))
	}
	guild.mutex.Lock()
	guild.emojis = after
	guild.mutex.Unlock()
	self.emit("guild_emojis_update", guild, before, after)
}

func (self *State) parseGuildStickersUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildStickersUpdatePayload]("GUILD_STICKERS_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_STICKERS_UPDATE", "guild", payload.GuildID)
		return
	}

	before := guild.Stickers()
	for _, sticker := range before {
		self.store().removeSticker(sticker.ID)
	}
	after := make([]*Sticker, 0, len(payload.Stickers))
	for i := range payload.Stickers {
		after = append(after, self.storeSticker(guild, &payload.Stickers[i]))
	}
	guild.mutex.Lock()
	guild.stickers = after
	guild.mutex.Unlock()
	self.emit("guild_stickers_update", guild, before, after)
}

func (self *State) parseGuildRoleCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildRolePayload]("GUILD_ROLE_CREATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_ROLE_CREATE", "guild", payload.GuildID)
		return
	}
	role := &Role{GuildID: guild.ID}
	role.update(&payload.Role)
	guild.addRole(role)
	self.emit("guild_role_create", role)
}

func (self *State) parseGuildRoleUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildRolePayload]("GUILD_ROLE_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_ROLE_UPDATE", "guild", payload.GuildID)
		return
	}
	role := guild.Role(payload.Role.ID)
	if role == nil {
		return
	}
	old := *role
	role.update(&payload.Role)
	self.emit("guild_role_update", &old, role)
}

func (self *State) parseGuildRoleDelete(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildRoleDeletePayload]("GUILD_ROLE_DELETE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_ROLE_DELETE", "guild", payload.GuildID)
		return
	}
	if role := guild.removeRole(payload.RoleID); role != nil {
		self.emit("guild_role_delete", role)
	}
}

func (self *State) parseGuildBanAdd(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildBanPayload]("GUILD_BAN_ADD", data)
	if !ok {
		return
	}

	// GUILD_MEMBER_REMOVE follows and owns the cache removal; this event
	// only surfaces the ban itself
	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		return
	}
	if member := guild.Member(payload.User.ID); member != nil {
		self.emit("member_ban", guild, member)
	} else {
		self.emit("member_ban", guild, newUser(&payload.User))
	}
}

func (self *State) parseGuildBanRemove(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildBanPayload]("GUILD_BAN_REMOVE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		return
	}
	user := self.storeUser(&payload.User)
	self.emit("member_unban", guild, user)
}

func (self *State) parseGuildIntegrationsUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[GuildIntegrationsUpdatePayload]("GUILD_INTEGRATIONS_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_INTEGRATIONS_UPDATE", "guild", payload.GuildID)
		return
	}
	self.emit("guild_integrations_update", guild)
}

func (self *State) parseIntegrationCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[IntegrationPayload]("INTEGRATION_CREATE", data)
	if !ok {
		return
	}
	if self.store().Guild(payload.GuildID) == nil {
		dropUnknown("INTEGRATION_CREATE", "guild", payload.GuildID)
		return
	}
	self.emit("integration_create", payload)
}

func (self *State) parseIntegrationUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[IntegrationPayload]("INTEGRATION_UPDATE", data)
	if !ok {
		return
	}
	if self.store().Guild(payload.GuildID) == nil {
		dropUnknown("INTEGRATION_UPDATE", "guild", payload.GuildID)
		return
	}
	self.emit("integration_update", payload)
}

func (self *State) parseIntegrationDelete(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[IntegrationPayload]("INTEGRATION_DELETE", data)
	if !ok {
		return
	}
	if self.store().Guild(payload.GuildID) == nil {
		dropUnknown("INTEGRATION_DELETE", "guild", payload.GuildID)
		return
	}
	self.emit("raw_integration_delete", payload)
}

func (self *State) parseGuildAuditLogEntryCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[AuditLogEntryPayload]("GUILD_AUDIT_LOG_ENTRY_CREATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_AUDIT_LOG_ENTRY_CREATE", "guild", payload.GuildID)
		return
	}
	self.emit("raw_audit_log_entry", payload, guild)
	if user := self.store().User(payload.UserID); user != nil {
		self.emit("audit_log_entry", payload, guild, user)
	}
}

func (self *State) scheduledEventFromPayload(guild *Guild, payload *ScheduledEventPayload) *ScheduledEvent {
	return &ScheduledEvent{
		GuildID:         guild.ID,
		ID:              payload.ID,
		ChannelID:       payload.ChannelID,
		CreatorID:       payload.CreatorID,
		Name:            payload.Name,
		Status:          payload.Status,
		SubscriberCount: payload.UserCount,
	}
}

func (self *State) parseScheduledEventCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ScheduledEventPayload]("GUILD_SCHEDULED_EVENT_CREATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_SCHEDULED_EVENT_CREATE", "guild", payload.GuildID)
		return
	}
	event := self.scheduledEventFromPayload(guild, payload)
	guild.addScheduledEvent(event)
	self.emit("scheduled_event_create", event)
}

func (self *State) parseScheduledEventUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ScheduledEventPayload]("GUILD_SCHEDULED_EVENT_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_SCHEDULED_EVENT_UPDATE", "guild", payload.GuildID)
		return
	}
	old := guild.ScheduledEvent(payload.ID)
	event := self.scheduledEventFromPayload(guild, payload)
	guild.addScheduledEvent(event)
	self.emit("scheduled_event_update", old, event)
}

func (self *State) parseScheduledEventDelete(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ScheduledEventPayload]("GUILD_SCHEDULED_EVENT_DELETE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_SCHEDULED_EVENT_DELETE", "guild", payload.GuildID)
		return
	}
	event := guild.removeScheduledEvent(payload.ID)
	if event == nil {
		event = self.scheduledEventFromPayload(guild, payload)
	}
	self.emit("scheduled_event_delete", event)
}

func (self *State) parseScheduledEventUserAdd(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ScheduledEventUserPayload]("GUILD_SCHEDULED_EVENT_USER_ADD", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_SCHEDULED_EVENT_USER_ADD", "guild", payload.GuildID)
		return
	}
	self.emit("raw_scheduled_event_user_add", payload, guild)

	member := guild.Member(payload.UserID)
	if member == nil {
		return
	}
	if event := guild.ScheduledEvent(payload.GuildScheduledEventID); event != nil {
		event.SubscriberCount += 1
		self.emit("scheduled_event_user_add", event, member)
	}
}

func (self *State) parseScheduledEventUserRemove(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[ScheduledEventUserPayload]("GUILD_SCHEDULED_EVENT_USER_REMOVE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("GUILD_SCHEDULED_EVENT_USER_REMOVE", "guild", payload.GuildID)
		return
	}
	self.emit("raw_scheduled_event_user_remove", payload, guild)

	member := guild.Member(payload.UserID)
	if member == nil {
		return
	}
	if event := guild.ScheduledEvent(payload.GuildScheduledEventID); event != nil {
		event.SubscriberCount -= 1
		self.emit("scheduled_event_user_remove", event, member)
	}
}

func (self *State) parseStageInstanceCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[StageInstancePayload]("STAGE_INSTANCE_CREATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("STAGE_INSTANCE_CREATE", "guild", payload.GuildID)
		return
	}
	instance := &StageInstance{
		GuildID: guild.ID,
		ID:      payload.ID,
	}
	instance.update(payload)
	guild.addStageInstance(instance)
	self.emit("stage_instance_create", instance)
}

func (self *State) parseStageInstanceUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[StageInstancePayload]("STAGE_INSTANCE_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("STAGE_INSTANCE_UPDATE", "guild", payload.GuildID)
		return
	}
	instance := guild.StageInstance(payload.ID)
	if instance == nil {
		dropUnknown("STAGE_INSTANCE_UPDATE", "stage instance", payload.ID)
		return
	}
	old := *instance
	instance.update(payload)
	self.emit("stage_instance_update", &old, instance)
}

func (self *State) parseStageInstanceDelete(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[StageInstancePayload]("STAGE_INSTANCE_DELETE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("STAGE_INSTANCE_DELETE", "guild", payload.GuildID)
		return
	}
	if instance := guild.removeStageInstance(payload.ID); instance != nil {
		self.emit("stage_instance_delete", instance)
	}
}

func (self *State) parseVoiceStateUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[VoiceStatePayload]("VOICE_STATE_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("VOICE_STATE_UPDATE", "guild", payload.GuildID)
		return
	}

	selfID := self.selfID()
	if payload.UserID == selfID {
		if handle := self.store().VoiceHandle(guild.ID); handle != nil {
			// voice handshake callbacks await the voice transport and
			// must not stall the dispatch loop
			self.spawnLogged("voice state update handler", func() error {
				return handle.OnVoiceStateUpdate(self.ctx, payload)
			})
		}
	}

	member, before, after := guild.updateVoiceState(payload)
	if member == nil {
		dropUnknown("VOICE_STATE_UPDATE", "member", payload.UserID)
		return
	}

	flags := self.config.memberCacheFlags
	if flags.Has(MemberCacheVoice) {
		if after == nil && flags.VoiceOnly() && member.User.ID != selfID {
			// only evict when voice is the sole reason the member was
			// cached
			guild.removeMember(member.User.ID)
		} else if after != nil {
			guild.addMember(member)
		}
	}

	self.emit("voice_state_update", member, before, after)
}

func (self *State) parseVoiceServerUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[VoiceServerUpdatePayload]("VOICE_SERVER_UPDATE", data)
	if !ok {
		return
	}

	key := payload.GuildID
	if key.IsZero() {
		key = payload.ChannelID
	}
	if handle := self.store().VoiceHandle(key); handle != nil {
		self.spawnLogged("voice server update handler", func() error {
			return handle.OnVoiceServerUpdate(self.ctx, payload)
		})
	}
}

func (self *State) parseVoiceChannelStatusUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[VoiceChannelStatusUpdatePayload]("VOICE_CHANNEL_STATUS_UPDATE", data)
	if !ok {
		return
	}

	self.emit("raw_voice_channel_status_update", payload)

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("VOICE_CHANNEL_STATUS_UPDATE", "guild", payload.GuildID)
		return
	}
	channel := guild.Channel(payload.ID)
	if channel == nil {
		dropUnknown("VOICE_CHANNEL_STATUS_UPDATE", "channel", payload.ID)
		return
	}
	old := channel.Status
	channel.Status = payload.Status
	self.emit("voice_channel_status_update", channel, old, channel.Status)
}

func (self *State) parseWebhooksUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[WebhooksUpdatePayload]("WEBHOOKS_UPDATE", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("WEBHOOKS_UPDATE", "guild", payload.GuildID)
		return
	}
	if payload.ChannelID.IsZero() {
		dropUnknown("WEBHOOKS_UPDATE", "channel", payload.ChannelID)
		return
	}
	channel := guild.Channel(payload.ChannelID)
	if channel == nil {
		dropUnknown("WEBHOOKS_UPDATE", "channel", payload.ChannelID)
		return
	}
	self.emit("webhooks_update", channel)
}

func (self *State) parseAutoModRuleCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[AutoModRulePayload]("AUTO_MODERATION_RULE_CREATE", data)
	if !ok {
		return
	}
	self.emit("automod_rule_create", payload)
}

func (self *State) parseAutoModRuleUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[AutoModRulePayload]("AUTO_MODERATION_RULE_UPDATE", data)
	if !ok {
		return
	}
	self.emit("automod_rule_update", payload)
}

func (self *State) parseAutoModRuleDelete(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[AutoModRulePayload]("AUTO_MODERATION_RULE_DELETE", data)
	if !ok {
		return
	}
	self.emit("automod_rule_delete", payload)
}

func (self *State) parseAutoModActionExecution(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[AutoModActionExecutionPayload]("AUTO_MODERATION_ACTION_EXECUTION", data)
	if !ok {
		return
	}

	guild := self.store().Guild(payload.GuildID)
	if guild == nil {
		dropUnknown("AUTO_MODERATION_ACTION_EXECUTION", "guild", payload.GuildID)
		return
	}
	self.emit("automod_action", guild, payload)
}

func (self *State) parseEntitlementCreate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[EntitlementPayload]("ENTITLEMENT_CREATE", data)
	if !ok {
		return
	}
	self.emit("entitlement_create", payload)
}

func (self *State) parseEntitlementUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[EntitlementPayload]("ENTITLEMENT_UPDATE", data)
	if !ok {
		return
	}
	self.emit("entitlement_update", payload)
}

func (self *State) parseEntitlementDelete(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[EntitlementPayload]("ENTITLEMENT_DELETE", data)
	if !ok {
		return
	}
	self.emit("entitlement_delete", payload)
}

func (self *State) parseAppCommandPermissionsUpdate(shardID int, data json.RawMessage) {
	payload, ok := decodeEvent[AppCommandPermissionsPayload]("APPLICATION_COMMAND_PERMISSIONS_UPDATE", data)
	if !ok {
		return
	}
	self.emit("raw_app_command_permissions_update", payload)
}
