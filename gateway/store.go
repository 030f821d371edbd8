package gateway

import (
	"container/list"
	"sync"

	"golang.org/x/exp/maps"
)

// EntityStore owns the top level id to entity mappings plus the two bounded
// collections: the private channel lru and the recent message ring. absence
// is a normal condition, never an error.
type EntityStore struct {
	mutex sync.Mutex

	users    map[Snowflake]*User
	emojis   map[Snowflake]*Emoji
	stickers map[Snowflake]*Sticker
	guilds   map[Snowflake]*Guild
	polls    map[Snowflake]*Poll
	voice    map[Snowflake]VoiceHandle

	privateChannels *privateChannelLRU

	// nil when message caching is disabled
	messages *messageRing
}

func newEntityStore(privateChannelCap int, maxMessages int) *EntityStore {
	store := &EntityStore{
		users:           map[Snowflake]*User{},
		emojis:          map[Snowflake]*Emoji{},
		stickers:        map[Snowflake]*Sticker{},
		guilds:          map[Snowflake]*Guild{},
		polls:           map[Snowflake]*Poll{},
		voice:           map[Snowflake]VoiceHandle{},
		privateChannels: newPrivateChannelLRU(privateChannelCap),
	}
	if 0 < maxMessages {
		store.messages = newMessageRing(maxMessages)
	}
	return store
}

func (self *EntityStore) User(userID Snowflake) *User {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.users[userID]
}

func (self *EntityStore) Users() []*User {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return maps.Values(self.users)
}

func (self *EntityStore) addUser(user *User) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	user.stored = true
	self.users[user.ID] = user
}

func (self *EntityStore) removeUser(userID Snowflake) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	delete(self.users, userID)
}

func (self *EntityStore) Guild(guildID Snowflake) *Guild {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.guilds[guildID]
}

func (self *EntityStore) Guilds() []*Guild {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return maps.Values(self.guilds)
}

func (self *EntityStore) addGuild(guild *Guild) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.guilds[guild.ID] = guild
}

// guild removal cascades to the guild's emojis and stickers so no global
// entry dangles on a removed guild
func (self *EntityStore) removeGuild(guild *Guild) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	delete(self.guilds, guild.ID)
	for _, emoji := range guild.Emojis() {
		delete(self.emojis, emoji.ID)
	}
	for _, sticker := range guild.Stickers() {
		delete(self.stickers, sticker.ID)
	}
}

func (self *EntityStore) Emoji(emojiID Snowflake) *Emoji {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.emojis[emojiID]
}

func (self *EntityStore) addEmoji(emoji *Emoji) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.emojis[emoji.ID] = emoji
}

func (self *EntityStore) removeEmoji(emojiID Snowflake) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	delete(self.emojis, emojiID)
}

func (self *EntityStore) Sticker(stickerID Snowflake) *Sticker {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.stickers[stickerID]
}

func (self *EntityStore) addSticker(sticker *Sticker) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.stickers[sticker.ID] = sticker
}

func (self *EntityStore) removeSticker(stickerID Snowflake) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	delete(self.stickers, stickerID)
}

func (self *EntityStore) Poll(messageID Snowflake) *Poll {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.polls[messageID]
}

func (self *EntityStore) addPoll(poll *Poll) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.polls[poll.MessageID] = poll
}

func (self *EntityStore) VoiceHandle(id Snowflake) VoiceHandle {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.voice[id]
}

func (self *EntityStore) VoiceHandles() []VoiceHandle {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return maps.Values(self.voice)
}

func (self *EntityStore) addVoiceHandle(id Snowflake, handle VoiceHandle) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.voice[id] = handle
}

func (self *EntityStore) removeVoiceHandle(id Snowflake) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	delete(self.voice, id)
}

func (self *EntityStore) PrivateChannel(channelID Snowflake) *Channel {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.privateChannels.get(channelID)
}

func (self *EntityStore) PrivateChannelByUser(userID Snowflake) *Channel {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.privateChannels.getByRecipient(userID)
}

func (self *EntityStore) addPrivateChannel(channel *Channel) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.privateChannels.add(channel)
}

func (self *EntityStore) removePrivateChannel(channel *Channel) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.privateChannels.remove(channel)
}

func (self *EntityStore) PrivateChannelCount() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.privateChannels.size()
}

func (self *EntityStore) Message(messageID Snowflake) *Message {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.messages == nil {
		return nil
	}
	return self.messages.find(messageID)
}

func (self *EntityStore) Messages() []*Message {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.messages == nil {
		return nil
	}
	return self.messages.snapshot()
}

func (self *EntityStore) CachesMessages() bool {
	return self.messages != nil
}

func (self *EntityStore) addMessage(message *Message) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.messages == nil {
		return
	}
	self.messages.append(message)
}

func (self *EntityStore) removeMessage(message *Message) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.messages == nil {
		return
	}
	self.messages.remove(message)
}

func (self *EntityStore) removeGuildMessages(guild *Guild) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.messages == nil {
		return
	}
	self.messages.removeIf(func(message *Message) bool {
		return message.Guild == guild
	})
}

// capacity limited least recently used cache of private channels with a
// secondary recipient index for direct message channels. read promotes.
type privateChannelLRU struct {
	capacity int

	order       *list.List
	elements    map[Snowflake]*list.Element
	byRecipient map[Snowflake]*Channel
}

func newPrivateChannelLRU(capacity int) *privateChannelLRU {
	return &privateChannelLRU{
		capacity:    capacity,
		order:       list.New(),
		elements:    map[Snowflake]*list.Element{},
		byRecipient: map[Snowflake]*Channel{},
	}
}

func (self *privateChannelLRU) size() int {
	return self.order.Len()
}

func (self *privateChannelLRU) get(channelID Snowflake) *Channel {
	element, ok := self.elements[channelID]
	if !ok {
		return nil
	}
	self.order.MoveToBack(element)
	return element.Value.(*Channel)
}

func (self *privateChannelLRU) getByRecipient(userID Snowflake) *Channel {
	return self.byRecipient[userID]
}

func (self *privateChannelLRU) add(channel *Channel) {
	if element, ok := self.elements[channel.ID]; ok {
		element.Value = channel
		self.order.MoveToBack(element)
	} else {
		self.elements[channel.ID] = self.order.PushBack(channel)
	}

	if self.capacity < self.order.Len() {
		oldest := self.order.Front()
		evicted := oldest.Value.(*Channel)
		self.order.Remove(oldest)
		delete(self.elements, evicted.ID)
		if evicted.Type == ChannelTypeDM && evicted.Recipient != nil {
			delete(self.byRecipient, evicted.Recipient.ID)
		}
	}

	if channel.Type == ChannelTypeDM && channel.Recipient != nil {
		self.byRecipient[channel.Recipient.ID] = channel
	}
}

func (self *privateChannelLRU) remove(channel *Channel) {
	element, ok := self.elements[channel.ID]
	if ok {
		self.order.Remove(element)
		delete(self.elements, channel.ID)
	}
	if channel.Type == ChannelTypeDM && channel.Recipient != nil {
		delete(self.byRecipient, channel.Recipient.ID)
	}
}

// fixed capacity insertion ordered buffer of recent messages, most recent
// last. append evicts the oldest silently. lookup scans from the newest end
// since recent messages are looked up far more often than old ones.
type messageRing struct {
	capacity int
	messages []*Message
}

func newMessageRing(capacity int) *messageRing {
	return &messageRing{
		capacity: capacity,
	}
}

func (self *messageRing) append(message *Message) {
	if self.capacity <= len(self.messages) {
		n := copy(self.messages, self.messages[1:])
		self.messages = self.messages[:n]
	}
	self.messages = append(self.messages, message)
}

func (self *messageRing) find(messageID Snowflake) *Message {
	for i := len(self.messages) - 1; 0 <= i; i -= 1 {
		if self.messages[i].ID == messageID {
			return self.messages[i]
		}
	}
	return nil
}

func (self *messageRing) remove(message *Message) {
	for i := len(self.messages) - 1; 0 <= i; i -= 1 {
		if self.messages[i] == message {
			self.messages = append(self.messages[:i], self.messages[i+1:]...)
			return
		}
	}
}

// filters in place, preserving order and capacity
func (self *messageRing) removeIf(match func(*Message) bool) {
	kept := self.messages[:0]
	for _, message := range self.messages {
		if !match(message) {
			kept = append(kept, message)
		}
	}
	for i := len(kept); i < len(self.messages); i += 1 {
		self.messages[i] = nil
	}
	self.messages = kept
}

func (self *messageRing) snapshot() []*Message {
	return append([]*Message{}, self.messages...)
}
