package gateway

import (
	"sync"
	"time"

	"golang.org/x/exp/maps"
)

type ChannelType int

const (
	ChannelTypeGuildText     ChannelType = 0
	ChannelTypeDM            ChannelType = 1
	ChannelTypeGuildVoice    ChannelType = 2
	ChannelTypeGroupDM       ChannelType = 3
	ChannelTypeGuildCategory ChannelType = 4
	ChannelTypeGuildNews     ChannelType = 5
	ChannelTypeNewsThread    ChannelType = 10
	ChannelTypePublicThread  ChannelType = 11
	ChannelTypePrivateThread ChannelType = 12
	ChannelTypeGuildStage    ChannelType = 13
	ChannelTypeGuildForum    ChannelType = 15
)

func (self ChannelType) IsThread() bool {
	switch self {
	case ChannelTypeNewsThread, ChannelTypePublicThread, ChannelTypePrivateThread:
		return true
	}
	return false
}

func (self ChannelType) IsPrivate() bool {
	return self == ChannelTypeDM || self == ChannelTypeGroupDM
}

// the "0000" discriminator marks a partial user record that must never enter
// the global user map
const discriminatorSentinel = "0000"

// one user object is shared by every guild the user is visible in, and
// guilds on different shards mutate it from different dispatch loops
type User struct {
	ID            Snowflake
	Username      string
	Discriminator string
	GlobalName    string
	Avatar        string
	Bot           bool

	mutex sync.Mutex

	// true once the user is held by the global user map
	stored bool
}

func newUser(data *UserPayload) *User {
	user := &User{}
	user.apply(data)
	return user
}

func (self *User) apply(data *UserPayload) {
	self.ID = data.ID
	self.Username = data.Username
	self.Discriminator = data.Discriminator
	self.GlobalName = data.GlobalName
	self.Avatar = data.Avatar
	self.Bot = data.Bot
}

func (self *User) update(data *UserPayload) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.apply(data)
}

// applies the payload when a visible attribute changed. returns the prior
// snapshot, or nil when nothing visible changed.
func (self *User) updateChanged(data *UserPayload) *User {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.Username == data.Username &&
		self.Discriminator == data.Discriminator &&
		self.GlobalName == data.GlobalName &&
		self.Avatar == data.Avatar {
		return nil
	}
	before := &User{
		ID:            self.ID,
		Username:      self.Username,
		Discriminator: self.Discriminator,
		GlobalName:    self.GlobalName,
		Avatar:        self.Avatar,
		Bot:           self.Bot,
	}
	self.apply(data)
	return before
}

type Member struct {
	GuildID  Snowflake
	User     *User
	Nick     string
	Roles    []Snowflake
	JoinedAt time.Time
	Pending  bool
	Mute     bool
	Deaf     bool

	mutex sync.Mutex

	// presence
	Status string
}

func (self *Member) update(data *MemberPayload) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.Nick = data.Nick
	self.Roles = data.Roles
	if data.JoinedAt != "" {
		self.JoinedAt = parseTimestamp(data.JoinedAt)
	}
	self.Pending = data.Pending
	self.Mute = data.Mute
	self.Deaf = data.Deaf
}

// applies the inner user record carried by a member or presence payload.
// returns the before/after pair when visible user attributes changed.
func (self *Member) updateInnerUser(data *UserPayload) (*User, *User) {
	user := self.User
	if user == nil {
		return nil, nil
	}
	before := user.updateChanged(data)
	if before == nil {
		return nil, nil
	}
	return before, user
}

func (self *Member) presenceUpdate(data *PresencePayload) (*User, *User) {
	self.mutex.Lock()
	self.Status = data.Status
	self.mutex.Unlock()
	if data.User.Username == "" {
		// partial user record, id only
		return nil, nil
	}
	return self.updateInnerUser(&data.User)
}

func copyMember(member *Member) *Member {
	member.mutex.Lock()
	defer member.mutex.Unlock()
	return &Member{
		GuildID:  member.GuildID,
		User:     member.User,
		Nick:     member.Nick,
		Roles:    member.Roles,
		JoinedAt: member.JoinedAt,
		Pending:  member.Pending,
		Mute:     member.Mute,
		Deaf:     member.Deaf,
		Status:   member.Status,
	}
}

type Role struct {
	GuildID     Snowflake
	ID          Snowflake
	Name        string
	Color       int
	Position    int
	Permissions Snowflake
}

func (self *Role) update(data *RolePayload) {
	self.ID = data.ID
	self.Name = data.Name
	self.Color = data.Color
	self.Position = data.Position
	self.Permissions = data.Permissions
}

type Emoji struct {
	GuildID  Snowflake
	ID       Snowflake
	Name     string
	Animated bool
}

type Sticker struct {
	GuildID Snowflake
	ID      Snowflake
	Name    string
}

type ThreadMember struct {
	ThreadID Snowflake
	UserID   Snowflake
	JoinedAt time.Time
}

type Channel struct {
	ID       Snowflake
	Type     ChannelType
	GuildID  Snowflake
	Name     string
	Topic    string
	Position int
	ParentID Snowflake
	OwnerID  Snowflake

	LastMessageID Snowflake
	LastPinAt     time.Time

	// voice channel status line
	Status string

	// private channels
	Recipient  *User
	Recipients []*User

	// threads
	Archived bool
	Me       *ThreadMember
	members  map[Snowflake]*ThreadMember
}

func newChannel(data *ChannelPayload) *Channel {
	channel := &Channel{
		ID:      data.ID,
		Type:    data.Type,
		GuildID: data.GuildID,
	}
	channel.update(data)
	return channel
}

func (self *Channel) update(data *ChannelPayload) {
	self.Name = data.Name
	self.Topic = data.Topic
	self.Position = data.Position
	self.ParentID = data.ParentID
	self.OwnerID = data.OwnerID
	if !data.LastMessageID.IsZero() {
		self.LastMessageID = data.LastMessageID
	}
	if data.ThreadMetadata != nil {
		self.Archived = data.ThreadMetadata.Archived
	}
}

func (self *Channel) addThreadMember(member *ThreadMember) {
	if self.members == nil {
		self.members = map[Snowflake]*ThreadMember{}
	}
	self.members[member.UserID] = member
}

func (self *Channel) popThreadMember(userID Snowflake) *ThreadMember {
	member, ok := self.members[userID]
	if !ok {
		return nil
	}
	delete(self.members, userID)
	return member
}

func copyChannel(channel *Channel) *Channel {
	c := *channel
	return &c
}

type StageInstance struct {
	GuildID   Snowflake
	ID        Snowflake
	ChannelID Snowflake
	Topic     string
}

func (self *StageInstance) update(data *StageInstancePayload) {
	self.ChannelID = data.ChannelID
	self.Topic = data.Topic
}

type ScheduledEvent struct {
	GuildID         Snowflake
	ID              Snowflake
	ChannelID       Snowflake
	CreatorID       Snowflake
	Name            string
	Status          int
	SubscriberCount int
}

type VoiceState struct {
	GuildID   Snowflake
	ChannelID Snowflake
	UserID    Snowflake
	SessionID string
	Deaf      bool
	Mute      bool
	SelfDeaf  bool
	SelfMute  bool
}

type Guild struct {
	ID      Snowflake
	ShardID int

	mutex sync.RWMutex

	Name        string
	OwnerID     Snowflake
	Unavailable bool
	Large       bool

	memberCount     int
	members         map[Snowflake]*Member
	channels        map[Snowflake]*Channel
	threads         map[Snowflake]*Channel
	roles           map[Snowflake]*Role
	stageInstances  map[Snowflake]*StageInstance
	scheduledEvents map[Snowflake]*ScheduledEvent
	voiceStates     map[Snowflake]*VoiceState
	emojis          []*Emoji
	stickers        []*Sticker
}

func newGuild(id Snowflake, shardID int) *Guild {
	return &Guild{
		ID:              id,
		ShardID:         shardID,
		members:         map[Snowflake]*Member{},
		channels:        map[Snowflake]*Channel{},
		threads:         map[Snowflake]*Channel{},
		roles:           map[Snowflake]*Role{},
		stageInstances:  map[Snowflake]*StageInstance{},
		scheduledEvents: map[Snowflake]*ScheduledEvent{},
		voiceStates:     map[Snowflake]*VoiceState{},
	}
}

func (self *Guild) Member(userID Snowflake) *Member {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return self.members[userID]
}

func (self *Guild) Members() []*Member {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return maps.Values(self.members)
}

func (self *Guild) MemberCount() int {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return self.memberCount
}

func (self *Guild) addMember(member *Member) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.members[member.User.ID] = member
}

func (self *Guild) removeMember(userID Snowflake) *Member {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	member, ok := self.members[userID]
	if !ok {
		return nil
	}
	delete(self.members, userID)
	return member
}

func (self *Guild) adjustMemberCount(delta int) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if 0 < self.memberCount {
		self.memberCount += delta
	}
}

// a guild is chunked once its member map holds the announced member count
func (self *Guild) Chunked() bool {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	if self.memberCount == 0 {
		return false
	}
	return self.memberCount == len(self.members)
}

func (self *Guild) Channel(channelID Snowflake) *Channel {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return self.channels[channelID]
}

func (self *Guild) Channels() []*Channel {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return maps.Values(self.channels)
}

func (self *Guild) addChannel(channel *Channel) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.channels[channel.ID] = channel
}

func (self *Guild) removeChannel(channelID Snowflake) *Channel {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	channel, ok := self.channels[channelID]
	if !ok {
		return nil
	}
	delete(self.channels, channelID)
	return channel
}

func (self *Guild) Thread(threadID Snowflake) *Channel {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return self.threads[threadID]
}

func (self *Guild) addThread(thread *Channel) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.threads[thread.ID] = thread
}

func (self *Guild) removeThread(threadID Snowflake) *Channel {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	thread, ok := self.threads[threadID]
	if !ok {
		return nil
	}
	delete(self.threads, threadID)
	return thread
}

// channel or thread by id
func (self *Guild) resolveChannel(channelID Snowflake) *Channel {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	if channel, ok := self.channels[channelID]; ok {
		return channel
	}
	return self.threads[channelID]
}

func (self *Guild) clearThreads() map[Snowflake]*Channel {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	previous := self.threads
	self.threads = map[Snowflake]*Channel{}
	return previous
}

// removes and returns the threads parented to the given channels
func (self *Guild) filterThreads(channelIDs map[Snowflake]bool) map[Snowflake]*Channel {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	removed := map[Snowflake]*Channel{}
	for threadID, thread := range self.threads {
		if channelIDs[thread.ParentID] {
			removed[threadID] = thread
			delete(self.threads, threadID)
		}
	}
	return removed
}

func (self *Guild) Role(roleID Snowflake) *Role {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return self.roles[roleID]
}

func (self *Guild) addRole(role *Role) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.roles[role.ID] = role
}

func (self *Guild) removeRole(roleID Snowflake) *Role {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	role, ok := self.roles[roleID]
	if !ok {
		return nil
	}
	delete(self.roles, roleID)
	return role
}

func (self *Guild) ScheduledEvent(eventID Snowflake) *ScheduledEvent {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return self.scheduledEvents[eventID]
}

func (self *Guild) addScheduledEvent(event *ScheduledEvent) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.scheduledEvents[event.ID] = event
}

func (self *Guild) removeScheduledEvent(eventID Snowflake) *ScheduledEvent {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	event, ok := self.scheduledEvents[eventID]
	if !ok {
		return nil
	}
	delete(self.scheduledEvents, eventID)
	return event
}

func (self *Guild) StageInstance(instanceID Snowflake) *StageInstance {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return self.stageInstances[instanceID]
}

func (self *Guild) addStageInstance(instance *StageInstance) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.stageInstances[instance.ID] = instance
}

func (self *Guild) removeStageInstance(instanceID Snowflake) *StageInstance {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	instance, ok := self.stageInstances[instanceID]
	if !ok {
		return nil
	}
	delete(self.stageInstances, instanceID)
	return instance
}

func (self *Guild) Emojis() []*Emoji {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return self.emojis
}

func (self *Guild) Stickers() []*Sticker {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return self.stickers
}

func (self *Guild) VoiceState(userID Snowflake) *VoiceState {
	self.mutex.RLock()
	defer self.mutex.RUnlock()
	return self.voiceStates[userID]
}

// applies a voice state payload in place. returns the affected member (nil if
// unknown) and the before/after states.
func (self *Guild) updateVoiceState(data *VoiceStatePayload) (*Member, *VoiceState, *VoiceState) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	member := self.members[data.UserID]

	var before *VoiceState
	if existing, ok := self.voiceStates[data.UserID]; ok {
		b := *existing
		before = &b
	}

	if data.ChannelID == nil || data.ChannelID.IsZero() {
		delete(self.voiceStates, data.UserID)
		return member, before, nil
	}

	after := &VoiceState{
		GuildID:   self.ID,
		ChannelID: *data.ChannelID,
		UserID:    data.UserID,
		SessionID: data.SessionID,
		Deaf:      data.Deaf,
		Mute:      data.Mute,
		SelfDeaf:  data.SelfDeaf,
		SelfMute:  data.SelfMute,
	}
	self.voiceStates[data.UserID] = after
	return member, before, after
}

// shallow snapshot used as the "before" value of update notifications
func copyGuild(guild *Guild) *Guild {
	guild.mutex.RLock()
	defer guild.mutex.RUnlock()
	return &Guild{
		ID:          guild.ID,
		ShardID:     guild.ShardID,
		Name:        guild.Name,
		OwnerID:     guild.OwnerID,
		Unavailable: guild.Unavailable,
		Large:       guild.Large,
		memberCount: guild.memberCount,
	}
}

type Reaction struct {
	EmojiID   Snowflake
	EmojiName string
	Animated  bool
	Count     int
	Me        bool
}

func (self *Reaction) matches(emoji *ReactionEmojiPayload) bool {
	if !self.EmojiID.IsZero() || !emoji.ID.IsZero() {
		return self.EmojiID == emoji.ID
	}
	return self.EmojiName == emoji.Name
}

type Message struct {
	ID        Snowflake
	ChannelID Snowflake
	Guild     *Guild
	Channel   *Channel
	Author    *User
	Member    *Member

	Content         string
	Timestamp       time.Time
	EditedTimestamp time.Time
	Pinned          bool
	Reactions       []*Reaction
}

func (self *Message) update(data *MessagePayload) {
	if data.Content != "" {
		self.Content = data.Content
	}
	if data.EditedTimestamp != "" {
		self.EditedTimestamp = parseTimestamp(data.EditedTimestamp)
	}
	self.Pinned = data.Pinned
}

func (self *Message) addReaction(emoji *ReactionEmojiPayload, userID Snowflake, selfID Snowflake) *Reaction {
	for _, reaction := range self.Reactions {
		if reaction.matches(emoji) {
			reaction.Count += 1
			if userID == selfID {
				reaction.Me = true
			}
			return reaction
		}
	}
	reaction := &Reaction{
		EmojiID:   emoji.ID,
		EmojiName: emoji.Name,
		Animated:  emoji.Animated,
		Count:     1,
		Me:        userID == selfID,
	}
	self.Reactions = append(self.Reactions, reaction)
	return reaction
}

func (self *Message) removeReaction(emoji *ReactionEmojiPayload, userID Snowflake, selfID Snowflake) *Reaction {
	for i, reaction := range self.Reactions {
		if reaction.matches(emoji) {
			reaction.Count -= 1
			if userID == selfID {
				reaction.Me = false
			}
			if reaction.Count <= 0 {
				self.Reactions = append(self.Reactions[:i], self.Reactions[i+1:]...)
			}
			return reaction
		}
	}
	return nil
}

func (self *Message) clearEmoji(emoji *ReactionEmojiPayload) *Reaction {
	for i, reaction := range self.Reactions {
		if reaction.matches(emoji) {
			self.Reactions = append(self.Reactions[:i], self.Reactions[i+1:]...)
			return reaction
		}
	}
	return nil
}

// guild object identity is not stable across a shard reconnect. cached
// cross references are rebound by id before new events are processed.
func (self *Message) rebindCachedReferences(guild *Guild, channel *Channel) {
	self.Guild = guild
	self.Channel = channel
}

func copyMessage(message *Message) *Message {
	c := *message
	c.Reactions = append([]*Reaction{}, message.Reactions...)
	return &c
}

type PollAnswer struct {
	ID   int
	Text string
}

type PollAnswerCount struct {
	ID      int
	Count   int
	MeVoted bool
}

// vote counters are mutated in place, independent of whether the parent
// message is cached
type Poll struct {
	MessageID Snowflake
	Question  string
	Answers   []*PollAnswer
	Finalized bool

	mutex  sync.Mutex
	counts map[int]*PollAnswerCount
}

func newPoll(messageID Snowflake, data *PollPayload) *Poll {
	poll := &Poll{
		MessageID: messageID,
		Question:  data.Question.Text,
		counts:    map[int]*PollAnswerCount{},
	}
	for _, answer := range data.Answers {
		poll.Answers = append(poll.Answers, &PollAnswer{
			ID:   answer.AnswerID,
			Text: answer.PollMedia.Text,
		})
	}
	if data.Results != nil {
		poll.Finalized = data.Results.IsFinalized
		for _, count := range data.Results.AnswerCounts {
			poll.counts[count.ID] = &PollAnswerCount{
				ID:      count.ID,
				Count:   count.Count,
				MeVoted: count.MeVoted,
			}
		}
	}
	return poll
}

func (self *Poll) Answer(answerID int) *PollAnswer {
	for _, answer := range self.Answers {
		if answer.ID == answerID {
			return answer
		}
	}
	return nil
}

func (self *Poll) AnswerCount(answerID int) int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if count, ok := self.counts[answerID]; ok {
		return count.Count
	}
	return 0
}

func (self *Poll) addVote(answerID int) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if count, ok := self.counts[answerID]; ok {
		count.Count += 1
	} else {
		self.counts[answerID] = &PollAnswerCount{
			ID:    answerID,
			Count: 1,
		}
	}
}

func (self *Poll) removeVote(answerID int) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if count, ok := self.counts[answerID]; ok {
		count.Count -= 1
	}
}
