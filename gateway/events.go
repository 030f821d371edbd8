package gateway

import (
	"encoding/json"
)

// wire payloads. the transport decodes a gateway frame into an event type
// identifier plus a raw body; each handler decodes the body into one of
// these. ids are 64 bit integers transmitted as decimal strings.

type UserPayload struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator"`
	GlobalName    string    `json:"global_name"`
	Avatar        string    `json:"avatar"`
	Bot           bool      `json:"bot"`
}

type MemberPayload struct {
	User     *UserPayload `json:"user"`
	Nick     string       `json:"nick"`
	Roles    []Snowflake  `json:"roles"`
	JoinedAt string       `json:"joined_at"`
	Pending  bool         `json:"pending"`
	Mute     bool         `json:"mute"`
	Deaf     bool         `json:"deaf"`

	// present on guild member add/update
	GuildID Snowflake `json:"guild_id"`
}

type PresencePayload struct {
	User    UserPayload `json:"user"`
	GuildID Snowflake   `json:"guild_id"`
	Status  string      `json:"status"`
}

type RolePayload struct {
	ID          Snowflake `json:"id"`
	Name        string    `json:"name"`
	Color       int       `json:"color"`
	Position    int       `json:"position"`
	Permissions Snowflake `json:"permissions"`
}

type EmojiPayload struct {
	ID       Snowflake `json:"id"`
	Name     string    `json:"name"`
	Animated bool      `json:"animated"`
}

type StickerPayload struct {
	ID   Snowflake `json:"id"`
	Name string    `json:"name"`
}

type ThreadMetadataPayload struct {
	Archived        bool   `json:"archived"`
	CreateTimestamp string `json:"create_timestamp"`
}

type ChannelPayload struct {
	ID             Snowflake              `json:"id"`
	Type           ChannelType            `json:"type"`
	GuildID        Snowflake              `json:"guild_id"`
	Name           string                 `json:"name"`
	Topic          string                 `json:"topic"`
	Position       int                    `json:"position"`
	ParentID       Snowflake              `json:"parent_id"`
	OwnerID        Snowflake              `json:"owner_id"`
	LastMessageID  Snowflake              `json:"last_message_id"`
	Recipients     []UserPayload          `json:"recipients"`
	ThreadMetadata *ThreadMetadataPayload `json:"thread_metadata"`
	NewlyCreated   bool                   `json:"newly_created"`
	Status         string                 `json:"status"`
}

type StageInstancePayload struct {
	ID        Snowflake `json:"id"`
	GuildID   Snowflake `json:"guild_id"`
	ChannelID Snowflake `json:"channel_id"`
	Topic     string    `json:"topic"`
}

type ScheduledEventPayload struct {
	ID        Snowflake `json:"id"`
	GuildID   Snowflake `json:"guild_id"`
	ChannelID Snowflake `json:"channel_id"`
	CreatorID Snowflake `json:"creator_id"`
	Name      string    `json:"name"`
	Status    int       `json:"status"`
	UserCount int       `json:"user_count"`
}

type VoiceStatePayload struct {
	GuildID   Snowflake      `json:"guild_id"`
	ChannelID *Snowflake     `json:"channel_id"`
	UserID    Snowflake      `json:"user_id"`
	Member    *MemberPayload `json:"member"`
	SessionID string         `json:"session_id"`
	Deaf      bool           `json:"deaf"`
	Mute      bool           `json:"mute"`
	SelfDeaf  bool           `json:"self_deaf"`
	SelfMute  bool           `json:"self_mute"`
}

type GuildPayload struct {
	ID                   Snowflake               `json:"id"`
	Name                 string                  `json:"name"`
	OwnerID              Snowflake               `json:"owner_id"`
	Unavailable          *bool                   `json:"unavailable"`
	Large                bool                    `json:"large"`
	MemberCount          int                     `json:"member_count"`
	Members              []MemberPayload         `json:"members"`
	Channels             []ChannelPayload        `json:"channels"`
	Threads              []ChannelPayload        `json:"threads"`
	Roles                []RolePayload           `json:"roles"`
	Emojis               []EmojiPayload          `json:"emojis"`
	Stickers             []StickerPayload        `json:"stickers"`
	Presences            []PresencePayload       `json:"presences"`
	StageInstances       []StageInstancePayload  `json:"stage_instances"`
	GuildScheduledEvents []ScheduledEventPayload `json:"guild_scheduled_events"`
	VoiceStates          []VoiceStatePayload     `json:"voice_states"`
}

type ApplicationPayload struct {
	ID    Snowflake `json:"id"`
	Flags int64     `json:"flags"`
}

type ReadyPayload struct {
	Version     int                 `json:"v"`
	User        UserPayload         `json:"user"`
	Guilds      []GuildPayload      `json:"guilds"`
	SessionID   string              `json:"session_id"`
	Application *ApplicationPayload `json:"application"`
}

type PollAnswerCountPayload struct {
	ID      int  `json:"id"`
	Count   int  `json:"count"`
	MeVoted bool `json:"me_voted"`
}

type PollResultsPayload struct {
	IsFinalized  bool                     `json:"is_finalized"`
	AnswerCounts []PollAnswerCountPayload `json:"answer_counts"`
}

type PollAnswerPayload struct {
	AnswerID int `json:"answer_id"`
	PollMedia struct {
		Text string `json:"text"`
	} `json:"poll_media"`
}

type PollPayload struct {
	Question struct {
		Text string `json:"text"`
	} `json:"question"`
	Answers []PollAnswerPayload `json:"answers"`
	Results *PollResultsPayload `json:"results"`
}

type ReactionEmojiPayload struct {
	ID       Snowflake `json:"id"`
	Name     string    `json:"name"`
	Animated bool      `json:"animated"`
}

type ReactionPayload struct {
	Count int                  `json:"count"`
	Me    bool                 `json:"me"`
	Emoji ReactionEmojiPayload `json:"emoji"`
}

type MessagePayload struct {
	ID              Snowflake         `json:"id"`
	ChannelID       Snowflake         `json:"channel_id"`
	GuildID         Snowflake         `json:"guild_id"`
	Author          UserPayload       `json:"author"`
	Member          *MemberPayload    `json:"member"`
	Content         string            `json:"content"`
	Timestamp       string            `json:"timestamp"`
	EditedTimestamp string            `json:"edited_timestamp"`
	Pinned          bool              `json:"pinned"`
	Reactions       []ReactionPayload `json:"reactions"`
	Poll            *PollPayload      `json:"poll"`
	Components      json.RawMessage   `json:"components"`
}

type MessageDeletePayload struct {
	ID        Snowflake `json:"id"`
	ChannelID Snowflake `json:"channel_id"`
	GuildID   Snowflake `json:"guild_id"`
}

type MessageDeleteBulkPayload struct {
	IDs       []Snowflake `json:"ids"`
	ChannelID Snowflake   `json:"channel_id"`
	GuildID   Snowflake   `json:"guild_id"`
}

type ReactionActionPayload struct {
	UserID    Snowflake            `json:"user_id"`
	ChannelID Snowflake            `json:"channel_id"`
	MessageID Snowflake            `json:"message_id"`
	GuildID   Snowflake            `json:"guild_id"`
	Member    *MemberPayload       `json:"member"`
	Emoji     ReactionEmojiPayload `json:"emoji"`
}

type ReactionClearPayload struct {
	ChannelID Snowflake            `json:"channel_id"`
	MessageID Snowflake            `json:"message_id"`
	GuildID   Snowflake            `json:"guild_id"`
	Emoji     ReactionEmojiPayload `json:"emoji"`
}

type PollVotePayload struct {
	UserID    Snowflake `json:"user_id"`
	ChannelID Snowflake `json:"channel_id"`
	MessageID Snowflake `json:"message_id"`
	GuildID   Snowflake `json:"guild_id"`
	AnswerID  int       `json:"answer_id"`
}

type ChannelPinsUpdatePayload struct {
	ChannelID        Snowflake `json:"channel_id"`
	GuildID          Snowflake `json:"guild_id"`
	LastPinTimestamp string    `json:"last_pin_timestamp"`
}

type ThreadMemberPayload struct {
	ID            Snowflake `json:"id"`
	UserID        Snowflake `json:"user_id"`
	JoinTimestamp string    `json:"join_timestamp"`
}

type ThreadListSyncPayload struct {
	GuildID    Snowflake             `json:"guild_id"`
	ChannelIDs []Snowflake           `json:"channel_ids"`
	Threads    []ChannelPayload      `json:"threads"`
	Members    []ThreadMemberPayload `json:"members"`
}

type ThreadMemberUpdatePayload struct {
	ThreadMemberPayload
	GuildID Snowflake `json:"guild_id"`
}

type ThreadMembersUpdatePayload struct {
	ID               Snowflake             `json:"id"`
	GuildID          Snowflake             `json:"guild_id"`
	MemberCount      int                   `json:"member_count"`
	AddedMembers     []ThreadMemberPayload `json:"added_members"`
	RemovedMemberIDs []Snowflake           `json:"removed_member_ids"`
}

type GuildMemberRemovePayload struct {
	GuildID Snowflake   `json:"guild_id"`
	User    UserPayload `json:"user"`
}

type GuildMembersChunkPayload struct {
	GuildID    Snowflake         `json:"guild_id"`
	Members    []MemberPayload   `json:"members"`
	ChunkIndex int               `json:"chunk_index"`
	ChunkCount int               `json:"chunk_count"`
	NotFound   []Snowflake       `json:"not_found"`
	Presences  []PresencePayload `json:"presences"`
	Nonce      string            `json:"nonce"`
}

type GuildEmojisUpdatePayload struct {
	GuildID Snowflake      `json:"guild_id"`
	Emojis  []EmojiPayload `json:"emojis"`
}

type GuildStickersUpdatePayload struct {
	GuildID  Snowflake        `json:"guild_id"`
	Stickers []StickerPayload `json:"stickers"`
}

type GuildRolePayload struct {
	GuildID Snowflake   `json:"guild_id"`
	Role    RolePayload `json:"role"`
}

type GuildRoleDeletePayload struct {
	GuildID Snowflake `json:"guild_id"`
	RoleID  Snowflake `json:"role_id"`
}

type GuildBanPayload struct {
	GuildID Snowflake   `json:"guild_id"`
	User    UserPayload `json:"user"`
}

type GuildIntegrationsUpdatePayload struct {
	GuildID Snowflake `json:"guild_id"`
}

type IntegrationPayload struct {
	ID            Snowflake `json:"id"`
	GuildID       Snowflake `json:"guild_id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	ApplicationID Snowflake `json:"application_id"`
}

type AuditLogEntryPayload struct {
	ID         Snowflake `json:"id"`
	GuildID    Snowflake `json:"guild_id"`
	UserID     Snowflake `json:"user_id"`
	TargetID   Snowflake `json:"target_id"`
	ActionType int       `json:"action_type"`
}

type ScheduledEventUserPayload struct {
	GuildScheduledEventID Snowflake `json:"guild_scheduled_event_id"`
	UserID                Snowflake `json:"user_id"`
	GuildID               Snowflake `json:"guild_id"`
}

type VoiceServerUpdatePayload struct {
	Token     string    `json:"token"`
	GuildID   Snowflake `json:"guild_id"`
	ChannelID Snowflake `json:"channel_id"`
	Endpoint  string    `json:"endpoint"`
}

type VoiceChannelStatusUpdatePayload struct {
	ID      Snowflake `json:"id"`
	GuildID Snowflake `json:"guild_id"`
	Status  string    `json:"status"`
}

type TypingStartPayload struct {
	ChannelID Snowflake      `json:"channel_id"`
	GuildID   Snowflake      `json:"guild_id"`
	UserID    Snowflake      `json:"user_id"`
	Timestamp int64          `json:"timestamp"`
	Member    *MemberPayload `json:"member"`
}

type InvitePayload struct {
	ChannelID Snowflake    `json:"channel_id"`
	GuildID   Snowflake    `json:"guild_id"`
	Code      string       `json:"code"`
	Inviter   *UserPayload `json:"inviter"`
	MaxAge    int          `json:"max_age"`
	MaxUses   int          `json:"max_uses"`
	Temporary bool         `json:"temporary"`
}

type WebhooksUpdatePayload struct {
	GuildID   Snowflake `json:"guild_id"`
	ChannelID Snowflake `json:"channel_id"`
}

type InteractionDataPayload struct {
	CustomID      string `json:"custom_id"`
	ComponentType int    `json:"component_type"`
}

type InteractionPayload struct {
	ID        Snowflake               `json:"id"`
	Type      int                     `json:"type"`
	GuildID   Snowflake               `json:"guild_id"`
	ChannelID Snowflake               `json:"channel_id"`
	User      *UserPayload            `json:"user"`
	Member    *MemberPayload          `json:"member"`
	Data      *InteractionDataPayload `json:"data"`
	Token     string                  `json:"token"`
}

const (
	InteractionTypeComponent   = 3
	InteractionTypeModalSubmit = 5
)

type AutoModRulePayload struct {
	ID          Snowflake `json:"id"`
	GuildID     Snowflake `json:"guild_id"`
	Name        string    `json:"name"`
	CreatorID   Snowflake `json:"creator_id"`
	EventType   int       `json:"event_type"`
	TriggerType int       `json:"trigger_type"`
	Enabled     bool      `json:"enabled"`
}

type AutoModActionExecutionPayload struct {
	GuildID              Snowflake `json:"guild_id"`
	RuleID               Snowflake `json:"rule_id"`
	RuleTriggerType      int       `json:"rule_trigger_type"`
	UserID               Snowflake `json:"user_id"`
	ChannelID            Snowflake `json:"channel_id"`
	MessageID            Snowflake `json:"message_id"`
	AlertSystemMessageID Snowflake `json:"alert_system_message_id"`
	Content              string    `json:"content"`
	MatchedKeyword       string    `json:"matched_keyword"`
	MatchedContent       string    `json:"matched_content"`
}

type EntitlementPayload struct {
	ID            Snowflake `json:"id"`
	SkuID         Snowflake `json:"sku_id"`
	ApplicationID Snowflake `json:"application_id"`
	UserID        Snowflake `json:"user_id"`
	GuildID       Snowflake `json:"guild_id"`
	Type          int       `json:"type"`
	Deleted       bool      `json:"deleted"`
}

type AppCommandPermissionsPayload struct {
	ID            Snowflake `json:"id"`
	ApplicationID Snowflake `json:"application_id"`
	GuildID       Snowflake `json:"guild_id"`
}
