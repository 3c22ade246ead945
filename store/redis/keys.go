package redis

const (
	prefixBot = "botrelay:bot:"

	// username -> bot ID
	uniqueBotUsername = "botrelay:u:bot:username:"

	// creation-ordered index of every bot ID
	zBotAll = "botrelay:z:bot:all"

	sBotEnabled = "botrelay:s:bot:enabled"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
