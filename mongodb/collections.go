package mongodb

const (
	UsersCollection         = "users"
	RefreshTokensCollection = "refresh_tokens"
)
