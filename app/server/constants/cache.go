package constants

import "time"

const (
	CacheKeyUserInfo = "boxes:user:info:%d"
)

const (
	CacheExpireUserInfo = 5 * time.Minute
)
