package inits

import (
	"fmt"
	"moving-box-tracker/app/server/config"
	"os"
	"strings"
)

func Config() (*config.Config, error) {
	cfg := &config.Config{}

	// 手动配置映射
	{
		mode, exist := os.LookupEnv("MODE")
		cfg.System.IsProd = exist && strings.HasPrefix(strings.ToLower(mode), "p")
	}

	if listen, exist := os.LookupEnv("LISTEN"); !exist {
		cfg.System.Listen = ":1323" // 默认监听地址
	} else {
		cfg.System.Listen = listen
	}

	if dbconn, exist := os.LookupEnv("DB_CONN"); !exist {
		return nil, fmt.Errorf("DB_CONN environment variable not set")
	} else {
		cfg.System.DBConnectionString = dbconn
	}

	// Redis 是可选的，不设定时跳过认证缓存
	if redisconn, exist := os.LookupEnv("REDIS_CONN"); exist {
		cfg.System.RedisConnectionString = redisconn
	}

	if sigsk, exist := os.LookupEnv("SIGNATURE_SECRET_KEY"); !exist {
		return nil, fmt.Errorf("SIGNATURE_SECRET_KEY environment variable not set")
	} else {
		cfg.Security.SignatureSecretKey = sigsk
	}

	if domain, exist := os.LookupEnv("ALLOWED_EMAIL_DOMAIN"); !exist {
		cfg.Security.AllowedEmailDomain = "lja.com" // 默认域名
	} else {
		cfg.Security.AllowedEmailDomain = strings.TrimPrefix(domain, "@")
	}

	if dataFile, exist := os.LookupEnv("DATA_FILE"); !exist {
		cfg.Storage.DataFile = "/data/boxes/boxes.json"
	} else {
		cfg.Storage.DataFile = dataFile
	}

	if uploadsDir, exist := os.LookupEnv("UPLOADS_DIR"); !exist {
		cfg.Storage.UploadsDir = "/data/boxes/uploads/"
	} else {
		cfg.Storage.UploadsDir = uploadsDir
	}

	return cfg, nil
}
