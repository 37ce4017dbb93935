package config

type Config struct {
	System struct {
		IsProd                bool   // 是否为生产环境
		Listen                string // 监听地址
		DBConnectionString    string // Postgres 数据库的连接字符串
		RedisConnectionString string // Redis 数据库的连接字符串，留空则不启用认证缓存
	}
	Security struct {
		SignatureSecretKey string // 签名密钥，用于产生签名（例如 JWT ），更新会导致旧有会话失效
		AllowedEmailDomain string // 允许注册的邮箱域名后缀
	}
	Storage struct {
		DataFile   string // 箱子数据的镜像文件
		UploadsDir string // 归一化后的图片文件目录
	}
}
