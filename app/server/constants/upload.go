package constants

const (
	UploadBodyLimit     = "50M" // 单次上传的请求体上限
	UploadMaxConcurrent = 4     // 同时进行的图片归一化数量上限
	UploadJPEGQuality   = 80
)
