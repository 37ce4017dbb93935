package models

type BoxLabel struct {
	Color string `json:"color"`
	Text  string `json:"text"`
}

type Box struct {
	ID          string   `json:"id"`                // 服务端生成，创建后不可变
	Label       BoxLabel `json:"label"`             // 标签颜色与文字
	Items       []string `json:"items"`             // 箱内物品
	Destination string   `json:"destination"`       // 目的地
	Carrier     string   `json:"carrier,omitempty"` // 承运方，可选
	Photo       string   `json:"photo,omitempty"`   // 关联的图片文件名，可选
}
