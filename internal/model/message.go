package model

// MessageSender 消息发送人
type MessageSender struct {
	DisplayName string `json:"displayName"`
}

// MessageHeader 消息列表中的一条消息
type MessageHeader struct {
	ID      int           `json:"id"`
	Subject string        `json:"subject"`
	Sender  MessageSender `json:"sender"`
}

// MessageList messages 接口响应
type MessageList struct {
	IncomingMessages         []MessageHeader `json:"incomingMessages"`
	ReadConfirmationMessages []MessageHeader `json:"readConfirmationMessages"`
}

// StorageAttachment 消息附件引用
type StorageAttachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessageDetail 单条消息详情
type MessageDetail struct {
	ID                 int                 `json:"id"`
	Subject            string              `json:"subject"`
	Content            *string             `json:"content"`
	StorageAttachments []StorageAttachment `json:"storageAttachments"`
}

// HeaderEntry 附件下载所需的附加请求头
type HeaderEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AttachmentStorage 附件存储下载地址
type AttachmentStorage struct {
	DownloadURL       string        `json:"downloadUrl"`
	AdditionalHeaders []HeaderEntry `json:"additionalHeaders"`
}

// ReadConfirmation 已读确认响应
type ReadConfirmation struct {
	ConfirmationDate string `json:"confirmationDate"`
}
