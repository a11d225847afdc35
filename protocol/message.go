package protocol

import (
	"google.golang.org/protobuf/proto"
)

var marshalOpts = proto.MarshalOptions{Deterministic: true}

// AppendMessageChunk 把 msg 序列化为一个 chunk 追加到 dst。
func AppendMessageChunk(dst []byte, msg proto.Message) ([]byte, error) {
	payload, err := marshalOpts.Marshal(msg)
	if err != nil {
		return dst, err
	}
	return AppendChunk(dst, payload)
}

// MarshalMessage 返回 msg 的负载编码。
func MarshalMessage(msg proto.Message) ([]byte, error) {
	return marshalOpts.Marshal(msg)
}

// UnmarshalMessage 从 chunk 负载解码 msg。
func UnmarshalMessage(payload []byte, msg proto.Message) error {
	return proto.Unmarshal(payload, msg)
}
