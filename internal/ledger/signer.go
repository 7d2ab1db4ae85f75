package ledger

import (
	"strings"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// signer 是唯一允许持有签名密钥的载体。它不对外暴露，网关之外的
// 组件只能通过 Gateway 间接触发签名。
type signer struct {
	key hedera.PrivateKey
}

func newSigner(rawKey string) (*signer, error) {
	key, err := hedera.PrivateKeyFromString(strings.TrimSpace(rawKey))
	if err != nil {
		return nil, err
	}
	return &signer{key: key}, nil
}

func (s *signer) operatorKey() hedera.PrivateKey {
	return s.key
}

// String 防止密钥材料被意外打印进日志。
func (s *signer) String() string {
	return "signer(redacted)"
}

// GoString 同上，覆盖 %#v。
func (s *signer) GoString() string {
	return s.String()
}
